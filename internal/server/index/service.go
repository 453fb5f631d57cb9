package index

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mirrorlab/codesync/internal/merkle"
)

// Pipeline turns file content into sealed, indexed chunk vectors.
type Pipeline interface {
	// ProcessFile chunks, embeds, seals and upserts one file. Returns the
	// chunk hashes now indexed for that file.
	ProcessFile(ctx context.Context, path string, content []byte) ([]string, error)
	// EvictChunks removes chunk vectors that no path references anymore.
	EvictChunks(ctx context.Context, chunkHashes []string) error
}

// FileChange is one pushed file with the client's claimed content hash.
type FileChange struct {
	Path        string
	Content     []byte
	ClaimedHash string
}

// Reject is a per-path rejection; the rest of the batch is unaffected.
type Reject struct {
	Path   string
	Reason string
}

// ApplyResult summarizes one push batch.
type ApplyResult struct {
	Accepted []string
	Rejected []Reject
	RootHash string
}

// Service owns the acknowledged snapshots and drives the indexing pipeline.
// A per-project mutex serializes pushes so two concurrent cycles can never
// interleave snapshot commits.
type Service struct {
	store    *Store
	pipeline Pipeline

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewService(store *Store, pipeline Pipeline) *Service {
	return &Service{
		store:    store,
		pipeline: pipeline,
		locks:    make(map[string]*sync.Mutex),
	}
}

func (s *Service) projectLock(projectID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[projectID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[projectID] = l
	}
	return l
}

// Register creates the project if needed. Registering an existing project is
// idempotent and keeps its snapshot.
func (s *Service) Register(projectID, name string) (*Project, error) {
	if err := s.store.CreateProject(projectID, name); err != nil {
		return nil, err
	}
	return s.store.GetProject(projectID)
}

// Probe returns the acknowledged root hash and leaf count.
func (s *Service) Probe(projectID string) (rootHash string, fileCount int, err error) {
	project, err := s.store.GetProject(projectID)
	if err != nil {
		return "", 0, err
	}
	n, err := s.store.CountLeaves(projectID)
	if err != nil {
		return "", 0, err
	}
	return project.RootHash, n, nil
}

// Negotiate computes the canonical change set between the acknowledged
// snapshot and the client's current leaves. The server side is authoritative:
// whatever it answers here is what the client pushes.
func (s *Service) Negotiate(projectID string, clientLeaves map[string]string) (*merkle.ChangeSet, error) {
	if _, err := s.store.GetProject(projectID); err != nil {
		return nil, err
	}
	ackLeaves, err := s.store.GetLeaves(projectID)
	if err != nil {
		return nil, err
	}

	prev, err := treeFromLeaves(ackLeaves)
	if err != nil {
		return nil, fmt.Errorf("%w: acknowledged snapshot: %v", ErrInvalidSnapshot, err)
	}
	cur, err := treeFromLeaves(clientLeaves)
	if err != nil {
		return nil, fmt.Errorf("%w: client snapshot: %v", ErrInvalidSnapshot, err)
	}
	return merkle.Diff(prev, cur), nil
}

// ApplyChanges re-hashes each pushed file, indexes the ones whose content
// matches the claimed hash, and commits the accepted paths into the
// acknowledged snapshot in one transaction. A hash mismatch rejects only
// that path; it stays out of the snapshot so the next cycle re-diffs it.
func (s *Service) ApplyChanges(ctx context.Context, projectID string, changes []FileChange) (*ApplyResult, error) {
	if _, err := s.store.GetProject(projectID); err != nil {
		return nil, err
	}

	lock := s.projectLock(projectID)
	if !lock.TryLock() {
		return nil, ErrSyncInProgress
	}
	defer lock.Unlock()

	result := &ApplyResult{}
	updates := make([]LeafUpdate, 0, len(changes))
	var staleChunks []string

	for _, change := range changes {
		actual := merkle.HashBytes(change.Content)
		if actual != change.ClaimedHash {
			slog.Warn("push rejected: hash mismatch",
				"projectId", projectID, "path", change.Path,
				"claimed", change.ClaimedHash, "actual", actual)
			result.Rejected = append(result.Rejected, Reject{
				Path:   change.Path,
				Reason: ReasonHashMismatch,
			})
			continue
		}

		chunkHashes, err := s.pipeline.ProcessFile(ctx, change.Path, change.Content)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			slog.Error("push rejected: indexing failed",
				"projectId", projectID, "path", change.Path, "error", err)
			result.Rejected = append(result.Rejected, Reject{
				Path:   change.Path,
				Reason: ReasonIndexingFailed,
			})
			continue
		}

		old, err := s.store.ChunksForPath(projectID, change.Path)
		if err != nil {
			return nil, err
		}
		staleChunks = append(staleChunks, old...)

		updates = append(updates, LeafUpdate{
			Path:        change.Path,
			Hash:        actual,
			ChunkHashes: chunkHashes,
		})
		result.Accepted = append(result.Accepted, change.Path)
	}

	rootHash, err := s.commit(projectID, updates, nil)
	if err != nil {
		return nil, err
	}
	result.RootHash = rootHash

	s.evictOrphans(ctx, projectID, staleChunks)
	return result, nil
}

// ApplyRemovals drops paths from the acknowledged snapshot and evicts their
// chunks from the vector index.
func (s *Service) ApplyRemovals(ctx context.Context, projectID string, paths []string) (string, error) {
	if _, err := s.store.GetProject(projectID); err != nil {
		return "", err
	}

	lock := s.projectLock(projectID)
	if !lock.TryLock() {
		return "", ErrSyncInProgress
	}
	defer lock.Unlock()

	var staleChunks []string
	for _, path := range paths {
		old, err := s.store.ChunksForPath(projectID, path)
		if err != nil {
			return "", err
		}
		staleChunks = append(staleChunks, old...)
	}

	rootHash, err := s.commit(projectID, nil, paths)
	if err != nil {
		return "", err
	}

	s.evictOrphans(ctx, projectID, staleChunks)
	return rootHash, nil
}

// commit folds the batch into the snapshot leaves, recomputes the root hash
// and writes everything in one transaction.
func (s *Service) commit(projectID string, updates []LeafUpdate, removed []string) (string, error) {
	leaves, err := s.store.GetLeaves(projectID)
	if err != nil {
		return "", err
	}
	for _, up := range updates {
		leaves[up.Path] = up.Hash
	}
	for _, path := range removed {
		delete(leaves, path)
	}

	tree, err := treeFromLeaves(leaves)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	rootHash := ""
	if tree != nil {
		rootHash = tree.RootHash
	}

	if err := s.store.CommitBatch(projectID, updates, removed, rootHash); err != nil {
		return "", err
	}
	return rootHash, nil
}

// evictOrphans deletes chunks no longer referenced by any path in any
// project. Chunk records are shared across projects, so a chunk pushed under
// the same path and content by two projects must survive until the last
// reference is gone. Best effort: the snapshot is already committed, so a
// failed eviction only leaves a harmless stale vector behind.
func (s *Service) evictOrphans(ctx context.Context, projectID string, candidates []string) {
	if len(candidates) == 0 {
		return
	}
	seen := make(map[string]bool, len(candidates))
	var orphans []string
	for _, h := range candidates {
		if seen[h] {
			continue
		}
		seen[h] = true
		referenced, err := s.store.ChunkReferenced(h)
		if err != nil {
			slog.Warn("orphan check failed", "chunkHash", h, "error", err)
			continue
		}
		if !referenced {
			orphans = append(orphans, h)
		}
	}
	if len(orphans) == 0 {
		return
	}
	if err := s.pipeline.EvictChunks(ctx, orphans); err != nil {
		slog.Warn("chunk eviction failed", "projectId", projectID, "count", len(orphans), "error", err)
	}
}

// ListProjects returns every registered project with its snapshot size.
func (s *Service) ListProjects() ([]*Project, []int, error) {
	projects, err := s.store.ListProjects()
	if err != nil {
		return nil, nil, err
	}
	counts := make([]int, len(projects))
	for i, p := range projects {
		n, err := s.store.CountLeaves(p.ProjectID)
		if err != nil {
			return nil, nil, err
		}
		counts[i] = n
	}
	return projects, counts, nil
}

// CountProjects returns the number of registered projects.
func (s *Service) CountProjects() (int, error) {
	return s.store.CountProjects()
}

func treeFromLeaves(leaves map[string]string) (*merkle.Tree, error) {
	if len(leaves) == 0 {
		return nil, nil
	}
	return merkle.FromLeaves("root", leaves)
}
