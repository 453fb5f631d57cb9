package index

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

const schema = `
CREATE TABLE IF NOT EXISTS projects (
    project_id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    root_hash TEXT NOT NULL,
    registered_at TEXT NOT NULL, -- RFC3339
    last_sync TEXT NOT NULL      -- RFC3339
);

CREATE TABLE IF NOT EXISTS snapshot_leaves (
    project_id TEXT NOT NULL,
    path TEXT NOT NULL,
    hash TEXT NOT NULL,
    PRIMARY KEY (project_id, path)
);

CREATE TABLE IF NOT EXISTS path_chunks (
    project_id TEXT NOT NULL,
    path TEXT NOT NULL,
    chunk_hash TEXT NOT NULL,
    PRIMARY KEY (project_id, path, chunk_hash)
);

CREATE INDEX IF NOT EXISTS idx_path_chunks_hash ON path_chunks(chunk_hash);
`

// Project is one registered project's server-side state.
type Project struct {
	ProjectID    string    `db:"project_id"`
	Name         string    `db:"name"`
	RootHash     string    `db:"root_hash"`
	RegisteredAt time.Time `db:"-"`
	LastSync     time.Time `db:"-"`
}

type dbProject struct {
	ProjectID    string `db:"project_id"`
	Name         string `db:"name"`
	RootHash     string `db:"root_hash"`
	RegisteredAt string `db:"registered_at"`
	LastSync     string `db:"last_sync"`
}

// LeafUpdate is one accepted file's new snapshot state.
type LeafUpdate struct {
	Path        string
	Hash        string
	ChunkHashes []string
}

// Store persists acknowledged snapshots and path→chunk mappings in SQLite.
// Snapshots are stored flattened; the tree is rebuilt deterministically when
// a diff is needed.
type Store struct {
	db *sqlx.DB
}

func NewStore(db *sqlx.DB) (*Store, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("index: init schema: %w", err)
	}
	return &Store{db: db}, nil
}

// CreateProject inserts or refreshes a project row.
func (s *Store) CreateProject(projectID, name string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.Exec(`
		INSERT INTO projects (project_id, name, root_hash, registered_at, last_sync)
		VALUES (?, ?, '', ?, ?)
		ON CONFLICT(project_id) DO UPDATE SET name = excluded.name`,
		projectID, name, now, now)
	if err != nil {
		return fmt.Errorf("index: create project %s: %w", projectID, err)
	}
	return nil
}

// GetProject fetches a project, or ErrProjectNotFound.
func (s *Store) GetProject(projectID string) (*Project, error) {
	var row dbProject
	err := s.db.Get(&row, "SELECT * FROM projects WHERE project_id = ?", projectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("index: get project %s: %w", projectID, err)
	}
	return row.toProject()
}

func (r *dbProject) toProject() (*Project, error) {
	registered, err := time.Parse(time.RFC3339, r.RegisteredAt)
	if err != nil {
		return nil, fmt.Errorf("index: parse registered_at: %w", err)
	}
	lastSync, err := time.Parse(time.RFC3339, r.LastSync)
	if err != nil {
		return nil, fmt.Errorf("index: parse last_sync: %w", err)
	}
	return &Project{
		ProjectID:    r.ProjectID,
		Name:         r.Name,
		RootHash:     r.RootHash,
		RegisteredAt: registered,
		LastSync:     lastSync,
	}, nil
}

// ListProjects returns all projects with their leaf counts.
func (s *Store) ListProjects() ([]*Project, error) {
	var rows []dbProject
	if err := s.db.Select(&rows, "SELECT * FROM projects ORDER BY project_id"); err != nil {
		return nil, fmt.Errorf("index: list projects: %w", err)
	}
	projects := make([]*Project, 0, len(rows))
	for i := range rows {
		p, err := rows[i].toProject()
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, nil
}

// CountProjects returns the number of registered projects.
func (s *Store) CountProjects() (int, error) {
	var n int
	if err := s.db.Get(&n, "SELECT COUNT(*) FROM projects"); err != nil {
		return 0, fmt.Errorf("index: count projects: %w", err)
	}
	return n, nil
}

// GetLeaves returns the acknowledged snapshot's flattened leaves.
func (s *Store) GetLeaves(projectID string) (map[string]string, error) {
	rows, err := s.db.Queryx("SELECT path, hash FROM snapshot_leaves WHERE project_id = ?", projectID)
	if err != nil {
		return nil, fmt.Errorf("index: get leaves %s: %w", projectID, err)
	}
	defer rows.Close()

	leaves := make(map[string]string)
	for rows.Next() {
		var path, hash string
		if err := rows.Scan(&path, &hash); err != nil {
			return nil, fmt.Errorf("index: scan leaf: %w", err)
		}
		leaves[path] = hash
	}
	return leaves, rows.Err()
}

// CountLeaves returns the snapshot's file count.
func (s *Store) CountLeaves(projectID string) (int, error) {
	var n int
	if err := s.db.Get(&n, "SELECT COUNT(*) FROM snapshot_leaves WHERE project_id = ?", projectID); err != nil {
		return 0, fmt.Errorf("index: count leaves %s: %w", projectID, err)
	}
	return n, nil
}

// ChunksForPath returns the chunk hashes last indexed for a path.
func (s *Store) ChunksForPath(projectID, path string) ([]string, error) {
	var hashes []string
	err := s.db.Select(&hashes,
		"SELECT chunk_hash FROM path_chunks WHERE project_id = ? AND path = ? ORDER BY chunk_hash",
		projectID, path)
	if err != nil {
		return nil, fmt.Errorf("index: chunks for %s: %w", path, err)
	}
	return hashes, nil
}

// ChunkReferenced reports whether any path in any project still references
// the chunk. Chunk records are content-addressed and shared across projects,
// so eviction must check all of them.
func (s *Store) ChunkReferenced(chunkHash string) (bool, error) {
	var n int
	err := s.db.Get(&n,
		"SELECT COUNT(*) FROM path_chunks WHERE chunk_hash = ?",
		chunkHash)
	if err != nil {
		return false, fmt.Errorf("index: chunk referenced: %w", err)
	}
	return n > 0, nil
}

// CommitBatch applies one cycle batch atomically: accepted paths get their
// new leaf hash and chunk set, removed paths are dropped, and the project's
// root hash and last-sync time are updated. Nothing is visible until the
// transaction commits.
func (s *Store) CommitBatch(projectID string, accepted []LeafUpdate, removed []string, rootHash string) error {
	tx, err := s.db.Beginx()
	if err != nil {
		return fmt.Errorf("index: begin commit: %w", err)
	}
	defer tx.Rollback()

	for _, up := range accepted {
		if _, err := tx.Exec(`
			INSERT INTO snapshot_leaves (project_id, path, hash) VALUES (?, ?, ?)
			ON CONFLICT(project_id, path) DO UPDATE SET hash = excluded.hash`,
			projectID, up.Path, up.Hash); err != nil {
			return fmt.Errorf("index: upsert leaf %s: %w", up.Path, err)
		}
		if _, err := tx.Exec("DELETE FROM path_chunks WHERE project_id = ? AND path = ?",
			projectID, up.Path); err != nil {
			return fmt.Errorf("index: clear chunks %s: %w", up.Path, err)
		}
		for _, h := range up.ChunkHashes {
			if _, err := tx.Exec(
				"INSERT OR IGNORE INTO path_chunks (project_id, path, chunk_hash) VALUES (?, ?, ?)",
				projectID, up.Path, h); err != nil {
				return fmt.Errorf("index: insert chunk %s: %w", up.Path, err)
			}
		}
	}

	for _, path := range removed {
		if _, err := tx.Exec("DELETE FROM snapshot_leaves WHERE project_id = ? AND path = ?",
			projectID, path); err != nil {
			return fmt.Errorf("index: delete leaf %s: %w", path, err)
		}
		if _, err := tx.Exec("DELETE FROM path_chunks WHERE project_id = ? AND path = ?",
			projectID, path); err != nil {
			return fmt.Errorf("index: delete chunks %s: %w", path, err)
		}
	}

	now := time.Now().UTC().Format(time.RFC3339)
	if _, err := tx.Exec(
		"UPDATE projects SET root_hash = ?, last_sync = ? WHERE project_id = ?",
		rootHash, now, projectID); err != nil {
		return fmt.Errorf("index: update root hash: %w", err)
	}

	return tx.Commit()
}
