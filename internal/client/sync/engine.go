package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/mirrorlab/codesync/internal/client/config"
	"github.com/mirrorlab/codesync/internal/merkle"
	"github.com/mirrorlab/codesync/internal/scan"
	"github.com/mirrorlab/codesync/internal/sdk"
)

const maxPushBatch = 64

var ErrSyncAlreadyRunning = errors.New("sync already running")

// CycleResult summarizes one sync cycle.
type CycleResult struct {
	RootHash string
	UpToDate bool
	Pushed   int
	Removed  int
	Rejected int
	Sent     int64
	Took     time.Duration
}

// Engine drives the sync cycle: scan, probe, negotiate, push, commit. One
// cycle runs at a time; kicks that arrive mid-cycle coalesce into a single
// pending rerun through the watcher's signal channel.
type Engine struct {
	config  *config.Config
	sdk     *sdk.Client
	scanner *scan.Scanner
	journal *Journal
	watcher *Watcher

	wg     sync.WaitGroup
	muSync sync.Mutex

	// guarded by muSync; the first cycle of a process always probes so a
	// reset server is noticed even when nothing changed locally
	probed bool
}

func NewEngine(cfg *config.Config, client *sdk.Client, watcher *Watcher) (*Engine, error) {
	ignore := scan.NewIgnoreList(cfg.ProjectDir)

	journalPath := filepath.Join(filepath.Dir(config.DefaultConfigPath), "journals", cfg.ProjectID+".db")
	if cfg.Path != "" {
		journalPath = filepath.Join(filepath.Dir(cfg.Path), "journals", cfg.ProjectID+".db")
	}
	journal := NewJournal(journalPath)
	if err := journal.Open(); err != nil {
		return nil, fmt.Errorf("create sync journal: %w", err)
	}

	if watcher != nil {
		watcher.FilterPaths(func(path string) bool {
			rel, err := filepath.Rel(cfg.ProjectDir, path)
			if err != nil {
				return false
			}
			relPath := filepath.ToSlash(rel)
			info, statErr := os.Stat(path)
			isDir := statErr == nil && info.IsDir()
			return ignore.ShouldIgnore(relPath, isDir)
		})
	}

	return &Engine{
		config:  cfg,
		sdk:     client,
		scanner: scan.NewScanner(cfg.ProjectDir, ignore),
		journal: journal,
		watcher: watcher,
	}, nil
}

func (e *Engine) Start(ctx context.Context) error {
	slog.Info("sync start", "project", e.config.ProjectID, "dir", e.config.ProjectDir)

	if err := e.register(ctx); err != nil {
		return err
	}

	if _, err := e.RunSync(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Warn("initial sync failed", "error", err)
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()

		// a timer, not a ticker, so a slow cycle never queues up ticks
		timer := time.NewTimer(e.config.SyncInterval)
		defer timer.Stop()

		for {
			select {
			case <-ctx.Done():
				return

			case <-timer.C:
				e.runAndLog(ctx)
				timer.Reset(e.config.SyncInterval)

			case _, ok := <-e.watcher.Changed():
				if !ok {
					return
				}
				e.runAndLog(ctx)
				// the periodic pass restarts from now
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(e.config.SyncInterval)
			}
		}
	}()

	return nil
}

func (e *Engine) Stop() error {
	slog.Info("sync stop")
	e.wg.Wait()
	return e.journal.Close()
}

func (e *Engine) runAndLog(ctx context.Context) {
	result, err := e.RunSync(ctx)
	switch {
	case errors.Is(err, ErrSyncAlreadyRunning), errors.Is(err, context.Canceled):
	case errors.Is(err, sdk.ErrTransient):
		slog.Warn("sync degraded", "error", err)
	case err != nil:
		slog.Error("sync failed", "error", err)
	case !result.UpToDate:
		slog.Info("sync cycle",
			"rootHash", shortHash(result.RootHash),
			"pushed", result.Pushed,
			"removed", result.Removed,
			"rejected", result.Rejected,
			"sent", humanize.Bytes(uint64(result.Sent)),
			"took", result.Took.Round(time.Millisecond))
	}
}

// RunSync performs one full cycle. Returns ErrSyncAlreadyRunning when a
// cycle is still in flight.
func (e *Engine) RunSync(ctx context.Context) (*CycleResult, error) {
	if !e.muSync.TryLock() {
		return nil, ErrSyncAlreadyRunning
	}
	defer e.muSync.Unlock()

	tstart := time.Now()

	scanned, err := e.scanner.Scan()
	if err != nil {
		return nil, fmt.Errorf("scan project: %w", err)
	}
	for _, rej := range scanned.Rejected {
		slog.Warn("scan skipped file", "path", rej.Path, "error", rej.Err)
	}

	leaves := scanned.Leaves()
	rootHash := ""
	if len(leaves) > 0 {
		tree, err := merkle.FromLeaves(e.config.Name, leaves)
		if err != nil {
			return nil, fmt.Errorf("build tree: %w", err)
		}
		rootHash = tree.RootHash
	}

	// an unchanged tree against an already-verified snapshot needs no network
	ackRoot, err := e.journal.RootHash()
	if err != nil {
		return nil, err
	}
	if e.probed && ackRoot == rootHash {
		return &CycleResult{
			RootHash: rootHash,
			UpToDate: true,
			Took:     time.Since(tstart),
		}, nil
	}

	probe, err := e.sdk.Sync.Probe(ctx, &sdk.ProbeRequest{
		ProjectID: e.config.ProjectID,
		RootHash:  rootHash,
	})
	if err != nil {
		if isCode(err, sdk.CodeProjectNotFound) {
			if err := e.register(ctx); err != nil {
				return nil, err
			}
			return nil, fmt.Errorf("project re-registered, rerun sync")
		}
		return nil, err
	}
	e.probed = true

	result := &CycleResult{RootHash: rootHash}
	if probe.UpToDate {
		result.UpToDate = true
		result.Took = time.Since(tstart)
		return result, e.journal.Commit(leaves, nil, rootHash)
	}

	negotiated, err := e.sdk.Sync.Negotiate(ctx, &sdk.NegotiateRequest{
		ProjectID: e.config.ProjectID,
		RootHash:  rootHash,
		Leaves:    sdk.LeavesFromMap(leaves),
	})
	if err != nil {
		return nil, err
	}

	accepted, sent, rejected, err := e.pushChanges(ctx, negotiated.ChangedPaths, leaves)
	if err != nil {
		return nil, err
	}
	result.Pushed = len(accepted)
	result.Sent = sent
	result.Rejected = rejected

	if len(negotiated.RemovedPaths) > 0 {
		if _, err := e.sdk.Sync.PushRemovals(ctx, &sdk.PushRemovalsRequest{
			ProjectID: e.config.ProjectID,
			Paths:     negotiated.RemovedPaths,
		}); err != nil {
			return nil, err
		}
		result.Removed = len(negotiated.RemovedPaths)
	}

	if err := e.commitJournal(accepted, negotiated.RemovedPaths); err != nil {
		return nil, err
	}

	result.Took = time.Since(tstart)
	return result, nil
}

// pushChanges uploads changed paths in batches and returns the accepted
// path→hash set. A path that vanished between scan and read is skipped; the
// next cycle picks it up as a removal.
func (e *Engine) pushChanges(ctx context.Context, paths []string, leaves map[string]string) (map[string]string, int64, int, error) {
	accepted := make(map[string]string)
	var sent int64
	rejected := 0

	for start := 0; start < len(paths); start += maxPushBatch {
		end := min(start+maxPushBatch, len(paths))

		var files []sdk.FileUpload
		for _, relPath := range paths[start:end] {
			hash, ok := leaves[relPath]
			if !ok {
				continue
			}
			content, err := os.ReadFile(filepath.Join(e.config.ProjectDir, filepath.FromSlash(relPath)))
			if err != nil {
				slog.Warn("push skipped file", "path", relPath, "error", err)
				continue
			}
			sent += int64(len(content))
			files = append(files, sdk.FileUpload{
				Path:        relPath,
				Content:     content,
				ClaimedHash: hash,
			})
		}
		if len(files) == 0 {
			continue
		}

		resp, err := e.sdk.Sync.PushChanges(ctx, &sdk.PushChangesRequest{
			ProjectID: e.config.ProjectID,
			Files:     files,
		})
		if err != nil {
			return nil, 0, 0, err
		}

		for _, path := range resp.Accepted {
			accepted[path] = leaves[path]
		}
		for _, rej := range resp.Rejected {
			if rej.Reason == sdk.CodeHashMismatch {
				// the file changed between scan and read; the next cycle
				// re-diffs and retransmits it
				slog.Warn("push rejected: file changed mid-cycle", "path", rej.Path)
			} else {
				slog.Warn("push rejected", "path", rej.Path, "reason", rej.Reason)
			}
			rejected++
		}
	}

	return accepted, sent, rejected, nil
}

// commitJournal folds the accepted batch into the acknowledged snapshot,
// mirroring the root hash the server committed.
func (e *Engine) commitJournal(accepted map[string]string, removed []string) error {
	journalLeaves, err := e.journal.Leaves()
	if err != nil {
		return err
	}
	for path, hash := range accepted {
		journalLeaves[path] = hash
	}
	for _, path := range removed {
		delete(journalLeaves, path)
	}

	rootHash := ""
	if len(journalLeaves) > 0 {
		tree, err := merkle.FromLeaves(e.config.Name, journalLeaves)
		if err != nil {
			return fmt.Errorf("rebuild journal tree: %w", err)
		}
		rootHash = tree.RootHash
	}
	return e.journal.Commit(accepted, removed, rootHash)
}

func (e *Engine) register(ctx context.Context) error {
	_, err := e.sdk.Sync.Register(ctx, &sdk.RegisterRequest{
		ProjectID: e.config.ProjectID,
		Name:      e.config.Name,
	})
	if err != nil {
		return fmt.Errorf("register project: %w", err)
	}
	slog.Info("project registered", "project", e.config.ProjectID, "name", e.config.Name)
	return nil
}

func isCode(err error, code string) bool {
	var apiErr *sdk.APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}

func shortHash(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}
