package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"golang.org/x/sync/errgroup"

	"github.com/mirrorlab/codesync/internal/chunk"
	"github.com/mirrorlab/codesync/internal/embed"
	"github.com/mirrorlab/codesync/internal/seal"
	"github.com/mirrorlab/codesync/internal/vector"
)

const (
	defaultWorkers    = 4
	embedRetries      = 3
	embedRetryBackoff = 500 * time.Millisecond
)

// Service runs pushed file content through chunking, embedding, sealing and
// vector upsert. Chunks already present in the index are skipped, so an edit
// that moves code around re-embeds only what actually changed.
type Service struct {
	chunker  *chunk.Chunker
	provider embed.Provider
	sealer   *seal.Sealer
	index    vector.Index
	workers  int
}

func New(chunker *chunk.Chunker, provider embed.Provider, sealer *seal.Sealer, index vector.Index) *Service {
	return &Service{
		chunker:  chunker,
		provider: provider,
		sealer:   sealer,
		index:    index,
		workers:  defaultWorkers,
	}
}

// SetWorkers bounds per-file embedding concurrency.
func (s *Service) SetWorkers(n int) {
	if n > 0 {
		s.workers = n
	}
}

// ProcessFile indexes one file's content and returns its chunk hashes in
// chunk order. Embedding calls run concurrently with per-chunk retries on
// transient provider errors; a sealing failure aborts the whole file since
// retrying cannot fix a key problem.
func (s *Service) ProcessFile(ctx context.Context, path string, content []byte) ([]string, error) {
	chunks := s.chunker.Split(path, string(content))
	hashes := make([]string, len(chunks))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	var mu sync.Mutex
	sealed := 0
	skipped := 0

	for i := range chunks {
		c := &chunks[i]
		hashes[i] = c.Hash
		if c.Oversized {
			slog.Warn("oversized chunk", "path", path, "line", c.StartLine, "bytes", len(c.Content))
		}

		g.Go(func() error {
			if _, err := s.index.Get(ctx, c.Hash); err == nil {
				mu.Lock()
				skipped++
				mu.Unlock()
				return nil
			} else if !errors.Is(err, vector.ErrNotFound) {
				return fmt.Errorf("pipeline: index lookup %s: %w", c.Hash, err)
			}

			vec, err := s.embedChunk(ctx, c.Content)
			if err != nil {
				return fmt.Errorf("pipeline: embed %s chunk %d: %w", path, c.Index, err)
			}

			rec, err := s.sealer.Seal(c.Hash, vec)
			if err != nil {
				return fmt.Errorf("pipeline: seal %s chunk %d: %w", path, c.Index, err)
			}

			if err := s.index.Upsert(ctx, rec); err != nil {
				return fmt.Errorf("pipeline: upsert %s chunk %d: %w", path, c.Index, err)
			}
			mu.Lock()
			sealed++
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	slog.Debug("file indexed", "path", path,
		"chunks", len(chunks), "embedded", sealed, "reused", skipped)
	return hashes, nil
}

func (s *Service) embedChunk(ctx context.Context, text string) ([]float32, error) {
	return retry.DoWithData(
		func() ([]float32, error) {
			return s.provider.Embed(ctx, text)
		},
		retry.Context(ctx),
		retry.Attempts(embedRetries),
		retry.Delay(embedRetryBackoff),
		retry.DelayType(retry.BackOffDelay),
		retry.RetryIf(func(err error) bool {
			return errors.Is(err, embed.ErrProvider)
		}),
		retry.LastErrorOnly(true),
	)
}

// EvictChunks removes orphaned chunk vectors from the index.
func (s *Service) EvictChunks(ctx context.Context, chunkHashes []string) error {
	var firstErr error
	for _, h := range chunkHashes {
		if err := s.index.Delete(ctx, h); err != nil && !errors.Is(err, vector.ErrNotFound) {
			slog.Warn("chunk evict failed", "chunkHash", h, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
