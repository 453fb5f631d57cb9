// Package vector is the boundary to the external vector index. Only sealed
// embedding records ever cross it; the index never sees plaintext content
// or unencrypted vectors. Semantic queries unseal candidates back inside the
// trust boundary.
package vector

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/mirrorlab/codesync/internal/seal"
)

var (
	// ErrNotFound is returned when a record does not exist in the index.
	ErrNotFound = errors.New("vector: record not found")
)

// Index stores sealed embedding records keyed by chunk hash.
type Index interface {
	// Upsert stores or replaces the record under its chunk hash.
	Upsert(ctx context.Context, rec *seal.Record) error
	// Delete evicts the record for the given chunk hash. Deleting a missing
	// key is not an error.
	Delete(ctx context.Context, chunkHash string) error
	// Get fetches a record, or ErrNotFound.
	Get(ctx context.Context, chunkHash string) (*seal.Record, error)
	// Keys lists all stored chunk hashes.
	Keys(ctx context.Context) ([]string, error)
}

// Config selects and configures the index backend.
type Config struct {
	// Kind is "memory" or "weaviate".
	Kind string `yaml:"kind" mapstructure:"kind"`
	// Host and Scheme for the weaviate kind.
	Host   string `yaml:"host" mapstructure:"host"`
	Scheme string `yaml:"scheme" mapstructure:"scheme"`
	// Class name for the weaviate kind; defaults to "CodeEmbedding".
	Class string `yaml:"class" mapstructure:"class"`
}

// NewIndex builds the configured backend.
func NewIndex(ctx context.Context, cfg *Config) (Index, error) {
	switch cfg.Kind {
	case "", "memory":
		return NewMemoryIndex(), nil
	case "weaviate":
		return NewWeaviateIndex(ctx, cfg)
	default:
		return nil, fmt.Errorf("vector: unknown index kind %q", cfg.Kind)
	}
}

// Match is one query result.
type Match struct {
	Key   string
	Score float64
}

// Searcher answers similarity queries over an index by unsealing candidate
// vectors with the pipeline's key. It runs inside the trust boundary.
type Searcher struct {
	idx    Index
	sealer *seal.Sealer
}

func NewSearcher(idx Index, sealer *seal.Sealer) *Searcher {
	return &Searcher{idx: idx, sealer: sealer}
}

// Query returns the k nearest records by cosine similarity.
func (s *Searcher) Query(ctx context.Context, vec []float32, k int) ([]Match, error) {
	keys, err := s.idx.Keys(ctx)
	if err != nil {
		return nil, err
	}

	matches := make([]Match, 0, len(keys))
	for _, key := range keys {
		rec, err := s.idx.Get(ctx, key)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, err
		}
		candidate, err := s.sealer.Open(rec)
		if err != nil {
			// sealed under another key; not a candidate
			continue
		}
		matches = append(matches, Match{Key: key, Score: cosine(vec, candidate)})
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if k > 0 && len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
