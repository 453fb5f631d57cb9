package vector

import (
	"context"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mirrorlab/codesync/internal/merkle"
	"github.com/mirrorlab/codesync/internal/seal"
)

func newSealer(t *testing.T) *seal.Sealer {
	t.Helper()
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)
	s, err := seal.New(key)
	require.NoError(t, err)
	return s
}

func TestMemoryIndex(t *testing.T) {
	ctx := context.Background()
	sealer := newSealer(t)

	sealedRecord := func(t *testing.T, name string, vec []float32) *seal.Record {
		t.Helper()
		rec, err := sealer.Seal(merkle.HashBytes([]byte(name)), vec)
		require.NoError(t, err)
		return rec
	}

	t.Run("upsert get delete", func(t *testing.T) {
		idx := NewMemoryIndex()
		rec := sealedRecord(t, "chunk-a", []float32{1, 0})

		require.NoError(t, idx.Upsert(ctx, rec))
		got, err := idx.Get(ctx, rec.ChunkHash)
		require.NoError(t, err)
		assert.Equal(t, rec.Ciphertext, got.Ciphertext)

		require.NoError(t, idx.Delete(ctx, rec.ChunkHash))
		_, err = idx.Get(ctx, rec.ChunkHash)
		assert.ErrorIs(t, err, ErrNotFound)

		// deleting a missing key is not an error
		assert.NoError(t, idx.Delete(ctx, rec.ChunkHash))
	})

	t.Run("upsert replaces", func(t *testing.T) {
		idx := NewMemoryIndex()
		hash := merkle.HashBytes([]byte("chunk-b"))

		first, err := sealer.Seal(hash, []float32{1, 0})
		require.NoError(t, err)
		second, err := sealer.Seal(hash, []float32{0, 1})
		require.NoError(t, err)

		require.NoError(t, idx.Upsert(ctx, first))
		require.NoError(t, idx.Upsert(ctx, second))
		assert.Equal(t, 1, idx.Len())

		got, err := idx.Get(ctx, hash)
		require.NoError(t, err)
		assert.Equal(t, second.Ciphertext, got.Ciphertext)
	})

	t.Run("searcher ranks by cosine similarity", func(t *testing.T) {
		idx := NewMemoryIndex()
		require.NoError(t, idx.Upsert(ctx, sealedRecord(t, "east", []float32{1, 0})))
		require.NoError(t, idx.Upsert(ctx, sealedRecord(t, "north", []float32{0, 1})))
		require.NoError(t, idx.Upsert(ctx, sealedRecord(t, "northeast", []float32{1, 1})))

		matches, err := NewSearcher(idx, sealer).Query(ctx, []float32{1, 0.1}, 2)
		require.NoError(t, err)
		require.Len(t, matches, 2)
		assert.Equal(t, merkle.HashBytes([]byte("east")), matches[0].Key)
		assert.Equal(t, merkle.HashBytes([]byte("northeast")), matches[1].Key)
	})

	t.Run("searcher skips records sealed under other keys", func(t *testing.T) {
		idx := NewMemoryIndex()
		other := newSealer(t)
		foreign, err := other.Seal(merkle.HashBytes([]byte("foreign")), []float32{1, 0})
		require.NoError(t, err)

		require.NoError(t, idx.Upsert(ctx, foreign))
		require.NoError(t, idx.Upsert(ctx, sealedRecord(t, "mine", []float32{1, 0})))

		matches, err := NewSearcher(idx, sealer).Query(ctx, []float32{1, 0}, 0)
		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.Equal(t, merkle.HashBytes([]byte("mine")), matches[0].Key)
	})
}
