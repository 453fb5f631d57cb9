package seal

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mirrorlab/codesync/internal/merkle"
)

func newKey(t *testing.T) []byte {
	t.Helper()
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)
	return key
}

func TestSealer(t *testing.T) {
	chunkHash := merkle.HashBytes([]byte("some chunk"))
	vector := []float32{0.25, -1.5, 3.75, 0}

	t.Run("seal and open round trip", func(t *testing.T) {
		s, err := New(newKey(t))
		require.NoError(t, err)

		rec, err := s.Seal(chunkHash, vector)
		require.NoError(t, err)
		assert.Equal(t, chunkHash, rec.ChunkHash)
		assert.Equal(t, s.KeyID(), rec.KeyID)
		assert.NotEmpty(t, rec.Nonce)

		got, err := s.Open(rec)
		require.NoError(t, err)
		assert.Equal(t, vector, got)
	})

	t.Run("fresh nonce per seal", func(t *testing.T) {
		s, err := New(newKey(t))
		require.NoError(t, err)

		a, err := s.Seal(chunkHash, vector)
		require.NoError(t, err)
		b, err := s.Seal(chunkHash, vector)
		require.NoError(t, err)

		assert.NotEqual(t, a.Nonce, b.Nonce)
		assert.NotEqual(t, a.Ciphertext, b.Ciphertext)
	})

	t.Run("tampered ciphertext fails to open", func(t *testing.T) {
		s, err := New(newKey(t))
		require.NoError(t, err)

		rec, err := s.Seal(chunkHash, vector)
		require.NoError(t, err)
		rec.Ciphertext[0] ^= 0xff

		_, err = s.Open(rec)
		assert.ErrorIs(t, err, ErrDecryption)
	})

	t.Run("record bound to its chunk hash", func(t *testing.T) {
		s, err := New(newKey(t))
		require.NoError(t, err)

		rec, err := s.Seal(chunkHash, vector)
		require.NoError(t, err)
		rec.ChunkHash = merkle.HashBytes([]byte("other chunk"))

		_, err = s.Open(rec)
		assert.ErrorIs(t, err, ErrDecryption)
	})

	t.Run("wrong key rejected by key id", func(t *testing.T) {
		s1, err := New(newKey(t))
		require.NoError(t, err)
		s2, err := New(newKey(t))
		require.NoError(t, err)

		rec, err := s1.Seal(chunkHash, vector)
		require.NoError(t, err)

		_, err = s2.Open(rec)
		assert.ErrorIs(t, err, ErrDecryption)
	})

	t.Run("short key rejected", func(t *testing.T) {
		_, err := New([]byte("too short"))
		assert.ErrorIs(t, err, ErrKeySize)
	})
}
