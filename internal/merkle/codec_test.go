package merkle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodec(t *testing.T) {
	t.Run("round trip preserves root hash", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "d/a.txt", "hello")
		writeFile(t, root, "d/b.txt", "world")
		writeFile(t, root, "top.txt", "lid")
		tree := buildTree(t, root, nil)

		data, err := Marshal(tree)
		require.NoError(t, err)

		decoded, err := Unmarshal(data)
		require.NoError(t, err)
		assert.Equal(t, tree.RootHash, decoded.RootHash)
		assert.Equal(t, Leaves(tree), Leaves(decoded))
	})

	t.Run("tampered leaf hash is rejected", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "a.txt", "hello")
		tree := buildTree(t, root, nil)

		tree.Root.Children[0].Hash = HashBytes([]byte("tampered"))
		data, err := Marshal(tree)
		require.NoError(t, err)

		_, err = Unmarshal(data)
		assert.ErrorIs(t, err, ErrInvalidHash)
	})

	t.Run("malformed hash is rejected", func(t *testing.T) {
		_, err := Unmarshal([]byte(`{"rootHash":"xyz","root":{"name":"r","kind":"dir","hash":"xyz"}}`))
		assert.ErrorIs(t, err, ErrInvalidHash)
	})

	t.Run("nil tree cannot be marshaled", func(t *testing.T) {
		_, err := Marshal(nil)
		assert.ErrorIs(t, err, ErrEmptyTree)
	})
}

func TestFromLeaves(t *testing.T) {
	t.Run("matches filesystem build", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "d/a.txt", "hello")
		writeFile(t, root, "d/sub/b.txt", "world")
		writeFile(t, root, "top.txt", "lid")
		tree := buildTree(t, root, nil)

		rebuilt, err := FromLeaves(tree.Root.Name, Leaves(tree))
		require.NoError(t, err)
		assert.Equal(t, tree.RootHash, rebuilt.RootHash)
	})

	t.Run("empty leaf map yields empty snapshot", func(t *testing.T) {
		tree, err := FromLeaves("proj", nil)
		require.NoError(t, err)
		require.NotNil(t, tree.Root)
		assert.Empty(t, Leaves(tree))
	})

	t.Run("invalid hash rejected", func(t *testing.T) {
		_, err := FromLeaves("proj", map[string]string{"a.txt": "nope"})
		assert.ErrorIs(t, err, ErrInvalidHash)
	})

	t.Run("invalid path rejected", func(t *testing.T) {
		_, err := FromLeaves("proj", map[string]string{"/abs.txt": HashBytes([]byte("x"))})
		assert.ErrorIs(t, err, ErrInvalidPath)
	})
}
