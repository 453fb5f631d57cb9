package merkle

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
}

func buildTree(t *testing.T, root string, ignore IgnoreFunc) *Tree {
	t.Helper()
	res, err := Build(root, ignore)
	require.NoError(t, err)
	require.Empty(t, res.Rejected)
	return res.Tree
}

func TestBuild(t *testing.T) {
	t.Run("deterministic across rebuilds", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "d/a.txt", "hello")
		writeFile(t, root, "d/b.txt", "world")
		writeFile(t, root, "z.txt", "zzz")

		t1 := buildTree(t, root, nil)
		t2 := buildTree(t, root, nil)
		assert.Equal(t, t1.RootHash, t2.RootHash)
	})

	t.Run("root hash independent of directory names outside tree", func(t *testing.T) {
		// two roots with identical relative content hash the same even though
		// the absolute paths differ
		rootA := filepath.Join(t.TempDir(), "proj")
		rootB := filepath.Join(t.TempDir(), "proj")
		for _, root := range []string{rootA, rootB} {
			writeFile(t, root, "a.txt", "same")
			writeFile(t, root, "sub/b.txt", "content")
		}

		assert.Equal(t, buildTree(t, rootA, nil).RootHash, buildTree(t, rootB, nil).RootHash)
	})

	t.Run("single leaf change propagates to root only through ancestors", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "d/a.txt", "hello")
		writeFile(t, root, "d/b.txt", "world")
		writeFile(t, root, "other/c.txt", "untouched")

		before := buildTree(t, root, nil)
		writeFile(t, root, "d/b.txt", "world!")
		after := buildTree(t, root, nil)

		assert.NotEqual(t, before.RootHash, after.RootHash)
		assert.NotEqual(t, before.Lookup("d").Hash, after.Lookup("d").Hash)
		assert.NotEqual(t, before.Lookup("d/b.txt").Hash, after.Lookup("d/b.txt").Hash)

		// siblings untouched
		assert.Equal(t, before.Lookup("d/a.txt").Hash, after.Lookup("d/a.txt").Hash)
		assert.Equal(t, before.Lookup("other").Hash, after.Lookup("other").Hash)
	})

	t.Run("empty directories are omitted", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "a.txt", "x")
		withEmpty := buildTree(t, root, nil)

		require.NoError(t, os.MkdirAll(filepath.Join(root, "empty", "nested"), 0o755))
		withoutFiles := buildTree(t, root, nil)

		assert.Equal(t, withEmpty.RootHash, withoutFiles.RootHash)
		assert.Nil(t, withoutFiles.Lookup("empty"))
	})

	t.Run("ignored subtree does not affect sibling hashes", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "src/main.go", "package main")
		plain := buildTree(t, root, nil)

		writeFile(t, root, "node_modules/dep/index.js", "junk")
		ignore := func(rel string, isDir bool) bool { return rel == "node_modules" }
		filtered := buildTree(t, root, ignore)

		assert.Equal(t, plain.RootHash, filtered.RootHash)
	})

	t.Run("missing root fails with EnumerationError", func(t *testing.T) {
		_, err := Build(filepath.Join(t.TempDir(), "nope"), nil)
		require.Error(t, err)
		var enumErr *EnumerationError
		assert.ErrorAs(t, err, &enumErr)
	})

	t.Run("empty root yields valid empty snapshot", func(t *testing.T) {
		tree := buildTree(t, t.TempDir(), nil)
		require.NotNil(t, tree.Root)
		assert.True(t, ValidHash(tree.RootHash))
		assert.Empty(t, Leaves(tree))
	})
}

func TestLookup(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "d/a.txt", "hello")
	tree := buildTree(t, root, nil)

	require.NotNil(t, tree.Lookup("d"))
	assert.True(t, tree.Lookup("d").IsDir())
	require.NotNil(t, tree.Lookup("d/a.txt"))
	assert.Equal(t, HashBytes([]byte("hello")), tree.Lookup("d/a.txt").Hash)
	assert.Nil(t, tree.Lookup("d/missing.txt"))
	assert.Same(t, tree.Root, tree.Lookup(""))
}

func TestValidHash(t *testing.T) {
	assert.True(t, ValidHash(HashBytes([]byte("x"))))
	assert.False(t, ValidHash("deadbeef"))
	assert.False(t, ValidHash(""))
	assert.False(t, ValidHash("zz"+HashBytes([]byte("x"))[2:]))
}
