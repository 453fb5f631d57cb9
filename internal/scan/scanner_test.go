package scan

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mirrorlab/codesync/internal/merkle"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
}

func TestScanner(t *testing.T) {
	t.Run("yields sorted records with digests", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "z.txt", "last")
		writeFile(t, root, "a/b.txt", "nested")
		writeFile(t, root, "a/a.txt", "first")

		res, err := NewScanner(root, nil).Scan()
		require.NoError(t, err)
		require.Len(t, res.Files, 3)

		assert.Equal(t, "a/a.txt", res.Files[0].Path)
		assert.Equal(t, "a/b.txt", res.Files[1].Path)
		assert.Equal(t, "z.txt", res.Files[2].Path)
		assert.Equal(t, merkle.HashBytes([]byte("nested")), res.Files[1].Hash)
	})

	t.Run("leaves feed merkle.FromLeaves with same root hash as Build", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "d/a.txt", "hello")
		writeFile(t, root, "d/b.txt", "world")
		writeFile(t, root, "top.txt", "lid")

		res, err := NewScanner(root, nil).Scan()
		require.NoError(t, err)

		fromScan, err := merkle.FromLeaves(filepath.Base(root), res.Leaves())
		require.NoError(t, err)

		built, err := merkle.Build(root, nil)
		require.NoError(t, err)

		assert.Equal(t, built.Tree.RootHash, fromScan.RootHash)
	})

	t.Run("ignore rules prune files and directories", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "keep.go", "package keep")
		writeFile(t, root, "node_modules/dep/index.js", "junk")
		writeFile(t, root, "app.log", "noise")
		writeFile(t, root, IgnoreFileName, "keepout/\n")
		writeFile(t, root, "keepout/secret.txt", "hidden")

		res, err := NewScanner(root, NewIgnoreList(root)).Scan()
		require.NoError(t, err)
		require.Len(t, res.Files, 1)
		assert.Equal(t, "keep.go", res.Files[0].Path)
	})

	t.Run("digest cache reused when size and mtime unchanged", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "a.txt", "hello")

		s := NewScanner(root, nil)
		first, err := s.Scan()
		require.NoError(t, err)

		second, err := s.Scan()
		require.NoError(t, err)
		assert.Equal(t, first.Files[0].Hash, second.Files[0].Hash)

		// touch with new content and a firmly different mtime
		writeFile(t, root, "a.txt", "edited")
		future := time.Now().Add(2 * time.Second)
		require.NoError(t, os.Chtimes(filepath.Join(root, "a.txt"), future, future))

		third, err := s.Scan()
		require.NoError(t, err)
		assert.Equal(t, merkle.HashBytes([]byte("edited")), third.Files[0].Hash)
	})

	t.Run("missing root fails with EnumerationError", func(t *testing.T) {
		_, err := NewScanner(filepath.Join(t.TempDir(), "gone"), nil).Scan()
		require.Error(t, err)
		var enumErr *merkle.EnumerationError
		assert.ErrorAs(t, err, &enumErr)
	})
}
