package merkle

import (
	"os"
	"path"
	"path/filepath"
)

// Tree is an immutable snapshot of a file hierarchy. A tree is built fresh
// for every sync cycle and never mutated, so a partially-built tree can never
// be observed as a valid snapshot.
type Tree struct {
	RootHash string `json:"rootHash"`
	Root     *Node  `json:"root"`
}

// IgnoreFunc reports whether a relative path (forward-slash form) should be
// excluded from the tree. isDir is true for directories, in which case the
// whole subtree is skipped.
type IgnoreFunc func(relPath string, isDir bool) bool

// RejectedFile records a file that could not be read during a build. The
// build continues without it.
type RejectedFile struct {
	Path string
	Err  error
}

// BuildResult carries the built tree plus the files the build had to skip.
type BuildResult struct {
	Tree     *Tree
	Rejected []RejectedFile
}

// Build walks root depth-first and assembles a Merkle tree over it. File
// leaves hash their full content; directory hashes cover the name-sorted
// (name, childHash) pairs of their children. Empty directories and
// directories removed entirely by the ignore rules are omitted, which leaves
// sibling hashes unaffected.
//
// A missing or unreadable root fails with *EnumerationError. Individual
// unreadable files land in the result's reject list instead of aborting.
func Build(root string, ignore IgnoreFunc) (*BuildResult, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, &EnumerationError{Root: root, Err: err}
	}
	if !info.IsDir() {
		return nil, &EnumerationError{Root: root, Err: os.ErrInvalid}
	}

	b := &builder{root: root, ignore: ignore}
	node, err := b.buildDir(root, "")
	if err != nil {
		return nil, err
	}
	if node == nil {
		// fully ignored or empty root still yields a valid empty snapshot
		node = newDirNode(filepath.Base(root), nil)
	}

	return &BuildResult{
		Tree:     &Tree{RootHash: node.Hash, Root: node},
		Rejected: b.rejected,
	}, nil
}

type builder struct {
	root     string
	ignore   IgnoreFunc
	rejected []RejectedFile
}

// buildDir returns the node for the directory at dir (relative rel from the
// root), or nil when the directory ends up empty.
func (b *builder) buildDir(dir, rel string) (*Node, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if rel == "" {
			return nil, &EnumerationError{Root: b.root, Err: err}
		}
		b.rejected = append(b.rejected, RejectedFile{Path: rel, Err: err})
		return nil, nil
	}

	var children []*Node
	for _, entry := range entries {
		childRel := path.Join(rel, entry.Name())
		if b.ignore != nil && b.ignore(childRel, entry.IsDir()) {
			continue
		}

		childPath := filepath.Join(dir, entry.Name())
		if entry.IsDir() {
			child, err := b.buildDir(childPath, childRel)
			if err != nil {
				return nil, err
			}
			if child != nil {
				children = append(children, child)
			}
			continue
		}

		if !entry.Type().IsRegular() {
			// sockets, fifos, symlinks are not tracked
			continue
		}

		hash, err := hashFile(childPath)
		if err != nil {
			b.rejected = append(b.rejected, RejectedFile{Path: childRel, Err: err})
			continue
		}
		children = append(children, newFileNode(entry.Name(), hash))
	}

	if len(children) == 0 && rel != "" {
		return nil, nil
	}

	name := filepath.Base(dir)
	return newDirNode(name, children), nil
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return HashReader(f)
}

// Lookup walks the tree from the root and returns the node at the given
// forward-slash relative path, or nil. There are no parent pointers, so this
// re-walk is also how "which directory contains this file" questions are
// answered.
func (t *Tree) Lookup(relPath string) *Node {
	if t == nil || t.Root == nil {
		return nil
	}
	if relPath == "" || relPath == "." {
		return t.Root
	}

	node := t.Root
	for _, part := range splitPath(relPath) {
		if node == nil || !node.IsDir() {
			return nil
		}
		node = node.Child(part)
	}
	return node
}

func splitPath(p string) []string {
	var parts []string
	start := 0
	for i := 0; i <= len(p); i++ {
		if i == len(p) || p[i] == '/' {
			if i > start {
				parts = append(parts, p[start:i])
			}
			start = i + 1
		}
	}
	return parts
}
