package merkle

import (
	"path"
	"sort"
	"strings"
)

// Leaves flattens a tree into a path→hash map over its file leaves. Paths
// are forward-slash relative to the root.
func Leaves(t *Tree) map[string]string {
	out := make(map[string]string)
	if t == nil || t.Root == nil {
		return out
	}
	collectLeaves(t.Root, "", out)
	return out
}

func collectLeaves(n *Node, prefix string, out map[string]string) {
	for _, c := range n.Children {
		p := path.Join(prefix, c.Name)
		if c.IsDir() {
			collectLeaves(c, p, out)
		} else {
			out[p] = c.Hash
		}
	}
}

// FromLeaves rebuilds a deterministic tree from a flattened leaf map. The
// server stores acknowledged snapshots in this form; the rebuilt tree has
// the same root hash as the client-side tree the leaves came from, provided
// the same paths carry the same hashes.
func FromLeaves(rootName string, leaves map[string]string) (*Tree, error) {
	for p, h := range leaves {
		if !ValidHash(h) {
			return nil, ErrInvalidHash
		}
		if p == "" || strings.HasPrefix(p, "/") || strings.Contains(p, "//") {
			return nil, ErrInvalidPath
		}
	}

	root := buildFromLeaves(rootName, "", leaves)
	if root == nil {
		root = newDirNode(rootName, nil)
	}
	return &Tree{RootHash: root.Hash, Root: root}, nil
}

func buildFromLeaves(name, prefix string, leaves map[string]string) *Node {
	// group direct children of prefix
	files := make(map[string]string)
	dirs := make(map[string]bool)

	for p, h := range leaves {
		rel := p
		if prefix != "" {
			if !strings.HasPrefix(p, prefix+"/") {
				continue
			}
			rel = strings.TrimPrefix(p, prefix+"/")
		}
		if i := strings.IndexByte(rel, '/'); i >= 0 {
			dirs[rel[:i]] = true
		} else {
			files[rel] = h
		}
	}

	if len(files) == 0 && len(dirs) == 0 {
		return nil
	}

	children := make([]*Node, 0, len(files)+len(dirs))
	for n, h := range files {
		children = append(children, newFileNode(n, h))
	}

	dirNames := make([]string, 0, len(dirs))
	for d := range dirs {
		dirNames = append(dirNames, d)
	}
	sort.Strings(dirNames)
	for _, d := range dirNames {
		child := buildFromLeaves(d, path.Join(prefix, d), leaves)
		if child != nil {
			children = append(children, child)
		}
	}

	return newDirNode(name, children)
}
