package merkle

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"sort"
)

// Kind distinguishes file leaves from directory nodes.
type Kind string

const (
	KindFile Kind = "file"
	KindDir  Kind = "dir"
)

// Node is a single node of a hash tree. File nodes hash their content,
// directory nodes hash their children. Nodes hold no parent pointers; the
// owning Tree reaches everything by walking down from the root.
type Node struct {
	Name     string  `json:"name"`
	Kind     Kind    `json:"kind"`
	Hash     string  `json:"hash"`
	Children []*Node `json:"children,omitempty"`
}

// IsDir reports whether the node is a directory node.
func (n *Node) IsDir() bool {
	return n.Kind == KindDir
}

// Child returns the named child, or nil.
func (n *Node) Child(name string) *Node {
	for _, c := range n.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// ValidHash reports whether h is a 64-char hex sha256 digest.
func ValidHash(h string) bool {
	if len(h) != 64 {
		return false
	}
	_, err := hex.DecodeString(h)
	return err == nil
}

// HashBytes returns the hex sha256 digest of b.
func HashBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// HashReader returns the hex sha256 digest of everything read from r.
func HashReader(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// hashChildren computes a directory hash over (name, childHash) pairs sorted
// lexicographically by name. The sort makes the digest independent of the
// enumeration order the children arrived in.
func hashChildren(children []*Node) string {
	sorted := make([]*Node, len(children))
	copy(sorted, children)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	h := sha256.New()
	for _, c := range sorted {
		h.Write([]byte(c.Name))
		h.Write([]byte{0})
		h.Write([]byte(c.Hash))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// newDirNode builds a directory node, sorting children by name and computing
// the combined hash.
func newDirNode(name string, children []*Node) *Node {
	sort.Slice(children, func(i, j int) bool { return children[i].Name < children[j].Name })
	return &Node{
		Name:     name,
		Kind:     KindDir,
		Hash:     hashChildren(children),
		Children: children,
	}
}

// newFileNode builds a file leaf from a precomputed content hash.
func newFileNode(name, contentHash string) *Node {
	return &Node{
		Name: name,
		Kind: KindFile,
		Hash: contentHash,
	}
}
