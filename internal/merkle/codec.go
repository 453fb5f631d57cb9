package merkle

import (
	"encoding/json"
	"fmt"
)

// Marshal serializes a tree snapshot to JSON.
func Marshal(t *Tree) ([]byte, error) {
	if t == nil || t.Root == nil {
		return nil, ErrEmptyTree
	}
	return json.Marshal(t)
}

// Unmarshal deserializes a tree snapshot and verifies it: every hash must be
// well formed and every directory hash must match its children. Snapshots
// cross a trust boundary, so a tree that doesn't hash-check is rejected.
func Unmarshal(data []byte) (*Tree, error) {
	var t Tree
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("merkle: decode snapshot: %w", err)
	}
	if err := Verify(&t); err != nil {
		return nil, err
	}
	return &t, nil
}

// Verify recomputes directory hashes bottom-up and checks them against the
// stored values, including the root hash.
func Verify(t *Tree) error {
	if t == nil || t.Root == nil {
		return ErrEmptyTree
	}
	if err := verifyNode(t.Root); err != nil {
		return err
	}
	if t.RootHash != t.Root.Hash {
		return fmt.Errorf("merkle: root hash mismatch: %w", ErrInvalidHash)
	}
	return nil
}

func verifyNode(n *Node) error {
	if !ValidHash(n.Hash) {
		return fmt.Errorf("merkle: node %q: %w", n.Name, ErrInvalidHash)
	}
	if !n.IsDir() {
		if len(n.Children) != 0 {
			return fmt.Errorf("merkle: file node %q has children: %w", n.Name, ErrInvalidHash)
		}
		return nil
	}
	for _, c := range n.Children {
		if err := verifyNode(c); err != nil {
			return err
		}
	}
	if got := hashChildren(n.Children); got != n.Hash {
		return fmt.Errorf("merkle: dir node %q hash mismatch: %w", n.Name, ErrInvalidHash)
	}
	return nil
}
