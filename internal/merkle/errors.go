package merkle

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidHash is returned when a hash is not a 64-char lowercase hex string.
	ErrInvalidHash = errors.New("merkle: invalid hash")

	// ErrEmptyTree is returned when an operation needs a tree with a root node.
	ErrEmptyTree = errors.New("merkle: empty tree")

	// ErrInvalidPath is returned for malformed leaf paths (absolute, empty,
	// or containing empty segments).
	ErrInvalidPath = errors.New("merkle: invalid path")
)

// EnumerationError means the root of a build could not be enumerated at all.
// It aborts the whole cycle; per-file read failures are reported in the
// build's reject list instead.
type EnumerationError struct {
	Root string
	Err  error
}

func (e *EnumerationError) Error() string {
	return fmt.Sprintf("merkle: enumerate %s: %v", e.Root, e.Err)
}

func (e *EnumerationError) Unwrap() error {
	return e.Err
}
