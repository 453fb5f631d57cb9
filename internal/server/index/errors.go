package index

import "errors"

var (
	ErrProjectNotFound = errors.New("project not found")
	ErrSyncInProgress  = errors.New("sync already in progress")
	ErrInvalidSnapshot = errors.New("invalid snapshot")
)

// Per-path reject reasons, carried verbatim in push responses so clients can
// match on them.
const (
	ReasonHashMismatch   = "E_HASH_MISMATCH"
	ReasonIndexingFailed = "E_INDEXING_FAILED"
)
