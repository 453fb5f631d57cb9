package api

const (
	// Generic request/server errors
	CodeInvalidRequest = "E_INVALID_REQUEST" // bad or invalid request
	CodeInternalError  = "E_INTERNAL_ERROR"  // internal server error

	// Sync errors. Per-path hash-mismatch rejects are not error responses;
	// they travel inside the push result with reasons from the index package.
	CodeProjectNotFound = "E_PROJECT_NOT_FOUND" // the project is not registered on this server.
	CodeInvalidSnapshot = "E_INVALID_SNAPSHOT"  // the pushed snapshot leaves are malformed.
	CodeSyncInProgress  = "E_SYNC_IN_PROGRESS"  // another push for the same project is still running.
)
