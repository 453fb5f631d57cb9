package sdk

import (
	"errors"
	"fmt"

	"github.com/imroc/req/v3"
)

var (
	ErrNoServerURL = errors.New("sdk: server url missing")
	ErrNoProjectID = errors.New("sdk: project id missing")

	// ErrTransient marks network-level failures that already exhausted the
	// client's bounded retry budget. The caller keeps its last acknowledged
	// snapshot and surfaces a degraded-sync warning.
	ErrTransient = errors.New("sdk: transient network error")
)

const (
	// Generic request/server errors
	CodeInvalidRequest = "E_INVALID_REQUEST" // bad or invalid request
	CodeInternalError  = "E_INTERNAL_ERROR"  // internal server error
	CodeUnknownError   = "E_UNKNOWN_ERR"     // unknown error

	// Sync errors
	CodeProjectNotFound = "E_PROJECT_NOT_FOUND" // the project has not been registered
	CodeInvalidSnapshot = "E_INVALID_SNAPSHOT"  // the submitted tree snapshot failed validation
	CodeHashMismatch    = "E_HASH_MISMATCH"     // per-path reject reason: content does not match its claimed hash
	CodeSyncInProgress  = "E_SYNC_IN_PROGRESS"  // another cycle for the project is mid-commit
)

// APIError is a structured error response from the sync server.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"error"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: %s - %s", e.Code, e.Message)
}

// handleAPIError handles the common error pattern after a request.
func handleAPIError(resp *req.Response, requestErr error, operation string) error {
	if requestErr != nil {
		return fmt.Errorf("%w: %s: %v", ErrTransient, operation, requestErr)
	}

	// got a response, but the api returned an error
	if resp.IsErrorState() {
		if apiErr, ok := resp.ErrorResult().(*APIError); ok {
			return fmt.Errorf("%s: %w", operation, apiErr)
		}
		return fmt.Errorf("api error: %s: http %d", operation, resp.StatusCode)
	}

	return nil
}
