package drive

import (
	"errors"
	"fmt"

	"google.golang.org/api/googleapi"
)

// Sentinel errors for remote store operations.
var (
	// ErrNotSignedIn indicates no valid credential is held.
	ErrNotSignedIn = errors.New("drive: not signed in")
	// ErrNoClientID indicates the OAuth client id is not configured.
	ErrNoClientID = errors.New("drive: oauth client id not configured")
	// ErrNoProvider indicates no token provider is available for sign-in.
	ErrNoProvider = errors.New("drive: token provider unavailable")
)

// AuthError indicates a remote operation failed for lack of a valid
// credential. The operation was aborted with no state change.
type AuthError struct {
	// Op is the operation that required authentication.
	Op string
	// Err is the underlying cause.
	Err error
}

// Error returns a string representation of the auth error.
func (e *AuthError) Error() string {
	return fmt.Sprintf("drive: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for use with errors.Is().
func (e *AuthError) Unwrap() error { return e.Err }

// APIError indicates a non-success response from the remote store. Message
// carries the error payload's message when the server supplied one.
type APIError struct {
	// StatusCode is the HTTP status code.
	StatusCode int
	// Message is the server-provided error message, if any.
	Message string
}

// Error returns a string representation of the API error.
func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("drive: api error (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("drive: api error (status %d)", e.StatusCode)
}

// wrapAPIError converts googleapi errors into APIError, extracting the
// payload message when available. Other errors pass through unchanged.
func wrapAPIError(err error) error {
	if err == nil {
		return nil
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return &APIError{StatusCode: gerr.Code, Message: gerr.Message}
	}
	return err
}

// IsAuthError reports whether err represents an authentication failure,
// either locally detected or a 401 from the remote.
func IsAuthError(err error) bool {
	if errors.Is(err, ErrNotSignedIn) || errors.Is(err, ErrNoClientID) {
		return true
	}
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return true
	}
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == 401
}
