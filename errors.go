package watchlater

import (
	"watchlater/capture"
	"watchlater/drive"
	"watchlater/retry"
	"watchlater/store"
	"watchlater/syncer"
)

// Error handling types exported for library users.
//
// All error types support the standard error handling patterns:
//
// Using errors.Is() for sentinel errors:
//
//	if errors.Is(err, watchlater.ErrRemoteEmpty) {
//		fmt.Println("remote has no data yet")
//	}
//
// Using errors.As() for wrapped errors:
//
//	var apiErr *watchlater.APIError
//	if errors.As(err, &apiErr) {
//		fmt.Printf("remote call failed: %s\n", apiErr.Message)
//	}

// Type aliases for convenient error handling.
type (
	// StorageError wraps errors during local store operations.
	StorageError = store.StorageError
	// AuthError wraps remote authentication failures.
	AuthError = drive.AuthError
	// APIError wraps non-success responses from the remote store.
	APIError = drive.APIError
	// RetryableError wraps errors that occurred after retries were exhausted.
	RetryableError = retry.RetryableError
)

// Sentinel errors exported from sub-packages.
var (
	// Remote store errors
	// ErrNotSignedIn indicates no valid credential is held.
	ErrNotSignedIn = drive.ErrNotSignedIn
	// ErrNoClientID indicates the OAuth client id is not configured.
	ErrNoClientID = drive.ErrNoClientID

	// Sync errors
	// ErrSyncDisabled indicates the remote sync feature is turned off.
	ErrSyncDisabled = syncer.ErrSyncDisabled
	// ErrBusy indicates another sync operation is in flight.
	ErrBusy = syncer.ErrBusy
	// ErrRemoteEmpty indicates a pull found no remote documents.
	ErrRemoteEmpty = syncer.ErrRemoteEmpty

	// Capture errors
	// ErrCaptureTimeout indicates the capture source never responded.
	ErrCaptureTimeout = capture.ErrTimeout
	// ErrCaptureCancelled indicates the capture poll was cancelled.
	ErrCaptureCancelled = capture.ErrCancelled
)

// IsAuthError reports whether err represents an authentication failure.
func IsAuthError(err error) bool {
	return drive.IsAuthError(err)
}
