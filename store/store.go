// Package store provides persistent local storage for watchlater data.
//
// Data is kept as one JSON document per logical collection (videos, tags,
// tag metadata, settings) in a data directory. Writes are atomic and notify
// in-process subscribers synchronously; writes made by another process to the
// same directory are detected through a filesystem watcher and normalized
// into the same notification shape.
package store

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors for common storage conditions.
var (
	// ErrClosed indicates the store has been closed.
	ErrClosed = errors.New("store: closed")
	// ErrInvalidInput indicates invalid or malformed input was provided.
	ErrInvalidInput = errors.New("store: invalid input")
)

// StorageError wraps storage errors with operation and document context.
// Use errors.As() to extract this error type:
//
//	var storErr *store.StorageError
//	if errors.As(err, &storErr) {
//		fmt.Printf("Failed to %s %s: %v\n", storErr.Op, storErr.Doc, storErr.Err)
//	}
type StorageError struct {
	// Op is the operation that failed ("read", "write", "delete").
	Op string
	// Doc is the document key ("videos", "tags", "metadata", "settings").
	Doc string
	// Err is the underlying error.
	Err error
}

// Error returns a string representation of the storage error.
func (e *StorageError) Error() string {
	return fmt.Sprintf("store: %s %s: %v", e.Op, e.Doc, e.Err)
}

// Unwrap returns the underlying error for use with errors.Is() and errors.As().
func (e *StorageError) Unwrap() error { return e.Err }

// DocKey identifies one of the persisted documents.
type DocKey string

// Document keys. These are also the notification keys seen by subscribers.
const (
	KeyVideos   DocKey = "videos"
	KeyTags     DocKey = "tags"
	KeyMeta     DocKey = "metadata"
	KeySettings DocKey = "settings"
)

// Change describes a document mutation delivered to subscribers.
// Value holds the new document contents: []Video, TagMap, TagMetaMap or
// Settings depending on Key.
type Change struct {
	Key   DocKey
	Value any
}

// Store is the local persistence interface. Implementations must be safe for
// concurrent use.
type Store interface {
	// Videos returns the video collection.
	Videos(ctx context.Context) ([]Video, error)
	// SetVideos replaces the video collection. Duplicate video IDs fail
	// with ErrInvalidInput.
	SetVideos(ctx context.Context, videos []Video) error
	// Tags returns the tag map.
	Tags(ctx context.Context) (TagMap, error)
	// SetTags replaces the tag map. Empty tag lists are pruned.
	SetTags(ctx context.Context, tags TagMap) error
	// Meta returns the tag metadata map.
	Meta(ctx context.Context) (TagMetaMap, error)
	// SetMeta replaces the tag metadata map.
	SetMeta(ctx context.Context, meta TagMetaMap) error
	// Settings returns the settings document.
	Settings(ctx context.Context) (Settings, error)
	// SetSettings replaces the settings document.
	SetSettings(ctx context.Context, settings Settings) error

	// Snapshot returns the three synchronized documents together.
	Snapshot(ctx context.Context) (Snapshot, error)
	// SetSnapshot replaces the three synchronized documents together.
	SetSnapshot(ctx context.Context, snap Snapshot) error

	// DeleteVideos removes videos by ID along with their tag assignments.
	// This is the only operation that drops tags for a video.
	DeleteVideos(ctx context.Context, ids []string) error

	// Clear erases videos, tags and tag metadata. Settings are preserved.
	Clear(ctx context.Context) error

	// Subscribe registers a callback invoked for every document change,
	// including changes made by an external writer. The returned function
	// unsubscribes.
	Subscribe(fn func(Change)) (unsubscribe func())

	// ClientID returns the stable random client identifier, generating and
	// persisting it on first use.
	ClientID(ctx context.Context) (string, error)

	// Credential returns the cached remote credential, or nil if none is
	// stored or the stored one has expired (expired credentials are cleared).
	Credential(ctx context.Context) (*Credential, error)
	// SetCredential caches a remote credential.
	SetCredential(ctx context.Context, cred Credential) error
	// ClearCredential removes the cached credential.
	ClearCredential(ctx context.Context) error

	// Close releases resources held by the store.
	Close() error
}
