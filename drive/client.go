// Package drive provides the remote object store client for watchlater.
//
// Documents live as named JSON files in a credential-scoped private folder
// (the Drive application data folder) that is invisible in the user's normal
// file listing. On top of plain read/write/delete, the package layers the
// cooperative lockfile primitives that gate multi-device editing.
package drive

import (
	"context"
	"encoding/json"
	"fmt"

	"watchlater/retry"
)

// Remote document names. Fixed and case-sensitive.
const (
	VideosFile = "videos.json"
	TagsFile   = "tags.json"
	MetaFile   = "metadata.json"
	LockFile   = "lockfile.json"
)

// FileInfo identifies a remote file.
type FileInfo struct {
	ID   string
	Name string
}

// FilesAPI is the minimal surface of the remote file service the client
// needs. The production implementation wraps the Drive v3 API; tests
// substitute an in-memory fake.
type FilesAPI interface {
	// List returns all files in the private folder.
	List(ctx context.Context) ([]FileInfo, error)
	// Download returns the contents of a file.
	Download(ctx context.Context, fileID string) ([]byte, error)
	// Create creates a new file with the given name and contents.
	Create(ctx context.Context, name string, data []byte) (FileInfo, error)
	// Update replaces the contents of an existing file.
	Update(ctx context.Context, fileID string, data []byte) error
	// Delete removes a file.
	Delete(ctx context.Context, fileID string) error
}

// Client reads and writes named JSON documents in the private remote folder.
//
// The remote service does not enforce name uniqueness; the client is
// responsible for not creating duplicates by always checking existence
// before writing. Lookups are linear scans of the folder listing.
type Client struct {
	api FilesAPI
	// RetryConfig tunes transient-failure retries on remote calls.
	RetryConfig retry.Config
	// Quota paces calls under the remote per-user quota. Nil disables pacing.
	Quota *QuotaLimiter
}

// NewClient creates a remote store client over the given file service.
func NewClient(api FilesAPI) *Client {
	return &Client{
		api:         api,
		RetryConfig: retry.DefaultConfig(),
		Quota:       NewQuotaLimiter(DefaultQuotaRPS),
	}
}

// retryable classifies remote errors: auth failures are permanent, as is
// context cancellation; everything else is assumed transient.
func retryable(err error) bool {
	if IsAuthError(err) {
		return false
	}
	return retry.IsRetryable(err)
}

// remoteCall runs one remote operation behind the quota limiter and the retry
// engine, feeding quota rejections back into the limiter's pace.
func (c *Client) remoteCall(ctx context.Context, fn func(context.Context) error) error {
	return retry.Do(ctx, c.RetryConfig, retryable, func(ctx context.Context) error {
		if err := c.Quota.Wait(ctx); err != nil {
			return err
		}
		err := wrapAPIError(fn(ctx))
		if err == nil {
			c.Quota.RecordSuccess()
		} else if isQuotaError(err) {
			c.Quota.RecordError()
		}
		return err
	})
}

// FindFile scans the folder listing for a file with the given name.
// Returns nil if absent. Callers must tolerate the O(n) lookup.
func (c *Client) FindFile(ctx context.Context, name string) (*FileInfo, error) {
	var files []FileInfo
	err := c.remoteCall(ctx, func(ctx context.Context) error {
		var err error
		files, err = c.api.List(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("drive: list files: %w", err)
	}
	for i := range files {
		if files[i].Name == name {
			return &files[i], nil
		}
	}
	return nil, nil
}

// ReadFile returns the raw contents of a named document, or nil if the
// document does not exist.
func (c *Client) ReadFile(ctx context.Context, name string) ([]byte, error) {
	info, err := c.FindFile(ctx, name)
	if err != nil {
		return nil, err
	}
	if info == nil {
		return nil, nil
	}
	var data []byte
	err = c.remoteCall(ctx, func(ctx context.Context) error {
		var err error
		data, err = c.api.Download(ctx, info.ID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("drive: read %s: %w", name, err)
	}
	return data, nil
}

// WriteFile writes a named document, creating it if absent and updating it
// in place otherwise. The existence check runs inside each retried attempt:
// a create that landed remotely but whose response was lost is found by the
// next attempt's listing and updated, never created a second time. A name
// never maps to more than one document.
func (c *Client) WriteFile(ctx context.Context, name string, data []byte) error {
	err := c.remoteCall(ctx, func(ctx context.Context) error {
		files, err := c.api.List(ctx)
		if err != nil {
			return err
		}
		for i := range files {
			if files[i].Name == name {
				return c.api.Update(ctx, files[i].ID, data)
			}
		}
		_, err = c.api.Create(ctx, name, data)
		return err
	})
	if err != nil {
		return fmt.Errorf("drive: write %s: %w", name, err)
	}
	return nil
}

// DeleteFile removes a named document. Deleting an absent document is a
// no-op.
func (c *Client) DeleteFile(ctx context.Context, name string) error {
	info, err := c.FindFile(ctx, name)
	if err != nil {
		return err
	}
	if info == nil {
		return nil
	}
	err = c.remoteCall(ctx, func(ctx context.Context) error {
		return c.api.Delete(ctx, info.ID)
	})
	if err != nil {
		return fmt.Errorf("drive: delete %s: %w", name, err)
	}
	return nil
}

// ReadJSON reads a named document into v. The boolean reports whether the
// document exists; malformed remote JSON is an error, not absence.
func (c *Client) ReadJSON(ctx context.Context, name string, v any) (bool, error) {
	data, err := c.ReadFile(ctx, name)
	if err != nil {
		return false, err
	}
	if data == nil {
		return false, nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("drive: decode %s: %w", name, err)
	}
	return true, nil
}

// WriteJSON marshals v and writes it as a named document.
func (c *Client) WriteJSON(ctx context.Context, name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("drive: encode %s: %w", name, err)
	}
	return c.WriteFile(ctx, name, data)
}
