package drive

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"golang.org/x/oauth2"
	gdrive "google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

// appDataSpace is the Drive space holding the app's private folder. Files
// written there are scoped to the OAuth client and never appear in the
// user's normal Drive listing.
const appDataSpace = "appDataFolder"

// googleFilesAPI implements FilesAPI against the Drive v3 API.
type googleFilesAPI struct {
	service *gdrive.Service
}

// NewGoogleFilesAPI creates the production FilesAPI over the Drive v3 API,
// authenticating every request with tokens from the given source.
func NewGoogleFilesAPI(ctx context.Context, source oauth2.TokenSource) (FilesAPI, error) {
	service, err := gdrive.NewService(ctx, option.WithTokenSource(source))
	if err != nil {
		return nil, fmt.Errorf("drive: create service: %w", err)
	}
	return &googleFilesAPI{service: service}, nil
}

func (g *googleFilesAPI) List(ctx context.Context) ([]FileInfo, error) {
	var files []FileInfo
	pageToken := ""
	for {
		call := g.service.Files.List().
			Spaces(appDataSpace).
			Fields("nextPageToken, files(id, name)").
			PageSize(100).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		page, err := call.Do()
		if err != nil {
			return nil, err
		}
		for _, f := range page.Files {
			files = append(files, FileInfo{ID: f.Id, Name: f.Name})
		}
		if page.NextPageToken == "" {
			return files, nil
		}
		pageToken = page.NextPageToken
	}
}

func (g *googleFilesAPI) Download(ctx context.Context, fileID string) ([]byte, error) {
	resp, err := g.service.Files.Get(fileID).Context(ctx).Download()
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

func (g *googleFilesAPI) Create(ctx context.Context, name string, data []byte) (FileInfo, error) {
	meta := &gdrive.File{
		Name:    name,
		Parents: []string{appDataSpace},
	}
	created, err := g.service.Files.Create(meta).
		Media(bytes.NewReader(data)).
		Context(ctx).
		Do()
	if err != nil {
		return FileInfo{}, err
	}
	return FileInfo{ID: created.Id, Name: created.Name}, nil
}

func (g *googleFilesAPI) Update(ctx context.Context, fileID string, data []byte) error {
	_, err := g.service.Files.Update(fileID, &gdrive.File{}).
		Media(bytes.NewReader(data)).
		Context(ctx).
		Do()
	return err
}

func (g *googleFilesAPI) Delete(ctx context.Context, fileID string) error {
	return g.service.Files.Delete(fileID).Context(ctx).Do()
}
