package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
)

// File names inside the data directory.
const (
	videosFile     = "videos.json"
	tagsFile       = "tags.json"
	metaFile       = "metadata.json"
	settingsFile   = "settings.json"
	clientIDFile   = "client_id"
	credentialFile = "credential.json"
)

var docFiles = map[string]DocKey{
	videosFile:   KeyVideos,
	tagsFile:     KeyTags,
	metaFile:     KeyMeta,
	settingsFile: KeySettings,
}

// DocStore implements Store using one JSON file per document.
//
// A filesystem watcher on the data directory detects writes made by another
// process and delivers them to subscribers in the same shape as in-process
// writes. Malformed persisted JSON is treated as absence: reads fall back to
// the document's empty default instead of failing.
type DocStore struct {
	dir     string
	watcher *fsnotify.Watcher

	mu      sync.Mutex
	cache   map[DocKey][]byte // last serialized contents seen per document
	subs    map[int]func(Change)
	nextSub int
	closed  bool
	done    chan struct{}
}

// NewDocStore creates a document store rooted at dir, creating the directory
// if needed and starting the external-change watcher.
func NewDocStore(dir string) (*DocStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, &StorageError{Op: "open", Doc: "store", Err: err}
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, &StorageError{Op: "open", Doc: "store", Err: err}
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, &StorageError{Op: "open", Doc: "store", Err: err}
	}

	s := &DocStore{
		dir:     dir,
		watcher: watcher,
		cache:   make(map[DocKey][]byte),
		subs:    make(map[int]func(Change)),
		done:    make(chan struct{}),
	}
	go s.watch()
	return s, nil
}

// watch forwards external file writes to subscribers.
func (s *DocStore) watch() {
	for {
		select {
		case <-s.done:
			return
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			key, ok := docFiles[filepath.Base(event.Name)]
			if !ok {
				continue
			}
			s.externalChange(key)
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("store: watcher error: %v", err)
		}
	}
}

// externalChange reloads a document after an out-of-band write and notifies
// subscribers if the contents actually changed. Writes made through this
// store are filtered out by comparing against the cached serialization.
func (s *DocStore) externalChange(key DocKey) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	raw, err := os.ReadFile(s.docPath(key))
	if err != nil {
		s.mu.Unlock()
		return
	}
	if bytes.Equal(raw, s.cache[key]) {
		s.mu.Unlock()
		return
	}
	s.cache[key] = raw
	value := decodeDoc(key, raw)
	subs := s.snapshotSubs()
	s.mu.Unlock()

	for _, fn := range subs {
		fn(Change{Key: key, Value: value})
	}
}

func (s *DocStore) docPath(key DocKey) string {
	for name, k := range docFiles {
		if k == key {
			return filepath.Join(s.dir, name)
		}
	}
	return filepath.Join(s.dir, string(key)+".json")
}

// decodeDoc parses raw JSON into the typed document for key, falling back to
// the empty default on malformed input.
func decodeDoc(key DocKey, raw []byte) any {
	switch key {
	case KeyVideos:
		var v []Video
		if err := json.Unmarshal(raw, &v); err != nil || v == nil {
			return []Video{}
		}
		return v
	case KeyTags:
		var t TagMap
		if err := json.Unmarshal(raw, &t); err != nil || t == nil {
			return TagMap{}
		}
		return t
	case KeyMeta:
		var m TagMetaMap
		if err := json.Unmarshal(raw, &m); err != nil || m == nil {
			return TagMetaMap{}
		}
		return m
	case KeySettings:
		var st Settings
		if err := json.Unmarshal(raw, &st); err != nil || st == nil {
			return Settings{}
		}
		return st
	}
	return nil
}

// readDoc loads and decodes a document. A missing file or malformed JSON
// yields the empty default, never an error.
func (s *DocStore) readDoc(key DocKey) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	raw, err := os.ReadFile(s.docPath(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return decodeDoc(key, nil), nil
		}
		return nil, &StorageError{Op: "read", Doc: string(key), Err: err}
	}
	s.cache[key] = raw
	return decodeDoc(key, raw), nil
}

// writeDoc persists a document atomically and synchronously notifies
// in-process subscribers.
func (s *DocStore) writeDoc(key DocKey, value any) error {
	raw, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return &StorageError{Op: "write", Doc: string(key), Err: err}
	}
	raw = append(raw, '\n')

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	writer, err := NewAtomicWriter(s.docPath(key))
	if err != nil {
		s.mu.Unlock()
		return &StorageError{Op: "write", Doc: string(key), Err: err}
	}
	if _, err := writer.Write(raw); err != nil {
		writer.Abort()
		s.mu.Unlock()
		return &StorageError{Op: "write", Doc: string(key), Err: err}
	}
	if err := writer.Commit(); err != nil {
		s.mu.Unlock()
		return &StorageError{Op: "write", Doc: string(key), Err: err}
	}
	s.cache[key] = raw
	subs := s.snapshotSubs()
	s.mu.Unlock()

	for _, fn := range subs {
		fn(Change{Key: key, Value: value})
	}
	return nil
}

// snapshotSubs copies the subscriber list. Caller must hold mu.
func (s *DocStore) snapshotSubs() []func(Change) {
	subs := make([]func(Change), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	return subs
}

func (s *DocStore) Videos(ctx context.Context) ([]Video, error) {
	v, err := s.readDoc(KeyVideos)
	if err != nil {
		return nil, err
	}
	return v.([]Video), nil
}

// SetVideos replaces the video collection. IDs must be unique within the
// collection; a duplicate fails with ErrInvalidInput before anything is
// written.
func (s *DocStore) SetVideos(ctx context.Context, videos []Video) error {
	if videos == nil {
		videos = []Video{}
	}
	seen := make(map[string]struct{}, len(videos))
	for _, v := range videos {
		if _, dup := seen[v.ID]; dup {
			return &StorageError{Op: "write", Doc: string(KeyVideos),
				Err: fmt.Errorf("%w: duplicate video id %q", ErrInvalidInput, v.ID)}
		}
		seen[v.ID] = struct{}{}
	}
	return s.writeDoc(KeyVideos, videos)
}

func (s *DocStore) Tags(ctx context.Context) (TagMap, error) {
	v, err := s.readDoc(KeyTags)
	if err != nil {
		return nil, err
	}
	return v.(TagMap), nil
}

func (s *DocStore) SetTags(ctx context.Context, tags TagMap) error {
	pruned := make(TagMap, len(tags))
	for id, list := range tags {
		if len(list) == 0 {
			continue
		}
		pruned[id] = list
	}
	return s.writeDoc(KeyTags, pruned)
}

func (s *DocStore) Meta(ctx context.Context) (TagMetaMap, error) {
	v, err := s.readDoc(KeyMeta)
	if err != nil {
		return nil, err
	}
	return v.(TagMetaMap), nil
}

func (s *DocStore) SetMeta(ctx context.Context, meta TagMetaMap) error {
	if meta == nil {
		meta = TagMetaMap{}
	}
	return s.writeDoc(KeyMeta, meta)
}

func (s *DocStore) Settings(ctx context.Context) (Settings, error) {
	v, err := s.readDoc(KeySettings)
	if err != nil {
		return nil, err
	}
	return v.(Settings), nil
}

func (s *DocStore) SetSettings(ctx context.Context, settings Settings) error {
	if settings == nil {
		settings = Settings{}
	}
	return s.writeDoc(KeySettings, settings)
}

func (s *DocStore) Snapshot(ctx context.Context) (Snapshot, error) {
	videos, err := s.Videos(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	tags, err := s.Tags(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	meta, err := s.Meta(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Videos: videos, Tags: tags, Meta: meta}, nil
}

func (s *DocStore) SetSnapshot(ctx context.Context, snap Snapshot) error {
	if err := s.SetVideos(ctx, snap.Videos); err != nil {
		return err
	}
	if err := s.SetTags(ctx, snap.Tags); err != nil {
		return err
	}
	return s.SetMeta(ctx, snap.Meta)
}

// DeleteVideos removes videos by ID along with their tag assignments. IDs not
// present in the collection are ignored.
func (s *DocStore) DeleteVideos(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}

	videos, err := s.Videos(ctx)
	if err != nil {
		return err
	}
	kept := make([]Video, 0, len(videos))
	for _, v := range videos {
		if _, gone := drop[v.ID]; !gone {
			kept = append(kept, v)
		}
	}
	if err := s.SetVideos(ctx, kept); err != nil {
		return err
	}

	tags, err := s.Tags(ctx)
	if err != nil {
		return err
	}
	for id := range drop {
		delete(tags, id)
	}
	return s.SetTags(ctx, tags)
}

// Clear erases videos, tags and tag metadata. Settings are preserved.
func (s *DocStore) Clear(ctx context.Context) error {
	if err := s.SetVideos(ctx, []Video{}); err != nil {
		return err
	}
	if err := s.SetTags(ctx, TagMap{}); err != nil {
		return err
	}
	return s.SetMeta(ctx, TagMetaMap{})
}

func (s *DocStore) Subscribe(fn func(Change)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

// ClientID returns the stable random client identifier, generating and
// persisting one on first use.
func (s *DocStore) ClientID(ctx context.Context) (string, error) {
	path := filepath.Join(s.dir, clientIDFile)
	raw, err := os.ReadFile(path)
	if err == nil && len(bytes.TrimSpace(raw)) > 0 {
		return string(bytes.TrimSpace(raw)), nil
	}
	id := uuid.NewString()
	if err := os.WriteFile(path, []byte(id+"\n"), 0600); err != nil {
		return "", &StorageError{Op: "write", Doc: "client_id", Err: err}
	}
	return id, nil
}

// Credential returns the cached remote credential, or nil if none is stored
// or the stored one has expired. Expired credentials are cleared eagerly.
func (s *DocStore) Credential(ctx context.Context) (*Credential, error) {
	raw, err := os.ReadFile(filepath.Join(s.dir, credentialFile))
	if err != nil {
		return nil, nil
	}
	var cred Credential
	if err := json.Unmarshal(raw, &cred); err != nil || cred.Token == "" {
		return nil, nil
	}
	if cred.Expired() {
		if err := s.ClearCredential(ctx); err != nil {
			return nil, err
		}
		return nil, nil
	}
	return &cred, nil
}

func (s *DocStore) SetCredential(ctx context.Context, cred Credential) error {
	raw, err := json.MarshalIndent(cred, "", "  ")
	if err != nil {
		return &StorageError{Op: "write", Doc: "credential", Err: err}
	}
	if err := os.WriteFile(filepath.Join(s.dir, credentialFile), raw, 0600); err != nil {
		return &StorageError{Op: "write", Doc: "credential", Err: err}
	}
	return nil
}

func (s *DocStore) ClearCredential(ctx context.Context) error {
	err := os.Remove(filepath.Join(s.dir, credentialFile))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return &StorageError{Op: "delete", Doc: "credential", Err: err}
	}
	return nil
}

// Close stops the external-change watcher and releases resources.
func (s *DocStore) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.done)
	s.mu.Unlock()
	return s.watcher.Close()
}
