package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

var _ Store = (*DocStore)(nil)

func newTestStore(t *testing.T) *DocStore {
	t.Helper()
	s, err := NewDocStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewDocStore() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestVideoRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	index := 3
	archivedAt := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	videos := []Video{
		{
			ID:         "v1",
			URL:        "https://example.com/watch?v=v1",
			Title:      "First Video",
			Channel:    "Channel A",
			Duration:   754,
			Thumbnails: []Thumbnail{{URL: "https://img/small.jpg", Width: 120, Height: 90}, {URL: "https://img/big.jpg", Width: 1280, Height: 720}},
			AddedAt:    time.Date(2026, 1, 15, 8, 30, 0, 0, time.UTC),
			LastSeenAt: time.Date(2026, 2, 20, 9, 0, 0, 0, time.UTC),
			PlaylistIndex: &index,
		},
		{
			ID:         "v2",
			URL:        "https://example.com/watch?v=v2",
			Title:      "Second Video",
			AddedAt:    time.Date(2026, 1, 16, 8, 30, 0, 0, time.UTC),
			LastSeenAt: time.Date(2026, 1, 16, 8, 30, 0, 0, time.UTC),
			Archived:   true,
			ArchivedAt: &archivedAt,
		},
	}

	if err := s.SetVideos(ctx, videos); err != nil {
		t.Fatalf("SetVideos() error = %v", err)
	}
	got, err := s.Videos(ctx)
	if err != nil {
		t.Fatalf("Videos() error = %v", err)
	}
	want := Snapshot{Videos: videos}
	if !want.Equal(Snapshot{Videos: got}) {
		t.Errorf("Videos() = %+v, want %+v", got, videos)
	}
}

func TestSetVideosRejectsDuplicateIDs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.SetVideos(ctx, []Video{{ID: "v1", Title: "Keep"}}); err != nil {
		t.Fatalf("SetVideos() error = %v", err)
	}

	err := s.SetVideos(ctx, []Video{
		{ID: "dup", Title: "First"},
		{ID: "v2", Title: "Other"},
		{ID: "dup", Title: "Second"},
	})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("SetVideos() error = %v, want ErrInvalidInput", err)
	}

	// The rejected write must not have touched the stored collection.
	got, readErr := s.Videos(ctx)
	if readErr != nil {
		t.Fatalf("Videos() error = %v", readErr)
	}
	if len(got) != 1 || got[0].ID != "v1" {
		t.Errorf("Videos() = %+v, want the prior collection untouched", got)
	}
}

func TestTagRoundTripPrunesEmptyLists(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tags := TagMap{
		"v1": {"music", "live"},
		"v2": {},
	}
	if err := s.SetTags(ctx, tags); err != nil {
		t.Fatalf("SetTags() error = %v", err)
	}
	got, err := s.Tags(ctx)
	if err != nil {
		t.Fatalf("Tags() error = %v", err)
	}
	if _, exists := got["v2"]; exists {
		t.Errorf("empty tag list for v2 was not pruned")
	}
	if !SameTagSet(got["v1"], []string{"music", "live"}) {
		t.Errorf("Tags()[v1] = %v, want [music live]", got["v1"])
	}
}

func TestMetaRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	meta := TagMetaMap{"music": {Color: "#ff8800"}, "orphaned": {Color: "#000000"}}
	if err := s.SetMeta(ctx, meta); err != nil {
		t.Fatalf("SetMeta() error = %v", err)
	}
	got, err := s.Meta(ctx)
	if err != nil {
		t.Fatalf("Meta() error = %v", err)
	}
	if got["music"].Color != "#ff8800" || got["orphaned"].Color != "#000000" {
		t.Errorf("Meta() = %v, want %v", got, meta)
	}
}

func TestClearPreservesSettings(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.SetSettings(ctx, Settings{"theme": "dark"}); err != nil {
		t.Fatalf("SetSettings() error = %v", err)
	}
	if err := s.SetVideos(ctx, []Video{{ID: "v1", Title: "One"}}); err != nil {
		t.Fatalf("SetVideos() error = %v", err)
	}
	if err := s.SetTags(ctx, TagMap{"v1": {"music"}}); err != nil {
		t.Fatalf("SetTags() error = %v", err)
	}
	if err := s.SetMeta(ctx, TagMetaMap{"music": {Color: "#fff"}}); err != nil {
		t.Fatalf("SetMeta() error = %v", err)
	}

	if err := s.Clear(ctx); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}

	videos, _ := s.Videos(ctx)
	if len(videos) != 0 {
		t.Errorf("videos after Clear() = %v, want empty", videos)
	}
	tags, _ := s.Tags(ctx)
	if len(tags) != 0 {
		t.Errorf("tags after Clear() = %v, want empty", tags)
	}
	meta, _ := s.Meta(ctx)
	if len(meta) != 0 {
		t.Errorf("meta after Clear() = %v, want empty", meta)
	}
	settings, err := s.Settings(ctx)
	if err != nil {
		t.Fatalf("Settings() error = %v", err)
	}
	if settings["theme"] != "dark" {
		t.Errorf("settings after Clear() = %v, want theme=dark preserved", settings)
	}
}

func TestMalformedDocumentFallsBackToDefault(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "videos.json"), []byte("{not json"), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	s, err := NewDocStore(dir)
	if err != nil {
		t.Fatalf("NewDocStore() error = %v", err)
	}
	defer s.Close()

	videos, err := s.Videos(context.Background())
	if err != nil {
		t.Fatalf("Videos() error = %v, want fallback to empty default", err)
	}
	if len(videos) != 0 {
		t.Errorf("Videos() = %v, want empty", videos)
	}
}

func TestSubscribeNotifiesOnWrite(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var changes []Change
	unsubscribe := s.Subscribe(func(c Change) {
		changes = append(changes, c)
	})

	if err := s.SetVideos(ctx, []Video{{ID: "v1", Title: "One"}}); err != nil {
		t.Fatalf("SetVideos() error = %v", err)
	}
	if len(changes) != 1 {
		t.Fatalf("got %d notifications, want 1", len(changes))
	}
	if changes[0].Key != KeyVideos {
		t.Errorf("notification key = %q, want %q", changes[0].Key, KeyVideos)
	}
	videos, ok := changes[0].Value.([]Video)
	if !ok || len(videos) != 1 || videos[0].ID != "v1" {
		t.Errorf("notification value = %v, want the written collection", changes[0].Value)
	}

	unsubscribe()
	if err := s.SetTags(ctx, TagMap{"v1": {"music"}}); err != nil {
		t.Fatalf("SetTags() error = %v", err)
	}
	if len(changes) != 1 {
		t.Errorf("got %d notifications after unsubscribe, want 1", len(changes))
	}
}

func TestExternalWriteDetected(t *testing.T) {
	dir := t.TempDir()
	s, err := NewDocStore(dir)
	if err != nil {
		t.Fatalf("NewDocStore() error = %v", err)
	}
	defer s.Close()

	got := make(chan Change, 1)
	s.Subscribe(func(c Change) {
		select {
		case got <- c:
		default:
		}
	})

	// Simulate another process writing the settings document directly.
	data := []byte(`{"theme":"light"}`)
	if err := os.WriteFile(filepath.Join(dir, "settings.json"), data, 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	select {
	case c := <-got:
		if c.Key != KeySettings {
			t.Errorf("notification key = %q, want %q", c.Key, KeySettings)
		}
		settings, ok := c.Value.(Settings)
		if !ok || settings["theme"] != "light" {
			t.Errorf("notification value = %v, want settings with theme=light", c.Value)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no notification for external write")
	}
}

func TestDeleteVideosDropsTags(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.SetVideos(ctx, []Video{{ID: "v1"}, {ID: "v2"}}); err != nil {
		t.Fatalf("SetVideos() error = %v", err)
	}
	if err := s.SetTags(ctx, TagMap{"v1": {"music"}, "v2": {"live"}}); err != nil {
		t.Fatalf("SetTags() error = %v", err)
	}

	if err := s.DeleteVideos(ctx, []string{"v1"}); err != nil {
		t.Fatalf("DeleteVideos() error = %v", err)
	}

	videos, _ := s.Videos(ctx)
	if len(videos) != 1 || videos[0].ID != "v2" {
		t.Errorf("videos after delete = %v, want [v2]", videos)
	}
	tags, _ := s.Tags(ctx)
	if _, exists := tags["v1"]; exists {
		t.Errorf("tags for deleted video v1 were not dropped")
	}
	if !SameTagSet(tags["v2"], []string{"live"}) {
		t.Errorf("tags for surviving video v2 = %v, want [live]", tags["v2"])
	}
}

func TestClientIDStable(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := NewDocStore(dir)
	if err != nil {
		t.Fatalf("NewDocStore() error = %v", err)
	}
	first, err := s.ClientID(ctx)
	if err != nil {
		t.Fatalf("ClientID() error = %v", err)
	}
	if first == "" {
		t.Fatal("ClientID() returned empty id")
	}
	second, _ := s.ClientID(ctx)
	if second != first {
		t.Errorf("ClientID() changed within one instance: %q vs %q", first, second)
	}
	s.Close()

	// A new instance over the same directory sees the same identity.
	s2, err := NewDocStore(dir)
	if err != nil {
		t.Fatalf("NewDocStore() reopen error = %v", err)
	}
	defer s2.Close()
	reopened, _ := s2.ClientID(ctx)
	if reopened != first {
		t.Errorf("ClientID() after reopen = %q, want %q", reopened, first)
	}
}

func TestCredentialExpiryTreatedAsAbsence(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if cred, _ := s.Credential(ctx); cred != nil {
		t.Fatalf("Credential() = %v, want nil before any sign-in", cred)
	}

	valid := Credential{Token: "tok", ExpiresAt: time.Now().Add(time.Hour)}
	if err := s.SetCredential(ctx, valid); err != nil {
		t.Fatalf("SetCredential() error = %v", err)
	}
	cred, err := s.Credential(ctx)
	if err != nil {
		t.Fatalf("Credential() error = %v", err)
	}
	if cred == nil || cred.Token != "tok" {
		t.Fatalf("Credential() = %v, want the stored credential", cred)
	}

	expired := Credential{Token: "old", ExpiresAt: time.Now().Add(-time.Minute)}
	if err := s.SetCredential(ctx, expired); err != nil {
		t.Fatalf("SetCredential() error = %v", err)
	}
	cred, err = s.Credential(ctx)
	if err != nil {
		t.Fatalf("Credential() error = %v", err)
	}
	if cred != nil {
		t.Errorf("Credential() = %v, want nil for expired credential", cred)
	}
	// Expired credential is cleared, not just hidden.
	if _, err := os.Stat(filepath.Join(s.dir, credentialFile)); !os.IsNotExist(err) {
		t.Errorf("expired credential file still present")
	}
}

func TestPersistenceAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := NewDocStore(dir)
	if err != nil {
		t.Fatalf("NewDocStore() error = %v", err)
	}
	if err := s.SetVideos(ctx, []Video{{ID: "v1", Title: "Persisted"}}); err != nil {
		t.Fatalf("SetVideos() error = %v", err)
	}
	if err := s.SetSettings(ctx, Settings{SettingSyncEnabled: "true"}); err != nil {
		t.Fatalf("SetSettings() error = %v", err)
	}
	s.Close()

	s2, err := NewDocStore(dir)
	if err != nil {
		t.Fatalf("NewDocStore() reopen error = %v", err)
	}
	defer s2.Close()

	videos, err := s2.Videos(ctx)
	if err != nil {
		t.Fatalf("Videos() error = %v", err)
	}
	if len(videos) != 1 || videos[0].Title != "Persisted" {
		t.Errorf("videos after reopen = %v, want the persisted collection", videos)
	}
	settings, _ := s2.Settings(ctx)
	if settings[SettingSyncEnabled] != "true" {
		t.Errorf("settings after reopen = %v, want sync_enabled=true", settings)
	}
}
