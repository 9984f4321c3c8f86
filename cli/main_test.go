package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"watchlater/config"
	"watchlater/store"
)

func newTestStore(t *testing.T) *store.DocStore {
	t.Helper()
	st, err := store.NewDocStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewDocStore() error = %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestAITagVideosMergesSuggestions(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	if err := st.SetSettings(ctx, store.Settings{store.SettingAIKey: "secret"}); err != nil {
		t.Fatalf("SetSettings() error = %v", err)
	}
	if err := st.SetTags(ctx, store.TagMap{"v1": {"keep"}}); err != nil {
		t.Fatalf("SetTags() error = %v", err)
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"tags": map[string][]string{
				"v1": {"keep", "music"},
				"v2": {"talks"},
			},
		})
	}))
	defer server.Close()

	cfg := config.DefaultConfig()
	cfg.AIEndpoint = server.URL

	videos := []store.Video{
		{ID: "v1", Title: "A Song"},
		{ID: "v2", Title: "A Talk"},
	}
	tagged, err := aiTagVideos(ctx, cfg, st, videos)
	if err != nil {
		t.Fatalf("aiTagVideos() error = %v", err)
	}
	if tagged != 2 {
		t.Errorf("aiTagVideos() = %d, want 2", tagged)
	}

	tags, err := st.Tags(ctx)
	if err != nil {
		t.Fatalf("Tags() error = %v", err)
	}
	if got := tags["v1"]; len(got) != 2 || got[0] != "keep" || got[1] != "music" {
		t.Errorf("tags[v1] = %v, want existing tag kept and suggestion appended", got)
	}
	if got := tags["v2"]; len(got) != 1 || got[0] != "talks" {
		t.Errorf("tags[v2] = %v, want [talks]", got)
	}
}

func TestAITagVideosRequiresCredential(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	cfg := config.DefaultConfig()
	cfg.AIEndpoint = "http://unused.invalid"

	_, err := aiTagVideos(ctx, cfg, st, []store.Video{{ID: "v1", Title: "Video"}})
	if !errors.Is(err, errNoAIKey) {
		t.Fatalf("aiTagVideos() error = %v, want errNoAIKey", err)
	}
}

func TestSelectVideos(t *testing.T) {
	videos := []store.Video{
		{ID: "v1", Title: "Active"},
		{ID: "v2", Title: "Archived", Archived: true},
		{ID: "v3", Title: "Also Active"},
	}

	tests := []struct {
		name            string
		ids             []string
		includeArchived bool
		want            []string
	}{
		{"default skips archived", nil, false, []string{"v1", "v3"}},
		{"archived flag includes all", nil, true, []string{"v1", "v2", "v3"}},
		{"explicit ids win over archive state", []string{"v2", "v3"}, false, []string{"v2", "v3"}},
		{"unknown id selects nothing", []string{"missing"}, false, nil},
	}

	for _, tt := range tests {
		got := selectVideos(videos, tt.ids, tt.includeArchived)
		if len(got) != len(tt.want) {
			t.Errorf("%s: selected %d videos, want %d", tt.name, len(got), len(tt.want))
			continue
		}
		for i, v := range got {
			if v.ID != tt.want[i] {
				t.Errorf("%s: selected[%d] = %s, want %s", tt.name, i, v.ID, tt.want[i])
			}
		}
	}
}
