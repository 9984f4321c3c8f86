package tagger

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"watchlater/store"
)

func TestAuto(t *testing.T) {
	tests := []struct {
		title string
		want  string
	}{
		{"Guitar Tutorial For Beginners", "tutorial"},
		{"How to fix a leaking tap", "tutorial"},
		{"iPhone 20 Review", "review"},
		{"UNBOXING my new camera", "review"},
		{"Artist - Song (Official Video)", "music"},
		{"Band Live at the Arena", "live"},
		{"Sourdough recipe from scratch", "cooking"},
		{"Random daily upload", ""},
	}

	for _, tt := range tests {
		got := Auto(tt.title)
		if tt.want == "" {
			if len(got) != 0 {
				t.Errorf("Auto(%q) = %v, want no tags", tt.title, got)
			}
			continue
		}
		if len(got) != 1 || got[0] != tt.want {
			t.Errorf("Auto(%q) = %v, want [%s]", tt.title, got, tt.want)
		}
	}
}

func TestAutoDeterministic(t *testing.T) {
	// Two rules match; the earlier one must win every time.
	title := "Live interview with the author"
	first := Auto(title)
	for i := 0; i < 10; i++ {
		got := Auto(title)
		if len(got) != 1 || got[0] != first[0] {
			t.Fatalf("Auto(%q) = %v on run %d, want stable %v", title, got, i, first)
		}
	}
}

func batchVideos() []store.Video {
	return []store.Video{
		{ID: "v1", Title: "First", Channel: "Chan A"},
		{ID: "v2", Title: "Second"},
	}
}

func TestAIClientBatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret" {
			t.Errorf("Authorization = %q, want bearer token", r.Header.Get("Authorization"))
		}
		var req aiRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(req.Videos) != 2 {
			t.Errorf("request carried %d videos, want 2", len(req.Videos))
		}
		json.NewEncoder(w).Encode(aiResponse{Tags: map[string][]string{
			"v1":       {"music", "live"},
			"v2":       {},
			"intruder": {"spam"},
		}})
	}))
	defer srv.Close()

	tags, err := NewAIClient(srv.URL).Batch(context.Background(), batchVideos(), "secret")
	if err != nil {
		t.Fatalf("Batch() error = %v", err)
	}
	if len(tags) != 1 {
		t.Fatalf("Batch() = %v, want suggestions for v1 only", tags)
	}
	if !store.SameTagSet(tags["v1"], []string{"music", "live"}) {
		t.Errorf("tags[v1] = %v, want [music live]", tags["v1"])
	}
}

func TestAIClientBatchMalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"tags": "not a map"`))
	}))
	defer srv.Close()

	tags, err := NewAIClient(srv.URL).Batch(context.Background(), batchVideos(), "secret")
	if err != nil {
		t.Fatalf("Batch() error = %v, want nil for malformed response", err)
	}
	if len(tags) != 0 {
		t.Errorf("Batch() = %v, want empty map", tags)
	}
}

func TestAIClientBatchServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	tags, err := NewAIClient(srv.URL).Batch(context.Background(), batchVideos(), "secret")
	if err != nil {
		t.Fatalf("Batch() error = %v, want nil for non-200 response", err)
	}
	if len(tags) != 0 {
		t.Errorf("Batch() = %v, want empty map", tags)
	}
}

func TestAIClientBatchSkipsWithoutCredential(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	tags, err := NewAIClient(srv.URL).Batch(context.Background(), batchVideos(), "")
	if err != nil {
		t.Fatalf("Batch() error = %v", err)
	}
	if len(tags) != 0 || called {
		t.Errorf("Batch() without credential made a request (called=%v, tags=%v)", called, tags)
	}
}
