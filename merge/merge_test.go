package merge

import (
	"testing"
	"time"

	"watchlater/capture"
	"watchlater/store"
)

var mergeNow = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func testEngine() *Engine {
	e := NewEngine()
	e.Now = func() time.Time { return mergeNow }
	return e
}

func existingVideo(id, title string) store.Video {
	return store.Video{
		ID:         id,
		Title:      title,
		AddedAt:    time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		LastSeenAt: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
	}
}

func capturedVideo(id, title string, index int) capture.Video {
	return capture.Video{ID: id, Title: title, PlaylistIndex: index}
}

func findVideo(t *testing.T, videos []store.Video, id string) store.Video {
	t.Helper()
	for _, v := range videos {
		if v.ID == id {
			return v
		}
	}
	t.Fatalf("video %s not found in %v", id, videos)
	return store.Video{}
}

func TestDeltaDuplicateCapturedIDsAppendOnce(t *testing.T) {
	e := testEngine()
	captured := []capture.Video{
		capturedVideo("dup", "Twice Scraped", 0),
		capturedVideo("dup", "Twice Scraped", 1),
	}

	result := e.Delta(nil, nil, captured, true)

	if len(result.Videos) != 1 {
		t.Fatalf("len(Videos) = %d, want 1 unique video", len(result.Videos))
	}
	if len(result.NewVideos) != 1 {
		t.Errorf("len(NewVideos) = %d, want 1", len(result.NewVideos))
	}
	v := findVideo(t, result.Videos, "dup")
	if v.PlaylistIndex == nil || *v.PlaylistIndex != 0 {
		t.Errorf("PlaylistIndex = %v, want first occurrence's 0", v.PlaylistIndex)
	}
}

func TestDeltaRefreshesTransientFields(t *testing.T) {
	e := testEngine()
	existing := []store.Video{existingVideo("v1", "Old Title")}
	captured := []capture.Video{{
		ID:            "v1",
		Title:         "New Title",
		Channel:       "Channel B",
		Duration:      321,
		Thumbnails:    []store.Thumbnail{{URL: "https://img/big.jpg", Width: 1280, Height: 720}},
		PlaylistIndex: 7,
	}}

	result := e.Delta(existing, nil, captured, true)

	v := findVideo(t, result.Videos, "v1")
	if v.Title != "New Title" || v.Channel != "Channel B" || v.Duration != 321 {
		t.Errorf("transient fields not refreshed: %+v", v)
	}
	if v.PlaylistIndex == nil || *v.PlaylistIndex != 7 {
		t.Errorf("PlaylistIndex = %v, want 7", v.PlaylistIndex)
	}
	if !v.AddedAt.Equal(existing[0].AddedAt) {
		t.Errorf("AddedAt = %v, want preserved %v", v.AddedAt, existing[0].AddedAt)
	}
	if !v.LastSeenAt.Equal(mergeNow) {
		t.Errorf("LastSeenAt = %v, want %v", v.LastSeenAt, mergeNow)
	}
	if len(result.NewVideos) != 0 {
		t.Errorf("NewVideos = %v, want none", result.NewVideos)
	}
}

func TestDeltaUnarchivesReappearingVideo(t *testing.T) {
	e := testEngine()
	archivedAt := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)
	v := existingVideo("v1", "Was Archived")
	v.Archived = true
	v.ArchivedAt = &archivedAt

	result := e.Delta([]store.Video{v}, nil, []capture.Video{capturedVideo("v1", "Was Archived", 0)}, true)

	got := findVideo(t, result.Videos, "v1")
	if got.Archived {
		t.Errorf("reappearing video still archived")
	}
	if got.ArchivedAt != nil {
		t.Errorf("ArchivedAt = %v, want cleared", got.ArchivedAt)
	}
}

func TestDeltaArchivesAbsentOnlyWhenComplete(t *testing.T) {
	tests := []struct {
		name         string
		complete     bool
		wantArchived bool
	}{
		{"complete capture archives", true, true},
		{"partial capture leaves untouched", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := testEngine()
			existing := []store.Video{existingVideo("v1", "Present"), existingVideo("v2", "Absent")}
			captured := []capture.Video{capturedVideo("v1", "Present", 0)}

			result := e.Delta(existing, nil, captured, tt.complete)

			v2 := findVideo(t, result.Videos, "v2")
			if v2.Archived != tt.wantArchived {
				t.Errorf("v2.Archived = %v, want %v", v2.Archived, tt.wantArchived)
			}
			if tt.wantArchived {
				if v2.ArchivedAt == nil || !v2.ArchivedAt.Equal(mergeNow) {
					t.Errorf("v2.ArchivedAt = %v, want %v", v2.ArchivedAt, mergeNow)
				}
				if v2.PlaylistIndex != nil {
					t.Errorf("v2.PlaylistIndex = %v, want cleared for archived video", v2.PlaylistIndex)
				}
			} else {
				// Untouched means untouched: same record as before.
				if !v2.LastSeenAt.Equal(existing[1].LastSeenAt) {
					t.Errorf("partial capture modified absent video: %+v", v2)
				}
			}
		})
	}
}

func TestDeltaDoesNotRearchiveArchived(t *testing.T) {
	e := testEngine()
	archivedAt := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)
	v := existingVideo("v1", "Long Gone")
	v.Archived = true
	v.ArchivedAt = &archivedAt

	result := e.Delta([]store.Video{v}, nil, nil, true)

	got := findVideo(t, result.Videos, "v1")
	if !got.ArchivedAt.Equal(archivedAt) {
		t.Errorf("ArchivedAt = %v, want original %v (no double-archiving)", got.ArchivedAt, archivedAt)
	}
}

func TestDeltaPreservesTagsAcrossRecapture(t *testing.T) {
	e := testEngine()
	// Title would trigger the auto-tagger if this were a new video.
	existing := []store.Video{existingVideo("v1", "Guitar tutorial for beginners")}
	tags := store.TagMap{"v1": {"hand-picked"}}

	result := e.Delta(existing, tags, []capture.Video{capturedVideo("v1", "Guitar tutorial for beginners", 0)}, true)

	if !store.SameTagSet(result.Tags["v1"], []string{"hand-picked"}) {
		t.Errorf("tags for persisting video = %v, want [hand-picked] unchanged", result.Tags["v1"])
	}
}

func TestDeltaTagsSurviveArchiving(t *testing.T) {
	e := testEngine()
	existing := []store.Video{existingVideo("v1", "Going Away")}
	tags := store.TagMap{"v1": {"keep-me"}}

	result := e.Delta(existing, tags, nil, true)

	if !findVideo(t, result.Videos, "v1").Archived {
		t.Fatal("expected v1 to be archived")
	}
	if !store.SameTagSet(result.Tags["v1"], []string{"keep-me"}) {
		t.Errorf("tags dropped for archived video: %v", result.Tags["v1"])
	}
}

func TestDeltaSeedsNewVideosWithAutoTags(t *testing.T) {
	e := testEngine()
	addedAt := time.Date(2026, 2, 25, 0, 0, 0, 0, time.UTC)
	captured := []capture.Video{{
		ID:            "new1",
		Title:         "Sourdough recipe from scratch",
		PlaylistIndex: 0,
		AddedAt:       addedAt,
	}}

	result := e.Delta(nil, nil, captured, true)

	if len(result.NewVideos) != 1 || result.NewVideos[0].ID != "new1" {
		t.Fatalf("NewVideos = %v, want [new1]", result.NewVideos)
	}
	v := findVideo(t, result.Videos, "new1")
	if v.Archived {
		t.Errorf("new video is archived")
	}
	if !v.AddedAt.Equal(addedAt) {
		t.Errorf("AddedAt = %v, want capture-provided %v", v.AddedAt, addedAt)
	}
	if !v.LastSeenAt.Equal(mergeNow) {
		t.Errorf("LastSeenAt = %v, want %v", v.LastSeenAt, mergeNow)
	}
	want := e.AutoTag("Sourdough recipe from scratch")
	if !store.SameTagSet(result.Tags["new1"], want) {
		t.Errorf("seeded tags = %v, want auto-tagger output %v", result.Tags["new1"], want)
	}
}

func TestDeltaNewVideoWithoutTimestampGetsNow(t *testing.T) {
	e := testEngine()
	result := e.Delta(nil, nil, []capture.Video{capturedVideo("new1", "Untimed", 0)}, true)

	v := findVideo(t, result.Videos, "new1")
	if !v.AddedAt.Equal(mergeNow) {
		t.Errorf("AddedAt = %v, want now %v", v.AddedAt, mergeNow)
	}
}

func TestDeltaIdempotentOnCompleteCapture(t *testing.T) {
	e := testEngine()
	existing := []store.Video{existingVideo("v1", "Stays"), existingVideo("v2", "Leaves")}
	tags := store.TagMap{"v1": {"music"}}
	captured := []capture.Video{capturedVideo("v1", "Stays", 0), capturedVideo("v3", "Arrives", 1)}

	first := e.Delta(existing, tags, captured, true)
	second := e.Delta(first.Videos, first.Tags, captured, true)

	firstSnap := store.Snapshot{Videos: first.Videos, Tags: first.Tags}
	secondSnap := store.Snapshot{Videos: second.Videos, Tags: second.Tags}
	if !firstSnap.Equal(secondSnap) {
		t.Errorf("second merge differs from first:\nfirst:  %+v\nsecond: %+v", firstSnap, secondSnap)
	}
	if len(second.NewVideos) != 0 {
		t.Errorf("second merge reported new videos: %v", second.NewVideos)
	}
	if len(second.Videos) != 3 {
		t.Errorf("second merge has %d videos, want 3 (no duplicates)", len(second.Videos))
	}
}

func TestDeltaPartialCaptureScenario(t *testing.T) {
	e := testEngine()
	existing := []store.Video{existingVideo("v1", "One"), existingVideo("v2", "Two")}
	captured := []capture.Video{capturedVideo("v1", "One", 0)}

	result := e.Delta(existing, nil, captured, false)

	v2 := findVideo(t, result.Videos, "v2")
	if v2.Archived {
		t.Errorf("partial capture archived v2")
	}
	if len(result.Videos) != 2 {
		t.Errorf("result has %d videos, want 2", len(result.Videos))
	}
}

func TestDeltaAllTagNames(t *testing.T) {
	e := testEngine()
	tags := store.TagMap{"v1": {"music", "live"}, "v2": {"music"}}
	existing := []store.Video{existingVideo("v1", "One"), existingVideo("v2", "Two")}
	captured := []capture.Video{capturedVideo("v1", "One", 0), capturedVideo("v2", "Two", 1)}

	result := e.Delta(existing, tags, captured, true)

	want := []string{"live", "music"}
	if len(result.AllTagNames) != len(want) {
		t.Fatalf("AllTagNames = %v, want %v", result.AllTagNames, want)
	}
	for i := range want {
		if result.AllTagNames[i] != want[i] {
			t.Errorf("AllTagNames = %v, want sorted %v", result.AllTagNames, want)
		}
	}
}

func TestDeltaDoesNotMutateInputTags(t *testing.T) {
	e := testEngine()
	tags := store.TagMap{"v1": {"music"}}
	captured := []capture.Video{capturedVideo("new1", "Live concert", 0)}

	e.Delta(nil, tags, captured, true)

	if len(tags) != 1 {
		t.Errorf("input tag map was mutated: %v", tags)
	}
}
