// Package merge reconciles the existing video collection with a freshly
// captured video list, producing updated video records (refresh, archive,
// append) and merged tag state.
package merge

import (
	"sort"
	"time"

	"watchlater/capture"
	"watchlater/store"
	"watchlater/tagger"
)

// Result is the outcome of a delta merge.
type Result struct {
	// Videos is the updated video collection.
	Videos []store.Video
	// Tags is the merged tag state.
	Tags store.TagMap
	// AllTagNames is the sorted union of tag names in Tags.
	AllTagNames []string
	// NewVideos lists genuinely new videos, for asynchronous AI-tagging
	// enrichment by the caller.
	NewVideos []store.Video
}

// Engine performs delta merges. The zero value is not usable; create one
// with NewEngine.
//
// Callers must serialize merges against the local store: a second capture
// must not begin reconciling until the prior merge's writes have landed.
type Engine struct {
	// AutoTag seeds initial tags for new videos from their title.
	AutoTag func(title string) []string
	// Now supplies timestamps. Overridable for tests.
	Now func() time.Time
}

// NewEngine creates a merge engine with the default auto-tagger.
func NewEngine() *Engine {
	return &Engine{
		AutoTag: tagger.Auto,
		Now:     time.Now,
	}
}

// Delta reconciles existing videos and tags against a captured list.
//
// Videos present in both sets have their transient fields (title, channel,
// thumbnails, duration, playlist index) refreshed from the capture and are
// un-archived: reappearance proves the video is still live. Their AddedAt and
// tags are preserved untouched.
//
// Existing videos absent from the capture are archived only when complete is
// true; a partial capture cannot prove absence, so it leaves them untouched.
// Already-archived videos are never re-archived.
//
// Captured videos with no existing record are appended as new, stamped with
// the capture-provided AddedAt (or now) and seeded with auto-tags.
func (e *Engine) Delta(existing []store.Video, tags store.TagMap, captured []capture.Video, complete bool) Result {
	now := e.Now()

	byID := make(map[string]capture.Video, len(captured))
	for _, c := range captured {
		byID[c.ID] = c
	}

	out := Result{
		Videos: make([]store.Video, 0, len(existing)+len(captured)),
		Tags:   tags.Clone(),
	}

	for _, v := range existing {
		c, present := byID[v.ID]
		switch {
		case present:
			v = refresh(v, c, now)
			delete(byID, v.ID)
		case complete && !v.Archived:
			archivedAt := now
			v.Archived = true
			v.ArchivedAt = &archivedAt
			v.PlaylistIndex = nil
		}
		out.Videos = append(out.Videos, v)
	}

	// Whatever is left in the lookup is genuinely new. Walk the captured
	// slice to keep playlist order, consuming each id so a repeated capture
	// entry cannot append the same video twice.
	for _, c := range captured {
		if _, isNew := byID[c.ID]; !isNew {
			continue
		}
		delete(byID, c.ID)
		v := newVideo(c, now)
		out.Videos = append(out.Videos, v)
		out.NewVideos = append(out.NewVideos, v)
		if seeded := e.AutoTag(v.Title); len(seeded) > 0 {
			out.Tags[v.ID] = seeded
		}
	}

	out.AllTagNames = tagNames(out.Tags)
	return out
}

// refresh replaces a video's transient fields from a fresh capture and
// un-archives it. AddedAt is preserved.
func refresh(v store.Video, c capture.Video, now time.Time) store.Video {
	v.Title = c.Title
	v.Channel = c.Channel
	v.Thumbnails = c.Thumbnails
	v.Duration = c.Duration
	index := c.PlaylistIndex
	v.PlaylistIndex = &index
	if c.URL != "" {
		v.URL = c.URL
	}
	v.Archived = false
	v.ArchivedAt = nil
	v.LastSeenAt = now
	return v
}

func newVideo(c capture.Video, now time.Time) store.Video {
	addedAt := c.AddedAt
	if addedAt.IsZero() {
		addedAt = now
	}
	index := c.PlaylistIndex
	return store.Video{
		ID:            c.ID,
		URL:           c.URL,
		Title:         c.Title,
		Channel:       c.Channel,
		Duration:      c.Duration,
		Thumbnails:    c.Thumbnails,
		AddedAt:       addedAt,
		LastSeenAt:    now,
		Archived:      false,
		PlaylistIndex: &index,
	}
}

func tagNames(tags store.TagMap) []string {
	seen := make(map[string]struct{})
	for _, list := range tags {
		for _, t := range list {
			seen[t] = struct{}{}
		}
	}
	names := make([]string, 0, len(seen))
	for t := range seen {
		names = append(names, t)
	}
	sort.Strings(names)
	return names
}
