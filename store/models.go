package store

import (
	"sort"
	"time"
)

// Thumbnail is one resolution variant of a video thumbnail.
// Variants are kept in ascending resolution order, largest last.
type Thumbnail struct {
	URL    string `json:"url"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

// Video represents a bookmarked video.
type Video struct {
	ID         string      `json:"id"`  // Platform video ID, unique in the collection
	URL        string      `json:"url"` // Watch URL
	Title      string      `json:"title"`
	Channel    string      `json:"channel,omitempty"`
	Duration   int         `json:"duration,omitempty"` // Duration in seconds, 0 if unknown
	Thumbnails []Thumbnail `json:"thumbnails,omitempty"`
	AddedAt    time.Time   `json:"added_at"`
	LastSeenAt time.Time   `json:"last_seen_at"`
	Archived   bool        `json:"archived"`
	ArchivedAt *time.Time  `json:"archived_at,omitempty"`
	// PlaylistIndex is the video's position in the live source playlist.
	// Nil when unknown; always nil for archived videos.
	PlaylistIndex *int `json:"playlist_index,omitempty"`
}

// TagMap maps a video ID to its assigned tag names.
// Empty tag lists are pruned (the key is removed) rather than kept empty.
type TagMap map[string][]string

// Clone returns a deep copy of the tag map.
func (t TagMap) Clone() TagMap {
	out := make(TagMap, len(t))
	for id, tags := range t {
		cp := make([]string, len(tags))
		copy(cp, tags)
		out[id] = cp
	}
	return out
}

// TagMeta holds per-tag display metadata. Absence implies defaults.
type TagMeta struct {
	Color string `json:"color"` // Hex color string, e.g. "#ff8800"
}

// TagMetaMap maps a tag name to its metadata. Tag names are case-sensitive
// opaque strings; orphaned entries (no video carries the tag) are tolerated.
type TagMetaMap map[string]TagMeta

// Settings is the flat settings document. Unknown keys pass through
// unvalidated.
type Settings map[string]string

// Recognized settings keys.
const (
	SettingAIKey         = "ai_api_key"      // AI tagging credential
	SettingSyncEnabled   = "sync_enabled"    // Remote sync feature flag ("true"/"false")
	SettingOAuthClientID = "oauth_client_id" // Remote OAuth client identifier
	SettingCaptureSource = "capture_source"  // Capture source identifier
	SettingDebug         = "debug"           // Debug mode flag
	SettingLastSyncAt    = "last_sync_at"    // RFC3339 time of the last committed sync
)

// Credential is a cached remote bearer credential with its expiry.
// An expired credential is treated identically to no credential.
type Credential struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the credential is past its expiry.
func (c *Credential) Expired() bool {
	return !time.Now().Before(c.ExpiresAt)
}

// Snapshot bundles the three synchronized documents. Settings are local-only
// and never part of a snapshot.
type Snapshot struct {
	Videos []Video    `json:"videos"`
	Tags   TagMap     `json:"tags"`
	Meta   TagMetaMap `json:"metadata"`
}

// Empty reports whether the snapshot holds no data at all.
func (s Snapshot) Empty() bool {
	return len(s.Videos) == 0 && len(s.Tags) == 0 && len(s.Meta) == 0
}

// Equal reports structural equality with other. Video order is ignored
// (collections are compared by ID) and tag lists are compared as sets.
func (s Snapshot) Equal(other Snapshot) bool {
	if len(s.Videos) != len(other.Videos) {
		return false
	}
	byID := make(map[string]Video, len(other.Videos))
	for _, v := range other.Videos {
		byID[v.ID] = v
	}
	for _, v := range s.Videos {
		o, ok := byID[v.ID]
		if !ok || !videoEqual(v, o) {
			return false
		}
	}
	if len(s.Tags) != len(other.Tags) {
		return false
	}
	for id, tags := range s.Tags {
		if !SameTagSet(tags, other.Tags[id]) {
			return false
		}
	}
	if len(s.Meta) != len(other.Meta) {
		return false
	}
	for name, meta := range s.Meta {
		if other.Meta[name] != meta {
			return false
		}
	}
	return true
}

func videoEqual(a, b Video) bool {
	if a.ID != b.ID || a.URL != b.URL || a.Title != b.Title ||
		a.Channel != b.Channel || a.Duration != b.Duration ||
		a.Archived != b.Archived {
		return false
	}
	if !a.AddedAt.Equal(b.AddedAt) || !a.LastSeenAt.Equal(b.LastSeenAt) {
		return false
	}
	if (a.ArchivedAt == nil) != (b.ArchivedAt == nil) {
		return false
	}
	if a.ArchivedAt != nil && !a.ArchivedAt.Equal(*b.ArchivedAt) {
		return false
	}
	if (a.PlaylistIndex == nil) != (b.PlaylistIndex == nil) {
		return false
	}
	if a.PlaylistIndex != nil && *a.PlaylistIndex != *b.PlaylistIndex {
		return false
	}
	if len(a.Thumbnails) != len(b.Thumbnails) {
		return false
	}
	for i := range a.Thumbnails {
		if a.Thumbnails[i] != b.Thumbnails[i] {
			return false
		}
	}
	return true
}

// SameTagSet compares two tag lists as sets, ignoring order and duplicates.
func SameTagSet(a, b []string) bool {
	as := uniqueSorted(a)
	bs := uniqueSorted(b)
	if len(as) != len(bs) {
		return false
	}
	for i := range as {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}

func uniqueSorted(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
