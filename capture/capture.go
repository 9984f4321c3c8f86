// Package capture validates inbound video lists from an external capture
// source (a browser extension or injected page script scraping a playlist)
// and provides the polling loop that waits for a capture to arrive.
package capture

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"watchlater/store"
)

// Sentinel errors for capture operations.
var (
	// ErrTimeout indicates the capture source never responded in time.
	ErrTimeout = errors.New("capture: timed out waiting for capture source")
	// ErrCancelled indicates the polling loop was cancelled.
	ErrCancelled = errors.New("capture: cancelled")
	// ErrEmptyPayload indicates the payload contained no usable entries.
	ErrEmptyPayload = errors.New("capture: payload contains no valid entries")
)

// Payload is the inbound message from the capture source.
type Payload struct {
	// Videos is the raw scraped entry list, in playlist order.
	Videos []RawEntry `json:"videos"`
	// SyncComplete is true when the capture covers the entire playlist.
	// Paginated captures deliver multiple payloads with SyncComplete=false
	// until the final batch.
	SyncComplete bool `json:"syncComplete"`
}

// RawEntry is one scraped video entry of uncertain shape. Only ID and Title
// are required; everything else is optional.
type RawEntry struct {
	ID         string            `json:"id"`
	Title      string            `json:"title"`
	URL        string            `json:"url,omitempty"`
	Channel    string            `json:"channel,omitempty"`
	Duration   DurationSeconds   `json:"duration,omitempty"`
	Thumbnails []store.Thumbnail `json:"thumbnails,omitempty"` // ascending resolution, largest last
	AddedAt    time.Time         `json:"addedAt,omitempty"`
}

// DurationSeconds accepts a duration either as a number of seconds or as an
// "H:MM:SS" / "MM:SS" string. Unparseable values decode to zero rather than
// failing the whole entry.
type DurationSeconds int

// UnmarshalJSON implements json.Unmarshaler.
func (d *DurationSeconds) UnmarshalJSON(data []byte) error {
	*d = 0
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		if n > 0 {
			*d = DurationSeconds(n)
		}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if secs, err := ParseDuration(s); err == nil {
			*d = DurationSeconds(secs)
		}
		return nil
	}
	return nil
}

// ParseDuration converts a "H:MM:SS" or "MM:SS" string (or a bare number of
// seconds) into seconds.
func ParseDuration(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty duration")
	}
	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	total := 0
	for _, part := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid duration %q", s)
		}
		total = total*60 + n
	}
	return total, nil
}

// Video is a validated capture entry ready for merging.
type Video struct {
	ID            string
	URL           string
	Title         string
	Channel       string
	Duration      int // seconds, 0 if unknown
	Thumbnails    []store.Thumbnail
	AddedAt       time.Time // capture-provided add time; zero means unknown
	PlaylistIndex int       // position in the captured playlist
}

// ParsePayload decodes raw JSON from the capture source.
func ParsePayload(raw []byte) (*Payload, error) {
	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("capture: decode payload: %w", err)
	}
	return &p, nil
}

// Normalize validates the payload at the boundary, dropping entries that lack
// the required id or title and repeated occurrences of an id already seen
// (the first keeps its playlist position). Playlist indexes follow the
// surviving order.
func (p *Payload) Normalize() []Video {
	out := make([]Video, 0, len(p.Videos))
	seen := make(map[string]struct{}, len(p.Videos))
	for _, e := range p.Videos {
		if e.ID == "" || e.Title == "" {
			continue
		}
		if _, dup := seen[e.ID]; dup {
			continue
		}
		seen[e.ID] = struct{}{}
		out = append(out, Video{
			ID:            e.ID,
			URL:           e.URL,
			Title:         e.Title,
			Channel:       e.Channel,
			Duration:      int(e.Duration),
			Thumbnails:    e.Thumbnails,
			AddedAt:       e.AddedAt,
			PlaylistIndex: len(out),
		})
	}
	return out
}
