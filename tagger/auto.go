// Package tagger provides tag suggestion adapters: a deterministic local
// heuristic used to seed tags at merge time, and an HTTP client for a remote
// AI tagging service used for asynchronous enrichment.
package tagger

import "strings"

// autoRules maps title keywords to seed tags. Order matters: the first rule
// whose keyword appears in the title wins.
var autoRules = []struct {
	keyword string
	tag     string
}{
	{"tutorial", "tutorial"},
	{"how to", "tutorial"},
	{"review", "review"},
	{"unboxing", "review"},
	{"podcast", "podcast"},
	{"interview", "interview"},
	{"trailer", "trailer"},
	{"official video", "music"},
	{"official audio", "music"},
	{"music video", "music"},
	{"lyric", "music"},
	{"live", "live"},
	{"documentary", "documentary"},
	{"lecture", "learning"},
	{"course", "learning"},
	{"talk", "talk"},
	{"gameplay", "gaming"},
	{"playthrough", "gaming"},
	{"recipe", "cooking"},
	{"vlog", "vlog"},
}

// Auto returns the deterministic seed tags for a video title. At most one tag
// is suggested; an empty slice means no rule matched.
func Auto(title string) []string {
	lower := strings.ToLower(title)
	for _, rule := range autoRules {
		if strings.Contains(lower, rule.keyword) {
			return []string{rule.tag}
		}
	}
	return nil
}
