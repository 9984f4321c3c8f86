// Package diff computes the structural difference between a local and a
// remote snapshot for a given sync direction. The result is advisory: it is
// shown to the user before a push or pull commits and never mutates state.
package diff

import "watchlater/store"

// Direction selects which side is the source (pushed from) and which is the
// target (overwritten).
type Direction string

// Sync directions.
const (
	// ToRemote treats the local snapshot as source and the remote as target.
	ToRemote Direction = "to-remote"
	// FromRemote treats the remote snapshot as source and the local as target.
	FromRemote Direction = "from-remote"
)

// Result summarizes what committing the sync would change on the target.
type Result struct {
	// VideosAdded counts videos present in the source but absent from the
	// target, by ID.
	VideosAdded int
	// VideosRemoved counts videos present in the target but absent from the
	// source, by ID.
	VideosRemoved int
	// TagsAdded counts tag names appearing anywhere in the source's tag map
	// but nowhere in the target's.
	TagsAdded int
	// TagsRemoved counts tag names appearing anywhere in the target's tag
	// map but nowhere in the source's.
	TagsRemoved int
	// VideosWithTagChanges counts video IDs, over the union of both tag
	// maps, whose tag sets differ between source and target.
	VideosWithTagChanges int
	// HasChanges is true iff any count above is nonzero.
	HasChanges bool
}

// Compute diffs local against remote for the given direction.
func Compute(local, remote store.Snapshot, direction Direction) Result {
	source, target := local, remote
	if direction == FromRemote {
		source, target = remote, local
	}

	var r Result

	sourceIDs := videoIDs(source.Videos)
	targetIDs := videoIDs(target.Videos)
	for id := range sourceIDs {
		if _, ok := targetIDs[id]; !ok {
			r.VideosAdded++
		}
	}
	for id := range targetIDs {
		if _, ok := sourceIDs[id]; !ok {
			r.VideosRemoved++
		}
	}

	sourceNames := tagNameUnion(source.Tags)
	targetNames := tagNameUnion(target.Tags)
	for name := range sourceNames {
		if _, ok := targetNames[name]; !ok {
			r.TagsAdded++
		}
	}
	for name := range targetNames {
		if _, ok := sourceNames[name]; !ok {
			r.TagsRemoved++
		}
	}

	for id := range taggedIDUnion(source.Tags, target.Tags) {
		if !store.SameTagSet(source.Tags[id], target.Tags[id]) {
			r.VideosWithTagChanges++
		}
	}

	r.HasChanges = r.VideosAdded != 0 || r.VideosRemoved != 0 ||
		r.TagsAdded != 0 || r.TagsRemoved != 0 || r.VideosWithTagChanges != 0
	return r
}

func videoIDs(videos []store.Video) map[string]struct{} {
	ids := make(map[string]struct{}, len(videos))
	for _, v := range videos {
		ids[v.ID] = struct{}{}
	}
	return ids
}

func tagNameUnion(tags store.TagMap) map[string]struct{} {
	names := make(map[string]struct{})
	for _, list := range tags {
		for _, t := range list {
			names[t] = struct{}{}
		}
	}
	return names
}

func taggedIDUnion(a, b store.TagMap) map[string]struct{} {
	ids := make(map[string]struct{}, len(a)+len(b))
	for id := range a {
		ids[id] = struct{}{}
	}
	for id := range b {
		ids[id] = struct{}{}
	}
	return ids
}
