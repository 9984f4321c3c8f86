// Package watchlater provides a personal video bookmark manager with
// tagging and cross-device synchronization over a private remote folder.
//
// The library is organized around four cooperating pieces:
//
//   - store: the persistent local document store (videos, tags, tag
//     metadata, settings) with change notification, including changes made
//     by another process
//   - merge: the delta-merge engine reconciling freshly captured video
//     lists against existing state
//   - drive: the remote object store client with cooperative lockfile
//     primitives and the auth session
//   - syncer: the orchestrator state machine owning sign-in, lock
//     take-over, conflict resolution and the push/pull verbs
//
// Quick Start
//
// Open the local store and merge a captured playlist:
//
//	st, err := store.NewDocStore(dir)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer st.Close()
//
//	payload, err := capture.ParsePayload(raw)
//	if err != nil {
//		log.Fatal(err)
//	}
//	videos, _ := st.Videos(ctx)
//	tags, _ := st.Tags(ctx)
//	result := merge.NewEngine().Delta(videos, tags, payload.Normalize(), payload.SyncComplete)
//	st.SetVideos(ctx, result.Videos)
//	st.SetTags(ctx, result.Tags)
//
// Push local data to the remote store, with the diff-and-confirm flow:
//
//	pending, err := sc.Push(ctx)
//	if err != nil {
//		log.Fatal(err)
//	}
//	if pending.Kind == syncer.PendingTakeover {
//		// ask the user before overwriting another device's lock
//		pending, err = pending.Confirm(ctx)
//	}
//	fmt.Printf("would add %d videos\n", pending.Diff.VideosAdded)
//	_, err = pending.Confirm(ctx)
//
// Configuration
//
// watchlater loads settings from multiple sources:
//
//	1. Environment variables (highest priority)
//	2. Config file (watchlater.json or ~/.config/watchlater/watchlater.json)
//	3. Default values (lowest priority)
//
// Environment variables:
//
//   - WATCHLATER_DATA_DIR: Local document store directory
//   - WATCHLATER_OAUTH_CLIENT_SECRET: OAuth client secret for sign-in
//   - WATCHLATER_AI_ENDPOINT: AI tagging service URL
//   - WATCHLATER_CAPTURE_INTERVAL: Capture source poll interval
//   - WATCHLATER_CAPTURE_TIMEOUT: Absolute capture wait window
//   - WATCHLATER_DRIFT_INTERVAL: Background drift check period
//   - WATCHLATER_MAX_RETRIES: Maximum retry attempts for remote operations
//   - WATCHLATER_INITIAL_BACKOFF: Initial retry backoff duration
//   - WATCHLATER_MAX_BACKOFF: Maximum retry backoff duration
//
// Error Handling
//
// All operations return errors that implement standard Go error handling:
//
//	if errors.Is(err, syncer.ErrRemoteEmpty) {
//		fmt.Println("nothing to pull")
//	}
//
//	var apiErr *drive.APIError
//	if errors.As(err, &apiErr) {
//		fmt.Printf("remote rejected the call: %s\n", apiErr.Message)
//	}
//
// Concurrency
//
// The store is safe for concurrent use. The syncer serializes all remote
// reads and writes behind a single mutex, so the background drift monitor
// can never interleave with an in-flight push or pull. Merge calls must be
// serialized by the caller: a second capture must not begin reconciling
// until the prior merge's writes have landed.
package watchlater
