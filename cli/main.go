package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"watchlater/capture"
	"watchlater/config"
	"watchlater/drive"
	"watchlater/merge"
	"watchlater/store"
	"watchlater/syncer"
	"watchlater/tagger"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "status":
		cmdStatus(args)
	case "list":
		cmdList(args)
	case "capture":
		cmdCapture(args)
	case "watch":
		cmdWatch(args)
	case "push":
		cmdPush(args)
	case "pull":
		cmdPull(args)
	case "signin":
		cmdSignIn(args)
	case "signout":
		cmdSignOut(args)
	case "tags":
		cmdTags(args)
	case "retag":
		cmdRetag(args)
	case "delete":
		cmdDelete(args)
	case "set":
		cmdSet(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command %q\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `watchlater - video bookmark manager with remote sync

Usage:
  watchlater status                    Show sync mode and drift state
  watchlater list [flags]              List bookmarked videos
  watchlater capture <payload.json>    Merge a captured video list
  watchlater watch                     Poll the capture inbox and monitor drift
  watchlater push [-y]                 Push local data to the remote store
  watchlater pull [-y]                 Pull remote data into the local store
  watchlater signin                    Sign in and resolve initial data
  watchlater signout                   Sign out and release the editor lock
  watchlater tags                      List tag names with usage counts
  watchlater retag [flags] [id...]     Re-run AI tagging over stored videos
  watchlater delete <id> [id...]       Delete videos (and their tags)
  watchlater set <key> <value>         Update a settings key
  watchlater help                      Show this help message

Examples:
  watchlater capture playlist.json             # Reconcile a scraped playlist
  watchlater set sync_enabled true             # Turn on remote sync
  watchlater set oauth_client_id <client-id>   # Configure the OAuth client
  watchlater push                              # Preview diff, then confirm
`)
}

// app bundles the wired-up components for a command invocation.
type app struct {
	cfg   *config.Config
	store *store.DocStore
	sync  *syncer.Syncer
}

func openStore() (*config.Config, *store.DocStore) {
	cfg, err := config.Load()
	if err != nil {
		fatalf("Error loading config: %v", err)
	}
	st, err := store.NewDocStore(cfg.DataDir)
	if err != nil {
		fatalf("Error opening store: %v", err)
	}
	return cfg, st
}

// openApp wires the full stack including the remote client.
func openApp(ctx context.Context) *app {
	cfg, st := openStore()

	settings, err := st.Settings(ctx)
	if err != nil {
		fatalf("Error reading settings: %v", err)
	}
	provider, err := drive.NewOAuthProvider(
		settings[store.SettingOAuthClientID],
		cfg.OAuthClientSecret,
		promptAuthCode,
	)
	if err != nil && !errors.Is(err, drive.ErrNoClientID) {
		fatalf("Error configuring auth: %v", err)
	}
	var auth *drive.AuthSession
	if provider != nil {
		auth, err = drive.NewAuthSession(st, provider)
		if err != nil {
			fatalf("Error creating auth session: %v", err)
		}
	} else {
		// No OAuth client configured: a stub provider keeps local-only
		// commands working while sign-in fails fast.
		auth, _ = drive.NewAuthSession(st, unconfiguredProvider{})
	}

	api, err := drive.NewGoogleFilesAPI(ctx, auth.TokenSource(ctx))
	if err != nil {
		fatalf("Error creating remote client: %v", err)
	}
	client := drive.NewClient(api)
	client.RetryConfig.MaxRetries = cfg.MaxRetries
	client.RetryConfig.InitialBackoff = cfg.InitialBackoff
	client.RetryConfig.MaxBackoff = cfg.MaxBackoff
	client.RetryConfig.Multiplier = cfg.BackoffMultiplier

	sc, err := syncer.New(ctx, st, client, auth)
	if err != nil {
		fatalf("Error creating syncer: %v", err)
	}
	return &app{cfg: cfg, store: st, sync: sc}
}

// unconfiguredProvider fails every sign-in attempt with ErrNoClientID.
type unconfiguredProvider struct{}

func (unconfiguredProvider) Obtain(ctx context.Context) (*store.Credential, error) {
	return nil, drive.ErrNoClientID
}

func (unconfiguredProvider) Revoke(ctx context.Context, token string) error { return nil }

func promptAuthCode(authURL string) (string, error) {
	fmt.Fprintf(os.Stderr, "Open this URL in a browser and authorize access:\n\n  %s\n\nEnter the authorization code: ", authURL)
	reader := bufio.NewReader(os.Stdin)
	code, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(code), nil
}

func confirm(prompt string) bool {
	fmt.Fprintf(os.Stderr, "%s [y/N]: ", prompt)
	reader := bufio.NewReader(os.Stdin)
	answer, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func cmdStatus(args []string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	a := openApp(ctx)
	defer a.store.Close()

	if a.sync.Mode() != syncer.ModeDisabled {
		if _, err := a.sync.CheckDrift(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: drift check failed: %v\n", err)
		}
	}
	status := a.sync.Status()
	fmt.Printf("Mode:        %s\n", status.Mode)
	fmt.Printf("Client ID:   %s\n", a.sync.ClientID())
	if status.LastSyncAt.IsZero() {
		fmt.Printf("Last sync:   never\n")
	} else {
		fmt.Printf("Last sync:   %s\n", status.LastSyncAt.Format(time.RFC3339))
	}
	fmt.Printf("Unsynced:    %v\n", status.HasUnsyncedChanges)
}

func cmdList(args []string) {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	archived := fs.Bool("archived", false, "Show archived videos instead of active ones")
	tag := fs.String("tag", "", "Only videos carrying this tag")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: watchlater list [flags]\n\nFlags:\n")
		fs.PrintDefaults()
	}
	fs.Parse(args)

	ctx := context.Background()
	_, st := openStore()
	defer st.Close()

	videos, err := st.Videos(ctx)
	if err != nil {
		fatalf("Error reading videos: %v", err)
	}
	tags, err := st.Tags(ctx)
	if err != nil {
		fatalf("Error reading tags: %v", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "VIDEO ID\tTITLE\tCHANNEL\tDURATION\tTAGS")
	shown := 0
	for _, v := range videos {
		if v.Archived != *archived {
			continue
		}
		if *tag != "" && !hasTag(tags[v.ID], *tag) {
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			v.ID,
			truncate(v.Title, 50),
			truncate(v.Channel, 20),
			formatDuration(v.Duration),
			strings.Join(tags[v.ID], ","),
		)
		shown++
	}
	w.Flush()
	fmt.Fprintf(os.Stderr, "\nTotal: %d videos\n", shown)
}

func cmdCapture(args []string) {
	fs := flag.NewFlagSet("capture", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: watchlater capture <payload.json>\n")
	}
	fs.Parse(args)

	argv := fs.Args()
	if len(argv) == 0 {
		fmt.Fprintf(os.Stderr, "Error: missing payload file\n")
		fs.Usage()
		os.Exit(1)
	}

	raw, err := os.ReadFile(argv[0])
	if err != nil {
		fatalf("Error reading payload: %v", err)
	}
	payload, err := capture.ParsePayload(raw)
	if err != nil {
		fatalf("Error parsing payload: %v", err)
	}
	ctx := context.Background()
	cfg, st := openStore()
	defer st.Close()

	if err := applyPayload(ctx, cfg, st, payload); err != nil {
		fatalf("Error: %v", err)
	}
}

// applyPayload merges a capture payload into the store and runs best-effort
// AI enrichment for the new videos.
func applyPayload(ctx context.Context, cfg *config.Config, st *store.DocStore, payload *capture.Payload) error {
	captured := payload.Normalize()
	if len(captured) == 0 {
		return capture.ErrEmptyPayload
	}

	existing, err := st.Videos(ctx)
	if err != nil {
		return err
	}
	tags, err := st.Tags(ctx)
	if err != nil {
		return err
	}

	result := merge.NewEngine().Delta(existing, tags, captured, payload.SyncComplete)
	if err := st.SetVideos(ctx, result.Videos); err != nil {
		return err
	}
	if err := st.SetTags(ctx, result.Tags); err != nil {
		return err
	}

	fmt.Printf("Merged %d captured videos: %d new, %d total\n",
		len(captured), len(result.NewVideos), len(result.Videos))

	// Tagging failures never block the merge.
	if len(result.NewVideos) > 0 && cfg.AIEndpoint != "" {
		enrichNewVideos(ctx, cfg, st, result.NewVideos)
	}
	return nil
}

// cmdWatch polls the capture inbox file for payloads and keeps the drift
// monitor running until interrupted.
func cmdWatch(args []string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	a := openApp(ctx)
	defer a.store.Close()

	if a.sync.Mode() != syncer.ModeDisabled {
		a.sync.StartDriftMonitor(ctx, a.cfg.DriftInterval)
	}

	inbox := filepath.Join(a.cfg.DataDir, "capture.json")
	fmt.Printf("Watching %s for captures (Ctrl-C to stop)\n", inbox)
	for {
		poller := capture.NewPoller(inboxSource(inbox), a.cfg.CaptureInterval, a.cfg.CaptureTimeout)
		payload, err := poller.Wait(ctx)
		switch {
		case errors.Is(err, capture.ErrTimeout):
			continue
		case errors.Is(err, context.Canceled):
			fmt.Println("\nStopped.")
			return
		case err != nil:
			fatalf("Error waiting for capture: %v", err)
		}

		if err := applyPayload(ctx, a.cfg, a.store, payload); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: capture rejected: %v\n", err)
		}
		// Consume the inbox so the next poll waits for a fresh payload.
		if err := os.Remove(inbox); err != nil && !errors.Is(err, os.ErrNotExist) {
			fatalf("Error clearing capture inbox: %v", err)
		}
	}
}

// inboxSource reads capture payloads from a drop file. No file means no
// capture yet.
func inboxSource(path string) capture.Source {
	return capture.SourceFunc(func(ctx context.Context) (*capture.Payload, error) {
		raw, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return capture.ParsePayload(raw)
	})
}

var errNoAIKey = errors.New("no AI tagging credential configured (set ai_api_key)")

// aiTagVideos requests AI tag suggestions for videos and merges them into the
// stored tag map, keeping every existing tag. Returns how many videos
// received suggestions.
func aiTagVideos(ctx context.Context, cfg *config.Config, st *store.DocStore, videos []store.Video) (int, error) {
	settings, err := st.Settings(ctx)
	if err != nil {
		return 0, err
	}
	key := settings[store.SettingAIKey]
	if key == "" {
		return 0, errNoAIKey
	}
	suggestions, err := tagger.NewAIClient(cfg.AIEndpoint).Batch(ctx, videos, key)
	if err != nil {
		return 0, err
	}
	if len(suggestions) == 0 {
		return 0, nil
	}
	// Recompute from the freshest read immediately before writing.
	tags, err := st.Tags(ctx)
	if err != nil {
		return 0, err
	}
	for id, suggested := range suggestions {
		tags[id] = mergeTags(tags[id], suggested)
	}
	if err := st.SetTags(ctx, tags); err != nil {
		return 0, err
	}
	return len(suggestions), nil
}

func enrichNewVideos(ctx context.Context, cfg *config.Config, st *store.DocStore, newVideos []store.Video) {
	tagged, err := aiTagVideos(ctx, cfg, st, newVideos)
	if errors.Is(err, errNoAIKey) {
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: AI tagging failed: %v\n", err)
		return
	}
	if tagged > 0 {
		fmt.Printf("AI-tagged %d videos\n", tagged)
	}
}

// cmdRetag re-runs AI tagging over stored videos and merges the suggestions
// into their existing tags. With no ids every active video is re-tagged.
func cmdRetag(args []string) {
	fs := flag.NewFlagSet("retag", flag.ExitOnError)
	archived := fs.Bool("archived", false, "Include archived videos")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: watchlater retag [flags] [id...]\n\nFlags:\n")
		fs.PrintDefaults()
	}
	fs.Parse(args)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	cfg, st := openStore()
	defer st.Close()
	if cfg.AIEndpoint == "" {
		fatalf("Error: no AI endpoint configured")
	}

	videos, err := st.Videos(ctx)
	if err != nil {
		fatalf("Error reading videos: %v", err)
	}
	selected := selectVideos(videos, fs.Args(), *archived)
	if len(selected) == 0 {
		fatalf("Error: no matching videos")
	}

	tagged, err := aiTagVideos(ctx, cfg, st, selected)
	if err != nil {
		fatalf("Re-tagging failed: %v", err)
	}
	fmt.Printf("AI-tagged %d of %d videos\n", tagged, len(selected))
}

// selectVideos narrows the collection to the requested ids; with no ids it
// keeps every active video, plus archived ones when asked.
func selectVideos(videos []store.Video, ids []string, includeArchived bool) []store.Video {
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	out := make([]store.Video, 0, len(videos))
	for _, v := range videos {
		if len(want) > 0 {
			if _, ok := want[v.ID]; ok {
				out = append(out, v)
			}
			continue
		}
		if v.Archived && !includeArchived {
			continue
		}
		out = append(out, v)
	}
	return out
}

func cmdPush(args []string) {
	fs := flag.NewFlagSet("push", flag.ExitOnError)
	yes := fs.Bool("y", false, "Skip confirmation prompts")
	fs.Parse(args)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	a := openApp(ctx)
	defer a.store.Close()

	pending, err := a.sync.Push(ctx)
	if err != nil {
		fatalf("Sync failed: %v", err)
	}

	if pending.Kind == syncer.PendingTakeover {
		if !*yes && !confirm("Another device holds the editor lock. Take over?") {
			pending.Cancel()
			fmt.Println("Cancelled.")
			return
		}
		pending, err = pending.Confirm(ctx)
		if err != nil {
			fatalf("Take-over failed: %v", err)
		}
	}

	printDiff(pending)
	if !pending.Diff.HasChanges {
		fmt.Println("Remote is already up to date.")
		pending.Cancel()
		return
	}
	if !*yes && !confirm("Push local data, overwriting the remote copy?") {
		pending.Cancel()
		fmt.Println("Cancelled.")
		return
	}
	if _, err := pending.Confirm(ctx); err != nil {
		fatalf("Sync failed: %v", err)
	}
	fmt.Println("Pushed.")
}

func cmdPull(args []string) {
	fs := flag.NewFlagSet("pull", flag.ExitOnError)
	yes := fs.Bool("y", false, "Skip confirmation prompts")
	fs.Parse(args)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	a := openApp(ctx)
	defer a.store.Close()

	pending, err := a.sync.Pull(ctx)
	if err != nil {
		fatalf("Sync failed: %v", err)
	}

	printDiff(pending)
	if !pending.Diff.HasChanges {
		fmt.Println("Local copy is already up to date.")
		pending.Cancel()
		return
	}
	if !*yes && !confirm("Pull remote data, overwriting the local copy?") {
		pending.Cancel()
		fmt.Println("Cancelled.")
		return
	}
	if _, err := pending.Confirm(ctx); err != nil {
		fatalf("Sync failed: %v", err)
	}
	fmt.Println("Pulled.")
}

func printDiff(p *syncer.Pending) {
	if p == nil || p.Diff == nil {
		return
	}
	d := p.Diff
	fmt.Printf("Videos: +%d -%d   Tags: +%d -%d   Tag changes: %d videos\n",
		d.VideosAdded, d.VideosRemoved, d.TagsAdded, d.TagsRemoved, d.VideosWithTagChanges)
}

func cmdSignIn(args []string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	a := openApp(ctx)
	defer a.store.Close()

	pending, err := a.sync.SignIn(ctx)
	if err != nil {
		fatalf("Sign-in failed: %v", err)
	}
	if pending != nil {
		switch pending.Kind {
		case syncer.PendingConflict:
			fmt.Println("Both this device and the remote store have data, and they differ.")
			choice := syncer.ChoiceUseRemote
			if confirm("Keep the LOCAL copy (y) instead of the remote one (n)?") {
				choice = syncer.ChoiceUseLocal
			}
			if _, err := pending.Resolve(ctx, choice); err != nil {
				fatalf("Conflict resolution failed: %v", err)
			}
		case syncer.PendingCopyLocal:
			choice := syncer.ChoiceStartFresh
			if confirm("Copy this device's data to the remote store?") {
				choice = syncer.ChoiceUseLocal
			}
			if _, err := pending.Resolve(ctx, choice); err != nil {
				fatalf("Setup failed: %v", err)
			}
		}
	}
	fmt.Printf("Signed in. Mode: %s\n", a.sync.Mode())
}

func cmdSignOut(args []string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	a := openApp(ctx)
	defer a.store.Close()

	if err := a.sync.SignOut(ctx); err != nil {
		fatalf("Sign-out failed: %v", err)
	}
	fmt.Println("Signed out.")
}

func cmdTags(args []string) {
	ctx := context.Background()
	_, st := openStore()
	defer st.Close()

	tags, err := st.Tags(ctx)
	if err != nil {
		fatalf("Error reading tags: %v", err)
	}
	meta, err := st.Meta(ctx)
	if err != nil {
		fatalf("Error reading tag metadata: %v", err)
	}

	counts := make(map[string]int)
	for _, list := range tags {
		for _, t := range list {
			counts[t]++
		}
	}
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TAG\tVIDEOS\tCOLOR")
	for _, name := range names {
		fmt.Fprintf(w, "%s\t%d\t%s\n", name, counts[name], meta[name].Color)
	}
	w.Flush()
}

func cmdDelete(args []string) {
	if len(args) == 0 {
		fatalf("Error: missing video id")
	}
	ctx := context.Background()
	_, st := openStore()
	defer st.Close()

	if err := st.DeleteVideos(ctx, args); err != nil {
		fatalf("Error deleting videos: %v", err)
	}
	fmt.Printf("Deleted %d videos\n", len(args))
}

func cmdSet(args []string) {
	if len(args) < 2 {
		fatalf("Usage: watchlater set <key> <value>")
	}
	ctx := context.Background()
	_, st := openStore()
	defer st.Close()

	settings, err := st.Settings(ctx)
	if err != nil {
		fatalf("Error reading settings: %v", err)
	}
	settings[args[0]] = args[1]
	if err := st.SetSettings(ctx, settings); err != nil {
		fatalf("Error writing settings: %v", err)
	}
	fmt.Printf("Set %s\n", args[0])
}

func hasTag(tags []string, want string) bool {
	for _, t := range tags {
		if t == want {
			return true
		}
	}
	return false
}

func mergeTags(existing, add []string) []string {
	seen := make(map[string]struct{}, len(existing))
	out := append([]string(nil), existing...)
	for _, t := range existing {
		seen[t] = struct{}{}
	}
	for _, t := range add {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

func formatDuration(seconds int) string {
	if seconds <= 0 {
		return ""
	}
	if seconds >= 3600 {
		return fmt.Sprintf("%d:%02d:%02d", seconds/3600, (seconds%3600)/60, seconds%60)
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
