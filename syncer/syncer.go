// Package syncer orchestrates remote synchronization: sign-in and sign-out,
// sync-mode derivation, lock acquisition and take-over, conflict resolution
// on first sign-in, and the push/pull verbs with their diff-and-confirm flow.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"watchlater/drive"
	"watchlater/store"
)

// Sentinel errors for sync operations.
var (
	// ErrSyncDisabled indicates the remote sync feature is turned off.
	ErrSyncDisabled = errors.New("syncer: remote sync is disabled")
	// ErrNotSignedIn indicates the operation requires a signed-in session.
	ErrNotSignedIn = errors.New("syncer: not signed in")
	// ErrRemoteEmpty indicates a pull found none of the remote documents.
	ErrRemoteEmpty = errors.New("syncer: remote has no data to pull")
	// ErrResolved indicates a pending action was already confirmed or
	// cancelled.
	ErrResolved = errors.New("syncer: pending action already resolved")
	// ErrBusy indicates another sync operation is in flight.
	ErrBusy = errors.New("syncer: sync operation in flight")
)

// Mode is the sync state machine's current mode.
type Mode int

// Sync modes.
const (
	// ModeDisabled means the remote sync feature is off and the local store
	// is the sole authority.
	ModeDisabled Mode = iota
	// ModeReadOnly means remote sync is on but this client either is not
	// signed in or does not hold the lock. Pull is allowed, push is not.
	ModeReadOnly
	// ModeEditor means this client is signed in and holds the remote lock.
	ModeEditor
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case ModeDisabled:
		return "disabled"
	case ModeReadOnly:
		return "readonly"
	case ModeEditor:
		return "editor"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// Remote is the surface of the remote store client the orchestrator uses.
// *drive.Client satisfies it.
type Remote interface {
	ReadJSON(ctx context.Context, name string, v any) (bool, error)
	WriteJSON(ctx context.Context, name string, v any) error
	AcquireLock(ctx context.Context, clientID string) error
	ReleaseLock(ctx context.Context, clientID string) error
	LockOwner(ctx context.Context) (*drive.Lockfile, error)
	IsLockOwner(ctx context.Context, clientID string) (bool, error)
}

// Status is a point-in-time view of the orchestrator for the UI layer.
type Status struct {
	Mode Mode
	// HasUnsyncedChanges is the advisory drift signal: the remote copy
	// differs structurally from the local one. Never triggers a sync.
	HasUnsyncedChanges bool
	// LastSyncAt is when the last push or pull committed; zero if never.
	LastSyncAt time.Time
}

// Syncer owns the sync state machine. All remote reads and writes are
// serialized behind a single mutex so a background drift check can never
// interleave with an in-flight push or pull.
type Syncer struct {
	store    store.Store
	remote   Remote
	auth     *drive.AuthSession
	clientID string

	// opMu serializes remote operations.
	opMu sync.Mutex

	// mu guards the fields below.
	mu         sync.Mutex
	mode       Mode
	drift      bool
	lastSyncAt time.Time
}

// New creates a sync orchestrator. The client identity is loaded (or
// generated) from the local store.
func New(ctx context.Context, st store.Store, remote Remote, auth *drive.AuthSession) (*Syncer, error) {
	clientID, err := st.ClientID(ctx)
	if err != nil {
		return nil, fmt.Errorf("syncer: load client id: %w", err)
	}
	s := &Syncer{
		store:    st,
		remote:   remote,
		auth:     auth,
		clientID: clientID,
	}
	if settings, err := st.Settings(ctx); err == nil {
		if at, err := time.Parse(time.RFC3339, settings[store.SettingLastSyncAt]); err == nil {
			s.lastSyncAt = at
		}
	}
	if err := s.RefreshMode(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// ClientID returns this client's lock-attribution identity.
func (s *Syncer) ClientID() string { return s.clientID }

// Mode returns the current sync mode.
func (s *Syncer) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// Status returns the current orchestrator status.
func (s *Syncer) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{Mode: s.mode, HasUnsyncedChanges: s.drift, LastSyncAt: s.lastSyncAt}
}

func (s *Syncer) setMode(m Mode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode != m {
		log.Printf("syncer: mode %s -> %s", s.mode, m)
	}
	s.mode = m
}

// syncEnabled reads the remote-sync setting.
func (s *Syncer) syncEnabled(ctx context.Context) (bool, error) {
	settings, err := s.store.Settings(ctx)
	if err != nil {
		return false, err
	}
	return settings[store.SettingSyncEnabled] == "true", nil
}

// RefreshMode re-derives the sync mode from the sync-enabled setting,
// sign-in state and lock ownership.
func (s *Syncer) RefreshMode(ctx context.Context) error {
	enabled, err := s.syncEnabled(ctx)
	if err != nil {
		return err
	}
	if !enabled {
		s.setMode(ModeDisabled)
		return nil
	}
	signedIn, err := s.auth.SignedIn(ctx)
	if err != nil {
		return err
	}
	if !signedIn {
		s.setMode(ModeReadOnly)
		return nil
	}
	owner, err := s.remote.IsLockOwner(ctx, s.clientID)
	if err != nil {
		// Remote unreachable: stay read-only rather than claim editorship.
		log.Printf("syncer: lock check failed: %v", err)
		s.setMode(ModeReadOnly)
		return nil
	}
	if owner {
		s.setMode(ModeEditor)
	} else {
		s.setMode(ModeReadOnly)
	}
	return nil
}

// SignIn acquires a credential and runs the initial data resolution.
//
// When local and remote content are structurally equal (or one side is
// empty with nothing to lose), resolution is silent: equal content is marked
// synced, remote-only data is pulled automatically. Divergent non-empty
// content returns a PendingConflict; local-only data returns a
// PendingCopyLocal. Exactly one resolution is executed, chosen by the user.
//
// After data resolution, the lock is acquired automatically only if no lock
// exists at all; an existing lock leaves this client read-only until the
// user explicitly takes over.
func (s *Syncer) SignIn(ctx context.Context) (*Pending, error) {
	enabled, err := s.syncEnabled(ctx)
	if err != nil {
		return nil, err
	}
	if !enabled {
		return nil, ErrSyncDisabled
	}
	if err := s.auth.SignIn(ctx); err != nil {
		return nil, err
	}

	s.opMu.Lock()
	defer s.opMu.Unlock()

	local, err := s.store.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	remoteSnap, anyRemote, err := s.readRemoteSnapshot(ctx)
	if err != nil {
		return nil, err
	}

	switch {
	case !anyRemote || remoteSnap.Empty():
		if local.Empty() {
			// Nothing anywhere: first device, fresh start.
			s.markSynced(ctx)
			return nil, s.finishSetupLocked(ctx)
		}
		return s.newPending(PendingCopyLocal, nil), nil
	case local.Empty():
		// Only remote has data: pull automatically, nothing to lose.
		if err := s.commitPullLocked(ctx); err != nil {
			return nil, err
		}
		return nil, s.finishSetupLocked(ctx)
	case local.Equal(remoteSnap):
		s.markSynced(ctx)
		return nil, s.finishSetupLocked(ctx)
	default:
		return s.newPending(PendingConflict, nil), nil
	}
}

// finishSetupLocked completes sign-in by resolving lock ownership. Callers
// must hold opMu.
func (s *Syncer) finishSetupLocked(ctx context.Context) error {
	owner, err := s.remote.LockOwner(ctx)
	if err != nil {
		return err
	}
	switch {
	case owner == nil:
		// First signed-in device becomes editor by default.
		if err := s.remote.AcquireLock(ctx, s.clientID); err != nil {
			return err
		}
		s.setMode(ModeEditor)
	case owner.ClientID == s.clientID:
		s.setMode(ModeEditor)
	default:
		s.setMode(ModeReadOnly)
	}
	return nil
}

// SignOut releases the lock if held, revokes the credential and clears all
// sync bookkeeping. The mode returns to disabled.
func (s *Syncer) SignOut(ctx context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	signedIn, err := s.auth.SignedIn(ctx)
	if err != nil {
		return err
	}
	if signedIn {
		if err := s.remote.ReleaseLock(ctx, s.clientID); err != nil {
			log.Printf("syncer: lock release on sign-out failed: %v", err)
		}
		if err := s.auth.SignOut(ctx); err != nil {
			return err
		}
	}

	s.mu.Lock()
	s.drift = false
	s.lastSyncAt = time.Time{}
	s.mu.Unlock()
	if settings, err := s.store.Settings(ctx); err == nil {
		delete(settings, store.SettingLastSyncAt)
		if err := s.store.SetSettings(ctx, settings); err != nil {
			log.Printf("syncer: clearing sync time: %v", err)
		}
	}
	s.setMode(ModeDisabled)
	return nil
}

// ReleaseEditor gives up the lock voluntarily, dropping to read-only.
func (s *Syncer) ReleaseEditor(ctx context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	if err := s.remote.ReleaseLock(ctx, s.clientID); err != nil {
		return err
	}
	s.setMode(ModeReadOnly)
	return nil
}

// markSynced records a successful sync point and clears the drift signal.
// The sync time is persisted through settings so later starts report it.
func (s *Syncer) markSynced(ctx context.Context) {
	now := time.Now()
	s.mu.Lock()
	s.drift = false
	s.lastSyncAt = now
	s.mu.Unlock()

	settings, err := s.store.Settings(ctx)
	if err != nil {
		log.Printf("syncer: persisting sync time: %v", err)
		return
	}
	settings[store.SettingLastSyncAt] = now.Format(time.RFC3339)
	if err := s.store.SetSettings(ctx, settings); err != nil {
		log.Printf("syncer: persisting sync time: %v", err)
	}
}

// readRemoteSnapshot reads the three remote documents. Absent documents
// decode as empty defaults; anyPresent reports whether at least one of the
// three exists.
func (s *Syncer) readRemoteSnapshot(ctx context.Context) (snap store.Snapshot, anyPresent bool, err error) {
	snap = store.Snapshot{Videos: []store.Video{}, Tags: store.TagMap{}, Meta: store.TagMetaMap{}}

	ok, err := s.remote.ReadJSON(ctx, drive.VideosFile, &snap.Videos)
	if err != nil {
		return store.Snapshot{}, false, err
	}
	anyPresent = anyPresent || ok

	ok, err = s.remote.ReadJSON(ctx, drive.TagsFile, &snap.Tags)
	if err != nil {
		return store.Snapshot{}, false, err
	}
	anyPresent = anyPresent || ok

	ok, err = s.remote.ReadJSON(ctx, drive.MetaFile, &snap.Meta)
	if err != nil {
		return store.Snapshot{}, false, err
	}
	anyPresent = anyPresent || ok

	if snap.Videos == nil {
		snap.Videos = []store.Video{}
	}
	if snap.Tags == nil {
		snap.Tags = store.TagMap{}
	}
	if snap.Meta == nil {
		snap.Meta = store.TagMetaMap{}
	}
	return snap, anyPresent, nil
}

// CheckDrift fetches the remote copy and compares it structurally against
// local, updating the advisory unsynced-changes signal. If a sync operation
// is in flight the check is skipped and the previous signal is returned.
func (s *Syncer) CheckDrift(ctx context.Context) (bool, error) {
	if s.Mode() == ModeDisabled {
		return false, nil
	}
	if !s.opMu.TryLock() {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.drift, nil
	}
	defer s.opMu.Unlock()

	local, err := s.store.Snapshot(ctx)
	if err != nil {
		return false, err
	}
	remoteSnap, _, err := s.readRemoteSnapshot(ctx)
	if err != nil {
		return false, err
	}
	drifted := !local.Equal(remoteSnap)

	s.mu.Lock()
	s.drift = drifted
	s.mu.Unlock()
	return drifted, nil
}

// StartDriftMonitor periodically runs CheckDrift until ctx is cancelled.
// The signal is purely advisory; the monitor never triggers a push or pull.
func (s *Syncer) StartDriftMonitor(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := s.CheckDrift(ctx); err != nil {
					log.Printf("syncer: drift check failed: %v", err)
				}
			}
		}
	}()
}
