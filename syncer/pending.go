package syncer

import (
	"context"
	"fmt"

	"watchlater/diff"
	"watchlater/drive"
)

// PendingKind identifies what a pending action will do once confirmed.
type PendingKind int

// Pending action kinds.
const (
	// PendingPush commits local state to the remote documents.
	PendingPush PendingKind = iota
	// PendingPull overwrites local state from the remote documents.
	PendingPull
	// PendingTakeover overwrites another client's lock claim, then chains
	// into a push.
	PendingTakeover
	// PendingConflict resolves divergent data on first sign-in: use local
	// (push) or use remote (pull).
	PendingConflict
	// PendingCopyLocal resolves local-only data on first sign-in: copy to
	// remote (push) or start fresh (leave remote untouched).
	PendingCopyLocal
)

// String returns the kind name.
func (k PendingKind) String() string {
	switch k {
	case PendingPush:
		return "push"
	case PendingPull:
		return "pull"
	case PendingTakeover:
		return "takeover"
	case PendingConflict:
		return "conflict"
	case PendingCopyLocal:
		return "copy-local"
	}
	return fmt.Sprintf("PendingKind(%d)", int(k))
}

// PendingState tracks the confirmation state machine:
// awaiting-confirmation -> committed or cancelled.
type PendingState int

// Pending states.
const (
	StateAwaiting PendingState = iota
	StateCommitted
	StateCancelled
)

// Choice selects a resolution for a pending action.
type Choice int

// Resolution choices. ChoiceConfirm applies to push, pull and takeover;
// the others to the sign-in resolution prompts.
const (
	ChoiceConfirm Choice = iota
	ChoiceUseLocal
	ChoiceUseRemote
	ChoiceStartFresh
)

// Pending is a sync action waiting for explicit user input. The UI layer
// renders it (kind plus advisory diff) and feeds back exactly one resolution.
// Until then, neither local nor remote state has been touched; cancelling
// leaves both sides completely unchanged.
type Pending struct {
	// Kind is what confirming will do.
	Kind PendingKind
	// Diff is the advisory preview for push/pull pendings; nil otherwise.
	Diff *diff.Result

	s     *Syncer
	state PendingState
}

func (s *Syncer) newPending(kind PendingKind, d *diff.Result) *Pending {
	return &Pending{Kind: kind, Diff: d, s: s}
}

// State returns the pending action's current state.
func (p *Pending) State() PendingState { return p.state }

// Cancel declines the pending action. It is idempotent; cancelling an
// already-committed action returns ErrResolved. A cancelled action is
// reported as user-cancelled, which is distinct from an error.
func (p *Pending) Cancel() error {
	switch p.state {
	case StateCommitted:
		return ErrResolved
	case StateCancelled:
		return nil
	}
	p.state = StateCancelled
	return nil
}

// Confirm resolves the pending action with ChoiceConfirm. For a takeover it
// returns the follow-up push pending; otherwise the returned pending is nil.
func (p *Pending) Confirm(ctx context.Context) (*Pending, error) {
	return p.Resolve(ctx, ChoiceConfirm)
}

// Resolve applies a resolution choice. A failure leaves the action awaiting
// so the user may retry or cancel.
func (p *Pending) Resolve(ctx context.Context, choice Choice) (*Pending, error) {
	if p.state != StateAwaiting {
		return nil, ErrResolved
	}

	s := p.s
	s.opMu.Lock()
	defer s.opMu.Unlock()

	switch p.Kind {
	case PendingPush:
		if err := s.commitPushLocked(ctx); err != nil {
			return nil, err
		}

	case PendingPull:
		if err := s.commitPullLocked(ctx); err != nil {
			return nil, err
		}

	case PendingTakeover:
		if err := s.remote.AcquireLock(ctx, s.clientID); err != nil {
			return nil, err
		}
		s.setMode(ModeEditor)
		p.state = StateCommitted
		// Chain into the push the take-over was blocking.
		next, err := s.buildPushPendingLocked(ctx)
		if err != nil {
			return nil, err
		}
		return next, nil

	case PendingConflict:
		switch choice {
		case ChoiceUseLocal:
			if err := s.commitPushLocked(ctx); err != nil {
				return nil, err
			}
		case ChoiceUseRemote:
			if err := s.commitPullLocked(ctx); err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("syncer: conflict resolution requires use-local or use-remote")
		}
		p.state = StateCommitted
		return nil, s.finishSetupLocked(ctx)

	case PendingCopyLocal:
		switch choice {
		case ChoiceUseLocal, ChoiceConfirm:
			if err := s.commitPushLocked(ctx); err != nil {
				return nil, err
			}
		case ChoiceStartFresh:
			// Leave remote untouched.
			s.markSynced(ctx)
		default:
			return nil, fmt.Errorf("syncer: copy-local resolution requires copy or start-fresh")
		}
		p.state = StateCommitted
		return nil, s.finishSetupLocked(ctx)
	}

	p.state = StateCommitted
	return nil, nil
}

// Push prepares a push of local state to the remote documents. It does not
// queue behind an in-flight sync operation; a contended call fails with
// ErrBusy.
//
// Without lock ownership the returned pending is a take-over prompt; the
// push proceeds only after the user confirms the take-over. With ownership,
// the pending carries an advisory diff of what committing would change.
func (s *Syncer) Push(ctx context.Context) (*Pending, error) {
	if err := s.requireSignedIn(ctx); err != nil {
		return nil, err
	}

	if !s.opMu.TryLock() {
		return nil, ErrBusy
	}
	defer s.opMu.Unlock()

	owner, err := s.remote.IsLockOwner(ctx, s.clientID)
	if err != nil {
		return nil, err
	}
	if !owner {
		// Lost (or never had) the lock: drop out of editor mode and ask.
		s.setMode(ModeReadOnly)
		return s.newPending(PendingTakeover, nil), nil
	}
	return s.buildPushPendingLocked(ctx)
}

// buildPushPendingLocked computes the push diff. Callers must hold opMu.
func (s *Syncer) buildPushPendingLocked(ctx context.Context) (*Pending, error) {
	local, err := s.store.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	remoteSnap, _, err := s.readRemoteSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	d := diff.Compute(local, remoteSnap, diff.ToRemote)
	return s.newPending(PendingPush, &d), nil
}

// Pull prepares a pull of remote state into the local store. Pull is allowed
// in read-only mode; it fails explicitly when the remote holds none of the
// three documents, and with ErrBusy when another sync operation is in flight.
func (s *Syncer) Pull(ctx context.Context) (*Pending, error) {
	if err := s.requireSignedIn(ctx); err != nil {
		return nil, err
	}

	if !s.opMu.TryLock() {
		return nil, ErrBusy
	}
	defer s.opMu.Unlock()

	local, err := s.store.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	remoteSnap, anyPresent, err := s.readRemoteSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	if !anyPresent {
		return nil, ErrRemoteEmpty
	}
	d := diff.Compute(local, remoteSnap, diff.FromRemote)
	return s.newPending(PendingPull, &d), nil
}

func (s *Syncer) requireSignedIn(ctx context.Context) error {
	enabled, err := s.syncEnabled(ctx)
	if err != nil {
		return err
	}
	if !enabled {
		return ErrSyncDisabled
	}
	signedIn, err := s.auth.SignedIn(ctx)
	if err != nil {
		return err
	}
	if !signedIn {
		return ErrNotSignedIn
	}
	return nil
}

// commitPushLocked writes local videos, tags and metadata to the three
// remote documents. State is re-read immediately before writing so the
// freshest local copy wins.
//
// The three writes are not transactional. On a mid-flight failure the whole
// operation is reported as failed and no sync point is recorded, so a
// partial remote copy is never mistaken for a successful push.
func (s *Syncer) commitPushLocked(ctx context.Context) error {
	local, err := s.store.Snapshot(ctx)
	if err != nil {
		return err
	}
	if err := s.remote.WriteJSON(ctx, drive.VideosFile, local.Videos); err != nil {
		return fmt.Errorf("syncer: push failed, remote may hold a partial copy: %w", err)
	}
	if err := s.remote.WriteJSON(ctx, drive.TagsFile, local.Tags); err != nil {
		return fmt.Errorf("syncer: push failed, remote may hold a partial copy: %w", err)
	}
	if err := s.remote.WriteJSON(ctx, drive.MetaFile, local.Meta); err != nil {
		return fmt.Errorf("syncer: push failed, remote may hold a partial copy: %w", err)
	}
	s.markSynced(ctx)
	return nil
}

// commitPullLocked overwrites the three local documents from fresh remote
// reads. It fails without touching local state when the remote holds none of
// the documents.
func (s *Syncer) commitPullLocked(ctx context.Context) error {
	remoteSnap, anyPresent, err := s.readRemoteSnapshot(ctx)
	if err != nil {
		return err
	}
	if !anyPresent {
		return ErrRemoteEmpty
	}
	if err := s.store.SetSnapshot(ctx, remoteSnap); err != nil {
		return err
	}
	s.markSynced(ctx)
	return nil
}

var _ Remote = (*drive.Client)(nil)
