package sync

import (
	"context"
	"fmt"
	"log/slog"
	gosync "sync"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/sync/errgroup"
)

// StateStore is the persistence port for the only two values that survive a
// run: the sync watermark and the remote sync-root id. The Session owns both.
type StateStore interface {
	Watermark() (int64, error)
	SetWatermark(ts int64) error
	RemoteRootID() (string, error)
	SetRemoteRootID(id string) error
}

// SessionConfig wires one vault's collaborators into a Session.
type SessionConfig struct {
	Local      LocalStore
	Remote     RemoteStore
	State      StateStore
	Filter     *Filter
	Policy     Policy
	Sink       ProgressSink
	RootFolder string // name of the sync-root container on the remote
	LockPath   string // flock file guarding the vault across processes
	Transfers  int    // concurrent transfers per category, 0 = default
}

// Session orchestrates one end-to-end run: exclusivity, remote root,
// indexing, planning, resolving, executing, watermark persistence.
type Session struct {
	cfg  SessionConfig
	mu   gosync.Mutex
	lock *flock.Flock
}

// NewSession validates the wiring and returns a Session.
func NewSession(cfg SessionConfig) (*Session, error) {
	if cfg.Local == nil || cfg.Remote == nil || cfg.State == nil {
		return nil, fmt.Errorf("session: local, remote and state stores are required")
	}
	if cfg.Filter == nil {
		cfg.Filter = NewFilter(nil, nil, false)
	}
	if cfg.Sink == nil {
		cfg.Sink = SlogSink{}
	}
	if cfg.Policy == "" {
		cfg.Policy = PolicyPreferNewer
	}
	if cfg.RootFolder == "" {
		return nil, fmt.Errorf("session: remote root folder name is required")
	}

	s := &Session{cfg: cfg}
	if cfg.LockPath != "" {
		s.lock = flock.New(cfg.LockPath)
	}
	return s, nil
}

// Run performs one full reconciliation. A concurrent call is rejected
// immediately with ErrSyncBusy, never queued. The watermark advances to the
// run's start time whenever execution ran to completion, even with per-item
// failures; a run aborted before execution, or cancelled during it, leaves
// it untouched.
func (s *Session) Run(ctx context.Context) (*RunResult, error) {
	if !s.mu.TryLock() {
		return nil, ErrSyncBusy
	}
	defer s.mu.Unlock()

	if s.lock != nil {
		locked, err := s.lock.TryLock()
		if err != nil {
			return nil, fmt.Errorf("vault lock: %w", err)
		}
		if !locked {
			return nil, ErrSyncBusy
		}
		defer s.lock.Unlock()
	}

	startedAt := time.Now()
	slog.Info("sync run start", "policy", s.cfg.Policy, "root", s.cfg.RootFolder)

	plan, resolved, rootID, err := s.prepare(ctx, startedAt)
	if err != nil {
		// aborted before anything executed; next run retries from the same
		// baseline
		return nil, err
	}

	s.cfg.Sink.OnProgress(Progress{Phase: PhaseExecuting, Message: "applying plan", Total: plan.TotalItems()})
	executor := NewExecutor(s.cfg.Local, s.cfg.Remote, rootID, s.cfg.Sink, s.cfg.Transfers)
	result := executor.Execute(ctx, plan, resolved)

	if result.Cancelled {
		// skipped items were never attempted nor recorded as failures; keep
		// the old baseline so the next run plans them again instead of
		// inferring deletions
		slog.Warn("sync run cancelled, watermark unchanged", "run", result.ID)
		return result, nil
	}

	if err := s.advanceWatermark(startedAt); err != nil {
		slog.Error("sync watermark persist failed", "error", err)
		return result, fmt.Errorf("persist watermark: %w", err)
	}

	s.cfg.Sink.OnProgress(Progress{Phase: PhaseDone, Message: "run complete"})
	slog.Info("sync run done",
		"run", result.ID,
		"uploaded", result.Uploaded,
		"downloaded", result.Downloaded,
		"localDeletes", result.DeletedLocal,
		"remoteDeletes", result.DeletedRemote,
		"conflicts", result.Resolved,
		"failed", len(result.Failed),
		"cancelled", result.Cancelled,
		"took", result.Duration,
	)
	return result, nil
}

// prepare runs every pre-execution phase. Any error here aborts the run with
// state untouched.
func (s *Session) prepare(ctx context.Context, startedAt time.Time) (*SyncPlan, []*ResolvedConflict, string, error) {
	s.cfg.Sink.OnProgress(Progress{Phase: PhasePreparing, Message: "checking remote root"})

	rootID, err := s.ensureRemoteRoot(ctx)
	if err != nil {
		return nil, nil, "", err
	}

	watermark, err := s.cfg.State.Watermark()
	if err != nil {
		return nil, nil, "", fmt.Errorf("read watermark: %w", err)
	}

	s.cfg.Sink.OnProgress(Progress{Phase: PhaseIndexing, Message: "building indices"})

	// local and remote indexing are independent; remote listing dominates
	// run latency, so the local walk rides alongside it
	var localIndex, remoteIndex Index
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		localIndex, err = BuildLocalIndex(gctx, s.cfg.Local, s.cfg.Filter)
		return err
	})
	g.Go(func() error {
		var err error
		remoteIndex, err = BuildRemoteIndex(gctx, s.cfg.Remote, rootID, s.cfg.Filter)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, "", err
	}

	s.cfg.Sink.OnProgress(Progress{Phase: PhasePlanning, Message: "computing plan"})
	plan := Plan(localIndex, remoteIndex, watermark)
	slog.Info("sync plan",
		"local", len(localIndex),
		"remote", len(remoteIndex),
		"watermark", watermark,
		"uploads", len(plan.Uploads),
		"downloads", len(plan.Downloads),
		"localDeletes", len(plan.LocalDeletes),
		"remoteDeletes", len(plan.RemoteDeletes),
		"conflicts", len(plan.Conflicts),
	)

	s.cfg.Sink.OnProgress(Progress{Phase: PhaseResolving, Message: "resolving conflicts"})
	resolved, err := ResolvePlan(plan, s.cfg.Policy, startedAt)
	if err != nil {
		return nil, nil, "", err
	}

	return plan, resolved, rootID, nil
}

// Plan builds and returns the plan without executing it. Used by dry runs.
func (s *Session) Plan(ctx context.Context) (*SyncPlan, error) {
	if !s.mu.TryLock() {
		return nil, ErrSyncBusy
	}
	defer s.mu.Unlock()

	plan, _, _, err := s.prepare(ctx, time.Now())
	return plan, err
}

// ensureRemoteRoot finds or creates the sync-root container once and caches
// its id in the state store.
func (s *Session) ensureRemoteRoot(ctx context.Context) (string, error) {
	rootID, err := s.cfg.State.RemoteRootID()
	if err != nil {
		return "", fmt.Errorf("read remote root id: %w", err)
	}
	if rootID != "" {
		return rootID, nil
	}

	rootID, err = s.cfg.Remote.FindOrCreateFolder(ctx, s.cfg.RootFolder, "")
	if err != nil {
		return "", fmt.Errorf("ensure remote root %q: %w", s.cfg.RootFolder, err)
	}
	if err := s.cfg.State.SetRemoteRootID(rootID); err != nil {
		return "", fmt.Errorf("persist remote root id: %w", err)
	}

	slog.Info("sync remote root ready", "folder", s.cfg.RootFolder, "id", rootID)
	return rootID, nil
}

// advanceWatermark persists the run-start time, never moving backwards.
func (s *Session) advanceWatermark(startedAt time.Time) error {
	current, err := s.cfg.State.Watermark()
	if err != nil {
		return err
	}

	next := startedAt.UnixMilli()
	if next <= current {
		return nil
	}
	return s.cfg.State.SetWatermark(next)
}
