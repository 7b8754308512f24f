package authz

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Loader assembles the permission snapshot for one subject. The grants
// service is the production implementation; tests inject stubs.
type Loader interface {
	LoadGrants(ctx context.Context, userID int64) (*Snapshot, error)
}

// LoaderFunc adapts a function to the Loader interface.
type LoaderFunc func(ctx context.Context, userID int64) (*Snapshot, error)

// LoadGrants implements Loader.
func (f LoaderFunc) LoadGrants(ctx context.Context, userID int64) (*Snapshot, error) {
	return f(ctx, userID)
}

// Store state machine states. stateClosed is terminal: a cleared store
// can never load again, so a request racing a sign-out cannot re-arm the
// poll for a session that no longer exists.
const (
	stateUnloaded = iota
	stateLoading
	stateLoaded
	stateClosed
)

// Store caches the resolved permission state of a single subject and
// answers authorization questions against it. Evaluator methods are pure
// readers and fail closed until the first load completes; only the load
// and refresh paths write, and they replace the snapshot atomically.
type Store struct {
	userID   int64
	loader   Loader
	logger   *slog.Logger
	interval time.Duration

	mu     sync.Mutex
	state  int
	cancel context.CancelFunc

	snap atomic.Pointer[Snapshot]
}

// NewStore constructs an unloaded store for the given subject. The
// refresh interval drives the background poll armed by Init.
func NewStore(userID int64, loader Loader, logger *slog.Logger, refreshInterval time.Duration) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		userID:   userID,
		loader:   loader,
		logger:   logger,
		interval: refreshInterval,
	}
}

// Init performs the initial load and arms the background poll. Calling
// Init on a store that is already loaded, loading, or cleared is a no-op;
// only one load may be in flight per store, and a cleared store never
// loads again. A failed initial load leaves the store unloaded so
// evaluators keep failing closed.
func (s *Store) Init(ctx context.Context) error {
	s.mu.Lock()
	if s.state != stateUnloaded {
		s.mu.Unlock()
		return nil
	}
	s.state = stateLoading
	s.mu.Unlock()

	snap, err := s.loader.LoadGrants(ctx, s.userID)
	if err != nil {
		s.mu.Lock()
		if s.state == stateLoading {
			s.state = stateUnloaded
		}
		s.mu.Unlock()
		return fmt.Errorf("authz: initial load: %w", err)
	}

	s.mu.Lock()
	if s.state != stateLoading {
		// Cleared while the load was in flight; drop the result so a
		// signed-out session can never be repopulated.
		s.mu.Unlock()
		return nil
	}
	s.snap.Store(snap)
	s.state = stateLoaded
	refreshCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.mu.Unlock()

	if s.interval > 0 {
		go s.pollLoop(refreshCtx)
	}
	return nil
}

// Refresh re-invokes the loader and replaces the snapshot wholesale. On
// failure the last known good snapshot stays in place and the error is
// returned for logging; evaluators never observe a partial state.
func (s *Store) Refresh(ctx context.Context) error {
	s.mu.Lock()
	if s.state != stateLoaded {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	snap, err := s.loader.LoadGrants(ctx, s.userID)
	if err != nil {
		return fmt.Errorf("authz: refresh: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != stateLoaded || ctx.Err() != nil {
		// Cleared during the fetch: never refresh after clear.
		return nil
	}
	s.snap.Store(snap)
	return nil
}

// Clear stops the background poll and drops the cached state. The poll is
// cancelled before the snapshot is cleared so no refresh can land after a
// sign-out has been observed. Clear is terminal: Init on a cleared store
// is a no-op, so the store stays empty for good.
func (s *Store) Clear() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.state = stateClosed
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.snap.Store(nil)
}

// Loaded reports whether an initial load has completed.
func (s *Store) Loaded() bool {
	return s.snap.Load() != nil
}

// Snapshot returns the current snapshot, or nil before the first load.
func (s *Store) Snapshot() *Snapshot {
	return s.snap.Load()
}

func (s *Store) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Refresh(ctx); err != nil {
				// Stale-but-valid grants keep working; the failure is
				// surfaced in logs only.
				s.logger.Warn("authz refresh failed", slog.Int64("user_id", s.userID), slog.Any("error", err))
			}
		}
	}
}

// Can reports whether the subject may perform the requested permission
// against the optional target. Malformed codes and a store that has not
// loaded yet both answer false; evaluator calls never raise.
func (s *Store) Can(code string, target *Target) bool {
	snap := s.snap.Load()
	if snap == nil {
		return false
	}
	parsed, err := ParseCode(code)
	if err != nil {
		s.logger.Warn("authz can: bad code", slog.String("code", code))
		return false
	}
	return snap.evaluate(parsed, target)
}

// CanAny reports whether at least one of the codes is permitted.
func (s *Store) CanAny(codes []string, target *Target) bool {
	for _, code := range codes {
		if s.Can(code, target) {
			return true
		}
	}
	return false
}

// CanAll reports whether every code is permitted.
func (s *Store) CanAll(codes []string, target *Target) bool {
	for _, code := range codes {
		if !s.Can(code, target) {
			return false
		}
	}
	return true
}

// HasRole is a direct membership test against the cached roles.
func (s *Store) HasRole(code string) bool {
	snap := s.snap.Load()
	return snap != nil && snap.hasRole(code)
}

// HasAnyRole reports whether the subject holds any of the given roles.
func (s *Store) HasAnyRole(codes ...string) bool {
	snap := s.snap.Load()
	if snap == nil {
		return false
	}
	for _, code := range codes {
		if snap.hasRole(code) {
			return true
		}
	}
	return false
}

// HasTag is a direct membership test against the cached tags.
func (s *Store) HasTag(tag string) bool {
	snap := s.snap.Load()
	return snap != nil && snap.hasTag(tag)
}

// EffectiveScope returns the widest scope at which resource.action is
// permitted on the target, or false when no scope passes.
func (s *Store) EffectiveScope(resource, action string, target *Target) (Scope, bool) {
	snap := s.snap.Load()
	if snap == nil {
		return "", false
	}
	return snap.effectiveScope(resource, action, target)
}

// MaxDataLevel returns the highest data level at which resource.action is
// permitted on the target, or false when no level passes.
func (s *Store) MaxDataLevel(resource, action string, target *Target) (DataLevel, bool) {
	snap := s.snap.Load()
	if snap == nil {
		return "", false
	}
	return snap.maxDataLevel(resource, action, target)
}
