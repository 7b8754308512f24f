package fieldsec

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Loader assembles the field sensitivity snapshot for one subject.
type Loader interface {
	LoadFieldRules(ctx context.Context, userID int64) (*Snapshot, error)
}

// LoaderFunc adapts a function to the Loader interface.
type LoaderFunc func(ctx context.Context, userID int64) (*Snapshot, error)

// LoadFieldRules implements Loader.
func (f LoaderFunc) LoadFieldRules(ctx context.Context, userID int64) (*Snapshot, error) {
	return f(ctx, userID)
}

// stateClosed is terminal, matching the permission store: once cleared a
// store refuses to load again.
const (
	stateUnloaded = iota
	stateLoading
	stateLoaded
	stateClosed
)

// Store caches the field sensitivity state of a single subject. It
// mirrors the permission store lifecycle independently: a client may need
// grants before field rules or the other way around, so neither load
// waits on the other.
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

// NewStore constructs an unloaded store for the given subject.
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

// Init performs the initial load and arms the background poll. It is
// idempotent and a no-op on a cleared store; only one load may be in
// flight.
func (s *Store) Init(ctx context.Context) error {
	s.mu.Lock()
	if s.state != stateUnloaded {
		s.mu.Unlock()
		return nil
	}
	s.state = stateLoading
	s.mu.Unlock()

	snap, err := s.loader.LoadFieldRules(ctx, s.userID)
	if err != nil {
		s.mu.Lock()
		if s.state == stateLoading {
			s.state = stateUnloaded
		}
		s.mu.Unlock()
		return fmt.Errorf("fieldsec: initial load: %w", err)
	}

	s.mu.Lock()
	if s.state != stateLoading {
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

// Refresh replaces the snapshot wholesale; a failure keeps the last known
// good rule set in place.
func (s *Store) Refresh(ctx context.Context) error {
	s.mu.Lock()
	if s.state != stateLoaded {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	snap, err := s.loader.LoadFieldRules(ctx, s.userID)
	if err != nil {
		return fmt.Errorf("fieldsec: refresh: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != stateLoaded || ctx.Err() != nil {
		return nil
	}
	s.snap.Store(snap)
	return nil
}

// Clear stops the poll before dropping state so a refresh can never land
// after sign-out. It is terminal: a cleared store refuses further loads.
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
				s.logger.Warn("fieldsec refresh failed", slog.Int64("user_id", s.userID), slog.Any("error", err))
			}
		}
	}
}

// CanAccessField reports whether the subject may see the field in clear.
// Before the first load every field is restricted (fail closed).
func (s *Store) CanAccessField(table, field string) bool {
	snap := s.snap.Load()
	if snap == nil {
		return false
	}
	return snap.canAccess(table, field)
}

// MaskingType returns the masking transform to apply to the field, or
// false when no masking is needed. Before the first load every field
// masks fully.
func (s *Store) MaskingType(table, field string) (MaskingKind, bool) {
	snap := s.snap.Load()
	if snap == nil {
		return MaskFull, true
	}
	return snap.maskingType(table, field)
}

// SensitiveFields enumerates every field the subject currently cannot
// access, for bulk UI masking decisions.
func (s *Store) SensitiveFields() []FieldRef {
	snap := s.snap.Load()
	if snap == nil {
		return nil
	}
	return snap.sensitiveFields()
}
