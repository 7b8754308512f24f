package authz

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Manager owns one Store per active session. Snapshots are never shared
// across subjects: two sessions for the same user still get independent
// stores, so clearing one can never disturb the other.
type Manager struct {
	loader   Loader
	logger   *slog.Logger
	interval time.Duration

	mu     sync.Mutex
	stores map[string]*Store
}

// NewManager constructs a session-keyed store registry.
func NewManager(loader Loader, logger *slog.Logger, refreshInterval time.Duration) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		loader:   loader,
		logger:   logger,
		interval: refreshInterval,
		stores:   make(map[string]*Store),
	}
}

// Ensure returns the session's store, creating and loading it on first
// use. The underlying Init is idempotent, so racing requests for the same
// freshly authenticated session issue at most one load.
func (m *Manager) Ensure(ctx context.Context, sessionID string, userID int64) (*Store, error) {
	m.mu.Lock()
	store, ok := m.stores[sessionID]
	if !ok {
		store = NewStore(userID, m.loader, m.logger, m.interval)
		m.stores[sessionID] = store
	}
	m.mu.Unlock()

	if err := store.Init(ctx); err != nil {
		return store, err
	}
	return store, nil
}

// Get returns the session's store without triggering a load.
func (m *Manager) Get(sessionID string) (*Store, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	store, ok := m.stores[sessionID]
	return store, ok
}

// Drop clears and discards the session's store. It must run before the
// session itself is destroyed so no component ever observes a signed-out
// session with a populated permission cache.
func (m *Manager) Drop(sessionID string) {
	m.mu.Lock()
	store, ok := m.stores[sessionID]
	delete(m.stores, sessionID)
	m.mu.Unlock()

	if ok {
		store.Clear()
	}
}
