package fieldsec

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Manager owns one field sensitivity store per active session, parallel
// to the permission store registry but triggered independently.
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

// Ensure returns the session's store, creating and loading it on first use.
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

// Drop clears and discards the session's store ahead of session teardown.
func (m *Manager) Drop(sessionID string) {
	m.mu.Lock()
	store, ok := m.stores[sessionID]
	delete(m.stores, sessionID)
	m.mu.Unlock()

	if ok {
		store.Clear()
	}
}
