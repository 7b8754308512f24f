package authz

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type stubLoader struct {
	mu    sync.Mutex
	calls int
	snap  *Snapshot
	err   error
	block chan struct{}
}

func (l *stubLoader) LoadGrants(ctx context.Context, userID int64) (*Snapshot, error) {
	l.mu.Lock()
	l.calls++
	snap, err, block := l.snap, l.err, l.block
	l.mu.Unlock()
	if block != nil {
		<-block
	}
	if err != nil {
		return nil, err
	}
	return snap, nil
}

func (l *stubLoader) callCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

func (l *stubLoader) set(snap *Snapshot, err error) {
	l.mu.Lock()
	l.snap, l.err = snap, err
	l.mu.Unlock()
}

func testSnapshot(held ...string) *Snapshot {
	now := time.Now()
	return NewSnapshot(held, []RoleRef{{Code: "manager", Name: "Manager", HierarchyLevel: 50}},
		[]string{"beta"}, OrgContext{UserID: 7}, now, now.Add(time.Hour))
}

func TestStoreFailsClosedBeforeLoad(t *testing.T) {
	store := NewStore(7, &stubLoader{snap: testSnapshot()}, nil, 0)

	if store.Loaded() {
		t.Fatalf("store must start unloaded")
	}
	if store.Can("users.view.self", nil) {
		t.Fatalf("Can must fail closed before load")
	}
	if store.HasRole("manager") || store.HasTag("beta") {
		t.Fatalf("role and tag checks must fail closed before load")
	}
	if _, ok := store.EffectiveScope("users", "view", nil); ok {
		t.Fatalf("EffectiveScope must fail closed before load")
	}
	if _, ok := store.MaxDataLevel("users", "view", nil); ok {
		t.Fatalf("MaxDataLevel must fail closed before load")
	}
}

func TestStoreInitIdempotent(t *testing.T) {
	loader := &stubLoader{snap: testSnapshot("users.view.self")}
	store := NewStore(7, loader, nil, 0)

	for i := 0; i < 3; i++ {
		if err := store.Init(context.Background()); err != nil {
			t.Fatalf("Init: %v", err)
		}
	}
	if got := loader.callCount(); got != 1 {
		t.Fatalf("loader called %d times, want 1", got)
	}
	if !store.Can("users.view.self", nil) {
		t.Fatalf("held permission must pass after load")
	}
	if !store.HasRole("manager") || !store.HasAnyRole("admin", "manager") || !store.HasTag("beta") {
		t.Fatalf("role and tag membership must reflect the snapshot")
	}
}

func TestStoreInitFailureStaysUnloaded(t *testing.T) {
	loader := &stubLoader{err: errors.New("db down")}
	store := NewStore(7, loader, nil, 0)

	if err := store.Init(context.Background()); err == nil {
		t.Fatalf("Init must surface the load failure")
	}
	if store.Loaded() {
		t.Fatalf("failed initial load must leave the store unloaded")
	}

	// A later Init retries because the state reverted to unloaded.
	loader.set(testSnapshot("users.view.self"), nil)
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("retry Init: %v", err)
	}
	if !store.Can("users.view.self", nil) {
		t.Fatalf("retry must load the snapshot")
	}
}

func TestStoreRefreshReplacesSnapshotWholesale(t *testing.T) {
	loader := &stubLoader{snap: testSnapshot("users.view.self")}
	store := NewStore(7, loader, nil, 0)
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}

	loader.set(testSnapshot("reports.view.company"), nil)
	if err := store.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if store.Can("users.view.self", nil) {
		t.Fatalf("revoked permission must disappear after refresh")
	}
	if !store.Can("reports.view.company", nil) {
		t.Fatalf("new permission must appear after refresh")
	}
}

func TestStoreRefreshFailureKeepsLastKnownGood(t *testing.T) {
	loader := &stubLoader{snap: testSnapshot("users.view.self")}
	store := NewStore(7, loader, nil, 0)
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}

	loader.set(nil, errors.New("transient"))
	if err := store.Refresh(context.Background()); err == nil {
		t.Fatalf("Refresh must return the loader error")
	}
	if !store.Can("users.view.self", nil) {
		t.Fatalf("failed refresh must keep the previous snapshot")
	}
}

func TestStoreClearDropsStateAndBlocksLateLoad(t *testing.T) {
	block := make(chan struct{})
	loader := &stubLoader{snap: testSnapshot("users.view.self"), block: block}
	store := NewStore(7, loader, nil, 0)

	done := make(chan error, 1)
	go func() { done <- store.Init(context.Background()) }()

	// Wait for the load to be in flight, then clear underneath it.
	for loader.callCount() == 0 {
		time.Sleep(time.Millisecond)
	}
	store.Clear()
	close(block)

	if err := <-done; err != nil {
		t.Fatalf("Init: %v", err)
	}
	if store.Loaded() {
		t.Fatalf("a load finishing after Clear must not repopulate the store")
	}
	if store.Can("users.view.self", nil) {
		t.Fatalf("cleared store must fail closed")
	}
}

func TestStoreCanRejectsMalformedCode(t *testing.T) {
	loader := &stubLoader{snap: testSnapshot("users.view.self")}
	store := NewStore(7, loader, nil, 0)
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if store.Can("not-a-code", nil) {
		t.Fatalf("malformed code must answer false, not panic")
	}
}

func TestStoreCanAnyCanAll(t *testing.T) {
	loader := &stubLoader{snap: testSnapshot("users.view.self", "reports.view.company")}
	store := NewStore(7, loader, nil, 0)
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}

	if !store.CanAny([]string{"comp.view.self", "reports.view.company"}, nil) {
		t.Fatalf("CanAny must pass when one code is held")
	}
	if store.CanAny([]string{"comp.view.self", "comp.edit.self"}, nil) {
		t.Fatalf("CanAny must fail when no code is held")
	}
	if !store.CanAll([]string{"users.view.self", "reports.view.company"}, nil) {
		t.Fatalf("CanAll must pass when every code is held")
	}
	if store.CanAll([]string{"users.view.self", "comp.edit.self"}, nil) {
		t.Fatalf("CanAll must fail when any code is missing")
	}
}

func TestStorePollRefreshes(t *testing.T) {
	loader := &stubLoader{snap: testSnapshot("users.view.self")}
	store := NewStore(7, loader, nil, 10*time.Millisecond)
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer store.Clear()

	deadline := time.After(2 * time.Second)
	for loader.callCount() < 2 {
		select {
		case <-deadline:
			t.Fatalf("poll never refreshed: %d loader calls", loader.callCount())
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestStorePollStopsAfterClear(t *testing.T) {
	loader := &stubLoader{snap: testSnapshot("users.view.self")}
	store := NewStore(7, loader, nil, 5*time.Millisecond)
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}

	store.Clear()
	settled := loader.callCount()
	time.Sleep(50 * time.Millisecond)
	if got := loader.callCount(); got != settled {
		t.Fatalf("poll kept loading after Clear: %d -> %d", settled, got)
	}
	if store.Loaded() {
		t.Fatalf("store must stay unloaded after Clear")
	}
}

func TestManagerKeysStoresBySession(t *testing.T) {
	loader := &stubLoader{snap: testSnapshot("users.view.self")}
	mgr := NewManager(loader, nil, 0)

	a, err := mgr.Ensure(context.Background(), "sess-a", 7)
	if err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	b, err := mgr.Ensure(context.Background(), "sess-b", 7)
	if err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if a == b {
		t.Fatalf("two sessions for the same user must not share a store")
	}

	again, err := mgr.Ensure(context.Background(), "sess-a", 7)
	if err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if again != a {
		t.Fatalf("Ensure must return the existing store for a known session")
	}
}

func TestManagerEnsureLoadsOnce(t *testing.T) {
	loader := &stubLoader{snap: testSnapshot("users.view.self")}
	mgr := NewManager(loader, nil, 0)

	var wg sync.WaitGroup
	var failures atomic.Int32
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := mgr.Ensure(context.Background(), "sess-a", 7); err != nil {
				failures.Add(1)
			}
		}()
	}
	wg.Wait()
	if failures.Load() != 0 {
		t.Fatalf("concurrent Ensure failed")
	}
	if got := loader.callCount(); got != 1 {
		t.Fatalf("loader called %d times for one session, want 1", got)
	}
}

func TestManagerDropClearsStore(t *testing.T) {
	loader := &stubLoader{snap: testSnapshot("users.view.self")}
	mgr := NewManager(loader, nil, 0)

	store, err := mgr.Ensure(context.Background(), "sess-a", 7)
	if err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	mgr.Drop("sess-a")

	if store.Loaded() {
		t.Fatalf("dropped store must be cleared")
	}
	if _, ok := mgr.Get("sess-a"); ok {
		t.Fatalf("dropped session must be forgotten")
	}
}

func TestStoreInitRefusedAfterClear(t *testing.T) {
	loader := &stubLoader{snap: testSnapshot("users.view.self")}
	store := NewStore(7, loader, nil, 5*time.Millisecond)
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	store.Clear()
	settled := loader.callCount()

	// A request that grabbed the store before Drop removed it from the
	// manager races the sign-out and calls Init on the cleared store. It
	// must not reload the snapshot or arm a new poll.
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("Init on a cleared store: %v", err)
	}
	if store.Loaded() {
		t.Fatalf("cleared store must not be repopulated by a late Init")
	}
	time.Sleep(50 * time.Millisecond)
	if got := loader.callCount(); got != settled {
		t.Fatalf("late Init re-armed the poll: %d -> %d loader calls", settled, got)
	}
}

func TestManagerDropThenLateInitKeepsStoreCleared(t *testing.T) {
	loader := &stubLoader{snap: testSnapshot("users.view.self")}
	mgr := NewManager(loader, nil, 5*time.Millisecond)

	store, err := mgr.Ensure(context.Background(), "sess-a", 7)
	if err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	mgr.Drop("sess-a")

	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("Init after Drop: %v", err)
	}
	if store.Loaded() {
		t.Fatalf("store must stay cleared after Drop")
	}
	settled := loader.callCount()
	time.Sleep(50 * time.Millisecond)
	if got := loader.callCount(); got != settled {
		t.Fatalf("loader kept running for a dropped session: %d -> %d", settled, got)
	}
}
