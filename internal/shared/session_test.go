package shared

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestManager(t *testing.T) *SessionManager {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewSessionManager(client, "test_session", time.Hour, false)
}

func commitCookie(t *testing.T, sm *SessionManager, sess *Session) *http.Cookie {
	t.Helper()
	rec := httptest.NewRecorder()
	if err := sm.Commit(context.Background(), rec, sess); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == sm.CookieName() {
			return cookie
		}
	}
	t.Fatalf("session cookie missing")
	return nil
}

func TestSessionRoundTrip(t *testing.T) {
	sm := newTestManager(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, err := sm.Load(context.Background(), req)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	sess.SetUser("7")
	sess.Set("theme", "dark")
	cookie := commitCookie(t, sm, sess)

	again := httptest.NewRequest(http.MethodGet, "/", nil)
	again.AddCookie(cookie)
	loaded, err := sm.Load(context.Background(), again)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.User() != "7" {
		t.Fatalf("user = %q, want 7", loaded.User())
	}
	if loaded.Get("theme") != "dark" {
		t.Fatalf("value = %q, want dark", loaded.Get("theme"))
	}
	if loaded.ID != sess.ID {
		t.Fatalf("session id changed across requests")
	}
}

func TestSessionUnknownCookieStartsFresh(t *testing.T) {
	sm := newTestManager(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: sm.CookieName(), Value: "expired-id"})
	sess, err := sm.Load(context.Background(), req)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if sess.User() != "" {
		t.Fatalf("stale cookie must not resurrect a user")
	}
	if sess.ID != "expired-id" {
		t.Fatalf("cookie id must be reused for the fresh session")
	}
}

func TestSessionDestroy(t *testing.T) {
	sm := newTestManager(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, err := sm.Load(context.Background(), req)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	sess.SetUser("7")
	cookie := commitCookie(t, sm, sess)

	sm.Destroy(sess)
	rec := httptest.NewRecorder()
	if err := sm.Commit(context.Background(), rec, sess); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	var cleared *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == sm.CookieName() {
			cleared = c
		}
	}
	if cleared == nil || cleared.MaxAge != -1 {
		t.Fatalf("destroy must expire the cookie")
	}

	again := httptest.NewRequest(http.MethodGet, "/", nil)
	again.AddCookie(cookie)
	loaded, err := sm.Load(context.Background(), again)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.User() != "" {
		t.Fatalf("destroyed session must not reload its user")
	}
}

func TestSessionContextHelpers(t *testing.T) {
	sess := &Session{ID: "ctx-sess"}
	ctx := ContextWithSession(context.Background(), sess)
	if got := SessionFromContext(ctx); got != sess {
		t.Fatalf("context round trip failed")
	}
	if got := SessionFromContext(context.Background()); got != nil {
		t.Fatalf("empty context must yield nil session")
	}
}
