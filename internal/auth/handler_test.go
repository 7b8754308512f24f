package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/vantage-hq/vantage/internal/authz"
	"github.com/vantage-hq/vantage/internal/fieldsec"
	"github.com/vantage-hq/vantage/internal/shared"
	_ "github.com/vantage-hq/vantage/testing"
)

type stubRepo struct {
	user     *User
	sessions map[string]int64
	removed  []string
}

func newStubRepo(user *User) *stubRepo {
	return &stubRepo{user: user, sessions: make(map[string]int64)}
}

func (r *stubRepo) FindByEmail(ctx context.Context, email string) (*User, error) {
	if r.user == nil || r.user.Email != email {
		return nil, shared.ErrNotFound
	}
	return r.user, nil
}

func (r *stubRepo) CreateSession(ctx context.Context, id string, userID int64, expiresAt time.Time, ip, ua string) error {
	r.sessions[id] = userID
	return nil
}

func (r *stubRepo) DeleteSession(ctx context.Context, id string) error {
	delete(r.sessions, id)
	r.removed = append(r.removed, id)
	return nil
}

func testUser(t *testing.T, email, password string) *User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	return &User{ID: 7, Email: email, PasswordHash: string(hash), IsActive: true}
}

type handlerEnv struct {
	handler     *Handler
	repo        *stubRepo
	permStores  *authz.Manager
	fieldStores *fieldsec.Manager
	permLoads   *int
}

func newHandlerEnv(t *testing.T, user *User) *handlerEnv {
	t.Helper()
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sessions := shared.NewSessionManager(redisClient, "test_session", time.Hour, false)

	permLoads := 0
	permLoader := authz.LoaderFunc(func(ctx context.Context, userID int64) (*authz.Snapshot, error) {
		permLoads++
		now := time.Now()
		return authz.NewSnapshot([]string{"users.view.self"}, nil, nil,
			authz.OrgContext{UserID: userID}, now, now.Add(time.Hour)), nil
	})
	fieldLoader := fieldsec.LoaderFunc(func(ctx context.Context, userID int64) (*fieldsec.Snapshot, error) {
		now := time.Now()
		return fieldsec.NewSnapshot(nil, fieldsec.DefaultUserLevel, now, now.Add(time.Hour)), nil
	})

	repo := newStubRepo(user)
	permStores := authz.NewManager(permLoader, nil, 0)
	fieldStores := fieldsec.NewManager(fieldLoader, nil, 0)
	handler := NewHandler(nil, NewService(repo), sessions, permStores, fieldStores)
	return &handlerEnv{
		handler:     handler,
		repo:        repo,
		permStores:  permStores,
		fieldStores: fieldStores,
		permLoads:   &permLoads,
	}
}

func withSession(r *http.Request, sess *shared.Session) *http.Request {
	return r.WithContext(shared.ContextWithSession(r.Context(), sess))
}

func TestLoginWarmsStores(t *testing.T) {
	env := newHandlerEnv(t, testUser(t, "jane@vantage.io", "pass1234"))

	sess := &shared.Session{ID: "sess-login"}
	req := httptest.NewRequest(http.MethodPost, "/login",
		strings.NewReader(`{"email":"jane@vantage.io","password":"pass1234"}`))
	rec := httptest.NewRecorder()
	env.handler.login(rec, withSession(req, sess))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if sess.User() != "7" {
		t.Fatalf("session user = %q, want 7", sess.User())
	}
	if *env.permLoads != 1 {
		t.Fatalf("permission store loads = %d, want 1", *env.permLoads)
	}
	store, ok := env.permStores.Get("sess-login")
	if !ok || !store.Loaded() {
		t.Fatalf("login must warm the permission store")
	}
	if _, ok := env.repo.sessions["sess-login"]; !ok {
		t.Fatalf("login must register the session record")
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	env := newHandlerEnv(t, testUser(t, "jane@vantage.io", "pass1234"))

	cases := []struct {
		name string
		body string
		want int
	}{
		{"wrong password", `{"email":"jane@vantage.io","password":"nope"}`, http.StatusUnauthorized},
		{"unknown user", `{"email":"ghost@vantage.io","password":"pass1234"}`, http.StatusUnauthorized},
		{"not an email", `{"email":"jane","password":"pass1234"}`, http.StatusBadRequest},
		{"missing password", `{"email":"jane@vantage.io"}`, http.StatusBadRequest},
		{"malformed body", `{"email":`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sess := &shared.Session{ID: "sess-x"}
			req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(tc.body))
			rec := httptest.NewRecorder()
			env.handler.login(rec, withSession(req, sess))
			if rec.Code != tc.want {
				t.Fatalf("status = %d, want %d", rec.Code, tc.want)
			}
			if sess.User() != "" {
				t.Fatalf("failed login must not attach a user to the session")
			}
		})
	}
}

func TestLoginRejectsInactiveUser(t *testing.T) {
	user := testUser(t, "jane@vantage.io", "pass1234")
	user.IsActive = false
	env := newHandlerEnv(t, user)

	sess := &shared.Session{ID: "sess-x"}
	req := httptest.NewRequest(http.MethodPost, "/login",
		strings.NewReader(`{"email":"jane@vantage.io","password":"pass1234"}`))
	rec := httptest.NewRecorder()
	env.handler.login(rec, withSession(req, sess))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestLogoutDropsStoresBeforeSession(t *testing.T) {
	env := newHandlerEnv(t, testUser(t, "jane@vantage.io", "pass1234"))

	sess := &shared.Session{ID: "sess-out"}
	loginReq := httptest.NewRequest(http.MethodPost, "/login",
		strings.NewReader(`{"email":"jane@vantage.io","password":"pass1234"}`))
	env.handler.login(httptest.NewRecorder(), withSession(loginReq, sess))

	store, ok := env.permStores.Get("sess-out")
	if !ok || !store.Loaded() {
		t.Fatalf("precondition: store warmed by login")
	}

	logoutReq := httptest.NewRequest(http.MethodPost, "/logout", nil)
	rec := httptest.NewRecorder()
	env.handler.logout(rec, withSession(logoutReq, sess))

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if store.Loaded() {
		t.Fatalf("logout must clear the permission store")
	}
	if _, ok := env.permStores.Get("sess-out"); ok {
		t.Fatalf("logout must forget the session store")
	}
	if len(env.repo.removed) != 1 || env.repo.removed[0] != "sess-out" {
		t.Fatalf("logout must remove the session record, got %v", env.repo.removed)
	}
}

func TestLogoutWithoutSessionIsNoop(t *testing.T) {
	env := newHandlerEnv(t, nil)

	rec := httptest.NewRecorder()
	env.handler.logout(rec, httptest.NewRequest(http.MethodPost, "/logout", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
}
