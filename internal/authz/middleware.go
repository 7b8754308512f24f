package authz

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/vantage-hq/vantage/internal/shared"
)

// DecisionRecorder counts authorization outcomes; the observability
// metrics implement it.
type DecisionRecorder interface {
	RecordDecision(allowed bool)
}

// Middleware wires authorization checks into HTTP handlers. Checks run
// against the session's cached store; an unauthenticated request or a
// store that has not loaded answers forbidden.
type Middleware struct {
	Stores  *Manager
	Logger  *slog.Logger
	Metrics DecisionRecorder
}

// RequireAny admits the request when the subject holds at least one of
// the given permissions (cascade semantics apply per code).
func (m Middleware) RequireAny(codes ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(codes) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			store, ok := m.sessionStore(r)
			allowed := ok && store.CanAny(codes, nil)
			m.record(allowed)
			if !allowed {
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAll admits the request only when every permission is held.
func (m Middleware) RequireAll(codes ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(codes) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			store, ok := m.sessionStore(r)
			allowed := ok && store.CanAll(codes, nil)
			m.record(allowed)
			if !allowed {
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (m Middleware) record(allowed bool) {
	if m.Metrics != nil {
		m.Metrics.RecordDecision(allowed)
	}
}

func (m Middleware) sessionStore(r *http.Request) (*Store, bool) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		return nil, false
	}
	raw := strings.TrimSpace(sess.User())
	if raw == "" {
		return nil, false
	}
	userID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		if m.Logger != nil {
			m.Logger.Error("authz parse user id", slog.String("value", raw))
		}
		return nil, false
	}
	store, err := m.Stores.Ensure(r.Context(), sess.ID, userID)
	if err != nil {
		// Initial load failure: the subject is treated as having no
		// permissions until a load succeeds.
		if m.Logger != nil {
			m.Logger.Error("authz ensure store", slog.Any("error", err))
		}
	}
	return store, true
}
