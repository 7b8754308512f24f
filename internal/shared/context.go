package shared

import "context"

// Sessions travel on the request context from the session middleware down
// to handlers and route guards. The unexported key type keeps other
// packages from writing the slot.
type sessionContextKey struct{}

// ContextWithSession attaches the request's session. The session
// middleware is the only writer outside of tests.
func ContextWithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, sess)
}

// SessionFromContext returns the request's session, or nil when the
// request never passed through the session middleware.
func SessionFromContext(ctx context.Context) *Session {
	sess, _ := ctx.Value(sessionContextKey{}).(*Session)
	return sess
}
