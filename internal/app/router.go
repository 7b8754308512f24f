package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/vantage-hq/vantage/internal/auth"
	"github.com/vantage-hq/vantage/internal/grants"
	"github.com/vantage-hq/vantage/internal/observability"
	"github.com/vantage-hq/vantage/internal/roles"
	"github.com/vantage-hq/vantage/internal/shared"
)

// RouterParams groups dependencies for building the HTTP router. Handlers
// carry their own route guards; the roles handler mounts the permission
// middleware on its admin routes itself.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	AuthHandler    *auth.Handler
	GrantsHandler  *grants.Handler
	RolesHandler   *roles.Handler
	Metrics        *observability.Metrics
}

// NewRouter constructs the chi.Router with Vantage defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			params.AuthHandler.MountRoutes(r)
		})
		r.Route("/authz", func(r chi.Router) {
			params.GrantsHandler.MountRoutes(r)
		})
		r.Route("/roles", func(r chi.Router) {
			params.RolesHandler.MountRoutes(r)
		})
	})

	return r
}
