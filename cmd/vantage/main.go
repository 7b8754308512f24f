package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vantage-hq/vantage/internal/app"
	"github.com/vantage-hq/vantage/internal/auth"
	"github.com/vantage-hq/vantage/internal/authz"
	"github.com/vantage-hq/vantage/internal/fieldsec"
	"github.com/vantage-hq/vantage/internal/grants"
	"github.com/vantage-hq/vantage/internal/observability"
	"github.com/vantage-hq/vantage/internal/platform/cache"
	"github.com/vantage-hq/vantage/internal/platform/db"
	"github.com/vantage-hq/vantage/internal/roles"
	"github.com/vantage-hq/vantage/internal/shared"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "vantage_session", cfg.SessionTTL, cfg.IsProduction())

	catalog := authz.DefaultCatalog()
	grantsRepo := grants.NewRepository(dbpool)
	grantsService := grants.NewService(grantsRepo, logger, cfg.AuthzSnapshotTTL)

	permStores := authz.NewManager(grantsService, logger, cfg.AuthzRefreshInterval)
	fieldStores := fieldsec.NewManager(grantsService, logger, cfg.AuthzRefreshInterval)

	metrics := observability.NewMetrics()
	authzMiddleware := authz.Middleware{Stores: permStores, Logger: logger, Metrics: metrics}

	authRepo := auth.NewRepository(dbpool)
	authService := auth.NewService(authRepo)
	authHandler := auth.NewHandler(logger, authService, sessionManager, permStores, fieldStores)

	grantsHandler := grants.NewHandler(logger, grantsService)

	rolesRepo := roles.NewRepository(dbpool)
	rolesService := roles.NewService(rolesRepo, catalog)
	rolesHandler := roles.NewHandler(logger, rolesService, authzMiddleware)

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		SessionManager: sessionManager,
		AuthHandler:    authHandler,
		GrantsHandler:  grantsHandler,
		RolesHandler:   rolesHandler,
		Metrics:        metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", slog.Any("error", err))
	}
}
