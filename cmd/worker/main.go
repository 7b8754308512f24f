package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/vantage-hq/vantage/internal/app"
	"github.com/vantage-hq/vantage/internal/authz"
	"github.com/vantage-hq/vantage/internal/grants"
	"github.com/vantage-hq/vantage/internal/platform/db"
	"github.com/vantage-hq/vantage/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
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

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	catalog := authz.DefaultCatalog()
	grantsRepo := grants.NewRepository(pool)
	maintenance := jobs.NewGrantsJobs(grantsRepo, catalog, logger)

	sweepTask, err := jobs.NewSweepExpiredTask(jobs.SweepPayload{CutoffDays: cfg.SweepExpiredAfterDays})
	if err != nil {
		logger.Error("build sweep task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskSweepExpiredAssignments, Handler: maintenance.HandleSweepExpired},
			{Type: jobs.TaskSyncSuperAdmin, Handler: maintenance.HandleSyncSuperAdmin},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "30 2 * * *", Task: sweepTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "0 * * * *", Task: jobs.NewSyncSuperAdminTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("build worker", slog.Any("error", err))
		os.Exit(1)
	}

	// Reconcile the super_admin grant set right away instead of waiting
	// for the hourly cron slot; catalog changes ship with deploys.
	client := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer client.Close()
	if _, err := client.EnqueueSyncSuperAdmin(ctx); err != nil {
		logger.Warn("enqueue super_admin sync", slog.Any("error", err))
	}

	logger.Info("starting worker")
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker stopped", slog.Any("error", err))
		os.Exit(1)
	}
}
