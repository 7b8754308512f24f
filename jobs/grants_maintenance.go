package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/vantage-hq/vantage/internal/authz"
	jobmetrics "github.com/vantage-hq/vantage/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// GrantsMaintainer is the slice of the grants repository the worker needs.
type GrantsMaintainer interface {
	SweepExpiredAssignments(ctx context.Context, cutoffDays int) (int64, error)
	SyncSuperAdmin(ctx context.Context, codes []string) error
}

// GrantsJobs bundles the grant maintenance task handlers.
type GrantsJobs struct {
	repo    GrantsMaintainer
	catalog *authz.Catalog
	logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewGrantsJobs wires the maintenance handlers.
func NewGrantsJobs(repo GrantsMaintainer, catalog *authz.Catalog, logger *slog.Logger) *GrantsJobs {
	if logger == nil {
		logger = slog.Default()
	}
	return &GrantsJobs{repo: repo, catalog: catalog, logger: logger}
}

// HandleSweepExpired processes TaskSweepExpiredAssignments tasks.
func (g *GrantsJobs) HandleSweepExpired(ctx context.Context, t *asynq.Task) (resultErr error) {
	var payload SweepPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	if payload.CutoffDays <= 0 {
		payload.CutoffDays = 30
	}

	tracker := g.metrics().Track(TaskSweepExpiredAssignments)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	removed, err := g.repo.SweepExpiredAssignments(ctx, payload.CutoffDays)
	if err != nil {
		return err
	}
	g.logger.Info("swept expired role assignments",
		slog.Int64("removed", removed), slog.Int("cutoff_days", payload.CutoffDays))
	return nil
}

// HandleSyncSuperAdmin processes TaskSyncSuperAdmin tasks, keeping the
// protected role's grant set equal to the full catalog.
func (g *GrantsJobs) HandleSyncSuperAdmin(ctx context.Context, t *asynq.Task) (resultErr error) {
	tracker := g.metrics().Track(TaskSyncSuperAdmin)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	codes := g.catalog.Codes()
	if err := g.repo.SyncSuperAdmin(ctx, codes); err != nil {
		return err
	}
	g.logger.Info("synced super_admin grants", slog.Int("catalog_size", len(codes)))
	return nil
}

func (g *GrantsJobs) metrics() *jobmetrics.Metrics {
	if g.Metrics != nil {
		return g.Metrics
	}
	return defaultJobMetrics
}
