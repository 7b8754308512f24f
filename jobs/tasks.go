package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskSweepExpiredAssignments purges role assignments that expired
	// long enough ago. Evaluation-time exclusion is the invariant that
	// keeps expired grants out of decisions; the sweep is housekeeping.
	TaskSweepExpiredAssignments = "grants:sweep_expired"
	// TaskSyncSuperAdmin re-grants the full permission catalog to the
	// super_admin role.
	TaskSyncSuperAdmin = "rbac:sync_super_admin"
)

// SweepPayload configures the expired-assignment sweep.
type SweepPayload struct {
	CutoffDays int `json:"cutoff_days"`
}

// NewSweepExpiredTask constructs the sweep task.
func NewSweepExpiredTask(payload SweepPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSweepExpiredAssignments, data), nil
}

// NewSyncSuperAdminTask constructs the super_admin sync task.
func NewSyncSuperAdminTask() *asynq.Task {
	return asynq.NewTask(TaskSyncSuperAdmin, nil)
}
