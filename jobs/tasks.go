package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskReservationSweep expires overdue stock holds.
	TaskReservationSweep = "reservation:sweep"
	// TaskReconScan reconciles every product against its audit trail.
	TaskReconScan = "recon:scan"
	// TaskIdempotencyCleanup prunes aged idempotency keys.
	TaskIdempotencyCleanup = "idempotency:cleanup"
)

// NewReservationSweepTask constructs the sweep task. It carries no payload:
// the sweep always processes everything overdue.
func NewReservationSweepTask() *asynq.Task {
	return asynq.NewTask(TaskReservationSweep, nil)
}

// NewReconScanTask constructs the full reconciliation scan task.
func NewReconScanTask() *asynq.Task {
	return asynq.NewTask(TaskReconScan, nil)
}

// IdempotencyCleanupPayload overrides the retention window for one run.
type IdempotencyCleanupPayload struct {
	RetentionHours int `json:"retention_hours"`
}

// NewIdempotencyCleanupTask constructs the cleanup task.
func NewIdempotencyCleanupTask(payload IdempotencyCleanupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, data), nil
}
