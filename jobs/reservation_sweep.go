package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

// Sweeper expires overdue stock holds.
type Sweeper interface {
	ExpireStale(ctx context.Context) (int, error)
}

// ReservationSweepJob runs the hold-expiry sweep on a schedule so abandoned
// drafts stop counting against availability.
type ReservationSweepJob struct {
	Sweeper Sweeper
	Logger  *slog.Logger
}

// NewReservationSweepJob initialises the sweep handler.
func NewReservationSweepJob(sweeper Sweeper, logger *slog.Logger) *ReservationSweepJob {
	return &ReservationSweepJob{Sweeper: sweeper, Logger: logger}
}

// Handle executes one sweep pass.
func (j *ReservationSweepJob) Handle(ctx context.Context, _ *asynq.Task) error {
	if j == nil || j.Sweeper == nil {
		return errors.New("reservation sweep: handler not configured")
	}
	start := time.Now()
	swept, err := j.Sweeper.ExpireStale(ctx)
	logger := j.logger()
	if err != nil {
		logger.Error("sweep failed", slog.Any("error", err))
		return err
	}
	if swept > 0 {
		logger.Info("sweep completed",
			slog.Int("expired", swept),
			slog.Duration("duration", time.Since(start)))
	}
	return nil
}

func (j *ReservationSweepJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskReservationSweep))
	}
	return slog.Default().With(slog.String("job", TaskReservationSweep))
}
