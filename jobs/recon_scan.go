package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/stockcore/stockcore/internal/recon"
)

// Checker runs the full reconciliation scan.
type Checker interface {
	CheckAll(ctx context.Context) (recon.Summary, error)
}

// ReconScanJob reconciles every product against its audit trail, logging
// findings and refreshing the report cache. It never corrects anything.
type ReconScanJob struct {
	Checker Checker
	Logger  *slog.Logger
}

// NewReconScanJob initialises the scan handler.
func NewReconScanJob(checker Checker, logger *slog.Logger) *ReconScanJob {
	return &ReconScanJob{Checker: checker, Logger: logger}
}

// Handle executes one full scan.
func (j *ReconScanJob) Handle(ctx context.Context, _ *asynq.Task) error {
	if j == nil || j.Checker == nil {
		return errors.New("recon scan: handler not configured")
	}
	start := time.Now()
	logger := j.logger()
	logger.Info("starting reconciliation scan")

	summary, err := j.Checker.CheckAll(ctx)
	if err != nil {
		logger.Error("scan failed", slog.Any("error", err))
		return err
	}
	logger.Info("completed reconciliation scan",
		slog.Int("products", summary.Products),
		slog.Int("mismatched", summary.Mismatched),
		slog.Duration("duration", time.Since(start)))
	return nil
}

func (j *ReconScanJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskReconScan))
	}
	return slog.Default().With(slog.String("job", TaskReconScan))
}
