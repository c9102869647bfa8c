package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/stockcore/stockcore/internal/app"
	"github.com/stockcore/stockcore/internal/observability"
	"github.com/stockcore/stockcore/internal/platform/cache"
	"github.com/stockcore/stockcore/internal/platform/db"
	"github.com/stockcore/stockcore/internal/recon"
	"github.com/stockcore/stockcore/internal/reservation"
	"github.com/stockcore/stockcore/internal/shared"
	"github.com/stockcore/stockcore/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN, db.Options{MaxConns: cfg.PGMaxConns})
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if redisClient != nil {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}
	}()

	metrics := observability.NewMetrics()
	idempotencyStore := shared.NewIdempotencyStore(pool)

	reservationRepo := reservation.NewRepository(pool)
	reservationService := reservation.NewService(logger, reservationRepo, metrics, cfg.ReservationTTL)
	sweepJob := jobs.NewReservationSweepJob(reservationService, logger)

	reconRepo := recon.NewRepository(pool)
	var reconCache *recon.Cache
	if redisClient != nil {
		reconCache = recon.NewCache(redisClient, cfg.ReconCacheTTL)
	}
	reconService := recon.NewService(logger, reconRepo, reconCache, metrics)
	scanJob := jobs.NewReconScanJob(reconService, logger)

	cleanupJob := jobs.NewIdempotencyCleanupJob(idempotencyStore, logger, cfg.IdempotencyTTL)
	cleanupTask, err := jobs.NewIdempotencyCleanupTask(jobs.IdempotencyCleanupPayload{})
	if err != nil {
		logger.Error("build cleanup task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskReservationSweep, Handler: sweepJob.Handle},
			{Type: jobs.TaskReconScan, Handler: scanJob.Handle},
			{Type: jobs.TaskIdempotencyCleanup, Handler: cleanupJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.ReservationSweepEvery, Task: jobs.NewReservationSweepTask(), Options: []asynq.Option{asynq.MaxRetry(2)}},
			{Spec: cfg.ReconScanCron, Task: jobs.NewReconScanTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "0 3 * * *", Task: cleanupTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("build worker", slog.Any("error", err))
		os.Exit(1)
	}

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("starting worker")
		return worker.Run(ctx)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker stopped", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("worker shut down")
}
