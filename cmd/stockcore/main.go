package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"

	"github.com/stockcore/stockcore/internal/app"
	"github.com/stockcore/stockcore/internal/catalog"
	"github.com/stockcore/stockcore/internal/ledger"
	"github.com/stockcore/stockcore/internal/observability"
	"github.com/stockcore/stockcore/internal/platform/cache"
	"github.com/stockcore/stockcore/internal/platform/db"
	"github.com/stockcore/stockcore/internal/recon"
	"github.com/stockcore/stockcore/internal/reservation"
	"github.com/stockcore/stockcore/internal/sales"
	"github.com/stockcore/stockcore/internal/shared"
	"github.com/stockcore/stockcore/internal/transfer"
	"github.com/stockcore/stockcore/internal/warehouse"
	"github.com/stockcore/stockcore/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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
		logger.Warn("redis unavailable, recon cache disabled", slog.Any("error", err))
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

	catalogRepo := catalog.NewRepository(pool)
	catalogService := catalog.NewService(catalogRepo)
	catalogHandler := catalog.NewHandler(logger, catalogService)

	ledgerRepo := ledger.NewRepository(pool)
	ledgerService := ledger.NewService(ledgerRepo, idempotencyStore, metrics)
	ledgerHandler := ledger.NewHandler(logger, ledgerService)

	warehouseRepo := warehouse.NewRepository(pool)
	warehouseService := warehouse.NewService(warehouseRepo, idempotencyStore, metrics)
	warehouseHandler := warehouse.NewHandler(logger, warehouseService)

	transferRepo := transfer.NewRepository(pool)
	transferService := transfer.NewService(logger, transferRepo, warehouseRepo, metrics)
	transferHandler := transfer.NewHandler(logger, transferService)

	reservationRepo := reservation.NewRepository(pool)
	reservationService := reservation.NewService(logger, reservationRepo, metrics, cfg.ReservationTTL)
	reservationHandler := reservation.NewHandler(logger, reservationService)

	salesRepo := sales.NewRepository(pool)
	salesService := sales.NewService(logger, salesRepo, reservationService, metrics)
	salesHandler := sales.NewHandler(logger, salesService)

	reconRepo := recon.NewRepository(pool)
	var reconCache *recon.Cache
	if redisClient != nil {
		reconCache = recon.NewCache(redisClient, cfg.ReconCacheTTL)
	}
	reconService := recon.NewService(logger, reconRepo, reconCache, metrics)
	reconHandler := recon.NewHandler(logger, reconService)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobsClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Warn("jobs client unavailable", slog.Any("error", err))
	}
	defer func() {
		if jobsClient != nil {
			if err := jobsClient.Close(); err != nil {
				logger.Warn("jobs client close", slog.Any("error", err))
			}
		}
	}()
	jobHandler := jobs.NewHandler(inspector, jobsClient, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		CatalogHandler:     catalogHandler,
		LedgerHandler:      ledgerHandler,
		WarehouseHandler:   warehouseHandler,
		TransferHandler:    transferHandler,
		ReservationHandler: reservationHandler,
		SalesHandler:       salesHandler,
		ReconHandler:       reconHandler,
		JobHandler:         jobHandler,
		Metrics:            metrics,
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
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
