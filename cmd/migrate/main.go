package main

import (
	"context"
	"database/sql"
	"flag"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"

	"github.com/stockcore/stockcore/internal/app"
)

func main() {
	_ = godotenv.Load()

	cmd := flag.String("cmd", "up", "migration command: up|down|status|redo")
	dir := flag.String("dir", "migrations", "goose migrations directory")
	flag.Parse()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	db, err := sql.Open("postgres", cfg.PGDSN)
	if err != nil {
		logger.Error("open postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Warn("close postgres", slog.Any("error", err))
		}
	}()

	if err := goose.SetDialect("postgres"); err != nil {
		logger.Error("set goose dialect", slog.Any("error", err))
		os.Exit(1)
	}

	ctx := context.Background()
	switch *cmd {
	case "up", "down", "status", "redo":
		if err := goose.RunContext(ctx, *cmd, db, *dir); err != nil {
			logger.Error("goose command failed", slog.String("cmd", *cmd), slog.Any("error", err))
			os.Exit(1)
		}
	default:
		logger.Error("unknown command", slog.String("cmd", *cmd))
		os.Exit(1)
	}
	logger.Info("migrations complete", slog.String("cmd", *cmd))
}
