package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/querybridge/querybridge/internal/demo/seeder"
)

func main() {
	cfg, err := seeder.LoadConfigFromEnv(os.LookupEnv)
	if err != nil {
		slog.Error("failed to load demo seeder config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	service, err := seeder.NewService(cfg, logger, nil)
	if err != nil {
		logger.Error("failed to initialize demo seeder", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info(
		"demo seeder started",
		slog.String("api_url", cfg.APIBaseURL),
		slog.String("database", cfg.Database),
		slog.String("table", cfg.TableName),
		slog.Int("rows", cfg.Rows),
		slog.Int("batch_size", cfg.BatchSize),
	)

	inserted, err := service.Run(ctx)
	if err != nil {
		logger.Error("demo seeder failed", slog.Int("inserted", inserted), slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("demo seeder finished", slog.Int("inserted", inserted))
}
