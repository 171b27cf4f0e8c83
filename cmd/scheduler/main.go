package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/maraichr/vectorsync/internal/config"
	"github.com/maraichr/vectorsync/internal/ingestion"
	vk "github.com/maraichr/vectorsync/internal/store/valkey"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.Log.SlogLevel(),
	}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	vkClient, err := vk.NewClient(cfg.Valkey)
	if err != nil {
		logger.Error("failed to connect to valkey", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer vkClient.Close()

	logger.Info("starting scheduler")
	ingestion.NewRetryScheduler(ingestion.NewProducer(vkClient), cfg.Sync.ErrorsOut, cfg.Scheduler.RetryInterval, logger).Run(ctx)
	logger.Info("scheduler stopped")
}
