package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/maraichr/vectorsync/internal/app"
	"github.com/maraichr/vectorsync/internal/config"
	"github.com/maraichr/vectorsync/internal/ingestion"
	"github.com/maraichr/vectorsync/internal/ingestion/connectors"
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

	// Valkey
	vkClient, err := vk.NewClient(cfg.Valkey)
	if err != nil {
		logger.Error("failed to connect to valkey", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer vkClient.Close()
	logger.Info("connected to valkey")

	rt, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialise sync runtime", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer rt.Close()

	var checkout app.Checkout
	if cfg.Sync.RepoURL != "" {
		checkout = connectors.NewGitConnector(cfg.Sync.GitToken, logger)
		logger.Info("worker manages its checkout", slog.String("root", cfg.Sync.RepoRoot))
	}

	locker := ingestion.NewLocker(vkClient, cfg.Valkey.LockTTL)
	lock := func(ctx context.Context, repo string) (func(), error) {
		l, err := locker.Acquire(ctx, repo)
		if err != nil {
			return nil, err
		}
		return func() {
			if err := l.Release(context.WithoutCancel(ctx)); err != nil {
				logger.Warn("release sync lock", slog.String("repo", repo), slog.String("error", err.Error()))
			}
		}, nil
	}
	runner := rt.JobRunner(lock, checkout)

	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "local"
	}
	consumer := ingestion.NewConsumer(vkClient, "worker-"+host, cfg.Valkey.ReclaimIdle, logger)
	if err := consumer.EnsureGroup(ctx); err != nil {
		logger.Error("failed to ensure consumer group", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("starting worker, consuming from stream", slog.String("stream", ingestion.StreamName))
	if err := consumer.Consume(ctx, runner.Handle); err != nil && ctx.Err() == nil {
		logger.Error("consumer error", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("worker stopped")
}
