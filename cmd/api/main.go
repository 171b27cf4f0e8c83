package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/maraichr/vectorsync/internal/api"
	apihandler "github.com/maraichr/vectorsync/internal/api/handler"
	"github.com/maraichr/vectorsync/internal/app"
	"github.com/maraichr/vectorsync/internal/auth"
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

	ctx := context.Background()
	deps := api.RouterDeps{JournalPath: cfg.Sync.ErrorsOut}

	// Valkey (optional, enables the job queue)
	vkClient, err := vk.NewClient(cfg.Valkey)
	if err != nil {
		logger.Warn("valkey connection failed, job queue disabled", slog.String("error", err.Error()))
	} else {
		deps.Producer = ingestion.NewProducer(vkClient)
		deps.Ready = func(ctx context.Context) error {
			return vkClient.Do(ctx, vkClient.B().Ping().Build()).Error()
		}
		defer vkClient.Close()
		logger.Info("connected to valkey")
	}

	// Journal archive (optional, enables ?archive= lookups)
	archiver, err := app.NewArchiver(ctx, cfg, logger)
	if err != nil {
		logger.Warn("journal archive unavailable", slog.String("error", err.Error()))
	} else if archiver != nil {
		deps.Archive = archiver
	}

	deps.Webhook = apihandler.WebhookConfig{
		Secret:     cfg.Webhook.GitHubSecret,
		Repository: cfg.Sync.GitHubRepository,
	}
	if cfg.Sync.RepoURL != "" {
		_, deps.Webhook.Branch = connectors.ParseSource(cfg.Sync.RepoURL)
	}

	// Auth (optional, requires AUTH_ENABLED=true and an issuer URL)
	if cfg.Auth.Enabled {
		if cfg.Auth.IssuerURL == "" {
			logger.Error("AUTH_ENABLED=true but AUTH_ISSUER_URL is empty")
			os.Exit(1)
		}
		verifier, err := auth.NewVerifier(ctx, cfg.Auth.IssuerURL, cfg.Auth.PublicIssuer, cfg.Auth.Audience)
		if err != nil {
			logger.Error("failed to init OIDC verifier", slog.String("error", err.Error()))
			os.Exit(1)
		}
		deps.Verifier = verifier
		logger.Info("OIDC auth enabled", slog.String("issuer", cfg.Auth.IssuerURL))
	}

	router := api.NewRouter(logger, deps)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Graceful shutdown
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("starting API server", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", slog.String("error", err.Error()))
	}

	logger.Info("server stopped")
}
