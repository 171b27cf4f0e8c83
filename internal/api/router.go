package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	apihandler "github.com/maraichr/vectorsync/internal/api/handler"
	apimw "github.com/maraichr/vectorsync/internal/api/middleware"
	"github.com/maraichr/vectorsync/internal/auth"
)

// RouterDeps holds the dependencies of the trigger API. Nil fields disable the
// routes that need them.
type RouterDeps struct {
	Producer    apihandler.Enqueuer
	Ready       apihandler.PingFunc
	Verifier    *auth.Verifier
	JournalPath string
	Archive     apihandler.ArchiveReader
	Webhook     apihandler.WebhookConfig
}

func NewRouter(logger *slog.Logger, deps RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(apimw.Logger(logger))
	r.Use(chimw.Recoverer)

	health := apihandler.NewHealthHandler(deps.Ready)
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)

	r.Route("/api/v1", func(r chi.Router) {
		// Webhooks authenticate with their HMAC signature, not a bearer token.
		webhooks := apihandler.NewWebhookHandler(logger, deps.Producer, deps.Webhook)
		r.Post("/webhooks/github", webhooks.GitHubPush)

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware(logger, deps.Verifier))

			sync := apihandler.NewSyncHandler(logger, deps.Producer)
			r.With(auth.RequireScope(auth.ScopeTrigger)).Post("/sync", sync.Trigger)

			failures := apihandler.NewFailuresHandler(logger, deps.JournalPath, deps.Archive)
			r.With(auth.RequireScope(auth.ScopeRead, auth.ScopeTrigger)).Get("/sync/failures", failures.List)
		})
	})

	return r
}

func authMiddleware(logger *slog.Logger, v *auth.Verifier) func(http.Handler) http.Handler {
	if v == nil {
		return auth.DevModeMiddleware(logger)
	}
	return auth.RequireAuth(v, logger)
}
