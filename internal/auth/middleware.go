package auth

import (
	"log/slog"
	"net/http"

	"github.com/maraichr/vectorsync/pkg/apierr"
)

// RequireAuth validates the bearer token and injects the Principal into the context.
func RequireAuth(verifier *Verifier, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, err := verifier.VerifyRequest(r)
			if err != nil {
				logger.Warn("auth failed", slog.String("error", err.Error()), slog.String("path", r.URL.Path))
				apierr.Write(w, logger, apierr.Unauthorized())
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
		})
	}
}

// RequireScope checks that the Principal has at least one of the required scopes.
// Admins bypass scope checks.
func RequireScope(scopes ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFrom(r.Context())
			if !ok {
				apierr.Write(w, nil, apierr.Unauthorized())
				return
			}
			if !p.IsAdmin() && !p.HasAnyScope(scopes...) {
				apierr.Write(w, nil, apierr.Forbidden())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
