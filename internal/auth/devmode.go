package auth

import (
	"log/slog"
	"net/http"
)

// DevPrincipal is the synthetic admin used when authentication is disabled.
func DevPrincipal() *Principal {
	return &Principal{
		Sub:      "dev-user",
		Scopes:   map[string]bool{ScopeTrigger: true, ScopeRead: true},
		Roles:    map[string]bool{adminRole: true},
		ClientID: "dev",
		Issuer:   "dev",
	}
}

// DevModeMiddleware injects DevPrincipal into every request. Use only when
// AUTH_ENABLED=false.
func DevModeMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	logger.Warn("DEV MODE: authentication disabled, all requests get an admin principal")
	p := DevPrincipal()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}
