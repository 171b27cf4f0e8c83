package auth

import "context"

type ctxKey struct{}

// Scopes understood by the trigger API and MCP server.
const (
	ScopeTrigger = "vectorsync:trigger"
	ScopeRead    = "vectorsync:read"

	adminRole = "vectorsync_admin"
)

// Principal represents an authenticated identity extracted from a JWT.
type Principal struct {
	Sub      string          `json:"sub"`
	Scopes   map[string]bool `json:"scopes"`
	Roles    map[string]bool `json:"roles"`
	ClientID string          `json:"client_id"`
	Issuer   string          `json:"issuer"`
	Email    string          `json:"email"`
}

// WithPrincipal stores a Principal in the context.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

// PrincipalFrom extracts the Principal from the context.
func PrincipalFrom(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(ctxKey{}).(*Principal)
	return p, ok
}

// Actor names the principal for job audit fields.
func (p *Principal) Actor() string {
	switch {
	case p.Email != "":
		return p.Email
	case p.Sub != "":
		return p.Sub
	default:
		return p.ClientID
	}
}

func (p *Principal) HasScope(s string) bool {
	return p.Scopes[s]
}

// HasAnyScope returns true if the principal has any of the given scopes.
func (p *Principal) HasAnyScope(scopes ...string) bool {
	for _, s := range scopes {
		if p.Scopes[s] {
			return true
		}
	}
	return false
}

// IsAdmin returns true if the principal has the vectorsync_admin role.
func (p *Principal) IsAdmin() bool {
	return p.Roles[adminRole]
}
