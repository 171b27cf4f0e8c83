// Package mcp holds the shared pieces of the MCP server: response formatting
// and tool authorization.
package mcp

import (
	"errors"
	"log/slog"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/maraichr/vectorsync/internal/auth"
)

var (
	ErrUnauthenticated = errors.New("authentication required")
	ErrForbidden       = errors.New("insufficient scope")
)

// Server carries the settings every tool handler consults.
type Server struct {
	logger      *slog.Logger
	authEnabled bool
}

// NewServer creates a new MCP server instance. With authEnabled false every
// caller is treated as the dev-mode admin.
func NewServer(logger *slog.Logger, authEnabled bool) *Server {
	return &Server{logger: logger, authEnabled: authEnabled}
}

func (s *Server) Logger() *slog.Logger { return s.logger }

// Authorize returns the caller's Principal when it holds one of the scopes.
func (s *Server) Authorize(req *sdkmcp.CallToolRequest, scopes ...string) (*auth.Principal, error) {
	if !s.authEnabled {
		return auth.DevPrincipal(), nil
	}
	if req == nil || req.Extra == nil {
		return nil, ErrUnauthenticated
	}
	p, ok := auth.PrincipalFromTokenInfo(req.Extra.TokenInfo)
	if !ok {
		return nil, ErrUnauthenticated
	}
	if !p.IsAdmin() && !p.HasAnyScope(scopes...) {
		return nil, ErrForbidden
	}
	return p, nil
}
