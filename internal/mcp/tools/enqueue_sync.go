package tools

import (
	"context"
	"fmt"
	"log/slog"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/maraichr/vectorsync/internal/auth"
	"github.com/maraichr/vectorsync/internal/ingestion"
	"github.com/maraichr/vectorsync/internal/mcp"
)

// EnqueueSyncParams are the parameters for the enqueue_sync tool.
type EnqueueSyncParams struct {
	Mode       string   `json:"mode"`
	Files      []string `json:"files,omitempty"`
	FromCommit string   `json:"from_commit,omitempty"`
	ToCommit   string   `json:"to_commit,omitempty"`
}

// EnqueueSyncHandler implements the enqueue_sync MCP tool.
type EnqueueSyncHandler struct {
	srv      *mcp.Server
	producer Enqueuer
}

func NewEnqueueSyncHandler(srv *mcp.Server, producer Enqueuer) *EnqueueSyncHandler {
	return &EnqueueSyncHandler{srv: srv, producer: producer}
}

func (h *EnqueueSyncHandler) Handle(ctx context.Context, req *sdkmcp.CallToolRequest, params EnqueueSyncParams) (string, error) {
	p, err := h.srv.Authorize(req, auth.ScopeTrigger)
	if err != nil {
		return "", err
	}
	if h.producer == nil {
		return "", fmt.Errorf("job queue is not configured")
	}

	job := ingestion.NewSyncJob(ingestion.Mode(params.Mode), ingestion.TriggerMCP)
	job.Files = params.Files
	job.FromCommit = params.FromCommit
	job.ToCommit = params.ToCommit
	if err := job.Validate(); err != nil {
		return "", err
	}

	msgID, err := h.producer.Enqueue(ctx, job)
	if err != nil {
		return "", fmt.Errorf("enqueue sync: %w", err)
	}
	h.srv.Logger().Info("sync job enqueued",
		slog.String("job_id", job.ID),
		slog.String("mode", string(job.Mode)),
		slog.String("actor", p.Actor()))

	return fmt.Sprintf("Queued **%s** sync.\n\n- Job: `%s`\n- Message: `%s`\n", job.Mode, job.ID, msgID), nil
}
