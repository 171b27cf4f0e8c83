package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/maraichr/vectorsync/internal/ingestion"
	"github.com/maraichr/vectorsync/pkg/apierr"
)

// Enqueuer puts a sync job on the worker queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, job ingestion.SyncJob) (string, error)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeAPIError(w http.ResponseWriter, logger *slog.Logger, e *apierr.Error) {
	apierr.Write(w, logger, e)
}

type enqueuedResponse struct {
	JobID     string `json:"job_id"`
	MessageID string `json:"message_id"`
	Mode      string `json:"mode"`
}
