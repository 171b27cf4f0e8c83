package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/maraichr/vectorsync/internal/auth"
	"github.com/maraichr/vectorsync/internal/ingestion"
	"github.com/maraichr/vectorsync/pkg/apierr"
)

type SyncHandler struct {
	logger   *slog.Logger
	producer Enqueuer
}

func NewSyncHandler(logger *slog.Logger, producer Enqueuer) *SyncHandler {
	return &SyncHandler{logger: logger, producer: producer}
}

type syncRequest struct {
	Mode       ingestion.Mode `json:"mode"`
	Files      []string       `json:"files"`
	FromCommit string         `json:"from_commit"`
	ToCommit   string         `json:"to_commit"`
}

// Trigger handles POST /api/v1/sync.
func (h *SyncHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	var req syncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIError(w, h.logger, apierr.InvalidRequestBody())
		return
	}

	job := ingestion.NewSyncJob(req.Mode, ingestion.TriggerManual)
	job.Files = req.Files
	job.FromCommit = req.FromCommit
	job.ToCommit = req.ToCommit
	if e := validateJob(job); e != nil {
		writeAPIError(w, h.logger, e)
		return
	}

	if h.producer == nil {
		writeAPIError(w, h.logger, apierr.QueueUnavailable())
		return
	}
	msgID, err := h.producer.Enqueue(r.Context(), job)
	if err != nil {
		writeAPIError(w, h.logger, apierr.EnqueueFailed(err))
		return
	}

	actor := "anonymous"
	if p, ok := auth.PrincipalFrom(r.Context()); ok {
		actor = p.Actor()
	}
	h.logger.Info("sync job enqueued",
		slog.String("job_id", job.ID),
		slog.String("mode", string(job.Mode)),
		slog.String("actor", actor))

	writeJSON(w, http.StatusAccepted, enqueuedResponse{JobID: job.ID, MessageID: msgID, Mode: string(job.Mode)})
}
