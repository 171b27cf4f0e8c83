package handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/maraichr/vectorsync/internal/ingestion"
	"github.com/maraichr/vectorsync/pkg/apierr"
)

const maxWebhookBody = 5 << 20

// WebhookConfig scopes the GitHub webhook to one repository and branch.
type WebhookConfig struct {
	Secret     string
	Repository string // owner/name; empty accepts any repository
	Branch     string // empty accepts any branch
}

type WebhookHandler struct {
	logger   *slog.Logger
	producer Enqueuer
	cfg      WebhookConfig
}

func NewWebhookHandler(logger *slog.Logger, producer Enqueuer, cfg WebhookConfig) *WebhookHandler {
	return &WebhookHandler{logger: logger, producer: producer, cfg: cfg}
}

type pushEvent struct {
	Ref        string `json:"ref"`
	Before     string `json:"before"`
	After      string `json:"after"`
	Deleted    bool   `json:"deleted"`
	Repository struct {
		FullName string `json:"full_name"`
	} `json:"repository"`
}

// GitHubPush handles POST /api/v1/webhooks/github.
func (h *WebhookHandler) GitHubPush(w http.ResponseWriter, r *http.Request) {
	if h.cfg.Secret == "" {
		writeAPIError(w, h.logger, apierr.WebhookNotEnabled())
		return
	}

	sig := r.Header.Get("X-Hub-Signature-256")
	if sig == "" {
		writeAPIError(w, h.logger, apierr.MissingSignature())
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeAPIError(w, h.logger, apierr.InvalidRequestBody())
		return
	}
	if !validSignature(h.cfg.Secret, body, sig) {
		writeAPIError(w, h.logger, apierr.InvalidSignature())
		return
	}

	switch event := r.Header.Get("X-GitHub-Event"); event {
	case "ping":
		writeJSON(w, http.StatusOK, map[string]string{"status": "pong"})
		return
	case "push":
	default:
		writeAPIError(w, h.logger, apierr.UnsupportedEvent(event))
		return
	}

	var ev pushEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		writeAPIError(w, h.logger, apierr.InvalidRequestBody())
		return
	}
	if !h.matches(ev) {
		h.logger.Info("ignoring push",
			slog.String("repository", ev.Repository.FullName),
			slog.String("ref", ev.Ref))
		writeAPIError(w, h.logger, apierr.RepositoryMismatch())
		return
	}
	if ev.Deleted || ev.After == "" {
		writeAPIError(w, h.logger, apierr.UnsupportedEvent("branch deletion"))
		return
	}

	job := ingestion.NewSyncJob(ingestion.ModeCommitRange, ingestion.TriggerWebhook)
	job.FromCommit = ingestion.PushRange(ev.Before, ev.After)
	job.ToCommit = ev.After
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

	h.logger.Info("webhook received",
		slog.String("repository", ev.Repository.FullName),
		slog.String("from", job.FromCommit),
		slog.String("to", job.ToCommit),
		slog.String("job_id", job.ID))

	writeJSON(w, http.StatusAccepted, enqueuedResponse{JobID: job.ID, MessageID: msgID, Mode: string(job.Mode)})
}

func (h *WebhookHandler) matches(ev pushEvent) bool {
	if h.cfg.Repository != "" && !strings.EqualFold(h.cfg.Repository, ev.Repository.FullName) {
		return false
	}
	if h.cfg.Branch != "" && ev.Ref != "refs/heads/"+h.cfg.Branch {
		return false
	}
	return true
}

// validSignature checks a "sha256=<hex>" header against the body HMAC.
func validSignature(secret string, body []byte, header string) bool {
	hexSig, ok := strings.CutPrefix(header, "sha256=")
	if !ok {
		return false
	}
	got, err := hex.DecodeString(hexSig)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}
