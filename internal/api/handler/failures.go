package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/maraichr/vectorsync/internal/journal"
	"github.com/maraichr/vectorsync/pkg/apierr"
)

// ArchiveReader reads an archived journal by object key.
type ArchiveReader interface {
	Fetch(ctx context.Context, key string) ([]journal.Entry, error)
}

type FailuresHandler struct {
	logger      *slog.Logger
	journalPath string
	archive     ArchiveReader
}

func NewFailuresHandler(logger *slog.Logger, journalPath string, archive ArchiveReader) *FailuresHandler {
	return &FailuresHandler{logger: logger, journalPath: journalPath, archive: archive}
}

type failuresResponse struct {
	Source   string          `json:"source"`
	Failures []journal.Entry `json:"failures"`
	Total    int             `json:"total"`
}

// List handles GET /api/v1/sync/failures. With ?archive=<key> it reads an
// archived journal instead of the local one.
func (h *FailuresHandler) List(w http.ResponseWriter, r *http.Request) {
	if key := strings.TrimSpace(r.URL.Query().Get("archive")); key != "" {
		h.listArchived(w, r, key)
		return
	}

	entries, err := journal.ReadFile(h.journalPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			writeAPIError(w, h.logger, apierr.JournalNotFound())
			return
		}
		writeAPIError(w, h.logger, apierr.JournalReadFailed(err))
		return
	}
	writeJSON(w, http.StatusOK, failuresResponse{Source: h.journalPath, Failures: nonNil(entries), Total: len(entries)})
}

func (h *FailuresHandler) listArchived(w http.ResponseWriter, r *http.Request, key string) {
	if h.archive == nil {
		writeAPIError(w, h.logger, apierr.ArchiveUnavailable())
		return
	}
	entries, err := h.archive.Fetch(r.Context(), key)
	if err != nil {
		writeAPIError(w, h.logger, apierr.JournalReadFailed(err))
		return
	}
	writeJSON(w, http.StatusOK, failuresResponse{Source: key, Failures: nonNil(entries), Total: len(entries)})
}

func nonNil(entries []journal.Entry) []journal.Entry {
	if entries == nil {
		return []journal.Entry{}
	}
	return entries
}
