package tools

import (
	"context"
	"errors"
	"fmt"
	"os"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/maraichr/vectorsync/internal/auth"
	"github.com/maraichr/vectorsync/internal/journal"
	"github.com/maraichr/vectorsync/internal/mcp"
)

// ListSyncFailuresParams are the parameters for the list_sync_failures tool.
type ListSyncFailuresParams struct {
	ArchiveKey        string `json:"archive_key,omitempty"`
	Offset            int    `json:"offset,omitempty"`
	MaxResponseTokens int    `json:"max_response_tokens,omitempty"`
}

// ListSyncFailuresHandler implements the list_sync_failures MCP tool.
type ListSyncFailuresHandler struct {
	srv         *mcp.Server
	journalPath string
	archive     ArchiveReader
}

func NewListSyncFailuresHandler(srv *mcp.Server, journalPath string, archive ArchiveReader) *ListSyncFailuresHandler {
	return &ListSyncFailuresHandler{srv: srv, journalPath: journalPath, archive: archive}
}

func (h *ListSyncFailuresHandler) Handle(ctx context.Context, req *sdkmcp.CallToolRequest, params ListSyncFailuresParams) (string, error) {
	if _, err := h.srv.Authorize(req, auth.ScopeRead, auth.ScopeTrigger); err != nil {
		return "", err
	}

	source := h.journalPath
	var (
		entries []journal.Entry
		err     error
	)
	if params.ArchiveKey != "" {
		if h.archive == nil {
			return "", fmt.Errorf("journal archive is not configured")
		}
		source = params.ArchiveKey
		entries, err = h.archive.Fetch(ctx, params.ArchiveKey)
	} else {
		entries, err = journal.ReadFile(h.journalPath)
		if errors.Is(err, os.ErrNotExist) {
			return "No failure journal found; the last sync had no failures.", nil
		}
	}
	if err != nil {
		return "", fmt.Errorf("read journal: %w", err)
	}
	if len(entries) == 0 {
		return fmt.Sprintf("No failures recorded in `%s`.", source), nil
	}

	offset := params.Offset
	if offset < 0 || offset > len(entries) {
		offset = 0
	}

	rb := mcp.NewResponseBuilder(params.MaxResponseTokens)
	rb.AddHeader(fmt.Sprintf("**Sync failures** (%d in `%s`)", len(entries), source))
	for _, e := range entries[offset:] {
		if !rb.AddFailure(e) {
			break
		}
	}
	return rb.Finalize(len(entries), offset+rb.ItemCount()), nil
}
