package tools

import (
	"context"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/maraichr/vectorsync/internal/ingestion"
	"github.com/maraichr/vectorsync/internal/journal"
	"github.com/maraichr/vectorsync/internal/mcp"
)

// ToolHandler is the interface that all tool handlers implement.
type ToolHandler[P any] interface {
	Handle(ctx context.Context, req *sdkmcp.CallToolRequest, params P) (string, error)
}

// Enqueuer puts a sync job on the worker queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, job ingestion.SyncJob) (string, error)
}

// ArchiveReader reads an archived journal by object key.
type ArchiveReader interface {
	Fetch(ctx context.Context, key string) ([]journal.Entry, error)
}

// WrapHandler adapts a ToolHandler into the SDK's AddTool callback.
// It handles nil params by using a zero value and maps errors to CallToolResult.
func WrapHandler[P any](h ToolHandler[P]) func(context.Context, *sdkmcp.CallToolRequest, *P) (*sdkmcp.CallToolResult, any, error) {
	return func(ctx context.Context, req *sdkmcp.CallToolRequest, params *P) (*sdkmcp.CallToolResult, any, error) {
		if params == nil {
			params = new(P)
		}
		result, err := h.Handle(ctx, req, *params)
		if err != nil {
			return &sdkmcp.CallToolResult{
				IsError: true,
				Content: []sdkmcp.Content{&sdkmcp.TextContent{Text: err.Error()}},
			}, nil, nil
		}
		return &sdkmcp.CallToolResult{
			Content: []sdkmcp.Content{&sdkmcp.TextContent{Text: result}},
		}, nil, nil
	}
}

// Register adds every tool to the SDK server.
func Register(s *sdkmcp.Server, srv *mcp.Server, producer Enqueuer, journalPath string, archive ArchiveReader) {
	sdkmcp.AddTool(s, &sdkmcp.Tool{
		Name:        "enqueue_sync",
		Description: "Queue a vector index sync. mode is one of commit-range (from_commit, optional to_commit), files ([A|M|D:]path tokens), retry (replay the failure journal) or reindex-all.",
	}, WrapHandler[EnqueueSyncParams](NewEnqueueSyncHandler(srv, producer)))

	sdkmcp.AddTool(s, &sdkmcp.Tool{
		Name:        "list_sync_failures",
		Description: "List files that failed to sync, from the local failure journal or an archived one (archive_key). Each line shows path, failed operation, change status and error message.",
	}, WrapHandler[ListSyncFailuresParams](NewListSyncFailuresHandler(srv, journalPath, archive)))
}
