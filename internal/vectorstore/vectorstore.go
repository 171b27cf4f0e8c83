// Package vectorstore defines the gateway the sync engine uses to persist chunk
// vectors, along with the record and metadata shapes shared by every backend.
package vectorstore

import (
	"context"
	"errors"
	"strings"
)

// ErrNamespaceNotFound is returned (or wrapped) by backends when the target
// namespace does not exist yet. Deletes and wipes treat it as success.
var ErrNamespaceNotFound = errors.New("namespace not found")

// ChunkKind distinguishes real content chunks from synthetic summaries.
type ChunkKind string

const (
	KindContent ChunkKind = "content"
	KindSummary ChunkKind = "summary"
)

// Metadata is stored alongside every vector. Field names follow the index schema
// consumed by retrieval, so they are fixed.
type Metadata struct {
	RepoName    string    `json:"repo_name"`
	FilePath    string    `json:"file_path"`
	FileType    string    `json:"file_type"`
	ChunkType   ChunkKind `json:"chunk_type"`
	ChunkIndex  int       `json:"chunk_index"`
	ChunkID     string    `json:"chunk_id"`
	Content     string    `json:"content"`
	LineRange   string    `json:"line_range"`
	Embedded    bool      `json:"embedded"`
	ShouldEmbed bool      `json:"should_embed"`
	Status      string    `json:"status"`
	TokenCount  int       `json:"token_count"`
	CommitSHA   string    `json:"commit_sha"`
	IndexedAt   string    `json:"indexed_at"`
}

// Record is one chunk ready for upsert. Values is nil when the chunk was not embedded.
type Record struct {
	ID       string
	Values   []float32
	Metadata Metadata
}

// Filter selects every vector for one file of one repository.
type Filter struct {
	RepoName string
	FilePath string
}

// IndexSpec describes the index that must exist before the first upsert.
type IndexSpec struct {
	Name      string
	Dimension int
	Metric    string
}

// Store is the vector store gateway.
type Store interface {
	// EnsureIndex creates the index if it does not exist.
	EnsureIndex(ctx context.Context, spec IndexSpec) error
	// UpsertBatch writes records, idempotent by id, and returns how many were written.
	UpsertBatch(ctx context.Context, namespace string, records []Record) (int, error)
	// DeleteByFilter removes all vectors matching the filter.
	DeleteByFilter(ctx context.Context, namespace string, filter Filter) error
	// FetchByIDs returns the records that exist; absent ids are omitted from the map.
	FetchByIDs(ctx context.Context, namespace string, ids []string) (map[string]Record, error)
	// WipeNamespace deletes every vector in the namespace.
	WipeNamespace(ctx context.Context, namespace string) error
}

// IsNamespaceNotFound reports whether err means the namespace does not exist.
// Backends that only surface the condition in their error text (gRPC code 5 in a
// JSON body) are matched by message.
func IsNamespaceNotFound(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNamespaceNotFound) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "namespace not found") || strings.Contains(msg, `code":5`)
}

// IgnoreNamespaceNotFound maps a namespace-not-found error to nil.
func IgnoreNamespaceNotFound(err error) error {
	if IsNamespaceNotFound(err) {
		return nil
	}
	return err
}
