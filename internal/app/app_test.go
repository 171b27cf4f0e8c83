package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/maraichr/vectorsync/internal/chunker"
	"github.com/maraichr/vectorsync/internal/config"
	"github.com/maraichr/vectorsync/internal/embedding"
	"github.com/maraichr/vectorsync/internal/ingestion"
	"github.com/maraichr/vectorsync/internal/journal"
	"github.com/maraichr/vectorsync/internal/vectorstore"
	"github.com/maraichr/vectorsync/internal/vectorstore/memory"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestMissingCredentials(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.Config
		want []string
	}{
		{
			name: "pinecone and voyage unset",
			cfg:  config.Config{VectorStore: config.VectorStoreConfig{Backend: "pinecone"}, Embedding: config.EmbeddingConfig{Provider: "voyage"}},
			want: []string{"PINECONE_API_KEY", "VOYAGE_API_KEY"},
		},
		{
			name: "all set",
			cfg: config.Config{
				VectorStore: config.VectorStoreConfig{Backend: "pinecone"},
				Pinecone:    config.PineconeConfig{APIKey: "pc"},
				Embedding:   config.EmbeddingConfig{Provider: "voyage"},
				Voyage:      config.VoyageConfig{APIKey: "vo"},
			},
		},
		{
			name: "pgvector with openrouter",
			cfg:  config.Config{VectorStore: config.VectorStoreConfig{Backend: "pgvector"}, Embedding: config.EmbeddingConfig{Provider: "openrouter"}},
			want: []string{"OPENROUTER_API_KEY"},
		},
		{
			name: "bedrock uses the aws credential chain",
			cfg:  config.Config{VectorStore: config.VectorStoreConfig{Backend: "memory"}, Embedding: config.EmbeddingConfig{Provider: "bedrock"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MissingCredentials(&tt.cfg); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewStore(t *testing.T) {
	cfg := &config.Config{VectorStore: config.VectorStoreConfig{Backend: "memory"}}
	s, closeFn, err := NewStore(context.Background(), cfg, discardLogger())
	if err != nil {
		t.Fatal(err)
	}
	defer closeFn()
	if _, ok := s.(*memory.Store); !ok {
		t.Errorf("expected memory store, got %T", s)
	}

	cfg.VectorStore.Backend = "faiss"
	if _, _, err := NewStore(context.Background(), cfg, discardLogger()); err == nil {
		t.Error("expected error for unknown backend")
	}

	cfg.VectorStore.Backend = "pinecone"
	if _, _, err := NewStore(context.Background(), cfg, discardLogger()); err == nil {
		t.Error("expected error for pinecone without an API key")
	}
}

func TestNewArchiver(t *testing.T) {
	cfg := &config.Config{Archive: config.ArchiveConfig{Target: "none"}}
	a, err := NewArchiver(context.Background(), cfg, discardLogger())
	if err != nil || a != nil {
		t.Errorf("expected no archiver, got %v, %v", a, err)
	}

	cfg.Archive.Target = "ftp"
	if _, err := NewArchiver(context.Background(), cfg, discardLogger()); err == nil {
		t.Error("expected error for unknown target")
	}

	cfg.Archive.Target = "s3"
	if _, err := NewArchiver(context.Background(), cfg, discardLogger()); err == nil {
		t.Error("expected error for s3 without a bucket")
	}
}

type constEmbedder struct{ dim int }

func (c constEmbedder) EmbedBatch(_ context.Context, texts []string, _ string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		v := make([]float32, c.dim)
		v[0] = 1
		out[i] = v
	}
	return out, nil
}

func (constEmbedder) ModelID() string { return "const" }

type noGit struct{}

func (noGit) Run(context.Context, ...string) (string, error) {
	return "", errors.New("git not available")
}

func TestRuntimePipeline_FilesMode(t *testing.T) {
	root := filepath.Join(t.TempDir(), "handbook")
	if err := os.MkdirAll(root, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "README.md"), []byte("# Handbook\n\nWelcome."), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "yarn.lock"), []byte("lock"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := &config.Config{
		Sync:     config.SyncConfig{BatchSize: 10, Concurrency: 1, MaxTokens: 8192, Dimension: 8, GitHubSHA: "deadbeefcafe"},
		Pinecone: config.PineconeConfig{Index: "repo-chunks"},
	}
	logger := discardLogger()
	store := memory.New()
	rt := &Runtime{
		cfg:        cfg,
		logger:     logger,
		Store:      store,
		Embedder:   embedding.NewGateway(constEmbedder{dim: 8}, 8),
		Classifier: chunker.NewClassifier(logger, chunker.NewDefaultRegistry(0), chunker.NewBudgeter(chunker.WordCounter{}, 8192)),
		Journal:    journal.New(filepath.Join(t.TempDir(), "errors.jsonl"), logger),
	}

	rc, err := rt.Pipeline(noGit{}, RunSettings{RepoRoot: root}).
		Run(context.Background(), ingestion.Request{Files: []string{"A:README.md", "A:yarn.lock"}})
	if err != nil {
		t.Fatal(err)
	}
	if rc.Summary.Processed != 2 || rc.Summary.HasFailures() {
		t.Fatalf("unexpected summary: %+v", rc.Summary)
	}
	if rc.Summary.RepoName != "handbook" || rc.Summary.Model != "const" {
		t.Errorf("unexpected repo/model: %+v", rc.Summary)
	}
	if spec, ok := store.Index(); !ok || spec.Dimension != 8 || spec.Metric != "cosine" {
		t.Errorf("unexpected index spec %+v", spec)
	}

	lock := store.Records("", vectorstore.Filter{RepoName: "handbook", FilePath: "yarn.lock"})
	if len(lock) != 1 || lock[0].Metadata.ChunkType != vectorstore.KindSummary || !lock[0].Metadata.Embedded {
		t.Errorf("lockfile must be one embedded summary record: %+v", lock)
	}
	readme := store.Records("", vectorstore.Filter{RepoName: "handbook", FilePath: "README.md"})
	if len(readme) == 0 || readme[0].Metadata.CommitSHA != "deadbeefcafe" {
		t.Errorf("unexpected readme records: %+v", readme)
	}
}
