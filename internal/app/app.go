// Package app builds the run dependencies of a sync from configuration. It is
// the only place that constructs clients for external services.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/maraichr/vectorsync/internal/chunker"
	"github.com/maraichr/vectorsync/internal/config"
	"github.com/maraichr/vectorsync/internal/embedding"
	"github.com/maraichr/vectorsync/internal/ingestion"
	"github.com/maraichr/vectorsync/internal/journal"
	"github.com/maraichr/vectorsync/internal/store"
	minioclient "github.com/maraichr/vectorsync/internal/store/minio"
	"github.com/maraichr/vectorsync/internal/store/postgres"
	s3client "github.com/maraichr/vectorsync/internal/store/s3"
	"github.com/maraichr/vectorsync/internal/vectorstore"
	"github.com/maraichr/vectorsync/internal/vectorstore/memory"
	"github.com/maraichr/vectorsync/internal/vectorstore/pinecone"
)

const indexMetric = "cosine"

// Runtime holds the collaborators of a sync run.
type Runtime struct {
	cfg    *config.Config
	logger *slog.Logger

	Store      vectorstore.Store
	Embedder   *embedding.Gateway
	Classifier *chunker.Classifier
	Journal    *journal.Journal
	Archiver   *journal.Archiver

	closers []func()
}

// New builds the runtime. Failures here are setup-fatal.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Runtime, error) {
	rt := &Runtime{
		cfg:     cfg,
		logger:  logger,
		Journal: journal.New(cfg.Sync.ErrorsOut, logger),
	}

	s, closeStore, err := NewStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	rt.Store = s
	rt.closers = append(rt.closers, closeStore)

	counter := chunker.DefaultCounter(logger)
	e, err := embedding.NewEmbedder(cfg, counter)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("init embedder: %w", err)
	}
	rt.Embedder = embedding.NewGateway(e, cfg.Sync.Dimension)
	logger.Info("embeddings enabled",
		slog.String("provider", cfg.Embedding.Provider),
		slog.String("model", e.ModelID()))

	budget := chunker.NewBudgeter(counter, cfg.Sync.MaxTokens)
	rt.Classifier = chunker.NewClassifier(logger, chunker.NewDefaultRegistry(0), budget)

	a, err := NewArchiver(ctx, cfg, logger)
	if err != nil {
		// Archiving is best-effort; a run without it still syncs.
		logger.Warn("journal archive disabled", slog.String("error", err.Error()))
	}
	rt.Archiver = a
	return rt, nil
}

// Close releases pools and connections.
func (rt *Runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
	rt.closers = nil
}

// RunSettings are the per-run values that vary between the CLI and the worker.
type RunSettings struct {
	RepoRoot    string
	CommitSHA   string
	Concurrency int
}

// Pipeline assembles the sync stages for one repository checkout.
func (rt *Runtime) Pipeline(git ingestion.Git, rs RunSettings) *ingestion.Pipeline {
	cfg := rt.cfg
	root := rs.RepoRoot
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	repoName := ingestion.RepoName(cfg.Sync.GitHubRepository, root)
	commit := rs.CommitSHA
	if commit == "" {
		commit = ingestion.CommitSHA(cfg.Sync.GitHubSHA)
	}
	concurrency := rs.Concurrency
	if concurrency <= 0 {
		concurrency = cfg.Sync.Concurrency
	}

	rt.logger.Info("sync configured",
		slog.String("repo", repoName),
		slog.String("commit", ingestion.ShortSHA(commit)),
		slog.String("namespace", cfg.Sync.Namespace),
		slog.String("backend", cfg.VectorStore.Backend))

	env := ingestion.GitHubEnv{
		EventPath:  cfg.Sync.GitHubEventPath,
		EventName:  cfg.Sync.GitHubEventName,
		SHA:        cfg.Sync.GitHubSHA,
		Repository: cfg.Sync.GitHubRepository,
	}
	resolver := ingestion.NewResolver(git, root, rt.Journal, env, rt.logger)

	deps := ingestion.Deps{
		Store:      rt.Store,
		Embedder:   rt.Embedder,
		Classifier: rt.Classifier,
		Budget:     rt.Classifier.Budgeter(),
		Journal:    rt.Journal,
		Logger:     rt.logger,
	}
	opts := ingestion.Options{
		RepoRoot:    root,
		RepoName:    repoName,
		CommitSHA:   commit,
		Namespace:   cfg.Sync.Namespace,
		BatchSize:   cfg.Sync.BatchSize,
		Concurrency: concurrency,
	}
	spec := vectorstore.IndexSpec{Name: cfg.Pinecone.Index, Dimension: cfg.Sync.Dimension, Metric: indexMetric}

	return ingestion.NewPipeline([]ingestion.Stage{
		ingestion.NewResolveStage(resolver),
		ingestion.NewEnsureIndexStage(rt.Store, spec),
		ingestion.NewWipeStage(rt.Store, cfg.Sync.Namespace, rt.logger),
		ingestion.NewSyncStage(deps, opts),
		ingestion.NewArchiveStage(rt.Archiver, rt.Journal.Path(), repoName, rt.logger),
	}, rt.logger)
}

// NewStore opens the configured vector store backend.
func NewStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (vectorstore.Store, func(), error) {
	switch cfg.VectorStore.Backend {
	case "", "pinecone":
		pc, err := pinecone.New(logger, pinecone.Config{
			APIKey:     cfg.Pinecone.APIKey,
			APIVersion: cfg.Pinecone.APIVersion,
			BaseURL:    cfg.Pinecone.BaseURL,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("init pinecone: %w", err)
		}
		s, err := pinecone.NewStore(logger, pc, pinecone.StoreConfig{
			IndexName: cfg.Pinecone.Index,
			IndexHost: cfg.Pinecone.IndexHost,
			Cloud:     cfg.Pinecone.Cloud,
			Region:    cfg.Pinecone.Region,
		})
		if err != nil {
			return nil, nil, err
		}
		return s, func() {}, nil

	case "pgvector":
		pool, err := postgres.NewPool(ctx, cfg.Database.DSN(), cfg.Database.MaxConns, cfg.Database.MinConns)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to database: %w", err)
		}
		logger.Info("connected to database")
		return store.NewVectorStore(store.New(pool)), pool.Close, nil

	case "memory":
		return memory.New(), func() {}, nil

	default:
		return nil, nil, fmt.Errorf("unknown VECTOR_BACKEND %q (want pinecone, pgvector or memory)", cfg.VectorStore.Backend)
	}
}

// NewArchiver returns the journal archiver for JOURNAL_ARCHIVE, or nil when
// archiving is off.
func NewArchiver(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*journal.Archiver, error) {
	switch cfg.Archive.Target {
	case "", "none":
		return nil, nil
	case "minio":
		mc, err := minioclient.NewClient(cfg.MinIO)
		if err != nil {
			return nil, fmt.Errorf("connect to minio: %w", err)
		}
		if err := mc.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		logger.Info("journal archive enabled", slog.String("target", "minio"), slog.String("bucket", mc.Bucket()))
		return journal.NewArchiver(mc, logger), nil
	case "s3":
		sc, err := s3client.NewClient(cfg.S3)
		if err != nil {
			return nil, fmt.Errorf("init s3: %w", err)
		}
		logger.Info("journal archive enabled", slog.String("target", "s3"), slog.String("bucket", cfg.S3.Bucket))
		return journal.NewArchiver(sc, logger), nil
	default:
		return nil, fmt.Errorf("unknown JOURNAL_ARCHIVE %q (want none, minio or s3)", cfg.Archive.Target)
	}
}

// MissingCredentials lists the required environment variables that are unset
// for the selected backend and embedding provider.
func MissingCredentials(cfg *config.Config) []string {
	var missing []string
	if b := cfg.VectorStore.Backend; (b == "" || b == "pinecone") && cfg.Pinecone.APIKey == "" {
		missing = append(missing, "PINECONE_API_KEY")
	}
	switch cfg.Embedding.Provider {
	case "", "voyage":
		if cfg.Voyage.APIKey == "" {
			missing = append(missing, "VOYAGE_API_KEY")
		}
	case "openrouter":
		if cfg.OpenRouter.APIKey == "" {
			missing = append(missing, "OPENROUTER_API_KEY")
		}
	}
	return missing
}
