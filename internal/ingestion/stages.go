package ingestion

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/maraichr/vectorsync/internal/journal"
	"github.com/maraichr/vectorsync/internal/vectorstore"
)

// Stage represents a step in the sync pipeline.
type Stage interface {
	Name() string
	Execute(ctx context.Context, rc *RunContext) error
}

// RunContext carries state through the pipeline stages.
type RunContext struct {
	Request Request

	// Set by resolve stage
	ChangeSet *ChangeSet

	// Set by sync stage
	Summary *Summary

	// Set by archive stage when the journal was uploaded
	JournalKey string
}

// Wiping reports whether this run empties the namespace first.
func (rc *RunContext) Wiping() bool {
	return rc.ChangeSet != nil && rc.ChangeSet.Mode == ModeReindexAll
}

// ResolveStage builds the change set.
type ResolveStage struct {
	resolver *Resolver
}

func NewResolveStage(r *Resolver) *ResolveStage { return &ResolveStage{resolver: r} }

func (s *ResolveStage) Name() string { return "resolve" }

func (s *ResolveStage) Execute(ctx context.Context, rc *RunContext) error {
	cs, err := s.resolver.Resolve(ctx, rc.Request)
	if err != nil {
		return err
	}
	rc.ChangeSet = cs
	return nil
}

// EnsureIndexStage creates the index when it does not exist.
type EnsureIndexStage struct {
	store vectorstore.Store
	spec  vectorstore.IndexSpec
}

func NewEnsureIndexStage(store vectorstore.Store, spec vectorstore.IndexSpec) *EnsureIndexStage {
	return &EnsureIndexStage{store: store, spec: spec}
}

func (s *EnsureIndexStage) Name() string { return "ensure_index" }

func (s *EnsureIndexStage) Execute(ctx context.Context, _ *RunContext) error {
	if err := s.store.EnsureIndex(ctx, s.spec); err != nil {
		return setupFatal(fmt.Errorf("ensure index: %w", err))
	}
	return nil
}

// WipeStage empties the namespace before a full reindex. A namespace that does
// not exist yet counts as already empty.
type WipeStage struct {
	store     vectorstore.Store
	namespace string
	logger    *slog.Logger
}

func NewWipeStage(store vectorstore.Store, namespace string, logger *slog.Logger) *WipeStage {
	return &WipeStage{store: store, namespace: namespace, logger: logger}
}

func (s *WipeStage) Name() string { return "wipe" }

func (s *WipeStage) Execute(ctx context.Context, rc *RunContext) error {
	if !rc.Wiping() {
		return nil
	}
	s.logger.Warn("wiping all vectors in namespace", slog.String("namespace", displayNamespace(s.namespace)))
	err := s.store.WipeNamespace(ctx, s.namespace)
	if vectorstore.IsNamespaceNotFound(err) {
		s.logger.Info("namespace was empty, nothing to wipe")
		return nil
	}
	if err != nil {
		return setupFatal(fmt.Errorf("failed to wipe namespace: %w", err))
	}
	return nil
}

// SyncStage applies the change set.
type SyncStage struct {
	deps Deps
	opts Options
}

func NewSyncStage(deps Deps, opts Options) *SyncStage { return &SyncStage{deps: deps, opts: opts} }

func (s *SyncStage) Name() string { return "sync" }

func (s *SyncStage) Execute(ctx context.Context, rc *RunContext) error {
	opts := s.opts
	opts.Wiped = rc.Wiping()
	summary, err := NewExecutor(s.deps, opts).Run(ctx, rc.ChangeSet.Records)
	if err != nil {
		return err
	}
	rc.Summary = summary
	return nil
}

// ArchiveStage uploads the journal after a run with failures. Upload errors
// are logged and never fail the run.
type ArchiveStage struct {
	archiver    *journal.Archiver
	journalPath string
	repoName    string
	logger      *slog.Logger
}

func NewArchiveStage(a *journal.Archiver, journalPath, repoName string, logger *slog.Logger) *ArchiveStage {
	return &ArchiveStage{archiver: a, journalPath: journalPath, repoName: repoName, logger: logger}
}

func (s *ArchiveStage) Name() string { return "archive_journal" }

func (s *ArchiveStage) Execute(ctx context.Context, rc *RunContext) error {
	if s.archiver == nil || rc.Summary == nil || !rc.Summary.HasFailures() {
		return nil
	}
	key, err := s.archiver.Archive(ctx, s.repoName, s.journalPath)
	if err != nil {
		s.logger.Warn("journal archive failed", slog.String("error", err.Error()))
		return nil
	}
	rc.JournalKey = key
	return nil
}

func displayNamespace(ns string) string {
	if ns == "" {
		return "(default)"
	}
	return ns
}
