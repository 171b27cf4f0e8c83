package app

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"

	"github.com/maraichr/vectorsync/internal/ingestion"
)

// LockFunc takes the per-repository run lock and returns its release.
type LockFunc func(ctx context.Context, repo string) (release func(), err error)

// Checkout brings a local clone up to date and returns its HEAD commit.
type Checkout interface {
	Sync(ctx context.Context, source, destDir string) (string, error)
}

// JobRunner executes queued sync jobs against one repository checkout.
type JobRunner struct {
	rt       *Runtime
	lock     LockFunc
	checkout Checkout
	source   string
	root     string
	newGit   func(root string) ingestion.Git
}

// JobRunner builds a runner. With a nil checkout the repository at REPO_ROOT
// is used as is.
func (rt *Runtime) JobRunner(lock LockFunc, checkout Checkout) *JobRunner {
	root := rt.cfg.Sync.RepoRoot
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	return &JobRunner{
		rt:       rt,
		lock:     lock,
		checkout: checkout,
		source:   rt.cfg.Sync.RepoURL,
		root:     root,
		newGit:   func(root string) ingestion.Git { return ingestion.NewExecGit(root) },
	}
}

// Handle runs one job. Resolver errors and per-file failures return nil and
// the message is acked; lock contention, checkout and setup failures are
// returned and the message stays pending.
func (j *JobRunner) Handle(ctx context.Context, job ingestion.SyncJob) error {
	log := j.rt.logger.With(slog.String("job_id", job.ID), slog.String("mode", string(job.Mode)))
	repo := ingestion.RepoName(j.rt.cfg.Sync.GitHubRepository, j.root)

	release, err := j.lock(ctx, repo)
	if err != nil {
		log.Warn("sync lock unavailable", slog.String("error", err.Error()))
		return err
	}
	defer release()

	var head string
	if j.checkout != nil && j.source != "" {
		head, err = j.checkout.Sync(ctx, j.source, j.root)
		if err != nil {
			log.Error("checkout failed", slog.String("error", err.Error()))
			return err
		}
	}

	p := j.rt.Pipeline(j.newGit(j.root), RunSettings{RepoRoot: j.root, CommitSHA: head})
	rc, err := p.Run(ctx, job.Request(j.rt.Journal.Path()))
	if err != nil {
		var fe *ingestion.FatalError
		if errors.As(err, &fe) && fe.Kind == ingestion.FatalResolver {
			log.Error("job dropped", slog.String("error", err.Error()))
			return nil
		}
		log.Error("job failed", slog.String("error", err.Error()))
		return err
	}

	if rc.Summary != nil && rc.Summary.HasFailures() {
		log.Warn("job finished with failures",
			slog.Int("errors", rc.Summary.Errors),
			slog.String("journal", j.rt.Journal.Path()))
	}
	return nil
}
