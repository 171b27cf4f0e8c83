package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
)

// Pipeline runs the sync stages in order: resolve, ensure index, wipe (full
// reindex only), sync, archive journal.
type Pipeline struct {
	stages []Stage
	logger *slog.Logger
}

func NewPipeline(stages []Stage, logger *slog.Logger) *Pipeline {
	return &Pipeline{stages: stages, logger: logger}
}

// Run processes one request. Resolver and setup failures come back as
// *FatalError; per-file failures are reported in the summary only.
func (p *Pipeline) Run(ctx context.Context, req Request) (*RunContext, error) {
	rc := &RunContext{Request: req}

	for _, stage := range p.stages {
		p.logger.Info("stage started", slog.String("stage", stage.Name()))

		if err := stage.Execute(ctx, rc); err != nil {
			if IsFatal(err) {
				return rc, err
			}
			return rc, fmt.Errorf("stage %s failed: %w", stage.Name(), err)
		}

		p.logger.Info("stage completed", slog.String("stage", stage.Name()))
	}

	if s := rc.Summary; s != nil {
		p.logger.Info("sync completed",
			slog.String("repo", s.RepoName),
			slog.Int("processed", s.Processed),
			slog.Int("skipped", s.Skipped),
			slog.Int("errors", s.Errors),
			slog.Int("deleted_files", s.DeletedFiles),
			slog.Int("chunks_upserted", s.ChunksUpserted))
	}
	return rc, nil
}

// RepoName tags vectors with the last segment of GITHUB_REPOSITORY, else the
// repo root's directory name, else "unknown".
func RepoName(githubRepository, repoRoot string) string {
	if gh := strings.TrimSpace(githubRepository); gh != "" {
		parts := strings.Split(gh, "/")
		if name := parts[len(parts)-1]; name != "" {
			return name
		}
	}
	if abs, err := filepath.Abs(repoRoot); err == nil {
		if name := filepath.Base(abs); name != "" && name != "." && name != string(filepath.Separator) {
			return name
		}
	}
	return "unknown"
}

// CommitSHA returns GITHUB_SHA or "unknown".
func CommitSHA(githubSHA string) string {
	if githubSHA == "" {
		return "unknown"
	}
	return githubSHA
}

// ShortSHA returns the first eight characters of sha.
func ShortSHA(sha string) string {
	if len(sha) > 8 {
		return sha[:8]
	}
	return sha
}
