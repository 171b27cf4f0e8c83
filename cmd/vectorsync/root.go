package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/maraichr/vectorsync/internal/app"
	"github.com/maraichr/vectorsync/internal/config"
	"github.com/maraichr/vectorsync/internal/ingestion"
	"github.com/maraichr/vectorsync/internal/journal"
)

const (
	exitOK       = 0
	exitFailures = 1
	exitFatal    = 2
)

type options struct {
	files         bool
	retryErrors   string
	errorsOut     string
	fromCommit    string
	toCommit      string
	repoRoot      string
	reindexAll    bool
	skipOnMissing bool
	concurrency   int
	dryRun        bool
}

// exitError carries the process exit code out of RunE.
type exitError struct{ code int }

func (e *exitError) Error() string { return fmt.Sprintf("exit %d", e.code) }

func newRootCmd(ctx context.Context, stdout, stderr io.Writer) *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "vectorsync [changed_files]",
		Short: "Sync a git repository into a vector index",
		Long: `Resolves a change request (a commit range, an explicit file list, a
replay of previously failed files, or a full reindex) into per-path
operations and applies them to the vector index. Failures are journaled
for a later --retry-errors run.

changed_files is the output of git diff --name-status. With --files the
positional arguments are [status:]path tokens instead.`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if code := execute(ctx, opts, args, stdout, stderr); code != exitOK {
				return &exitError{code: code}
			}
			return nil
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	f := cmd.Flags()
	f.BoolVar(&opts.files, "files", false, "treat positional args as [status:]path tokens (status A, M or D)")
	f.StringVar(&opts.retryErrors, "retry-errors", "", "replay a failure journal (default "+journal.DefaultPath+" when given without a value)")
	f.Lookup("retry-errors").NoOptDefVal = journal.DefaultPath
	f.StringVar(&opts.errorsOut, "errors-out", journal.DefaultPath, "journal file for per-file failures")
	f.StringVar(&opts.fromCommit, "from-commit", "", "start commit for the diff")
	f.StringVar(&opts.toCommit, "to-commit", "HEAD", "end commit for the diff")
	f.StringVar(&opts.repoRoot, "repo-root", ".", "superproject root")
	f.BoolVar(&opts.reindexAll, "reindex-all", false, "wipe the namespace and index every tracked file")
	f.BoolVar(&opts.skipOnMissing, "skip-on-missing-keys", false, "exit 0 when required credentials are missing")
	f.IntVar(&opts.concurrency, "concurrency", 1, "paths processed in parallel")
	f.BoolVar(&opts.dryRun, "dry-run", false, "print the resolved change set without touching the index")
	return cmd
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := newRootCmd(ctx, stdout, stderr)
	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		var ee *exitError
		if errors.As(err, &ee) {
			return ee.code
		}
		fmt.Fprintln(stderr, "Error:", err)
		return exitFatal
	}
	return exitOK
}

func execute(ctx context.Context, opts *options, args []string, stdout, stderr io.Writer) int {
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load(".env")

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(stderr, "config:", err)
		return exitFatal
	}
	cfg.Sync.ErrorsOut = opts.errorsOut
	cfg.Sync.RepoRoot = opts.repoRoot
	if opts.concurrency > 0 {
		cfg.Sync.Concurrency = opts.concurrency
	}
	logger := newLogger(cfg.Log, stderr)

	req := buildRequest(opts, args)
	if err := req.Validate(); err != nil {
		logger.Error("invalid request", slog.String("error", err.Error()))
		return exitFatal
	}
	root, err := filepath.Abs(opts.repoRoot)
	if err != nil {
		logger.Error("resolve repo root", slog.String("error", err.Error()))
		return exitFatal
	}

	if opts.dryRun {
		return dryRun(ctx, cfg, logger, root, req, stdout)
	}

	if missing := app.MissingCredentials(cfg); len(missing) > 0 {
		if opts.skipOnMissing {
			fmt.Fprintf(stdout, "[skip] Missing required API keys: %s; skipping vector sync.\n", strings.Join(missing, ", "))
			return exitOK
		}
		logger.Error("missing required API keys", slog.String("keys", strings.Join(missing, ", ")))
		return exitFatal
	}

	rt, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("setup failed", slog.String("error", err.Error()))
		return exitFatal
	}
	defer rt.Close()

	p := rt.Pipeline(ingestion.NewExecGit(root), app.RunSettings{RepoRoot: root, Concurrency: cfg.Sync.Concurrency})
	rc, err := p.Run(ctx, req)
	if err != nil {
		logger.Error("sync aborted", slog.String("error", err.Error()))
		return exitFatal
	}

	printSummary(stdout, rc.Summary, cfg.Sync.ErrorsOut)
	if rc.Summary != nil && rc.Summary.HasFailures() {
		return exitFailures
	}
	return exitOK
}

func buildRequest(opts *options, args []string) ingestion.Request {
	req := ingestion.Request{
		ReindexAll:  opts.reindexAll,
		RetryErrors: opts.retryErrors,
		FromCommit:  opts.fromCommit,
		ToCommit:    opts.toCommit,
	}
	if opts.files {
		req.Files = args
	} else if len(args) > 0 {
		req.ListingFile = args[0]
	}
	return req
}

// dryRun resolves the change set against the local checkout only.
func dryRun(ctx context.Context, cfg *config.Config, logger *slog.Logger, root string, req ingestion.Request, stdout io.Writer) int {
	cfg.VectorStore.Backend = "memory"
	env := ingestion.GitHubEnv{
		EventPath:  cfg.Sync.GitHubEventPath,
		EventName:  cfg.Sync.GitHubEventName,
		SHA:        cfg.Sync.GitHubSHA,
		Repository: cfg.Sync.GitHubRepository,
	}
	j := journal.New(cfg.Sync.ErrorsOut, logger)
	r := ingestion.NewResolver(ingestion.NewExecGit(root), root, j, env, logger)

	cs, err := r.Resolve(ctx, req)
	if err != nil {
		logger.Error("resolve failed", slog.String("error", err.Error()))
		return exitFatal
	}
	fmt.Fprintf(stdout, "[dry-run] %s: %d records\n", cs.Mode, len(cs.Records))
	for _, rec := range cs.Records {
		fmt.Fprintln(stdout, rec.String())
	}
	return exitOK
}

func printSummary(w io.Writer, s *ingestion.Summary, errorsOut string) {
	if s == nil {
		return
	}
	ns := s.Namespace
	if ns == "" {
		fmt.Fprintf(w, "\n[info] Sync Complete for %s:\n  - Namespace: '' (default)\n", s.RepoName)
	} else {
		fmt.Fprintf(w, "\n[info] Sync Complete for %s:\n  - Namespace: '%s'\n", s.RepoName, ns)
	}
	fmt.Fprintf(w, "  - Files processed: %d\n", s.Processed)
	fmt.Fprintf(w, "  - Files skipped: %d\n", s.Skipped)
	fmt.Fprintf(w, "  - Files with errors: %d\n", s.Errors)
	fmt.Fprintf(w, "  - Vectors deleted: %d files\n", s.DeletedFiles)
	fmt.Fprintf(w, "  - Chunks upserted: %d\n", s.ChunksUpserted)
	fmt.Fprintf(w, "  - Embedding model: %s\n", s.Model)
	if len(s.Failures) == 0 {
		return
	}
	fmt.Fprintf(w, "[error] %d failures encountered. See %s for details. Use --retry-errors to re-run.\n", len(s.Failures), errorsOut)
	for _, f := range s.Failures {
		fmt.Fprintf(w, "  - failure: op=%s status=%s file=%s message=%s\n", f.Operation, f.Status, f.FilePath, f.Message)
	}
}

func newLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if strings.EqualFold(cfg.Format, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}
