package ingestion

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/maraichr/vectorsync/internal/journal"
)

// Mode is the input mode a change set was resolved from.
type Mode string

const (
	ModeReindexAll  Mode = "reindex-all"
	ModeFiles       Mode = "files"
	ModeRetry       Mode = "retry"
	ModeCommitRange Mode = "commit-range"
	ModeListing     Mode = "listing"
)

// Request selects how the change set is built. Modes take precedence in the
// order reindex-all, files, retry, commit range, listing file.
type Request struct {
	ReindexAll  bool
	Files       []string // [status:]path tokens
	RetryErrors string   // journal to replay
	ListingFile string   // `git diff --name-status` output
	FromCommit  string
	ToCommit    string
}

// ChangeSet is the resolved, ordered list of records.
type ChangeSet struct {
	Mode       Mode
	Records    []Record
	FromCommit string
	ToCommit   string
}

// Resolver turns a Request into a ChangeSet. Every error it returns is a
// resolver-fatal *FatalError.
type Resolver struct {
	delta  *Delta
	github GitHubEnv
	logger *slog.Logger
}

func NewResolver(git Git, root string, j *journal.Journal, env GitHubEnv, logger *slog.Logger) *Resolver {
	return &Resolver{delta: NewDelta(git, root, j, logger), github: env, logger: logger}
}

func (r *Resolver) Resolve(ctx context.Context, req Request) (*ChangeSet, error) {
	cs, err := r.resolve(ctx, req)
	if err != nil {
		return nil, resolverFatal(err)
	}
	r.logger.Info("change set resolved",
		slog.String("mode", string(cs.Mode)),
		slog.Int("records", len(cs.Records)))
	return cs, nil
}

// Validate rejects conflicting modes and malformed --files tokens without
// touching git, the filesystem or the network. Errors are resolver-fatal.
func (req Request) Validate() error {
	if err := req.validate(); err != nil {
		return resolverFatal(err)
	}
	return nil
}

func (req Request) validate() error {
	if req.ReindexAll && (len(req.Files) > 0 || req.RetryErrors != "" || req.ListingFile != "") {
		return ErrConflictingModes
	}
	if !req.ReindexAll && len(req.Files) > 0 {
		if _, err := ParseFileTokens(req.Files); err != nil {
			return err
		}
	}
	return nil
}

func (r *Resolver) resolve(ctx context.Context, req Request) (*ChangeSet, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	switch {
	case req.ReindexAll:
		records, err := r.delta.TrackedFiles(ctx)
		if err != nil {
			return nil, err
		}
		if len(records) == 0 {
			return nil, ErrEmptyReindex
		}
		return &ChangeSet{Mode: ModeReindexAll, Records: records}, nil

	case len(req.Files) > 0:
		records, err := ParseFileTokens(req.Files)
		if err != nil {
			return nil, err
		}
		return &ChangeSet{Mode: ModeFiles, Records: records}, nil

	case req.RetryErrors != "":
		records, err := RetryRecords(req.RetryErrors)
		if err != nil {
			return nil, err
		}
		return &ChangeSet{Mode: ModeRetry, Records: records}, nil
	}

	from, to := req.FromCommit, req.ToCommit
	if to == "" {
		to = "HEAD"
	}
	if from == "" && req.ListingFile == "" {
		base, head, err := DetectCommitRange(r.github)
		if err != nil {
			return nil, err
		}
		from, to = base, head
		r.logger.Info("auto-detected commit range from GitHub Actions",
			slog.String("from", from), slog.String("to", to))
	}

	if from != "" {
		records, err := r.delta.Between(ctx, from, to)
		if err != nil {
			return nil, err
		}
		return &ChangeSet{Mode: ModeCommitRange, Records: records, FromCommit: from, ToCommit: to}, nil
	}

	if req.ListingFile != "" {
		records, err := ParseListingFile(req.ListingFile)
		if err != nil {
			return nil, err
		}
		return &ChangeSet{Mode: ModeListing, Records: records}, nil
	}
	return nil, ErrNoInputMode
}

// ParseFileTokens parses explicit `[status:]path` tokens. The status defaults
// to M; anything other than A, M or D is rejected.
func ParseFileTokens(tokens []string) ([]Record, error) {
	records := make([]Record, 0, len(tokens))
	for _, tok := range tokens {
		status, path, ok := strings.Cut(tok, ":")
		if !ok {
			records = append(records, Record{Op: OpModify, Path: tok})
			continue
		}
		op, valid := ParseOp(status)
		if !valid {
			return nil, fmt.Errorf("invalid status prefix in --files token: %s", tok)
		}
		records = append(records, Record{Op: op, Path: path})
	}
	return records, nil
}

// RetryRecords replays a failure journal. Unknown statuses become M.
func RetryRecords(path string) ([]Record, error) {
	if !journal.Exists(path) {
		return nil, fmt.Errorf("errors file not found: %s", path)
	}
	entries, err := journal.ReadFile(path)
	if err != nil {
		return nil, err
	}
	records := make([]Record, 0, len(entries))
	for _, e := range entries {
		op, ok := ParseOp(e.Status)
		if !ok {
			op = OpModify
		}
		records = append(records, Record{Op: op, Path: e.FilePath})
	}
	return records, nil
}

// ParseListingFile reads `git diff --name-status` style lines. Tab-separated
// lines keep paths with spaces intact; otherwise lines are split on
// whitespace into at most three fields.
func ParseListingFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open changed files listing: %w", err)
	}
	defer f.Close()

	var records []Record
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var parts []string
		if strings.Contains(line, "\t") {
			parts = strings.SplitN(line, "\t", 3)
		} else {
			parts = splitFields(line, 3)
		}

		status := parts[0]
		if isRename(status) {
			if len(parts) < 3 {
				return nil, fmt.Errorf("malformed rename line: %s", line)
			}
			records = append(records, renameRecords(strings.TrimSpace(parts[1]), strings.TrimSpace(parts[2]))...)
			continue
		}
		if len(parts) < 2 || strings.TrimSpace(parts[1]) == "" {
			continue
		}
		records = append(records, Record{Op: opFromStatus(status), Path: strings.TrimSpace(parts[1])})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read changed files listing: %w", err)
	}
	return records, nil
}

// splitFields splits on runs of whitespace into at most n fields; the last
// field keeps the remainder.
func splitFields(s string, n int) []string {
	var out []string
	for len(out) < n-1 {
		s = strings.TrimLeft(s, " \t")
		if s == "" {
			return out
		}
		i := strings.IndexAny(s, " \t")
		if i < 0 {
			return append(out, s)
		}
		out = append(out, s[:i])
		s = s[i:]
	}
	if s = strings.TrimSpace(s); s != "" {
		out = append(out, s)
	}
	return out
}
