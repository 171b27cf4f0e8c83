package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/maraichr/vectorsync/internal/chunker"
	"github.com/maraichr/vectorsync/internal/journal"
	"github.com/maraichr/vectorsync/internal/vectorstore"
)

// Classifier chunks one file.
type Classifier interface {
	Classify(ctx context.Context, root, path string) chunker.Result
}

// Embedder produces validated vectors for a file's chunks.
type Embedder interface {
	EmbedAll(ctx context.Context, texts []string) ([][]float32, error)
	ModelID() string
}

// TokenBudget counts tokens and reports the hard embedding limit.
type TokenBudget interface {
	Count(text string) int
	MaxTokens() int
}

// Deps are the collaborators a sync run uses. Nothing is global.
type Deps struct {
	Store      vectorstore.Store
	Embedder   Embedder
	Classifier Classifier
	Budget     TokenBudget
	Journal    *journal.Journal
	Logger     *slog.Logger

	NewID func() string
	Now   func() time.Time
}

// Options configure one run.
type Options struct {
	RepoRoot    string
	RepoName    string
	CommitSHA   string
	Namespace   string
	BatchSize   int
	Concurrency int
	// Wiped skips the per-file pre-delete because the namespace was just emptied.
	Wiped bool
}

// Summary aggregates a run.
type Summary struct {
	RepoName       string          `json:"repo_name"`
	Namespace      string          `json:"namespace"`
	Model          string          `json:"model"`
	Processed      int             `json:"processed"`
	Skipped        int             `json:"skipped"`
	Errors         int             `json:"errors"`
	DeletedFiles   int             `json:"deleted_files"`
	ChunksUpserted int             `json:"chunks_upserted"`
	UpsertedIDs    []string        `json:"upserted_ids"`
	Failures       []journal.Entry `json:"failures"`
}

// HasFailures reports whether any record failed.
func (s *Summary) HasFailures() bool { return s.Errors > 0 || len(s.Failures) > 0 }

func (s *Summary) add(o outcome) {
	s.Processed += o.processed
	s.Skipped += o.skipped
	s.Errors += o.errors
	s.DeletedFiles += o.deleted
	s.ChunksUpserted += o.upserted
	s.UpsertedIDs = append(s.UpsertedIDs, o.ids...)
	s.Failures = append(s.Failures, o.failures...)
}

// outcome is the effect of applying one record.
type outcome struct {
	processed, skipped, errors, deleted, upserted int
	ids                                           []string
	failures                                      []journal.Entry
}

// Executor applies change records to the vector store.
type Executor struct {
	deps Deps
	opts Options
}

func NewExecutor(deps Deps, opts Options) *Executor {
	if deps.NewID == nil {
		deps.NewID = func() string { return uuid.NewString() }
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 10
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	return &Executor{deps: deps, opts: opts}
}

// Run applies every record and folds the outcomes, in record order, into a
// Summary. Per-file failures are journaled and counted, never returned. With
// Concurrency > 1, records are grouped by path so each path's records still
// apply in order on a single worker.
func (e *Executor) Run(ctx context.Context, records []Record) (*Summary, error) {
	outcomes := make([]outcome, len(records))

	if e.opts.Concurrency == 1 {
		for i, rec := range records {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			outcomes[i] = e.apply(ctx, rec)
		}
	} else {
		eg, egCtx := errgroup.WithContext(ctx)
		eg.SetLimit(e.opts.Concurrency)
		for _, idxs := range groupByPath(records) {
			eg.Go(func() error {
				for _, i := range idxs {
					if err := egCtx.Err(); err != nil {
						return err
					}
					outcomes[i] = e.apply(egCtx, records[i])
				}
				return nil
			})
		}
		if err := eg.Wait(); err != nil {
			return nil, err
		}
	}

	summary := &Summary{
		RepoName:  e.opts.RepoName,
		Namespace: e.opts.Namespace,
		Model:     e.deps.Embedder.ModelID(),
	}
	for _, o := range outcomes {
		summary.add(o)
	}
	return summary, nil
}

// groupByPath returns record indexes grouped by path, groups in order of first
// appearance.
func groupByPath(records []Record) [][]int {
	pos := make(map[string]int)
	var groups [][]int
	for i, r := range records {
		g, ok := pos[r.Path]
		if !ok {
			g = len(groups)
			pos[r.Path] = g
			groups = append(groups, nil)
		}
		groups[g] = append(groups[g], i)
	}
	return groups
}

func (e *Executor) apply(ctx context.Context, rec Record) outcome {
	var o outcome
	log := e.deps.Logger.With(slog.String("path", rec.Path), slog.String("status", string(rec.Op)))
	full := filepath.Join(e.opts.RepoRoot, filepath.FromSlash(rec.Path))

	fail := func(op string, err error) outcome {
		o.errors++
		entry := journal.Entry{FilePath: rec.Path, Operation: op, Message: err.Error(), Status: string(rec.Op)}
		o.failures = append(o.failures, entry)
		e.deps.Journal.Append(entry)
		log.Error("sync failed", slog.String("operation", op), slog.String("error", err.Error()))
		return o
	}

	info, statErr := os.Stat(full)
	exists := statErr == nil
	if exists && info.IsDir() {
		// Submodule gitlinks can show up as paths in some diff modes.
		o.skipped++
		e.deps.Journal.Append(journal.Entry{FilePath: rec.Path, Operation: "skip-dir", Message: "Path is a directory; skipping", Status: string(rec.Op)})
		log.Info("skipping directory")
		return o
	}

	if rec.Op == OpDelete {
		if err := e.deleteFile(ctx, rec.Path); err != nil {
			return fail("process", err)
		}
		o.deleted++
		log.Info("deleted vectors")
		return o
	}

	if !exists {
		o.skipped++
		return fail("process", fmt.Errorf("file marked as %s but not found: %s", rec.Op, rec.Path))
	}

	if !e.opts.Wiped {
		if err := e.deleteFile(ctx, rec.Path); err != nil {
			return fail("process", err)
		}
		o.deleted++
	}

	vectors, err := e.buildRecords(ctx, rec, full)
	if err != nil {
		return fail("process", err)
	}

	var (
		upserted int
		ids      []string
	)
	for start := 0; start < len(vectors); start += e.opts.BatchSize {
		batch := vectors[start:min(start+e.opts.BatchSize, len(vectors))]
		n, err := e.upsert(ctx, batch)
		if err != nil {
			// A file is indexed whole or not at all.
			if upserted > 0 {
				if derr := e.deleteFile(ctx, rec.Path); derr != nil {
					log.Warn("rollback of partial upsert failed", slog.String("error", derr.Error()))
				}
			}
			return fail("upsert", err)
		}
		upserted += n
		for _, v := range batch {
			ids = append(ids, v.ID)
		}
	}
	o.upserted += upserted
	o.ids = append(o.ids, ids...)

	o.processed++
	log.Info("file synced", slog.Int("chunks", len(vectors)))
	return o
}

func (e *Executor) deleteFile(ctx context.Context, path string) error {
	err := e.deps.Store.DeleteByFilter(ctx, e.opts.Namespace, vectorstore.Filter{RepoName: e.opts.RepoName, FilePath: path})
	if vectorstore.IsNamespaceNotFound(err) {
		e.deps.Logger.Debug("namespace absent on delete", slog.String("path", path))
		return nil
	}
	return err
}

// upsert rejects a batch holding a content chunk without a vector before any
// network call.
func (e *Executor) upsert(ctx context.Context, batch []vectorstore.Record) (int, error) {
	for _, r := range batch {
		if r.Metadata.ChunkType == vectorstore.KindContent && len(r.Values) == 0 {
			return 0, fmt.Errorf("%w: %s", ErrMissingVector, r.Metadata.FilePath)
		}
	}
	return e.deps.Store.UpsertBatch(ctx, e.opts.Namespace, batch)
}

// buildRecords classifies the file, embeds the chunks that fit the budget and
// returns one record per non-blank chunk.
func (e *Executor) buildRecords(ctx context.Context, rec Record, full string) ([]vectorstore.Record, error) {
	res := e.deps.Classifier.Classify(ctx, e.opts.RepoRoot, rec.Path)

	var fullText string
	if res.Kind == vectorstore.KindContent {
		data, err := os.ReadFile(full)
		if err != nil {
			e.deps.Logger.Warn("could not read full text", slog.String("path", rec.Path), slog.String("error", err.Error()))
		} else {
			fullText = strings.ToValidUTF8(string(data), "")
		}
	}

	type pending struct {
		index  int
		text   string
		tokens int
		embed  bool
	}
	var (
		items   []pending
		toEmbed []string
	)
	for i, c := range res.Chunks {
		if strings.TrimSpace(c) == "" {
			continue
		}
		tokens := e.deps.Budget.Count(c)
		p := pending{index: i, text: c, tokens: tokens, embed: res.ShouldEmbed && tokens <= e.deps.Budget.MaxTokens()}
		if p.embed {
			toEmbed = append(toEmbed, c)
		}
		items = append(items, p)
	}

	vectors, err := e.deps.Embedder.EmbedAll(ctx, toEmbed)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(toEmbed) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(toEmbed))
	}

	indexedAt := e.deps.Now().UTC().Format("2006-01-02T15:04:05.000000") + "Z"
	out := make([]vectorstore.Record, 0, len(items))
	next := 0
	for _, p := range items {
		id := e.deps.NewID()
		var values []float32
		if p.embed {
			values = vectors[next]
			next++
		}
		out = append(out, vectorstore.Record{
			ID:     id,
			Values: values,
			Metadata: vectorstore.Metadata{
				RepoName:    e.opts.RepoName,
				FilePath:    rec.Path,
				FileType:    res.FileType,
				ChunkType:   res.Kind,
				ChunkIndex:  p.index,
				ChunkID:     id,
				Content:     p.text,
				LineRange:   chunker.LineRange(p.text, fullText),
				Embedded:    len(values) > 0,
				ShouldEmbed: res.ShouldEmbed,
				Status:      string(rec.Op),
				TokenCount:  p.tokens,
				CommitSHA:   e.opts.CommitSHA,
				IndexedAt:   indexedAt,
			},
		})
	}
	return out, nil
}

// IsFatal reports whether err should end the process before per-file work.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}
