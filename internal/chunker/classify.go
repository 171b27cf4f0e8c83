package chunker

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/maraichr/vectorsync/internal/vectorstore"
)

// binaryExts are indexed as a single summary chunk instead of being read as text.
var binaryExts = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".webp": true,
	".bmp": true, ".tiff": true, ".ico": true, ".psd": true, ".pdf": true,
	".zip": true, ".gz": true, ".tar": true, ".7z": true,
	".mp3": true, ".mp4": true, ".mov": true, ".avi": true, ".wav": true,
	".woff": true, ".woff2": true, ".ttf": true, ".eot": true,
}

// summaryOnlyBasenames are lockfiles and similar generated artifacts, matched
// case-insensitively.
var summaryOnlyBasenames = map[string]bool{
	"pnpm-lock.yaml":      true,
	"yarn.lock":           true,
	"package-lock.json":   true,
	"npm-shrinkwrap.json": true,
	"cargo.lock":          true,
	"poetry.lock":         true,
	"pipfile.lock":        true,
	"gemfile.lock":        true,
	"composer.lock":       true,
}

// Result is the outcome of classifying one file.
type Result struct {
	Chunks      []string
	ShouldEmbed bool
	Kind        vectorstore.ChunkKind
	FileType    string
}

// Classifier decides how a file is chunked and applies the token budget.
type Classifier struct {
	logger  *slog.Logger
	chunker Chunker
	budget  *Budgeter
}

func NewClassifier(logger *slog.Logger, c Chunker, b *Budgeter) *Classifier {
	return &Classifier{logger: logger, chunker: c, budget: b}
}

func (c *Classifier) Budgeter() *Budgeter { return c.budget }

// Classify chunks the file at root/path. Lockfiles, binary extensions and
// csv/tsv files become one summary chunk; everything else goes through the
// chunker, falling back to a summary when it fails or returns nothing.
// ShouldEmbed is true for every kind so placeholder records remain searchable.
func (c *Classifier) Classify(ctx context.Context, root, path string) Result {
	full := filepath.Join(root, filepath.FromSlash(path))
	ext := strings.ToLower(filepath.Ext(path))
	res := Result{ShouldEmbed: true, Kind: vectorstore.KindSummary, FileType: DetectFileType(full)}

	switch {
	case summaryOnlyBasenames[strings.ToLower(filepath.Base(path))], binaryExts[ext]:
		res.Chunks = c.budget.Split([]string{summarize(full, path)})
		return res
	case ext == ".csv" || ext == ".tsv":
		res.Chunks = c.budget.Split([]string{tabularPreview(full, path)})
		return res
	}

	chunks, err := c.chunker.Chunk(ctx, full)
	if err != nil {
		c.logger.Warn("chunker failed, falling back to summary",
			slog.String("path", path), slog.String("error", err.Error()))
	}
	if err == nil && len(chunks) > 0 {
		res.Chunks = c.budget.Split(chunks)
		res.Kind = vectorstore.KindContent
		return res
	}

	res.Chunks = c.budget.Split([]string{summarize(full, path)})
	return res
}
