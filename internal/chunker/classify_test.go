package chunker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/maraichr/vectorsync/internal/vectorstore"
)

type failingChunker struct{}

func (failingChunker) Chunk(context.Context, string) ([]string, error) {
	return nil, errors.New("chunker down")
}

type staticChunker []string

func (s staticChunker) Chunk(context.Context, string) ([]string, error) { return s, nil }

func newTestClassifier(c Chunker) *Classifier {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewClassifier(logger, c, NewBudgeter(WordCounter{}, 8192))
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	p := filepath.Join(dir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestClassify_LockfileIsSummary(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "web/Yarn.lock", "# yarn lockfile v1\n")

	res := newTestClassifier(staticChunker{"never used"}).Classify(context.Background(), dir, "web/Yarn.lock")
	if res.Kind != vectorstore.KindSummary || !res.ShouldEmbed {
		t.Fatalf("unexpected result: %+v", res)
	}
	want := "LOCK file: Yarn.lock\nPath: web/Yarn.lock\nSize: 0.00 MB\nType: lock"
	if len(res.Chunks) != 1 || res.Chunks[0] != want {
		t.Errorf("chunks = %q, want [%q]", res.Chunks, want)
	}
}

func TestClassify_BinaryExtensionIsSummary(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "logo.PNG", "\x89PNG\x00\x00")

	res := newTestClassifier(staticChunker{"never used"}).Classify(context.Background(), dir, "logo.PNG")
	if res.Kind != vectorstore.KindSummary || len(res.Chunks) != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if !strings.HasPrefix(res.Chunks[0], "PNG file: logo.PNG\n") {
		t.Errorf("unexpected summary %q", res.Chunks[0])
	}
	if strings.Contains(res.Chunks[0], "Preview") {
		t.Error("binary summary must not include a preview")
	}
}

func TestClassify_MissingBinaryFile(t *testing.T) {
	res := newTestClassifier(staticChunker{}).Classify(context.Background(), t.TempDir(), "gone.png")
	if len(res.Chunks) != 1 || !strings.HasPrefix(res.Chunks[0], "Error accessing gone.png: ") {
		t.Fatalf("unexpected chunks %q", res.Chunks)
	}
	if !res.ShouldEmbed {
		t.Error("error summaries are still embedded")
	}
}

func TestClassify_CSVPreviewFirst20Lines(t *testing.T) {
	dir := t.TempDir()
	var b strings.Builder
	for i := 1; i <= 25; i++ {
		fmt.Fprintf(&b, "row%d,value\n", i)
	}
	writeFile(t, dir, "data.csv", b.String())

	res := newTestClassifier(staticChunker{"never used"}).Classify(context.Background(), dir, "data.csv")
	if res.Kind != vectorstore.KindSummary || len(res.Chunks) != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
	got := res.Chunks[0]
	if !strings.HasPrefix(got, "CSV/TSV File: data.csv\nFirst 20 lines preview:\nrow1,value\n") {
		t.Errorf("unexpected preview header %q", got)
	}
	if !strings.Contains(got, "row20,value") || strings.Contains(got, "row21,value") {
		t.Errorf("preview must contain exactly the first 20 lines: %q", got)
	}
}

func TestClassify_ChunkerOutputIsContent(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "README.md", "# Title\n\nBody.\n")

	res := newTestClassifier(staticChunker{"# Title", "  ", "Body."}).Classify(context.Background(), dir, "README.md")
	if res.Kind != vectorstore.KindContent {
		t.Fatalf("kind = %s, want content", res.Kind)
	}
	if len(res.Chunks) != 2 || res.Chunks[0] != "# Title" || res.Chunks[1] != "Body." {
		t.Errorf("chunks = %q", res.Chunks)
	}
	if res.FileType != "md" {
		t.Errorf("file type = %q, want md", res.FileType)
	}
}

func TestClassify_ChunkerFailureFallsBackToSummaryWithPreview(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "app.log", "hello")

	res := newTestClassifier(failingChunker{}).Classify(context.Background(), dir, "app.log")
	if res.Kind != vectorstore.KindSummary {
		t.Fatalf("kind = %s, want summary", res.Kind)
	}
	want := "LOG file: app.log\nPath: app.log\nSize: 0.00 MB\nType: log\n\nPreview:\nhello..."
	if len(res.Chunks) != 1 || res.Chunks[0] != want {
		t.Errorf("chunks = %q, want [%q]", res.Chunks, want)
	}
}

func TestClassify_EmptyChunkerOutputFallsBack(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "empty.go", "")

	res := newTestClassifier(staticChunker{}).Classify(context.Background(), dir, "empty.go")
	if res.Kind != vectorstore.KindSummary || len(res.Chunks) != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
}
