package chunker

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
)

const goSource = `package sample

import "fmt"

// Hello prints a greeting.
func Hello(name string) {
	fmt.Println("hello", name)
}

// Bye prints a farewell.
func Bye(name string) {
	fmt.Println("bye", name)
}
`

func TestCodeChunker_SplitsAtDeclarations(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "sample.go", goSource)

	chunks, err := NewCodeChunker(80).Chunk(context.Background(), filepath.Join(dir, "sample.go"))
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) < 2 {
		t.Fatalf("expected several chunks, got %d: %q", len(chunks), chunks)
	}

	var hello string
	for _, c := range chunks {
		if strings.Contains(c, "func Hello") {
			hello = c
		}
	}
	if !strings.Contains(hello, "// Hello prints a greeting.") {
		t.Errorf("leading comment not attached to its declaration: %q", hello)
	}
	if strings.Contains(hello, "func Bye") {
		t.Errorf("declarations over the size limit must not share a chunk: %q", hello)
	}
}

func TestCodeChunker_KeepsAllSource(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "sample.go", goSource)

	chunks, err := NewCodeChunker(10000).Chunk(context.Background(), filepath.Join(dir, "sample.go"))
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected a single packed chunk, got %d", len(chunks))
	}
	got := strings.Fields(chunks[0])
	want := strings.Fields(goSource)
	if strings.Join(got, " ") != strings.Join(want, " ") {
		t.Errorf("packed chunk differs from source:\n%s", chunks[0])
	}
}

func TestCodeChunker_RejectsBinary(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "blob.py", "x = 1\x00\x00")

	_, err := NewCodeChunker(0).Chunk(context.Background(), filepath.Join(dir, "blob.py"))
	if !errors.Is(err, ErrBinaryContent) {
		t.Fatalf("expected ErrBinaryContent, got %v", err)
	}
}

func TestTextChunker_SplitsOnHeadings(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "doc.md", "# One\nfirst paragraph\n# Two\nsecond paragraph\n")

	chunks, err := NewTextChunker(20).Chunk(context.Background(), filepath.Join(dir, "doc.md"))
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"# One\nfirst paragraph", "# Two\nsecond paragraph"}
	if len(chunks) != len(want) {
		t.Fatalf("chunks = %q, want %q", chunks, want)
	}
	for i := range want {
		if chunks[i] != want[i] {
			t.Errorf("chunk %d = %q, want %q", i, chunks[i], want[i])
		}
	}
}

func TestRegistry_ForFile(t *testing.T) {
	r := NewDefaultRegistry(0)
	if _, ok := r.ForFile("main.go").(*CodeChunker); !ok {
		t.Error("expected code chunker for .go")
	}
	if _, ok := r.ForFile("App.TSX").(*CodeChunker); !ok {
		t.Error("expected code chunker for .tsx")
	}
	if _, ok := r.ForFile("README.md").(*TextChunker); !ok {
		t.Error("expected text chunker for .md")
	}
}
