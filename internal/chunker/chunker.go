// Package chunker turns a repository file into the text chunks the sync engine
// embeds: classification into content or summary chunks, language-aware and
// plain-text splitting, and the token budget every chunk must fit.
package chunker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrBinaryContent is returned by the text chunkers for files that look binary.
var ErrBinaryContent = errors.New("binary content")

// Chunker splits one file into text chunks.
type Chunker interface {
	Chunk(ctx context.Context, path string) ([]string, error)
}

// Registry maps file extensions to chunkers, with a fallback for everything else.
type Registry struct {
	chunkers map[string]Chunker
	fallback Chunker
}

func NewRegistry(fallback Chunker) *Registry {
	return &Registry{chunkers: make(map[string]Chunker), fallback: fallback}
}

func (r *Registry) Register(ext string, c Chunker) {
	r.chunkers[strings.ToLower(ext)] = c
}

// ForFile returns the chunker for a path, or the fallback when none matches.
func (r *Registry) ForFile(path string) Chunker {
	if c, ok := r.chunkers[strings.ToLower(filepath.Ext(path))]; ok {
		return c
	}
	return r.fallback
}

func (r *Registry) Chunk(ctx context.Context, path string) ([]string, error) {
	c := r.ForFile(path)
	if c == nil {
		return nil, fmt.Errorf("no chunker for file: %s", path)
	}
	return c.Chunk(ctx, path)
}

// NewDefaultRegistry registers the tree-sitter chunker for every supported
// language, the SQL chunker for scripts and the text chunker for the rest.
func NewDefaultRegistry(maxChars int) *Registry {
	r := NewRegistry(NewTextChunker(maxChars))
	code := NewCodeChunker(maxChars)
	for _, ext := range code.Extensions() {
		r.Register(ext, code)
	}
	sql := NewSQLChunker(maxChars)
	for _, ext := range sql.Extensions() {
		r.Register(ext, sql)
	}
	return r
}

// readText reads a file and rejects content with NUL bytes in its head.
func readText(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	head := data
	if len(head) > 8000 {
		head = head[:8000]
	}
	if bytes.IndexByte(head, 0) >= 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrBinaryContent)
	}
	return data, nil
}

// TextChunker splits prose and config files on blank lines and markdown
// headings, packing consecutive blocks up to maxChars.
type TextChunker struct {
	maxChars int
}

func NewTextChunker(maxChars int) *TextChunker {
	if maxChars <= 0 {
		maxChars = 2000
	}
	return &TextChunker{maxChars: maxChars}
}

func (t *TextChunker) Chunk(ctx context.Context, path string) ([]string, error) {
	data, err := readText(path)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return pack(textBlocks(string(data)), t.maxChars), nil
}

func textBlocks(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var (
		blocks  []string
		current []string
	)
	flush := func() {
		if len(current) > 0 {
			blocks = append(blocks, strings.Join(current, "\n"))
			current = nil
		}
	}
	for _, line := range strings.Split(text, "\n") {
		switch {
		case strings.TrimSpace(line) == "":
			flush()
		case strings.HasPrefix(line, "#") && !strings.HasPrefix(line, "#!"):
			flush()
			current = append(current, line)
		default:
			current = append(current, line)
		}
	}
	flush()
	return blocks
}

// pack greedily joins blocks with blank lines while the result stays within
// maxChars. A single block longer than maxChars is emitted on its own; the
// token budgeter splits it further if needed.
func pack(blocks []string, maxChars int) []string {
	var (
		out     []string
		current strings.Builder
	)
	for _, b := range blocks {
		if strings.TrimSpace(b) == "" {
			continue
		}
		if current.Len() > 0 && current.Len()+2+len(b) > maxChars {
			out = append(out, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(b)
	}
	if current.Len() > 0 {
		out = append(out, current.String())
	}
	return out
}
