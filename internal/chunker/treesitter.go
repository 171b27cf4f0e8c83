package chunker

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/csharp"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/java"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/rust"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// CodeChunker splits source files at top-level syntax nodes. Small adjacent
// nodes (imports, comments, one-line declarations) are packed together up to
// maxChars; leading comments stay attached to the declaration that follows.
type CodeChunker struct {
	maxChars  int
	languages map[string]*sitter.Language
}

func NewCodeChunker(maxChars int) *CodeChunker {
	if maxChars <= 0 {
		maxChars = 2000
	}
	return &CodeChunker{
		maxChars: maxChars,
		languages: map[string]*sitter.Language{
			".go":   golang.GetLanguage(),
			".py":   python.GetLanguage(),
			".js":   javascript.GetLanguage(),
			".jsx":  javascript.GetLanguage(),
			".mjs":  javascript.GetLanguage(),
			".cjs":  javascript.GetLanguage(),
			".ts":   typescript.GetLanguage(),
			".tsx":  tsx.GetLanguage(),
			".java": java.GetLanguage(),
			".cs":   csharp.GetLanguage(),
			".rs":   rust.GetLanguage(),
		},
	}
}

// Extensions returns the registered extensions in sorted order.
func (c *CodeChunker) Extensions() []string {
	exts := make([]string, 0, len(c.languages))
	for ext := range c.languages {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

func (c *CodeChunker) Chunk(ctx context.Context, path string) ([]string, error) {
	lang, ok := c.languages[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return nil, fmt.Errorf("no grammar for file: %s", path)
	}
	src, err := readText(path)
	if err != nil {
		return nil, err
	}

	// sitter.Parser is not safe for concurrent use; one per call.
	p := sitter.NewParser()
	defer p.Close()
	p.SetLanguage(lang)

	tree, err := p.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	defer tree.Close()

	root := tree.RootNode()
	var (
		blocks  []string
		pending []string // comments waiting for the next declaration
		prevEnd uint32
	)
	for i := 0; i < int(root.ChildCount()); i++ {
		child := root.Child(i)
		// Keep the text between nodes so nothing is dropped, including
		// anything the grammar could not attach to a node.
		gap := strings.TrimSpace(string(src[prevEnd:child.StartByte()]))
		if gap != "" {
			pending = append(pending, gap)
		}
		prevEnd = child.EndByte()

		text := child.Content(src)
		if child.Type() == "comment" || child.Type() == "line_comment" || child.Type() == "block_comment" {
			pending = append(pending, text)
			continue
		}
		if len(pending) > 0 {
			text = strings.Join(pending, "\n") + "\n" + text
			pending = nil
		}
		blocks = append(blocks, text)
	}
	if tail := strings.TrimSpace(string(src[prevEnd:])); tail != "" {
		pending = append(pending, tail)
	}
	if len(pending) > 0 {
		blocks = append(blocks, strings.Join(pending, "\n"))
	}

	return pack(blocks, c.maxChars), nil
}
