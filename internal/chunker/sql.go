package chunker

import (
	"context"
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"
)

// SQLChunker splits SQL scripts at statement boundaries using the Postgres
// scanner, so a CREATE FUNCTION body is never cut in half. Scripts the scanner
// rejects (other dialects, templates) are chunked as plain text.
type SQLChunker struct {
	maxChars int
	text     *TextChunker
}

func NewSQLChunker(maxChars int) *SQLChunker {
	if maxChars <= 0 {
		maxChars = 2000
	}
	return &SQLChunker{maxChars: maxChars, text: NewTextChunker(maxChars)}
}

func (c *SQLChunker) Extensions() []string {
	return []string{".sql", ".pgsql", ".psql"}
}

func (c *SQLChunker) Chunk(ctx context.Context, path string) ([]string, error) {
	data, err := readText(path)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stmts, err := pg_query.SplitWithScanner(string(data), true)
	if err != nil || len(stmts) == 0 {
		return pack(textBlocks(string(data)), c.maxChars), nil
	}

	blocks := make([]string, 0, len(stmts))
	for _, s := range stmts {
		if s = strings.TrimSpace(s); s != "" {
			blocks = append(blocks, s+";")
		}
	}
	return pack(blocks, c.maxChars), nil
}
