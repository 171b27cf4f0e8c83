package postgres

// chunks.go holds the hand-written queries for the repo_chunks table backing the
// pgvector vector store.

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	pgvector "github.com/pgvector/pgvector-go"
)

// Chunk is one row of repo_chunks.
type Chunk struct {
	Namespace string
	ID        string
	RepoName  string
	FilePath  string
	Embedding *pgvector.Vector
	Metadata  []byte
}

// OpsClass returns the pgvector operator class for a similarity metric.
func OpsClass(metric string) (string, error) {
	switch metric {
	case "", "cosine":
		return "vector_cosine_ops", nil
	case "euclidean":
		return "vector_l2_ops", nil
	case "dotproduct":
		return "vector_ip_ops", nil
	default:
		return "", fmt.Errorf("unsupported metric %q", metric)
	}
}

// EnsureChunkSchema creates the extension, table and indexes when absent.
func (q *Queries) EnsureChunkSchema(ctx context.Context, dimension int, metric string) error {
	if dimension <= 0 {
		return fmt.Errorf("dimension must be positive, got %d", dimension)
	}
	ops, err := OpsClass(metric)
	if err != nil {
		return err
	}

	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS repo_chunks (
			namespace  text NOT NULL,
			id         text NOT NULL,
			repo_name  text NOT NULL,
			file_path  text NOT NULL,
			embedding  vector(%d),
			metadata   jsonb NOT NULL,
			updated_at timestamptz NOT NULL DEFAULT now(),
			PRIMARY KEY (namespace, id)
		)`, dimension),
		`CREATE INDEX IF NOT EXISTS repo_chunks_file_idx ON repo_chunks (namespace, repo_name, file_path)`,
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS repo_chunks_embedding_idx ON repo_chunks USING hnsw (embedding %s)`, ops),
	}
	for _, stmt := range stmts {
		if _, err := q.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure chunk schema: %w", err)
		}
	}
	return nil
}

// UpsertChunks writes all rows in one pipelined batch.
func (q *Queries) UpsertChunks(ctx context.Context, chunks []Chunk) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, c := range chunks {
		var embedding any
		if c.Embedding != nil {
			embedding = *c.Embedding
		}
		batch.Queue(
			`INSERT INTO repo_chunks (namespace, id, repo_name, file_path, embedding, metadata, updated_at)
			 VALUES ($1, $2, $3, $4, $5::vector, $6::jsonb, now())
			 ON CONFLICT (namespace, id) DO UPDATE
			 SET repo_name = EXCLUDED.repo_name,
			     file_path = EXCLUDED.file_path,
			     embedding = EXCLUDED.embedding,
			     metadata  = EXCLUDED.metadata,
			     updated_at = now()`,
			c.Namespace, c.ID, c.RepoName, c.FilePath, embedding, c.Metadata)
	}

	br := q.db.SendBatch(ctx, batch)
	defer br.Close()

	for i := range chunks {
		if _, err := br.Exec(); err != nil {
			return i, fmt.Errorf("upsert chunk %s: %w", chunks[i].ID, err)
		}
	}
	return len(chunks), nil
}

// DeleteChunksByFile removes every chunk of one file and returns the row count.
func (q *Queries) DeleteChunksByFile(ctx context.Context, namespace, repoName, filePath string) (int64, error) {
	tag, err := q.db.Exec(ctx,
		`DELETE FROM repo_chunks WHERE namespace = $1 AND repo_name = $2 AND file_path = $3`,
		namespace, repoName, filePath)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// DeleteNamespace removes every chunk in the namespace.
func (q *Queries) DeleteNamespace(ctx context.Context, namespace string) (int64, error) {
	tag, err := q.db.Exec(ctx, `DELETE FROM repo_chunks WHERE namespace = $1`, namespace)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ListChunksByIDs returns the rows that exist for the given ids.
func (q *Queries) ListChunksByIDs(ctx context.Context, namespace string, ids []string) ([]Chunk, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := q.db.Query(ctx,
		`SELECT namespace, id, repo_name, file_path, embedding::text, metadata
		 FROM repo_chunks
		 WHERE namespace = $1 AND id = ANY($2::text[])`,
		namespace, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Chunk
	for rows.Next() {
		var (
			c   Chunk
			vec *string
		)
		if err := rows.Scan(&c.Namespace, &c.ID, &c.RepoName, &c.FilePath, &vec, &c.Metadata); err != nil {
			return nil, err
		}
		if vec != nil {
			var v pgvector.Vector
			if err := v.Scan(*vec); err != nil {
				return nil, fmt.Errorf("parse embedding for %s: %w", c.ID, err)
			}
			c.Embedding = &v
		}
		items = append(items, c)
	}
	return items, rows.Err()
}
