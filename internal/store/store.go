package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/maraichr/vectorsync/internal/store/postgres"
	"github.com/maraichr/vectorsync/internal/vectorstore"
)

type Store struct {
	*postgres.Queries
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{
		Queries: postgres.New(pool),
		pool:    pool,
	}
}

func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

func (s *Store) WithTx(ctx context.Context, fn func(*postgres.Queries) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(s.Queries.WithTx(tx)); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// VectorStore adapts Store to vectorstore.Store using the repo_chunks table.
type VectorStore struct {
	store *Store
}

func NewVectorStore(s *Store) *VectorStore {
	return &VectorStore{store: s}
}

func (v *VectorStore) EnsureIndex(ctx context.Context, spec vectorstore.IndexSpec) error {
	return v.store.EnsureChunkSchema(ctx, spec.Dimension, spec.Metric)
}

// UpsertBatch writes the batch inside one transaction so a failed row leaves no
// partial batch behind.
func (v *VectorStore) UpsertBatch(ctx context.Context, namespace string, records []vectorstore.Record) (int, error) {
	chunks := make([]postgres.Chunk, 0, len(records))
	for _, r := range records {
		md, err := json.Marshal(r.Metadata)
		if err != nil {
			return 0, fmt.Errorf("marshal metadata for %s: %w", r.ID, err)
		}
		c := postgres.Chunk{
			Namespace: namespace,
			ID:        r.ID,
			RepoName:  r.Metadata.RepoName,
			FilePath:  r.Metadata.FilePath,
			Metadata:  md,
		}
		if len(r.Values) > 0 {
			vec := pgvector.NewVector(r.Values)
			c.Embedding = &vec
		}
		chunks = append(chunks, c)
	}

	var n int
	err := v.store.WithTx(ctx, func(q *postgres.Queries) error {
		var err error
		n, err = q.UpsertChunks(ctx, chunks)
		return err
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (v *VectorStore) DeleteByFilter(ctx context.Context, namespace string, filter vectorstore.Filter) error {
	_, err := v.store.DeleteChunksByFile(ctx, namespace, filter.RepoName, filter.FilePath)
	return err
}

func (v *VectorStore) FetchByIDs(ctx context.Context, namespace string, ids []string) (map[string]vectorstore.Record, error) {
	rows, err := v.store.ListChunksByIDs(ctx, namespace, ids)
	if err != nil {
		return nil, fmt.Errorf("list chunks: %w", err)
	}
	out := make(map[string]vectorstore.Record, len(rows))
	for _, row := range rows {
		rec := vectorstore.Record{ID: row.ID}
		if row.Embedding != nil {
			rec.Values = row.Embedding.Slice()
		}
		if err := json.Unmarshal(row.Metadata, &rec.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata for %s: %w", row.ID, err)
		}
		out[row.ID] = rec
	}
	return out, nil
}

func (v *VectorStore) WipeNamespace(ctx context.Context, namespace string) error {
	_, err := v.store.DeleteNamespace(ctx, namespace)
	return err
}
