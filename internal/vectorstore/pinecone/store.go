package pinecone

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/maraichr/vectorsync/internal/vectorstore"
)

// StoreConfig selects the index and where to create it when absent.
type StoreConfig struct {
	IndexName string
	IndexHost string // optional; resolved through describe_index when empty
	Cloud     string
	Region    string
}

// Store implements vectorstore.Store on a Pinecone serverless index.
type Store struct {
	log *slog.Logger
	pc  Client
	cfg StoreConfig

	mu   sync.Mutex
	host string
}

func NewStore(log *slog.Logger, pc Client, cfg StoreConfig) (*Store, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if pc == nil {
		return nil, fmt.Errorf("pinecone client required")
	}
	if strings.TrimSpace(cfg.IndexName) == "" {
		return nil, fmt.Errorf("missing index name")
	}
	return &Store{
		log:  log.With(slog.String("service", "pinecone_store"), slog.String("index", cfg.IndexName)),
		pc:   pc,
		cfg:  cfg,
		host: strings.TrimSpace(cfg.IndexHost),
	}, nil
}

// EnsureIndex lists indexes and creates a serverless one when the configured
// name is missing, then resolves the data-plane host.
func (s *Store) EnsureIndex(ctx context.Context, spec vectorstore.IndexSpec) error {
	indexes, err := s.pc.ListIndexes(ctx)
	if err != nil {
		return fmt.Errorf("list indexes: %w", err)
	}

	exists := false
	for _, ix := range indexes {
		if ix.Name == s.cfg.IndexName {
			exists = true
			if ix.Host != "" && s.currentHost() == "" {
				s.setHost(ix.Host)
			}
			break
		}
	}

	if !exists {
		s.log.Info("creating serverless index",
			slog.Int("dimension", spec.Dimension),
			slog.String("metric", spec.Metric),
			slog.String("cloud", s.cfg.Cloud),
			slog.String("region", s.cfg.Region))
		_, err := s.pc.CreateIndex(ctx, CreateIndexRequest{
			Name:      s.cfg.IndexName,
			Dimension: spec.Dimension,
			Metric:    spec.Metric,
			Spec:      IndexSpec{Serverless: &ServerlessSpec{Cloud: s.cfg.Cloud, Region: s.cfg.Region}},
		})
		if err != nil {
			if !isStatus(err, http.StatusConflict) {
				return fmt.Errorf("create index: %w", err)
			}
			s.log.Warn("create_index reported existing index", slog.String("error", err.Error()))
		}
	}

	if s.currentHost() != "" {
		return nil
	}
	_, err = s.resolveHost(ctx)
	return err
}

func (s *Store) UpsertBatch(ctx context.Context, namespace string, records []vectorstore.Record) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	host, err := s.resolveHost(ctx)
	if err != nil {
		return 0, err
	}

	vectors := make([]Vector, 0, len(records))
	for _, r := range records {
		md, err := json.Marshal(r.Metadata)
		if err != nil {
			return 0, fmt.Errorf("marshal metadata for %s: %w", r.ID, err)
		}
		values := r.Values
		if values == nil {
			values = []float32{}
		}
		vectors = append(vectors, Vector{ID: r.ID, Values: values, Metadata: md})
	}

	resp, err := s.pc.UpsertVectors(ctx, host, UpsertRequest{Vectors: vectors, Namespace: namespace})
	if err != nil {
		return 0, err
	}
	if resp.UpsertedCount > 0 {
		return int(resp.UpsertedCount), nil
	}
	return len(records), nil
}

func (s *Store) DeleteByFilter(ctx context.Context, namespace string, filter vectorstore.Filter) error {
	host, err := s.resolveHost(ctx)
	if err != nil {
		return err
	}
	err = s.pc.DeleteVectors(ctx, host, DeleteRequest{
		Namespace: namespace,
		Filter: map[string]any{
			"repo_name": map[string]any{"$eq": filter.RepoName},
			"file_path": map[string]any{"$eq": filter.FilePath},
		},
	})
	return mapNamespaceErr(err)
}

func (s *Store) FetchByIDs(ctx context.Context, namespace string, ids []string) (map[string]vectorstore.Record, error) {
	out := make(map[string]vectorstore.Record, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	host, err := s.resolveHost(ctx)
	if err != nil {
		return nil, err
	}
	resp, err := s.pc.FetchVectors(ctx, host, namespace, ids)
	if err != nil {
		if isStatus(err, http.StatusNotFound) {
			return out, nil
		}
		return nil, err
	}
	for id, v := range resp.Vectors {
		rec := vectorstore.Record{ID: id, Values: v.Values}
		if len(v.Metadata) > 0 {
			if err := json.Unmarshal(v.Metadata, &rec.Metadata); err != nil {
				return nil, fmt.Errorf("decode metadata for %s: %w", id, err)
			}
		}
		out[id] = rec
	}
	return out, nil
}

func (s *Store) WipeNamespace(ctx context.Context, namespace string) error {
	host, err := s.resolveHost(ctx)
	if err != nil {
		return err
	}
	return mapNamespaceErr(s.pc.DeleteVectors(ctx, host, DeleteRequest{DeleteAll: true, Namespace: namespace}))
}

func (s *Store) resolveHost(ctx context.Context) (string, error) {
	if h := s.currentHost(); h != "" {
		return h, nil
	}
	desc, err := s.pc.DescribeIndex(ctx, s.cfg.IndexName)
	if err != nil {
		return "", fmt.Errorf("describe index: %w", err)
	}
	s.setHost(desc.Host)
	s.log.Debug("resolved index host", slog.String("host", desc.Host))
	return desc.Host, nil
}

func (s *Store) currentHost() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.host
}

func (s *Store) setHost(h string) {
	s.mu.Lock()
	s.host = strings.TrimSpace(h)
	s.mu.Unlock()
}

func mapNamespaceErr(err error) error {
	if err == nil {
		return nil
	}
	if isStatus(err, http.StatusNotFound) || vectorstore.IsNamespaceNotFound(err) {
		return fmt.Errorf("%w: %v", vectorstore.ErrNamespaceNotFound, err)
	}
	return err
}
