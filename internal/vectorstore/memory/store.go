// Package memory is an in-process vector store used for dry runs and tests.
package memory

import (
	"context"
	"sync"

	"github.com/maraichr/vectorsync/internal/vectorstore"
)

// Store keeps records per namespace in maps guarded by a mutex.
type Store struct {
	mu         sync.Mutex
	namespaces map[string]map[string]vectorstore.Record
	index      *vectorstore.IndexSpec

	// StrictNamespaces makes deletes against a namespace that was never written
	// return vectorstore.ErrNamespaceNotFound, like a serverless index does.
	StrictNamespaces bool

	upsertCalls int
}

func New() *Store {
	return &Store{namespaces: make(map[string]map[string]vectorstore.Record)}
}

func (s *Store) EnsureIndex(_ context.Context, spec vectorstore.IndexSpec) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index == nil {
		sp := spec
		s.index = &sp
	}
	return nil
}

func (s *Store) UpsertBatch(_ context.Context, namespace string, records []vectorstore.Record) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upsertCalls++
	ns, ok := s.namespaces[namespace]
	if !ok {
		ns = make(map[string]vectorstore.Record)
		s.namespaces[namespace] = ns
	}
	for _, r := range records {
		if r.Values != nil {
			r.Values = append([]float32(nil), r.Values...)
		}
		ns[r.ID] = r
	}
	return len(records), nil
}

func (s *Store) DeleteByFilter(_ context.Context, namespace string, filter vectorstore.Filter) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ns, ok := s.namespaces[namespace]
	if !ok {
		if s.StrictNamespaces {
			return vectorstore.ErrNamespaceNotFound
		}
		return nil
	}
	for id, r := range ns {
		if r.Metadata.RepoName == filter.RepoName && r.Metadata.FilePath == filter.FilePath {
			delete(ns, id)
		}
	}
	return nil
}

func (s *Store) FetchByIDs(_ context.Context, namespace string, ids []string) (map[string]vectorstore.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]vectorstore.Record)
	ns := s.namespaces[namespace]
	for _, id := range ids {
		if r, ok := ns[id]; ok {
			out[id] = r
		}
	}
	return out, nil
}

func (s *Store) WipeNamespace(_ context.Context, namespace string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.namespaces[namespace]; !ok {
		if s.StrictNamespaces {
			return vectorstore.ErrNamespaceNotFound
		}
		return nil
	}
	delete(s.namespaces, namespace)
	return nil
}

// Records returns every record in the namespace whose metadata matches the filter.
func (s *Store) Records(namespace string, filter vectorstore.Filter) []vectorstore.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []vectorstore.Record
	for _, r := range s.namespaces[namespace] {
		if r.Metadata.RepoName == filter.RepoName && r.Metadata.FilePath == filter.FilePath {
			out = append(out, r)
		}
	}
	return out
}

// Len returns the number of records in the namespace.
func (s *Store) Len(namespace string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.namespaces[namespace])
}

// UpsertCalls returns how many UpsertBatch calls reached the store.
func (s *Store) UpsertCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upsertCalls
}

// Index returns the spec passed to the first EnsureIndex call, if any.
func (s *Store) Index() (vectorstore.IndexSpec, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index == nil {
		return vectorstore.IndexSpec{}, false
	}
	return *s.index, true
}
