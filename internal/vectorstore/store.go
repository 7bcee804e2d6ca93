// Package vectorstore provides tenant-scoped vector storage and
// similarity search backed by SQLite.
package vectorstore

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Record is one embedded chunk of a tenant's knowledge base.
type Record struct {
	ID        string
	TenantID  int64
	Source    string
	Content   string
	Embedding []float32
}

// Match is a search result with its cosine similarity score.
type Match struct {
	Record Record
	Score  float32
}

// Store keeps all records in memory for search and mirrors every
// mutation to SQLite so the corpus survives restarts.
type Store struct {
	mu      sync.RWMutex
	records []Record
	backend *sqliteBackend
}

// Open loads the store at the given path, creating it if needed.
func Open(path string) (*Store, error) {
	backend, err := newSQLiteBackend(path)
	if err != nil {
		return nil, err
	}

	records, err := backend.loadAll(context.Background())
	if err != nil {
		backend.close()
		return nil, err
	}

	log.Printf("[VectorStore] opened %s with %d records", path, len(records))
	return &Store{records: records, backend: backend}, nil
}

// OpenInMemory returns a store with no persistence, for tests and
// ephemeral sessions.
func OpenInMemory() *Store {
	return &Store{}
}

// Upsert inserts records, first removing any existing records that
// share a (tenant, source) pair with the new batch. Re-ingesting a
// document therefore replaces its chunks instead of duplicating them.
func (s *Store) Upsert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	for i := range records {
		if records[i].ID == "" {
			records[i].ID = uuid.New().String()
		}
	}

	type pair struct {
		tenant int64
		source string
	}
	replaced := make(map[pair]bool)
	for _, r := range records {
		replaced[pair{r.TenantID, r.Source}] = true
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.backend != nil {
		var sources []sourceKey
		for p := range replaced {
			sources = append(sources, sourceKey{TenantID: p.tenant, Source: p.source})
		}
		if err := s.backend.replace(ctx, sources, records); err != nil {
			return fmt.Errorf("vectorstore: upsert failed: %w", err)
		}
	}

	kept := s.records[:0]
	for _, r := range s.records {
		if !replaced[pair{r.TenantID, r.Source}] {
			kept = append(kept, r)
		}
	}
	s.records = append(kept, records...)

	return nil
}

// DeleteTenant removes every record belonging to the tenant.
func (s *Store) DeleteTenant(ctx context.Context, tenantID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.backend != nil {
		if err := s.backend.deleteTenant(ctx, tenantID); err != nil {
			return fmt.Errorf("vectorstore: delete tenant failed: %w", err)
		}
	}

	kept := s.records[:0]
	for _, r := range s.records {
		if r.TenantID != tenantID {
			kept = append(kept, r)
		}
	}
	s.records = kept

	return nil
}

// Query returns up to k records for the tenant ranked by cosine
// similarity to the query embedding. Records with zero or negative
// similarity are never returned.
func (s *Store) Query(ctx context.Context, tenantID int64, embedding []float32, k int) ([]Match, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var matches []Match
	for _, r := range s.records {
		if r.TenantID != tenantID {
			continue
		}
		score := CosineSimilarity(embedding, r.Embedding)
		if score <= 0 {
			continue
		}
		matches = append(matches, Match{Record: r, Score: score})
	}

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if len(matches) > k {
		matches = matches[:k]
	}

	return matches, nil
}

// Count returns the number of records stored for the tenant.
func (s *Store) Count(tenantID int64) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, r := range s.records {
		if r.TenantID == tenantID {
			n++
		}
	}
	return n
}

// Tenants returns the distinct tenant IDs present in the store.
func (s *Store) Tenants() []int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[int64]bool)
	var ids []int64
	for _, r := range s.records {
		if !seen[r.TenantID] {
			seen[r.TenantID] = true
			ids = append(ids, r.TenantID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Close closes the underlying database, if any.
func (s *Store) Close() error {
	if s.backend == nil {
		return nil
	}
	return s.backend.close()
}
