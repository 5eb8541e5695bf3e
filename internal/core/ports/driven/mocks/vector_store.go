package mocks

import (
	"context"
	"sync"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// MockVectorStore is a mock implementation of VectorStore for testing.
// Query returns matching chunks in insertion order without ranking.
type MockVectorStore struct {
	mu      sync.RWMutex
	chunks  map[string]domain.Chunk
	order   []string
	queries []domain.VectorQuery

	// Error injection (optional)
	UpsertErr error
	QueryErr  error
	// FilterErr fails only queries that carry a filter
	FilterErr error
	DeleteErr error
}

// NewMockVectorStore creates an empty mock store
func NewMockVectorStore() *MockVectorStore {
	return &MockVectorStore{chunks: make(map[string]domain.Chunk)}
}

func (m *MockVectorStore) EnsureCollection(ctx context.Context) error {
	return nil
}

func (m *MockVectorStore) Upsert(ctx context.Context, chunks []domain.Chunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.UpsertErr != nil {
		return m.UpsertErr
	}
	for _, c := range chunks {
		if _, exists := m.chunks[c.ID]; !exists {
			m.order = append(m.order, c.ID)
		}
		m.chunks[c.ID] = c
	}
	return nil
}

func (m *MockVectorStore) Query(ctx context.Context, q domain.VectorQuery) (*domain.RetrievalResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.queries = append(m.queries, q)
	if m.QueryErr != nil {
		return nil, m.QueryErr
	}
	if len(q.Filter) > 0 && m.FilterErr != nil {
		return nil, m.FilterErr
	}

	result := &domain.RetrievalResult{}
	for _, id := range m.order {
		if q.NResults > 0 && len(result.Chunks) >= q.NResults {
			break
		}
		c := m.chunks[id]
		if src, ok := q.Filter[domain.MetaSource]; ok && c.Metadata.Source != src {
			continue
		}
		result.Chunks = append(result.Chunks, domain.RetrievedChunk{ID: c.ID, Text: c.Text, Metadata: c.Metadata})
	}
	return result, nil
}

func (m *MockVectorStore) DeleteStale(ctx context.Context, source string, keepIDs []string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.DeleteErr != nil {
		return 0, m.DeleteErr
	}
	keep := make(map[string]bool, len(keepIDs))
	for _, id := range keepIDs {
		keep[id] = true
	}

	removed := 0
	order := m.order[:0]
	for _, id := range m.order {
		if m.chunks[id].Metadata.Source == source && !keep[id] {
			delete(m.chunks, id)
			removed++
			continue
		}
		order = append(order, id)
	}
	m.order = order
	return removed, nil
}

func (m *MockVectorStore) Count(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.chunks), nil
}

func (m *MockVectorStore) SupportsFilter() bool { return true }

func (m *MockVectorStore) HealthCheck(ctx context.Context) error {
	return nil
}

// Helper methods for testing

// Get returns a stored chunk by id
func (m *MockVectorStore) Get(id string) (domain.Chunk, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.chunks[id]
	return c, ok
}

// ChunksForSource returns the stored chunks of one source in insertion order
func (m *MockVectorStore) ChunksForSource(source string) []domain.Chunk {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []domain.Chunk
	for _, id := range m.order {
		if c := m.chunks[id]; c.Metadata.Source == source {
			out = append(out, c)
		}
	}
	return out
}

// Queries returns every query received
func (m *MockVectorStore) Queries() []domain.VectorQuery {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]domain.VectorQuery(nil), m.queries...)
}
