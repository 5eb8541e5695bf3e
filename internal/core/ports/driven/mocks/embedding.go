package mocks

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// MockEmbeddingService is a mock implementation of EmbeddingService for testing.
// Vectors are derived from a hash of the text, so equal texts embed equally.
type MockEmbeddingService struct {
	mu          sync.Mutex
	name        string
	model       string
	dimensions  int
	unsupported bool
	failNext    error
	calls       int
}

// NewMockEmbeddingService creates a mock that embeds like "openai"
func NewMockEmbeddingService() *MockEmbeddingService {
	return &MockEmbeddingService{
		name:       "openai",
		model:      "mock-embedding-model",
		dimensions: 8,
	}
}

// NewUnsupportedEmbeddingService creates a mock provider that cannot embed
func NewUnsupportedEmbeddingService(name string) *MockEmbeddingService {
	m := NewMockEmbeddingService()
	m.name = name
	m.unsupported = true
	return m
}

func (m *MockEmbeddingService) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := m.begin(); err != nil {
		return nil, err
	}
	result := make([][]float32, len(texts))
	for i, text := range texts {
		result[i] = m.generateEmbedding(text)
	}
	return result, nil
}

func (m *MockEmbeddingService) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	if err := m.begin(); err != nil {
		return nil, err
	}
	return m.generateEmbedding(query), nil
}

func (m *MockEmbeddingService) begin() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if m.unsupported {
		return fmt.Errorf("%w: %s cannot generate embeddings", domain.ErrCapabilityUnsupported, m.name)
	}
	if err := m.failNext; err != nil {
		m.failNext = nil
		return err
	}
	return nil
}

func (m *MockEmbeddingService) SupportsEmbeddings() bool { return !m.unsupported }
func (m *MockEmbeddingService) Dimensions() int          { return m.dimensions }
func (m *MockEmbeddingService) Model() string            { return m.model }
func (m *MockEmbeddingService) Name() string             { return m.name }

func (m *MockEmbeddingService) HealthCheck(ctx context.Context) error {
	return nil
}

func (m *MockEmbeddingService) Close() error {
	return nil
}

// generateEmbedding generates a deterministic embedding based on text hash
func (m *MockEmbeddingService) generateEmbedding(text string) []float32 {
	h := fnv.New32a()
	h.Write([]byte(text))
	seed := h.Sum32()

	embedding := make([]float32, m.dimensions)
	for i := range embedding {
		seed = seed*1103515245 + 12345
		embedding[i] = float32(seed%1000) / 1000.0
	}
	return embedding
}

// Helper methods for testing

// SetFailNext makes the next Embed or EmbedQuery call return err
func (m *MockEmbeddingService) SetFailNext(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext = err
}

func (m *MockEmbeddingService) SetDimensions(dim int) {
	m.dimensions = dim
}

// Calls returns how many embedding requests were made
func (m *MockEmbeddingService) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
