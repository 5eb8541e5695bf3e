package domain

import "sync"

// RuntimeConfig tracks which backends and services are live.
// Backends are fixed at startup; AI availability changes as services are set.
// Thread-safe for concurrent access.
type RuntimeConfig struct {
	mu sync.RWMutex

	// Static (set at startup, read-only)
	VectorBackend   string // "chroma", "postgres" or "memory"
	DocumentBackend string // "postgres", "sqlite" or "memory"
	LockBackend     string // "redis", "postgres" or "none"

	// Dynamic capability flags
	embeddingAvailable bool
	llmAvailable       bool
	selection          ProviderSelection
}

// NewRuntimeConfig creates a new RuntimeConfig with initial values
func NewRuntimeConfig(vectorBackend, documentBackend, lockBackend string) *RuntimeConfig {
	return &RuntimeConfig{
		VectorBackend:   vectorBackend,
		DocumentBackend: documentBackend,
		LockBackend:     lockBackend,
	}
}

// EmbeddingAvailable returns whether an embedding service is set
func (c *RuntimeConfig) EmbeddingAvailable() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.embeddingAvailable
}

// LLMAvailable returns whether a generation service is set
func (c *RuntimeConfig) LLMAvailable() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.llmAvailable
}

// SetEmbeddingAvailable updates the embedding availability flag
func (c *RuntimeConfig) SetEmbeddingAvailable(available bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.embeddingAvailable = available
}

// SetLLMAvailable updates the LLM availability flag
func (c *RuntimeConfig) SetLLMAvailable(available bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.llmAvailable = available
}

// Selection returns the provider selection made at startup
func (c *RuntimeConfig) Selection() ProviderSelection {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.selection
}

// SetSelection records the active provider selection
func (c *RuntimeConfig) SetSelection(sel ProviderSelection) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selection = sel
}

// CanAnswer returns true if both halves of the RAG pipeline are available
func (c *RuntimeConfig) CanAnswer() bool {
	return c.EmbeddingAvailable() && c.LLMAvailable()
}
