package driven

import (
	"context"
)

// EmbeddingService generates text embeddings.
// Providers that cannot embed return domain.ErrCapabilityUnsupported from
// Embed and EmbedQuery and false from SupportsEmbeddings.
type EmbeddingService interface {
	// Embed generates embeddings for multiple texts, in input order
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery generates an embedding for a search query
	EmbedQuery(ctx context.Context, query string) ([]float32, error)

	// SupportsEmbeddings reports whether this provider can embed at all
	SupportsEmbeddings() bool

	// Dimensions returns the embedding dimension size
	Dimensions() int

	// Model returns the model name being used
	Model() string

	// Name returns the provider identifier (e.g. "openai")
	Name() string

	// HealthCheck verifies the embedding service is available
	HealthCheck(ctx context.Context) error

	// Close releases resources held by the embedding service
	Close() error
}
