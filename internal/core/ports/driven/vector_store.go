package driven

import (
	"context"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// EmbeddingFunction is the synchronous callable a VectorStore uses to embed
// stored chunks and text queries. It is bound once, at store construction.
type EmbeddingFunction interface {
	// Embed returns one vector per text, in input order
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Fingerprint identifies the embedding space of the produced vectors
	Fingerprint() domain.EmbeddingFingerprint
}

// VectorStore is a persistent collection of chunks with nearest-neighbour search
type VectorStore interface {
	// EnsureCollection gets or creates the collection and checks that it was
	// built with the bound embedding function. A non-empty collection with a
	// different fingerprint fails with domain.ErrEmbeddingMismatch.
	EnsureCollection(ctx context.Context) error

	// Upsert embeds and stores chunks, overwriting existing ids
	Upsert(ctx context.Context, chunks []domain.Chunk) error

	// Query returns up to q.NResults nearest chunks, most similar first
	Query(ctx context.Context, q domain.VectorQuery) (*domain.RetrievalResult, error)

	// DeleteStale removes chunks whose source is source and whose id is not in keepIDs.
	// Returns the number of chunks removed.
	DeleteStale(ctx context.Context, source string, keepIDs []string) (int, error)

	// Count returns the number of stored chunks
	Count(ctx context.Context) (int, error)

	// SupportsFilter reports whether Query honours metadata filters
	SupportsFilter() bool

	// HealthCheck verifies the store is reachable
	HealthCheck(ctx context.Context) error
}
