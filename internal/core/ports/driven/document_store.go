package driven

import (
	"context"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// DocumentStore is the registry of ingested documents.
// Chunks live in the VectorStore; this only tracks what was ingested and how.
type DocumentStore interface {
	// Save creates or replaces the record for doc.Name
	Save(ctx context.Context, doc *domain.Document) error

	// Get retrieves a document by name
	Get(ctx context.Context, name string) (*domain.Document, error)

	// List returns documents ordered by most recent ingestion
	List(ctx context.Context, limit, offset int) ([]*domain.Document, error)

	// Delete removes a document record
	Delete(ctx context.Context, name string) error

	// Count returns total document count
	Count(ctx context.Context) (int, error)
}
