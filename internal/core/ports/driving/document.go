package driving

import (
	"context"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// DocumentService provides read-only access to the ingested document registry
type DocumentService interface {
	// Get retrieves a document by name
	Get(ctx context.Context, name string) (*domain.Document, error)

	// List returns ingested documents, most recent first
	List(ctx context.Context, limit, offset int) ([]*domain.Document, error)

	// Count returns the total number of documents
	Count(ctx context.Context) (int, error)
}
