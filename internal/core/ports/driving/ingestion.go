package driving

import (
	"context"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// IngestionService turns documents into stored chunks.
// Per-document failures are reported through the result, not as errors.
type IngestionService interface {
	// IngestDocument ingests the file at path under name
	IngestDocument(ctx context.Context, path, name string) *domain.IngestionResult

	// IngestURL fetches and ingests a web page, named by its URL
	IngestURL(ctx context.Context, url string) *domain.IngestionResult

	// IngestDirectory ingests every supported file directly under dir.
	// Returns an error only if dir cannot be listed or ctx is cancelled;
	// the (partial) batch is returned either way.
	IngestDirectory(ctx context.Context, dir string) (*domain.BatchResult, error)

	// SupportedTypes describes the accepted formats, probing OCR live
	SupportedTypes(ctx context.Context) *domain.SupportedTypes
}
