package driven

import (
	"context"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// Extractor turns one document format into plain text.
// Failures are returned as errors; the registry isolates them.
type Extractor interface {
	// Extract reads the document at ref (a file path, or a URL for links)
	Extract(ctx context.Context, ref string) (string, error)

	// Type returns the document type this extractor handles
	Type() domain.DocumentType
}

// ExtractResult is the outcome of a registry extraction.
// Failure holds the recovered strategy error when Text is empty because extraction failed.
type ExtractResult struct {
	Type    domain.DocumentType
	Text    string
	Failure error
}

// ExtractorRegistry dispatches a document to the extractor for its type
type ExtractorRegistry interface {
	// Extract determines the type of ref and runs its extractor.
	// Returns domain.ErrUnsupportedType for unknown extensions; strategy
	// failures never surface as errors, only through ExtractResult.Failure.
	Extract(ctx context.Context, ref string) (*ExtractResult, error)

	// Register adds or replaces the extractor for its type
	Register(extractor Extractor)

	// Types returns the registered document types, sorted
	Types() []domain.DocumentType

	// OCRAvailable probes the OCR engine. Evaluated on every call.
	OCRAvailable(ctx context.Context) bool
}

// CommandRunner executes an external tool and returns its standard output
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}
