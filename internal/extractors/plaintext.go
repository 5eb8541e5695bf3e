package extractors

import (
	"context"
	"fmt"
	"os"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.Extractor = (*PlaintextExtractor)(nil)

// PlaintextExtractor reads .txt files as UTF-8.
// Invalid byte sequences are replaced rather than rejected.
type PlaintextExtractor struct{}

// NewPlaintextExtractor creates a plain text extractor
func NewPlaintextExtractor() *PlaintextExtractor {
	return &PlaintextExtractor{}
}

func (e *PlaintextExtractor) Type() domain.DocumentType {
	return domain.DocumentTypeText
}

func (e *PlaintextExtractor) Extract(_ context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read text file: %w", err)
	}
	return string(data), nil
}
