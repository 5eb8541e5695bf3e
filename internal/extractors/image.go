package extractors

import (
	"context"
	"fmt"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.Extractor = (*ImageExtractor)(nil)

const tesseractBinary = "tesseract"

// ImageExtractor runs Tesseract OCR on image files
type ImageExtractor struct {
	runner driven.CommandRunner
}

// NewImageExtractor creates an OCR extractor
func NewImageExtractor(runner driven.CommandRunner) *ImageExtractor {
	return &ImageExtractor{runner: runner}
}

func (e *ImageExtractor) Type() domain.DocumentType {
	return domain.DocumentTypeImage
}

func (e *ImageExtractor) Extract(ctx context.Context, path string) (string, error) {
	out, err := e.runner.Run(ctx, tesseractBinary, path, "stdout")
	if err != nil {
		return "", fmt.Errorf("ocr: %w", err)
	}
	return string(out), nil
}

// Available reports whether the tesseract binary can be executed
func (e *ImageExtractor) Available(ctx context.Context) bool {
	_, err := e.runner.Run(ctx, tesseractBinary, "--version")
	return err == nil
}
