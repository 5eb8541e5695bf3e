package extractors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.ExtractorRegistry = (*Registry)(nil)

// OCRProbe reports whether the OCR engine can be used right now
type OCRProbe interface {
	Available(ctx context.Context) bool
}

// Registry implements ExtractorRegistry with one extractor per document type.
// Strategy failures are logged and folded into the result, never returned.
type Registry struct {
	mu         sync.RWMutex
	extractors map[domain.DocumentType]driven.Extractor
	ocr        OCRProbe
	logger     *slog.Logger
}

// NewRegistry creates an empty extractor registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		extractors: make(map[domain.DocumentType]driven.Extractor),
		logger:     logger,
	}
}

// Register adds or replaces the extractor for its document type.
// An extractor that can probe OCR becomes the registry's OCR probe.
func (r *Registry) Register(extractor driven.Extractor) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.extractors[extractor.Type()] = extractor
	if probe, ok := extractor.(OCRProbe); ok {
		r.ocr = probe
	}
}

// Types returns the registered document types, sorted.
func (r *Registry) Types() []domain.DocumentType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]domain.DocumentType, 0, len(r.extractors))
	for t := range r.extractors {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// Extract dispatches ref to the extractor for its type.
// Unsupported types and context cancellation are the only errors returned.
func (r *Registry) Extract(ctx context.Context, ref string) (*driven.ExtractResult, error) {
	docType, err := domain.GetDocumentType(ref)
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	extractor, ok := r.extractors[docType]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: no extractor registered for %s", domain.ErrUnsupportedType, docType)
	}

	start := time.Now()
	text, err := extractor.Extract(ctx, ref)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		r.logger.Warn("text extraction failed",
			"ref", ref,
			"document_type", docType,
			"error", err,
		)
		if !errors.Is(err, domain.ErrExtractionFailed) {
			err = fmt.Errorf("%w: %v", domain.ErrExtractionFailed, err)
		}
		return &driven.ExtractResult{Type: docType, Failure: err}, nil
	}

	text = normaliseText(text)
	r.logger.Debug("text extracted",
		"ref", ref,
		"document_type", docType,
		"characters", len([]rune(text)),
		"duration", time.Since(start),
	)

	return &driven.ExtractResult{Type: docType, Text: text}, nil
}

// OCRAvailable probes the OCR engine. Never cached.
func (r *Registry) OCRAvailable(ctx context.Context) bool {
	r.mu.RLock()
	probe := r.ocr
	r.mu.RUnlock()

	if probe == nil {
		return false
	}
	return probe.Available(ctx)
}

// Config configures the built-in extractors
type Config struct {
	// Runner executes external tools (tesseract, antiword, ...)
	Runner driven.CommandRunner

	// ToolTimeout bounds each external tool invocation
	ToolTimeout time.Duration

	// HTTPTimeout bounds web page fetches
	HTTPTimeout time.Duration

	// MaxPageBytes caps the size of a fetched web page
	MaxPageBytes int64

	Logger *slog.Logger
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		ToolTimeout:  2 * time.Minute,
		HTTPTimeout:  30 * time.Second,
		MaxPageBytes: 10 << 20,
	}
}

// DefaultRegistry creates a registry with every built-in extractor registered.
func DefaultRegistry(cfg Config) *Registry {
	runner := cfg.Runner
	if runner == nil {
		runner = NewExecRunner(cfg.ToolTimeout)
	}

	r := NewRegistry(cfg.Logger)
	r.Register(NewPlaintextExtractor())
	r.Register(NewPDFExtractor())
	r.Register(NewDOCXExtractor())
	r.Register(NewLegacyDocExtractor(runner))
	r.Register(NewImageExtractor(runner))
	r.Register(NewLinkExtractor(LinkConfig{Timeout: cfg.HTTPTimeout, MaxBytes: cfg.MaxPageBytes}))
	return r
}

// normaliseText unifies line endings and strips bytes that break downstream JSON
func normaliseText(content string) string {
	content = strings.ToValidUTF8(content, "�")
	content = strings.ReplaceAll(content, "\x00", "")
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.ReplaceAll(content, "\r", "\n")
	return strings.TrimSpace(content)
}
