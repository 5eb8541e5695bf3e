package runtime

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/semaphore"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.EmbeddingFunction = (*EmbeddingFunction)(nil)

// EmbeddingSource provides the embedding service to call
type EmbeddingSource interface {
	EmbeddingService() driven.EmbeddingService
}

// scopeKey marks a context as being inside an embedding call
type scopeKey struct{}

// InEmbeddingScope reports whether ctx was derived inside an EmbeddingFunction call
func InEmbeddingScope(ctx context.Context) bool {
	v, _ := ctx.Value(scopeKey{}).(bool)
	return v
}

func withEmbeddingScope(ctx context.Context) context.Context {
	return context.WithValue(ctx, scopeKey{}, true)
}

// EmbeddingFunction is the synchronous callable bound to a vector store.
//
// Outer calls run on the caller's goroutine while holding one of a fixed
// number of in-flight slots. A call made from inside another call (the
// embedding service or store calling back in) would wait forever for a slot
// its own caller holds; such calls are recognised by the context marker and
// run on a separate goroutine without taking a slot, while the caller blocks
// for the result or for ctx to end.
type EmbeddingFunction struct {
	source EmbeddingSource
	slots  *semaphore.Weighted
	logger *slog.Logger
}

// NewEmbeddingFunction creates the bridge. maxInFlight <= 0 means 1.
func NewEmbeddingFunction(source EmbeddingSource, maxInFlight int64, logger *slog.Logger) *EmbeddingFunction {
	if maxInFlight <= 0 {
		maxInFlight = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &EmbeddingFunction{
		source: source,
		slots:  semaphore.NewWeighted(maxInFlight),
		logger: logger,
	}
}

// Embed returns one vector per text, in input order
func (f *EmbeddingFunction) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	svc := f.source.EmbeddingService()
	if svc == nil {
		return nil, fmt.Errorf("%w: no embedding provider configured", domain.ErrProviderUnavailable)
	}

	if InEmbeddingScope(ctx) {
		return f.isolated(ctx, svc, texts)
	}

	if err := f.slots.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer f.slots.Release(1)

	return f.call(withEmbeddingScope(ctx), svc, texts)
}

type embedResult struct {
	vectors [][]float32
	err     error
}

// isolated runs a nested call on its own goroutine
func (f *EmbeddingFunction) isolated(ctx context.Context, svc driven.EmbeddingService, texts []string) ([][]float32, error) {
	f.logger.Debug("nested embedding call isolated", "texts", len(texts))

	done := make(chan embedResult, 1)
	go func() {
		vectors, err := f.call(ctx, svc, texts)
		done <- embedResult{vectors: vectors, err: err}
	}()

	select {
	case res := <-done:
		return res.vectors, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *EmbeddingFunction) call(ctx context.Context, svc driven.EmbeddingService, texts []string) ([][]float32, error) {
	vectors, err := svc.Embed(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%w: %d embeddings for %d texts", domain.ErrProviderResponse, len(vectors), len(texts))
	}
	return vectors, nil
}

// Fingerprint identifies the current embedding service's vector space
func (f *EmbeddingFunction) Fingerprint() domain.EmbeddingFingerprint {
	svc := f.source.EmbeddingService()
	if svc == nil {
		return domain.EmbeddingFingerprint{}
	}
	return domain.EmbeddingFingerprint{
		Provider:   svc.Name(),
		Model:      svc.Model(),
		Dimensions: svc.Dimensions(),
	}
}
