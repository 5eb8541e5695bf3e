package services

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven/mocks"
	"github.com/custodia-labs/sercha-rag/internal/extractors"
	"github.com/custodia-labs/sercha-rag/internal/postprocessors"
	"github.com/custodia-labs/sercha-rag/internal/runtime"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeRunner answers external tool invocations from a table keyed by tool name
type fakeRunner struct {
	outputs map[string]string
}

func (r *fakeRunner) Run(_ context.Context, name string, _ ...string) ([]byte, error) {
	if out, ok := r.outputs[name]; ok {
		return []byte(out), nil
	}
	return nil, os.ErrNotExist
}

type ingestionHarness struct {
	store    *mocks.MockVectorStore
	docs     *mocks.MockDocumentStore
	lock     *mocks.MockDistributedLock
	embed    *mocks.MockEmbeddingService
	runner   *fakeRunner
	services *runtime.Services
	svc      *IngestionService
}

func newIngestionHarness(t *testing.T) *ingestionHarness {
	t.Helper()

	h := &ingestionHarness{
		store:  mocks.NewMockVectorStore(),
		docs:   mocks.NewMockDocumentStore(),
		lock:   mocks.NewMockDistributedLock(),
		embed:  mocks.NewMockEmbeddingService(),
		runner: &fakeRunner{outputs: map[string]string{}},
	}
	h.services = runtime.NewServices(domain.NewRuntimeConfig("memory", "memory", "none"))
	h.services.SetEmbeddingService(h.embed)

	registry := extractors.NewRegistry(discardLogger())
	registry.Register(extractors.NewPlaintextExtractor())
	registry.Register(extractors.NewPDFExtractor())
	registry.Register(extractors.NewDOCXExtractor())
	registry.Register(extractors.NewImageExtractor(h.runner))
	registry.Register(extractors.NewLinkExtractor(extractors.LinkConfig{}))

	h.svc = NewIngestionService(IngestionServiceConfig{
		Extractors:  registry,
		Pipeline:    testPipeline(),
		VectorStore: h.store,
		Services:    h.services,
		Documents:   h.docs,
		Lock:        h.lock,
		Logger:      discardLogger(),
	})
	return h
}

func testPipeline() *postprocessors.Pipeline {
	p := postprocessors.NewPipeline()
	p.Add(postprocessors.NewChunker(postprocessors.ChunkConfig{
		ChunkSize:          60,
		ChunkOverlap:       10,
		PreserveSentences:  true,
		PreserveParagraphs: true,
	}))
	return p
}

func writeTestFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// longText returns n distinct sentences
func longText(n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		b.WriteString("Sentence number ")
		b.WriteString(strings.Repeat("x", i%5+1))
		b.WriteString(" talks about the project. ")
	}
	return b.String()
}
