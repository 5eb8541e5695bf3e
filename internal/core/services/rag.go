package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-rag/internal/runtime"
)

// Ensure RAGService implements ChatService
var _ driving.ChatService = (*RAGService)(nil)

// DefaultGenerationTimeout bounds a single generation call
const DefaultGenerationTimeout = 2 * time.Minute

// RAGService answers questions from retrieved chunks.
// AI services are looked up per request through runtime.Services.
type RAGService struct {
	store             driven.VectorStore
	services          *runtime.Services
	topK              int
	generationTimeout time.Duration
	logger            *slog.Logger
}

// RAGServiceConfig holds dependencies for RAGService.
type RAGServiceConfig struct {
	VectorStore       driven.VectorStore
	Services          *runtime.Services
	TopK              int           // Default: domain.DefaultTopK
	GenerationTimeout time.Duration // Default: DefaultGenerationTimeout
	Logger            *slog.Logger
}

// NewRAGService creates a new RAG service.
func NewRAGService(cfg RAGServiceConfig) *RAGService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	topK := cfg.TopK
	if topK <= 0 {
		topK = domain.DefaultTopK
	}
	timeout := cfg.GenerationTimeout
	if timeout <= 0 {
		timeout = DefaultGenerationTimeout
	}
	return &RAGService{
		store:             cfg.VectorStore,
		services:          cfg.Services,
		topK:              topK,
		generationTimeout: timeout,
		logger:            logger,
	}
}

// Answer retrieves context for query and generates an answer with the
// hinted (or default) generation provider.
func (s *RAGService) Answer(ctx context.Context, query string, opts domain.ChatOptions) (string, error) {
	llm, err := s.generator(opts.Provider)
	if err != nil {
		return "", err
	}

	retrieved, err := s.Retrieve(ctx, query, opts)
	if err != nil {
		return "", err
	}
	if retrieved == nil {
		retrieved = &domain.RetrievalResult{}
	}

	prompt := BuildPrompt(query, retrieved.Context())

	genCtx, cancel := context.WithTimeout(ctx, s.generationTimeout)
	defer cancel()

	start := time.Now()
	answer, err := llm.Generate(genCtx, prompt, "")
	if err != nil {
		if ctx.Err() == nil && errors.Is(genCtx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: %s generation timed out after %s", domain.ErrProviderUnavailable, llm.Name(), s.generationTimeout)
		}
		return "", err
	}

	s.logger.Debug("answer generated",
		"provider", llm.Name(),
		"model", llm.Model(),
		"context_chunks", len(retrieved.Chunks),
		"duration", time.Since(start),
	)
	return answer, nil
}

// Retrieve embeds the query and returns the nearest chunks.
// A source hint filters by document; if the store cannot filter, the
// unfiltered result is returned instead.
func (s *RAGService) Retrieve(ctx context.Context, query string, opts domain.ChatOptions) (*domain.RetrievalResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: query is empty", domain.ErrInvalidInput)
	}

	embedder := s.services.EmbeddingService()
	if embedder == nil {
		return nil, fmt.Errorf("%w: no embedding provider configured", domain.ErrProviderUnavailable)
	}
	vector, err := embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	q := domain.VectorQuery{
		Texts:      []string{query},
		Embeddings: [][]float32{vector},
		NResults:   s.topK,
	}

	if opts.Source == "" {
		return s.store.Query(ctx, q)
	}

	if !s.store.SupportsFilter() {
		s.logger.Info("vector store cannot filter, retrieving unfiltered", "source", opts.Source)
		return s.store.Query(ctx, q)
	}

	q.Filter = map[string]string{domain.MetaSource: opts.Source}
	result, err := s.store.Query(ctx, q)
	if errors.Is(err, domain.ErrFilterUnsupported) {
		s.logger.Info("source filter rejected, retrieving unfiltered", "source", opts.Source, "error", err)
		q.Filter = nil
		return s.store.Query(ctx, q)
	}
	return result, err
}

// generator resolves the hinted provider, or the default when hint is empty
func (s *RAGService) generator(hint string) (driven.LLMService, error) {
	var provider domain.AIProvider
	if strings.TrimSpace(hint) != "" {
		p, err := domain.ParseAIProvider(hint)
		if err != nil {
			return nil, err
		}
		provider = p
	}
	return s.services.LLMService(provider)
}

// BuildPrompt renders the generation prompt for query.
// An empty context produces the no-context prompt.
func BuildPrompt(query, contextText string) string {
	if contextText == "" {
		return "No specific context found. Answer the question: " + query
	}
	return fmt.Sprintf("Based on the following context, answer the question: %s\n\nQuestion: %s", contextText, query)
}
