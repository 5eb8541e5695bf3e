package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/runtime"
)

// substituteEmbedding is the hosted provider used when the requested
// embedding provider cannot embed
const substituteEmbedding = domain.AIProviderOpenAI

// ProviderSelector resolves provider identifiers into live services.
type ProviderSelector struct {
	factory  driven.AIServiceFactory
	settings domain.AISettings
	services *runtime.Services
	verify   bool
	logger   *slog.Logger
}

// ProviderSelectorConfig holds dependencies for ProviderSelector.
type ProviderSelectorConfig struct {
	Factory  driven.AIServiceFactory
	Settings domain.AISettings
	Services *runtime.Services

	// Verify pings every service before installing it
	Verify bool
	Logger *slog.Logger
}

// NewProviderSelector creates a new provider selector.
func NewProviderSelector(cfg ProviderSelectorConfig) *ProviderSelector {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &ProviderSelector{
		factory:  cfg.Factory,
		settings: cfg.Settings,
		services: cfg.Services,
		verify:   cfg.Verify,
		logger:   logger,
	}
}

// Select installs the generation and embedding services for the given
// identifiers. If the embedding provider cannot embed, the hosted openai
// provider is used instead and the substitution is recorded.
// Every other configured provider is registered for per-request hints.
func (s *ProviderSelector) Select(ctx context.Context, generationID, embeddingID string) (domain.ProviderSelection, error) {
	var sel domain.ProviderSelection

	generation, err := domain.ParseAIProvider(generationID)
	if err != nil {
		return sel, fmt.Errorf("generation provider: %w", err)
	}
	requested, err := domain.ParseAIProvider(embeddingID)
	if err != nil {
		return sel, fmt.Errorf("embedding provider: %w", err)
	}
	sel.Generation = generation
	sel.Requested = requested

	llm, err := s.factory.CreateLLMService(s.settingsFor(generation))
	if err != nil {
		return sel, fmt.Errorf("create %s generation service: %w", generation, err)
	}
	if err := s.installLLM(ctx, generation, llm); err != nil {
		return sel, fmt.Errorf("%s generation service: %w", generation, err)
	}
	s.services.SetDefaultGeneration(generation)

	embedding, err := s.factory.CreateEmbeddingService(s.settingsFor(requested))
	if err != nil {
		return sel, fmt.Errorf("create %s embedding service: %w", requested, err)
	}
	sel.Embedding = requested

	if !embedding.SupportsEmbeddings() {
		_ = embedding.Close()
		s.logger.Warn("embedding provider substituted",
			"requested", requested,
			"substitute", substituteEmbedding,
		)
		embedding, err = s.factory.CreateEmbeddingService(s.settingsFor(substituteEmbedding))
		if err != nil {
			return sel, fmt.Errorf("create substitute %s embedding service: %w", substituteEmbedding, err)
		}
		sel.Embedding = substituteEmbedding
		sel.Substituted = true
	}

	if err := s.installEmbedding(ctx, embedding); err != nil {
		return sel, fmt.Errorf("%s embedding service: %w", sel.Embedding, err)
	}

	s.registerAlternates(ctx, generation)
	s.services.Config().SetSelection(sel)

	s.logger.Info("providers selected",
		"generation", sel.Generation,
		"embedding", sel.Embedding,
		"embedding_model", embedding.Model(),
		"substituted", sel.Substituted,
	)
	return sel, nil
}

// registerAlternates makes every other configured provider available as a
// generation hint. Failures only cost the hint.
func (s *ProviderSelector) registerAlternates(ctx context.Context, skip domain.AIProvider) {
	for provider, ps := range s.settings.Providers {
		if provider == skip {
			continue
		}
		ps.Provider = provider
		if !ps.IsConfigured() {
			continue
		}
		llm, err := s.factory.CreateLLMService(ps)
		if err == nil {
			err = s.installLLM(ctx, provider, llm)
		}
		if err != nil {
			s.logger.Warn("generation provider not registered", "provider", provider, "error", err)
		}
	}
}

func (s *ProviderSelector) installLLM(ctx context.Context, provider domain.AIProvider, svc driven.LLMService) error {
	if s.verify {
		return s.services.ValidateAndSetLLM(ctx, provider, svc)
	}
	s.services.SetLLMService(provider, svc)
	return nil
}

func (s *ProviderSelector) installEmbedding(ctx context.Context, svc driven.EmbeddingService) error {
	if s.verify {
		return s.services.ValidateAndSetEmbedding(ctx, svc)
	}
	s.services.SetEmbeddingService(svc)
	return nil
}

// settingsFor returns the configured settings of p, or bare defaults
func (s *ProviderSelector) settingsFor(p domain.AIProvider) domain.ProviderSettings {
	ps, err := s.settings.For(p)
	if err != nil {
		return domain.ProviderSettings{Provider: p}
	}
	return ps
}
