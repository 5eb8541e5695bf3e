package ai

import (
	"fmt"
	"time"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Ensure Factory implements AIServiceFactory
var _ driven.AIServiceFactory = (*Factory)(nil)

// FactoryConfig tunes the services a Factory creates
type FactoryConfig struct {
	// EmbeddingRPS and EmbeddingBurst throttle hosted embedding calls
	EmbeddingRPS   float64
	EmbeddingBurst int

	// GenerationTimeout bounds a single completion request (0 = provider default)
	GenerationTimeout time.Duration

	// EmbeddingTimeout bounds a single embedding request (0 = provider default)
	EmbeddingTimeout time.Duration
}

// Factory creates AI services based on configuration.
// Every embedding service it creates shares one rate limiter.
type Factory struct {
	cfg     FactoryConfig
	limiter *RateLimiter
}

// NewFactory creates a new AI service factory
func NewFactory(cfg FactoryConfig) *Factory {
	return &Factory{
		cfg:     cfg,
		limiter: NewRateLimiter(cfg.EmbeddingRPS, cfg.EmbeddingBurst),
	}
}

// CreateEmbeddingService creates the embedding half of a provider
func (f *Factory) CreateEmbeddingService(settings domain.ProviderSettings) (driven.EmbeddingService, error) {
	switch settings.Provider {
	case domain.AIProviderOpenAI:
		svc, err := NewOpenAIEmbedding(OpenAIConfig{
			APIKey:  settings.APIKey,
			Model:   settings.EmbeddingModel,
			BaseURL: settings.BaseURL,
			Timeout: f.cfg.EmbeddingTimeout,
			Limiter: f.limiter,
		})
		if err != nil {
			return nil, err
		}
		return svc, nil
	case domain.AIProviderOllama:
		return NewOllamaEmbedding(OllamaConfig{BaseURL: settings.BaseURL, Model: settings.Model}), nil
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownProvider, settings.Provider)
	}
}

// CreateLLMService creates the generation half of a provider
func (f *Factory) CreateLLMService(settings domain.ProviderSettings) (driven.LLMService, error) {
	switch settings.Provider {
	case domain.AIProviderOpenAI:
		svc, err := NewOpenAILLM(OpenAIConfig{
			APIKey:  settings.APIKey,
			Model:   settings.Model,
			BaseURL: settings.BaseURL,
			Timeout: f.cfg.GenerationTimeout,
		})
		if err != nil {
			return nil, err
		}
		return svc, nil
	case domain.AIProviderOllama:
		return NewOllamaLLM(OllamaConfig{BaseURL: settings.BaseURL, Model: settings.Model, Timeout: f.cfg.GenerationTimeout}), nil
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownProvider, settings.Provider)
	}
}
