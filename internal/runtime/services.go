package runtime

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Services holds the live AI services.
// One embedding service serves the whole process; generation services are
// kept per provider so a request can pick one by hint.
// Thread-safe for concurrent access.
type Services struct {
	mu sync.RWMutex

	// Config tracks capability flags
	config *domain.RuntimeConfig

	embeddingService  driven.EmbeddingService
	llmServices       map[domain.AIProvider]driven.LLMService
	defaultGeneration domain.AIProvider
}

// NewServices creates a new Services registry
func NewServices(config *domain.RuntimeConfig) *Services {
	return &Services{
		config:      config,
		llmServices: make(map[domain.AIProvider]driven.LLMService),
	}
}

// Config returns the runtime configuration
func (s *Services) Config() *domain.RuntimeConfig {
	return s.config
}

// EmbeddingService returns the current embedding service (may be nil)
func (s *Services) EmbeddingService() driven.EmbeddingService {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.embeddingService
}

// SetEmbeddingService replaces the embedding service, closing the old one.
// A service that cannot embed does not count as available.
func (s *Services) SetEmbeddingService(svc driven.EmbeddingService) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.embeddingService != nil && s.embeddingService != svc {
		_ = s.embeddingService.Close()
	}

	s.embeddingService = svc
	s.config.SetEmbeddingAvailable(svc != nil && svc.SupportsEmbeddings())
}

// LLMService returns the generation service for provider.
// An empty provider selects the default.
func (s *Services) LLMService(provider domain.AIProvider) (driven.LLMService, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if provider == "" {
		provider = s.defaultGeneration
	}
	if !provider.IsValid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownProvider, provider)
	}
	svc, ok := s.llmServices[provider]
	if !ok {
		return nil, fmt.Errorf("%w: %s is not configured", domain.ErrProviderUnavailable, provider)
	}
	return svc, nil
}

// SetLLMService registers the generation service of a provider, closing any
// previous one. The first registered provider becomes the default.
func (s *Services) SetLLMService(provider domain.AIProvider, svc driven.LLMService) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.llmServices[provider]; ok && old != svc {
		_ = old.Close()
	}

	if svc == nil {
		delete(s.llmServices, provider)
		if s.defaultGeneration == provider {
			s.defaultGeneration = ""
		}
	} else {
		s.llmServices[provider] = svc
		if s.defaultGeneration == "" {
			s.defaultGeneration = provider
		}
	}
	s.updateLLMAvailable()
}

// SetDefaultGeneration chooses the provider used when a request gives no hint
func (s *Services) SetDefaultGeneration(provider domain.AIProvider) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.defaultGeneration = provider
	s.updateLLMAvailable()
}

// DefaultGeneration returns the provider used when a request gives no hint
func (s *Services) DefaultGeneration() domain.AIProvider {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.defaultGeneration
}

// GenerationProviders lists the registered generation providers, sorted
func (s *Services) GenerationProviders() []domain.AIProvider {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.AIProvider, 0, len(s.llmServices))
	for p := range s.llmServices {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// updateLLMAvailable must be called with mu held
func (s *Services) updateLLMAvailable() {
	_, ok := s.llmServices[s.defaultGeneration]
	s.config.SetLLMAvailable(ok)
}

// Close shuts down all services
func (s *Services) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.embeddingService != nil {
		_ = s.embeddingService.Close()
		s.embeddingService = nil
	}
	for p, svc := range s.llmServices {
		_ = svc.Close()
		delete(s.llmServices, p)
	}

	s.config.SetEmbeddingAvailable(false)
	s.config.SetLLMAvailable(false)

	return nil
}

// ValidateAndSetEmbedding checks connectivity before setting the embedding service
func (s *Services) ValidateAndSetEmbedding(ctx context.Context, svc driven.EmbeddingService) error {
	if svc == nil {
		s.SetEmbeddingService(nil)
		return nil
	}

	if err := svc.HealthCheck(ctx); err != nil {
		_ = svc.Close()
		return err
	}

	s.SetEmbeddingService(svc)
	return nil
}

// ValidateAndSetLLM checks connectivity before registering a generation service
func (s *Services) ValidateAndSetLLM(ctx context.Context, provider domain.AIProvider, svc driven.LLMService) error {
	if svc == nil {
		s.SetLLMService(provider, nil)
		return nil
	}

	if err := svc.Ping(ctx); err != nil {
		_ = svc.Close()
		return err
	}

	s.SetLLMService(provider, svc)
	return nil
}
