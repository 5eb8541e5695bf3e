package runtime

import (
	"context"
	"errors"
	"testing"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven/mocks"
)

// closingEmbedding records Close and can fail health checks
type closingEmbedding struct {
	*mocks.MockEmbeddingService
	healthCheckErr error
	closed         bool
}

func (m *closingEmbedding) HealthCheck(ctx context.Context) error { return m.healthCheckErr }
func (m *closingEmbedding) Close() error                          { m.closed = true; return nil }

// closingLLM records Close and can fail pings
type closingLLM struct {
	*mocks.MockLLMService
	pingErr error
	closed  bool
}

func (m *closingLLM) Ping(ctx context.Context) error { return m.pingErr }
func (m *closingLLM) Close() error                   { m.closed = true; return nil }

func newServices() *Services {
	return NewServices(domain.NewRuntimeConfig("memory", "memory", "none"))
}

func TestServices_SetEmbeddingService(t *testing.T) {
	s := newServices()
	first := &closingEmbedding{MockEmbeddingService: mocks.NewMockEmbeddingService()}

	s.SetEmbeddingService(first)
	if s.EmbeddingService() != first {
		t.Error("expected embedding service to be set")
	}
	if !s.Config().EmbeddingAvailable() {
		t.Error("expected embedding to be available")
	}

	second := &closingEmbedding{MockEmbeddingService: mocks.NewMockEmbeddingService()}
	s.SetEmbeddingService(second)
	if !first.closed {
		t.Error("expected replaced service to be closed")
	}
}

func TestServices_UnsupportedEmbeddingIsNotAvailable(t *testing.T) {
	s := newServices()
	s.SetEmbeddingService(mocks.NewUnsupportedEmbeddingService("ollama"))

	if s.Config().EmbeddingAvailable() {
		t.Error("a provider that cannot embed must not count as available")
	}
}

func TestServices_LLMService(t *testing.T) {
	s := newServices()

	if _, err := s.LLMService(""); !errors.Is(err, domain.ErrUnknownProvider) {
		t.Errorf("expected ErrUnknownProvider with no default, got %v", err)
	}

	ollama := mocks.NewMockLLMService("ollama")
	s.SetLLMService(domain.AIProviderOllama, ollama)

	got, err := s.LLMService("")
	if err != nil || got != ollama {
		t.Errorf("expected default ollama service, got %v, %v", got, err)
	}
	if !s.Config().LLMAvailable() {
		t.Error("expected LLM to be available")
	}

	if _, err := s.LLMService(domain.AIProviderOpenAI); !errors.Is(err, domain.ErrProviderUnavailable) {
		t.Errorf("expected ErrProviderUnavailable for unconfigured provider, got %v", err)
	}
	if _, err := s.LLMService("anthropic"); !errors.Is(err, domain.ErrUnknownProvider) {
		t.Errorf("expected ErrUnknownProvider, got %v", err)
	}
}

func TestServices_DefaultGeneration(t *testing.T) {
	s := newServices()
	s.SetLLMService(domain.AIProviderOllama, mocks.NewMockLLMService("ollama"))
	openai := mocks.NewMockLLMService("openai")
	s.SetLLMService(domain.AIProviderOpenAI, openai)

	if s.DefaultGeneration() != domain.AIProviderOllama {
		t.Errorf("expected first provider as default, got %s", s.DefaultGeneration())
	}

	s.SetDefaultGeneration(domain.AIProviderOpenAI)
	got, _ := s.LLMService("")
	if got != openai {
		t.Error("expected openai after changing the default")
	}

	providers := s.GenerationProviders()
	if len(providers) != 2 || providers[0] != domain.AIProviderOllama {
		t.Errorf("unexpected providers %v", providers)
	}
}

func TestServices_RemoveLLMService(t *testing.T) {
	s := newServices()
	old := &closingLLM{MockLLMService: mocks.NewMockLLMService("ollama")}
	s.SetLLMService(domain.AIProviderOllama, old)
	s.SetLLMService(domain.AIProviderOllama, nil)

	if !old.closed {
		t.Error("expected removed service to be closed")
	}
	if s.Config().LLMAvailable() {
		t.Error("expected LLM to be unavailable")
	}
}

func TestServices_Close(t *testing.T) {
	s := newServices()
	emb := &closingEmbedding{MockEmbeddingService: mocks.NewMockEmbeddingService()}
	llm := &closingLLM{MockLLMService: mocks.NewMockLLMService("ollama")}
	s.SetEmbeddingService(emb)
	s.SetLLMService(domain.AIProviderOllama, llm)

	if err := s.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !emb.closed || !llm.closed {
		t.Error("expected all services to be closed")
	}
	if s.Config().CanAnswer() {
		t.Error("expected CanAnswer false after close")
	}
}

func TestServices_ValidateAndSet(t *testing.T) {
	s := newServices()
	ctx := context.Background()

	badEmb := &closingEmbedding{MockEmbeddingService: mocks.NewMockEmbeddingService(), healthCheckErr: errors.New("down")}
	if err := s.ValidateAndSetEmbedding(ctx, badEmb); err == nil {
		t.Error("expected health check error")
	}
	if !badEmb.closed || s.EmbeddingService() != nil {
		t.Error("expected failing service to be closed and not set")
	}

	badLLM := &closingLLM{MockLLMService: mocks.NewMockLLMService("ollama"), pingErr: errors.New("down")}
	if err := s.ValidateAndSetLLM(ctx, domain.AIProviderOllama, badLLM); err == nil {
		t.Error("expected ping error")
	}

	good := &closingLLM{MockLLMService: mocks.NewMockLLMService("ollama")}
	if err := s.ValidateAndSetLLM(ctx, domain.AIProviderOllama, good); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if !s.Config().LLMAvailable() {
		t.Error("expected LLM to be available")
	}
}
