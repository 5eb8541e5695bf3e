package ai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

var (
	_ driven.LLMService       = (*OllamaLLM)(nil)
	_ driven.EmbeddingService = (*OllamaEmbedding)(nil)
)

const (
	defaultOllamaBaseURL = "http://localhost:11434"
	defaultOllamaModel   = "llama3"
)

// OllamaConfig holds connection details for a local Ollama server
type OllamaConfig struct {
	BaseURL string
	Model   string
	Timeout time.Duration
}

func (c OllamaConfig) withDefaults() OllamaConfig {
	if c.BaseURL == "" {
		c.BaseURL = defaultOllamaBaseURL
	}
	if c.Model == "" {
		c.Model = defaultOllamaModel
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	return c
}

// OllamaLLM generates answers with a locally served model
type OllamaLLM struct {
	model   string
	baseURL string
	api     *apiClient
}

// NewOllamaLLM creates a new Ollama generation service
func NewOllamaLLM(cfg OllamaConfig) *OllamaLLM {
	cfg = cfg.withDefaults()
	if cfg.Timeout <= 0 {
		// Local models can be slow on first load
		cfg.Timeout = 5 * time.Minute
	}
	return &OllamaLLM{
		model:   cfg.Model,
		baseURL: cfg.BaseURL,
		api:     newAPIClient(cfg.Timeout, nil, nil),
	}
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
}

// Generate calls /api/generate without streaming.
// A non-empty context is folded into the prompt.
func (l *OllamaLLM) Generate(ctx context.Context, prompt, contextText string) (string, error) {
	full := prompt
	if contextText != "" {
		full = fmt.Sprintf("Context: %s\n\nQuestion: %s", contextText, prompt)
	}

	var resp generateResponse
	req := generateRequest{Model: l.model, Prompt: full, Stream: false}
	if err := l.api.do(ctx, http.MethodPost, l.baseURL+"/api/generate", req, &resp); err != nil {
		return "", err
	}

	if strings.TrimSpace(resp.Response) == "" {
		return "", fmt.Errorf("%w: empty answer", domain.ErrProviderResponse)
	}
	return resp.Response, nil
}

func (l *OllamaLLM) Model() string { return l.model }
func (l *OllamaLLM) Name() string  { return string(domain.AIProviderOllama) }

// Ping lists local models to verify the server is up
func (l *OllamaLLM) Ping(ctx context.Context) error {
	return l.api.do(ctx, http.MethodGet, l.baseURL+"/api/tags", nil, nil)
}

func (l *OllamaLLM) Close() error {
	l.api.http.CloseIdleConnections()
	return nil
}

// OllamaEmbedding is the embedding half of the Ollama provider.
// This deployment serves generation only, so every embedding call fails.
type OllamaEmbedding struct {
	model string
}

// NewOllamaEmbedding creates the non-embedding Ollama service
func NewOllamaEmbedding(cfg OllamaConfig) *OllamaEmbedding {
	return &OllamaEmbedding{model: cfg.withDefaults().Model}
}

func (e *OllamaEmbedding) unsupported() error {
	return fmt.Errorf("%w: ollama does not provide embeddings", domain.ErrCapabilityUnsupported)
}

func (e *OllamaEmbedding) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, e.unsupported()
}

func (e *OllamaEmbedding) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	return nil, e.unsupported()
}

func (e *OllamaEmbedding) SupportsEmbeddings() bool { return false }
func (e *OllamaEmbedding) Dimensions() int          { return 0 }
func (e *OllamaEmbedding) Model() string            { return e.model }
func (e *OllamaEmbedding) Name() string             { return string(domain.AIProviderOllama) }

func (e *OllamaEmbedding) HealthCheck(ctx context.Context) error {
	return e.unsupported()
}

func (e *OllamaEmbedding) Close() error {
	return nil
}
