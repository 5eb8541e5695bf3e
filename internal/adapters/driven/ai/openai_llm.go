package ai

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Ensure OpenAILLM implements LLMService
var _ driven.LLMService = (*OpenAILLM)(nil)

const defaultOpenAIChatModel = "gpt-4o-mini"

// OpenAILLM implements LLMService using the chat completions API
type OpenAILLM struct {
	model   string
	baseURL string
	api     *apiClient
}

// NewOpenAILLM creates a new OpenAI generation service
func NewOpenAILLM(cfg OpenAIConfig) (*OpenAILLM, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: OpenAI API key is required", domain.ErrInvalidInput)
	}
	if cfg.Model == "" {
		cfg.Model = defaultOpenAIChatModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultOpenAIBaseURL
	}

	return &OpenAILLM{
		model:   cfg.Model,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		api:     newAPIClient(cfg.Timeout, cfg.Limiter, map[string]string{"Authorization": "Bearer " + cfg.APIKey}),
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Generate sends prompt as a single user message. A non-empty context is
// sent ahead of it as a system message.
func (l *OpenAILLM) Generate(ctx context.Context, prompt, contextText string) (string, error) {
	messages := make([]chatMessage, 0, 2)
	if contextText != "" {
		messages = append(messages, chatMessage{Role: "system", Content: "Context: " + contextText})
	}
	messages = append(messages, chatMessage{Role: "user", Content: prompt})

	var resp chatResponse
	if err := l.api.do(ctx, http.MethodPost, l.baseURL+"/chat/completions", chatRequest{Model: l.model, Messages: messages}, &resp); err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices returned", domain.ErrProviderResponse)
	}
	answer := resp.Choices[0].Message.Content
	if strings.TrimSpace(answer) == "" {
		return "", fmt.Errorf("%w: empty answer", domain.ErrProviderResponse)
	}
	return answer, nil
}

func (l *OpenAILLM) Model() string { return l.model }
func (l *OpenAILLM) Name() string  { return string(domain.AIProviderOpenAI) }

// Ping lists models to verify the key and endpoint
func (l *OpenAILLM) Ping(ctx context.Context) error {
	return l.api.do(ctx, http.MethodGet, l.baseURL+"/models", nil, nil)
}

func (l *OpenAILLM) Close() error {
	l.api.http.CloseIdleConnections()
	return nil
}
