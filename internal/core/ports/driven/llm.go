package driven

import (
	"context"
)

// LLMService generates answers from a prompt
type LLMService interface {
	// Generate produces a completion for prompt.
	// A non-empty context is prepended by the provider in its own format.
	// Fails with domain.ErrProviderUnavailable or domain.ErrProviderResponse.
	Generate(ctx context.Context, prompt, context string) (string, error)

	// Model returns the model name being used
	Model() string

	// Name returns the provider identifier (e.g. "ollama")
	Name() string

	// Ping verifies the LLM service is available
	Ping(ctx context.Context) error

	// Close releases resources held by the LLM service
	Close() error
}
