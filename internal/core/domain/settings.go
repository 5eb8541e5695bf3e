package domain

import (
	"fmt"
	"strings"
)

// AIProvider identifies a model provider
type AIProvider string

const (
	AIProviderOpenAI AIProvider = "openai"
	AIProviderOllama AIProvider = "ollama"
)

// ParseAIProvider resolves a provider identifier case-insensitively.
// Surrounding whitespace is ignored.
func ParseAIProvider(id string) (AIProvider, error) {
	p := AIProvider(strings.ToLower(strings.TrimSpace(id)))
	if !p.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownProvider, id)
	}
	return p, nil
}

// RequiresAPIKey returns true if this provider requires an API key
func (p AIProvider) RequiresAPIKey() bool {
	switch p {
	case AIProviderOllama:
		return false // Self-hosted, no API key needed
	default:
		return true
	}
}

// IsValid returns true if this is a known provider
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOpenAI, AIProviderOllama:
		return true
	default:
		return false
	}
}

// ProviderSettings holds the connection details of one provider
type ProviderSettings struct {
	Provider       AIProvider `json:"provider"`
	Model          string     `json:"model"`                     // Generation model
	EmbeddingModel string     `json:"embedding_model,omitempty"` // Embedding model, if the provider embeds
	APIKey         string     `json:"-"`                         // Never serialize to JSON
	BaseURL        string     `json:"base_url,omitempty"`
}

// IsConfigured returns true if the settings can create a client
func (s *ProviderSettings) IsConfigured() bool {
	if s.Provider == "" {
		return false
	}
	if s.Provider.RequiresAPIKey() && s.APIKey == "" {
		return false
	}
	return true
}

// AISettings is the provider configuration the server starts with
type AISettings struct {
	Generation AIProvider                      `json:"generation"` // Default generation provider
	Embedding  AIProvider                      `json:"embedding"`  // Requested embedding provider
	Providers  map[AIProvider]ProviderSettings `json:"providers"`
}

// For returns the settings of a provider, or ErrUnknownProvider
func (s *AISettings) For(p AIProvider) (ProviderSettings, error) {
	ps, ok := s.Providers[p]
	if !ok {
		return ProviderSettings{}, fmt.Errorf("%w: %s", ErrUnknownProvider, p)
	}
	ps.Provider = p
	return ps, nil
}

// Validate checks that both default providers are known
func (s *AISettings) Validate() error {
	if !s.Generation.IsValid() {
		return fmt.Errorf("%w: generation provider %q", ErrUnknownProvider, s.Generation)
	}
	if !s.Embedding.IsValid() {
		return fmt.Errorf("%w: embedding provider %q", ErrUnknownProvider, s.Embedding)
	}
	return nil
}
