package mocks

import (
	"context"
	"sync"
)

// MockLLMService is a mock implementation of LLMService for testing.
// It records every prompt and context it is given.
type MockLLMService struct {
	mu       sync.Mutex
	name     string
	Response string
	Err      error
	PingErr  error

	prompts  []string
	contexts []string
}

// NewMockLLMService creates a mock generator that answers with a fixed string
func NewMockLLMService(name string) *MockLLMService {
	return &MockLLMService{name: name, Response: "mock answer"}
}

func (m *MockLLMService) Generate(ctx context.Context, prompt, contextText string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.prompts = append(m.prompts, prompt)
	m.contexts = append(m.contexts, contextText)
	if m.Err != nil {
		return "", m.Err
	}
	return m.Response, nil
}

func (m *MockLLMService) Model() string { return "mock-llm" }
func (m *MockLLMService) Name() string  { return m.name }

func (m *MockLLMService) Ping(ctx context.Context) error {
	return m.PingErr
}

func (m *MockLLMService) Close() error {
	return nil
}

// Prompts returns the prompts received so far
func (m *MockLLMService) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}

// LastPrompt returns the most recent prompt, or "" if none
func (m *MockLLMService) LastPrompt() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.prompts) == 0 {
		return ""
	}
	return m.prompts[len(m.prompts)-1]
}
