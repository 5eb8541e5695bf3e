package driving

import (
	"context"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// ChatService answers questions with retrieval-augmented generation
type ChatService interface {
	// Answer retrieves context for query and generates an answer.
	// Provider and retrieval failures propagate to the caller.
	Answer(ctx context.Context, query string, opts domain.ChatOptions) (string, error)

	// Retrieve runs only the retrieval half of Answer
	Retrieve(ctx context.Context, query string, opts domain.ChatOptions) (*domain.RetrievalResult, error)
}
