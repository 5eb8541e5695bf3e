package driven

import (
	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// AIServiceFactory creates AI services from provider settings
type AIServiceFactory interface {
	// CreateEmbeddingService creates the embedding half of a provider.
	// Providers without embeddings return a service whose SupportsEmbeddings is false.
	CreateEmbeddingService(settings domain.ProviderSettings) (EmbeddingService, error)

	// CreateLLMService creates the generation half of a provider
	CreateLLMService(settings domain.ProviderSettings) (LLMService, error)
}
