// Package app wires configuration into running stores, providers and services.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/ai"
	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/chroma"
	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/memory"
	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/postgres"
	redisadapter "github.com/custodia-labs/sercha-rag/internal/adapters/driven/redis"
	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/sqlite"
	"github.com/custodia-labs/sercha-rag/internal/config"
	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-rag/internal/core/services"
	"github.com/custodia-labs/sercha-rag/internal/extractors"
	"github.com/custodia-labs/sercha-rag/internal/postprocessors"
	"github.com/custodia-labs/sercha-rag/internal/runtime"
)

// App holds everything built from a Config
type App struct {
	Config  *config.Config
	Runtime *domain.RuntimeConfig

	DB            *postgres.DB // nil unless a backend needs PostgreSQL
	Lock          driven.DistributedLock
	VectorStore   driven.VectorStore
	DocumentStore driven.DocumentStore
	Services      *runtime.Services
	Pipeline      *postprocessors.Pipeline

	Ingestion *services.IngestionService
	RAG       *services.RAGService
	Documents driving.DocumentService

	closers []func()
}

// Build connects every configured backend and selects the AI providers.
// Close must be called to release connections, even after an error.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	a := &App{Config: cfg}

	// ===== PostgreSQL (only if a backend needs it) =====
	if cfg.NeedsPostgres() {
		logger.Info("connecting to PostgreSQL")
		db, err := postgres.Connect(ctx, postgres.DefaultConfig(cfg.DatabaseURL))
		if err != nil {
			return a, err
		}
		a.DB = db
		a.closers = append(a.closers, func() { _ = db.Close() })

		if err := db.InitSchema(ctx); err != nil {
			return a, err
		}
		logger.Info("PostgreSQL connected and schema initialized")
	}

	// ===== Distributed lock =====
	if err := a.buildLock(ctx, logger); err != nil {
		return a, err
	}

	// ===== AI providers =====
	a.Runtime = domain.NewRuntimeConfig(cfg.VectorStore, cfg.DocumentStore, cfg.LockBackend)
	a.Services = runtime.NewServices(a.Runtime)
	a.closers = append(a.closers, func() { _ = a.Services.Close() })

	factory := ai.NewFactory(ai.FactoryConfig{
		EmbeddingRPS:      cfg.EmbeddingRPS,
		EmbeddingBurst:    cfg.EmbeddingBurst,
		GenerationTimeout: cfg.GenerationTimeout,
		EmbeddingTimeout:  cfg.EmbeddingTimeout,
	})
	selector := services.NewProviderSelector(services.ProviderSelectorConfig{
		Factory:  factory,
		Settings: cfg.AISettings(),
		Services: a.Services,
		Logger:   logger,
	})
	if _, err := selector.Select(ctx, cfg.LLMProvider, cfg.EmbeddingProvider); err != nil {
		return a, fmt.Errorf("provider selection: %w", err)
	}

	embed := runtime.NewEmbeddingFunction(a.Services, int64(cfg.EmbeddingMaxInFlight), logger)

	// ===== Stores =====
	store, err := a.newVectorStore(ctx, embed, logger)
	if err != nil {
		return a, err
	}
	if err := store.EnsureCollection(ctx); err != nil {
		return a, fmt.Errorf("vector store: %w", err)
	}
	a.VectorStore = store

	if err := a.buildDocumentStore(); err != nil {
		return a, err
	}

	// ===== Services =====
	a.Pipeline, err = postprocessors.BuildPipeline(postprocessors.ChunkConfig{
		ChunkSize:          cfg.ChunkSize,
		ChunkOverlap:       cfg.ChunkOverlap,
		PreserveSentences:  true,
		PreserveParagraphs: true,
	}, cfg.ChunkPostProcessors)
	if err != nil {
		return a, err
	}

	a.Ingestion = services.NewIngestionService(services.IngestionServiceConfig{
		Extractors: extractors.DefaultRegistry(extractors.Config{
			ToolTimeout: cfg.ExtractToolTimeout,
			Logger:      logger,
		}),
		Pipeline:    a.Pipeline,
		VectorStore: a.VectorStore,
		Services:    a.Services,
		Documents:   a.DocumentStore,
		Lock:        a.Lock,
		LockTTL:     cfg.IngestLockTTL,
		Logger:      logger,
	})
	a.RAG = services.NewRAGService(services.RAGServiceConfig{
		VectorStore:       a.VectorStore,
		Services:          a.Services,
		GenerationTimeout: cfg.GenerationTimeout,
		Logger:            logger,
	})
	a.Documents = services.NewDocumentService(a.DocumentStore)

	sel := a.Runtime.Selection()
	logger.Info("runtime config",
		"vector_store", a.Runtime.VectorBackend,
		"document_store", a.Runtime.DocumentBackend,
		"lock", a.Runtime.LockBackend,
		"generation", sel.Generation,
		"embedding", sel.Embedding,
		"embedding_substituted", sel.Substituted,
		"post_processors", a.Pipeline.List(),
	)

	return a, nil
}

// BuildLockOnly connects just the backends the upload sweeper needs
func BuildLockOnly(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	a := &App{Config: cfg}
	if cfg.LockBackend == config.BackendPostgres {
		db, err := postgres.Connect(ctx, postgres.DefaultConfig(cfg.DatabaseURL))
		if err != nil {
			return a, err
		}
		a.DB = db
		a.closers = append(a.closers, func() { _ = db.Close() })
	}
	return a, a.buildLock(ctx, logger)
}

// Close releases connections in reverse order of creation
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *App) buildLock(ctx context.Context, logger *slog.Logger) error {
	switch a.Config.LockBackend {
	case config.BackendRedis:
		lock, err := redisadapter.NewLockFromURL(ctx, a.Config.RedisURL)
		if err != nil {
			return fmt.Errorf("redis lock: %w", err)
		}
		logger.Info("using Redis distributed lock")
		a.Lock = lock
		a.closers = append(a.closers, func() { _ = lock.Close() })
	case config.BackendPostgres:
		logger.Info("using PostgreSQL advisory lock")
		a.Lock = postgres.NewAdvisoryLock(a.DB)
	}
	return nil
}

func (a *App) newVectorStore(ctx context.Context, embed driven.EmbeddingFunction, logger *slog.Logger) (driven.VectorStore, error) {
	cfg := a.Config
	switch cfg.VectorStore {
	case config.BackendChroma:
		logger.Info("using Chroma vector store", "url", cfg.ChromaURL(), "collection", cfg.ChromaCollection)
		return chroma.NewVectorStore(chroma.Config{
			URL:        cfg.ChromaURL(),
			Collection: cfg.ChromaCollection,
			Logger:     logger,
		}, embed), nil
	case config.BackendPostgres:
		if err := a.DB.InitVectorSchema(ctx); err != nil {
			return nil, err
		}
		logger.Info("using pgvector vector store", "collection", cfg.ChromaCollection)
		return postgres.NewVectorStore(a.DB, cfg.ChromaCollection, embed, logger), nil
	default:
		logger.Warn("using in-memory vector store; chunks are lost on restart")
		return memory.NewVectorStore(embed), nil
	}
}

func (a *App) buildDocumentStore() error {
	switch a.Config.DocumentStore {
	case config.BackendPostgres:
		a.DocumentStore = postgres.NewDocumentStore(a.DB)
	case config.BackendSQLite:
		store, err := sqlite.NewDocumentStore(a.Config.SQLitePath)
		if err != nil {
			return fmt.Errorf("document store: %w", err)
		}
		a.DocumentStore = store
		a.closers = append(a.closers, func() { _ = store.Close() })
	default:
		a.DocumentStore = memory.NewDocumentStore()
	}
	return nil
}

// pinger is implemented by stores that can report connectivity
type pinger interface {
	Ping(ctx context.Context) error
}

// Check is a named dependency probe
type Check struct {
	Name  string
	Check func(ctx context.Context) error
}

// Checks returns a probe for every dependency the services rely on
func (a *App) Checks() []Check {
	checks := []Check{
		{Name: "vector_store", Check: a.VectorStore.HealthCheck},
		{Name: "embedding", Check: func(ctx context.Context) error {
			embedding := a.Services.EmbeddingService()
			if embedding == nil {
				return domain.ErrProviderUnavailable
			}
			return embedding.HealthCheck(ctx)
		}},
		{Name: "llm", Check: func(ctx context.Context) error {
			llm, err := a.Services.LLMService("")
			if err != nil {
				return err
			}
			return llm.Ping(ctx)
		}},
	}
	if p, ok := a.DocumentStore.(pinger); ok {
		checks = append(checks, Check{Name: "document_store", Check: p.Ping})
	}
	if a.Lock != nil {
		checks = append(checks, Check{Name: "lock", Check: a.Lock.Ping})
	}
	return checks
}
