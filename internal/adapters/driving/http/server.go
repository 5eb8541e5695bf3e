package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/custodia-labs/sercha-rag/internal/core/ports/driving"
)

// ReadinessCheck is one dependency probed by /ready
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Server represents the HTTP server
type Server struct {
	httpServer *http.Server
	router     *http.ServeMux
	handler    http.Handler
	version    string
	uploadDir  string
	maxUpload  int64
	logger     *slog.Logger

	// Services
	ingestion driving.IngestionService
	chat      driving.ChatService
	documents driving.DocumentService

	// Infrastructure
	checks []ReadinessCheck
}

// Config holds server configuration
type Config struct {
	Host    string
	Port    int
	Version string

	// UploadDir receives uploaded files before ingestion
	UploadDir string

	// MaxUploadBytes caps a single upload request body
	MaxUploadBytes int64

	// CORSOrigins are allowed in addition to the ngrok tunnel domains
	CORSOrigins []string

	// WriteTimeout must outlast a generation call
	WriteTimeout time.Duration

	Logger *slog.Logger
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Host:           "0.0.0.0",
		Port:           8000,
		Version:        "dev",
		UploadDir:      "data/raw_docs",
		MaxUploadBytes: 50 << 20,
		WriteTimeout:   5 * time.Minute,
	}
}

// NewServer creates a new HTTP server
func NewServer(
	cfg Config,
	ingestion driving.IngestionService,
	chat driving.ChatService,
	documents driving.DocumentService,
	checks ...ReadinessCheck,
) *Server {
	defaults := DefaultConfig()
	if cfg.UploadDir == "" {
		cfg.UploadDir = defaults.UploadDir
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = defaults.MaxUploadBytes
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaults.WriteTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		router:    http.NewServeMux(),
		version:   cfg.Version,
		uploadDir: cfg.UploadDir,
		maxUpload: cfg.MaxUploadBytes,
		logger:    logger,
		ingestion: ingestion,
		chat:      chat,
		documents: documents,
		checks:    checks,
	}

	s.setupRoutes()

	s.handler = NewRecoveryMiddleware(logger).Handler(
		NewRequestIDMiddleware().Handler(
			NewLoggingMiddleware(logger).Handler(
				NewCORSMiddleware(cfg.CORSOrigins).Handler(s.router))))

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       2 * time.Minute,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}

	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	// Health endpoints
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /ready", s.handleReady)
	s.router.HandleFunc("GET /version", s.handleVersion)

	// Ingestion endpoints
	s.router.HandleFunc("POST /api/ingest/upload", s.handleUpload)
	s.router.HandleFunc("POST /api/ingest/upload-directory", s.handleUploadDirectory)
	s.router.HandleFunc("GET /api/ingest/supported-types", s.handleSupportedTypes)

	// Chat endpoints
	s.router.HandleFunc("POST /api/chat/{$}", s.handleChat)
	s.router.HandleFunc("POST /api/chat", s.handleChat)

	// Document registry endpoints
	s.router.HandleFunc("GET /api/documents", s.handleListDocuments)
	s.router.HandleFunc("GET /api/documents/{name...}", s.handleGetDocument)
}

// Handler returns the router wrapped in the middleware chain
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.logger.Info("server stopped")
	return nil
}

// Stop stops the server
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
