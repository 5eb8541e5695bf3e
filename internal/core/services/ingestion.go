package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-rag/internal/runtime"
)

// Ensure IngestionService implements driving.IngestionService
var _ driving.IngestionService = (*IngestionService)(nil)

// ingestionState names a step of the per-document state machine
type ingestionState string

const (
	stateReceived      ingestionState = "received"
	stateTypeDetected  ingestionState = "type-detected"
	stateTextExtracted ingestionState = "text-extracted"
	stateChunked       ingestionState = "chunked"
	stateStored        ingestionState = "embedded-and-stored"
)

// DefaultIngestLockTTL bounds how long one document ingestion may hold its lock
const DefaultIngestLockTTL = 10 * time.Minute

// IngestionService coordinates the document ingestion pipeline:
//  1. Detect the document type
//  2. Extract text (strategy failures become warnings)
//  3. Chunk the text
//  4. Embed and upsert the chunks, then prune stale chunk ids
//  5. Record the document in the registry
type IngestionService struct {
	extractors driven.ExtractorRegistry
	pipeline   driven.PostProcessorPipeline
	store      driven.VectorStore
	documents  driven.DocumentStore
	lock       driven.DistributedLock
	lockTTL    time.Duration
	services   *runtime.Services
	logger     *slog.Logger
}

// IngestionServiceConfig holds dependencies for IngestionService.
type IngestionServiceConfig struct {
	Extractors  driven.ExtractorRegistry
	Pipeline    driven.PostProcessorPipeline
	VectorStore driven.VectorStore
	Services    *runtime.Services

	Documents driven.DocumentStore   // Optional: document registry
	Lock      driven.DistributedLock // Optional: serialises ingestion per document name
	LockTTL   time.Duration          // Default: DefaultIngestLockTTL
	Logger    *slog.Logger
}

// NewIngestionService creates a new ingestion service.
func NewIngestionService(cfg IngestionServiceConfig) *IngestionService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ttl := cfg.LockTTL
	if ttl <= 0 {
		ttl = DefaultIngestLockTTL
	}
	return &IngestionService{
		extractors: cfg.Extractors,
		pipeline:   cfg.Pipeline,
		store:      cfg.VectorStore,
		documents:  cfg.Documents,
		lock:       cfg.Lock,
		lockTTL:    ttl,
		services:   cfg.Services,
		logger:     logger,
	}
}

// IngestDocument ingests the file at path under name.
// An empty name defaults to the file's base name. The document type is
// detected from path, so name may be any label.
func (s *IngestionService) IngestDocument(ctx context.Context, path, name string) *domain.IngestionResult {
	if name == "" {
		name = filepath.Base(path)
	}
	s.transition(name, stateReceived)

	info, err := os.Stat(path)
	if err != nil {
		return s.fail(name, fmt.Sprintf("Cannot read file %s: %v", name, err), err)
	}
	if info.IsDir() {
		return s.fail(name, fmt.Sprintf("Cannot read file %s: is a directory", name), nil)
	}

	return s.ingest(ctx, path, name)
}

// IngestURL fetches and ingests a web page. The URL is the document name.
func (s *IngestionService) IngestURL(ctx context.Context, url string) *domain.IngestionResult {
	url = strings.TrimSpace(url)
	s.transition(url, stateReceived)

	if !domain.IsLink(url) {
		return s.fail(url, fmt.Sprintf("Invalid URL %q: only http and https are supported", url), domain.ErrInvalidInput)
	}
	return s.ingest(ctx, url, url)
}

// ingest runs the pipeline for a readable file path or URL.
// The type comes from ref, never from name: name only labels the chunks.
func (s *IngestionService) ingest(ctx context.Context, ref, name string) *domain.IngestionResult {
	docType, err := domain.GetDocumentType(ref)
	if err != nil {
		return s.fail(name, fmt.Sprintf("Cannot ingest %s: %v", name, err), err)
	}
	s.transition(name, stateTypeDetected, "document_type", docType)

	release, err := s.acquire(ctx, name)
	if err != nil {
		return s.fail(name, fmt.Sprintf("Cannot ingest %s: %v", name, err), err)
	}
	defer release()

	extracted, err := s.extractors.Extract(ctx, ref)
	if err != nil {
		return s.fail(name, fmt.Sprintf("Failed to extract text from %s: %v", name, err), err)
	}
	if strings.TrimSpace(extracted.Text) == "" {
		msg := fmt.Sprintf("No text content could be extracted from %s", name)
		if extracted.Failure != nil {
			msg += ": " + extracted.Failure.Error()
		}
		return s.warn(name, msg)
	}
	s.transition(name, stateTextExtracted, "characters", utf8.RuneCountInString(extracted.Text))

	pieces := s.pipeline.Process(extracted.Text)
	if len(pieces) == 0 {
		return s.warn(name, fmt.Sprintf("No chunks were created from %s", name))
	}
	s.transition(name, stateChunked, "chunks", len(pieces))

	chunks := buildChunks(name, ref, docType, pieces)
	if err := s.store.Upsert(ctx, chunks); err != nil {
		return s.fail(name, fmt.Sprintf("Failed to store %s: %v", name, err), err)
	}

	keep := make([]string, len(chunks))
	for i, c := range chunks {
		keep[i] = c.ID
	}
	if removed, err := s.store.DeleteStale(ctx, name, keep); err != nil {
		s.logger.Warn("failed to prune stale chunks", "document", name, "error", err)
	} else if removed > 0 {
		s.logger.Debug("pruned stale chunks", "document", name, "removed", removed)
	}
	s.transition(name, stateStored)

	provider := s.embeddingProvider()
	s.record(ctx, &domain.Document{
		Name:              name,
		Type:              docType,
		Source:            ref,
		ChunkCount:        len(chunks),
		EmbeddingProvider: provider,
		IngestedAt:        time.Now(),
	})

	s.logger.Info("document ingested", "document", name, "chunks", len(chunks), "document_type", docType)
	return &domain.IngestionResult{
		Status:            domain.IngestionSuccess,
		Message:           fmt.Sprintf("Document %s ingested successfully (%d chunks)", name, len(chunks)),
		FileName:          name,
		ChunksCreated:     len(chunks),
		DocumentType:      docType,
		EmbeddingProvider: provider,
	}
}

// IngestDirectory ingests every supported file directly under dir, in name
// order, one at a time. Unsupported files are skipped without being read.
// Cancellation stops the batch; the partial result is returned with ctx.Err().
func (s *IngestionService) IngestDirectory(ctx context.Context, dir string) (*domain.BatchResult, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return &domain.BatchResult{
			Status:  domain.IngestionError,
			Message: fmt.Sprintf("Cannot read directory %s: %v", dir, err),
			Results: []*domain.IngestionResult{},
		}, fmt.Errorf("read directory %s: %w", dir, err)
	}

	batch := &domain.BatchResult{Results: []*domain.IngestionResult{}}
	s.logger.Info("starting directory ingestion", "directory", dir, "entries", len(entries))

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			batch.Finalise()
			batch.Message = fmt.Sprintf("Directory ingestion cancelled after %d files", batch.TotalFiles)
			s.logger.Warn("directory ingestion cancelled", "directory", dir, "processed", batch.TotalFiles)
			return batch, err
		}
		if !entry.Type().IsRegular() {
			continue
		}

		name := entry.Name()
		if _, err := domain.GetDocumentType(name); err != nil {
			batch.Add(&domain.IngestionResult{
				Status:   domain.IngestionSkipped,
				Message:  fmt.Sprintf("Skipped %s: %v", name, err),
				FileName: name,
			})
			continue
		}

		batch.Add(s.IngestDocument(ctx, filepath.Join(dir, name), name))
	}

	batch.Finalise()
	batch.Message = fmt.Sprintf("Processed %d files: %d successful, %d failed, %d warnings, %d skipped",
		batch.TotalFiles, batch.Successful, batch.Failed, batch.Warnings, batch.Skipped)
	s.logger.Info("directory ingestion completed",
		"directory", dir,
		"total", batch.TotalFiles,
		"successful", batch.Successful,
		"failed", batch.Failed,
		"warnings", batch.Warnings,
		"skipped", batch.Skipped,
	)
	return batch, nil
}

// SupportedTypes describes the formats with a registered extractor. OCR is checked live.
func (s *IngestionService) SupportedTypes(ctx context.Context) *domain.SupportedTypes {
	types := domain.NewSupportedTypes(s.extractors.OCRAvailable(ctx))
	types.Restrict(s.extractors.Types())
	return types
}

// acquire takes the per-document lock and renews it every third of its TTL
// until the returned func releases it.
func (s *IngestionService) acquire(ctx context.Context, name string) (func(), error) {
	if s.lock == nil {
		return func() {}, nil
	}

	lockName := "ingest:" + name
	ok, err := s.lock.Acquire(ctx, lockName, s.lockTTL)
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrIngestionInProgress, name)
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go s.renew(context.WithoutCancel(ctx), lockName, stop, done)

	return func() {
		close(stop)
		<-done
		if err := s.lock.Release(context.WithoutCancel(ctx), lockName); err != nil {
			s.logger.Warn("failed to release ingestion lock", "document", name, "error", err)
		}
	}, nil
}

// renew extends lockName until stop is closed
func (s *IngestionService) renew(ctx context.Context, lockName string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	interval := s.lockTTL / 3
	if interval <= 0 {
		interval = s.lockTTL
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			err := s.lock.Extend(ctx, lockName, s.lockTTL)
			if errors.Is(err, domain.ErrLockNotHeld) {
				s.logger.Error("ingestion lock lost", "lock", lockName, "error", err)
				<-stop
				return
			}
			if err != nil {
				s.logger.Warn("failed to extend ingestion lock", "lock", lockName, "error", err)
			}
		}
	}
}

// record saves the document in the registry. Failures are logged only.
func (s *IngestionService) record(ctx context.Context, doc *domain.Document) {
	if s.documents == nil {
		return
	}
	if err := s.documents.Save(ctx, doc); err != nil {
		s.logger.Warn("failed to record document", "document", doc.Name, "error", err)
	}
}

func (s *IngestionService) embeddingProvider() string {
	if s.services == nil {
		return ""
	}
	if svc := s.services.EmbeddingService(); svc != nil {
		return svc.Name()
	}
	return ""
}

func (s *IngestionService) transition(name string, state ingestionState, args ...any) {
	s.logger.Debug("ingestion state", append([]any{"document", name, "state", state}, args...)...)
}

func (s *IngestionService) fail(name, msg string, err error) *domain.IngestionResult {
	attrs := []any{"document", name, "message", msg}
	if err != nil && !errors.Is(err, domain.ErrUnsupportedType) {
		attrs = append(attrs, "error", err)
	}
	s.logger.Error("ingestion failed", attrs...)
	return &domain.IngestionResult{Status: domain.IngestionError, Message: msg, FileName: name, Err: err}
}

func (s *IngestionService) warn(name, msg string) *domain.IngestionResult {
	s.logger.Warn("ingestion finished with warning", "document", name, "message", msg)
	return &domain.IngestionResult{Status: domain.IngestionWarning, Message: msg, FileName: name}
}

// buildChunks turns pipeline output into stored chunks.
// Ids are 0-based; the chunk_index metadata is 1-based.
func buildChunks(name, ref string, docType domain.DocumentType, pieces []driven.Chunk) []domain.Chunk {
	chunks := make([]domain.Chunk, len(pieces))
	for i, p := range pieces {
		chunks[i] = domain.Chunk{
			ID:   domain.ChunkID(name, i),
			Text: p.Content,
			Metadata: domain.ChunkMetadata{
				Source:       name,
				ChunkIndex:   i + 1,
				TotalChunks:  len(pieces),
				DocumentType: docType,
				FilePath:     ref,
				ChunkLength:  utf8.RuneCountInString(p.Content),
			},
		}
	}
	return chunks
}
