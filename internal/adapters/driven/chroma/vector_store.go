package chroma

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.VectorStore = (*VectorStore)(nil)

// DefaultCollection is the collection name used when none is configured
const DefaultCollection = "rag_documents"

// fingerprintKey is the collection metadata key holding the embedding fingerprint
const fingerprintKey = "embedding_fingerprint"

// Config holds Chroma connection settings
type Config struct {
	// URL is the server base URL, e.g. http://localhost:8000
	URL        string
	Collection string
	Timeout    time.Duration
	Logger     *slog.Logger
}

// VectorStore implements driven.VectorStore against a Chroma server.
// Vectors are computed client-side with the bound embedding function.
type VectorStore struct {
	api        *client
	collection string
	embed      driven.EmbeddingFunction
	logger     *slog.Logger

	mu sync.RWMutex
	id string // collection id, resolved by EnsureCollection
}

// NewVectorStore creates a Chroma-backed store bound to embed
func NewVectorStore(cfg Config, embed driven.EmbeddingFunction) *VectorStore {
	if cfg.Collection == "" {
		cfg.Collection = DefaultCollection
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &VectorStore{
		api:        newClient(cfg.URL, cfg.Timeout),
		collection: cfg.Collection,
		embed:      embed,
		logger:     logger,
	}
}

type collectionResponse struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Metadata map[string]any `json:"metadata"`
}

// EnsureCollection resolves the collection, creating it when missing, and
// checks its fingerprint. An existing collection is read before anything is
// written: Chroma 0.4 applies get_or_create metadata to existing collections.
func (s *VectorStore) EnsureCollection(ctx context.Context) error {
	want := s.embed.Fingerprint()

	col, err := s.getCollection(ctx)
	if isNotFound(err) {
		col, err = s.createCollection(ctx, want)
		if err != nil {
			// Another process may have created it first
			if existing, getErr := s.getCollection(ctx); getErr == nil {
				col, err = existing, nil
			}
		}
	}
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.id = col.ID
	s.mu.Unlock()

	recorded, _ := col.Metadata[fingerprintKey].(string)
	if recorded == want.String() {
		return nil
	}

	count, err := s.Count(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return domain.EmbeddingMismatchError(s.collection, count, recorded, want)
	}

	s.logger.Info("recording collection embedding fingerprint",
		"collection", s.collection,
		"previous", recorded,
		"fingerprint", want.String(),
	)
	meta := make(map[string]any, len(col.Metadata)+1)
	for k, v := range col.Metadata {
		meta[k] = v
	}
	meta[fingerprintKey] = want.String()
	return s.api.do(ctx, http.MethodPut, "/api/v1/collections/"+url.PathEscape(col.ID), map[string]any{"new_metadata": meta}, nil)
}

func (s *VectorStore) getCollection(ctx context.Context) (*collectionResponse, error) {
	var col collectionResponse
	if err := s.api.do(ctx, http.MethodGet, "/api/v1/collections/"+url.PathEscape(s.collection), nil, &col); err != nil {
		return nil, err
	}
	return &col, nil
}

func (s *VectorStore) createCollection(ctx context.Context, fp domain.EmbeddingFingerprint) (*collectionResponse, error) {
	var col collectionResponse
	req := map[string]any{
		"name":     s.collection,
		"metadata": map[string]any{fingerprintKey: fp.String(), "hnsw:space": "cosine"},
	}
	if err := s.api.do(ctx, http.MethodPost, "/api/v1/collections", req, &col); err != nil {
		return nil, err
	}
	return &col, nil
}

func (s *VectorStore) collectionPath(suffix string) (string, error) {
	s.mu.RLock()
	id := s.id
	s.mu.RUnlock()
	if id == "" {
		return "", fmt.Errorf("%w: collection %q not initialised", domain.ErrStoreFailure, s.collection)
	}
	return "/api/v1/collections/" + url.PathEscape(id) + suffix, nil
}

type upsertRequest struct {
	IDs        []string         `json:"ids"`
	Embeddings [][]float32      `json:"embeddings"`
	Documents  []string         `json:"documents"`
	Metadatas  []map[string]any `json:"metadatas"`
}

// Upsert embeds chunks and writes them, overwriting existing ids
func (s *VectorStore) Upsert(ctx context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	path, err := s.collectionPath("/upsert")
	if err != nil {
		return err
	}

	req := upsertRequest{
		IDs:       make([]string, len(chunks)),
		Documents: make([]string, len(chunks)),
		Metadatas: make([]map[string]any, len(chunks)),
	}
	for i, c := range chunks {
		req.IDs[i] = c.ID
		req.Documents[i] = c.Text
		req.Metadatas[i] = c.Metadata.Map()
	}

	if req.Embeddings, err = s.embed.Embed(ctx, req.Documents); err != nil {
		return err
	}

	return s.api.do(ctx, http.MethodPost, path, req, nil)
}

type queryRequest struct {
	QueryEmbeddings [][]float32    `json:"query_embeddings"`
	NResults        int            `json:"n_results"`
	Where           map[string]any `json:"where,omitempty"`
	Include         []string       `json:"include"`
}

type queryResponse struct {
	IDs       [][]string         `json:"ids"`
	Documents [][]*string        `json:"documents"`
	Metadatas [][]map[string]any `json:"metadatas"`
	Distances [][]float64        `json:"distances"`
}

// Query returns the nearest chunks to the first query
func (s *VectorStore) Query(ctx context.Context, q domain.VectorQuery) (*domain.RetrievalResult, error) {
	path, err := s.collectionPath("/query")
	if err != nil {
		return nil, err
	}

	embeddings := q.Embeddings
	if len(embeddings) == 0 {
		if len(q.Texts) == 0 {
			return nil, fmt.Errorf("%w: query has neither texts nor embeddings", domain.ErrInvalidInput)
		}
		if embeddings, err = s.embed.Embed(ctx, q.Texts); err != nil {
			return nil, err
		}
	}

	n := q.NResults
	if n <= 0 {
		n = domain.DefaultTopK
	}

	var resp queryResponse
	req := queryRequest{
		QueryEmbeddings: embeddings,
		NResults:        n,
		Where:           buildWhere(q.Filter),
		Include:         []string{"documents", "metadatas", "distances"},
	}
	if err := s.api.do(ctx, http.MethodPost, path, req, &resp); err != nil {
		return nil, err
	}

	result := &domain.RetrievalResult{}
	if len(resp.IDs) == 0 {
		return result, nil
	}
	for i, id := range resp.IDs[0] {
		chunk := domain.RetrievedChunk{ID: id}
		if len(resp.Documents) > 0 && i < len(resp.Documents[0]) && resp.Documents[0][i] != nil {
			chunk.Text = *resp.Documents[0][i]
		}
		if len(resp.Metadatas) > 0 && i < len(resp.Metadatas[0]) {
			chunk.Metadata = domain.ChunkMetadataFromMap(resp.Metadatas[0][i])
		}
		if len(resp.Distances) > 0 && i < len(resp.Distances[0]) {
			chunk.Distance = resp.Distances[0][i]
		}
		result.Chunks = append(result.Chunks, chunk)
	}
	return result, nil
}

// DeleteStale removes chunks of source whose ids are not in keepIDs
func (s *VectorStore) DeleteStale(ctx context.Context, source string, keepIDs []string) (int, error) {
	base, err := s.collectionPath("")
	if err != nil {
		return 0, err
	}

	var existing struct {
		IDs []string `json:"ids"`
	}
	req := map[string]any{
		"where":   buildWhere(map[string]string{domain.MetaSource: source}),
		"include": []string{},
	}
	if err := s.api.do(ctx, http.MethodPost, base+"/get", req, &existing); err != nil {
		return 0, err
	}

	keep := make(map[string]struct{}, len(keepIDs))
	for _, id := range keepIDs {
		keep[id] = struct{}{}
	}
	var stale []string
	for _, id := range existing.IDs {
		if _, ok := keep[id]; !ok {
			stale = append(stale, id)
		}
	}
	if len(stale) == 0 {
		return 0, nil
	}

	if err := s.api.do(ctx, http.MethodPost, base+"/delete", map[string]any{"ids": stale}, nil); err != nil {
		return 0, err
	}
	return len(stale), nil
}

// Count returns the number of stored chunks
func (s *VectorStore) Count(ctx context.Context) (int, error) {
	path, err := s.collectionPath("/count")
	if err != nil {
		return 0, err
	}
	var count int
	if err := s.api.do(ctx, http.MethodGet, path, nil, &count); err != nil {
		return 0, err
	}
	return count, nil
}

func (s *VectorStore) SupportsFilter() bool { return true }

// HealthCheck calls the server heartbeat
func (s *VectorStore) HealthCheck(ctx context.Context) error {
	return s.api.do(ctx, http.MethodGet, "/api/v1/heartbeat", nil, nil)
}

// buildWhere turns an equality filter into a Chroma where clause.
// More than one key needs an explicit $and.
func buildWhere(filter map[string]string) map[string]any {
	switch len(filter) {
	case 0:
		return nil
	case 1:
		for k, v := range filter {
			return map[string]any{k: v}
		}
	}

	clauses := make([]map[string]any, 0, len(filter))
	for k, v := range filter {
		clauses = append(clauses, map[string]any{k: map[string]any{"$eq": v}})
	}
	return map[string]any{"$and": clauses}
}
