package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.VectorStore = (*VectorStore)(nil)

type entry struct {
	chunk  domain.Chunk
	vector []float32
}

// VectorStore is an in-process VectorStore with brute-force cosine search.
// Contents are lost on restart.
type VectorStore struct {
	mu          sync.RWMutex
	embed       driven.EmbeddingFunction
	entries     map[string]entry
	fingerprint domain.EmbeddingFingerprint
}

// NewVectorStore creates an empty store bound to embed
func NewVectorStore(embed driven.EmbeddingFunction) *VectorStore {
	return &VectorStore{embed: embed, entries: make(map[string]entry)}
}

// EnsureCollection records the embedding fingerprint, refusing to change it
// while chunks are stored
func (s *VectorStore) EnsureCollection(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	want := s.embed.Fingerprint()
	if s.fingerprint == want {
		return nil
	}
	if len(s.entries) > 0 {
		return fmt.Errorf("%w: collection holds %d chunks embedded with %s, configured %s",
			domain.ErrEmbeddingMismatch, len(s.entries), s.fingerprint, want)
	}
	s.fingerprint = want
	return nil
}

func (s *VectorStore) Upsert(ctx context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := s.embed.Embed(ctx, texts)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i, c := range chunks {
		s.entries[c.ID] = entry{chunk: c, vector: vectors[i]}
	}
	return nil
}

func (s *VectorStore) Query(ctx context.Context, q domain.VectorQuery) (*domain.RetrievalResult, error) {
	var query []float32
	switch {
	case len(q.Embeddings) > 0:
		query = q.Embeddings[0]
	case len(q.Texts) > 0:
		vectors, err := s.embed.Embed(ctx, q.Texts[:1])
		if err != nil {
			return nil, err
		}
		query = vectors[0]
	default:
		return nil, fmt.Errorf("%w: query has neither texts nor embeddings", domain.ErrInvalidInput)
	}

	n := q.NResults
	if n <= 0 {
		n = domain.DefaultTopK
	}

	s.mu.RLock()
	candidates := make([]domain.RetrievedChunk, 0, len(s.entries))
	for _, e := range s.entries {
		if !matches(e.chunk.Metadata, q.Filter) {
			continue
		}
		candidates = append(candidates, domain.RetrievedChunk{
			ID:       e.chunk.ID,
			Text:     e.chunk.Text,
			Metadata: e.chunk.Metadata,
			Distance: cosineDistance(query, e.vector),
		})
	}
	s.mu.RUnlock()

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Distance != candidates[j].Distance {
			return candidates[i].Distance < candidates[j].Distance
		}
		return candidates[i].ID < candidates[j].ID
	})
	if len(candidates) > n {
		candidates = candidates[:n]
	}
	return &domain.RetrievalResult{Chunks: candidates}, nil
}

func (s *VectorStore) DeleteStale(ctx context.Context, source string, keepIDs []string) (int, error) {
	keep := make(map[string]struct{}, len(keepIDs))
	for _, id := range keepIDs {
		keep[id] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, e := range s.entries {
		if e.chunk.Metadata.Source != source {
			continue
		}
		if _, ok := keep[id]; ok {
			continue
		}
		delete(s.entries, id)
		removed++
	}
	return removed, nil
}

func (s *VectorStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries), nil
}

func (s *VectorStore) SupportsFilter() bool { return true }

func (s *VectorStore) HealthCheck(ctx context.Context) error { return nil }

// matches reports whether every filter key equals the stored metadata value
func matches(meta domain.ChunkMetadata, filter map[string]string) bool {
	if len(filter) == 0 {
		return true
	}
	m := meta.Map()
	for k, want := range filter {
		v, ok := m[k]
		if !ok || fmt.Sprint(v) != want {
			return false
		}
	}
	return true
}

// cosineDistance returns 1 - cosine similarity; mismatched or zero vectors are maximally distant
func cosineDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 2
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 2
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}
