package chroma

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

type fixedEmbedding struct {
	fingerprint domain.EmbeddingFingerprint
	calls       int
}

func (f *fixedEmbedding) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(len(texts[i])), 1}
	}
	return out, nil
}

func (f *fixedEmbedding) Fingerprint() domain.EmbeddingFingerprint { return f.fingerprint }

// fakeChroma is a tiny in-process stand-in for the Chroma v1 API
type fakeChroma struct {
	mu       sync.Mutex
	metadata map[string]any
	records  map[string]map[string]any // id -> metadata
	lastBody map[string]map[string]any // path suffix -> last decoded body
	fail     map[string]int            // path suffix -> status
}

func newFakeChroma() *fakeChroma {
	return &fakeChroma{
		records:  make(map[string]map[string]any),
		lastBody: make(map[string]map[string]any),
		fail:     make(map[string]int),
	}
}

func (f *fakeChroma) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()

		path := r.URL.Path
		suffix := path[strings.LastIndex(path, "/")+1:]
		if status, ok := f.fail[suffix]; ok {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":"ValueError","message":"boom"}`))
			return
		}

		var body map[string]any
		if r.Body != nil && r.Method != http.MethodGet {
			_ = json.NewDecoder(r.Body).Decode(&body)
		}
		f.lastBody[suffix] = body

		w.Header().Set("Content-Type", "application/json")
		switch {
		case path == "/api/v1/heartbeat":
			_, _ = w.Write([]byte(`{"nanosecond heartbeat": 1}`))
		case path == "/api/v1/collections/"+DefaultCollection && r.Method == http.MethodGet:
			if f.metadata == nil {
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(`{"error":"ValueError('Collection rag_documents does not exist.')"}`))
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"id": "col-1", "name": DefaultCollection, "metadata": f.metadata})
		case path == "/api/v1/collections" && r.Method == http.MethodPost:
			meta, _ := body["metadata"].(map[string]any)
			switch {
			case f.metadata == nil:
				f.metadata = meta
			case body["get_or_create"] == true:
				// Chroma 0.4 overwrites existing metadata on get_or_create
				if meta != nil {
					f.metadata = meta
				}
			default:
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(`{"error":"UniqueConstraintError('Collection rag_documents already exists')"}`))
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"id": "col-1", "name": body["name"], "metadata": f.metadata})
		case path == "/api/v1/collections/col-1" && r.Method == http.MethodPut:
			f.metadata, _ = body["new_metadata"].(map[string]any)
			_, _ = w.Write([]byte(`null`))
		case suffix == "count":
			_ = json.NewEncoder(w).Encode(len(f.records))
		case suffix == "upsert":
			ids, _ := body["ids"].([]any)
			metas, _ := body["metadatas"].([]any)
			for i, id := range ids {
				meta, _ := metas[i].(map[string]any)
				f.records[id.(string)] = meta
			}
			_, _ = w.Write([]byte(`true`))
		case suffix == "get":
			where, _ := body["where"].(map[string]any)
			var ids []string
			for id, meta := range f.records {
				if meta[domain.MetaSource] == where[domain.MetaSource] {
					ids = append(ids, id)
				}
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"ids": ids})
		case suffix == "delete":
			ids, _ := body["ids"].([]any)
			for _, id := range ids {
				delete(f.records, id.(string))
			}
			_, _ = w.Write([]byte(`[]`))
		case suffix == "query":
			_, _ = w.Write([]byte(`{
				"ids": [["a.txt_chunk_0", "b.txt_chunk_0"]],
				"documents": [["alpha", null]],
				"metadatas": [[{"source": "a.txt", "chunk_index": 1, "total_chunks": 1, "document_type": "txt"}, {"source": "b.txt"}]],
				"distances": [[0.1, 0.4]]
			}`))
		default:
			t.Errorf("unexpected request %s %s", r.Method, path)
			w.WriteHeader(http.StatusNotFound)
		}
	})
}

func newTestStore(t *testing.T, fake *fakeChroma, embed *fixedEmbedding) *VectorStore {
	t.Helper()
	server := httptest.NewServer(fake.handler(t))
	t.Cleanup(server.Close)
	return NewVectorStore(Config{URL: server.URL + "/"}, embed)
}

var testFingerprint = domain.EmbeddingFingerprint{Provider: "openai", Model: "text-embedding-3-small", Dimensions: 2}

func TestVectorStore_EnsureCollection_RecordsFingerprint(t *testing.T) {
	fake := newFakeChroma()
	store := newTestStore(t, fake, &fixedEmbedding{fingerprint: testFingerprint})

	require.NoError(t, store.EnsureCollection(context.Background()))

	assert.Equal(t, DefaultCollection, fake.lastBody["collections"]["name"])
	assert.Equal(t, testFingerprint.String(), fake.metadata[fingerprintKey])
}

func TestVectorStore_EnsureCollection_Mismatch(t *testing.T) {
	fake := newFakeChroma()
	fake.metadata = map[string]any{fingerprintKey: "ollama/other/768"}
	fake.records["x_chunk_0"] = map[string]any{domain.MetaSource: "x"}
	store := newTestStore(t, fake, &fixedEmbedding{fingerprint: testFingerprint})

	err := store.EnsureCollection(context.Background())
	assert.True(t, errors.Is(err, domain.ErrEmbeddingMismatch), "got %v", err)
}

func TestVectorStore_EnsureCollection_ExistingMetadataNotOverwritten(t *testing.T) {
	fake := newFakeChroma()
	fake.metadata = map[string]any{fingerprintKey: "ollama/nomic-embed-text/768", "hnsw:space": "cosine"}
	fake.records["x_chunk_0"] = map[string]any{domain.MetaSource: "x"}
	store := newTestStore(t, fake, &fixedEmbedding{fingerprint: testFingerprint})

	err := store.EnsureCollection(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrEmbeddingMismatch)
	assert.Contains(t, err.Error(), "ollama model nomic-embed-text (768 dims)")
	assert.Equal(t, "ollama/nomic-embed-text/768", fake.metadata[fingerprintKey])
	assert.Nil(t, fake.lastBody["collections"], "an existing collection must not be posted to")

	// The recorded fingerprint survives a second start
	err = store.EnsureCollection(context.Background())
	assert.ErrorIs(t, err, domain.ErrEmbeddingMismatch)
}

func TestVectorStore_EnsureCollection_MatchingFingerprintIsReused(t *testing.T) {
	fake := newFakeChroma()
	fake.metadata = map[string]any{fingerprintKey: testFingerprint.String(), "hnsw:space": "cosine"}
	fake.records["x_chunk_0"] = map[string]any{domain.MetaSource: "x"}
	store := newTestStore(t, fake, &fixedEmbedding{fingerprint: testFingerprint})

	require.NoError(t, store.EnsureCollection(context.Background()))
	assert.Nil(t, fake.lastBody["collections"])
	_, err := store.Count(context.Background())
	assert.NoError(t, err)
}

func TestVectorStore_EnsureCollection_LookupFailure(t *testing.T) {
	fake := newFakeChroma()
	fake.fail[DefaultCollection] = http.StatusServiceUnavailable
	store := newTestStore(t, fake, &fixedEmbedding{fingerprint: testFingerprint})

	err := store.EnsureCollection(context.Background())

	assert.ErrorIs(t, err, domain.ErrStoreFailure)
	assert.Nil(t, fake.metadata, "collection must not be created when lookup fails")
}

func TestVectorStore_EnsureCollection_EmptyCollectionAdopts(t *testing.T) {
	fake := newFakeChroma()
	fake.metadata = map[string]any{fingerprintKey: "ollama/other/768", "hnsw:space": "cosine"}
	store := newTestStore(t, fake, &fixedEmbedding{fingerprint: testFingerprint})

	require.NoError(t, store.EnsureCollection(context.Background()))
	assert.Equal(t, testFingerprint.String(), fake.metadata[fingerprintKey])
	assert.Equal(t, "cosine", fake.metadata["hnsw:space"])
}

func TestVectorStore_RequiresCollection(t *testing.T) {
	store := newTestStore(t, newFakeChroma(), &fixedEmbedding{fingerprint: testFingerprint})

	err := store.Upsert(context.Background(), []domain.Chunk{{ID: "a"}})
	assert.True(t, errors.Is(err, domain.ErrStoreFailure), "got %v", err)
}

func TestVectorStore_UpsertAndDeleteStale(t *testing.T) {
	fake := newFakeChroma()
	embed := &fixedEmbedding{fingerprint: testFingerprint}
	store := newTestStore(t, fake, embed)
	ctx := context.Background()
	require.NoError(t, store.EnsureCollection(ctx))

	chunks := make([]domain.Chunk, 3)
	for i := range chunks {
		chunks[i] = domain.Chunk{
			ID:       domain.ChunkID("a.txt", i),
			Text:     "text",
			Metadata: domain.ChunkMetadata{Source: "a.txt", ChunkIndex: i + 1, TotalChunks: 3},
		}
	}
	require.NoError(t, store.Upsert(ctx, chunks))
	assert.Equal(t, 1, embed.calls)
	assert.Len(t, fake.lastBody["upsert"]["embeddings"], 3)

	fake.records["b.txt_chunk_0"] = map[string]any{domain.MetaSource: "b.txt"}

	removed, err := store.DeleteStale(ctx, "a.txt", []string{"a.txt_chunk_0"})
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Contains(t, fake.records, "b.txt_chunk_0")
}

func TestVectorStore_DeleteStale_RequiresCollection(t *testing.T) {
	fake := newFakeChroma()
	fake.records["a.txt_chunk_5"] = map[string]any{domain.MetaSource: "a.txt"}
	store := newTestStore(t, fake, &fixedEmbedding{fingerprint: testFingerprint})

	removed, err := store.DeleteStale(context.Background(), "a.txt", nil)

	assert.ErrorIs(t, err, domain.ErrStoreFailure)
	assert.Zero(t, removed)
	assert.Contains(t, fake.records, "a.txt_chunk_5")
}

func TestVectorStore_DeleteStale_DeletesFromResolvedCollection(t *testing.T) {
	fake := newFakeChroma()
	store := newTestStore(t, fake, &fixedEmbedding{fingerprint: testFingerprint})
	ctx := context.Background()
	require.NoError(t, store.EnsureCollection(ctx))
	fake.records["a.txt_chunk_5"] = map[string]any{domain.MetaSource: "a.txt"}

	removed, err := store.DeleteStale(ctx, "a.txt", nil)

	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.Equal(t, []any{"a.txt_chunk_5"}, fake.lastBody["delete"]["ids"])
}

func TestVectorStore_DeleteStale_NothingToRemove(t *testing.T) {
	fake := newFakeChroma()
	store := newTestStore(t, fake, &fixedEmbedding{fingerprint: testFingerprint})
	ctx := context.Background()
	require.NoError(t, store.EnsureCollection(ctx))

	removed, err := store.DeleteStale(ctx, "missing.txt", nil)
	require.NoError(t, err)
	assert.Zero(t, removed)
	assert.NotContains(t, fake.lastBody, "delete")
}

func TestVectorStore_Query(t *testing.T) {
	fake := newFakeChroma()
	store := newTestStore(t, fake, &fixedEmbedding{fingerprint: testFingerprint})
	ctx := context.Background()
	require.NoError(t, store.EnsureCollection(ctx))

	res, err := store.Query(ctx, domain.VectorQuery{
		Texts:  []string{"question"},
		Filter: map[string]string{domain.MetaSource: "a.txt"},
	})
	require.NoError(t, err)

	require.Len(t, res.Chunks, 2)
	assert.Equal(t, "alpha", res.Chunks[0].Text)
	assert.Equal(t, 1, res.Chunks[0].Metadata.ChunkIndex)
	assert.Equal(t, domain.DocumentTypeText, res.Chunks[0].Metadata.DocumentType)
	assert.InDelta(t, 0.1, res.Chunks[0].Distance, 1e-9)
	assert.Empty(t, res.Chunks[1].Text)

	body := fake.lastBody["query"]
	assert.EqualValues(t, domain.DefaultTopK, body["n_results"])
	assert.Equal(t, map[string]any{domain.MetaSource: "a.txt"}, body["where"])
}

func TestVectorStore_QueryWithoutInput(t *testing.T) {
	fake := newFakeChroma()
	store := newTestStore(t, fake, &fixedEmbedding{fingerprint: testFingerprint})
	require.NoError(t, store.EnsureCollection(context.Background()))

	_, err := store.Query(context.Background(), domain.VectorQuery{})
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
}

func TestVectorStore_ServerErrorWrapsStoreFailure(t *testing.T) {
	fake := newFakeChroma()
	store := newTestStore(t, fake, &fixedEmbedding{fingerprint: testFingerprint})
	ctx := context.Background()
	require.NoError(t, store.EnsureCollection(ctx))

	fake.fail["query"] = http.StatusInternalServerError
	_, err := store.Query(ctx, domain.VectorQuery{Texts: []string{"q"}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrStoreFailure))
	assert.Contains(t, err.Error(), "boom")
}

func TestVectorStore_HealthCheck(t *testing.T) {
	store := newTestStore(t, newFakeChroma(), &fixedEmbedding{fingerprint: testFingerprint})
	assert.NoError(t, store.HealthCheck(context.Background()))
	assert.True(t, store.SupportsFilter())

	unreachable := NewVectorStore(Config{URL: "http://127.0.0.1:1"}, &fixedEmbedding{})
	err := unreachable.HealthCheck(context.Background())
	assert.True(t, errors.Is(err, domain.ErrStoreFailure))
}

func TestBuildWhere(t *testing.T) {
	assert.Nil(t, buildWhere(nil))
	assert.Equal(t, map[string]any{"source": "a"}, buildWhere(map[string]string{"source": "a"}))

	where := buildWhere(map[string]string{"source": "a", "document_type": "pdf"})
	clauses, ok := where["$and"].([]map[string]any)
	require.True(t, ok)
	assert.Len(t, clauses, 2)
}

func TestErrorMessage(t *testing.T) {
	assert.Equal(t, "bad", errorMessage([]byte(`{"error":"bad"}`)))
	assert.Equal(t, "[x]", errorMessage([]byte(`{"detail":["x"]}`)))
	assert.Equal(t, "plain", errorMessage([]byte("plain\n")))
}
