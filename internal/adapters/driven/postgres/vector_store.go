package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.VectorStore = (*VectorStore)(nil)

// VectorStore implements driven.VectorStore with the pgvector extension.
// Similarity is cosine distance; metadata filters use JSONB containment.
type VectorStore struct {
	db         *DB
	collection string
	embed      driven.EmbeddingFunction
	logger     *slog.Logger
}

// NewVectorStore creates a store for one named collection bound to embed
func NewVectorStore(db *DB, collection string, embed driven.EmbeddingFunction, logger *slog.Logger) *VectorStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &VectorStore{db: db, collection: collection, embed: embed, logger: logger}
}

func storeErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", domain.ErrStoreFailure, op, err)
}

// EnsureCollection gets or creates the collection and checks its fingerprint
func (s *VectorStore) EnsureCollection(ctx context.Context) error {
	want := s.embed.Fingerprint()

	return s.db.Transaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO collections (name, fingerprint) VALUES ($1, $2) ON CONFLICT (name) DO NOTHING`,
			s.collection, want.String(),
		); err != nil {
			return storeErr("create collection", err)
		}

		var recorded string
		if err := tx.QueryRowContext(ctx,
			`SELECT fingerprint FROM collections WHERE name = $1 FOR UPDATE`, s.collection,
		).Scan(&recorded); err != nil {
			return storeErr("read collection", err)
		}
		if recorded == want.String() {
			return nil
		}

		var count int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM embeddings WHERE collection = $1`, s.collection,
		).Scan(&count); err != nil {
			return storeErr("count collection", err)
		}
		if count > 0 {
			return domain.EmbeddingMismatchError(s.collection, count, recorded, want)
		}

		s.logger.Info("recording collection embedding fingerprint",
			"collection", s.collection,
			"previous", recorded,
			"fingerprint", want.String(),
		)
		if _, err := tx.ExecContext(ctx,
			`UPDATE collections SET fingerprint = $2 WHERE name = $1`, s.collection, want.String(),
		); err != nil {
			return storeErr("update collection", err)
		}
		return nil
	})
}

// Upsert embeds chunks and writes them in one transaction
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

	return s.db.Transaction(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO embeddings (collection, id, document, source, metadata, embedding)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (collection, id) DO UPDATE SET
				document = EXCLUDED.document,
				source = EXCLUDED.source,
				metadata = EXCLUDED.metadata,
				embedding = EXCLUDED.embedding
		`)
		if err != nil {
			return storeErr("prepare upsert", err)
		}
		defer stmt.Close()

		for i, c := range chunks {
			meta, err := json.Marshal(c.Metadata.Map())
			if err != nil {
				return storeErr("encode metadata", err)
			}
			if _, err := stmt.ExecContext(ctx,
				s.collection,
				c.ID,
				c.Text,
				c.Metadata.Source,
				meta,
				pgvector.NewVector(vectors[i]),
			); err != nil {
				return storeErr("upsert", err)
			}
		}
		return nil
	})
}

// Query returns the nearest chunks to the first query
func (s *VectorStore) Query(ctx context.Context, q domain.VectorQuery) (*domain.RetrievalResult, error) {
	embedding, err := queryEmbedding(ctx, s.embed, q)
	if err != nil {
		return nil, err
	}

	n := q.NResults
	if n <= 0 {
		n = domain.DefaultTopK
	}

	var filter any
	if len(q.Filter) > 0 {
		data, err := json.Marshal(q.Filter)
		if err != nil {
			return nil, storeErr("encode filter", err)
		}
		filter = string(data)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document, metadata, embedding <=> $2 AS distance
		FROM embeddings
		WHERE collection = $1 AND ($4::jsonb IS NULL OR metadata @> $4::jsonb)
		ORDER BY distance
		LIMIT $3
	`, s.collection, pgvector.NewVector(embedding), n, filter)
	if err != nil {
		return nil, storeErr("query", err)
	}
	defer rows.Close()

	result := &domain.RetrievalResult{}
	for rows.Next() {
		var chunk domain.RetrievedChunk
		var meta []byte
		if err := rows.Scan(&chunk.ID, &chunk.Text, &meta, &chunk.Distance); err != nil {
			return nil, storeErr("scan", err)
		}
		var m map[string]any
		if err := json.Unmarshal(meta, &m); err != nil {
			return nil, storeErr("decode metadata", err)
		}
		chunk.Metadata = domain.ChunkMetadataFromMap(m)
		result.Chunks = append(result.Chunks, chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("query", err)
	}
	return result, nil
}

// DeleteStale removes chunks of source whose ids are not in keepIDs
func (s *VectorStore) DeleteStale(ctx context.Context, source string, keepIDs []string) (int, error) {
	if keepIDs == nil {
		keepIDs = []string{}
	}
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM embeddings
		WHERE collection = $1 AND source = $2 AND NOT (id = ANY($3))
	`, s.collection, source, pq.Array(keepIDs))
	if err != nil {
		return 0, storeErr("delete stale", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, storeErr("delete stale", err)
	}
	return int(n), nil
}

// Count returns the number of stored chunks
func (s *VectorStore) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM embeddings WHERE collection = $1`, s.collection,
	).Scan(&count); err != nil {
		return 0, storeErr("count", err)
	}
	return count, nil
}

func (s *VectorStore) SupportsFilter() bool { return true }

// HealthCheck verifies the database is reachable
func (s *VectorStore) HealthCheck(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// queryEmbedding returns the precomputed query vector or embeds the first text
func queryEmbedding(ctx context.Context, embed driven.EmbeddingFunction, q domain.VectorQuery) ([]float32, error) {
	if len(q.Embeddings) > 0 {
		return q.Embeddings[0], nil
	}
	if len(q.Texts) == 0 {
		return nil, fmt.Errorf("%w: query has neither texts nor embeddings", domain.ErrInvalidInput)
	}
	vectors, err := embed.Embed(ctx, q.Texts[:1])
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, errors.New("no query embedding produced")
	}
	return vectors[0], nil
}
