package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.DocumentStore = (*DocumentStore)(nil)

// DocumentStore implements driven.DocumentStore using PostgreSQL
type DocumentStore struct {
	db *DB
}

// NewDocumentStore creates a new DocumentStore
func NewDocumentStore(db *DB) *DocumentStore {
	return &DocumentStore{db: db}
}

const documentColumns = `name, document_type, source, chunk_count, embedding_provider, ingested_at`

// Save creates or replaces the record for doc.Name
func (s *DocumentStore) Save(ctx context.Context, doc *domain.Document) error {
	query := `
		INSERT INTO documents (` + documentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (name) DO UPDATE SET
			document_type = EXCLUDED.document_type,
			source = EXCLUDED.source,
			chunk_count = EXCLUDED.chunk_count,
			embedding_provider = EXCLUDED.embedding_provider,
			ingested_at = EXCLUDED.ingested_at
	`

	_, err := s.db.ExecContext(ctx, query,
		doc.Name,
		string(doc.Type),
		doc.Source,
		doc.ChunkCount,
		doc.EmbeddingProvider,
		doc.IngestedAt,
	)
	return err
}

// Get retrieves a document by name
func (s *DocumentStore) Get(ctx context.Context, name string) (*domain.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE name = $1`

	doc, err := scanDocument(s.db.QueryRowContext(ctx, query, name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return doc, err
}

// List returns documents, most recently ingested first. limit <= 0 means no limit.
func (s *DocumentStore) List(ctx context.Context, limit, offset int) ([]*domain.Document, error) {
	var lim any
	if limit > 0 {
		lim = limit
	}
	query := `
		SELECT ` + documentColumns + `
		FROM documents
		ORDER BY ingested_at DESC, name
		LIMIT $1 OFFSET $2
	`

	rows, err := s.db.QueryContext(ctx, query, lim, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	docs := make([]*domain.Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// Delete removes a document record
func (s *DocumentStore) Delete(ctx context.Context, name string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE name = $1`, name)
	if err != nil {
		return err
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Count returns total document count
func (s *DocumentStore) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&count)
	return count, err
}

// rowScanner is satisfied by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*domain.Document, error) {
	var doc domain.Document
	var docType string
	if err := row.Scan(
		&doc.Name,
		&docType,
		&doc.Source,
		&doc.ChunkCount,
		&doc.EmbeddingProvider,
		&doc.IngestedAt,
	); err != nil {
		return nil, err
	}
	doc.Type = domain.DocumentType(docType)
	return &doc, nil
}
