package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/randalmurphal/flowdeck/pkg/flowdeck"
)

// PostgresStore persists flows and documents to PostgreSQL through a pgx pool.
type PostgresStore struct {
	pool *pgxpool.Pool
	opts options
	own  bool
}

var (
	_ Store     = (*PostgresStore)(nil)
	_ Documents = (*PostgresStore)(nil)
)

const postgresSchema = `
	CREATE TABLE IF NOT EXISTS flows (
		id UUID PRIMARY KEY,
		name TEXT NOT NULL,
		nodes TEXT NOT NULL,
		edges TEXT NOT NULL,
		user_id TEXT NOT NULL DEFAULT '',
		user_name TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		seq BIGSERIAL
	);
	CREATE INDEX IF NOT EXISTS idx_flows_user_name ON flows (user_name);

	CREATE TABLE IF NOT EXISTS documents (
		id UUID PRIMARY KEY,
		user_id TEXT NOT NULL,
		file_name TEXT NOT NULL,
		content_type TEXT NOT NULL DEFAULT '',
		size BIGINT NOT NULL,
		data BYTEA NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		seq BIGSERIAL
	);
	CREATE INDEX IF NOT EXISTS idx_documents_user_id ON documents (user_id);
`

// NewPostgresStore connects to url and creates the tables if needed.
// The store owns the pool and closes it on Close.
func NewPostgresStore(ctx context.Context, url string, opts ...Option) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	s, err := NewPostgresStoreFromPool(ctx, pool, opts...)
	if err != nil {
		pool.Close()
		return nil, err
	}
	s.own = true
	return s, nil
}

// NewPostgresStoreFromPool uses an existing pool. Close leaves the pool open.
func NewPostgresStoreFromPool(ctx context.Context, pool *pgxpool.Pool, opts ...Option) (*PostgresStore, error) {
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &PostgresStore{pool: pool, opts: applyOptions(opts)}, nil
}

// Save implements Store.
func (s *PostgresStore) Save(ctx context.Context, f flowdeck.Flow) (flowdeck.Flow, error) {
	nodes, edges, err := flowdeck.EncodeParts(graphOf(f))
	if err != nil {
		return flowdeck.Flow{}, err
	}

	now := s.opts.now()
	if f.ID == "" {
		if err := validateNew(f); err != nil {
			return flowdeck.Flow{}, err
		}
		f.ID = uuid.NewString()
		_, err := s.pool.Exec(ctx, `
			INSERT INTO flows (id, name, nodes, edges, user_id, user_name, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		`, f.ID, f.Name, nodes, edges, f.UserID, f.UserName, now)
		if err != nil {
			return flowdeck.Flow{}, fmt.Errorf("insert flow: %w", err)
		}
		return s.Load(ctx, f.ID)
	}

	if _, err := uuid.Parse(f.ID); err != nil {
		return flowdeck.Flow{}, notFound("flow", f.ID)
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE flows
		SET nodes = $1, edges = $2, updated_at = $3, name = COALESCE(NULLIF($4, ''), name)
		WHERE id = $5
	`, nodes, edges, now, f.Name, f.ID)
	if err != nil {
		return flowdeck.Flow{}, fmt.Errorf("update flow: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return flowdeck.Flow{}, notFound("flow", f.ID)
	}
	return s.Load(ctx, f.ID)
}

// Load implements Store.
func (s *PostgresStore) Load(ctx context.Context, id string) (flowdeck.Flow, error) {
	if _, err := uuid.Parse(id); err != nil {
		return flowdeck.Flow{}, notFound("flow", id)
	}

	var f flowdeck.Flow
	var nodes, edges string
	err := s.pool.QueryRow(ctx, `
		SELECT id::text, name, nodes, edges, user_id, user_name, created_at, updated_at
		FROM flows WHERE id = $1
	`, id).Scan(&f.ID, &f.Name, &nodes, &edges, &f.UserID, &f.UserName, &f.CreatedAt, &f.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return flowdeck.Flow{}, notFound("flow", id)
	}
	if err != nil {
		return flowdeck.Flow{}, fmt.Errorf("load flow: %w", err)
	}

	f.Graph, err = s.opts.decodeGraph(id, nodes, edges)
	if err != nil {
		return flowdeck.Flow{}, err
	}
	return f, nil
}

// Delete implements Store.
func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return nil
	}
	if _, err := s.pool.Exec(ctx, `DELETE FROM flows WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete flow: %w", err)
	}
	return nil
}

// List implements Store.
func (s *PostgresStore) List(ctx context.Context, ownerName string) ([]flowdeck.FlowSummary, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id::text, name, created_at FROM flows
		WHERE user_name = $1
		ORDER BY created_at DESC, seq DESC
	`, ownerName)
	if err != nil {
		return nil, fmt.Errorf("list flows: %w", err)
	}
	defer rows.Close()

	out := []flowdeck.FlowSummary{}
	for rows.Next() {
		var sum flowdeck.FlowSummary
		if err := rows.Scan(&sum.ID, &sum.Name, &sum.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan flow: %w", err)
		}
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate flows: %w", err)
	}
	return out, nil
}

// SaveDocument implements Documents.
func (s *PostgresStore) SaveDocument(ctx context.Context, doc Document) (Document, error) {
	doc.ID = uuid.NewString()
	doc.CreatedAt = s.opts.now()
	doc.Size = int64(len(doc.Data))
	if doc.Data == nil {
		doc.Data = []byte{}
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO documents (id, user_id, file_name, content_type, size, data, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, doc.ID, doc.UserID, doc.FileName, doc.ContentType, doc.Size, doc.Data, doc.CreatedAt)
	if err != nil {
		return Document{}, fmt.Errorf("insert document: %w", err)
	}
	return doc, nil
}

// GetDocument implements Documents.
func (s *PostgresStore) GetDocument(ctx context.Context, id string) (Document, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Document{}, notFound("document", id)
	}

	var doc Document
	err := s.pool.QueryRow(ctx, `
		SELECT id::text, user_id, file_name, content_type, size, data, created_at
		FROM documents WHERE id = $1
	`, id).Scan(&doc.ID, &doc.UserID, &doc.FileName, &doc.ContentType, &doc.Size, &doc.Data, &doc.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Document{}, notFound("document", id)
	}
	if err != nil {
		return Document{}, fmt.Errorf("load document: %w", err)
	}
	return doc, nil
}

// ListDocuments implements Documents.
func (s *PostgresStore) ListDocuments(ctx context.Context, userID string, limit int) ([]Document, error) {
	var lim *int
	if limit > 0 {
		lim = &limit
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id::text, user_id, file_name, content_type, size, created_at
		FROM documents
		WHERE user_id = $1
		ORDER BY created_at DESC, seq DESC
		LIMIT $2
	`, userID, lim)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}

	docs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Document, error) {
		var doc Document
		err := row.Scan(&doc.ID, &doc.UserID, &doc.FileName, &doc.ContentType, &doc.Size, &doc.CreatedAt)
		return doc, err
	})
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return docs, nil
}

// Close implements Store. The pool is closed only if the store opened it.
func (s *PostgresStore) Close() error {
	if s.own {
		s.pool.Close()
	}
	return nil
}

// pingTimeout bounds the health check in Ping.
const pingTimeout = 2 * time.Second

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return s.pool.Ping(ctx)
}
