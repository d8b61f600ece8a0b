package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/randalmurphal/flowdeck/pkg/flowdeck"
)

// timeLayout is fixed-width so text ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore persists flows and documents to SQLite.
// It is suitable for single-process production use.
type SQLiteStore struct {
	db     *sql.DB
	opts   options
	mu     sync.RWMutex
	closed bool
}

var (
	_ Store     = (*SQLiteStore)(nil)
	_ Documents = (*SQLiteStore)(nil)
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS flows (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		nodes TEXT NOT NULL,
		edges TEXT NOT NULL,
		user_id TEXT NOT NULL DEFAULT '',
		user_name TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_flows_user_name ON flows(user_name)`,
	`CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		file_name TEXT NOT NULL,
		content_type TEXT NOT NULL DEFAULT '',
		size INTEGER NOT NULL,
		data BLOB NOT NULL,
		created_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_documents_user_id ON documents(user_id)`,
}

// NewSQLiteStore opens (creating if needed) a SQLite database.
// The path should be a file path (e.g., "./flowdeck.db") or ":memory:" for testing.
func NewSQLiteStore(path string, opts ...Option) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// A :memory: database lives in a single connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	for _, stmt := range sqliteSchema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("create schema: %w", err)
		}
	}

	return &SQLiteStore{db: db, opts: applyOptions(opts)}, nil
}

// Save implements Store.
func (s *SQLiteStore) Save(ctx context.Context, f flowdeck.Flow) (flowdeck.Flow, error) {
	nodes, edges, err := flowdeck.EncodeParts(graphOf(f))
	if err != nil {
		return flowdeck.Flow{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return flowdeck.Flow{}, ErrStoreClosed
	}

	now := s.opts.now().UTC().Format(timeLayout)
	if f.ID == "" {
		if err := validateNew(f); err != nil {
			return flowdeck.Flow{}, err
		}
		f.ID = uuid.NewString()
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO flows (id, name, nodes, edges, user_id, user_name, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, f.ID, f.Name, nodes, edges, f.UserID, f.UserName, now, now)
		if err != nil {
			return flowdeck.Flow{}, fmt.Errorf("insert flow: %w", err)
		}
		return s.load(ctx, f.ID)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE flows
		SET nodes = ?, edges = ?, updated_at = ?, name = COALESCE(NULLIF(?, ''), name)
		WHERE id = ?
	`, nodes, edges, now, f.Name, f.ID)
	if err != nil {
		return flowdeck.Flow{}, fmt.Errorf("update flow: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return flowdeck.Flow{}, notFound("flow", f.ID)
	}
	return s.load(ctx, f.ID)
}

// Load implements Store.
func (s *SQLiteStore) Load(ctx context.Context, id string) (flowdeck.Flow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return flowdeck.Flow{}, ErrStoreClosed
	}
	return s.load(ctx, id)
}

// load must be called with mu held.
func (s *SQLiteStore) load(ctx context.Context, id string) (flowdeck.Flow, error) {
	var (
		f                flowdeck.Flow
		nodes, edges     string
		created, updated string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, nodes, edges, user_id, user_name, created_at, updated_at
		FROM flows WHERE id = ?
	`, id).Scan(&f.ID, &f.Name, &nodes, &edges, &f.UserID, &f.UserName, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return flowdeck.Flow{}, notFound("flow", id)
	}
	if err != nil {
		return flowdeck.Flow{}, fmt.Errorf("load flow: %w", err)
	}

	f.Graph, err = s.opts.decodeGraph(id, nodes, edges)
	if err != nil {
		return flowdeck.Flow{}, err
	}
	f.CreatedAt, _ = time.Parse(timeLayout, created)
	f.UpdatedAt, _ = time.Parse(timeLayout, updated)
	return f, nil
}

// Delete implements Store.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM flows WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete flow: %w", err)
	}
	return nil
}

// List implements Store.
func (s *SQLiteStore) List(ctx context.Context, ownerName string) ([]flowdeck.FlowSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, created_at FROM flows
		WHERE user_name = ?
		ORDER BY created_at DESC, rowid DESC
	`, ownerName)
	if err != nil {
		return nil, fmt.Errorf("list flows: %w", err)
	}
	defer rows.Close()

	out := []flowdeck.FlowSummary{}
	for rows.Next() {
		var sum flowdeck.FlowSummary
		var created string
		if err := rows.Scan(&sum.ID, &sum.Name, &created); err != nil {
			return nil, fmt.Errorf("scan flow: %w", err)
		}
		sum.CreatedAt, _ = time.Parse(timeLayout, created)
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate flows: %w", err)
	}
	return out, nil
}

// SaveDocument implements Documents.
func (s *SQLiteStore) SaveDocument(ctx context.Context, doc Document) (Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return Document{}, ErrStoreClosed
	}

	doc.ID = uuid.NewString()
	doc.CreatedAt = s.opts.now().UTC()
	doc.Size = int64(len(doc.Data))
	if doc.Data == nil {
		doc.Data = []byte{}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (id, user_id, file_name, content_type, size, data, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, doc.ID, doc.UserID, doc.FileName, doc.ContentType, doc.Size, doc.Data, doc.CreatedAt.Format(timeLayout))
	if err != nil {
		return Document{}, fmt.Errorf("insert document: %w", err)
	}
	return doc, nil
}

// GetDocument implements Documents.
func (s *SQLiteStore) GetDocument(ctx context.Context, id string) (Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return Document{}, ErrStoreClosed
	}

	var doc Document
	var created string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, file_name, content_type, size, data, created_at
		FROM documents WHERE id = ?
	`, id).Scan(&doc.ID, &doc.UserID, &doc.FileName, &doc.ContentType, &doc.Size, &doc.Data, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, notFound("document", id)
	}
	if err != nil {
		return Document{}, fmt.Errorf("load document: %w", err)
	}
	doc.CreatedAt, _ = time.Parse(timeLayout, created)
	return doc, nil
}

// ListDocuments implements Documents.
func (s *SQLiteStore) ListDocuments(ctx context.Context, userID string, limit int) ([]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, file_name, content_type, size, created_at
		FROM documents
		WHERE user_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	out := []Document{}
	for rows.Next() {
		var doc Document
		var created string
		if err := rows.Scan(&doc.ID, &doc.UserID, &doc.FileName, &doc.ContentType, &doc.Size, &created); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		doc.CreatedAt, _ = time.Parse(timeLayout, created)
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return out, nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}
	return s.db.PingContext(ctx)
}
