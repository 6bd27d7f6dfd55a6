package docex

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS documents (
	id         TEXT PRIMARY KEY,
	text       TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS tasks (
	id          TEXT PRIMARY KEY,
	document_id TEXT NOT NULL,
	status      TEXT NOT NULL,
	payload     TEXT NOT NULL,
	created_at  TIMESTAMP NOT NULL,
	updated_at  TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tasks_document ON tasks(document_id);
`

// SQLiteStore is a Store backed by a SQLite database file. Task snapshots
// are stored as JSON payloads with status and document id lifted into
// columns for querying.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore opens (and if needed creates) a SQLite store at path,
// creating parent directories as required. WAL mode is enabled for
// concurrent readers.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite store: blank path")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating tables: %w", err)
	}
	return &SQLiteStore{db: db, path: path}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// Path returns the database file path.
func (s *SQLiteStore) Path() string { return s.path }

func (s *SQLiteStore) PutTask(ctx context.Context, snap *TaskSnapshot) error {
	if snap.ID == "" {
		return fmt.Errorf("put task: blank id")
	}
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO tasks (id, document_id, status, payload, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET status=excluded.status,
			payload=excluded.payload, updated_at=excluded.updated_at`,
		snap.ID, snap.DocumentID, string(snap.Status), string(payload),
		snap.CreatedAt.UTC(), snap.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("store task %s: %w", snap.ID, err)
	}
	return nil
}

func (s *SQLiteStore) GetTask(ctx context.Context, id string) (*TaskSnapshot, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM tasks WHERE id = ?`, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load task %s: %w", id, err)
	}
	var snap TaskSnapshot
	if err := json.Unmarshal([]byte(payload), &snap); err != nil {
		return nil, fmt.Errorf("decode task %s: %w", id, err)
	}
	return &snap, nil
}

func (s *SQLiteStore) DeleteTask(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete task %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) ListTasks(ctx context.Context) ([]*TaskSnapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM tasks ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var out []*TaskSnapshot
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		var snap TaskSnapshot
		if err := json.Unmarshal([]byte(payload), &snap); err != nil {
			return nil, fmt.Errorf("decode task: %w", err)
		}
		out = append(out, &snap)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) PutDocument(ctx context.Context, doc *Document) error {
	if doc.ID == "" {
		return fmt.Errorf("put document: blank id")
	}
	created := doc.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (id, text, created_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET text=excluded.text`,
		doc.ID, doc.Text, created.UTC())
	if err != nil {
		return fmt.Errorf("store document %s: %w", doc.ID, err)
	}
	return nil
}

func (s *SQLiteStore) GetDocument(ctx context.Context, id string) (*Document, error) {
	doc := &Document{ID: id}
	err := s.db.QueryRowContext(ctx,
		`SELECT text, created_at FROM documents WHERE id = ?`, id).
		Scan(&doc.Text, &doc.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load document %s: %w", id, err)
	}
	return doc, nil
}

func (s *SQLiteStore) DeleteDocument(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete document %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) ListDocuments(ctx context.Context) ([]*Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, text, created_at FROM documents ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var out []*Document
	for rows.Next() {
		doc := &Document{}
		if err := rows.Scan(&doc.ID, &doc.Text, &doc.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}
