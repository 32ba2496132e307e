package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id            TEXT PRIMARY KEY,
	created_at    INTEGER NOT NULL,
	request_count INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS messages (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL REFERENCES sessions(id),
	role       TEXT NOT NULL,
	content    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS messages_session ON messages(session_id, seq);
`

// SQLite persists sessions in a single database file.
type SQLite struct {
	db *sql.DB
}

func OpenSQLite(path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one writer keeps RecordRequest increments serialized
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init sqlite schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Create(ctx context.Context, id string, createdAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, created_at, request_count) VALUES (?, ?, 0)`,
		id, createdAt.UnixMilli())
	return err
}

func (s *SQLite) Get(ctx context.Context, id string) (Session, error) {
	var (
		out     = Session{ID: id, Messages: []Message{}}
		created int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT created_at, request_count FROM sessions WHERE id = ?`, id).
		Scan(&created, &out.RequestCount)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, ErrSessionNotFound
	}
	if err != nil {
		return Session{}, err
	}
	out.CreatedAt = time.UnixMilli(created)

	rows, err := s.db.QueryContext(ctx,
		`SELECT role, content FROM messages WHERE session_id = ? ORDER BY seq`, id)
	if err != nil {
		return Session{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.Role, &m.Content); err != nil {
			return Session{}, err
		}
		out.Messages = append(out.Messages, m)
	}
	return out, rows.Err()
}

func (s *SQLite) RecordRequest(ctx context.Context, id string, msg Message) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`UPDATE sessions SET request_count = request_count + 1 WHERE id = ?`, id)
	if err != nil {
		return 0, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return 0, ErrSessionNotFound
	}
	var count int
	if err := tx.QueryRowContext(ctx,
		`SELECT request_count FROM sessions WHERE id = ?`, id).Scan(&count); err != nil {
		return 0, err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO messages (session_id, role, content) VALUES (?, ?, ?)`,
		id, msg.Role, msg.Content); err != nil {
		return 0, err
	}
	return count, tx.Commit()
}

func (s *SQLite) AppendMessage(ctx context.Context, id string, msg Message) error {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM sessions WHERE id = ?`, id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrSessionNotFound
	}
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO messages (session_id, role, content) VALUES (?, ?, ?)`,
		id, msg.Role, msg.Content)
	return err
}

func (s *SQLite) Close() error { return s.db.Close() }
