// Package stats keeps a local record of practice sends so the user can see
// which questions they rehearse and how often runs fail.
package stats

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"rehearse/internal/session"
)

// Store persists practice records in a local SQLite database.
type Store struct {
	db   *sql.DB
	path string
}

// Open creates or opens the stats database at path.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("stats store path must be set")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("prepare stats dir: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open stats store: %w", err)
	}

	if _, err := db.ExecContext(context.Background(), `
CREATE TABLE IF NOT EXISTS practice_sends (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	asked_at TIMESTAMP NOT NULL,
	mode TEXT NOT NULL,
	model TEXT NOT NULL,
	question TEXT NOT NULL,
	duration_ms INTEGER NOT NULL,
	chunks INTEGER NOT NULL,
	failed INTEGER NOT NULL DEFAULT 0
)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("init stats schema: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record inserts one practice record.
func (s *Store) Record(ctx context.Context, r session.Record) error {
	failed := 0
	if r.Failed {
		failed = 1
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO practice_sends (asked_at, mode, model, question, duration_ms, chunks, failed)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.When.UTC(), r.Mode, r.Model, r.Question, r.Duration.Milliseconds(), r.Chunks, failed)
	if err != nil {
		return fmt.Errorf("record practice send: %w", err)
	}
	return nil
}

// ModelSummary aggregates sends per model.
type ModelSummary struct {
	Model  string
	Sends  int
	Failed int
}

// Summary returns per-model totals, most used first.
func (s *Store) Summary(ctx context.Context) ([]ModelSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT model, COUNT(*), SUM(failed)
FROM practice_sends
GROUP BY model
ORDER BY COUNT(*) DESC, model`)
	if err != nil {
		return nil, fmt.Errorf("query summary: %w", err)
	}
	defer rows.Close()

	var out []ModelSummary
	for rows.Next() {
		var m ModelSummary
		if err := rows.Scan(&m.Model, &m.Sends, &m.Failed); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// RecentQuestion is one recently practiced question.
type RecentQuestion struct {
	AskedAt  time.Time
	Mode     string
	Question string
}

// Recent returns the n most recent sends, newest first.
func (s *Store) Recent(ctx context.Context, n int) ([]RecentQuestion, error) {
	if n <= 0 {
		n = 10
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT asked_at, mode, question
FROM practice_sends
ORDER BY id DESC
LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("query recent: %w", err)
	}
	defer rows.Close()

	var out []RecentQuestion
	for rows.Next() {
		var r RecentQuestion
		if err := rows.Scan(&r.AskedAt, &r.Mode, &r.Question); err != nil {
			return nil, fmt.Errorf("scan recent: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
