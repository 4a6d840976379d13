package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

type Storage struct {
	db *sql.DB
}

func New(dbPath string) (*Storage, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	s := &Storage{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS planned_events (
			event_key TEXT PRIMARY KEY,
			summary TEXT NOT NULL DEFAULT '',
			start_time DATETIME NOT NULL,
			notified_at DATETIME,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_planned_events_start ON planned_events(start_time)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("exec %q: %w", firstLine(m), err)
		}
	}
	return nil
}

// IsPlanned reports whether a notification was already planned for key
func (s *Storage) IsPlanned(key string) (bool, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(1) FROM planned_events WHERE event_key = ?`, key).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("query planned event: %w", err)
	}
	return n > 0, nil
}

// MarkPlanned records key. Planning the same key twice is a no-op.
func (s *Storage) MarkPlanned(key, summary string, start time.Time) error {
	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO planned_events (event_key, summary, start_time) VALUES (?, ?, ?)`,
		key, summary, start.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert planned event: %w", err)
	}
	return nil
}

// MarkNotified stores the delivery time of a planned event
func (s *Storage) MarkNotified(key string, at time.Time) error {
	_, err := s.db.Exec(`UPDATE planned_events SET notified_at = ? WHERE event_key = ?`, at.UTC(), key)
	if err != nil {
		return fmt.Errorf("update planned event: %w", err)
	}
	return nil
}

// NotifiedAt returns when key was delivered, or nil if it is still pending
func (s *Storage) NotifiedAt(key string) (*time.Time, error) {
	var at sql.NullTime
	err := s.db.QueryRow(`SELECT notified_at FROM planned_events WHERE event_key = ?`, key).Scan(&at)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query planned event: %w", err)
	}
	if !at.Valid {
		return nil, nil
	}
	return &at.Time, nil
}

// PruneBefore deletes planned events that started before t
func (s *Storage) PruneBefore(t time.Time) (int64, error) {
	res, err := s.db.Exec(`DELETE FROM planned_events WHERE start_time < ?`, t.UTC())
	if err != nil {
		return 0, fmt.Errorf("prune planned events: %w", err)
	}
	return res.RowsAffected()
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
	}
	return s
}
