// Package journal provides the SQLite-backed ledger of processed
// recordings. Each successful pipeline run is recorded here so repeated
// submissions of the same transcript can be detected and the UI can
// list recent activity.
package journal

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/starford/dagaz/internal/models"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS recordings (
	id         TEXT PRIMARY KEY,
	source     TEXT NOT NULL DEFAULT 'api',
	transcript TEXT NOT NULL DEFAULT '',
	checksum   TEXT NOT NULL DEFAULT '',
	page_id    TEXT NOT NULL DEFAULT '',
	page_url   TEXT NOT NULL DEFAULT '',
	diary_date TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_recordings_checksum ON recordings(checksum, diary_date);
CREATE INDEX IF NOT EXISTS idx_recordings_created ON recordings(created_at);
`

// DB wraps a sql.DB with journal operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the journal database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("journal: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("journal: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("journal: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Record inserts a processed recording.
func (db *DB) Record(r models.Recording) error {
	_, err := db.conn.Exec(`
		INSERT INTO recordings (id, source, transcript, checksum, page_id, page_url, diary_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.Source, r.Transcript, r.Checksum, r.PageID, r.PageURL,
		r.DiaryDate.Format("2006-01-02"), r.CreatedAt)
	if err != nil {
		return fmt.Errorf("journal: insert recording: %w", err)
	}
	return nil
}

// Find returns the recording with the given transcript checksum on the
// given diary date, or nil when none exists.
func (db *DB) Find(checksum string, diaryDate time.Time) (*models.Recording, error) {
	row := db.conn.QueryRow(`
		SELECT id, source, transcript, checksum, page_id, page_url, diary_date, created_at
		FROM recordings
		WHERE checksum = ? AND diary_date = ?
		ORDER BY created_at DESC
		LIMIT 1
	`, checksum, diaryDate.Format("2006-01-02"))
	r, err := scanRecording(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("journal: find recording: %w", err)
	}
	return r, nil
}

// List returns recordings newest first, with the total count.
func (db *DB) List(limit, offset int) ([]models.Recording, int, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var total int
	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM recordings`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("journal: count recordings: %w", err)
	}

	rows, err := db.conn.Query(`
		SELECT id, source, transcript, checksum, page_id, page_url, diary_date, created_at
		FROM recordings
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("journal: list recordings: %w", err)
	}
	defer rows.Close()

	out := []models.Recording{}
	for rows.Next() {
		r, err := scanRecording(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("journal: scan recording: %w", err)
		}
		out = append(out, *r)
	}
	return out, total, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecording(s scanner) (*models.Recording, error) {
	var r models.Recording
	var diaryDate string
	if err := s.Scan(&r.ID, &r.Source, &r.Transcript, &r.Checksum, &r.PageID, &r.PageURL, &diaryDate, &r.CreatedAt); err != nil {
		return nil, err
	}
	if d, err := time.Parse("2006-01-02", diaryDate); err == nil {
		r.DiaryDate = d
	}
	return &r, nil
}
