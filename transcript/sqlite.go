package transcript

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
	CREATE TABLE IF NOT EXISTS messages (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		conversation TEXT NOT NULL,
		text TEXT NOT NULL,
		isUser INTEGER NOT NULL,
		status TEXT NOT NULL,
		createdAt REAL NOT NULL
	);
	CREATE INDEX IF NOT EXISTS messages_conversation ON messages(conversation, seq);
`

// SQLiteStore keeps transcripts in a local SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path. ":memory:" is
// accepted for tests.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Save inserts m or updates its text and status; position is kept.
func (s *SQLiteStore) Save(ctx context.Context, conversation string, m Message) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (id, conversation, text, isUser, status, createdAt)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET text = excluded.text, status = excluded.status
	`, m.ID, conversation, m.Text, boolToInt(m.IsUser), string(m.Status), timeToUnix(m.Timestamp))
	if err != nil {
		return fmt.Errorf("save message: %w", err)
	}
	return nil
}

// Load returns the newest limit messages in order. limit <= 0 loads all.
func (s *SQLiteStore) Load(ctx context.Context, conversation string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, text, isUser, status, createdAt FROM (
			SELECT seq, id, text, isUser, status, createdAt
			FROM messages
			WHERE conversation = ?
			ORDER BY seq DESC
			LIMIT ?
		) ORDER BY seq ASC
	`, conversation, limit)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var m Message
		var isUser int
		var status string
		var createdAt float64
		if err := rows.Scan(&m.ID, &m.Text, &isUser, &status, &createdAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.IsUser = isUser != 0
		m.Status = Status(status)
		m.Timestamp = timeFromUnix(createdAt)
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

func (s *SQLiteStore) Clear(ctx context.Context, conversation string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE conversation = ?`, conversation)
	return err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func timeToUnix(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

func timeFromUnix(f float64) time.Time {
	sec := int64(f)
	nsec := int64((f - float64(sec)) * 1e9)
	return time.Unix(sec, nsec)
}
