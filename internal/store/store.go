// Package store persists conversation history in a local SQLite database.
// The gateway treats persistence as best effort: writes that fail are
// logged by the caller and never interrupt a live stream.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

// Message is one persisted conversation turn.
type Message struct {
	ID        int64
	SessionID string
	Role      string
	Text      string
	CreatedAt time.Time
}

// Fact is a remembered key/value pair scoped to a user.
type Fact struct {
	UserID    string
	Key       string
	Value     string
	UpdatedAt time.Time
}

// Store wraps the SQLite-backed conversation history.
type Store struct {
	db     *sql.DB
	logger zerolog.Logger
	clock  func() time.Time
}

// Open creates the database file (and its directory) if needed and
// applies the schema.
func Open(ctx context.Context, path string, logger zerolog.Logger) (*Store, error) {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	s := &Store{db: db, logger: logger, clock: time.Now}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	ddl := `
CREATE TABLE IF NOT EXISTS sessions (
    session_id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    last_seen_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS messages (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id TEXT NOT NULL,
    role TEXT NOT NULL,
    text TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    FOREIGN KEY(session_id) REFERENCES sessions(session_id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_messages_session_created ON messages(session_id, created_at);
CREATE TABLE IF NOT EXISTS facts (
    user_id TEXT NOT NULL,
    key TEXT NOT NULL,
    value TEXT NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY(user_id, key)
);
`
	_, err := s.db.ExecContext(ctx, ddl)
	return err
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping reports whether the database is reachable; used by readiness checks.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// TouchSession ensures a session row exists and refreshes its last-seen time.
func (s *Store) TouchSession(ctx context.Context, userID, sessionID string) error {
	now := s.clock().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions(session_id, user_id, created_at, last_seen_at)
		 VALUES(?, ?, ?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET user_id=excluded.user_id, last_seen_at=excluded.last_seen_at`,
		sessionID, userID, now, now)
	return err
}

// AppendMessage records one conversation turn.
func (s *Store) AppendMessage(ctx context.Context, sessionID, role, text string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages(session_id, role, text, created_at) VALUES(?, ?, ?, ?)`,
		sessionID, role, text, s.clock().UTC())
	return err
}

// RecentMessages returns up to limit turns for a session, oldest first.
func (s *Store) RecentMessages(ctx context.Context, sessionID string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, role, text, created_at FROM (
		     SELECT id, session_id, role, text, created_at
		     FROM messages WHERE session_id = ? ORDER BY id DESC LIMIT ?
		 ) ORDER BY id ASC`, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var m Message
		var created string
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Text, &created); err != nil {
			return nil, err
		}
		if ts, err := time.Parse(time.RFC3339Nano, created); err == nil {
			m.CreatedAt = ts
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// UpsertFact stores or replaces one remembered key for a user.
func (s *Store) UpsertFact(ctx context.Context, userID, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO facts(user_id, key, value, updated_at)
		 VALUES(?, ?, ?, ?)
		 ON CONFLICT(user_id, key) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at`,
		userID, key, value, s.clock().UTC())
	return err
}

// Facts returns all remembered keys for a user.
func (s *Store) Facts(ctx context.Context, userID string) ([]Fact, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, key, value, updated_at FROM facts WHERE user_id = ? ORDER BY key ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var facts []Fact
	for rows.Next() {
		var f Fact
		var updated string
		if err := rows.Scan(&f.UserID, &f.Key, &f.Value, &updated); err != nil {
			return nil, err
		}
		if ts, err := time.Parse(time.RFC3339Nano, updated); err == nil {
			f.UpdatedAt = ts
		}
		facts = append(facts, f)
	}
	return facts, rows.Err()
}
