package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const createTableSQL = `
CREATE TABLE IF NOT EXISTS sessions (
    id          TEXT PRIMARY KEY,
    created_at  INTEGER NOT NULL,
    updated_at  INTEGER NOT NULL,
    preferences TEXT NOT NULL DEFAULT '{}',
    history     TEXT NOT NULL DEFAULT '[]'
);
CREATE INDEX IF NOT EXISTS idx_sessions_updated_at ON sessions(updated_at);
`

// MemoryDSN opens a process-local SQLite database that vanishes on exit.
const MemoryDSN = ":memory:"

// SQLiteStore implements Store backed by a SQLite database.
// Timestamps are stored as Unix nanoseconds so expiry can be swept in SQL.
type SQLiteStore struct {
	db     *sql.DB
	maxAge time.Duration
	now    func() time.Time
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) a SQLite database at dsn and ensures the
// schema exists. dsn may be a file path, a "file:" URI or MemoryDSN.
func NewSQLiteStore(dsn string, maxAge time.Duration) (*SQLiteStore, error) {
	if dsn == "" {
		dsn = MemoryDSN
	}
	inMemory := dsn == MemoryDSN || strings.Contains(dsn, "mode=memory")
	if !inMemory && !strings.HasPrefix(dsn, "file:") {
		if err := os.MkdirAll(filepath.Dir(dsn), 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if inMemory {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	} else if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	return &SQLiteStore{db: db, maxAge: maxAge, now: time.Now}, nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, created_at, updated_at, preferences, history
		FROM sessions WHERE id = ?`, id)

	var sess Session
	var createdAt, updatedAt int64
	var prefJSON, histJSON string
	err := row.Scan(&sess.ID, &createdAt, &updatedAt, &prefJSON, &histJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	sess.CreatedAt = time.Unix(0, createdAt)
	sess.UpdatedAt = time.Unix(0, updatedAt)

	if sess.Expired(s.now(), s.maxAge) {
		if err := s.Delete(ctx, id); err != nil {
			return nil, err
		}
		return nil, ErrNotFound
	}

	if err := json.Unmarshal([]byte(prefJSON), &sess.Preferences); err != nil {
		return nil, fmt.Errorf("unmarshal preferences: %w", err)
	}
	if err := json.Unmarshal([]byte(histJSON), &sess.History); err != nil {
		return nil, fmt.Errorf("unmarshal history: %w", err)
	}
	return &sess, nil
}

func (s *SQLiteStore) Save(ctx context.Context, sess *Session) error {
	sess.UpdatedAt = s.now()

	prefJSON, err := json.Marshal(sess.Preferences)
	if err != nil {
		return fmt.Errorf("marshal preferences: %w", err)
	}
	histJSON, err := json.Marshal(sess.History.Turns())
	if err != nil {
		return fmt.Errorf("marshal history: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO sessions (id, created_at, updated_at, preferences, history)
		VALUES (?, ?, ?, ?, ?)`,
		sess.ID,
		sess.CreatedAt.UnixNano(),
		sess.UpdatedAt.UnixNano(),
		string(prefJSON),
		string(histJSON),
	)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Touch(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE sessions SET updated_at = ? WHERE id = ?", s.now().UnixNano(), id)
	if err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Sweep(ctx context.Context) (int, error) {
	if s.maxAge <= 0 {
		return 0, nil
	}
	cutoff := s.now().Add(-s.maxAge).UnixNano()
	result, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE updated_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("sweep sessions: %w", err)
	}
	n, _ := result.RowsAffected()
	return int(n), nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
