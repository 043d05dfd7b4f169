package session

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when a session is missing or has expired.
var ErrNotFound = errors.New("session not found")

// Store abstracts session persistence (memory, SQLite, etc.).
// Implementations are safe for concurrent use and hand out copies.
type Store interface {
	Get(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, s *Session) error
	// Touch refreshes the inactivity clock of an existing session.
	Touch(ctx context.Context, id string) error
	// Delete is idempotent: deleting a missing session is not an error.
	Delete(ctx context.Context, id string) error
	// Sweep evicts every expired session and reports how many were removed.
	Sweep(ctx context.Context) (int, error)
	Close() error
}
