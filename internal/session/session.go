package session

import (
	"time"

	"github.com/google/uuid"
)

// DefaultMaxAge is the inactivity window after which a session expires.
const DefaultMaxAge = 24 * time.Hour

// Session holds the conversation state for one client.
type Session struct {
	ID          string      `json:"id"`
	History     Ledger      `json:"history"`
	Preferences Preferences `json:"preferences"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}

// New creates a new session with a unique ID and default preferences.
func New() *Session {
	return NewWithID(newID())
}

// NewWithID creates an empty session under an already issued ID.
func NewWithID(id string) *Session {
	now := time.Now()
	return &Session{
		ID:          id,
		Preferences: DefaultPreferences(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func newID() string {
	return uuid.New().String()
}

// Clone returns a deep copy so callers never alias stored state.
func (s *Session) Clone() *Session {
	c := *s
	c.History = s.History.Turns()
	return &c
}

// Expired reports whether the session has been idle longer than maxAge.
// A non-positive maxAge disables expiry.
func (s *Session) Expired(now time.Time, maxAge time.Duration) bool {
	if maxAge <= 0 {
		return false
	}
	return now.Sub(s.UpdatedAt) > maxAge
}
