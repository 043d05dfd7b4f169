package chat

import (
	"strings"

	"github.com/gemchat/gemchat/internal/session"
)

// ValidationError reports rejected request input, one entry per field.
type ValidationError struct {
	Fields []session.FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		msgs[i] = f.String()
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

func invalidMessage() *ValidationError {
	return &ValidationError{Fields: []session.FieldError{{Field: "message", Message: "Message cannot be empty"}}}
}

// SessionError wraps a failure of the session store.
type SessionError struct {
	Op  string
	Err error
}

func (e *SessionError) Error() string {
	return "session " + e.Op + ": " + e.Err.Error()
}

func (e *SessionError) Unwrap() error { return e.Err }
