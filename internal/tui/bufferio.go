package tui

import (
	"io"
	"strings"
	"sync"
)

// BufferIO is a scripted IO: it feeds queued input lines and captures
// everything written, without touching a terminal. Used for one-shot runs
// and tests.
type BufferIO struct {
	mu      sync.Mutex
	inputs  []string
	replies []string
	system  []string
	errors  []string
	session string
}

var _ IO = (*BufferIO)(nil)

// NewBufferIO creates a BufferIO that returns inputs in order, then io.EOF.
func NewBufferIO(inputs ...string) *BufferIO {
	return &BufferIO{inputs: inputs}
}

func (b *BufferIO) ReadInput() (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.inputs) == 0 {
		return "", io.EOF
	}
	line := b.inputs[0]
	b.inputs = b.inputs[1:]
	return strings.TrimSpace(line), nil
}

func (b *BufferIO) UserMessage(_ string) {}
func (b *BufferIO) ThinkingStart()       {}

func (b *BufferIO) Reply(text string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.replies = append(b.replies, text)
}

func (b *BufferIO) SystemMessage(text string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.system = append(b.system, text)
}

func (b *BufferIO) Error(msg string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.errors = append(b.errors, msg)
}

func (b *BufferIO) SetSession(id, _ string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.session = id
}

// Replies returns all captured assistant replies.
func (b *BufferIO) Replies() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.replies...)
}

// SystemMessages returns all captured notices.
func (b *BufferIO) SystemMessages() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.system...)
}

// Errors returns all captured error messages.
func (b *BufferIO) Errors() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.errors...)
}

// Session returns the last session id reported.
func (b *BufferIO) Session() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.session
}
