package tui

import (
	"context"
	"io"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
)

// TuiIO implements the IO interface by sending messages to a bubbletea Program.
// All methods are safe to call from any goroutine.
type TuiIO struct {
	program *tea.Program
	inputCh chan inputResult

	mu            sync.Mutex
	cancelRequest context.CancelFunc
}

var (
	_ IO               = (*TuiIO)(nil)
	_ RequestCanceller = (*TuiIO)(nil)
)

func (t *TuiIO) ReadInput() (string, error) {
	// Tell the TUI to activate the text input
	t.program.Send(readInputMsg{})

	// Block until the user submits or the TUI exits
	res := <-t.inputCh
	if res.err != nil {
		return "", io.EOF
	}
	return res.text, nil
}

func (t *TuiIO) UserMessage(text string) {
	t.program.Send(userMsg{text: text})
}

func (t *TuiIO) ThinkingStart() {
	t.program.Send(thinkingStartMsg{})
}

func (t *TuiIO) Reply(text string) {
	t.program.Send(replyMsg{text: text})
}

func (t *TuiIO) SystemMessage(text string) {
	t.program.Send(systemMsg{text: text})
}

func (t *TuiIO) Error(msg string) {
	t.program.Send(errorMsg{text: msg})
}

func (t *TuiIO) SetSession(id, prefs string) {
	t.program.Send(sessionMsg{id: id, prefs: prefs})
}

// SetRequestCancel registers the cancel function for the in-flight request.
func (t *TuiIO) SetRequestCancel(cancel context.CancelFunc) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cancelRequest = cancel
}

// ClearRequestCancel clears the cancel function after the request finishes.
func (t *TuiIO) ClearRequestCancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cancelRequest = nil
}

// CancelRequest aborts the in-flight request. Returns true if one was
// actually cancelled.
func (t *TuiIO) CancelRequest() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancelRequest != nil {
		t.cancelRequest()
		t.cancelRequest = nil
		return true
	}
	return false
}
