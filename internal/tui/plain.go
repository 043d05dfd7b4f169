package tui

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

// PlainIO implements IO using plain line-oriented output. It is used when
// stdout is not a terminal or TUI mode is disabled.
type PlainIO struct {
	scanner *bufio.Scanner
	out     io.Writer
	errOut  io.Writer

	mu            sync.Mutex
	requestCancel context.CancelFunc
}

var (
	_ IO               = (*PlainIO)(nil)
	_ RequestCanceller = (*PlainIO)(nil)
)

// NewPlainIO creates a PlainIO on stdin/stdout/stderr.
func NewPlainIO() *PlainIO {
	return NewPlainIOFrom(os.Stdin, os.Stdout, os.Stderr)
}

// NewPlainIOFrom creates a PlainIO on the given streams.
func NewPlainIOFrom(in io.Reader, out, errOut io.Writer) *PlainIO {
	s := bufio.NewScanner(in)
	s.Buffer(make([]byte, 1024*1024), 1024*1024)
	return &PlainIO{scanner: s, out: out, errOut: errOut}
}

func (p *PlainIO) ReadInput() (string, error) {
	fmt.Fprint(p.out, "\n> ")
	if !p.scanner.Scan() {
		if err := p.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return strings.TrimSpace(p.scanner.Text()), nil
}

func (p *PlainIO) UserMessage(_ string) {
	// Plain terminal: the user already sees what they typed.
}

func (p *PlainIO) ThinkingStart() {
	fmt.Fprintln(p.out) // blank line before the reply
}

func (p *PlainIO) Reply(text string) {
	fmt.Fprintln(p.out, strings.TrimRight(text, "\n"))
}

func (p *PlainIO) SystemMessage(text string) {
	fmt.Fprintln(p.out, text)
}

func (p *PlainIO) Error(msg string) {
	fmt.Fprintf(p.errOut, "error: %s\n", msg)
}

func (p *PlainIO) SetSession(id, _ string) {
	if id != "" {
		fmt.Fprintf(p.out, "[session %s]\n", shortID(id))
	}
}

func (p *PlainIO) SetRequestCancel(cancel context.CancelFunc) {
	p.mu.Lock()
	p.requestCancel = cancel
	p.mu.Unlock()
}

func (p *PlainIO) ClearRequestCancel() {
	p.mu.Lock()
	p.requestCancel = nil
	p.mu.Unlock()
}

// CancelRequest aborts the in-flight request, if any. It reports whether
// there was one to cancel.
func (p *PlainIO) CancelRequest() bool {
	p.mu.Lock()
	cancel := p.requestCancel
	p.requestCancel = nil
	p.mu.Unlock()
	if cancel == nil {
		return false
	}
	cancel()
	return true
}

// shortID returns the first 8 characters of a session id.
func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
