// Package tui provides the terminal front ends of the chat client: a
// bubbletea program for interactive terminals and a plain line mode.
package tui

import "context"

// IO is the interface between the chat loop and the terminal.
// Every method must be safe to call from the loop goroutine.
type IO interface {
	// ReadInput blocks until the user submits a line of input.
	// Returns ("", io.EOF) when the user quits.
	ReadInput() (string, error)

	// UserMessage displays the user's submitted message in the output area.
	UserMessage(text string)

	// ThinkingStart signals that a request is in flight.
	ThinkingStart()

	// Reply displays a complete assistant reply. TUI implementations render
	// it as markdown.
	Reply(text string)

	// SystemMessage displays a notice such as command feedback or help.
	SystemMessage(text string)

	// Error displays an error message with prominent styling.
	Error(msg string)

	// SetSession updates the session indicator in the status area.
	// prefs is a short human summary of the active preferences.
	SetSession(id, prefs string)
}

// RequestCanceller is implemented by IOs that let the user abort the
// in-flight request.
type RequestCanceller interface {
	SetRequestCancel(cancel context.CancelFunc)
	ClearRequestCancel()
}
