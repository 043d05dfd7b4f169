package tui

import (
	"fmt"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
)

// RunTUI starts the bubbletea program in alt-screen mode and runs loopFn
// concurrently. It blocks until either the loop finishes or the user quits.
func RunTUI(loopFn func(io IO) error) error {
	inputCh := make(chan inputResult, 1)
	model := NewModel(inputCh)

	// Create TuiIO early so the cancel hook is wired before the model
	// is copied into the tea.Program.
	tuiIO := &TuiIO{
		inputCh: inputCh,
	}
	model.cancelRequestFn = tuiIO.CancelRequest

	p := tea.NewProgram(model, tea.WithAltScreen())
	tuiIO.program = p

	var (
		loopErr error
		wg      sync.WaitGroup
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		loopErr = loopFn(tuiIO)
		// Signal the TUI that the loop is done
		p.Send(loopDoneMsg{err: loopErr})
	}()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}

	// Unblock a loop still waiting in ReadInput after the TUI exits.
	select {
	case inputCh <- inputResult{err: fmt.Errorf("tui closed")}:
	default:
	}
	wg.Wait()

	return loopErr
}
