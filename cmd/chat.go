package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gemchat/gemchat/internal/client"
	"github.com/gemchat/gemchat/internal/config"
	"github.com/gemchat/gemchat/internal/tui"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func newChatCmd() *cobra.Command {
	var (
		serverURL string
		plain     bool
		timeout   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with a running gemchat server",
		Example: `  gemchat chat
  gemchat chat --server http://chat.internal:3000 --plain`,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Default TUI on when stdout is a terminal and --plain was not set.
			useTUI := !plain && term.IsTerminal(int(os.Stdout.Fd()))
			return runChat(serverURL, timeout, useTUI)
		},
	}

	cmd.Flags().StringVarP(&serverURL, "server", "s", "http://127.0.0.1:3000", "gemchat server URL")
	cmd.Flags().BoolVar(&plain, "plain", false, "line mode instead of the bubbletea TUI")
	cmd.Flags().DurationVar(&timeout, "timeout", 90*time.Second, "per-request timeout")

	return cmd
}

// runChat starts the interactive client against serverURL.
func runChat(serverURL string, timeout time.Duration, useTUI bool) error {
	api, err := client.NewAPI(serverURL, timeout)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer cancel()

	healthCtx, healthCancel := context.WithTimeout(ctx, 5*time.Second)
	h, err := api.Health(healthCtx)
	healthCancel()
	if err != nil {
		return fmt.Errorf("server %s unreachable: %w", serverURL, err)
	}

	prefsPath := ""
	if dir := config.Dir(); dir != "" {
		prefsPath = filepath.Join(dir, "preferences.json")
	}

	loop := func(ui tui.IO) error {
		repl := client.NewREPL(api, ui)
		repl.PrefsPath = prefsPath
		ui.SystemMessage(fmt.Sprintf("gemchat %s at %s", h.Version, serverURL))
		return repl.Run(ctx)
	}

	if useTUI {
		return tui.RunTUI(loop)
	}

	// Plain mode: Ctrl+C cancels a pending request, or exits when idle.
	ui := tui.NewPlainIO()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	defer signal.Stop(sigCh)
	go func() {
		for range sigCh {
			if !ui.CancelRequest() {
				fmt.Fprintln(os.Stderr)
				os.Exit(130)
			}
		}
	}()
	return loop(ui)
}
