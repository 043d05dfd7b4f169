package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gemchat/gemchat/internal/chat"
	"github.com/gemchat/gemchat/internal/session"
	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	var (
		prompt string
		prefs  []string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Send a single prompt without starting a server",
		Example: `  gemchat run -P "explain goroutines in two sentences"
  gemchat run -P "tell me a joke" --pref tone=humorous --pref responseLength=short`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if prompt == "" {
				return fmt.Errorf("--prompt / -P is required")
			}
			return runOnce(prompt, prefs)
		},
	}

	cmd.Flags().StringVarP(&prompt, "prompt", "P", "", "the prompt to send")
	cmd.Flags().StringArrayVar(&prefs, "pref", nil, "preference as key=value (repeatable)")
	cmd.MarkFlagRequired("prompt")

	return cmd
}

// runOnce executes a single turn in-process and prints the reply.
func runOnce(prompt string, assignments []string) error {
	cfg, err := initConfig()
	if err != nil {
		return err
	}
	logger, closeLog, err := buildLogger(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	p, err := buildProvider(cfg, logger)
	if err != nil {
		return err
	}

	store := session.NewMemoryStore(cfg.Session.MaxAge)
	defer store.Close()
	svc := chat.NewService(store, p, serviceConfig(cfg), logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var sessionID string
	if len(assignments) > 0 {
		partial, err := parsePrefs(assignments)
		if err != nil {
			return err
		}
		_, sessionID, err = svc.UpdatePreferences(ctx, "", partial)
		if err != nil {
			return err
		}
	}

	res, err := svc.Chat(ctx, sessionID, prompt)
	if err != nil {
		return err
	}
	fmt.Fprintln(os.Stdout, res.Reply)
	return nil
}

// parsePrefs turns key=value pairs into a partial preference update.
func parsePrefs(assignments []string) (map[string]any, error) {
	partial := make(map[string]any, len(assignments))
	for _, a := range assignments {
		k, v, ok := strings.Cut(a, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid --pref %q (want key=value)", a)
		}
		partial[k] = v
	}
	return partial, nil
}
