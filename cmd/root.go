package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/gemchat/gemchat/internal/config"
	"github.com/gemchat/gemchat/internal/logging"
	"github.com/gemchat/gemchat/internal/provider"
	"github.com/gemchat/gemchat/internal/session"
	"github.com/spf13/cobra"
)

var (
	cfgFile      string
	modelFlag    string
	providerFlag string
	logLevelFlag string
	envFileFlag  string

	// Package-level version info, set by Execute().
	appVersion string
	appCommit  string
	appDate    string
)

// Execute is the main entry point called from main.go.
func Execute(version, commit, date string) {
	appVersion = version
	appCommit = commit
	appDate = date

	serveCmd := newServeCmd()

	rootCmd := &cobra.Command{
		Use:   "gemchat",
		Short: "Conversational proxy for Gemini and friends",
		Long: "gemchat serves a small JSON chat API that keeps per-session history and\n" +
			"preferences and forwards each turn to an upstream LLM.",
		// Running gemchat with no subcommand starts the server.
		RunE:          serveCmd.RunE,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (default ~/.config/gemchat/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&modelFlag, "model", "m", "", "override model")
	rootCmd.PersistentFlags().StringVarP(&providerFlag, "provider", "p", "", "override provider (gemini, openai, anthropic)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "override log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&envFileFlag, "env-file", config.DefaultEnvFile, "dotenv file with environment defaults (empty to skip)")

	// Subcommands
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(newChatCmd())
	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newVersionCmd(version, commit, date))
	rootCmd.AddCommand(newInitCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// initConfig loads configuration, applying CLI flag overrides.
func initConfig() (*config.Config, error) {
	cfg, err := config.LoadWithEnvFile(cfgFile, envFileFlag)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	// CLI flags override config values
	if providerFlag != "" {
		cfg.Provider = providerFlag
	}
	if modelFlag != "" {
		cfg.Model = modelFlag
	}
	if logLevelFlag != "" {
		cfg.Log.Level = logLevelFlag
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// buildLogger writes to stderr and, when log.file is set, appends a copy to
// that file. The returned close function releases the file.
func buildLogger(cfg *config.Config) (*slog.Logger, func() error, error) {
	var w io.Writer = os.Stderr
	closeFn := func() error { return nil }
	if cfg.Log.File != "" {
		f, err := logging.OpenFile(cfg.Log.File)
		if err != nil {
			return nil, nil, err
		}
		w = io.MultiWriter(os.Stderr, f)
		closeFn = f.Close
	}

	logger, err := logging.New(w, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	slog.SetDefault(logger)
	return logger, closeFn, nil
}

// buildProvider creates the upstream adapter selected by cfg.Provider.
func buildProvider(cfg *config.Config, logger *slog.Logger) (provider.Provider, error) {
	name := cfg.Provider
	pc := cfg.GetProviderConfig(name)

	if pc.APIKey == "" {
		return nil, fmt.Errorf(
			"API key not configured for provider %q.\n"+
				"Set it via:\n"+
				"  - config file: providers.%s.api_key\n"+
				"  - environment: %s or LLM_API_KEY\n"+
				"  - run: gemchat init",
			name, name, apiKeyEnv(name),
		)
	}

	opts := []provider.Option{
		provider.WithTimeout(cfg.Upstream.Timeout),
		provider.WithLogger(logger),
	}
	if pc.BaseURL != "" {
		opts = append(opts, provider.WithBaseURL(pc.BaseURL))
	}
	if model := cfg.ResolvedModel(); model != "" {
		opts = append(opts, provider.WithModel(model))
	}

	switch name {
	case config.ProviderAnthropic:
		return provider.NewAnthropicProvider(pc.APIKey, opts...), nil
	case config.ProviderOpenAI:
		return provider.NewOpenAIProvider(pc.APIKey, opts...), nil
	default:
		return provider.NewGeminiProvider(pc.APIKey, opts...), nil
	}
}

func apiKeyEnv(name string) string {
	switch name {
	case config.ProviderAnthropic:
		return "ANTHROPIC_API_KEY"
	case config.ProviderOpenAI:
		return "OPENAI_API_KEY"
	default:
		return "GEMINI_API_KEY"
	}
}

// buildStore opens the configured session backend.
func buildStore(cfg *config.Config) (session.Store, error) {
	switch cfg.Session.Backend {
	case config.BackendSQLite:
		store, err := session.NewSQLiteStore(cfg.Session.DSN, cfg.Session.MaxAge)
		if err != nil {
			return nil, fmt.Errorf("open session store: %w", err)
		}
		return store, nil
	default:
		return session.NewMemoryStore(cfg.Session.MaxAge), nil
	}
}
