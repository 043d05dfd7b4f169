package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gemchat/gemchat/internal/chat"
	"github.com/gemchat/gemchat/internal/config"
	"github.com/gemchat/gemchat/internal/server"
	"github.com/spf13/cobra"
)

var (
	hostFlag string
	portFlag int
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the chat API server (default)",
		Example: `  gemchat serve
  gemchat serve --port 8080 --provider anthropic`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}

	cmd.Flags().StringVar(&hostFlag, "host", "", "listen host (default all interfaces)")
	cmd.Flags().IntVar(&portFlag, "port", 0, "listen port (default 3000 or $PORT)")

	return cmd
}

// runServe wires config, store, provider and orchestrator into the HTTP
// server and blocks until SIGINT/SIGTERM.
func runServe() error {
	cfg, err := initConfig()
	if err != nil {
		return err
	}
	if hostFlag != "" {
		cfg.Server.Host = hostFlag
	}
	if portFlag > 0 {
		cfg.Server.Port = portFlag
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

	store, err := buildStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	svc := chat.NewService(store, p, serviceConfig(cfg), logger)

	srv, err := server.New(server.Config{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		Env:             cfg.Env,
		Version:         appVersion,
		CORSOrigin:      cfg.Server.CORSOrigin,
		RateLimitWindow: cfg.Server.RateLimitWindow,
		RateLimitMax:    cfg.Server.RateLimitMax,
		BodyLimit:       cfg.Server.BodyLimit,
		CookieMaxAge:    cfg.Session.MaxAge,
		Secret:          cfg.Session.Secret,
	}, svc, logger)
	if err != nil {
		return fmt.Errorf("build server: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Session.SweepInterval > 0 {
		go svc.RunSweeper(ctx, cfg.Session.SweepInterval)
	}

	if cfg.Session.Secret == "" {
		logger.Warn("session.secret not set; cookies will not survive a restart")
	}
	return srv.Start(ctx)
}

func serviceConfig(cfg *config.Config) chat.Config {
	return chat.Config{
		HistoryLimit:      cfg.Session.HistoryLimit,
		MaxMessageLength:  cfg.Prompt.MaxMessageLength,
		Timeout:           cfg.Upstream.Timeout,
		SystemInstruction: cfg.Prompt.SystemInstruction,
	}
}
