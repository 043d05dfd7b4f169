// Package server exposes the chat service over a JSON HTTP API.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gemchat/gemchat/internal/chat"
)

// Config holds the HTTP-facing settings.
type Config struct {
	Host            string
	Port            int
	Env             string // "development" exposes error details, "production" marks cookies Secure
	Version         string
	CORSOrigin      string
	RateLimitWindow time.Duration
	RateLimitMax    int
	BodyLimit       int64
	CookieMaxAge    time.Duration
	Secret          string
}

const (
	DefaultRateLimitWindow = 15 * time.Minute
	DefaultRateLimitMax    = 100
	DefaultBodyLimit       = 50 << 10
	shutdownTimeout        = 3 * time.Second
)

func (c Config) withDefaults() Config {
	if c.CORSOrigin == "" {
		c.CORSOrigin = "*"
	}
	if c.RateLimitWindow <= 0 {
		c.RateLimitWindow = DefaultRateLimitWindow
	}
	if c.RateLimitMax <= 0 {
		c.RateLimitMax = DefaultRateLimitMax
	}
	if c.BodyLimit <= 0 {
		c.BodyLimit = DefaultBodyLimit
	}
	if c.CookieMaxAge <= 0 {
		c.CookieMaxAge = 24 * time.Hour
	}
	if c.Version == "" {
		c.Version = "dev"
	}
	return c
}

// Addr returns host:port.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c Config) development() bool { return c.Env == "development" }
func (c Config) production() bool  { return c.Env == "production" }

// Server routes API requests to a chat.Service.
type Server struct {
	cfg     Config
	svc     *chat.Service
	logger  *slog.Logger
	cookies *cookieCodec
	limiter *rateLimiter
	started time.Time
	handler http.Handler
}

func New(cfg Config, svc *chat.Service, logger *slog.Logger) (*Server, error) {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	cookies, err := newCookieCodec(cfg.Secret)
	if err != nil {
		return nil, err
	}
	s := &Server{
		cfg:     cfg,
		svc:     svc,
		logger:  logger,
		cookies: cookies,
		limiter: newRateLimiter(cfg.RateLimitMax, cfg.RateLimitWindow),
		started: time.Now(),
	}
	s.handler = s.routes()
	return s, nil
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler { return s.handler }

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/chat", s.handleChat)
	mux.HandleFunc("GET /api/preferences", s.handleGetPreferences)
	mux.HandleFunc("POST /api/preferences", s.handleUpdatePreferences)
	mux.HandleFunc("POST /api/reset", s.handleReset)
	mux.HandleFunc("GET /api/history", s.handleHistory)
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("/", s.handleNotFound)

	var h http.Handler = mux
	h = s.limitBody(h)
	h = s.rateLimit(h)
	h = s.cors(h)
	h = securityHeaders(h)
	h = s.accessLog(h)
	h = s.recoverPanics(h)
	return h
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr(),
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctxShutdown); err != nil {
			s.logger.Warn("server shutdown", "err", err)
		}
	}()

	s.logListening(srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.logger.Info("server closed")
	return nil
}

func (s *Server) logListening(addr string) {
	p := s.svc.Provider()
	s.logger.Info("server listening",
		"addr", addr,
		"env", s.cfg.Env,
		"provider", p.Name(),
		"model", p.DefaultModel())
}
