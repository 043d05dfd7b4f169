// Package config loads and validates gemchat settings.
// Sources in increasing priority:
//  1. built-in defaults
//  2. the YAML file named by --config, or ~/.config/gemchat/config.yaml
//  3. environment variables (GEMINI_API_KEY, PORT, SESSION_SECRET, ...),
//     including those read from a .env file in the working directory
//
// Command-line flags are applied on top by cmd/.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultEnvFile is the dotenv file Load reads from the working directory.
const DefaultEnvFile = ".env"

// Provider names accepted in the provider key.
const (
	ProviderGemini    = "gemini"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Session backends.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
)

// ProviderConfig holds credentials and endpoint for a single provider.
type ProviderConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	CORSOrigin      string        `yaml:"cors_origin"`
	RateLimitWindow time.Duration `yaml:"rate_limit_window"`
	RateLimitMax    int           `yaml:"rate_limit_max"`
	BodyLimit       int64         `yaml:"body_limit"`
}

type SessionConfig struct {
	// Backend: "memory" (default) | "sqlite"
	Backend string `yaml:"backend"`

	// DSN is the SQLite path. Empty means an in-memory database.
	DSN string `yaml:"dsn"`

	MaxAge       time.Duration `yaml:"max_age"`
	HistoryLimit int           `yaml:"history_limit"`

	// SweepInterval enables a periodic purge of expired sessions. 0 = lazy only.
	SweepInterval time.Duration `yaml:"sweep_interval"`

	// Secret signs the session cookie. Empty = random per process.
	Secret string `yaml:"secret"`
}

type PromptConfig struct {
	MaxMessageLength  int    `yaml:"max_message_length"`
	SystemInstruction string `yaml:"system_instruction"`
}

type UpstreamConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" | "json"

	// File, when set, receives a copy of every log record (appended).
	File string `yaml:"file"`
}

// Config is the complete gemchat configuration.
type Config struct {
	// Env: "development" | "production" | "" (neither)
	Env string `yaml:"env"`

	// Provider selects the upstream adapter ("gemini", "openai", "anthropic").
	Provider string `yaml:"provider"`

	// Model overrides the provider's default model.
	Model string `yaml:"model"`

	Providers map[string]*ProviderConfig `yaml:"providers"`

	Server   ServerConfig   `yaml:"server"`
	Session  SessionConfig  `yaml:"session"`
	Prompt   PromptConfig   `yaml:"prompt"`
	Upstream UpstreamConfig `yaml:"upstream"`
	Log      LogConfig      `yaml:"log"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		Provider:  ProviderGemini,
		Providers: make(map[string]*ProviderConfig),
		Server: ServerConfig{
			Port:            3000,
			CORSOrigin:      "*",
			RateLimitWindow: 15 * time.Minute,
			RateLimitMax:    100,
			BodyLimit:       50 << 10,
		},
		Session: SessionConfig{
			Backend:      BackendMemory,
			MaxAge:       24 * time.Hour,
			HistoryLimit: 20,
		},
		Prompt: PromptConfig{
			MaxMessageLength: 2000,
		},
		Upstream: UpstreamConfig{
			Timeout: 60 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// DefaultPath returns ~/.config/gemchat/config.yaml, or "" when the home
// directory is unknown.
func DefaultPath() string {
	dir := Dir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "config.yaml")
}

// Dir returns ~/.config/gemchat.
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "gemchat")
}

// Load reads the config file and applies environment overrides, with
// variables from ./.env filling in whatever the process environment lacks.
// Missing files are not an error.
func Load(configPath string) (*Config, error) {
	return LoadWithEnvFile(configPath, DefaultEnvFile)
}

// LoadWithEnvFile is Load with an explicit dotenv path. An empty envFile
// skips dotenv loading.
func LoadWithEnvFile(configPath, envFile string) (*Config, error) {
	cfg := DefaultConfig()

	if err := loadEnvFile(envFile); err != nil {
		return nil, err
	}

	if configPath == "" {
		configPath = DefaultPath()
	}

	if configPath != "" {
		if data, err := os.ReadFile(configPath); err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("invalid config file %s: %w", configPath, err)
			}
		}
	}

	if cfg.Providers == nil {
		cfg.Providers = make(map[string]*ProviderConfig)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// GetProviderConfig returns the named provider's config, or an empty one.
func (c *Config) GetProviderConfig(name string) *ProviderConfig {
	if pc, ok := c.Providers[name]; ok && pc != nil {
		return pc
	}
	return &ProviderConfig{}
}

// ResolvedModel returns the model to use for the selected provider.
func (c *Config) ResolvedModel() string {
	if c.Model != "" {
		return c.Model
	}
	return c.GetProviderConfig(c.Provider).Model
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderGemini, ProviderOpenAI, ProviderAnthropic:
	default:
		return fmt.Errorf("unknown provider %q (want gemini, openai or anthropic)", c.Provider)
	}
	switch c.Session.Backend {
	case BackendMemory, BackendSQLite:
	default:
		return fmt.Errorf("unknown session backend %q (want memory or sqlite)", c.Session.Backend)
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("unknown log format %q (want text or json)", c.Log.Format)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	checks := []struct {
		name string
		ok   bool
	}{
		{"server.rate_limit_window", c.Server.RateLimitWindow > 0},
		{"server.rate_limit_max", c.Server.RateLimitMax > 0},
		{"server.body_limit", c.Server.BodyLimit > 0},
		{"session.max_age", c.Session.MaxAge > 0},
		{"session.history_limit", c.Session.HistoryLimit > 0},
		{"session.sweep_interval", c.Session.SweepInterval >= 0},
		{"prompt.max_message_length", c.Prompt.MaxMessageLength > 0},
		{"upstream.timeout", c.Upstream.Timeout >= 0},
	}
	for _, chk := range checks {
		if !chk.ok {
			return fmt.Errorf("%s must be positive", chk.name)
		}
	}
	return nil
}

func (c *Config) provider(name string) *ProviderConfig {
	if c.Providers[name] == nil {
		c.Providers[name] = &ProviderConfig{}
	}
	return c.Providers[name]
}

// loadEnvFile exports the variables of a dotenv file. Variables already set
// in the process environment win, as with the dotenv package for Node.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("invalid env file %s: %w", path, err)
	}
	return nil
}

// applyEnvOverrides copies recognised environment variables into cfg.
func applyEnvOverrides(cfg *Config) error {
	// Provider selection first so the generic LLM_* keys land on it.
	if v := os.Getenv("GEMCHAT_PROVIDER"); v != "" {
		cfg.Provider = v
	}
	if v := os.Getenv("GEMCHAT_MODEL"); v != "" {
		cfg.Model = v
	}

	if v := os.Getenv("LLM_API_KEY"); v != "" {
		cfg.provider(cfg.Provider).APIKey = v
	}
	if v := os.Getenv("LLM_BASE_URL"); v != "" {
		cfg.provider(cfg.Provider).BaseURL = v
	}
	if v := os.Getenv("LLM_MODEL"); v != "" && os.Getenv("GEMCHAT_MODEL") == "" {
		cfg.Model = v
	}

	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		cfg.provider(ProviderGemini).APIKey = v
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		cfg.provider(ProviderAnthropic).APIKey = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.provider(ProviderOpenAI).APIKey = v
	}

	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		cfg.Server.Port = port
	}
	if v := os.Getenv("CORS_ORIGIN"); v != "" {
		cfg.Server.CORSOrigin = v
	}
	if v := os.Getenv("SESSION_SECRET"); v != "" {
		cfg.Session.Secret = v
	}
	if v := os.Getenv("GEMCHAT_SESSION_BACKEND"); v != "" {
		cfg.Session.Backend = v
	}
	if v := os.Getenv("GEMCHAT_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FILE"); v != "" {
		cfg.Log.File = v
	}

	if v := os.Getenv("GEMCHAT_ENV"); v != "" {
		cfg.Env = strings.ToLower(v)
	} else if v := os.Getenv("NODE_ENV"); v != "" {
		cfg.Env = strings.ToLower(v)
	}
	return nil
}
