package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// clearEnv unsets every variable Load reads so the host environment does
// not leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"GEMCHAT_PROVIDER", "GEMCHAT_MODEL", "LLM_API_KEY", "LLM_BASE_URL", "LLM_MODEL",
		"GEMINI_API_KEY", "ANTHROPIC_API_KEY", "OPENAI_API_KEY", "PORT", "CORS_ORIGIN",
		"SESSION_SECRET", "GEMCHAT_SESSION_BACKEND", "GEMCHAT_LOG_LEVEL", "GEMCHAT_ENV", "NODE_ENV", "LOG_FILE",
	} {
		t.Setenv(k, "")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Provider != "gemini" {
		t.Errorf("expected default provider 'gemini', got %q", cfg.Provider)
	}
	if cfg.Server.Port != 3000 {
		t.Errorf("expected default port 3000, got %d", cfg.Server.Port)
	}
	if cfg.Session.HistoryLimit != 20 {
		t.Errorf("expected history_limit 20, got %d", cfg.Session.HistoryLimit)
	}
	if cfg.Session.MaxAge != 24*time.Hour {
		t.Errorf("expected max_age 24h, got %v", cfg.Session.MaxAge)
	}
	if cfg.Server.RateLimitMax != 100 || cfg.Server.RateLimitWindow != 15*time.Minute {
		t.Errorf("unexpected rate limit defaults: %d / %v", cfg.Server.RateLimitMax, cfg.Server.RateLimitWindow)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("/nonexistent/config.yaml")
	if err != nil {
		t.Fatalf("expected no error for missing file, got %v", err)
	}
	if cfg.Provider != "gemini" {
		t.Errorf("expected default provider, got %q", cfg.Provider)
	}
}

func TestLoad_ValidYAML(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
env: development
provider: anthropic
model: claude-test
providers:
  anthropic:
    api_key: "sk-ant"
server:
  port: 8080
  rate_limit_window: 1m
  rate_limit_max: 5
session:
  backend: sqlite
  dsn: /tmp/gemchat.db
  max_age: 2h
  sweep_interval: 10m
prompt:
  system_instruction: "Be concise."
upstream:
  timeout: 15s
log:
  level: debug
  format: json
`
	os.WriteFile(path, []byte(yaml), 0644)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Provider != "anthropic" || cfg.ResolvedModel() != "claude-test" {
		t.Errorf("provider/model = %q/%q", cfg.Provider, cfg.ResolvedModel())
	}
	if cfg.GetProviderConfig("anthropic").APIKey != "sk-ant" {
		t.Errorf("api key not loaded")
	}
	if cfg.Server.Port != 8080 || cfg.Server.RateLimitWindow != time.Minute || cfg.Server.RateLimitMax != 5 {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Server.CORSOrigin != "*" {
		t.Errorf("unset key should keep default, got %q", cfg.Server.CORSOrigin)
	}
	if cfg.Session.Backend != "sqlite" || cfg.Session.MaxAge != 2*time.Hour || cfg.Session.SweepInterval != 10*time.Minute {
		t.Errorf("session = %+v", cfg.Session)
	}
	if cfg.Prompt.SystemInstruction != "Be concise." {
		t.Errorf("system_instruction = %q", cfg.Prompt.SystemInstruction)
	}
	if cfg.Upstream.Timeout != 15*time.Second {
		t.Errorf("timeout = %v", cfg.Upstream.Timeout)
	}
	if cfg.Log.Format != "json" || cfg.Env != "development" {
		t.Errorf("log/env = %+v / %q", cfg.Log, cfg.Env)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	os.WriteFile(path, []byte("server: [unclosed"), 0644)

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}

func TestEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("GEMCHAT_PROVIDER", "openai")
	t.Setenv("LLM_API_KEY", "sk-generic")
	t.Setenv("LLM_BASE_URL", "https://api.deepseek.com/v1")
	t.Setenv("GEMINI_API_KEY", "g-key")
	t.Setenv("PORT", "4000")
	t.Setenv("SESSION_SECRET", "shh")
	t.Setenv("NODE_ENV", "Production")

	cfg, err := Load("/nonexistent/config.yaml")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Provider != "openai" {
		t.Errorf("provider = %q", cfg.Provider)
	}
	oc := cfg.GetProviderConfig("openai")
	if oc.APIKey != "sk-generic" || oc.BaseURL != "https://api.deepseek.com/v1" {
		t.Errorf("LLM_* should apply to the selected provider: %+v", oc)
	}
	if cfg.GetProviderConfig("gemini").APIKey != "g-key" {
		t.Error("GEMINI_API_KEY not applied")
	}
	if cfg.Server.Port != 4000 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
	if cfg.Session.Secret != "shh" {
		t.Errorf("secret = %q", cfg.Session.Secret)
	}
	if cfg.Env != "production" {
		t.Errorf("env = %q", cfg.Env)
	}
}

func TestEnvOverrides_BadPort(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "eighty")
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Fatal("expected error for non-numeric PORT")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown provider", func(c *Config) { c.Provider = "bard" }},
		{"unknown backend", func(c *Config) { c.Session.Backend = "redis" }},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }},
		{"zero port", func(c *Config) { c.Server.Port = 0 }},
		{"zero history", func(c *Config) { c.Session.HistoryLimit = 0 }},
		{"negative body limit", func(c *Config) { c.Server.BodyLimit = -1 }},
		{"zero message length", func(c *Config) { c.Prompt.MaxMessageLength = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

// unsetEnv removes keys for the duration of the test. A variable that is set,
// even to "", is never replaced by a .env value.
func unsetEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoad_EnvFile(t *testing.T) {
	clearEnv(t)
	unsetEnv(t, "GEMINI_API_KEY", "PORT", "NODE_ENV")
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	os.WriteFile(envFile, []byte("GEMINI_API_KEY=from-dotenv\nPORT=5050\nNODE_ENV=development\n"), 0600)

	cfg, err := LoadWithEnvFile(filepath.Join(dir, "missing.yaml"), envFile)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := cfg.Providers["gemini"].APIKey; got != "from-dotenv" {
		t.Errorf("gemini api key = %q, want from-dotenv", got)
	}
	if cfg.Server.Port != 5050 {
		t.Errorf("port = %d, want 5050", cfg.Server.Port)
	}
	if cfg.Env != "development" {
		t.Errorf("env = %q, want development", cfg.Env)
	}
}

func TestLoad_EnvFileDoesNotOverrideEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("GEMINI_API_KEY", "from-shell")
	envFile := filepath.Join(t.TempDir(), ".env")
	os.WriteFile(envFile, []byte("GEMINI_API_KEY=from-dotenv\n"), 0600)

	cfg, err := LoadWithEnvFile("/nonexistent/config.yaml", envFile)
	if err != nil {
		t.Fatal(err)
	}
	if got := cfg.GetProviderConfig("gemini").APIKey; got != "from-shell" {
		t.Errorf("api key = %q, want from-shell", got)
	}
}

func TestLoad_MissingEnvFile(t *testing.T) {
	clearEnv(t)
	if _, err := LoadWithEnvFile("/nonexistent/config.yaml", filepath.Join(t.TempDir(), ".env")); err != nil {
		t.Fatalf("missing .env should be ignored: %v", err)
	}
}

func TestLoad_LogFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("LOG_FILE", "/var/log/gemchat.log")

	cfg, err := LoadWithEnvFile("/nonexistent/config.yaml", "")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Log.File != "/var/log/gemchat.log" {
		t.Errorf("log file = %q", cfg.Log.File)
	}
}
