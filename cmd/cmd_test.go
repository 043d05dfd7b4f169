package cmd

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gemchat/gemchat/internal/config"
	"github.com/gemchat/gemchat/internal/session"
)

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

func TestRunInit_WritesLoadableConfig(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "gemchat", "config.yaml")

	in := strings.NewReader("3\nsk-ant-test\n8080\ny\n")
	var out strings.Builder
	if err := runInit(in, &out, path); err != nil {
		t.Fatalf("runInit: %v", err)
	}
	if !strings.Contains(out.String(), "Config saved to "+path) {
		t.Errorf("output missing save notice:\n%s", out.String())
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("perm = %o, want 600", perm)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Provider != config.ProviderAnthropic {
		t.Errorf("provider = %q, want anthropic", cfg.Provider)
	}
	if got := cfg.GetProviderConfig("anthropic").APIKey; got != "sk-ant-test" {
		t.Errorf("api key = %q", got)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Session.Backend != config.BackendSQLite {
		t.Errorf("backend = %q, want sqlite", cfg.Session.Backend)
	}
	if cfg.Session.DSN != filepath.Join(filepath.Dir(path), "sessions.db") {
		t.Errorf("dsn = %q", cfg.Session.DSN)
	}
	if len(cfg.Session.Secret) < 32 {
		t.Errorf("secret too short: %q", cfg.Session.Secret)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestRunInit_Defaults(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")

	if err := runInit(strings.NewReader("\nAIza-key\n\n\n"), &strings.Builder{}, path); err != nil {
		t.Fatalf("runInit: %v", err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Provider != config.ProviderGemini || cfg.Server.Port != 3000 || cfg.Session.Backend != config.BackendMemory {
		t.Errorf("got provider=%q port=%d backend=%q", cfg.Provider, cfg.Server.Port, cfg.Session.Backend)
	}
}

func TestRunInit_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"bad provider", "9\n", "invalid provider selection"},
		{"empty key", "1\n\n", "API key cannot be empty"},
		{"bad port", "1\nkey\nhttp\n", "invalid port"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			err := runInit(strings.NewReader(tt.input), &strings.Builder{}, path)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err = %v, want %q", err, tt.want)
			}
			if _, err := os.Stat(path); !os.IsNotExist(err) {
				t.Errorf("config written despite error")
			}
		})
	}
}

func TestRunInit_KeepsExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("provider: openai\n"), 0600); err != nil {
		t.Fatal(err)
	}
	var out strings.Builder
	if err := runInit(strings.NewReader("1\nkey\n\n\nn\n"), &out, path); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "Aborted.") {
		t.Errorf("expected abort, got:\n%s", out.String())
	}
	data, _ := os.ReadFile(path)
	if string(data) != "provider: openai\n" {
		t.Errorf("config overwritten: %q", data)
	}
}

func TestBuildProvider(t *testing.T) {
	tests := []struct {
		provider string
		wantName string
	}{
		{config.ProviderGemini, "gemini"},
		{config.ProviderAnthropic, "anthropic"},
		{config.ProviderOpenAI, "openai"},
	}
	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			cfg := config.DefaultConfig()
			cfg.Provider = tt.provider
			cfg.Providers[tt.provider] = &config.ProviderConfig{APIKey: "k"}
			p, err := buildProvider(cfg, nil)
			if err != nil {
				t.Fatal(err)
			}
			if p.Name() != tt.wantName {
				t.Errorf("Name() = %q, want %q", p.Name(), tt.wantName)
			}
		})
	}
}

func TestBuildProvider_MissingKey(t *testing.T) {
	cfg := config.DefaultConfig()
	_, err := buildProvider(cfg, nil)
	if err == nil || !strings.Contains(err.Error(), "GEMINI_API_KEY") {
		t.Fatalf("err = %v, want hint naming GEMINI_API_KEY", err)
	}
}

func TestBuildStore(t *testing.T) {
	cfg := config.DefaultConfig()
	store, err := buildStore(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := store.(*session.MemoryStore); !ok {
		t.Errorf("memory backend gave %T", store)
	}

	cfg.Session.Backend = config.BackendSQLite
	cfg.Session.DSN = filepath.Join(t.TempDir(), "db", "sessions.db")
	store, err = buildStore(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	if _, ok := store.(*session.SQLiteStore); !ok {
		t.Errorf("sqlite backend gave %T", store)
	}
}

func TestParsePrefs(t *testing.T) {
	got, err := parsePrefs([]string{"tone=humorous", "creativity=0.9"})
	if err != nil {
		t.Fatal(err)
	}
	if got["tone"] != "humorous" || got["creativity"] != "0.9" {
		t.Errorf("got %v", got)
	}
	if _, err := parsePrefs([]string{"tone"}); err == nil {
		t.Error("expected error for missing '='")
	}
}

func TestBuildLogger_AppendsToFile(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	path := filepath.Join(t.TempDir(), "chatbot.log")
	if err := os.WriteFile(path, []byte("earlier\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg := config.DefaultConfig()
	cfg.Log.File = path
	logger, closeLog, err := buildLogger(cfg)
	if err != nil {
		t.Fatal(err)
	}
	logger.Info("request", "path", "/api/health")
	if err := closeLog(); err != nil {
		t.Fatal(err)
	}

	data, _ := os.ReadFile(path)
	got := string(data)
	if !strings.HasPrefix(got, "earlier\n") || !strings.Contains(got, "path=/api/health") {
		t.Errorf("log file = %q", got)
	}
}
