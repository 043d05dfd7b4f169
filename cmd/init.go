package cmd

import (
	"bufio"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gemchat/gemchat/internal/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Interactive configuration wizard",
		Long:  "Guides you through setting up gemchat: choose a provider, enter your API key, and save the config.",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := cfgFile
			if path == "" {
				path = config.DefaultPath()
			}
			if path == "" {
				return fmt.Errorf("cannot determine config path; pass --config")
			}
			return runInit(os.Stdin, os.Stdout, path)
		},
	}
}

var initProviders = []string{config.ProviderGemini, config.ProviderOpenAI, config.ProviderAnthropic}

func runInit(in io.Reader, out io.Writer, configPath string) error {
	reader := bufio.NewReader(in)
	ask := func(prompt string) string {
		fmt.Fprint(out, prompt)
		line, _ := reader.ReadString('\n')
		return strings.TrimSpace(line)
	}

	fmt.Fprintln(out, "Welcome to the gemchat configuration wizard!")
	fmt.Fprintln(out)

	// Provider selection
	fmt.Fprintln(out, "Available providers:")
	for i, p := range initProviders {
		fmt.Fprintf(out, "  %d. %s\n", i+1, p)
	}
	selectedIdx := 0
	if input := ask(fmt.Sprintf("\nSelect provider (1-%d) [1]: ", len(initProviders))); input != "" {
		n, err := strconv.Atoi(input)
		if err != nil || n < 1 || n > len(initProviders) {
			return fmt.Errorf("invalid provider selection %q", input)
		}
		selectedIdx = n - 1
	}
	providerName := initProviders[selectedIdx]
	fmt.Fprintf(out, "Selected: %s\n\n", providerName)

	// API key
	apiKey := ask(fmt.Sprintf("Enter API key for %s: ", providerName))
	if apiKey == "" {
		return fmt.Errorf("API key cannot be empty")
	}

	port := 3000
	if input := ask("Listen port [3000]: "); input != "" {
		n, err := strconv.Atoi(input)
		if err != nil || n <= 0 || n > 65535 {
			return fmt.Errorf("invalid port %q", input)
		}
		port = n
	}

	backend := config.BackendMemory
	if strings.EqualFold(ask("Persist sessions in SQLite? [y/N]: "), "y") {
		backend = config.BackendSQLite
	}

	secret, err := randomSecret()
	if err != nil {
		return err
	}

	sess := map[string]any{
		"backend": backend,
		"secret":  secret,
	}
	if backend == config.BackendSQLite {
		sess["dsn"] = filepath.Join(filepath.Dir(configPath), "sessions.db")
	}

	// Build config YAML
	configData := map[string]any{
		"provider": providerName,
		"providers": map[string]any{
			providerName: map[string]any{
				"api_key": apiKey,
			},
		},
		"server": map[string]any{
			"port": port,
		},
		"session": sess,
	}

	data, err := yaml.Marshal(configData)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	// Check if config already exists
	if _, err := os.Stat(configPath); err == nil {
		fmt.Fprintf(out, "\nConfig file already exists at %s\n", configPath)
		if strings.ToLower(ask("Overwrite? [y/N]: ")) != "y" {
			fmt.Fprintln(out, "Aborted.")
			return nil
		}
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	fmt.Fprintf(out, "\nConfig saved to %s\n", configPath)
	fmt.Fprintln(out, "You can now run: gemchat serve")
	return nil
}

// randomSecret returns 32 random bytes, base64url encoded.
func randomSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate session secret: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
