package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gemchat/gemchat/internal/session"
)

// LoadPreferences reads locally saved preferences. A missing file returns
// ok=false and no error.
func LoadPreferences(path string) (prefs session.Preferences, ok bool, err error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return session.Preferences{}, false, nil
	}
	if err != nil {
		return session.Preferences{}, false, err
	}
	prefs = session.DefaultPreferences()
	if err := json.Unmarshal(data, &prefs); err != nil {
		return session.Preferences{}, false, fmt.Errorf("invalid preferences file %s: %w", path, err)
	}
	return prefs, true, nil
}

// SavePreferences writes prefs to path, creating parent directories.
func SavePreferences(path string, prefs session.Preferences) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create preferences dir: %w", err)
	}
	data, err := json.MarshalIndent(prefs, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// asPartial converts a full preference set to an update body.
func asPartial(p session.Preferences) map[string]any {
	return map[string]any{
		session.KeyResponseLength: p.ResponseLength,
		session.KeyFormality:      p.Formality,
		session.KeyTone:           p.Tone,
		session.KeyCreativity:     p.Creativity,
	}
}
