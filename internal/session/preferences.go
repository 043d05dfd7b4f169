package session

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Preference keys as they appear on the wire.
const (
	KeyResponseLength = "responseLength"
	KeyFormality      = "formality"
	KeyTone           = "tone"
	KeyCreativity     = "creativity"
)

// Preferences is the per-session generation configuration.
type Preferences struct {
	ResponseLength string  `json:"responseLength"`
	Formality      string  `json:"formality"`
	Tone           string  `json:"tone"`
	Creativity     float64 `json:"creativity"`
}

// DefaultPreferences returns medium/neutral/friendly/0.5.
func DefaultPreferences() Preferences {
	return Preferences{
		ResponseLength: "medium",
		Formality:      "neutral",
		Tone:           "friendly",
		Creativity:     0.5,
	}
}

var allowedValues = map[string][]string{
	KeyResponseLength: {"short", "medium", "long"},
	KeyFormality:      {"casual", "neutral", "formal"},
	KeyTone:           {"friendly", "professional", "humorous"},
}

// FieldError describes one rejected input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e FieldError) String() string {
	return e.Field + ": " + e.Message
}

// Apply validates a partial update and returns the resulting preferences.
// Unknown keys are ignored. If any known key carries an invalid value the
// receiver is returned unchanged together with one FieldError per bad key.
func (p Preferences) Apply(partial map[string]any) (Preferences, []FieldError) {
	next := p
	var errs []FieldError

	// Fixed order keeps error output deterministic.
	for _, key := range []string{KeyResponseLength, KeyFormality, KeyTone} {
		raw, ok := partial[key]
		if !ok {
			continue
		}
		s, isString := raw.(string)
		if !isString || !contains(allowedValues[key], s) {
			errs = append(errs, invalidValue(key))
			continue
		}
		switch key {
		case KeyResponseLength:
			next.ResponseLength = s
		case KeyFormality:
			next.Formality = s
		case KeyTone:
			next.Tone = s
		}
	}

	if raw, ok := partial[KeyCreativity]; ok {
		v, err := parseCreativity(raw)
		if err != nil {
			errs = append(errs, invalidValue(KeyCreativity))
		} else {
			next.Creativity = v
		}
	}

	if len(errs) > 0 {
		return p, errs
	}
	return next, nil
}

// parseCreativity accepts a JSON number or a numeric string in [0,1].
func parseCreativity(raw any) (float64, error) {
	var v float64
	switch x := raw.(type) {
	case float64:
		v = x
	case int:
		v = float64(x)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, err
		}
		v = f
	default:
		return 0, fmt.Errorf("creativity must be numeric, got %T", raw)
	}
	if math.IsNaN(v) || v < 0 || v > 1 {
		return 0, fmt.Errorf("creativity %v out of range [0,1]", v)
	}
	return v, nil
}

func invalidValue(key string) FieldError {
	return FieldError{Field: key, Message: fmt.Sprintf("Invalid %s value", key)}
}

func contains(values []string, s string) bool {
	for _, v := range values {
		if v == s {
			return true
		}
	}
	return false
}
