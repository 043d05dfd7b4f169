package prompt

import (
	"math"

	"github.com/gemchat/gemchat/internal/provider"
	"github.com/gemchat/gemchat/internal/session"
)

const (
	topP = 0.9
	topK = 40
)

var safetyCategories = []string{
	"HARM_CATEGORY_HARASSMENT",
	"HARM_CATEGORY_HATE_SPEECH",
	"HARM_CATEGORY_SEXUALLY_EXPLICIT",
	"HARM_CATEGORY_DANGEROUS_CONTENT",
}

// Compose builds the upstream request for one chat turn. message must
// already be sanitized. An empty systemInstruction is omitted from the payload.
func Compose(message string, prefs session.Preferences, history []session.Turn, systemInstruction string) *provider.Request {
	contents := make([]provider.Content, 0, len(history)+1)
	for _, turn := range history {
		contents = append(contents, provider.TextContent(upstreamRole(turn.Role), turn.Content))
	}
	contents = append(contents, provider.TextContent(provider.RoleUser, message))

	req := &provider.Request{
		Contents:         contents,
		GenerationConfig: GenerationConfig(prefs),
		SafetySettings:   SafetySettings(),
	}
	if systemInstruction != "" {
		req.SystemInstruction = &provider.Content{
			Parts: []provider.Part{{Text: systemInstruction}},
		}
	}
	return req
}

// GenerationConfig derives sampling parameters from preferences.
func GenerationConfig(prefs session.Preferences) provider.GenerationConfig {
	return provider.GenerationConfig{
		Temperature:     Temperature(prefs),
		TopP:            topP,
		TopK:            topK,
		MaxOutputTokens: MaxOutputTokens(prefs.ResponseLength),
	}
}

// MaxOutputTokens maps a response length preference to a token budget.
func MaxOutputTokens(responseLength string) int {
	switch responseLength {
	case "long":
		return 1000
	case "short":
		return 200
	default:
		return 500
	}
}

// Temperature returns the creativity value when it is set and non-zero,
// otherwise a tone-derived default. A creativity of exactly 0 therefore
// never reaches the upstream.
func Temperature(prefs session.Preferences) float64 {
	if prefs.Creativity != 0 && !math.IsNaN(prefs.Creativity) {
		return prefs.Creativity
	}
	switch prefs.Tone {
	case "professional":
		return 0.2
	case "humorous":
		return 0.7
	default:
		return 0.5
	}
}

// SafetySettings returns the fixed moderation thresholds sent with every request.
func SafetySettings() []provider.SafetySetting {
	settings := make([]provider.SafetySetting, len(safetyCategories))
	for i, c := range safetyCategories {
		settings[i] = provider.SafetySetting{Category: c, Threshold: "BLOCK_MEDIUM_AND_ABOVE"}
	}
	return settings
}

func upstreamRole(r session.Role) string {
	if r == session.RoleUser {
		return provider.RoleUser
	}
	return provider.RoleModel
}
