// Package prompt turns a raw user message plus session state into an
// upstream generation request.
package prompt

import "strings"

// MaxMessageLength is the number of characters kept from a user message.
const MaxMessageLength = 2000

var stripper = strings.NewReplacer("<", "", ">", "", `"`, "", "'", "", "`", "")

// Sanitize trims surrounding whitespace, removes markup-significant
// characters and truncates the result to MaxMessageLength characters.
func Sanitize(raw string) string {
	return SanitizeLimit(raw, MaxMessageLength)
}

// SanitizeLimit is Sanitize with an explicit length bound.
// A non-positive limit disables truncation.
func SanitizeLimit(raw string, limit int) string {
	s := stripper.Replace(strings.TrimSpace(raw))
	if limit <= 0 {
		return s
	}
	// Count runes so a multi-byte character is never split.
	n := 0
	for i := range s {
		if n == limit {
			return s[:i]
		}
		n++
	}
	return s
}
