package prompt

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Hello <script>", "Hello script"},
		{"  padded  ", "padded"},
		{`say "hi" 'there' ` + "`now`", "say hi there now"},
		{"<><>", ""},
		{"", ""},
		{"\n\t ", ""},
		{"a < b > c", "a  b  c"},
	}
	for _, tt := range tests {
		if got := Sanitize(tt.in); got != tt.want {
			t.Errorf("Sanitize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSanitizeTruncates(t *testing.T) {
	long := strings.Repeat("x", MaxMessageLength+500)
	got := Sanitize(long)
	if len(got) != MaxMessageLength {
		t.Errorf("len = %d, want %d", len(got), MaxMessageLength)
	}

	// Multi-byte input is cut on a rune boundary.
	wide := strings.Repeat("é", MaxMessageLength+1)
	got = Sanitize(wide)
	if !utf8.ValidString(got) {
		t.Fatal("truncation split a UTF-8 sequence")
	}
	if n := utf8.RuneCountInString(got); n != MaxMessageLength {
		t.Errorf("rune count = %d, want %d", n, MaxMessageLength)
	}
}

func TestSanitizeOutputHasNoForbiddenChars(t *testing.T) {
	in := strings.Repeat(`<a href="x">'q'</a>`+"`", 300)
	got := Sanitize(in)
	if strings.ContainsAny(got, "<>\"'`") {
		t.Errorf("forbidden characters survived: %q", got)
	}
	if utf8.RuneCountInString(got) > MaxMessageLength {
		t.Errorf("output longer than %d", MaxMessageLength)
	}
}

func TestSanitizeLimit(t *testing.T) {
	if got := SanitizeLimit("abcdef", 3); got != "abc" {
		t.Errorf("got %q, want %q", got, "abc")
	}
	if got := SanitizeLimit("abcdef", 0); got != "abcdef" {
		t.Errorf("got %q, want unbounded", got)
	}
}
