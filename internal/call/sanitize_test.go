package call

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSanitizeForSpeech(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "plain text untouched",
			in:   "We're open 9 to 5.",
			want: "We're open 9 to 5.",
		},
		{
			name: "headings and bold stripped",
			in:   "## Hours\nWe're **open** from 9 to 5.",
			want: "Hours\nWe're open from 9 to 5.",
		},
		{
			name: "bullets flattened",
			in:   "- Monday\n- Tuesday",
			want: "Monday\nTuesday",
		},
		{
			name: "code fences removed",
			in:   "Run this:\n```\nrm -rf /\n```\nDone.",
			want: "Run this:\nDone.",
		},
		{
			name: "links keep label",
			in:   "See [our site](https://example.com) for details.",
			want: "See our site for details.",
		},
		{
			name: "blank lines collapsed",
			in:   "First.\n\n\nSecond.",
			want: "First.\nSecond.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeForSpeech(tt.in, 0); got != tt.want {
				t.Errorf("SanitizeForSpeech(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSanitizeForSpeechLengthCap(t *testing.T) {
	long := strings.Repeat("This is a sentence. ", 100)
	got := SanitizeForSpeech(long, 120)

	if len(got) > 120 {
		t.Fatalf("result length %d exceeds cap 120", len(got))
	}
	if !strings.HasSuffix(got, ".") {
		t.Errorf("expected truncation at a sentence boundary, got %q", got)
	}
}

func TestSanitizeForSpeechHardCapKeepsRunesWhole(t *testing.T) {
	// No sentence ends and no spaces, so the hard cap applies; each
	// rune is two bytes and the odd cap would land mid-rune.
	long := strings.Repeat("ü", 100)
	got := SanitizeForSpeech(long, 25)

	if len(got) > 25 {
		t.Fatalf("result length %d exceeds cap 25", len(got))
	}
	if !utf8.ValidString(got) {
		t.Fatalf("truncation produced invalid UTF-8: %q", got)
	}
	if got != strings.Repeat("ü", 12) {
		t.Errorf("expected 12 whole runes, got %q", got)
	}
}
