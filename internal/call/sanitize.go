package call

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	codeFenceRe   = regexp.MustCompile("(?s)```.*?```")
	inlineCodeRe  = regexp.MustCompile("`([^`]*)`")
	headingRe     = regexp.MustCompile(`(?m)^#{1,6}\s*`)
	boldItalicRe  = regexp.MustCompile(`(\*{1,3}|_{1,3})([^*_]+)(\*{1,3}|_{1,3})`)
	linkRe        = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	bulletRe      = regexp.MustCompile(`(?m)^\s*[-*+]\s+`)
	numberedRe    = regexp.MustCompile(`(?m)^\s*\d+\.\s+`)
	blankOnlyRe   = regexp.MustCompile(`(?m)^[ \t]+$`)
	blankLinesRe  = regexp.MustCompile(`\n{2,}`)
	multiSpaceRe  = regexp.MustCompile(`[ \t]{2,}`)
	decorativeRe  = regexp.MustCompile(`[#*_~>|\\]`)
)

// SanitizeForSpeech strips formatting that reads badly when spoken:
// markdown structure, decorative symbols, stacked blank lines. The
// result is hard-capped at maxChars, cut at a sentence or word boundary
// where possible.
func SanitizeForSpeech(text string, maxChars int) string {
	s := codeFenceRe.ReplaceAllString(text, " ")
	s = inlineCodeRe.ReplaceAllString(s, "$1")
	s = headingRe.ReplaceAllString(s, "")
	s = boldItalicRe.ReplaceAllString(s, "$2")
	s = linkRe.ReplaceAllString(s, "$1")
	s = bulletRe.ReplaceAllString(s, "")
	s = numberedRe.ReplaceAllString(s, "")
	s = decorativeRe.ReplaceAllString(s, "")
	s = blankOnlyRe.ReplaceAllString(s, "")
	s = blankLinesRe.ReplaceAllString(s, "\n")
	s = multiSpaceRe.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)

	if maxChars > 0 && len(s) > maxChars {
		s = truncateAtBoundary(s, maxChars)
	}
	return s
}

// truncateAtBoundary cuts s at the last sentence end before the cap,
// else at the last word, else hard at the cap (never mid-rune).
func truncateAtBoundary(s string, maxChars int) string {
	cut := s[:maxChars]
	for len(cut) > 0 {
		r, size := utf8.DecodeLastRuneInString(cut)
		if r != utf8.RuneError || size != 1 {
			break
		}
		cut = cut[:len(cut)-1]
	}
	if i := strings.LastIndexAny(cut, ".!?"); i > maxChars/2 {
		return strings.TrimSpace(cut[:i+1])
	}
	if i := strings.LastIndex(cut, " "); i > 0 {
		return strings.TrimSpace(cut[:i])
	}
	return cut
}
