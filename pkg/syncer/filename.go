package syncer

import (
	"regexp"
	"strings"
)

// Maximum length of the sanitized title portion of a filename, in runes.
const maxTitleLen = 60

var (
	disallowedRunes = regexp.MustCompile(`[^\p{L}\p{N}\s_-]`)
	hyphenRuns      = regexp.MustCompile(`-+`)
)

// SanitizeTitle converts a meeting title into a filesystem-safe slug:
// punctuation is dropped, the result is capped at 60 runes, whitespace
// runs become single hyphens, and hyphen runs collapse.
func SanitizeTitle(title string) string {
	s := disallowedRunes.ReplaceAllString(title, "")

	runes := []rune(s)
	if len(runes) > maxTitleLen {
		s = string(runes[:maxTitleLen])
	}

	s = strings.Join(strings.Fields(s), "-")
	s = hyphenRuns.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")

	if s == "" {
		return "untitled"
	}
	return s
}

// Filename derives the markdown filename for a meeting from its date
// prefix and title. Deterministic for a given (date, title) pair.
func Filename(datePrefix, title string) string {
	return datePrefix + "-" + SanitizeTitle(title) + ".md"
}
