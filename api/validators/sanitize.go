package validators

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// SanitizeString collapses whitespace runs to single spaces, drops control
// characters and keeps at most maxRunes runes. maxRunes <= 0 means no limit.
func SanitizeString(input string, maxRunes int) string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsControl(r) || r == utf8.RuneError {
			return -1
		}
		return r
	}, strings.Join(strings.Fields(input), " "))

	if maxRunes <= 0 || utf8.RuneCountInString(cleaned) <= maxRunes {
		return cleaned
	}
	seen := 0
	for i := range cleaned {
		if seen == maxRunes {
			return strings.TrimRight(cleaned[:i], " ")
		}
		seen++
	}
	return cleaned
}
