// Package slug derives URL-safe identifiers from display names.
package slug

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Make lowercases s, strips diacritics and joins alphanumeric runs with '-'.
// "Caffè Crème 250g" becomes "caffe-creme-250g".
func Make(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}

	var b strings.Builder
	pendingDash := false
	for _, r := range strings.ToLower(folded) {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(r)
		case r == '_' || r == '-' || unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsSymbol(r):
			pendingDash = true
		}
	}
	return b.String()
}

// Truncate shortens a slug to max bytes without leaving a trailing dash.
func Truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return strings.TrimRight(s[:max], "-")
}
