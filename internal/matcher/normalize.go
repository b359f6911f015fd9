package matcher

import (
	"path/filepath"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalize strips diacritics, lowercases, drops punctuation and collapses
// whitespace: "  García-López, Ána " -> "garcia lopez ana".
func Normalize(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, s)
	if err != nil {
		stripped = s
	}
	stripped = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return ' '
	}, stripped)
	return strings.Join(strings.Fields(stripped), " ")
}

func isSeparator(r rune) bool {
	switch r {
	case '_', '-', '.', ',', ' ', '\t':
		return true
	}
	return false
}

func isAlphabetic(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}

// ExtractSurname returns the first purely alphabetic segment of the file's
// base name without extension, e.g. "2025_Garcia_Juan.md" -> "Garcia".
func ExtractSurname(filename string) string {
	base := filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
	base = strings.TrimSuffix(base, filepath.Ext(base))
	for _, seg := range strings.FieldsFunc(base, isSeparator) {
		if isAlphabetic(seg) {
			return seg
		}
	}
	return ""
}
