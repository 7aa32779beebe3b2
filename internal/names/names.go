// Package names normalizes person names for duplicate detection across
// enrollments.
package names

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// RemoveDiacritics removes diacritical marks from a string (e.g., "Jiří" -> "Jiri").
func RemoveDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, _ := transform.String(t, s)
	return result
}

// Clean trims and collapses whitespace in a display name.
func Clean(name string) string {
	return strings.Join(strings.Fields(name), " ")
}

// Fold normalizes a name for comparison (lowercase, no diacritics,
// collapsed whitespace, spaces for dashes).
func Fold(name string) string {
	name = RemoveDiacritics(name)
	name = strings.ToLower(name)
	name = strings.ReplaceAll(name, "-", " ")
	return Clean(name)
}
