package yad2

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/unicode/norm"
)

var stripMarks = runes.Remove(runes.In(unicode.Mn))

// NormalizeHebrew prepares free-text Hebrew for feed queries: strips niqqud
// (combining marks), collapses runs of whitespace, and trims common street
// prefixes the feed's search index does not store.
func NormalizeHebrew(s string) string {
	decomposed := norm.NFD.String(s)
	stripped := stripMarks.String(decomposed)
	s = norm.NFC.String(stripped)

	s = strings.Join(strings.Fields(s), " ")

	for _, prefix := range []string{"רחוב ", "רח' ", "שדרות ", "שד' "} {
		if strings.HasPrefix(s, prefix) {
			s = strings.TrimPrefix(s, prefix)
			break
		}
	}
	return s
}
