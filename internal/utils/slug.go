package utils

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	slugInvalid  = regexp.MustCompile(`[^\w\s-]`)
	slugSpaceRun = regexp.MustCompile(`[-\s]+`)
)

// Slugify converts s to a lowercase, hyphenated, ascii-only slug.
// Compatibility forms are folded first (fullwidth letters, ligatures), then
// every rune outside ascii is dropped rather than transliterated, so
// "foo—à" becomes "foo". The result may be empty.
func Slugify(s string) string {
	t := transform.Chain(
		norm.NFKC,
		runes.Remove(runes.Predicate(func(r rune) bool { return r > unicode.MaxASCII })),
	)
	ascii, _, err := transform.String(t, s)
	if err != nil {
		return ""
	}
	ascii = strings.ToLower(ascii)
	ascii = slugInvalid.ReplaceAllString(ascii, "")
	ascii = slugSpaceRun.ReplaceAllString(ascii, "-")
	return strings.Trim(ascii, "-_")
}
