package categories

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	slugInvalid    = regexp.MustCompile(`[^a-z0-9 -]`)
	slugWhitespace = regexp.MustCompile(`\s+`)
	slugDashes     = regexp.MustCompile(`-+`)
)

var foldMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Slugify lower-cases the name, folds accents, drops anything outside
// [a-z0-9 -] and joins words with single dashes. "Áo Sơ Mi Nữ" becomes
// "ao-so-mi-nu".
func Slugify(name string) string {
	folded, _, err := transform.String(foldMarks, name)
	if err != nil {
		folded = name
	}
	folded = strings.NewReplacer("đ", "d", "Đ", "D").Replace(folded)

	slug := strings.ToLower(folded)
	slug = slugInvalid.ReplaceAllString(slug, "")
	slug = slugWhitespace.ReplaceAllString(strings.TrimSpace(slug), "-")
	slug = slugDashes.ReplaceAllString(slug, "-")
	return strings.Trim(slug, "-")
}
