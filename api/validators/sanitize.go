package validators

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// SanitizeString prepares free-text search input. It composes the text to NFC
// so "áo" typed with combining marks matches stored names, drops control
// characters, collapses runs of whitespace and truncates to maxLen runes.
func SanitizeString(input string, maxLen int) string {
	composed := norm.NFC.String(input)

	var b strings.Builder
	b.Grow(len(composed))
	count := 0
	pendingSpace := false
	for _, r := range composed {
		if unicode.IsSpace(r) {
			pendingSpace = b.Len() > 0
			continue
		}
		if unicode.IsControl(r) {
			continue
		}
		if maxLen > 0 && count >= maxLen {
			break
		}
		if pendingSpace {
			if maxLen > 0 && count+1 >= maxLen {
				break
			}
			b.WriteByte(' ')
			count++
			pendingSpace = false
		}
		b.WriteRune(r)
		count++
	}
	return b.String()
}
