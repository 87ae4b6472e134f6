package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stripMarks decomposes to NFC-free form and drops combining marks, turning
// "Factura São João" into "Factura Sao Joao".
var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

func removeDiacritics(s string) string {
	out, _, err := transform.String(stripMarks, s)
	if err != nil {
		return s
	}
	return out
}

// Text canonicalizes a free-text movement description: lowercase, diacritics
// stripped, every non-alphanumeric run replaced by a single space.
func Text(raw string) string {
	s := strings.ToLower(removeDiacritics(raw))

	var b strings.Builder
	b.Grow(len(s))
	space := false
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
		} else {
			space = true
		}
	}
	return b.String()
}

// PartyName canonicalizes a supplier/company name for display and audit. The
// result is never used as a join key.
func PartyName(raw string) string {
	s := strings.ToUpper(removeDiacritics(strings.TrimSpace(raw)))
	s = strings.ReplaceAll(s, "-", " ")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, ".", "")
	return strings.Join(strings.Fields(s), " ")
}
