package dataset

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Canonicalize converts a column header to lower_snake_case.
// "Customer ID" becomes "customer_id"; runs of separators collapse to one
// underscore and leading/trailing separators are dropped.
func Canonicalize(name string) string {
	// A Caser holds state, so one is made per call
	s := cases.Lower(language.Und).String(strings.TrimSpace(name))

	var b strings.Builder
	b.Grow(len(s))
	pendingSep := false
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r)
			continue
		}
		pendingSep = true
	}
	return b.String()
}
