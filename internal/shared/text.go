package shared

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NormalizeName canonicalizes user-facing names before storage: Unicode NFC
// plus surrounding whitespace trim, so lookups and display render one form.
func NormalizeName(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}
