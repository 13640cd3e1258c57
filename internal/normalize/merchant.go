package normalize

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var merchantKeyPattern = regexp.MustCompile(`[^a-z0-9]+`)

// MerchantKey reduces a merchant/payee name to the stable lowercase slug
// used as the learned-mapping key, so "Pão de Açúcar" and "PAO DE ACUCAR"
// share one mapping. Accented characters are folded via unicode
// decomposition. Returns "" when nothing identifiable remains.
func MerchantKey(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}

	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, name)
	if err != nil || folded == "" {
		folded = name
	}

	key := merchantKeyPattern.ReplaceAllString(strings.ToLower(folded), "-")
	return strings.Trim(key, "-")
}
