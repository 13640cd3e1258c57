// Package normalize converts raw statement strings into canonical typed
// values: ISO dates, decimal magnitudes, currency codes, and the
// credit/debit direction. All functions are pure; failures return ok=false
// and never panic or error.
package normalize

import (
	"strconv"
	"strings"
	"time"

	"github.com/solufin/extrato/internal/domain"
)

// dateLayout pairs a shape test with the time layout used to parse it.
// Layouts are tried in order; the shape test keeps a value from being
// parsed by the wrong regional convention. Slash/dash forms with a 4-digit
// year tail resolve day-first (pt-BR precedence), never by host locale.
type dateLayout struct {
	match  func(string) bool
	layout string
}

var dateLayouts = []dateLayout{
	{matchShape("dddd-dd-dd"), "2006-01-02"},
	{matchShape("dddd/dd/dd"), "2006/01/02"},
	{matchShape("dddddddd"), "20060102"},
	{matchShape("dd/dd/dddd"), "02/01/2006"},
	{matchShape("dd-dd-dddd"), "02-01-2006"},
	{matchShape("d/dd/dddd"), "2/01/2006"},
	{matchShape("dd/d/dddd"), "02/1/2006"},
	{matchShape("d/d/dddd"), "2/1/2006"},
}

// matchShape builds a predicate for a digit/separator pattern where 'd'
// stands for one digit and any other byte must match literally.
func matchShape(shape string) func(string) bool {
	return func(s string) bool {
		if len(s) != len(shape) {
			return false
		}
		for i := 0; i < len(s); i++ {
			if shape[i] == 'd' {
				if s[i] < '0' || s[i] > '9' {
					return false
				}
			} else if s[i] != shape[i] {
				return false
			}
		}
		return true
	}
}

// Date converts a raw date string to ISO YYYY-MM-DD. Returns ok=false when
// no known layout matches or the value is not a real calendar date.
func Date(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	for _, dl := range dateLayouts {
		if !dl.match(raw) {
			continue
		}
		t, err := time.Parse(dl.layout, raw)
		if err != nil {
			return "", false
		}
		return t.Format("2006-01-02"), true
	}
	return "", false
}

// Sign markers an amount string can carry. Empty means the source wrote an
// unsigned magnitude.
const (
	SignNone     = ""
	SignPositive = "+"
	SignNegative = "-"
)

// Amount parses a raw amount string into a non-negative magnitude and the
// explicit sign marker, if any. Currency symbols, letters, and whitespace
// are stripped; both "1.234,56" (pt-BR) and "1,234.56" separator styles are
// accepted. Returns ok=false when nothing parseable remains.
func Amount(raw string) (float64, string, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, SignNone, false
	}

	sign := SignNone
	switch {
	case strings.HasPrefix(s, "-"):
		sign = SignNegative
		s = s[1:]
	case strings.HasPrefix(s, "+"):
		sign = SignPositive
		s = s[1:]
	}

	// Strip everything that is not a digit or separator (currency symbols,
	// spaces, stray letters as in "R$ 45,90").
	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' || r == ',' {
			b.WriteRune(r)
		}
	}
	s = b.String()
	if s == "" {
		return 0, SignNone, false
	}

	s = resolveSeparators(s)

	value, err := strconv.ParseFloat(s, 64)
	if err != nil || value < 0 {
		return 0, SignNone, false
	}

	return value, sign, true
}

// resolveSeparators rewrites an amount's digits-and-separators body to use
// '.' as the decimal separator and no thousands grouping. The last
// separator wins as decimal when both appear; a lone comma is pt-BR
// decimal, a lone dot is kept as decimal.
func resolveSeparators(s string) string {
	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")

	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		if strings.Count(s, ",") > 1 {
			// Multiple commas can only be thousands grouping.
			s = strings.ReplaceAll(s, ",", "")
		} else {
			s = strings.Replace(s, ",", ".", 1)
		}
	case lastDot >= 0 && strings.Count(s, ".") > 1:
		s = strings.ReplaceAll(s, ".", "")
	}
	return s
}

// currencyAliases maps lowercase source tokens to ISO codes.
var currencyAliases = map[string]domain.CurrencyCode{
	"real": domain.CurrencyBRL, "reais": domain.CurrencyBRL,
	"r$": domain.CurrencyBRL, "brl": domain.CurrencyBRL,
	"dollar": domain.CurrencyUSD, "usd": domain.CurrencyUSD,
	"euro": domain.CurrencyEUR, "eur": domain.CurrencyEUR,
}

// Currency maps a raw currency token to a code. Known aliases resolve
// case-insensitively; unknown non-empty tokens are uppercased as-is; empty
// input defaults to the home currency.
func Currency(raw string) domain.CurrencyCode {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return domain.HomeCurrency
	}
	if code, ok := currencyAliases[strings.ToLower(raw)]; ok {
		return code
	}
	return domain.CurrencyCode(strings.ToUpper(raw))
}

// creditHints and debitHints are matched as substrings of the lowercased
// type column. Portuguese tokens cover the home market's CSV exports.
var (
	creditHints = []string{"credit", "income", "deposit", "receita", "entrada", "crédito", "credito"}
	debitHints  = []string{"debit", "expense", "withdrawal", "despesa", "saída", "saida", "débito", "debito"}
)

// Direction resolves credit/debit from the optional type hint and the
// amount's explicit sign marker. An explicit hint wins; otherwise a signed
// amount follows the OFX convention (negative out, positive in); unsigned
// amounts default to debit.
func Direction(typeHint, sign string) domain.Direction {
	hint := strings.ToLower(strings.TrimSpace(typeHint))
	if hint != "" {
		for _, h := range creditHints {
			if strings.Contains(hint, h) {
				return domain.DirectionCredit
			}
		}
		for _, h := range debitHints {
			if strings.Contains(hint, h) {
				return domain.DirectionDebit
			}
		}
	}
	switch sign {
	case SignNegative:
		return domain.DirectionDebit
	case SignPositive:
		return domain.DirectionCredit
	}
	return domain.DirectionDebit
}
