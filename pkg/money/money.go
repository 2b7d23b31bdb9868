// Package money handles monetary amounts as int64 minor units (pence).
// Amounts cross the wire as two-decimal strings ("40.00"); parsing and
// formatting use integer arithmetic only, never floating point, so the
// VAT + discount + shipping stages cannot accumulate cent-level drift.
package money

import (
	"fmt"
	"strings"
)

// DefaultCurrency is the shop's configured currency.
const DefaultCurrency = "GBP"

// symbol for the configured currency. Cosmetic only: formatted values must
// never feed back into arithmetic.
const symbol = "£"

// Parse converts a decimal string such as "40", "40.5" or "40.00" into pence.
// A leading currency symbol is tolerated. More than two decimal places or a
// negative amount is rejected.
func Parse(s string) (int64, error) {
	orig := s
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, symbol)
	if s == "" {
		return 0, fmt.Errorf("money: empty amount")
	}
	if strings.HasPrefix(s, "-") {
		return 0, fmt.Errorf("money: negative amount %q", orig)
	}

	whole, frac, hasFrac := strings.Cut(s, ".")
	if whole == "" {
		return 0, fmt.Errorf("money: malformed amount %q", orig)
	}
	if hasFrac && (len(frac) == 0 || len(frac) > 2) {
		return 0, fmt.Errorf("money: amount %q must have 1 or 2 decimal places", orig)
	}

	var pence int64
	for _, c := range whole {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("money: malformed amount %q", orig)
		}
		d := int64(c - '0')
		if pence > (maxPence-d)/10 {
			return 0, fmt.Errorf("money: amount %q overflows", orig)
		}
		pence = pence*10 + d
	}
	pence *= 100

	if hasFrac {
		var sub int64
		for _, c := range frac {
			if c < '0' || c > '9' {
				return 0, fmt.Errorf("money: malformed amount %q", orig)
			}
			sub = sub*10 + int64(c-'0')
		}
		if len(frac) == 1 {
			sub *= 10
		}
		pence += sub
	}

	return pence, nil
}

// maxPence caps parsed amounts well below int64 overflow territory.
const maxPence = int64(1) << 50

// FormatPlain renders pence as a two-decimal string without a currency symbol.
func FormatPlain(pence int64) string {
	sign := ""
	if pence < 0 {
		sign = "-"
		pence = -pence
	}
	return fmt.Sprintf("%s%d.%02d", sign, pence/100, pence%100)
}

// Format renders pence as a display string with the currency symbol, e.g.
// 4000 -> "£40.00".
func Format(pence int64) string {
	if pence < 0 {
		return "-" + symbol + FormatPlain(-pence)
	}
	return symbol + FormatPlain(pence)
}

// SplitVAT decomposes a VAT-inclusive gross amount into net and VAT portions
// for the given rate in basis points (2000 = 20%). Rounding is half-up on the
// net portion; net + vat always equals gross exactly.
func SplitVAT(gross int64, rateBasisPoints int64) (net int64, vat int64) {
	if rateBasisPoints <= 0 || gross <= 0 {
		return gross, 0
	}
	denom := 10000 + rateBasisPoints
	net = (gross*10000 + denom/2) / denom
	vat = gross - net
	return net, vat
}
