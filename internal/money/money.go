// Package money holds display helpers for Brazilian real amounts.
//
// Amounts are carried as exact decimals throughout the domain; rounding to
// centavos happens only when a value is presented.
package money

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Places is the number of decimal places in a displayed BRL amount.
const Places = 2

// Round rounds d half-up (away from zero) to whole centavos.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(Places)
}

// Format renders d as a BRL amount, e.g. "R$ 1.234,56".
func Format(d decimal.Decimal) string {
	r := Round(d)
	sign := ""
	if r.IsNegative() {
		sign = "-"
		r = r.Abs()
	}

	fixed := r.StringFixed(Places)
	intPart, frac, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	b.Grow(len(fixed) + len(fixed)/3 + 4)
	b.WriteString(sign)
	b.WriteString("R$ ")
	for i, c := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(c)
	}
	b.WriteByte(',')
	b.WriteString(frac)
	return b.String()
}
