// Package money holds the decimal helpers shared by the pricing engines.
// Amounts are stored as decimal.Decimal; parsing and formatting of display
// strings happens only at the edges.
package money

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrInvalidAmount is returned when a display string holds no number
var ErrInvalidAmount = errors.New("invalid money amount")

var symbols = map[string]string{
	"USD": "$",
	"EUR": "€",
	"GBP": "£",
	"PHP": "₱",
	"INR": "₹",
}

// Round2 rounds half away from zero to cents
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// Min returns the smaller amount
func Min(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}

// Parse reads a currency-formatted string such as "$1,299.50" or "₱ 12,000".
// Grouping separators and currency symbols are dropped; the decimal point is kept.
func Parse(s string) (decimal.Decimal, error) {
	var b strings.Builder
	negative := false
	for _, r := range strings.TrimSpace(s) {
		switch {
		case r >= '0' && r <= '9', r == '.':
			b.WriteRune(r)
		case r == '-' && b.Len() == 0:
			negative = true
		}
	}
	if b.Len() == 0 {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}

	d, err := decimal.NewFromString(b.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if negative {
		d = d.Neg()
	}
	return d, nil
}

// Format renders an amount for display, e.g. Format(1299.5, "USD") = "$1,299.50"
func Format(d decimal.Decimal, currency string) string {
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Abs()
	}

	fixed := d.StringFixed(2)
	intPart, frac, _ := strings.Cut(fixed, ".")

	var grouped strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			grouped.WriteByte(',')
		}
		grouped.WriteRune(r)
	}

	prefix, ok := symbols[strings.ToUpper(currency)]
	if !ok {
		prefix = strings.ToUpper(currency) + " "
	}
	return sign + prefix + grouped.String() + "." + frac
}
