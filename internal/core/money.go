// Package core holds the domain types shared across fintrack: loans,
// payments, budgets, cash-flow entries and notifications.
package core

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Money is an amount in the currency's minor unit. The tracker does not
// convert between currencies, so a bare integer is enough.
type Money int64

// Validate requires a strictly positive amount.
func (m Money) Validate() error {
	if m <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// Decimal returns the amount as a decimal for rate arithmetic.
func (m Money) Decimal() decimal.Decimal {
	return decimal.NewFromInt(int64(m))
}

// String formats with thousands separators, e.g. 1000000 -> "1,000,000".
func (m Money) String() string {
	n := int64(m)
	neg := n < 0
	if neg {
		n = -n
	}
	digits := strconv.FormatInt(n, 10)
	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	lead := len(digits) % 3
	if lead == 0 {
		lead = 3
	}
	b.WriteString(digits[:lead])
	for i := lead; i < len(digits); i += 3 {
		b.WriteByte(',')
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}

// ParseMoney accepts plain integers and grouped forms such as "1,000,000",
// "1.000.000" or "1 000 000". Fractional parts are rejected.
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.HasPrefix(s, "-") || strings.HasPrefix(s, "+") {
		return 0, ErrInvalidAmount
	}
	groups := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == '.' || r == ' ' || r == '_'
	})
	if len(groups) == 0 {
		return 0, ErrInvalidAmount
	}
	for _, g := range groups[1:] {
		if len(g) != 3 {
			return 0, ErrInvalidAmount
		}
	}
	v, err := strconv.ParseInt(strings.Join(groups, ""), 10, 64)
	if err != nil || v <= 0 {
		return 0, ErrInvalidAmount
	}
	return Money(v), nil
}
