// Package core provides money parsing, conversion and formatting.
//
// Amounts are kept as decimals in their native currency; conversion to the
// display currency happens only when a view is computed.
package core

import (
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// DefaultRate is the EUR->BRL rate used until a live rate is loaded.
var DefaultRate = decimal.NewFromFloat(5.5)

// ParseAmount converts a decimal string to a positive amount.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators.
// Returns ErrInvalidAmount for malformed, negative or zero values.
//
// Examples:
//
//	ParseAmount("12.34") -> 12.34, nil
//	ParseAmount("12,34") -> 12.34, nil
//	ParseAmount("-1")    -> 0, ErrInvalidAmount
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.Count(s, ".") > 1 {
		return decimal.Zero, ErrInvalidAmount
	}
	for _, r := range s {
		if r != '.' && !unicode.IsDigit(r) {
			return decimal.Zero, ErrInvalidAmount
		}
	}
	d, err := decimal.NewFromString(s)
	if err != nil || !d.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// Convert expresses amount (in from) in the to currency. rate is EUR->BRL.
// A non-positive rate leaves the amount unconverted.
func Convert(amount decimal.Decimal, from, to Currency, rate decimal.Decimal) decimal.Decimal {
	if !from.Valid() {
		from = PrimaryCurrency
	}
	if from == to || !rate.IsPositive() {
		return amount
	}
	if from == EUR && to == BRL {
		return amount.Mul(rate)
	}
	return amount.Div(rate)
}

// FormatAmount renders amount with two fractional digits in the currency's
// convention: "€12.34" for EUR, "R$12,34" for BRL.
func FormatAmount(amount decimal.Decimal, c Currency) string {
	neg := amount.IsNegative()
	s := amount.Abs().StringFixed(2)
	if c == BRL {
		s = strings.Replace(s, ".", ",", 1)
	}
	s = c.Symbol() + s
	if neg {
		return "-" + s
	}
	return s
}
