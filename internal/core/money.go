// Package core provides the domain types and money parsing.
//
// Amounts are decimals with two fractional digits. Types that carry them render
// them as JSON numbers through JSONAmount.
package core

import (
	"encoding/json"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// MaxAmount caps a single expense.
var MaxAmount = decimal.NewFromInt(1_000_000)

// JSONAmount renders d as a bare JSON number instead of decimal's quoted string.
func JSONAmount(d decimal.Decimal) json.Number {
	return json.Number(d.String())
}

// ParseAmount converts a user supplied decimal string to an amount.
//
// It accepts both dot (12.34) and comma (12,34) separators and rounds half-up
// to cents. Signs, zero, and values above MaxAmount are rejected.
//
// Examples:
//
//	ParseAmount("12.34")  -> 12.34
//	ParseAmount("12,34")  -> 12.34
//	ParseAmount("12.345") -> 12.35
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
	if strings.HasPrefix(s, ".") {
		s = "0" + s
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	d = d.Round(2)
	if err := ValidateAmount(d); err != nil {
		return decimal.Zero, err
	}
	return d, nil
}

// ValidateAmount enforces 0 < amount <= MaxAmount.
func ValidateAmount(d decimal.Decimal) error {
	if !d.IsPositive() || d.GreaterThan(MaxAmount) {
		return ErrInvalidAmount
	}
	return nil
}

// Sum adds the amounts of the given expenses.
func Sum(expenses []Expense) decimal.Decimal {
	total := decimal.Zero
	for _, e := range expenses {
		total = total.Add(e.Amount)
	}
	return total
}
