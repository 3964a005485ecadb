// Package core provides money parsing and handling utilities.
//
// Amounts are kept as integer cents. Users type whole currency units, so
// parsing only accepts unsigned digit sequences; the decimal form exists
// for display and serialization.
package core

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// MaxUnits is the largest whole amount accepted from user input.
const MaxUnits = 10_000_000_000_000

// ParseUnits converts an unsigned digit sequence into cents.
//
// Signs, separators, fractions and zero are rejected:
//
//	ParseUnits("50000") -> Money{Cents: 5000000}, nil
//	ParseUnits("12.5")  -> error
//	ParseUnits("0")     -> error
func ParseUnits(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, ErrInvalidAmount
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return Money{}, ErrInvalidAmount
		}
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 || n > MaxUnits {
		return Money{}, ErrInvalidAmount
	}
	return Money{Cents: n * 100}, nil
}

// FromUnits builds Money from a whole number of currency units.
func FromUnits(units int64) Money {
	return Money{Cents: units * 100}
}

// Decimal returns the amount in currency units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

// String renders the amount without grouping, trailing zeros trimmed
// ("50000", "12.5", "-3").
func (m Money) String() string {
	return m.Decimal().String()
}
