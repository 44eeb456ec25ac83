// ABOUTME: Conversion between integer minor units and human decimal amounts
// ABOUTME: Used at the HTTP edge, in alert bodies, and by the admin CLI

// Package money converts ledger amounts, stored as integer minor units,
// to and from decimal strings.
package money

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrTooPrecise is returned when an amount has more fractional digits than
// the currency allows.
var ErrTooPrecise = errors.New("amount has too many decimal places")

// exponents lists currencies whose minor unit is not 1/100.
var exponents = map[string]int32{
	"BHD": 3,
	"CLP": 0,
	"ISK": 0,
	"JPY": 0,
	"KRW": 0,
	"KWD": 3,
	"OMR": 3,
	"TND": 3,
	"VND": 0,
}

// Exponent returns the number of minor-unit digits for currency.
func Exponent(currency string) int32 {
	if e, ok := exponents[strings.ToUpper(currency)]; ok {
		return e
	}
	return 2
}

// FromMinor converts minor units into a decimal amount.
func FromMinor(minor int64, currency string) decimal.Decimal {
	return decimal.New(minor, -Exponent(currency))
}

// ToMinor converts a decimal amount into minor units.
func ToMinor(d decimal.Decimal, currency string) (int64, error) {
	exp := Exponent(currency)
	scaled := d.Shift(exp)
	if !scaled.Equal(scaled.Truncate(0)) {
		return 0, fmt.Errorf("%w: %s allows %d", ErrTooPrecise, strings.ToUpper(currency), exp)
	}
	if !scaled.Abs().LessThanOrEqual(decimal.NewFromInt(maxMinor)) {
		return 0, fmt.Errorf("amount %s out of range", d.String())
	}
	return scaled.IntPart(), nil
}

const maxMinor = 1<<63 - 1

// Parse reads a decimal string such as "12.50" into minor units.
func Parse(s, currency string) (int64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("parsing amount %q: %w", s, err)
	}
	return ToMinor(d, currency)
}

// Format renders minor units with the currency's fixed precision, e.g. "12.50 EUR".
func Format(minor int64, currency string) string {
	amount := FromMinor(minor, currency).StringFixed(Exponent(currency))
	if currency == "" {
		return amount
	}
	return amount + " " + strings.ToUpper(currency)
}
