// Package units converts between human-readable decimal amounts and
// smallest-unit integers (wei, token base units).
package units

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// Display precision for formatted balances
const (
	NativePlaces int32 = 4
	TokenPlaces  int32 = 2
)

var (
	// ErrNotNumeric is returned for amounts that do not parse as a decimal number
	ErrNotNumeric = errors.New("amount is not a number")
	// ErrNotPositive is returned for zero or negative amounts
	ErrNotPositive = errors.New("amount must be greater than zero")
	// ErrTooPrecise is returned when an amount has more fractional digits than the token supports
	ErrTooPrecise = errors.New("amount has more fractional digits than token decimals")
	// ErrTooLarge is returned when an amount does not fit a uint256 once scaled
	ErrTooLarge = errors.New("amount exceeds uint256")
)

const (
	// maxAmountLength bounds the textual amount: 78 integer digits of a
	// uint256, a point and up to 18 fractional digits
	maxAmountLength = 97
	// maxUint256Digits is the number of decimal digits in 2^256-1
	maxUint256Digits = 78
)

// ParseAmount parses a human-unit amount and requires it to be strictly positive.
// Only plain decimal notation is accepted; exponents such as "1e18" are not.
// It performs no scaling and needs no network access.
func ParseAmount(amount string) (decimal.Decimal, error) {
	s := strings.TrimSpace(amount)
	if s == "" {
		return decimal.Zero, ErrNotNumeric
	}
	if strings.ContainsAny(s, "eE") {
		return decimal.Zero, fmt.Errorf("%w: %q uses exponent notation", ErrNotNumeric, amount)
	}
	if len(s) > maxAmountLength {
		return decimal.Zero, ErrTooLarge
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrNotNumeric, amount)
	}
	if !d.IsPositive() {
		return decimal.Zero, ErrNotPositive
	}
	return d, nil
}

// ToSmallestUnit scales a human-unit amount by 10^decimals. The result is
// always a valid uint256.
func ToSmallestUnit(amount decimal.Decimal, decimals uint8) (*big.Int, error) {
	scaled := amount.Shift(int32(decimals))
	// Checked on the digit count first so huge exponents are never materialized
	if scaled.NumDigits()+int(scaled.Exponent()) > maxUint256Digits {
		return nil, ErrTooLarge
	}
	if !scaled.Equal(scaled.Truncate(0)) {
		return nil, ErrTooPrecise
	}
	raw := scaled.BigInt()
	if raw.Sign() < 0 || raw.BitLen() > 256 {
		return nil, ErrTooLarge
	}
	return raw, nil
}

// FormatUnits divides raw by 10^decimals and renders it with a fixed number of
// places, rounding half away from zero
func FormatUnits(raw *big.Int, decimals uint8, places int32) string {
	if raw == nil {
		raw = new(big.Int)
	}
	return decimal.NewFromBigInt(raw, -int32(decimals)).StringFixed(places)
}
