package types

import (
	"errors"
	"math/big"
	"math/bits"

	"github.com/shopspring/decimal"
)

// BpsDenominator is the number of basis points in one whole (100%).
const BpsDenominator uint64 = 10_000

var (
	// ErrOverflow is returned when an amount does not fit in 64 bits.
	ErrOverflow = errors.New("types: arithmetic overflow")

	// ErrUnderflow is returned when a subtraction would go below zero.
	ErrUnderflow = errors.New("types: arithmetic underflow")

	// ErrDivisionByZero is returned by MulDiv when the divisor is zero.
	ErrDivisionByZero = errors.New("types: division by zero")
)

// MulDiv returns floor(a*b/d) computed with a 128-bit intermediate product,
// so a*b may exceed 64 bits as long as the quotient does not.
func MulDiv(a, b, d uint64) (uint64, error) {
	if d == 0 {
		return 0, ErrDivisionByZero
	}
	hi, lo := bits.Mul64(a, b)
	if hi >= d {
		return 0, ErrOverflow
	}
	q, _ := bits.Div64(hi, lo, d)
	return q, nil
}

// ApplyBps returns floor(amount*bps/10000).
func ApplyBps(amount, bps uint64) (uint64, error) {
	return MulDiv(amount, bps, BpsDenominator)
}

// Add returns a+b or ErrOverflow.
func Add(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, ErrOverflow
	}
	return sum, nil
}

// Sub returns a-b or ErrUnderflow.
func Sub(a, b uint64) (uint64, error) {
	diff, borrow := bits.Sub64(a, b, 0)
	if borrow != 0 {
		return 0, ErrUnderflow
	}
	return diff, nil
}

// ValidBps reports whether bps lies within [0, 10000].
func ValidBps(bps uint64) bool {
	return bps <= BpsDenominator
}

// Decimal converts an integer amount in the smallest unit into a decimal
// with the given number of fractional digits. Used for display only.
func Decimal(amount uint64, decimals int32) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(amount), -decimals)
}

// Ratio returns num/den as a decimal rounded to 18 places, or zero when den
// is zero. Used for display only.
func Ratio(num, den uint64) decimal.Decimal {
	if den == 0 {
		return decimal.Zero
	}
	return Decimal(num, 0).DivRound(Decimal(den, 0), 18)
}

// BpsPercent renders basis points as a percentage string, e.g. 30 -> "0.30%".
func BpsPercent(bps uint64) string {
	return Decimal(bps, 2).StringFixed(2) + "%"
}
