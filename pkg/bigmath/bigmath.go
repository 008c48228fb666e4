// Package bigmath provides exact integer helpers for token amounts.
// All chain-facing math stays on *big.Int; decimal.Decimal appears only
// at the parsing/formatting boundary.
package bigmath

import (
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	// precisionBufferDenominator shaves 1e-8 off forward-quoted flash-loan
	// amounts so the executed amount never exceeds the quote.
	precisionBufferDenominator = 100_000_000

	// maxSlippageDenominator bounds flash-loan mint/redeem maxima at
	// 0.999999 of the converted balance.
	maxSlippageDenominator = 1_000_000

	// gasSlippageNumerator/Denominator pad gas estimates by 20% before
	// submission.
	gasSlippageNumerator   = 12
	gasSlippageDenominator = 10
)

var zero = big.NewInt(0)

// MinBig returns the smaller of a and b.
func MinBig(a, b *big.Int) *big.Int {
	if a.Cmp(b) <= 0 {
		return new(big.Int).Set(a)
	}
	return new(big.Int).Set(b)
}

// MaxBig returns the larger of a and b.
func MaxBig(a, b *big.Int) *big.Int {
	if a.Cmp(b) >= 0 {
		return new(big.Int).Set(a)
	}
	return new(big.Int).Set(b)
}

// ClampPositive returns x if x > 0, otherwise 0. Used wherever a
// subtraction could underflow a logically-unsigned quantity, e.g. a
// balance minus the gas reserve.
func ClampPositive(x *big.Int) *big.Int {
	if x.Sign() > 0 {
		return new(big.Int).Set(x)
	}
	return big.NewInt(0)
}

// ReduceByPrecisionBuffer returns x*(1 - 1e-8) with truncated division.
// Absorbs quote-vs-execution drift without changing the visible magnitude.
func ReduceByPrecisionBuffer(x *big.Int) *big.Int {
	out := new(big.Int).Mul(x, big.NewInt(precisionBufferDenominator-1))
	return out.Div(out, big.NewInt(precisionBufferDenominator))
}

// ReduceByMaxSlippage returns x*0.999999, truncated. Applied to
// flash-loan maxima to avoid an off-by-one revert at the boundary.
func ReduceByMaxSlippage(x *big.Int) *big.Int {
	out := new(big.Int).Mul(x, big.NewInt(maxSlippageDenominator-1))
	return out.Div(out, big.NewInt(maxSlippageDenominator))
}

// ApplyGasSlippage pads a positive gas estimate by the fixed multiplier.
func ApplyGasSlippage(estimate *big.Int) *big.Int {
	out := new(big.Int).Mul(estimate, big.NewInt(gasSlippageNumerator))
	return out.Div(out, big.NewInt(gasSlippageDenominator))
}

// GasLimitWithSlippage is ApplyGasSlippage for the uint64 gas limits
// returned by eth_estimateGas.
func GasLimitWithSlippage(estimate uint64) uint64 {
	return estimate / gasSlippageDenominator * gasSlippageNumerator
}

// Pow10 returns 10^n as a big.Int. n must be non-negative.
func Pow10(n int) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}

// Abs returns the absolute value of x.
func Abs(x *big.Int) *big.Int {
	return new(big.Int).Abs(x)
}

// ProcessInput parses a user-typed decimal string into a normalized
// display string and a raw amount in the token's smallest unit.
// Partial input ("", ".", trailing separator) and invalid or negative
// values yield ok=false without error; callers treat that as
// "no amount entered yet".
func ProcessInput(raw string, decimals int) (display string, amount *big.Int, ok bool) {
	s := strings.TrimSpace(raw)
	s = strings.ReplaceAll(s, ",", ".")
	if s == "" || s == "." {
		return "", nil, false
	}
	// tolerate a trailing separator while the user is still typing
	s = strings.TrimSuffix(s, ".")

	d, err := decimal.NewFromString(s)
	if err != nil {
		return "", nil, false
	}
	if d.IsNegative() {
		return "", nil, false
	}

	// excess fractional digits are truncated to the token's precision
	d = d.Truncate(int32(decimals))
	amount = d.Shift(int32(decimals)).BigInt()
	return d.String(), amount, true
}

// FormatUnits renders a raw amount in smallest units as a decimal string
// for the given token precision. Presentation-boundary only.
func FormatUnits(amount *big.Int, decimals int) string {
	if amount == nil {
		return "0"
	}
	return decimal.NewFromBigInt(amount, -int32(decimals)).String()
}

// FormatUnitsFloat returns the float64 rendering of a raw amount.
// Explicitly lossy; used for USD values and percentages only.
func FormatUnitsFloat(amount *big.Int, decimals int) float64 {
	if amount == nil {
		return 0
	}
	f, _ := decimal.NewFromBigInt(amount, -int32(decimals)).Float64()
	return f
}

// IsZeroOrNil reports whether x is nil or exactly zero.
func IsZeroOrNil(x *big.Int) bool {
	return x == nil || x.Cmp(zero) == 0
}
