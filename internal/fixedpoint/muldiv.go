// Package fixedpoint provides the exact integer primitives used by pool pricing.
package fixedpoint

import (
	"errors"
	"math"

	"github.com/holiman/uint256"
)

var (
	// ErrDivisionByZero is returned when a divisor is zero.
	ErrDivisionByZero = errors.New("fixedpoint: division by zero")
	// ErrOverflow is returned when a result does not fit in 64 bits.
	ErrOverflow = errors.New("fixedpoint: overflow")
)

// MulDiv returns floor(a * b / c).
//
// The product is formed in 256 bits so it never overflows; only the quotient is
// narrowed back to 64 bits. Rounding is truncation toward zero.
func MulDiv(a, b, c uint64) (uint64, error) {
	if c == 0 {
		return 0, ErrDivisionByZero
	}

	x := uint256.NewInt(a)
	x.Mul(x, uint256.NewInt(b))
	x.Div(x, uint256.NewInt(c))
	if !x.IsUint64() {
		return 0, ErrOverflow
	}
	return x.Uint64(), nil
}

// Add returns a + b or ErrOverflow.
func Add(a, b uint64) (uint64, error) {
	if a > math.MaxUint64-b {
		return 0, ErrOverflow
	}
	return a + b, nil
}

// Sub returns a - b or ErrOverflow when b > a.
func Sub(a, b uint64) (uint64, error) {
	if b > a {
		return 0, ErrOverflow
	}
	return a - b, nil
}
