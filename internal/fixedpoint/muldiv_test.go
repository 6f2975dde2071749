package fixedpoint

import (
	"errors"
	"math"
	"math/big"
	"math/rand"
	"testing"
)

func bigMulDiv(a, b, c uint64) *big.Int {
	out := new(big.Int).Mul(new(big.Int).SetUint64(a), new(big.Int).SetUint64(b))
	return out.Div(out, new(big.Int).SetUint64(c))
}

func TestMulDivMatchesBigInt(t *testing.T) {
	cases := [][3]uint64{
		{0, 0, 1},
		{1, 1, 1},
		{7, 3, 2},
		{10_000_000_000, 50_000_000_000, 60_000_000_000},
		{math.MaxUint64, math.MaxUint64, math.MaxUint64},
		{math.MaxUint64, 2, 3},
		{math.MaxUint64 - 1, math.MaxUint64 - 3, math.MaxUint64},
		{1 << 63, 1 << 62, 1 << 61},
	}

	for _, tc := range cases {
		want := bigMulDiv(tc[0], tc[1], tc[2])
		got, err := MulDiv(tc[0], tc[1], tc[2])
		if !want.IsUint64() {
			if !errors.Is(err, ErrOverflow) {
				t.Fatalf("MulDiv(%d, %d, %d): expected overflow, got %d, %v", tc[0], tc[1], tc[2], got, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("MulDiv(%d, %d, %d): unexpected error: %v", tc[0], tc[1], tc[2], err)
		}
		if got != want.Uint64() {
			t.Fatalf("MulDiv(%d, %d, %d) = %d, want %s", tc[0], tc[1], tc[2], got, want)
		}
	}
}

func TestMulDivRandom(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 10_000; i++ {
		a, b := rng.Uint64(), rng.Uint64()
		c := rng.Uint64()
		if c == 0 {
			c = 1
		}
		if i%3 == 0 {
			// keep a share of the samples in range
			c = a | 1
		}

		want := bigMulDiv(a, b, c)
		got, err := MulDiv(a, b, c)
		if want.IsUint64() {
			if err != nil || got != want.Uint64() {
				t.Fatalf("MulDiv(%d, %d, %d) = %d, %v; want %s", a, b, c, got, err, want)
			}
		} else if !errors.Is(err, ErrOverflow) {
			t.Fatalf("MulDiv(%d, %d, %d): expected overflow, got %v", a, b, c, err)
		}
	}
}

func TestMulDivTruncates(t *testing.T) {
	got, err := MulDiv(5, 5, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 8 {
		t.Fatalf("expected truncation to 8, got %d", got)
	}
}

func TestMulDivDivisionByZero(t *testing.T) {
	if _, err := MulDiv(1, 2, 0); !errors.Is(err, ErrDivisionByZero) {
		t.Fatalf("expected ErrDivisionByZero, got %v", err)
	}
	if _, err := MulDiv(0, 0, 0); !errors.Is(err, ErrDivisionByZero) {
		t.Fatalf("expected ErrDivisionByZero, got %v", err)
	}
}

func TestAddSub(t *testing.T) {
	if _, err := Add(math.MaxUint64, 1); !errors.Is(err, ErrOverflow) {
		t.Fatalf("expected add overflow, got %v", err)
	}
	if v, err := Add(math.MaxUint64-1, 1); err != nil || v != math.MaxUint64 {
		t.Fatalf("unexpected add result %d, %v", v, err)
	}
	if _, err := Sub(1, 2); !errors.Is(err, ErrOverflow) {
		t.Fatalf("expected sub underflow, got %v", err)
	}
	if v, err := Sub(5, 5); err != nil || v != 0 {
		t.Fatalf("unexpected sub result %d, %v", v, err)
	}
}
