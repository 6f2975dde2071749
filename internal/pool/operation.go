package pool

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Kind is the closed set of pool operations.
type Kind string

const (
	KindSeed         Kind = "seed"
	KindAddFromBase  Kind = "add_from_base"
	KindAddFromQuote Kind = "add_from_quote"
	KindRemove       Kind = "remove"
	KindSwapBaseIn   Kind = "swap_base_in"
	KindSwapQuoteIn  Kind = "swap_quote_in"
)

// ParseKind validates a kind name.
func ParseKind(value string) (Kind, error) {
	switch k := Kind(value); k {
	case KindSeed, KindAddFromBase, KindAddFromQuote, KindRemove, KindSwapBaseIn, KindSwapQuoteIn:
		return k, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownOperation, value)
	}
}

func (k Kind) IsSwap() bool {
	return k == KindSwapBaseIn || k == KindSwapQuoteIn
}

// ReserveBound is a caller-asserted interval for one reserve.
type ReserveBound struct {
	Min uint64 `json:"min"`
	Max uint64 `json:"max"`
}

// Operation is one requested state transition.
//
// Amount and Limit depend on Kind:
//   - seed: base amount, quote amount
//   - add_from_base / add_from_quote: supplied leg, max counter leg
//   - remove: liquidity to burn, unused
//   - swap_*: amount in, minimum amount out
type Operation struct {
	Kind     Kind           `json:"kind"`
	Caller   common.Address `json:"caller"`
	Amount   uint64         `json:"amount"`
	Limit    uint64         `json:"limit"`
	InBound  ReserveBound   `json:"in_bound"`
	OutBound ReserveBound   `json:"out_bound"`
}

func Seed(caller common.Address, amountBase, amountQuote uint64) Operation {
	return Operation{Kind: KindSeed, Caller: caller, Amount: amountBase, Limit: amountQuote}
}

func AddFromBase(caller common.Address, amountBase, maxAmountQuote uint64) Operation {
	return Operation{Kind: KindAddFromBase, Caller: caller, Amount: amountBase, Limit: maxAmountQuote}
}

func AddFromQuote(caller common.Address, amountQuote, maxAmountBase uint64) Operation {
	return Operation{Kind: KindAddFromQuote, Caller: caller, Amount: amountQuote, Limit: maxAmountBase}
}

func Remove(caller common.Address, liquidity uint64) Operation {
	return Operation{Kind: KindRemove, Caller: caller, Amount: liquidity}
}

func SwapBaseIn(caller common.Address, amountIn, amountOutMin uint64, in, out ReserveBound) Operation {
	return Operation{Kind: KindSwapBaseIn, Caller: caller, Amount: amountIn, Limit: amountOutMin, InBound: in, OutBound: out}
}

func SwapQuoteIn(caller common.Address, amountIn, amountOutMin uint64, in, out ReserveBound) Operation {
	return Operation{Kind: KindSwapQuoteIn, Caller: caller, Amount: amountIn, Limit: amountOutMin, InBound: in, OutBound: out}
}
