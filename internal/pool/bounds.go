package pool

import (
	"fmt"
	"math"

	"liquidityPool/internal/fixedpoint"
)

// BpsDenominator is the basis point scale used for slack.
const BpsDenominator uint64 = 10_000

// WidenBound returns [observed - slack, observed + slack] where slack is
// slackBps of observed. The upper end saturates at the uint64 range.
func WidenBound(observed, slackBps uint64) (ReserveBound, error) {
	if slackBps > BpsDenominator {
		return ReserveBound{}, fmt.Errorf("%w: slack %d bps exceeds %d", ErrInvalidBound, slackBps, BpsDenominator)
	}
	slack, err := fixedpoint.MulDiv(observed, slackBps, BpsDenominator)
	if err != nil {
		return ReserveBound{}, err
	}
	upper := uint64(math.MaxUint64)
	if observed <= math.MaxUint64-slack {
		upper = observed + slack
	}
	return ReserveBound{Min: observed - slack, Max: upper}, nil
}

// SwapBounds widens the observed input and output reserves of a swap.
func SwapBounds(observedIn, observedOut, slackBps uint64) (in, out ReserveBound, err error) {
	if in, err = WidenBound(observedIn, slackBps); err != nil {
		return ReserveBound{}, ReserveBound{}, err
	}
	if out, err = WidenBound(observedOut, slackBps); err != nil {
		return ReserveBound{}, ReserveBound{}, err
	}
	return in, out, nil
}

// ObservedReserves orders the snapshot reserves as (in, out) for a swap kind.
func ObservedReserves(state State, kind Kind) (in, out uint64) {
	if kind == KindSwapQuoteIn {
		return state.ReserveQuote, state.ReserveBase
	}
	return state.ReserveBase, state.ReserveQuote
}
