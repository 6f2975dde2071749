package pool

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"liquidityPool/internal/fixedpoint"
	"liquidityPool/internal/settlement"
)

// Transition is a prepared operation: the intent to commit plus the amounts it
// moves. Projected is set when the post-state follows exactly from the
// asserted snapshot; swaps only bound their inputs so they leave it nil.
type Transition struct {
	Op     Operation
	Intent *settlement.Intent

	BaseIn   uint64
	QuoteIn  uint64
	BaseOut  uint64
	QuoteOut uint64
	Minted   uint64
	Burned   uint64
	Locked   uint64

	Projected *State
}

// AmountOut returns the output leg of a swap or the dominant payout of a removal.
func (t *Transition) AmountOut() uint64 {
	if t.BaseOut > 0 {
		return t.BaseOut
	}
	return t.QuoteOut
}

// Prepare computes op against snap. It never reads shared state.
func (p *Pool) Prepare(snap Snapshot, op Operation) (*Transition, error) {
	if op.Caller == (common.Address{}) || op.Caller == p.Account {
		return nil, fmt.Errorf("%w: %s", ErrInvalidCaller, op.Caller.Hex())
	}

	switch op.Kind {
	case KindSeed:
		return p.prepareSeed(snap, op)
	case KindAddFromBase:
		return p.prepareAdd(snap, op, true)
	case KindAddFromQuote:
		return p.prepareAdd(snap, op, false)
	case KindRemove:
		return p.prepareRemove(snap, op)
	case KindSwapBaseIn:
		return p.prepareSwap(snap, op, true)
	case KindSwapQuoteIn:
		return p.prepareSwap(snap, op, false)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownOperation, op.Kind)
	}
}

func (p *Pool) prepareSeed(snap Snapshot, op Operation) (*Transition, error) {
	if snap.Status() != StatusEmpty {
		return nil, ErrAlreadySeeded
	}
	amountBase, amountQuote := op.Amount, op.Limit
	if amountBase == 0 || amountQuote == 0 {
		return nil, fmt.Errorf("%w: seed requires both legs", ErrInvalidAmount)
	}

	sum, err := fixedpoint.Add(amountBase, amountQuote)
	if err != nil {
		return nil, fmt.Errorf("seed liquidity: %w", err)
	}
	if sum <= p.MinLocked {
		return nil, fmt.Errorf("%w: seed liquidity %d does not exceed locked minimum %d", ErrInvalidAmount, sum, p.MinLocked)
	}
	issued := sum - p.MinLocked

	nextBase, err := fixedpoint.Add(snap.ReserveBase, amountBase)
	if err != nil {
		return nil, fmt.Errorf("base reserve: %w", err)
	}
	nextQuote, err := fixedpoint.Add(snap.ReserveQuote, amountQuote)
	if err != nil {
		return nil, fmt.Errorf("quote reserve: %w", err)
	}

	intent := settlement.NewIntent()
	intent.AssertExact(p.Account, p.LiquidityToken, 0)
	intent.Transfer(op.Caller, p.Account, p.Base, amountBase)
	intent.Transfer(op.Caller, p.Account, p.Quote, amountQuote)
	intent.Mint(p.LiquidityToken, op.Caller, issued)
	if p.MinLocked > 0 {
		intent.Lock(p.LiquidityToken, p.MinLocked)
	}

	return &Transition{
		Op:      op,
		Intent:  intent,
		BaseIn:  amountBase,
		QuoteIn: amountQuote,
		Minted:  issued,
		Locked:  p.MinLocked,
		Projected: &State{
			ReserveBase:    nextBase,
			ReserveQuote:   nextQuote,
			TotalLiquidity: sum,
		},
	}, nil
}

// prepareAdd prices the counter leg at the snapshot ratio, rounding down.
func (p *Pool) prepareAdd(snap Snapshot, op Operation, fromBase bool) (*Transition, error) {
	if snap.Status() != StatusSeeded {
		return nil, ErrNotSeeded
	}
	if op.Amount == 0 {
		return nil, fmt.Errorf("%w: supplied amount is zero", ErrInvalidAmount)
	}

	suppliedReserve, counterReserve := snap.ReserveBase, snap.ReserveQuote
	if !fromBase {
		suppliedReserve, counterReserve = snap.ReserveQuote, snap.ReserveBase
	}

	counter, err := fixedpoint.MulDiv(op.Amount, counterReserve, suppliedReserve)
	if err != nil {
		return nil, fmt.Errorf("counter amount: %w", err)
	}
	if counter == 0 {
		return nil, fmt.Errorf("%w: counter amount rounds to zero", ErrInvalidAmount)
	}
	if counter > op.Limit {
		return nil, fmt.Errorf("%w: counter amount %d exceeds max %d", ErrSlippageExceeded, counter, op.Limit)
	}

	issued, err := fixedpoint.Add(op.Amount, counter)
	if err != nil {
		return nil, fmt.Errorf("issued liquidity: %w", err)
	}
	nextTotal, err := fixedpoint.Add(snap.TotalLiquidity, issued)
	if err != nil {
		return nil, fmt.Errorf("total liquidity: %w", err)
	}

	amountBase, amountQuote := op.Amount, counter
	if !fromBase {
		amountBase, amountQuote = counter, op.Amount
	}
	nextBase, err := fixedpoint.Add(snap.ReserveBase, amountBase)
	if err != nil {
		return nil, fmt.Errorf("base reserve: %w", err)
	}
	nextQuote, err := fixedpoint.Add(snap.ReserveQuote, amountQuote)
	if err != nil {
		return nil, fmt.Errorf("quote reserve: %w", err)
	}

	intent := settlement.NewIntent()
	intent.AssertExact(p.Account, p.Base, snap.ReserveBase)
	intent.AssertExact(p.Account, p.Quote, snap.ReserveQuote)
	intent.Transfer(op.Caller, p.Account, p.Base, amountBase)
	intent.Transfer(op.Caller, p.Account, p.Quote, amountQuote)
	intent.Mint(p.LiquidityToken, op.Caller, issued)

	return &Transition{
		Op:      op,
		Intent:  intent,
		BaseIn:  amountBase,
		QuoteIn: amountQuote,
		Minted:  issued,
		Projected: &State{
			ReserveBase:    nextBase,
			ReserveQuote:   nextQuote,
			TotalLiquidity: nextTotal,
		},
	}, nil
}

// prepareRemove pays out both legs pro rata to the burned share.
func (p *Pool) prepareRemove(snap Snapshot, op Operation) (*Transition, error) {
	if snap.Status() != StatusSeeded {
		return nil, ErrNotSeeded
	}
	liquidity := op.Amount
	if liquidity == 0 {
		return nil, fmt.Errorf("%w: liquidity is zero", ErrInvalidAmount)
	}
	if snap.CallerClaim < liquidity {
		return nil, fmt.Errorf("%w: claim %d, requested %d", ErrInsufficientClaim, snap.CallerClaim, liquidity)
	}

	baseOut, err := fixedpoint.MulDiv(liquidity, snap.ReserveBase, snap.TotalLiquidity)
	if err != nil {
		return nil, fmt.Errorf("base payout: %w", err)
	}
	quoteOut, err := fixedpoint.MulDiv(liquidity, snap.ReserveQuote, snap.TotalLiquidity)
	if err != nil {
		return nil, fmt.Errorf("quote payout: %w", err)
	}
	if baseOut == 0 && quoteOut == 0 {
		return nil, fmt.Errorf("%w: payout rounds to zero", ErrInvalidAmount)
	}

	intent := settlement.NewIntent()
	intent.AssertExact(p.Account, p.Base, snap.ReserveBase)
	intent.AssertExact(p.Account, p.Quote, snap.ReserveQuote)
	intent.AssertExact(p.Account, p.LiquidityToken, snap.TotalLiquidity)
	intent.Burn(p.LiquidityToken, op.Caller, liquidity)
	intent.Transfer(p.Account, op.Caller, p.Base, baseOut)
	intent.Transfer(p.Account, op.Caller, p.Quote, quoteOut)

	return &Transition{
		Op:       op,
		Intent:   intent,
		BaseOut:  baseOut,
		QuoteOut: quoteOut,
		Burned:   liquidity,
		Projected: &State{
			ReserveBase:    snap.ReserveBase - baseOut,
			ReserveQuote:   snap.ReserveQuote - quoteOut,
			TotalLiquidity: snap.TotalLiquidity - liquidity,
		},
	}, nil
}

// prepareSwap prices against the least favourable reserves inside the asserted
// bounds: the largest input reserve and the smallest output reserve.
func (p *Pool) prepareSwap(snap Snapshot, op Operation, baseIn bool) (*Transition, error) {
	if snap.Status() != StatusSeeded {
		return nil, ErrNotSeeded
	}
	amountIn, in, out := op.Amount, op.InBound, op.OutBound
	if amountIn == 0 {
		return nil, fmt.Errorf("%w: amount in is zero", ErrInvalidAmount)
	}
	if in.Min > in.Max || out.Min > out.Max {
		return nil, fmt.Errorf("%w: in %d..%d, out %d..%d", ErrInvalidBound, in.Min, in.Max, out.Min, out.Max)
	}
	if in.Min == 0 || out.Min == 0 {
		return nil, fmt.Errorf("%w: reserve bounds must be positive", ErrInvalidAmount)
	}
	if amountIn >= in.Min {
		return nil, fmt.Errorf("%w: amount in %d must be below reserve lower bound %d", ErrInvalidAmount, amountIn, in.Min)
	}

	denominator, err := fixedpoint.Add(in.Max, amountIn)
	if err != nil {
		return nil, fmt.Errorf("swap denominator: %w", err)
	}
	amountOut, err := fixedpoint.MulDiv(out.Min, amountIn, denominator)
	if err != nil {
		return nil, fmt.Errorf("amount out: %w", err)
	}
	if amountOut == 0 {
		return nil, fmt.Errorf("%w: amount out rounds to zero", ErrInvalidAmount)
	}
	if amountOut < op.Limit {
		return nil, fmt.Errorf("%w: amount out %d below min %d", ErrSlippageExceeded, amountOut, op.Limit)
	}

	tokenIn, tokenOut := p.Base, p.Quote
	if !baseIn {
		tokenIn, tokenOut = p.Quote, p.Base
	}

	intent := settlement.NewIntent()
	intent.AssertBounded(p.Account, tokenIn, in.Min, in.Max)
	intent.AssertBounded(p.Account, tokenOut, out.Min, out.Max)
	intent.Transfer(op.Caller, p.Account, tokenIn, amountIn)
	intent.Transfer(p.Account, op.Caller, tokenOut, amountOut)

	tr := &Transition{Op: op, Intent: intent}
	if baseIn {
		tr.BaseIn, tr.QuoteOut = amountIn, amountOut
	} else {
		tr.QuoteIn, tr.BaseOut = amountIn, amountOut
	}
	return tr, nil
}
