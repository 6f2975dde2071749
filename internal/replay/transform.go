package replay

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"liquidityPool/internal/model"
	"liquidityPool/internal/pool"
)

// BuildOperation turns an input record into a builder the coordinator runs
// against a fresh snapshot. Swaps without explicit bounds widen the observed
// reserves by the record's slack.
func BuildOperation(record model.OperationRecord) (common.Address, pool.Builder, error) {
	kind, err := pool.ParseKind(record.Kind)
	if err != nil {
		return common.Address{}, nil, err
	}
	caller, err := ParseAddress(record.Caller)
	if err != nil {
		return common.Address{}, nil, fmt.Errorf("caller: %w", err)
	}
	amount, err := ParseAmount(record.Amount)
	if err != nil {
		return common.Address{}, nil, fmt.Errorf("amount: %w", err)
	}
	limit, err := ParseAmount(record.Limit)
	if err != nil {
		return common.Address{}, nil, fmt.Errorf("limit: %w", err)
	}

	op := pool.Operation{Kind: kind, Caller: caller, Amount: amount, Limit: limit}
	if !kind.IsSwap() {
		return caller, fixed(op), nil
	}

	if record.HasExplicitBounds() {
		bounds := make([]uint64, 4)
		for i, raw := range []string{record.InMin, record.InMax, record.OutMin, record.OutMax} {
			if bounds[i], err = ParseAmount(raw); err != nil {
				return common.Address{}, nil, fmt.Errorf("bound: %w", err)
			}
		}
		op.InBound = pool.ReserveBound{Min: bounds[0], Max: bounds[1]}
		op.OutBound = pool.ReserveBound{Min: bounds[2], Max: bounds[3]}
		return caller, fixed(op), nil
	}

	slack := record.SlackBps
	return caller, func(snap pool.Snapshot) (pool.Operation, error) {
		observedIn, observedOut := pool.ObservedReserves(snap.State, kind)
		in, out, err := pool.SwapBounds(observedIn, observedOut, slack)
		if err != nil {
			return pool.Operation{}, err
		}
		next := op
		next.InBound, next.OutBound = in, out
		return next, nil
	}, nil
}

func fixed(op pool.Operation) pool.Builder {
	return func(pool.Snapshot) (pool.Operation, error) {
		return op, nil
	}
}
