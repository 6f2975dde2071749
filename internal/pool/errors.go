package pool

import (
	"errors"

	"liquidityPool/internal/claims"
	"liquidityPool/internal/fixedpoint"
	"liquidityPool/internal/settlement"
)

var (
	ErrInvalidAmount    = errors.New("pool: invalid amount")
	ErrSlippageExceeded = errors.New("pool: slippage exceeded")
	ErrAlreadySeeded    = errors.New("pool: already seeded")
	ErrNotSeeded        = errors.New("pool: not seeded")
	ErrInvalidBound     = errors.New("pool: invalid reserve bound")
	ErrInvalidCaller    = errors.New("pool: invalid caller")
	ErrUnknownOperation = errors.New("pool: unknown operation")

	ErrInsufficientClaim    = claims.ErrInsufficientClaim
	ErrPreconditionViolated = settlement.ErrPreconditionViolated
	ErrInsufficientBalance  = settlement.ErrInsufficientBalance
	ErrRejected             = settlement.ErrRejected
	ErrOverflow             = fixedpoint.ErrOverflow
	ErrDivisionByZero       = fixedpoint.ErrDivisionByZero
)

// Reason maps an error onto a short stable label for journals and metrics.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, ErrSlippageExceeded):
		return "slippage_exceeded"
	case errors.Is(err, ErrInsufficientClaim):
		return "insufficient_claim"
	case errors.Is(err, ErrPreconditionViolated):
		return "precondition_violated"
	case errors.Is(err, ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, ErrOverflow):
		return "overflow"
	case errors.Is(err, ErrDivisionByZero):
		return "division_by_zero"
	case errors.Is(err, ErrAlreadySeeded):
		return "already_seeded"
	case errors.Is(err, ErrNotSeeded):
		return "not_seeded"
	case errors.Is(err, ErrInvalidBound):
		return "invalid_bound"
	case errors.Is(err, ErrInvalidCaller):
		return "invalid_caller"
	case errors.Is(err, ErrUnknownOperation):
		return "unknown_operation"
	case errors.Is(err, ErrRejected):
		return "rejected"
	default:
		return "error"
	}
}
