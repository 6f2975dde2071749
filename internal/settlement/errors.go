package settlement

import (
	"errors"
	"fmt"

	"liquidityPool/internal/claims"
)

var (
	// ErrPreconditionViolated is returned when an asserted bound does not hold at commit.
	ErrPreconditionViolated = errors.New("settlement: precondition violated")
	// ErrInsufficientBalance is returned when a transfer exceeds the sender's balance.
	ErrInsufficientBalance = errors.New("settlement: insufficient balance")
	// ErrInsufficientClaim is returned when a burn exceeds the holder's claim.
	ErrInsufficientClaim = claims.ErrInsufficientClaim
	// ErrRejected covers every other reason the ledger refuses a batch.
	ErrRejected = errors.New("settlement: rejected")
)

// CommitErrorKind classifies a rejected commit.
type CommitErrorKind string

const (
	KindPreconditionViolated CommitErrorKind = "precondition_violated"
	KindInsufficientBalance  CommitErrorKind = "insufficient_balance"
	KindInsufficientClaim    CommitErrorKind = "insufficient_claim"
	KindRejected             CommitErrorKind = "rejected"
)

// CommitError reports why a whole intent was rejected. No effect of the
// intent is applied when it is returned.
type CommitError struct {
	Kind     CommitErrorKind
	IntentID string
	Detail   string
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("commit %s: %s: %s", e.IntentID, e.Kind, e.Detail)
}

func (e *CommitError) Unwrap() error {
	switch e.Kind {
	case KindPreconditionViolated:
		return ErrPreconditionViolated
	case KindInsufficientBalance:
		return ErrInsufficientBalance
	case KindInsufficientClaim:
		return ErrInsufficientClaim
	default:
		return ErrRejected
	}
}

// NewCommitError builds a CommitError for intentID.
func NewCommitError(kind CommitErrorKind, intentID string, format string, args ...interface{}) *CommitError {
	return &CommitError{Kind: kind, IntentID: intentID, Detail: fmt.Sprintf(format, args...)}
}

// KindOf returns the commit error kind carried by err, if any.
func KindOf(err error) (CommitErrorKind, bool) {
	var commitErr *CommitError
	if errors.As(err, &commitErr) {
		return commitErr.Kind, true
	}
	return "", false
}
