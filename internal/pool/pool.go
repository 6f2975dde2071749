// Package pool implements the liquidity pool state machine. Every operation is
// computed as a pure function of a caller-observed snapshot and produces a
// settlement intent carrying the bounds it depends on.
package pool

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"liquidityPool/internal/settlement"
)

// DefaultMinLockedLiquidity is the liquidity locked forever at seeding.
const DefaultMinLockedLiquidity uint64 = 1000

// Config identifies a pool and its lock threshold.
type Config struct {
	Base               common.Address
	Quote              common.Address
	MinLockedLiquidity uint64
}

// Pool is the identity of a (base, quote) pair.
type Pool struct {
	ID             common.Hash
	Base           common.Address
	Quote          common.Address
	Account        common.Address
	LiquidityToken common.Address
	MinLocked      uint64
}

// New derives the pool account and liquidity token from the token pair.
func New(cfg Config) (*Pool, error) {
	if cfg.Base == (common.Address{}) || cfg.Quote == (common.Address{}) {
		return nil, fmt.Errorf("base and quote tokens are required")
	}
	if cfg.Base == cfg.Quote {
		return nil, fmt.Errorf("base and quote tokens must differ")
	}

	id := crypto.Keccak256Hash(cfg.Base.Bytes(), cfg.Quote.Bytes())
	lpHash := crypto.Keccak256(id.Bytes())

	return &Pool{
		ID:             id,
		Base:           cfg.Base,
		Quote:          cfg.Quote,
		Account:        common.BytesToAddress(id.Bytes()[12:]),
		LiquidityToken: common.BytesToAddress(lpHash[:20]),
		MinLocked:      cfg.MinLockedLiquidity,
	}, nil
}

// Accounts returns the registration a ledger needs for this pool.
func (p *Pool) Accounts() settlement.PoolAccounts {
	return settlement.PoolAccounts{Account: p.Account, LiquidityToken: p.LiquidityToken}
}

// Status is the pool lifecycle stage.
type Status int

const (
	StatusEmpty Status = iota
	StatusSeeded
)

func (s Status) String() string {
	if s == StatusSeeded {
		return "seeded"
	}
	return "empty"
}

// State is the aggregate pool state. Its authoritative copy lives in the ledger.
type State struct {
	ReserveBase    uint64 `json:"reserve_base"`
	ReserveQuote   uint64 `json:"reserve_quote"`
	TotalLiquidity uint64 `json:"total_liquidity"`
}

func (s State) Status() Status {
	if s.TotalLiquidity == 0 {
		return StatusEmpty
	}
	return StatusSeeded
}

// Snapshot is what the computing party observed before preparing an operation.
type Snapshot struct {
	State
	CallerClaim uint64 `json:"caller_claim"`
}
