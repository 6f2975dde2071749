package settlement

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

// Ledger is the external settlement collaborator.
//
// Balance resolves a liquidity token specially: the pool account's balance is
// the total liquidity and any other account's balance is its claim.
type Ledger interface {
	Balance(ctx context.Context, account, token common.Address) (uint64, error)
	Commit(ctx context.Context, intent *Intent) error
}

// PoolAccounts registers a pool with a ledger so its liquidity token resolves
// to a claims book.
type PoolAccounts struct {
	Account        common.Address `json:"account"`
	LiquidityToken common.Address `json:"liquidity_token"`
}
