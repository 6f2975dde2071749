package model

// Pool is the registry record of a pool and its derived accounts.
type Pool struct {
	PoolID             string `json:"pool_id"`
	Account            string `json:"account"`
	LiquidityToken     string `json:"liquidity_token"`
	BaseToken          string `json:"base_token"`
	QuoteToken         string `json:"quote_token"`
	MinLockedLiquidity uint64 `json:"min_locked_liquidity"`
}
