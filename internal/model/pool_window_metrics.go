package model

import "time"

// PoolWindowMetrics stores aggregated activity for a pool window.
type PoolWindowMetrics struct {
	PoolID          string
	WindowSizeSecs  int64
	WindowStart     time.Time
	WindowEnd       time.Time
	SwapCount       uint64
	AddCount        uint64
	RemoveCount     uint64
	RejectedCount   uint64
	BaseVolumeIn    string
	QuoteVolumeIn   string
	BaseVolumeOut   string
	QuoteVolumeOut  string
	LiquidityMinted string
	LiquidityBurned string
	ReserveBase     *string
	ReserveQuote    *string
	TotalLiquidity  *string
	PriceQuote      *string
}
