package model

// Transition statuses.
const (
	StatusCommitted = "committed"
	StatusRejected  = "rejected"
	StatusInvalid   = "invalid"
)

// TransitionRecord is one journaled pool operation, committed or not.
type TransitionRecord struct {
	IntentID   string `json:"intent_id,omitempty"`
	PoolID     string `json:"pool_id"`
	Kind       string `json:"kind"`
	Caller     string `json:"caller"`
	Status     string `json:"status"`
	Reason     string `json:"reason,omitempty"`
	Error      string `json:"error,omitempty"`
	Timestamp  uint64 `json:"timestamp"`
	RecordedAt string `json:"recorded_at"`

	BaseIn   string `json:"base_in"`
	QuoteIn  string `json:"quote_in"`
	BaseOut  string `json:"base_out"`
	QuoteOut string `json:"quote_out"`
	Minted   string `json:"minted"`
	Burned   string `json:"burned"`
	Locked   string `json:"locked,omitempty"`

	Reserves *ReserveState `json:"reserves,omitempty"`
}

// ReserveState is the pool state observed after a commit.
type ReserveState struct {
	ReserveBase    string `json:"reserve_base"`
	ReserveQuote   string `json:"reserve_quote"`
	TotalLiquidity string `json:"total_liquidity"`
}
