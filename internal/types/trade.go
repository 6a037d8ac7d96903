package types

import "time"

// Position represents current holdings of a symbol. Quantity is always a
// non-negative multiple of the symbol's lot size; no short positions.
type Position struct {
	Symbol   string `json:"symbol" yaml:"symbol"`
	Quantity int64  `json:"quantity" yaml:"quantity"`
	// AvgCost is the quantity-weighted average fill price, commission excluded
	AvgCost float64 `json:"avg_cost" yaml:"avg_cost"`
}

// TradeRecord is an append-only audit entry for one executed trade.
type TradeRecord struct {
	Action    SignalAction       `json:"action"`
	Symbol    string             `json:"symbol"`
	Price     float64            `json:"price"`
	Quantity  int64              `json:"quantity"`
	Timestamp time.Time          `json:"timestamp"`
	Reason    string             `json:"reason"`
	SignalID  string             `json:"signal_id"`
	Factors   map[string]float64 `json:"factors,omitempty"`
	TradeTag  string             `json:"trade_tag,omitempty"`
	// PositionBefore and PositionAfter bracket the quantity change
	PositionBefore int64   `json:"position_before"`
	PositionAfter  int64   `json:"position_after"`
	Commission     float64 `json:"commission"`
	// ProfitRatio is (price - avg_cost) / avg_cost, set on SELL only
	ProfitRatio float64 `json:"profit_ratio"`
}

// IsClosing reports whether the trade fully closed the position. Closing
// trades are the unit of win-rate accounting.
func (t TradeRecord) IsClosing() bool {
	return t.Action == SignalActionSell && t.PositionAfter == 0
}

// EquityPoint is one sample of the equity curve.
type EquityPoint struct {
	Time   time.Time `json:"time"`
	Equity float64   `json:"equity"`
}

type ExecuteStatus string

const (
	// ExecuteStatusSuccess means the account was mutated
	ExecuteStatusSuccess ExecuteStatus = "SUCCESS"
	// ExecuteStatusSkipped means no trade was needed (HOLD, duplicate signal,
	// or the sizing policy produced zero quantity)
	ExecuteStatusSkipped ExecuteStatus = "SKIPPED"
	// ExecuteStatusThrottled means an intraday signal hit the cooldown window
	ExecuteStatusThrottled ExecuteStatus = "THROTTLED"
	// ExecuteStatusFailed means the trade was attempted but rejected
	// (insufficient cash or position); failed signals stay retryable
	ExecuteStatusFailed ExecuteStatus = "FAILED"
)

// ExecuteResult describes the outcome of one signal execution.
type ExecuteResult struct {
	Status   ExecuteStatus `json:"status"`
	Action   SignalAction  `json:"action"`
	Symbol   string        `json:"symbol"`
	Price    float64       `json:"price"`
	Time     time.Time     `json:"time"`
	Quantity int64         `json:"quantity"`
	SignalID string        `json:"signal_id"`
	// Commission and PositionAfter are set on SUCCESS only
	Commission    float64 `json:"commission"`
	PositionAfter int64   `json:"position_after"`
	Message       string  `json:"msg"`
}
