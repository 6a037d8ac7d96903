package types

type SignalAction string

const (
	// SignalActionBuy tells the engine to move toward the target position
	SignalActionBuy SignalAction = "BUY"
	// SignalActionSell tells the engine to reduce or close the position
	SignalActionSell SignalAction = "SELL"
	// SignalActionHold tells the engine to take no action
	SignalActionHold SignalAction = "HOLD"
)

// TradeTagIntraday marks an intraday round-trip signal. Tagged signals are
// sized more conservatively and throttled by a per-symbol cooldown.
const TradeTagIntraday = "T"

// Well-known factor keys a strategy may attach to a signal. The position
// sizing policy reads these; unknown keys are carried through untouched.
const (
	FactorClose               = "close"
	FactorATR                 = "atr"
	FactorTargetPositionRatio = "target_position_ratio"
	FactorTargetShares        = "target_shares"
)

type Signal struct {
	// Action is the decision produced by the strategy
	Action SignalAction `json:"action" yaml:"action"`
	// SignalID uniquely identifies the logical trading decision.
	// Empty IDs are filled in by the trade manager.
	SignalID string `json:"signal_id" yaml:"signal_id"`
	// Factors carries named numeric indicators backing the decision
	Factors map[string]float64 `json:"factors,omitempty" yaml:"factors,omitempty"`
	// TradeTag is an optional marker, e.g. TradeTagIntraday
	TradeTag string `json:"trade_tag,omitempty" yaml:"trade_tag,omitempty"`
	// Reason is human readable text explaining the decision
	Reason string `json:"reason" yaml:"reason"`
}

// IsActionable reports whether the signal requests a trade.
func (s Signal) IsActionable() bool {
	return s.Action == SignalActionBuy || s.Action == SignalActionSell
}
