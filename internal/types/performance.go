package types

// TradeStats summarizes closed trades. A trade is counted once the position
// it reduces returns to zero.
type TradeStats struct {
	TotalTrades    int     `json:"total_trades"`
	WinningTrades  int     `json:"winning_trades"`
	LosingTrades   int     `json:"losing_trades"`
	WinRate        float64 `json:"win_rate"`
	AvgProfitRatio float64 `json:"avg_pnl_ratio"`
}

// SymbolPerformance breaks realized and unrealized results down per symbol.
type SymbolPerformance struct {
	Symbol string `json:"symbol"`
	// TotalPnL is sell proceeds plus open market value, minus buy cost and
	// commission
	TotalPnL    float64 `json:"total_pnl"`
	ROI         float64 `json:"roi"`
	WinRate     float64 `json:"win_rate"`
	Wins        int     `json:"wins"`
	ClosedRound int     `json:"closed_rounds"`
	Position    int64   `json:"position"`
	MarketValue float64 `json:"market_value"`
	Commission  float64 `json:"commission"`
}

// Performance is the aggregated result of a run.
type Performance struct {
	InitialCapital float64 `json:"initial_capital"`
	FinalEquity    float64 `json:"final_value"`
	// TotalReturn and MaxDrawdown are fractions, not percentages
	TotalReturn float64                      `json:"total_return"`
	MaxDrawdown float64                      `json:"max_drawdown"`
	TradeStats  TradeStats                   `json:"trade_stats"`
	Symbols     map[string]SymbolPerformance `json:"symbols,omitempty"`
}
