// Package account owns the simulated ledger: cash, positions, trade history,
// the signal dedup set and the equity curve. It holds no decision logic;
// sizing and orchestration live in the position and trade packages.
package account

import (
	"time"

	"github.com/quantframe/papertrade/internal/logger"
	"github.com/quantframe/papertrade/internal/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Account is the paper-trading ledger. It is mutated exclusively through
// Buy and Sell, and is owned by a single engine for its lifetime; no
// internal locking.
type Account struct {
	initialCapital float64
	commissionRate float64
	cash           float64

	positions    map[string]*types.Position
	latestPrices map[string]float64
	trades       []types.TradeRecord

	processedSignals map[string]struct{}
	equityCurve      []types.EquityPoint

	stockNames map[string]string
	lotSizes   map[string]int64

	logger *logger.Logger
}

// NewAccount creates a ledger with the given starting cash and commission
// rate. Commission is charged as notional multiplied by rate on both sides.
func NewAccount(initialCapital float64, commissionRate float64, log *logger.Logger) *Account {
	if log == nil {
		log = logger.NewNopLogger()
	}

	return &Account{
		initialCapital:   initialCapital,
		commissionRate:   commissionRate,
		cash:             initialCapital,
		positions:        make(map[string]*types.Position),
		latestPrices:     make(map[string]float64),
		processedSignals: make(map[string]struct{}),
		stockNames:       make(map[string]string),
		lotSizes:         make(map[string]int64),
		logger:           log,
	}
}

func (a *Account) Cash() float64 {
	return a.cash
}

func (a *Account) InitialCapital() float64 {
	return a.initialCapital
}

func (a *Account) CommissionRate() float64 {
	return a.commissionRate
}

// SetStockNames sets the symbol to display-name mapping used in reports.
func (a *Account) SetStockNames(names map[string]string) {
	for symbol, name := range names {
		a.stockNames[symbol] = name
	}
}

// StockName returns the display name for a symbol, falling back to the
// symbol itself.
func (a *Account) StockName(symbol string) string {
	if name, ok := a.stockNames[symbol]; ok && name != "" {
		return name
	}

	return symbol
}

// SetLotSizes sets the minimum tradable unit per symbol.
func (a *Account) SetLotSizes(lotSizes map[string]int64) {
	for symbol, lot := range lotSizes {
		a.lotSizes[symbol] = lot
	}
}

// LotSize returns the lot size for a symbol, defaulting to 1 when unknown.
func (a *Account) LotSize(symbol string) int64 {
	if lot, ok := a.lotSizes[symbol]; ok && lot > 0 {
		return lot
	}

	return 1
}

// Position returns a copy of the symbol's position. The zero Position is
// returned when the symbol was never traded.
func (a *Account) Position(symbol string) types.Position {
	if pos, ok := a.positions[symbol]; ok {
		return *pos
	}

	return types.Position{Symbol: symbol}
}

// PositionQuantity returns the held quantity for a symbol.
func (a *Account) PositionQuantity(symbol string) int64 {
	if pos, ok := a.positions[symbol]; ok {
		return pos.Quantity
	}

	return 0
}

// Positions returns a copy of all non-empty positions.
func (a *Account) Positions() map[string]types.Position {
	out := make(map[string]types.Position, len(a.positions))
	for symbol, pos := range a.positions {
		if pos.Quantity > 0 {
			out[symbol] = *pos
		}
	}

	return out
}

// UpdatePrice records the last seen mark price for a symbol. A position does
// not need to exist.
func (a *Account) UpdatePrice(symbol string, price float64) {
	if price <= 0 {
		return
	}

	a.latestPrices[symbol] = price
}

// LatestPrice returns the last mark price seen for a symbol.
func (a *Account) LatestPrice(symbol string) (float64, bool) {
	price, ok := a.latestPrices[symbol]

	return price, ok
}

// TotalEquity is cash plus every position marked at its last known price.
func (a *Account) TotalEquity() float64 {
	equity := decimal.NewFromFloat(a.cash)
	for symbol, pos := range a.positions {
		if pos.Quantity == 0 {
			continue
		}

		price := a.latestPrices[symbol]
		equity = equity.Add(decimal.NewFromInt(pos.Quantity).Mul(decimal.NewFromFloat(price)))
	}

	result, _ := equity.Float64()

	return result
}

// Buy debits cash and increases the position. It returns false without any
// mutation when price or quantity is invalid or cash cannot cover notional
// plus commission.
func (a *Account) Buy(symbol string, price float64, quantity int64, at time.Time, reason string, signalID string, factors map[string]float64, tradeTag string) bool {
	if price <= 0 || quantity <= 0 {
		return false
	}

	notional := decimal.NewFromFloat(price).Mul(decimal.NewFromInt(quantity))
	commission := notional.Mul(decimal.NewFromFloat(a.commissionRate))
	cost := notional.Add(commission)

	if decimal.NewFromFloat(a.cash).LessThan(cost) {
		a.logger.Debug("buy rejected, insufficient cash",
			zap.String("symbol", symbol),
			zap.Float64("price", price),
			zap.Int64("quantity", quantity),
			zap.Float64("cash", a.cash))

		return false
	}

	a.cash, _ = decimal.NewFromFloat(a.cash).Sub(cost).Float64()

	pos, ok := a.positions[symbol]
	if !ok {
		pos = &types.Position{Symbol: symbol}
		a.positions[symbol] = pos
	}

	before := pos.Quantity

	// Weighted average of fill prices; commission stays out of the basis so
	// profit_ratio compares price to price.
	oldValue := decimal.NewFromFloat(pos.AvgCost).Mul(decimal.NewFromInt(pos.Quantity))
	newQuantity := pos.Quantity + quantity
	pos.AvgCost, _ = oldValue.Add(notional).Div(decimal.NewFromInt(newQuantity)).Float64()
	pos.Quantity = newQuantity

	a.latestPrices[symbol] = price

	commissionValue, _ := commission.Float64()
	a.trades = append(a.trades, types.TradeRecord{
		Action:         types.SignalActionBuy,
		Symbol:         symbol,
		Price:          price,
		Quantity:       quantity,
		Timestamp:      at,
		Reason:         reason,
		SignalID:       signalID,
		Factors:        factors,
		TradeTag:       tradeTag,
		PositionBefore: before,
		PositionAfter:  pos.Quantity,
		Commission:     commissionValue,
	})
	a.MarkSignalProcessed(signalID)

	a.logger.Info("buy executed",
		zap.String("symbol", symbol),
		zap.Float64("price", price),
		zap.Int64("quantity", quantity),
		zap.Float64("commission", commissionValue),
		zap.Float64("cash", a.cash))

	return true
}

// Sell credits notional minus commission and reduces the position. Selling
// more than the current holding is rejected; a partial reduce is allowed.
func (a *Account) Sell(symbol string, price float64, quantity int64, at time.Time, reason string, signalID string, factors map[string]float64, tradeTag string) bool {
	if price <= 0 || quantity <= 0 {
		return false
	}

	pos, ok := a.positions[symbol]
	if !ok || quantity > pos.Quantity {
		a.logger.Debug("sell rejected, insufficient position",
			zap.String("symbol", symbol),
			zap.Int64("quantity", quantity),
			zap.Int64("held", a.PositionQuantity(symbol)))

		return false
	}

	notional := decimal.NewFromFloat(price).Mul(decimal.NewFromInt(quantity))
	commission := notional.Mul(decimal.NewFromFloat(a.commissionRate))

	a.cash, _ = decimal.NewFromFloat(a.cash).Add(notional).Sub(commission).Float64()

	before := pos.Quantity

	profitRatio := 0.0
	if pos.AvgCost > 0 {
		profitRatio, _ = decimal.NewFromFloat(price).
			Sub(decimal.NewFromFloat(pos.AvgCost)).
			Div(decimal.NewFromFloat(pos.AvgCost)).
			Float64()
	}

	pos.Quantity -= quantity
	if pos.Quantity == 0 {
		pos.AvgCost = 0
	}

	a.latestPrices[symbol] = price

	commissionValue, _ := commission.Float64()
	a.trades = append(a.trades, types.TradeRecord{
		Action:         types.SignalActionSell,
		Symbol:         symbol,
		Price:          price,
		Quantity:       quantity,
		Timestamp:      at,
		Reason:         reason,
		SignalID:       signalID,
		Factors:        factors,
		TradeTag:       tradeTag,
		PositionBefore: before,
		PositionAfter:  pos.Quantity,
		Commission:     commissionValue,
		ProfitRatio:    profitRatio,
	})
	a.MarkSignalProcessed(signalID)

	a.logger.Info("sell executed",
		zap.String("symbol", symbol),
		zap.Float64("price", price),
		zap.Int64("quantity", quantity),
		zap.Float64("profit_ratio", profitRatio),
		zap.Float64("cash", a.cash))

	return true
}

// RecordEquity appends one equity sample. Duplicate timestamps are allowed;
// pacing is the caller's responsibility.
func (a *Account) RecordEquity(at time.Time, equity float64) {
	a.equityCurve = append(a.equityCurve, types.EquityPoint{Time: at, Equity: equity})
}

func (a *Account) EquityCurve() []types.EquityPoint {
	return a.equityCurve
}

func (a *Account) Trades() []types.TradeRecord {
	return a.trades
}

// IsSignalProcessed reports whether the signal ID was already executed or
// resolved.
func (a *Account) IsSignalProcessed(signalID string) bool {
	_, ok := a.processedSignals[signalID]

	return ok
}

// MarkSignalProcessed records a signal ID as resolved. Empty IDs are ignored.
func (a *Account) MarkSignalProcessed(signalID string) {
	if signalID == "" {
		return
	}

	a.processedSignals[signalID] = struct{}{}
}

func (a *Account) ProcessedSignalCount() int {
	return len(a.processedSignals)
}

// TradeStats derives win statistics from the trade history. Only closing
// trades (a sell that brings the position to zero) are counted as rounds.
func (a *Account) TradeStats() types.TradeStats {
	stats := types.TradeStats{}

	ratioSum := decimal.Zero
	for _, trade := range a.trades {
		if !trade.IsClosing() {
			continue
		}

		stats.TotalTrades++
		if trade.ProfitRatio > 0 {
			stats.WinningTrades++
		} else {
			stats.LosingTrades++
		}

		ratioSum = ratioSum.Add(decimal.NewFromFloat(trade.ProfitRatio))
	}

	if stats.TotalTrades > 0 {
		stats.WinRate = float64(stats.WinningTrades) / float64(stats.TotalTrades)
		stats.AvgProfitRatio, _ = ratioSum.Div(decimal.NewFromInt(int64(stats.TotalTrades))).Float64()
	}

	return stats
}
