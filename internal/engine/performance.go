package engine

import (
	"github.com/quantframe/papertrade/internal/account"
	"github.com/quantframe/papertrade/internal/types"
	"github.com/shopspring/decimal"
)

// CalculatePerformance derives the run report purely from the account's
// equity curve and trade history. Read-only; callable at any point of a run.
func CalculatePerformance(acc *account.Account) types.Performance {
	perf := types.Performance{
		InitialCapital: acc.InitialCapital(),
		FinalEquity:    acc.InitialCapital(),
		TradeStats:     acc.TradeStats(),
		Symbols:        calculateSymbolPerformance(acc),
	}

	curve := acc.EquityCurve()
	if len(curve) == 0 {
		return perf
	}

	perf.FinalEquity = curve[len(curve)-1].Equity

	if perf.InitialCapital > 0 {
		ret, _ := decimal.NewFromFloat(perf.FinalEquity).
			Sub(decimal.NewFromFloat(perf.InitialCapital)).
			Div(decimal.NewFromFloat(perf.InitialCapital)).
			Float64()
		perf.TotalReturn = ret
	}

	perf.MaxDrawdown = maxDrawdown(curve)

	return perf
}

// maxDrawdown returns the most negative peak-to-trough fraction of the
// equity curve.
func maxDrawdown(curve []types.EquityPoint) float64 {
	worst := 0.0
	peak := curve[0].Equity

	for _, point := range curve {
		if point.Equity > peak {
			peak = point.Equity
		}

		if peak <= 0 {
			continue
		}

		drawdown := (point.Equity - peak) / peak
		if drawdown < worst {
			worst = drawdown
		}
	}

	return worst
}

// calculateSymbolPerformance breaks results down per traded symbol: realized
// flows from the trade history plus the open position marked at the last
// seen price.
func calculateSymbolPerformance(acc *account.Account) map[string]types.SymbolPerformance {
	type flows struct {
		buyAmount  decimal.Decimal
		sellAmount decimal.Decimal
		commission decimal.Decimal
		wins       int
		rounds     int
	}

	bySymbol := make(map[string]*flows)

	for _, trade := range acc.Trades() {
		f, ok := bySymbol[trade.Symbol]
		if !ok {
			f = &flows{}
			bySymbol[trade.Symbol] = f
		}

		notional := decimal.NewFromFloat(trade.Price).Mul(decimal.NewFromInt(trade.Quantity))
		f.commission = f.commission.Add(decimal.NewFromFloat(trade.Commission))

		switch trade.Action {
		case types.SignalActionBuy:
			f.buyAmount = f.buyAmount.Add(notional)
		case types.SignalActionSell:
			f.sellAmount = f.sellAmount.Add(notional)

			if trade.IsClosing() {
				f.rounds++
				if trade.ProfitRatio > 0 {
					f.wins++
				}
			}
		}
	}

	if len(bySymbol) == 0 {
		return nil
	}

	result := make(map[string]types.SymbolPerformance, len(bySymbol))

	for symbol, f := range bySymbol {
		quantity := acc.PositionQuantity(symbol)

		marketValue := decimal.Zero
		if price, ok := acc.LatestPrice(symbol); ok {
			marketValue = decimal.NewFromInt(quantity).Mul(decimal.NewFromFloat(price))
		}

		totalPnL := f.sellAmount.Add(marketValue).Sub(f.buyAmount).Sub(f.commission)

		perf := types.SymbolPerformance{
			Symbol:      symbol,
			Wins:        f.wins,
			ClosedRound: f.rounds,
			Position:    quantity,
		}

		perf.TotalPnL, _ = totalPnL.Float64()
		perf.MarketValue, _ = marketValue.Float64()
		perf.Commission, _ = f.commission.Float64()

		if f.buyAmount.IsPositive() {
			perf.ROI, _ = totalPnL.Div(f.buyAmount).Float64()
		}

		if f.rounds > 0 {
			perf.WinRate = float64(f.wins) / float64(f.rounds)
		}

		result[symbol] = perf
	}

	return result
}
