// Package datasource produces the ordered signal-point streams the engines
// consume, either from pre-materialized history or from a polled live feed.
package datasource

import (
	"context"
	"time"

	"github.com/quantframe/papertrade/internal/types"
)

// MarketDataSource is the feed contract shared by the backtest and live
// engines. A historical source is finite and exactly replayable; a live
// source runs until its context is cancelled.
type MarketDataSource interface {
	// Symbols returns the symbols this source covers
	Symbols() []string
	// SignalPoints yields strategy evaluation points in non-decreasing
	// timestamp order and stops when the context is cancelled
	SignalPoints(ctx context.Context) func(yield func(types.SignalPoint, error) bool)
	// LatestPrice resolves the fill price for a symbol at the given time.
	// Decoupling this from the signal point avoids lookahead in backtests
	// and tolerates polling latency in live runs.
	LatestPrice(symbol string, at time.Time) (float64, error)
}

// MetadataProvider is implemented by sources that can resolve symbol
// metadata at startup. The live engine uses it to seed lot sizes and
// display names before the first signal point.
type MetadataProvider interface {
	// Metadata returns lot sizes and display names keyed by symbol
	Metadata(ctx context.Context) (map[string]int64, map[string]string, error)
}

// QuoteProvider is the external quote API port a live source polls. Vendor
// implementations live outside this module.
type QuoteProvider interface {
	// Candles returns up to count most recent bars for the symbol,
	// oldest first
	Candles(ctx context.Context, symbol string, interval types.Interval, count int) ([]types.Candle, error)
	// LotSizes returns the minimum tradable unit per symbol
	LotSizes(ctx context.Context, symbols []string) (map[string]int64, error)
	// StockNames returns display names per symbol
	StockNames(ctx context.Context, symbols []string) (map[string]string, error)
}

// sleepContext waits for the duration unless the context is cancelled first.
// Returns false on cancellation.
func sleepContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
