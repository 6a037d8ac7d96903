package datasource

import (
	"context"
	"sort"
	"time"

	"github.com/quantframe/papertrade/internal/logger"
	"github.com/quantframe/papertrade/internal/types"
	"github.com/quantframe/papertrade/pkg/errors"
)

// HistoricalSource replays pre-materialized candles. Signal points are
// yielded in strictly non-decreasing timestamp order across all symbols,
// with ties broken by symbol, so the same input always produces the same
// ordered sequence.
type HistoricalSource struct {
	symbols []string
	candles map[string][]types.Candle

	logger *logger.Logger
}

var _ MarketDataSource = (*HistoricalSource)(nil)

// NewHistoricalSource builds a replay source from per-symbol candle slices.
// Bars are sorted by time per symbol; symbols with no bars are dropped.
func NewHistoricalSource(candles map[string][]types.Candle, log *logger.Logger) *HistoricalSource {
	if log == nil {
		log = logger.NewNopLogger()
	}

	source := &HistoricalSource{
		candles: make(map[string][]types.Candle, len(candles)),
		logger:  log,
	}

	for symbol, bars := range candles {
		if len(bars) == 0 {
			continue
		}

		sorted := make([]types.Candle, len(bars))
		copy(sorted, bars)
		sort.Slice(sorted, func(i, j int) bool {
			return sorted[i].Time.Before(sorted[j].Time)
		})

		source.candles[symbol] = sorted
		source.symbols = append(source.symbols, symbol)
	}

	sort.Strings(source.symbols)

	return source
}

// Symbols implements MarketDataSource.
func (s *HistoricalSource) Symbols() []string {
	return s.symbols
}

// Count returns the total number of signal points the source will yield.
func (s *HistoricalSource) Count() int {
	count := 0
	for _, bars := range s.candles {
		count += len(bars)
	}

	return count
}

// SignalPoints implements MarketDataSource. The window of each point holds
// every bar of the symbol up to and including the point's timestamp.
func (s *HistoricalSource) SignalPoints(ctx context.Context) func(yield func(types.SignalPoint, error) bool) {
	return func(yield func(types.SignalPoint, error) bool) {
		timestamps := s.mergedTimestamps()
		cursor := make(map[string]int, len(s.symbols))

		for _, ts := range timestamps {
			if ctx.Err() != nil {
				return
			}

			for _, symbol := range s.symbols {
				bars := s.candles[symbol]
				idx := cursor[symbol]

				if idx >= len(bars) || !bars[idx].Time.Equal(ts) {
					continue
				}

				cursor[symbol] = idx + 1

				point := types.SignalPoint{
					Symbol: symbol,
					Time:   ts,
					Window: bars[:idx+1],
				}

				if !yield(point, nil) {
					return
				}
			}
		}
	}
}

// LatestPrice implements MarketDataSource. It returns the close of the most
// recent bar at or before the given time, never a later one.
func (s *HistoricalSource) LatestPrice(symbol string, at time.Time) (float64, error) {
	bars, ok := s.candles[symbol]
	if !ok {
		return 0, errors.Newf(errors.ErrCodeDataNotFound, "no candles loaded for %s", symbol)
	}

	// first bar after `at`
	idx := sort.Search(len(bars), func(i int) bool {
		return bars[i].Time.After(at)
	})

	if idx == 0 {
		return 0, errors.Newf(errors.ErrCodePriceUnavailable, "no price for %s at or before %s", symbol, at.Format(time.RFC3339))
	}

	return bars[idx-1].Close, nil
}

// mergedTimestamps returns the sorted union of bar timestamps across all
// symbols.
func (s *HistoricalSource) mergedTimestamps() []time.Time {
	seen := make(map[int64]time.Time)
	for _, bars := range s.candles {
		for _, bar := range bars {
			seen[bar.Time.UnixNano()] = bar.Time
		}
	}

	timestamps := make([]time.Time, 0, len(seen))
	for _, ts := range seen {
		timestamps = append(timestamps, ts)
	}

	sort.Slice(timestamps, func(i, j int) bool {
		return timestamps[i].Before(timestamps[j])
	})

	return timestamps
}
