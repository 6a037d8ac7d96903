package datasource

import (
	"context"
	"time"

	"github.com/quantframe/papertrade/internal/logger"
	"github.com/quantframe/papertrade/internal/types"
	"github.com/quantframe/papertrade/pkg/errors"
	"go.uber.org/zap"
)

// LiveSource polls a QuoteProvider for fresh candle windows. It cycles
// through the symbol set with RequestDelay between requests, sleeps
// PollInterval between cycles, and stops when its context is cancelled.
// Cancellation is cooperative; an in-flight request is not preempted.
type LiveSource struct {
	provider     QuoteProvider
	symbols      []string
	interval     types.Interval
	historyCount int
	pollInterval time.Duration
	requestDelay time.Duration

	latestPrices map[string]float64

	logger *logger.Logger
}

var _ MarketDataSource = (*LiveSource)(nil)

// LiveSourceConfig wires a live source.
type LiveSourceConfig struct {
	Provider QuoteProvider
	Symbols  []string
	Interval types.Interval
	// HistoryCount is the window length requested per poll
	HistoryCount int
	// PollInterval is the rest between full symbol cycles
	PollInterval time.Duration
	// RequestDelay is the spacing between per-symbol requests within a
	// cycle, backpressure against the quote API
	RequestDelay time.Duration
}

func NewLiveSource(cfg LiveSourceConfig, log *logger.Logger) (*LiveSource, error) {
	if log == nil {
		log = logger.NewNopLogger()
	}

	if cfg.Provider == nil {
		return nil, errors.New(errors.ErrCodeEngineNoDataSource, "live source requires a quote provider")
	}

	if len(cfg.Symbols) == 0 {
		return nil, errors.New(errors.ErrCodeEngineNoSymbols, "live source requires at least one symbol")
	}

	if cfg.HistoryCount <= 0 {
		cfg.HistoryCount = 100
	}

	return &LiveSource{
		provider:     cfg.Provider,
		symbols:      cfg.Symbols,
		interval:     cfg.Interval,
		historyCount: cfg.HistoryCount,
		pollInterval: cfg.PollInterval,
		requestDelay: cfg.RequestDelay,
		latestPrices: make(map[string]float64),
		logger:       log,
	}, nil
}

// Symbols implements MarketDataSource.
func (s *LiveSource) Symbols() []string {
	return s.symbols
}

// Interval returns the bar interval this source polls at.
func (s *LiveSource) Interval() types.Interval {
	return s.interval
}

// Metadata fetches lot sizes and display names for the symbol set from the
// provider. Called once at engine startup; a failure here means the quote
// collaborator is unreachable.
func (s *LiveSource) Metadata(ctx context.Context) (map[string]int64, map[string]string, error) {
	lotSizes, err := s.provider.LotSizes(ctx, s.symbols)
	if err != nil {
		return nil, nil, errors.Wrap(errors.ErrCodeDataSourceUnavailable, "failed to fetch lot sizes", err)
	}

	stockNames, err := s.provider.StockNames(ctx, s.symbols)
	if err != nil {
		return nil, nil, errors.Wrap(errors.ErrCodeDataSourceUnavailable, "failed to fetch stock names", err)
	}

	return lotSizes, stockNames, nil
}

// SignalPoints implements MarketDataSource. Provider failures are yielded as
// errors with a zero point; the loop keeps polling, the consumer decides
// whether to continue.
func (s *LiveSource) SignalPoints(ctx context.Context) func(yield func(types.SignalPoint, error) bool) {
	return func(yield func(types.SignalPoint, error) bool) {
		for {
			if ctx.Err() != nil {
				return
			}

			s.logger.Debug("starting poll cycle", zap.Int("symbols", len(s.symbols)))

			for _, symbol := range s.symbols {
				window, err := s.provider.Candles(ctx, symbol, s.interval, s.historyCount)
				if err != nil {
					wrapped := errors.Wrapf(errors.ErrCodeDataSourceUnavailable, err, "failed to fetch candles for %s", symbol)
					if !yield(types.SignalPoint{}, wrapped) {
						return
					}
				} else if len(window) > 0 {
					last := window[len(window)-1]
					s.latestPrices[symbol] = last.Close

					point := types.SignalPoint{
						Symbol: symbol,
						Time:   last.Time,
						Window: window,
					}

					if !yield(point, nil) {
						return
					}
				}

				if !sleepContext(ctx, s.requestDelay) {
					return
				}
			}

			if !sleepContext(ctx, s.pollInterval) {
				return
			}
		}
	}
}

// LatestPrice implements MarketDataSource. It returns the most recent quoted
// close for the symbol; the timestamp is ignored since live fills always use
// the freshest quote.
func (s *LiveSource) LatestPrice(symbol string, _ time.Time) (float64, error) {
	price, ok := s.latestPrices[symbol]
	if !ok || price <= 0 {
		return 0, errors.Newf(errors.ErrCodePriceUnavailable, "no quote received yet for %s", symbol)
	}

	return price, nil
}
