package engine

import (
	"context"

	"github.com/moznion/go-optional"
	"github.com/quantframe/papertrade/internal/account"
	"github.com/quantframe/papertrade/internal/datasource"
	"github.com/quantframe/papertrade/internal/logger"
	"github.com/quantframe/papertrade/internal/position"
	"github.com/quantframe/papertrade/internal/strategy"
	"github.com/quantframe/papertrade/internal/trade"
	"github.com/quantframe/papertrade/internal/types"
	"github.com/quantframe/papertrade/pkg/errors"
	"go.uber.org/zap"
)

// OnProcessSignalCallback reports replay progress: the current signal point
// index and the total when known (0 when the source cannot count ahead).
type OnProcessSignalCallback func(current int, total int)

// Results bundles everything a backtest run produces.
type Results struct {
	Trades      []types.TradeRecord `json:"trades"`
	EquityCurve []types.EquityPoint `json:"equity_curve"`
	Performance types.Performance   `json:"performance"`
}

// BacktestEngine replays a finite historical source to completion. Given the
// same source and strategy, two runs produce identical trade histories.
type BacktestEngine struct {
	config       Config
	strategy     strategy.Strategy
	source       datasource.MarketDataSource
	account      *account.Account
	tradeManager *trade.Manager
	performance  types.Performance

	initialized bool

	logger *logger.Logger
}

func NewBacktestEngine(log *logger.Logger) *BacktestEngine {
	if log == nil {
		log = logger.NewNopLogger()
	}

	return &BacktestEngine{logger: log}
}

// Initialize parses the YAML config and wires the account, sizing policy and
// trade manager. Must be called before Run.
func (e *BacktestEngine) Initialize(config string) error {
	parsed, err := ParseConfig(config)
	if err != nil {
		return err
	}

	e.config = parsed
	e.account = account.NewAccount(parsed.InitialCapital, parsed.CommissionRate, e.logger)
	e.account.SetStockNames(parsed.StockNames)
	e.account.SetLotSizes(parsed.LotSizes)

	positions := position.NewManager(parsed.PositionRatio, parsed.Sizing, e.logger)
	e.tradeManager = trade.NewManager(e.account, positions, parsed.TCooldown, e.logger)
	e.initialized = true

	return nil
}

// LoadStrategy installs the strategy, wrapped so panics degrade to HOLD.
func (e *BacktestEngine) LoadStrategy(s strategy.Strategy) error {
	if s == nil {
		return errors.New(errors.ErrCodeEngineNoStrategy, "strategy is nil")
	}

	e.strategy = strategy.NewGuarded(s, e.logger)

	return nil
}

// SetDataSource installs the replay source.
func (e *BacktestEngine) SetDataSource(source datasource.MarketDataSource) error {
	if source == nil {
		return errors.New(errors.ErrCodeEngineNoDataSource, "data source is nil")
	}

	e.source = source

	return nil
}

func (e *BacktestEngine) Account() *account.Account {
	return e.account
}

func (e *BacktestEngine) Config() Config {
	return e.config
}

// Run replays every signal point and aggregates performance. Points before
// the configured start time warm the strategy window without trading; points
// after the end time stop the replay.
func (e *BacktestEngine) Run(ctx context.Context, onProcess optional.Option[OnProcessSignalCallback]) error {
	if err := e.preRunCheck(); err != nil {
		return err
	}

	total := 0
	if counter, ok := e.source.(interface{ Count() int }); ok {
		total = counter.Count()
	}

	e.logger.Info("starting backtest",
		zap.Int("signal_points", total),
		zap.Strings("symbols", e.source.Symbols()))

	processed := 0

	for point, err := range e.source.SignalPoints(ctx) {
		processed++

		if onProcess.IsSome() {
			onProcess.Unwrap()(processed, total)
		}

		if err != nil {
			e.logger.Warn("skipping unreadable signal point", zap.Error(err))

			continue
		}

		if e.config.StartTime.IsSome() && point.Time.Before(e.config.StartTime.Unwrap()) {
			// warm-up period, the strategy window grows without trading
			continue
		}

		if e.config.EndTime.IsSome() && point.Time.After(e.config.EndTime.Unwrap()) {
			break
		}

		e.processSignalPoint(point)
	}

	e.performance = CalculatePerformance(e.account)

	e.logger.Info("backtest finished",
		zap.Int("processed", processed),
		zap.Float64("final_equity", e.performance.FinalEquity),
		zap.Float64("total_return", e.performance.TotalReturn),
		zap.Float64("max_drawdown", e.performance.MaxDrawdown))

	return ctx.Err()
}

// processSignalPoint runs the per-point state machine: resolve the fill
// price, analyze, execute, record equity.
func (e *BacktestEngine) processSignalPoint(point types.SignalPoint) {
	price, err := e.source.LatestPrice(point.Symbol, point.Time)
	if err != nil {
		e.logger.Warn("no fill price, skipping",
			zap.String("symbol", point.Symbol),
			zap.Time("time", point.Time),
			zap.Error(err))

		return
	}

	e.account.UpdatePrice(point.Symbol, price)

	signal := e.strategy.Analyze(point.Symbol, point.Window)

	result := e.tradeManager.ExecuteTrade(signal, point.Symbol, point.Time, price)
	if result.Status == types.ExecuteStatusFailed {
		e.logger.Warn("trade rejected",
			zap.String("symbol", point.Symbol),
			zap.String("signal_id", result.SignalID),
			zap.String("msg", result.Message))
	}

	e.account.RecordEquity(point.Time, e.account.TotalEquity())
}

// Performance returns the aggregated report of the last run.
func (e *BacktestEngine) Performance() types.Performance {
	return e.performance
}

// Results returns the trades, equity curve and performance of the last run.
func (e *BacktestEngine) Results() Results {
	return Results{
		Trades:      e.account.Trades(),
		EquityCurve: e.account.EquityCurve(),
		Performance: e.performance,
	}
}

func (e *BacktestEngine) preRunCheck() error {
	if !e.initialized {
		return errors.New(errors.ErrCodeEngineInitFailed, "engine is not initialized")
	}

	if e.strategy == nil {
		return errors.New(errors.ErrCodeEngineNoStrategy, "no strategy loaded")
	}

	if e.source == nil {
		return errors.New(errors.ErrCodeEngineNoDataSource, "no data source set")
	}

	if len(e.source.Symbols()) == 0 {
		return errors.New(errors.ErrCodeEngineNoSymbols, "data source has no symbols")
	}

	return nil
}
