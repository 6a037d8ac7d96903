package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/quantframe/papertrade/internal/account"
	"github.com/quantframe/papertrade/internal/datasource"
	"github.com/quantframe/papertrade/internal/logger"
	"github.com/quantframe/papertrade/internal/notify"
	"github.com/quantframe/papertrade/internal/position"
	"github.com/quantframe/papertrade/internal/strategy"
	"github.com/quantframe/papertrade/internal/trade"
	"github.com/quantframe/papertrade/internal/types"
	"github.com/quantframe/papertrade/pkg/errors"
	"go.uber.org/zap"
)

// staleGrace is added on top of two bar periods when deciding whether a
// live signal point is too old to fill.
const staleGrace = 5 * time.Minute

// LiveEngine runs the trading loop against a polled live source until its
// context is cancelled. It restores the account from the snapshot file on
// startup, persists after every processed signal point and pushes a
// notification for every executed trade.
type LiveEngine struct {
	config       Config
	strategy     strategy.Strategy
	source       datasource.MarketDataSource
	account      *account.Account
	tradeManager *trade.Manager
	persistence  *account.Persistence
	notifier     notify.Notifier

	initialized bool

	// now is swappable for staleness tests
	now func() time.Time

	logger *logger.Logger
}

func NewLiveEngine(log *logger.Logger) *LiveEngine {
	if log == nil {
		log = logger.NewNopLogger()
	}

	return &LiveEngine{
		now:    time.Now,
		logger: log,
	}
}

// Initialize parses the YAML config, wires the account and trade manager,
// and restores the previous snapshot when one exists. A missing or corrupt
// snapshot starts a fresh account and logs a warning.
func (e *LiveEngine) Initialize(config string) error {
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

	e.persistence = account.NewPersistence(parsed.SnapshotPath)
	if err := e.persistence.Load(e.account); err != nil {
		e.logger.Warn("no usable account snapshot, starting fresh",
			zap.String("path", parsed.SnapshotPath),
			zap.Error(err))
	} else {
		e.logger.Info("account snapshot restored",
			zap.Float64("cash", e.account.Cash()),
			zap.Float64("equity", e.account.TotalEquity()))
	}

	if parsed.WebhookURL != "" {
		e.notifier = notify.NewWebhookNotifier(parsed.WebhookURL)
	} else {
		e.notifier = notify.NewLogNotifier(e.logger)
	}

	e.initialized = true

	return nil
}

// LoadStrategy installs the strategy, wrapped so panics degrade to HOLD.
func (e *LiveEngine) LoadStrategy(s strategy.Strategy) error {
	if s == nil {
		return errors.New(errors.ErrCodeEngineNoStrategy, "strategy is nil")
	}

	e.strategy = strategy.NewGuarded(s, e.logger)

	return nil
}

// SetDataSource installs the live source.
func (e *LiveEngine) SetDataSource(source datasource.MarketDataSource) error {
	if source == nil {
		return errors.New(errors.ErrCodeEngineNoDataSource, "data source is nil")
	}

	e.source = source

	return nil
}

// SetNotifier overrides the notifier built from the config.
func (e *LiveEngine) SetNotifier(notifier notify.Notifier) {
	e.notifier = notifier
}

func (e *LiveEngine) Account() *account.Account {
	return e.account
}

// Run drives the loop until the context is cancelled. Any single-point
// failure is logged and skipped; the loop keeps operating. The account is
// persisted at startup, after every processed signal point and at shutdown.
func (e *LiveEngine) Run(ctx context.Context) error {
	if err := e.preRunCheck(); err != nil {
		return err
	}

	// lot sizes and display names come from the quote collaborator when the
	// source exposes them; an unreachable collaborator fails the startup
	if src, ok := e.source.(datasource.MetadataProvider); ok {
		lotSizes, stockNames, err := src.Metadata(ctx)
		if err != nil {
			return errors.Wrap(errors.ErrCodeEngineInitFailed, "failed to fetch symbol metadata", err)
		}

		e.account.SetLotSizes(lotSizes)
		e.account.SetStockNames(stockNames)
	}

	e.persist()
	defer e.persist()

	e.logger.Info("starting live trading",
		zap.Strings("symbols", e.source.Symbols()),
		zap.Float64("cash", e.account.Cash()),
		zap.Float64("equity", e.account.TotalEquity()))

	for point, err := range e.source.SignalPoints(ctx) {
		if err != nil {
			e.logger.Warn("signal point unavailable", zap.Error(err))

			continue
		}

		if e.isStale(point) {
			e.logger.Debug("stale signal point, market may be closed",
				zap.String("symbol", point.Symbol),
				zap.Time("time", point.Time))

			continue
		}

		e.processSignalPoint(point)
	}

	e.logger.Info("live trading stopped")

	return nil
}

// Performance derives the report from the account's current state.
func (e *LiveEngine) Performance() types.Performance {
	return CalculatePerformance(e.account)
}

// isStale reports whether a signal point lags now by more than two bar
// periods plus grace. Such fills can no longer be trusted.
func (e *LiveEngine) isStale(point types.SignalPoint) bool {
	lag := e.now().Sub(point.Time)

	return lag > 2*e.config.Interval.Duration()+staleGrace
}

func (e *LiveEngine) processSignalPoint(point types.SignalPoint) {
	price, err := e.source.LatestPrice(point.Symbol, point.Time)
	if err != nil {
		e.logger.Warn("no quote for signal point",
			zap.String("symbol", point.Symbol),
			zap.Error(err))

		return
	}

	e.account.UpdatePrice(point.Symbol, price)

	signal := e.strategy.Analyze(point.Symbol, point.Window)

	result := e.tradeManager.ExecuteTrade(signal, point.Symbol, point.Time, price)

	e.account.RecordEquity(point.Time, e.account.TotalEquity())
	e.persist()

	switch result.Status {
	case types.ExecuteStatusSuccess:
		e.notifyTrade(signal, point, price, result)
	case types.ExecuteStatusFailed:
		e.logger.Warn("trade rejected",
			zap.String("symbol", point.Symbol),
			zap.String("signal_id", result.SignalID),
			zap.String("msg", result.Message))
	}
}

// notifyTrade pushes a fire-and-forget alert for an executed trade.
// Delivery failures are logged, never fatal.
func (e *LiveEngine) notifyTrade(signal types.Signal, point types.SignalPoint, price float64, result types.ExecuteResult) {
	name := e.account.StockName(point.Symbol)
	equity := e.account.TotalEquity()

	suggestion := e.tradeManager.Positions().PositionSuggestion(signal, price, equity)
	stats := e.account.TradeStats()

	winRate := "N/A"
	if stats.TotalTrades > 0 {
		winRate = fmt.Sprintf("%.1f%% (%d/%d)", stats.WinRate*100, stats.WinningTrades, stats.TotalTrades)
	}

	title := fmt.Sprintf("[signal] %s (%s) %s", name, point.Symbol, signal.Action)
	content := fmt.Sprintf(
		"symbol: %s\nname: %s\ntime: %s\naction: %s\ntag: %s\nprice: %.4f\nquantity: %d\nreason: %s\nsuggestion: %s\nresult: %s\naccount: cash=%.2f equity=%.2f\nwin rate: %s",
		point.Symbol,
		name,
		point.Time.Format(time.RFC3339),
		signal.Action,
		orNA(signal.TradeTag),
		price,
		result.Quantity,
		signal.Reason,
		suggestion,
		result.Message,
		e.account.Cash(),
		equity,
		winRate,
	)

	if err := e.notifier.SendMessage(title, content); err != nil {
		e.logger.Warn("notification delivery failed", zap.Error(err))
	}
}

func (e *LiveEngine) persist() {
	if err := e.persistence.Save(e.account); err != nil {
		e.logger.Warn("failed to persist account snapshot", zap.Error(err))
	}
}

func (e *LiveEngine) preRunCheck() error {
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

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}

	return s
}
