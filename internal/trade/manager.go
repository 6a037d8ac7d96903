// Package trade coordinates signal execution: idempotency and throttle
// checks, sizing through the position manager, and account mutation. It is
// the single entry point both engines call.
package trade

import (
	"fmt"
	"time"

	"github.com/quantframe/papertrade/internal/account"
	"github.com/quantframe/papertrade/internal/logger"
	"github.com/quantframe/papertrade/internal/position"
	"github.com/quantframe/papertrade/internal/types"
	"go.uber.org/zap"
)

type Manager struct {
	account   *account.Account
	positions *position.Manager

	// tCooldown is the minimum spacing between executed T-trades per symbol.
	// Zero disables throttling. Structural trades are never throttled.
	tCooldown    time.Duration
	lastIntraday map[string]time.Time

	logger *logger.Logger
}

func NewManager(acc *account.Account, positions *position.Manager, tCooldown time.Duration, log *logger.Logger) *Manager {
	if log == nil {
		log = logger.NewNopLogger()
	}

	return &Manager{
		account:      acc,
		positions:    positions,
		tCooldown:    tCooldown,
		lastIntraday: make(map[string]time.Time),
		logger:       log,
	}
}

func (m *Manager) Account() *account.Account {
	return m.account
}

func (m *Manager) Positions() *position.Manager {
	return m.positions
}

// FallbackSignalID builds the deterministic ID used when a strategy does not
// assign one.
func FallbackSignalID(symbol string, timestamp time.Time, action types.SignalAction) string {
	return fmt.Sprintf("%s_%s_%s", symbol, timestamp.Format("20060102150405"), action)
}

// ExecuteTrade turns a signal into at most one account mutation.
//
// A HOLD or an already-processed signal is a side-effect-free no-op. A
// T-tagged signal inside the cooldown window is throttled. Otherwise the
// position manager sizes the order and the account executes it. Signals are
// marked processed on every resolved outcome except HOLD and genuine
// execution failures; a failed affordability or position check stays
// retryable on a later price.
func (m *Manager) ExecuteTrade(signal types.Signal, symbol string, timestamp time.Time, price float64) types.ExecuteResult {
	signalID := signal.SignalID
	if signalID == "" {
		signalID = FallbackSignalID(symbol, timestamp, signal.Action)
	}

	result := types.ExecuteResult{
		Action:   signal.Action,
		Symbol:   symbol,
		Price:    price,
		Time:     timestamp,
		SignalID: signalID,
	}

	if signal.Action == types.SignalActionHold {
		result.Status = types.ExecuteStatusSkipped
		result.Message = "hold signal"

		return result
	}

	if m.account.IsSignalProcessed(signalID) {
		result.Status = types.ExecuteStatusSkipped
		result.Message = "signal already processed"

		return result
	}

	m.account.UpdatePrice(symbol, price)

	if m.throttled(signal, symbol, timestamp) {
		m.account.MarkSignalProcessed(signalID)
		result.Status = types.ExecuteStatusThrottled
		result.Message = "intraday cooldown active"

		m.logger.Debug("signal throttled",
			zap.String("symbol", symbol),
			zap.String("signal_id", signalID),
			zap.Time("last_t_trade", m.lastIntraday[symbol]))

		return result
	}

	currentPosition := m.account.PositionQuantity(symbol)

	if signal.Action == types.SignalActionSell && currentPosition <= 0 {
		result.Status = types.ExecuteStatusFailed
		result.Message = "no position to sell"

		return result
	}

	lotSize := m.account.LotSize(symbol)
	quantity := m.positions.CalculateOrderQuantity(
		signal.Action,
		currentPosition,
		price,
		m.account.TotalEquity(),
		m.account.Cash(),
		lotSize,
		signal,
	)

	// Defensive second rounding; the sizing policy already floors to lots.
	if lotSize > 1 {
		quantity = (quantity / lotSize) * lotSize
	}

	if quantity <= 0 {
		m.account.MarkSignalProcessed(signalID)
		result.Status = types.ExecuteStatusSkipped
		result.Message = "computed quantity is 0"

		return result
	}

	var ok bool
	switch signal.Action {
	case types.SignalActionBuy:
		ok = m.account.Buy(symbol, price, quantity, timestamp, signal.Reason, signalID, signal.Factors, signal.TradeTag)
		if !ok {
			result.Status = types.ExecuteStatusFailed
			result.Message = "insufficient cash"

			return result
		}

	case types.SignalActionSell:
		ok = m.account.Sell(symbol, price, quantity, timestamp, signal.Reason, signalID, signal.Factors, signal.TradeTag)
		if !ok {
			result.Status = types.ExecuteStatusFailed
			result.Message = "insufficient position"

			return result
		}
	}

	if signal.TradeTag == types.TradeTagIntraday {
		m.lastIntraday[symbol] = timestamp
	}

	executed := m.account.Trades()[len(m.account.Trades())-1]

	result.Status = types.ExecuteStatusSuccess
	result.Quantity = quantity
	result.Commission = executed.Commission
	result.PositionAfter = executed.PositionAfter
	result.Message = fmt.Sprintf("%s executed: %d shares", signal.Action, quantity)

	return result
}

// throttled reports whether a T-tagged signal falls inside the cooldown
// window of the symbol's previous executed T-trade.
func (m *Manager) throttled(signal types.Signal, symbol string, timestamp time.Time) bool {
	if signal.TradeTag != types.TradeTagIntraday || m.tCooldown <= 0 {
		return false
	}

	last, ok := m.lastIntraday[symbol]
	if !ok {
		return false
	}

	return timestamp.Sub(last) < m.tCooldown
}
