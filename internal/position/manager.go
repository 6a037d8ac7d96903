// Package position converts signals into order quantities. The manager holds
// no portfolio state; every calculation is a pure function of the signal and
// the account snapshot passed in.
package position

import (
	"fmt"
	"math"

	"github.com/quantframe/papertrade/internal/logger"
	"github.com/quantframe/papertrade/internal/types"
)

// SizingConfig carries the risk-budget and rebalance policy. Immutable for
// the engine's lifetime.
type SizingConfig struct {
	// MaxPositionRatio caps the fraction of total equity held in one symbol
	MaxPositionRatio float64 `yaml:"max_position_ratio" json:"max_position_ratio" jsonschema:"minimum=0,maximum=1"`
	// RiskPerTrade is the equity fraction risked on a single entry
	RiskPerTrade float64 `yaml:"risk_per_trade" json:"risk_per_trade"`
	// ATRStopMultiple scales the ATR-based stop distance
	ATRStopMultiple float64 `yaml:"atr_stop_multiple" json:"atr_stop_multiple"`
	// MinRebalanceRatio is the smallest position change worth trading
	MinRebalanceRatio float64 `yaml:"min_rebalance_ratio" json:"min_rebalance_ratio"`
}

// DefaultSizingConfig returns the standard policy values.
func DefaultSizingConfig() SizingConfig {
	return SizingConfig{
		MaxPositionRatio:  0.25,
		RiskPerTrade:      0.01,
		ATRStopMultiple:   2.5,
		MinRebalanceRatio: 0.05,
	}
}

// intradayRebalanceRatio is the stricter threshold applied to T-tagged
// signals so intraday trades stay coarse.
const intradayRebalanceRatio = 0.10

// referenceVolRatio and minVolRatio anchor the volatility scaling: a symbol
// with atr/price near 2% gets the full position budget, noisier symbols get
// proportionally less.
const (
	referenceVolRatio = 0.02
	minVolRatio       = 0.005
)

type Manager struct {
	positionRatio float64
	cfg           SizingConfig
	logger        *logger.Logger
}

func NewManager(positionRatio float64, cfg SizingConfig, log *logger.Logger) *Manager {
	if log == nil {
		log = logger.NewNopLogger()
	}

	if cfg.MaxPositionRatio <= 0 {
		cfg.MaxPositionRatio = positionRatio
	}

	return &Manager{
		positionRatio: positionRatio,
		cfg:           cfg,
		logger:        log,
	}
}

func (m *Manager) Config() SizingConfig {
	return m.cfg
}

// CalculateTargetPositionRatio derives the desired equity fraction for a
// symbol from the signal's factors. With close and atr available the budget
// is scaled down as volatility rises; otherwise the fixed position ratio
// applies. The result is clamped to [0, MaxPositionRatio].
func (m *Manager) CalculateTargetPositionRatio(signal types.Signal) float64 {
	price := signal.Factors[types.FactorClose]
	atr := signal.Factors[types.FactorATR]

	if price <= 0 || atr <= 0 {
		return math.Min(m.positionRatio, m.cfg.MaxPositionRatio)
	}

	volRatio := atr / price
	if volRatio < minVolRatio {
		volRatio = minVolRatio
	}

	scaled := m.cfg.MaxPositionRatio * (referenceVolRatio / volRatio)

	return math.Max(0, math.Min(m.cfg.MaxPositionRatio, scaled))
}

// CalculateOrderQuantity converts a BUY or SELL signal into a concrete
// quantity: the lot-rounded delta between the current position and the
// target, capped by available cash (BUY) or the current holding (SELL).
// Deltas below the rebalance threshold return 0 to prevent churn.
func (m *Manager) CalculateOrderQuantity(action types.SignalAction, currentPosition int64, price float64, totalEquity float64, availableCash float64, lotSize int64, signal types.Signal) int64 {
	if price <= 0 || totalEquity <= 0 {
		return 0
	}

	targetPosition := m.targetShares(signal, price, totalEquity)
	targetPosition = normalizeQuantity(targetPosition, lotSize)

	var delta int64

	switch action {
	case types.SignalActionBuy:
		delta = targetPosition - currentPosition
		if delta <= 0 {
			return 0
		}

		maxAffordable := normalizeQuantity(int64(availableCash/price), lotSize)
		if delta > maxAffordable {
			delta = maxAffordable
		}

	case types.SignalActionSell:
		// An explicit target means rebalance toward it; otherwise SELL is a
		// full close.
		if hasExplicitTarget(signal) {
			delta = currentPosition - targetPosition
		} else {
			delta = currentPosition
		}

		if delta <= 0 {
			return 0
		}

		if delta > currentPosition {
			delta = currentPosition
		}

		delta = normalizeQuantity(delta, lotSize)

	default:
		return 0
	}

	if delta < m.minChange(currentPosition, lotSize, signal.TradeTag) {
		return 0
	}

	return delta
}

// PositionSuggestion renders a human readable sizing hint for notifications.
// Non-authoritative; execution quantities come from CalculateOrderQuantity.
func (m *Manager) PositionSuggestion(signal types.Signal, currentPrice float64, totalCapital float64) string {
	switch signal.Action {
	case types.SignalActionBuy:
		ratio, ok := signal.Factors[types.FactorTargetPositionRatio]
		if !ok {
			ratio = m.CalculateTargetPositionRatio(signal)
		}

		return fmt.Sprintf("target position ratio %.0f%% (order quantity set by the risk budget)", ratio*100)
	case types.SignalActionSell:
		if hasExplicitTarget(signal) {
			ratio := signal.Factors[types.FactorTargetPositionRatio]

			return fmt.Sprintf("reduce toward target position ratio %.0f%%", ratio*100)
		}

		return "close the position"
	default:
		return ""
	}
}

// targetShares resolves the desired holding: an explicit share count wins,
// then an explicit ratio, then the computed volatility-scaled ratio.
func (m *Manager) targetShares(signal types.Signal, price float64, totalEquity float64) int64 {
	if shares, ok := signal.Factors[types.FactorTargetShares]; ok {
		if shares < 0 {
			return 0
		}

		return int64(shares)
	}

	ratio, ok := signal.Factors[types.FactorTargetPositionRatio]
	if !ok {
		ratio = m.CalculateTargetPositionRatio(signal)
	}

	return int64(totalEquity * ratio / price)
}

// minChange is the rebalance threshold in shares. T-tagged signals use the
// stricter intraday ratio.
func (m *Manager) minChange(currentPosition int64, lotSize int64, tradeTag string) int64 {
	base := currentPosition
	if base < 1 {
		base = 1
	}

	minChange := normalizeQuantity(int64(float64(base)*m.cfg.MinRebalanceRatio), lotSize)
	if tradeTag == types.TradeTagIntraday {
		intraday := normalizeQuantity(int64(float64(base)*intradayRebalanceRatio), lotSize)
		if intraday > minChange {
			minChange = intraday
		}
	}

	return minChange
}

// normalizeQuantity floors a quantity to a multiple of the lot size. Rounds
// down, never up.
func normalizeQuantity(quantity int64, lotSize int64) int64 {
	if quantity <= 0 {
		return 0
	}

	if lotSize <= 1 {
		return quantity
	}

	return (quantity / lotSize) * lotSize
}

func hasExplicitTarget(signal types.Signal) bool {
	if _, ok := signal.Factors[types.FactorTargetShares]; ok {
		return true
	}

	_, ok := signal.Factors[types.FactorTargetPositionRatio]

	return ok
}
