// Package strategy defines the contract the engines evaluate at every
// signal point, plus the guard that keeps a faulty strategy from taking the
// trading loop down.
package strategy

import (
	"github.com/quantframe/papertrade/internal/logger"
	"github.com/quantframe/papertrade/internal/types"
	"go.uber.org/zap"
)

// Strategy turns a candle window into a trading decision. Analyze is treated
// as a pure, synchronous function of the window; implementations must not
// mutate it.
type Strategy interface {
	// Name identifies the strategy in logs and reports
	Name() string
	// Analyze evaluates the window ending at the signal point and returns
	// a BUY, SELL or HOLD decision
	Analyze(symbol string, window []types.Candle) types.Signal
}

// Guarded wraps a strategy so a panic inside Analyze degrades to HOLD
// instead of aborting the run.
type Guarded struct {
	inner  Strategy
	logger *logger.Logger
}

var _ Strategy = (*Guarded)(nil)

func NewGuarded(inner Strategy, log *logger.Logger) *Guarded {
	if log == nil {
		log = logger.NewNopLogger()
	}

	return &Guarded{
		inner:  inner,
		logger: log,
	}
}

// Name implements Strategy.
func (g *Guarded) Name() string {
	return g.inner.Name()
}

// Analyze implements Strategy.
func (g *Guarded) Analyze(symbol string, window []types.Candle) (signal types.Signal) {
	defer func() {
		if r := recover(); r != nil {
			g.logger.Error("strategy panicked, holding",
				zap.String("strategy", g.inner.Name()),
				zap.String("symbol", symbol),
				zap.Any("panic", r))

			signal = types.Signal{
				Action: types.SignalActionHold,
				Reason: "strategy evaluation failed",
			}
		}
	}()

	return g.inner.Analyze(symbol, window)
}
