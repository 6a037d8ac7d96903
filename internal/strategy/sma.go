package strategy

import (
	"fmt"
	"math"

	"github.com/quantframe/papertrade/internal/types"
)

// SMACrossover buys when the short moving average crosses above the long one
// and sells when it crosses back below. It attaches close and atr factors so
// the position manager can scale the order by volatility.
type SMACrossover struct {
	shortPeriod int
	longPeriod  int
	atrPeriod   int
}

var _ Strategy = (*SMACrossover)(nil)

func NewSMACrossover(shortPeriod, longPeriod int) *SMACrossover {
	if shortPeriod <= 0 {
		shortPeriod = 5
	}

	if longPeriod <= shortPeriod {
		longPeriod = shortPeriod * 4
	}

	return &SMACrossover{
		shortPeriod: shortPeriod,
		longPeriod:  longPeriod,
		atrPeriod:   14,
	}
}

// Name implements Strategy.
func (s *SMACrossover) Name() string {
	return fmt.Sprintf("SMA_Cross_%d_%d", s.shortPeriod, s.longPeriod)
}

// Analyze implements Strategy. Windows shorter than one bar past the long
// period produce HOLD; a crossover needs a previous bar to compare against.
func (s *SMACrossover) Analyze(symbol string, window []types.Candle) types.Signal {
	if len(window) <= s.longPeriod {
		return types.Signal{
			Action: types.SignalActionHold,
			Reason: "insufficient history",
		}
	}

	shortMA := sma(window, s.shortPeriod)
	longMA := sma(window, s.longPeriod)

	prev := window[:len(window)-1]
	prevShortMA := sma(prev, s.shortPeriod)
	prevLongMA := sma(prev, s.longPeriod)

	last := window[len(window)-1]
	factors := map[string]float64{
		types.FactorClose: last.Close,
		types.FactorATR:   atr(window, s.atrPeriod),
		"sma_short":       shortMA,
		"sma_long":        longMA,
	}

	switch {
	case shortMA > longMA && prevShortMA <= prevLongMA:
		return types.Signal{
			Action:  types.SignalActionBuy,
			Factors: factors,
			Reason:  fmt.Sprintf("SMA%d crossed above SMA%d", s.shortPeriod, s.longPeriod),
		}
	case shortMA < longMA && prevShortMA >= prevLongMA:
		return types.Signal{
			Action:  types.SignalActionSell,
			Factors: factors,
			Reason:  fmt.Sprintf("SMA%d crossed below SMA%d", s.shortPeriod, s.longPeriod),
		}
	default:
		return types.Signal{
			Action:  types.SignalActionHold,
			Factors: factors,
			Reason:  "no crossover",
		}
	}
}

// sma averages the closes of the last period bars.
func sma(window []types.Candle, period int) float64 {
	if len(window) < period || period <= 0 {
		return 0
	}

	sum := 0.0
	for _, bar := range window[len(window)-period:] {
		sum += bar.Close
	}

	return sum / float64(period)
}

// atr is the average true range over the last period bars.
func atr(window []types.Candle, period int) float64 {
	if len(window) < period+1 || period <= 0 {
		return 0
	}

	sum := 0.0
	bars := window[len(window)-period-1:]

	for i := 1; i < len(bars); i++ {
		highLow := bars[i].High - bars[i].Low
		highClose := math.Abs(bars[i].High - bars[i-1].Close)
		lowClose := math.Abs(bars[i].Low - bars[i-1].Close)

		sum += math.Max(highLow, math.Max(highClose, lowClose))
	}

	return sum / float64(period)
}
