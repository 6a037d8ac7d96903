package strategy

import (
	"testing"
	"time"

	"github.com/quantframe/papertrade/internal/logger"
	"github.com/quantframe/papertrade/internal/types"
	"github.com/stretchr/testify/suite"
)

type panicStrategy struct{}

func (p *panicStrategy) Name() string { return "panics" }

func (p *panicStrategy) Analyze(string, []types.Candle) types.Signal {
	panic("indicator out of range")
}

type StrategyTestSuite struct {
	suite.Suite
}

func TestStrategyTestSuite(t *testing.T) {
	suite.Run(t, new(StrategyTestSuite))
}

// bars builds a window from close prices, one bar per minute.
func (suite *StrategyTestSuite) bars(closes ...float64) []types.Candle {
	base := time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC)

	window := make([]types.Candle, len(closes))
	for i, close := range closes {
		window[i] = types.Candle{
			Symbol: "700.HK",
			Time:   base.Add(time.Duration(i) * time.Minute),
			Open:   close,
			High:   close + 0.5,
			Low:    close - 0.5,
			Close:  close,
		}
	}

	return window
}

func (suite *StrategyTestSuite) TestGuardedRecoversPanic() {
	guarded := NewGuarded(&panicStrategy{}, logger.NewNopLogger())

	signal := guarded.Analyze("700.HK", suite.bars(50))

	suite.Equal(types.SignalActionHold, signal.Action)
	suite.Equal("strategy evaluation failed", signal.Reason)
	suite.Equal("panics", guarded.Name())
}

func (suite *StrategyTestSuite) TestGuardedPassesThrough() {
	guarded := NewGuarded(NewSMACrossover(2, 4), logger.NewNopLogger())

	signal := guarded.Analyze("700.HK", suite.bars(50))

	suite.Equal(types.SignalActionHold, signal.Action)
	suite.Equal("insufficient history", signal.Reason)
}

func (suite *StrategyTestSuite) TestSMABuyOnBullishCrossover() {
	sma := NewSMACrossover(2, 4)

	// downtrend then a sharp reversal: short MA crosses above long MA on the
	// final bar
	window := suite.bars(50, 48, 46, 44, 42, 40, 41, 60)

	signal := sma.Analyze("700.HK", window)

	suite.Equal(types.SignalActionBuy, signal.Action)
	suite.InDelta(60.0, signal.Factors[types.FactorClose], 1e-9)
	suite.Greater(signal.Factors["sma_short"], signal.Factors["sma_long"])
}

func (suite *StrategyTestSuite) TestSMASellOnBearishCrossover() {
	sma := NewSMACrossover(2, 4)

	// uptrend then a sharp reversal downward
	window := suite.bars(40, 42, 44, 46, 48, 50, 49, 30)

	signal := sma.Analyze("700.HK", window)

	suite.Equal(types.SignalActionSell, signal.Action)
	suite.Less(signal.Factors["sma_short"], signal.Factors["sma_long"])
}

func (suite *StrategyTestSuite) TestSMAHoldWithoutCrossover() {
	sma := NewSMACrossover(2, 4)

	window := suite.bars(40, 41, 42, 43, 44, 45, 46, 47)

	signal := sma.Analyze("700.HK", window)

	suite.Equal(types.SignalActionHold, signal.Action)
	suite.Equal("no crossover", signal.Reason)
}

func (suite *StrategyTestSuite) TestSMADeterministic() {
	sma := NewSMACrossover(2, 4)
	window := suite.bars(50, 48, 46, 44, 42, 40, 41, 60)

	first := sma.Analyze("700.HK", window)
	second := sma.Analyze("700.HK", window)

	suite.Equal(first, second)
}

func (suite *StrategyTestSuite) TestATRFactorPresent() {
	sma := NewSMACrossover(2, 4)

	// 16 bars so the 14-period ATR has data
	closes := make([]float64, 16)
	for i := range closes {
		closes[i] = 50 + float64(i%3)
	}

	signal := sma.Analyze("700.HK", suite.bars(closes...))
	suite.Greater(signal.Factors[types.FactorATR], 0.0)
}
