package engine

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/moznion/go-optional"
	"github.com/quantframe/papertrade/internal/datasource"
	"github.com/quantframe/papertrade/internal/logger"
	"github.com/quantframe/papertrade/internal/types"
	"github.com/quantframe/papertrade/mocks"
	"github.com/quantframe/papertrade/pkg/errors"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"
)

func scriptKey(symbol string, at time.Time) string {
	return symbol + "|" + at.UTC().Format(time.RFC3339)
}

// scriptedStrategy replays pre-assigned signals keyed by symbol and bar
// time, holding everywhere else.
func scriptedStrategy(ctrl *gomock.Controller, signals map[string]types.Signal) *mocks.MockStrategy {
	s := mocks.NewMockStrategy(ctrl)
	s.EXPECT().Name().Return("scripted").AnyTimes()
	s.EXPECT().Analyze(gomock.Any(), gomock.Any()).DoAndReturn(
		func(symbol string, window []types.Candle) types.Signal {
			last := window[len(window)-1]
			if signal, ok := signals[scriptKey(symbol, last.Time)]; ok {
				return signal
			}

			return types.Signal{Action: types.SignalActionHold, Reason: "nothing scripted"}
		}).AnyTimes()

	return s
}

func dailyCandles(symbol string, start time.Time, closes ...float64) []types.Candle {
	candles := make([]types.Candle, 0, len(closes))
	for i, price := range closes {
		candles = append(candles, types.Candle{
			Symbol: symbol,
			Time:   start.Add(time.Duration(i) * 24 * time.Hour),
			Open:   price,
			High:   price,
			Low:    price,
			Close:  price,
			Volume: 1000,
		})
	}

	return candles
}

type BacktestTestSuite struct {
	suite.Suite
	start time.Time
	ctrl  *gomock.Controller
}

func TestBacktestSuite(t *testing.T) {
	suite.Run(t, new(BacktestTestSuite))
}

func (suite *BacktestTestSuite) SetupTest() {
	suite.start = time.Date(2024, 3, 1, 16, 0, 0, 0, time.UTC)
	suite.ctrl = gomock.NewController(suite.T())
}

const backtestConfig = `
initial_capital: 100000
commission_rate: 0.001
position_ratio: 0.2
interval: 1d
symbols: ["700.HK"]
`

func (suite *BacktestTestSuite) newEngine(config string, candles map[string][]types.Candle, signals map[string]types.Signal) *BacktestEngine {
	engine := NewBacktestEngine(logger.NewNopLogger())
	suite.Require().NoError(engine.Initialize(config))
	suite.Require().NoError(engine.LoadStrategy(scriptedStrategy(suite.ctrl, signals)))
	suite.Require().NoError(engine.SetDataSource(datasource.NewHistoricalSource(candles, logger.NewNopLogger())))

	return engine
}

func (suite *BacktestTestSuite) TestRunRoundTrip() {
	candles := map[string][]types.Candle{
		"700.HK": dailyCandles("700.HK", suite.start, 50, 55, 55),
	}
	signals := map[string]types.Signal{
		scriptKey("700.HK", suite.start): {
			Action:  types.SignalActionBuy,
			Factors: map[string]float64{types.FactorTargetShares: 100},
			Reason:  "entry",
		},
		scriptKey("700.HK", suite.start.Add(48*time.Hour)): {
			Action: types.SignalActionSell,
			Reason: "exit",
		},
	}

	engine := suite.newEngine(backtestConfig, candles, signals)
	suite.Require().NoError(engine.Run(context.Background(), optional.None[OnProcessSignalCallback]()))

	results := engine.Results()
	suite.Require().Len(results.Trades, 2)

	buy := results.Trades[0]
	suite.Equal(types.SignalActionBuy, buy.Action)
	suite.Equal(int64(100), buy.Quantity)
	suite.Equal(50.0, buy.Price)
	suite.InDelta(5.0, buy.Commission, 1e-9)

	sell := results.Trades[1]
	suite.Equal(types.SignalActionSell, sell.Action)
	suite.Equal(int64(100), sell.Quantity)
	suite.Equal(55.0, sell.Price)
	suite.InDelta(5.5, sell.Commission, 1e-9)
	suite.InDelta(0.1, sell.ProfitRatio, 1e-9)
	suite.True(sell.IsClosing())

	suite.Require().Len(results.EquityCurve, 3)
	suite.InDelta(99995.0, results.EquityCurve[0].Equity, 1e-9)
	suite.InDelta(100495.0, results.EquityCurve[1].Equity, 1e-9)
	suite.InDelta(100489.5, results.EquityCurve[2].Equity, 1e-9)

	suite.InDelta(100489.5, results.Performance.FinalEquity, 1e-9)
	suite.InDelta(0.004895, results.Performance.TotalReturn, 1e-9)
	suite.Equal(1, results.Performance.TradeStats.TotalTrades)

	suite.InDelta(100489.5, engine.Account().Cash(), 1e-9)
	suite.Equal(int64(0), engine.Account().PositionQuantity("700.HK"))
}

func (suite *BacktestTestSuite) TestRunIsDeterministic() {
	candles := map[string][]types.Candle{
		"700.HK":  dailyCandles("700.HK", suite.start, 50, 52, 54, 53, 55),
		"0005.HK": dailyCandles("0005.HK", suite.start, 40, 41, 39, 42, 44),
	}
	signals := map[string]types.Signal{
		scriptKey("700.HK", suite.start): {
			Action:  types.SignalActionBuy,
			Factors: map[string]float64{types.FactorTargetShares: 200},
		},
		scriptKey("0005.HK", suite.start.Add(24*time.Hour)): {
			Action:  types.SignalActionBuy,
			Factors: map[string]float64{types.FactorTargetShares: 100},
		},
		scriptKey("700.HK", suite.start.Add(96*time.Hour)): {
			Action: types.SignalActionSell,
		},
	}

	run := func() Results {
		engine := suite.newEngine(backtestConfig, candles, signals)
		suite.Require().NoError(engine.Run(context.Background(), optional.None[OnProcessSignalCallback]()))

		return engine.Results()
	}

	first := run()
	second := run()

	suite.Equal(first.Trades, second.Trades)
	suite.Equal(first.EquityCurve, second.EquityCurve)
	suite.Equal(first.Performance, second.Performance)
}

func (suite *BacktestTestSuite) TestStartAndEndTimeBoundReplays() {
	day := 24 * time.Hour
	candles := map[string][]types.Candle{
		"700.HK": dailyCandles("700.HK", suite.start, 50, 50, 50, 50, 50),
	}
	signals := map[string]types.Signal{
		// before the start time, must never execute
		scriptKey("700.HK", suite.start.Add(1*day)): {
			Action:  types.SignalActionBuy,
			Factors: map[string]float64{types.FactorTargetShares: 100},
		},
		scriptKey("700.HK", suite.start.Add(2*day)): {
			Action:  types.SignalActionBuy,
			Factors: map[string]float64{types.FactorTargetShares: 100},
		},
		// after the end time, must never execute
		scriptKey("700.HK", suite.start.Add(4*day)): {
			Action: types.SignalActionSell,
		},
	}

	config := backtestConfig + fmt.Sprintf("\nstart_time: %s\nend_time: %s\n",
		suite.start.Add(2*day).Format(time.RFC3339),
		suite.start.Add(3*day).Format(time.RFC3339))

	engine := suite.newEngine(config, candles, signals)
	suite.Require().NoError(engine.Run(context.Background(), optional.None[OnProcessSignalCallback]()))

	results := engine.Results()
	suite.Require().Len(results.Trades, 1)
	suite.Equal(suite.start.Add(2*day), results.Trades[0].Timestamp)

	// only the two points inside the window leave equity samples
	suite.Len(results.EquityCurve, 2)
	suite.Equal(int64(100), engine.Account().PositionQuantity("700.HK"))
}

func (suite *BacktestTestSuite) TestProgressCallback() {
	candles := map[string][]types.Candle{
		"700.HK": dailyCandles("700.HK", suite.start, 50, 51, 52),
	}

	engine := suite.newEngine(backtestConfig, candles, nil)

	var calls [][2]int
	callback := OnProcessSignalCallback(func(current, total int) {
		calls = append(calls, [2]int{current, total})
	})

	suite.Require().NoError(engine.Run(context.Background(), optional.Some(callback)))

	suite.Require().Len(calls, 3)
	suite.Equal([2]int{1, 3}, calls[0])
	suite.Equal([2]int{3, 3}, calls[2])
}

func (suite *BacktestTestSuite) TestPreRunCheck() {
	candles := map[string][]types.Candle{
		"700.HK": dailyCandles("700.HK", suite.start, 50),
	}

	suite.Run("not initialized", func() {
		engine := NewBacktestEngine(logger.NewNopLogger())
		err := engine.Run(context.Background(), optional.None[OnProcessSignalCallback]())
		suite.Require().Error(err)
		suite.True(errors.HasCode(err, errors.ErrCodeEngineInitFailed))
	})

	suite.Run("no strategy", func() {
		engine := NewBacktestEngine(logger.NewNopLogger())
		suite.Require().NoError(engine.Initialize(backtestConfig))
		suite.Require().NoError(engine.SetDataSource(datasource.NewHistoricalSource(candles, nil)))

		err := engine.Run(context.Background(), optional.None[OnProcessSignalCallback]())
		suite.Require().Error(err)
		suite.True(errors.HasCode(err, errors.ErrCodeEngineNoStrategy))
	})

	suite.Run("no data source", func() {
		engine := NewBacktestEngine(logger.NewNopLogger())
		suite.Require().NoError(engine.Initialize(backtestConfig))
		suite.Require().NoError(engine.LoadStrategy(scriptedStrategy(suite.ctrl, nil)))

		err := engine.Run(context.Background(), optional.None[OnProcessSignalCallback]())
		suite.Require().Error(err)
		suite.True(errors.HasCode(err, errors.ErrCodeEngineNoDataSource))
	})

	suite.Run("no symbols", func() {
		engine := NewBacktestEngine(logger.NewNopLogger())
		suite.Require().NoError(engine.Initialize(backtestConfig))
		suite.Require().NoError(engine.LoadStrategy(scriptedStrategy(suite.ctrl, nil)))
		suite.Require().NoError(engine.SetDataSource(datasource.NewHistoricalSource(nil, nil)))

		err := engine.Run(context.Background(), optional.None[OnProcessSignalCallback]())
		suite.Require().Error(err)
		suite.True(errors.HasCode(err, errors.ErrCodeEngineNoSymbols))
	})
}
