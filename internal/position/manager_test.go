package position

import (
	"testing"

	"github.com/quantframe/papertrade/internal/logger"
	"github.com/quantframe/papertrade/internal/types"
	"github.com/stretchr/testify/suite"
)

type ManagerTestSuite struct {
	suite.Suite
	manager *Manager
}

func TestManagerTestSuite(t *testing.T) {
	suite.Run(t, new(ManagerTestSuite))
}

func (suite *ManagerTestSuite) SetupTest() {
	suite.manager = NewManager(0.2, DefaultSizingConfig(), logger.NewNopLogger())
}

func (suite *ManagerTestSuite) TestTargetRatioWithoutVolFactors() {
	signal := types.Signal{Action: types.SignalActionBuy}

	// falls back to the fixed position ratio, capped
	suite.InDelta(0.2, suite.manager.CalculateTargetPositionRatio(signal), 1e-9)
}

func (suite *ManagerTestSuite) TestTargetRatioScalesDownWithVolatility() {
	lowVol := types.Signal{Factors: map[string]float64{
		types.FactorClose: 100.0,
		types.FactorATR:   2.0, // vol ratio 2%
	}}
	highVol := types.Signal{Factors: map[string]float64{
		types.FactorClose: 100.0,
		types.FactorATR:   5.0, // vol ratio 5%
	}}

	low := suite.manager.CalculateTargetPositionRatio(lowVol)
	high := suite.manager.CalculateTargetPositionRatio(highVol)

	suite.InDelta(0.25, low, 1e-9)
	suite.InDelta(0.10, high, 1e-9)
	suite.Greater(low, high)
}

func (suite *ManagerTestSuite) TestTargetRatioClampedToCap() {
	calm := types.Signal{Factors: map[string]float64{
		types.FactorClose: 100.0,
		types.FactorATR:   0.1, // vol ratio clamps at the floor
	}}

	suite.InDelta(0.25, suite.manager.CalculateTargetPositionRatio(calm), 1e-9)
}

func (suite *ManagerTestSuite) TestOrderQuantityLotRounding() {
	tests := []struct {
		name     string
		equity   float64
		cash     float64
		price    float64
		lotSize  int64
		expected int64
	}{
		// target = 100000 * 0.2 / 50 = 400 shares
		{"exact lots", 100000, 100000, 50.0, 100, 400},
		// target = 100000 * 0.2 / 61 = 327.8 -> floor to 300
		{"fractional lot rounds down", 100000, 100000, 61.0, 100, 300},
		{"lot size one keeps shares", 100000, 100000, 61.0, 1, 327},
		// affordable = 3000/61 = 49 -> floor to 0 lots
		{"cash cap rounds to zero", 100000, 3000, 61.0, 100, 0},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			signal := types.Signal{Action: types.SignalActionBuy}
			got := suite.manager.CalculateOrderQuantity(
				types.SignalActionBuy, 0, tc.price, tc.equity, tc.cash, tc.lotSize, signal)

			suite.Equal(tc.expected, got)
			if tc.lotSize > 1 {
				suite.Zero(got % tc.lotSize)
			}
		})
	}
}

func (suite *ManagerTestSuite) TestBuyCappedByCash() {
	signal := types.Signal{}

	// target 400 shares but only 10000 cash -> 200 shares at 50
	got := suite.manager.CalculateOrderQuantity(
		types.SignalActionBuy, 0, 50.0, 100000, 10000, 100, signal)
	suite.Equal(int64(200), got)
}

func (suite *ManagerTestSuite) TestBuyAtTargetIsNoop() {
	signal := types.Signal{}

	got := suite.manager.CalculateOrderQuantity(
		types.SignalActionBuy, 400, 50.0, 100000, 50000, 100, signal)
	suite.Zero(got)
}

func (suite *ManagerTestSuite) TestSellDefaultsToFullClose() {
	signal := types.Signal{}

	got := suite.manager.CalculateOrderQuantity(
		types.SignalActionSell, 500, 50.0, 100000, 1000, 100, signal)
	suite.Equal(int64(500), got)
}

func (suite *ManagerTestSuite) TestSellTowardExplicitTarget() {
	signal := types.Signal{Factors: map[string]float64{
		types.FactorTargetPositionRatio: 0.1, // 100000 * 0.1 / 50 = 200 shares
	}}

	got := suite.manager.CalculateOrderQuantity(
		types.SignalActionSell, 500, 50.0, 100000, 1000, 100, signal)
	suite.Equal(int64(300), got)
}

func (suite *ManagerTestSuite) TestSellNeverOversells() {
	signal := types.Signal{Factors: map[string]float64{
		types.FactorTargetShares: 0,
	}}

	got := suite.manager.CalculateOrderQuantity(
		types.SignalActionSell, 300, 50.0, 100000, 1000, 100, signal)
	suite.Equal(int64(300), got)
}

func (suite *ManagerTestSuite) TestExplicitTargetSharesWins() {
	signal := types.Signal{Factors: map[string]float64{
		types.FactorTargetShares:        600,
		types.FactorTargetPositionRatio: 0.05,
	}}

	got := suite.manager.CalculateOrderQuantity(
		types.SignalActionBuy, 0, 50.0, 100000, 100000, 100, signal)
	suite.Equal(int64(600), got)
}

func (suite *ManagerTestSuite) TestRebalanceThresholdBlocksChurn() {
	// holding 10000 shares, threshold is 5% = 500 shares
	signal := types.Signal{Factors: map[string]float64{
		types.FactorTargetShares: 10300,
	}}

	got := suite.manager.CalculateOrderQuantity(
		types.SignalActionBuy, 10000, 10.0, 1000000, 1000000, 100, signal)
	suite.Zero(got)

	signal.Factors[types.FactorTargetShares] = 10600
	got = suite.manager.CalculateOrderQuantity(
		types.SignalActionBuy, 10000, 10.0, 1000000, 1000000, 100, signal)
	suite.Equal(int64(600), got)
}

func (suite *ManagerTestSuite) TestIntradayThresholdIsStricter() {
	// 8% change passes the structural threshold but not the intraday one
	signal := types.Signal{
		TradeTag: types.TradeTagIntraday,
		Factors:  map[string]float64{types.FactorTargetShares: 10800},
	}

	got := suite.manager.CalculateOrderQuantity(
		types.SignalActionBuy, 10000, 10.0, 1000000, 1000000, 100, signal)
	suite.Zero(got)

	structural := types.Signal{Factors: map[string]float64{types.FactorTargetShares: 10800}}
	got = suite.manager.CalculateOrderQuantity(
		types.SignalActionBuy, 10000, 10.0, 1000000, 1000000, 100, structural)
	suite.Equal(int64(800), got)
}

func (suite *ManagerTestSuite) TestInvalidInputsReturnZero() {
	signal := types.Signal{}

	suite.Zero(suite.manager.CalculateOrderQuantity(types.SignalActionBuy, 0, 0, 100000, 100000, 1, signal))
	suite.Zero(suite.manager.CalculateOrderQuantity(types.SignalActionBuy, 0, 50.0, 0, 100000, 1, signal))
	suite.Zero(suite.manager.CalculateOrderQuantity(types.SignalActionHold, 0, 50.0, 100000, 100000, 1, signal))
}

func (suite *ManagerTestSuite) TestPositionSuggestion() {
	buy := types.Signal{Action: types.SignalActionBuy, Factors: map[string]float64{
		types.FactorTargetPositionRatio: 0.2,
	}}
	suite.Contains(suite.manager.PositionSuggestion(buy, 50.0, 100000), "20%")

	sell := types.Signal{Action: types.SignalActionSell}
	suite.Equal("close the position", suite.manager.PositionSuggestion(sell, 50.0, 100000))

	hold := types.Signal{Action: types.SignalActionHold}
	suite.Empty(suite.manager.PositionSuggestion(hold, 50.0, 100000))
}
