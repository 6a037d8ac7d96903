package datasource

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/quantframe/papertrade/internal/logger"
	"github.com/quantframe/papertrade/internal/types"
	"github.com/quantframe/papertrade/pkg/errors"
	"github.com/stretchr/testify/suite"
)

type StoreQuoteProviderTestSuite struct {
	suite.Suite
	store    *CandleStore
	provider *StoreQuoteProvider
}

func TestStoreQuoteProviderTestSuite(t *testing.T) {
	suite.Run(t, new(StoreQuoteProviderTestSuite))
}

func (suite *StoreQuoteProviderTestSuite) SetupTest() {
	store, err := NewCandleStore(logger.NewNopLogger())
	suite.Require().NoError(err)
	suite.store = store

	suite.provider = NewStoreQuoteProvider(store,
		map[string]int64{"700.HK": 100},
		map[string]string{"700.HK": "Tencent"})
}

func (suite *StoreQuoteProviderTestSuite) TearDownTest() {
	if suite.store != nil {
		suite.store.Close()
	}
}

func (suite *StoreQuoteProviderTestSuite) loadFixture() {
	csv := `time,symbol,open,high,low,close,volume
2024-03-15 09:30:00,700.HK,50.0,50.5,49.8,50.2,1200
2024-03-15 10:30:00,700.HK,50.2,51.0,50.1,50.9,900
2024-03-15 09:30:00,0005.HK,40.0,40.2,39.9,40.1,3000
`

	path := filepath.Join(suite.T().TempDir(), "candles.csv")
	suite.Require().NoError(os.WriteFile(path, []byte(csv), 0o644))
	suite.Require().NoError(suite.store.Load(path))
}

func (suite *StoreQuoteProviderTestSuite) TestCandlesReturnsNewestWindow() {
	suite.loadFixture()

	bars, err := suite.provider.Candles(context.Background(), "700.HK", types.Interval1h, 1)
	suite.Require().NoError(err)
	suite.Require().Len(bars, 1)
	suite.Equal(50.9, bars[0].Close)

	all, err := suite.provider.Candles(context.Background(), "700.HK", types.Interval1h, 10)
	suite.Require().NoError(err)
	suite.Len(all, 2)
}

func (suite *StoreQuoteProviderTestSuite) TestCandlesUnknownSymbol() {
	suite.loadFixture()

	_, err := suite.provider.Candles(context.Background(), "9988.HK", types.Interval1h, 5)
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeDataNotFound))
}

func (suite *StoreQuoteProviderTestSuite) TestLotSizesAndNames() {
	lots, err := suite.provider.LotSizes(context.Background(), []string{"700.HK", "0005.HK"})
	suite.Require().NoError(err)
	suite.Equal(int64(100), lots["700.HK"])
	suite.Equal(int64(1), lots["0005.HK"])

	names, err := suite.provider.StockNames(context.Background(), []string{"700.HK", "0005.HK"})
	suite.Require().NoError(err)
	suite.Equal("Tencent", names["700.HK"])
	_, ok := names["0005.HK"]
	suite.False(ok)
}
