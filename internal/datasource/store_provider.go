package datasource

import (
	"context"
	"time"

	"github.com/moznion/go-optional"
	"github.com/quantframe/papertrade/internal/types"
	"github.com/quantframe/papertrade/pkg/errors"
)

// StoreQuoteProvider serves quotes out of a CandleStore. Because the store's
// view re-scans its file glob on every query, pointing this provider at files
// an external downloader keeps refreshing gives the live loop fresh bars
// without a vendor API.
type StoreQuoteProvider struct {
	store      *CandleStore
	lotSizes   map[string]int64
	stockNames map[string]string
}

var _ QuoteProvider = (*StoreQuoteProvider)(nil)

func NewStoreQuoteProvider(store *CandleStore, lotSizes map[string]int64, stockNames map[string]string) *StoreQuoteProvider {
	return &StoreQuoteProvider{
		store:      store,
		lotSizes:   lotSizes,
		stockNames: stockNames,
	}
}

// Candles implements QuoteProvider. It returns the most recent count bars of
// the symbol, oldest first.
func (p *StoreQuoteProvider) Candles(_ context.Context, symbol string, _ types.Interval, count int) ([]types.Candle, error) {
	bySymbol, err := p.store.Candles([]string{symbol}, optional.None[time.Time](), optional.None[time.Time]())
	if err != nil {
		return nil, err
	}

	bars := bySymbol[symbol]
	if len(bars) == 0 {
		return nil, errors.Newf(errors.ErrCodeDataNotFound, "no candles stored for %s", symbol)
	}

	if count > 0 && len(bars) > count {
		bars = bars[len(bars)-count:]
	}

	return bars, nil
}

// LotSizes implements QuoteProvider from the statically configured map.
// Symbols without an entry default to a lot size of 1.
func (p *StoreQuoteProvider) LotSizes(_ context.Context, symbols []string) (map[string]int64, error) {
	lots := make(map[string]int64, len(symbols))
	for _, symbol := range symbols {
		if lot, ok := p.lotSizes[symbol]; ok && lot > 0 {
			lots[symbol] = lot
		} else {
			lots[symbol] = 1
		}
	}

	return lots, nil
}

// StockNames implements QuoteProvider from the statically configured map.
func (p *StoreQuoteProvider) StockNames(_ context.Context, symbols []string) (map[string]string, error) {
	names := make(map[string]string, len(symbols))
	for _, symbol := range symbols {
		if name, ok := p.stockNames[symbol]; ok {
			names[symbol] = name
		}
	}

	return names, nil
}
