package fetcher

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

type priceClient interface {
	Price(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// TwelveData adapts the Twelve Data /price endpoint to PriceSource.
// The endpoint does not report a currency, so the configured quote currency is
// attached to every sample.
type TwelveData struct {
	client        priceClient
	quoteCurrency string
	logger        zerolog.Logger
	now           func() time.Time
}

// NewTwelveData builds a price source on top of a Twelve Data client.
func NewTwelveData(client priceClient, quoteCurrency string, logger zerolog.Logger) *TwelveData {
	quoteCurrency = strings.ToUpper(strings.TrimSpace(quoteCurrency))
	if quoteCurrency == "" {
		quoteCurrency = "USD"
	}
	return &TwelveData{
		client:        client,
		quoteCurrency: quoteCurrency,
		logger:        logger.With().Str("component", "price_source").Logger(),
		now:           time.Now,
	}
}

// FetchPrice implements PriceSource.
func (t *TwelveData) FetchPrice(ctx context.Context, instrument string) (Sample, error) {
	price, err := t.client.Price(ctx, instrument)
	if err != nil {
		return Sample{}, &SourceError{Instrument: instrument, Err: err}
	}

	t.logger.Debug().Str("instrument", instrument).Str("price", price.String()).Msg("price fetched")
	return Sample{Value: price, Currency: t.quoteCurrency, ObservedAt: t.now().UTC()}, nil
}

// QuoteCurrency reports the currency every sample is denominated in.
func (t *TwelveData) QuoteCurrency() string {
	return t.quoteCurrency
}

var _ PriceSource = (*TwelveData)(nil)
