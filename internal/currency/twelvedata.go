package currency

import (
	"context"

	"github.com/shopspring/decimal"
)

type rateClient interface {
	ConversionRate(ctx context.Context, from, to string) (decimal.Decimal, error)
}

// TwelveData looks rates up through the /currency_conversion endpoint.
type TwelveData struct {
	client rateClient
}

// NewTwelveData adapts a Twelve Data client to Converter.
func NewTwelveData(client rateClient) *TwelveData {
	return &TwelveData{client: client}
}

// GetRate implements Converter.
func (t *TwelveData) GetRate(ctx context.Context, from, to string) (decimal.Decimal, error) {
	rate, err := t.client.ConversionRate(ctx, from, to)
	if err != nil {
		return decimal.Decimal{}, &ConversionError{From: from, To: to, Err: err}
	}
	return rate, nil
}

var _ Converter = (*TwelveData)(nil)
