package fetcher

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Static always returns the same price. The simulate command uses it to push a
// chosen value through the real conversion and alerting path.
type Static struct {
	Price    decimal.Decimal
	Currency string
}

// FetchPrice implements PriceSource.
func (s *Static) FetchPrice(ctx context.Context, instrument string) (Sample, error) {
	return Sample{Value: s.Price, Currency: strings.ToUpper(s.Currency), ObservedAt: time.Now().UTC()}, nil
}

var _ PriceSource = (*Static)(nil)
