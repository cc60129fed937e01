package fetcher

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Sample is one observation of the tracked instrument, in the currency the
// source quotes it in.
type Sample struct {
	Value      decimal.Decimal
	Currency   string
	ObservedAt time.Time
}

// PriceSource supplies the latest observed price for an instrument.
type PriceSource interface {
	FetchPrice(ctx context.Context, instrument string) (Sample, error)
}

// SourceError wraps any failure to obtain or parse a price. It is recoverable:
// the poll cycle is skipped and the next tick tries again.
type SourceError struct {
	Instrument string
	Err        error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("fetch price for %s: %v", e.Instrument, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }
