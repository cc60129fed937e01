package storage

import (
	"time"

	"github.com/shopspring/decimal"
)

// AlertRecord captures an emitted alert for auditing.
type AlertRecord struct {
	ID         int64
	Instrument string
	Direction  string
	Price      decimal.Decimal
	Currency   string
	LowerBound decimal.Decimal
	UpperBound decimal.Decimal
	Channels   []string
	CreatedAt  time.Time
}
