package service

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Classification is where a price sits relative to the band.
type Classification int

const (
	// BelowLower: price < lower bound.
	BelowLower Classification = -1
	// Inside is the zero value; both bounds count as inside.
	Inside Classification = 0
	// AboveUpper: price > upper bound.
	AboveUpper Classification = 1
)

func (c Classification) String() string {
	switch c {
	case BelowLower:
		return "below_lower"
	case AboveUpper:
		return "above_upper"
	default:
		return "inside"
	}
}

// Band is the open interval (Lower, Upper) expressed in Currency.
type Band struct {
	Lower    decimal.Decimal
	Upper    decimal.Decimal
	Currency string
}

// NewBand validates lower < upper and returns the band.
func NewBand(lower, upper decimal.Decimal, currency string) (Band, error) {
	if !lower.LessThan(upper) {
		return Band{}, fmt.Errorf("lower bound %s must be less than upper bound %s", lower, upper)
	}
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		return Band{}, fmt.Errorf("band currency is required")
	}
	return Band{Lower: lower, Upper: upper, Currency: currency}, nil
}

// Classify 判断价格相对区间的位置, 边界值视为区间内。
func (b Band) Classify(price decimal.Decimal) Classification {
	switch {
	case price.LessThan(b.Lower):
		return BelowLower
	case price.GreaterThan(b.Upper):
		return AboveUpper
	default:
		return Inside
	}
}
