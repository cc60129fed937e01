package currency

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Converter produces a multiplicative rate from one currency to another.
type Converter interface {
	GetRate(ctx context.Context, from, to string) (decimal.Decimal, error)
}

// ConversionError wraps an upstream rate lookup failure.
type ConversionError struct {
	From string
	To   string
	Err  error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("convert %s to %s: %v", e.From, e.To, e.Err)
}

func (e *ConversionError) Unwrap() error { return e.Err }

// Normalizer is the Converter every caller should go through. Identical codes
// yield exactly 1 without touching the upstream: some providers reject a
// from==to pair outright.
type Normalizer struct {
	upstream Converter
	cache    RateCache
	ttl      time.Duration
	logger   zerolog.Logger
}

// NewNormalizer wraps upstream. cache may be nil; a non-positive ttl disables caching.
func NewNormalizer(upstream Converter, cache RateCache, ttl time.Duration, logger zerolog.Logger) *Normalizer {
	if ttl <= 0 {
		cache = nil
	}
	return &Normalizer{
		upstream: upstream,
		cache:    cache,
		ttl:      ttl,
		logger:   logger.With().Str("component", "currency").Logger(),
	}
}

// Same reports whether two currency codes name the same unit.
func Same(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// GetRate implements Converter.
func (n *Normalizer) GetRate(ctx context.Context, from, to string) (decimal.Decimal, error) {
	from = strings.ToUpper(strings.TrimSpace(from))
	to = strings.ToUpper(strings.TrimSpace(to))

	if from == to {
		return decimal.NewFromInt(1), nil
	}

	key := from + "/" + to
	if n.cache != nil {
		rate, ok, err := n.cache.Get(ctx, key)
		if err != nil {
			n.logger.Warn().Err(err).Str("pair", key).Msg("rate cache read failed")
		} else if ok {
			return rate, nil
		}
	}

	rate, err := n.upstream.GetRate(ctx, from, to)
	if err != nil {
		var convErr *ConversionError
		if errors.As(err, &convErr) {
			return decimal.Decimal{}, err
		}
		return decimal.Decimal{}, &ConversionError{From: from, To: to, Err: err}
	}

	if n.cache != nil {
		if err := n.cache.Set(ctx, key, rate, n.ttl); err != nil {
			n.logger.Warn().Err(err).Str("pair", key).Msg("rate cache write failed")
		}
	}
	return rate, nil
}

var _ Converter = (*Normalizer)(nil)
