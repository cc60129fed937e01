package fetcher

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

type stubPriceClient struct {
	price decimal.Decimal
	err   error
	calls int
}

func (s *stubPriceClient) Price(ctx context.Context, symbol string) (decimal.Decimal, error) {
	s.calls++
	return s.price, s.err
}

func noopLogger() zerolog.Logger {
	return zerolog.Nop()
}

func TestTwelveDataSample(t *testing.T) {
	client := &stubPriceClient{price: decimal.NewFromInt(42)}
	src := NewTwelveData(client, "brl", noopLogger())

	sample, err := src.FetchPrice(context.Background(), "PETR4")
	if err != nil {
		t.Fatalf("不应报错: %v", err)
	}
	if !sample.Value.Equal(decimal.NewFromInt(42)) {
		t.Fatalf("期望价格 42, 实际 %s", sample.Value)
	}
	if sample.Currency != "BRL" {
		t.Fatalf("currency should be upper-cased quote currency, got %q", sample.Currency)
	}
	if sample.ObservedAt.IsZero() {
		t.Fatal("observedAt should be set")
	}
}

func TestTwelveDataWrapsSourceError(t *testing.T) {
	upstream := errors.New("boom")
	src := NewTwelveData(&stubPriceClient{err: upstream}, "", noopLogger())

	_, err := src.FetchPrice(context.Background(), "AAPL")
	var srcErr *SourceError
	if !errors.As(err, &srcErr) {
		t.Fatalf("应返回 *SourceError, 实际 %T", err)
	}
	if srcErr.Instrument != "AAPL" || !errors.Is(err, upstream) {
		t.Fatalf("unexpected error %v", err)
	}
	if src.QuoteCurrency() != "USD" {
		t.Fatalf("默认报价货币应为 USD, 实际 %s", src.QuoteCurrency())
	}
}
