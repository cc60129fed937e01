package app

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"quote-alerts/internal/config"
	"quote-alerts/internal/fetcher"
	"quote-alerts/internal/service"
)

// Simulate 以给定价格执行一次完整的轮询, 经过真实的汇率换算与告警通道。
// It returns the classification of the simulated price.
func (a *App) Simulate(ctx context.Context, price decimal.Decimal, quoteCurrency string) (service.Classification, error) {
	band, err := a.band()
	if err != nil {
		return service.Inside, err
	}

	quoteCurrency = strings.ToUpper(strings.TrimSpace(quoteCurrency))
	if quoteCurrency == "" {
		quoteCurrency = a.Config.TwelveData.QuoteCurrency
	}
	source := &fetcher.Static{Price: price, Currency: quoteCurrency}

	converter, closeConverter, err := a.newConverter(ctx, a.newClient())
	if err != nil {
		return service.Inside, err
	}
	defer closeConverter()

	notifier, err := a.newNotifier()
	if err != nil {
		return service.Inside, err
	}

	engine, err := service.New(a.engineOptions(band), nil, source, converter, notifier, a.Logger)
	if err != nil {
		return service.Inside, &config.Error{Key: "monitor", Err: err}
	}

	if err := engine.Poll(ctx); err != nil {
		return service.Inside, err
	}

	class := engine.State().LastClassification
	a.Logger.Info().
		Str("price", price.String()).
		Str("currency", quoteCurrency).
		Str("classification", class.String()).
		Msg("simulation complete")
	return class, nil
}
