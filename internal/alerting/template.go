package alerting

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const defaultBuyTemplate = `<h1>Action suggested</h1>` +
	`<p>Dear %%NAME%%,</p>` +
	`<p>Stock <strong>%%STOCK%%</strong> price has gone below <strong>%%LOWERBOUND%%</strong> and is currently at <strong>%%PRICE%%</strong>.</p>` +
	`<p><strong>We strongly encourage buying it.</strong></p>`

const defaultSellTemplate = `<h1>Action suggested</h1>` +
	`<p>Dear %%NAME%%,</p>` +
	`<p>Stock <strong>%%STOCK%%</strong> price has gone above <strong>%%UPPERBOUND%%</strong> and is currently at <strong>%%PRICE%%</strong>.</p>` +
	`<p><strong>We strongly encourage selling it.</strong></p>`

// DefaultTemplate returns the built-in body for a direction.
func DefaultTemplate(direction Direction) string {
	if direction == Buy {
		return defaultBuyTemplate
	}
	return defaultSellTemplate
}

// LoadTemplate reads a custom template from path. An empty path or an
// unreadable file yields the built-in template for the direction.
func LoadTemplate(path string, direction Direction, logger zerolog.Logger) string {
	if strings.TrimSpace(path) == "" {
		return DefaultTemplate(direction)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		logger.Warn().Err(err).
			Str("path", path).
			Str("direction", string(direction)).
			Msg("failed to load email template, using default")
		return DefaultTemplate(direction)
	}
	return string(content)
}

// ApplySubstitutions fills the %%PLACEHOLDER%% markers of a template.
func ApplySubstitutions(template, recipient string, event Event) string {
	r := strings.NewReplacer(
		"%%NAME%%", recipient,
		"%%STOCK%%", event.Instrument,
		"%%LOWERBOUND%%", Money(event.LowerBound, event.Currency),
		"%%UPPERBOUND%%", Money(event.UpperBound, event.Currency),
		"%%PRICE%%", Money(event.Price, event.Currency),
	)
	return r.Replace(template)
}

// Money formats an amount with three decimals and its currency code.
func Money(amount decimal.Decimal, currency string) string {
	if currency == "" {
		currency = "USD"
	}
	return amount.StringFixed(3) + " " + currency
}
