package twelvedata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

const (
	pricePath      = "/price"
	conversionPath = "/currency_conversion"
)

// ErrEmptyPrice is returned when the API answers with an empty price field.
// Twelve Data does this instead of a 401 when the API key is missing or wrong.
var ErrEmptyPrice = errors.New("twelvedata: empty price in response, check api key")

// Options parameterise the Twelve Data client.
type Options struct {
	BaseURL           string
	APIKey            string
	Timeout           time.Duration
	UserAgent         string
	RequestsPerMinute int
}

// Client calls the Twelve Data REST API.
type Client struct {
	opts    Options
	logger  zerolog.Logger
	client  *http.Client
	limiter *rate.Limiter
	baseURL string
}

// New constructs a Twelve Data client. Both the price source and the currency
// converter share one instance so they draw from the same request budget.
func New(opts Options, logger zerolog.Logger) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.twelvedata.com"
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.RequestsPerMinute)), opts.RequestsPerMinute)
	}

	return &Client{
		opts:    opts,
		logger:  logger.With().Str("component", "twelvedata").Logger(),
		client:  &http.Client{Timeout: timeout},
		limiter: limiter,
		baseURL: baseURL,
	}
}

// Price returns the latest traded price for symbol.
func (c *Client) Price(ctx context.Context, symbol string) (decimal.Decimal, error) {
	if strings.TrimSpace(symbol) == "" {
		return decimal.Decimal{}, errors.New("symbol is required")
	}

	var res priceResponse
	if err := c.get(ctx, pricePath, url.Values{"symbol": {symbol}}, &res); err != nil {
		return decimal.Decimal{}, err
	}

	raw := strings.TrimSpace(res.Price)
	if raw == "" {
		return decimal.Decimal{}, ErrEmptyPrice
	}

	price, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("invalid price %q: %w", raw, err)
	}
	return price, nil
}

// ConversionRate returns how many units of to one unit of from buys.
func (c *Client) ConversionRate(ctx context.Context, from, to string) (decimal.Decimal, error) {
	symbol := fmt.Sprintf("%s/%s", from, to)

	var res conversionResponse
	if err := c.get(ctx, conversionPath, url.Values{"symbol": {symbol}}, &res); err != nil {
		return decimal.Decimal{}, err
	}

	if res.Rate == nil {
		return decimal.Decimal{}, fmt.Errorf("missing rate for %s", symbol)
	}
	if !res.Rate.IsPositive() {
		return decimal.Decimal{}, fmt.Errorf("non-positive rate %s for %s", res.Rate.String(), symbol)
	}
	return *res.Rate, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	if c.opts.APIKey == "" {
		return errors.New("twelvedata api key not configured")
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	// the api key must never appear in the URL; *url.Error quotes it
	endpoint := c.baseURL + path + "?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "apikey "+c.opts.APIKey)
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(c.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	} else {
		req.Header.Set("User-Agent", "quotealert/1.0")
	}

	started := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	c.logger.Debug().
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(started)).
		Msg("twelvedata response")

	if resp.StatusCode != http.StatusOK {
		return parseHTTPError(resp.StatusCode, payload)
	}

	// Twelve Data reports most failures as HTTP 200 with an error envelope.
	var envelope errorResponse
	if err := json.Unmarshal(payload, &envelope); err == nil && strings.EqualFold(envelope.Status, "error") {
		return apiError(envelope.Code, envelope)
	}

	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

type priceResponse struct {
	Price string `json:"price"`
}

type conversionResponse struct {
	Symbol    string           `json:"symbol"`
	Rate      *decimal.Decimal `json:"rate"`
	Timestamp int64            `json:"timestamp"`
}

type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

func apiError(code int, res errorResponse) error {
	if res.Message != "" {
		return fmt.Errorf("twelvedata api error (%d): %s", code, res.Message)
	}
	return fmt.Errorf("twelvedata api error (%d)", code)
}

func parseHTTPError(status int, payload []byte) error {
	var res errorResponse
	if err := json.Unmarshal(payload, &res); err == nil && res.Message != "" {
		return apiError(status, res)
	}
	if len(payload) > 0 {
		return fmt.Errorf("twelvedata api error (%d): %s", status, strings.TrimSpace(string(payload)))
	}
	return fmt.Errorf("twelvedata api error (%d)", status)
}
