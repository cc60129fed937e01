package twelvedata

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

func newTestClient(url string) *Client {
	return New(Options{BaseURL: url, APIKey: "key", Timeout: time.Second, UserAgent: "test"}, zerolog.Nop())
}

func TestPriceSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != pricePath {
			t.Fatalf("路径应为 /price, 实际 %s", r.URL.Path)
		}
		if r.URL.Query().Get("symbol") != "AAPL" || r.URL.Query().Has("apikey") {
			t.Fatalf("unexpected query %s", r.URL.RawQuery)
		}
		if got := r.Header.Get("Authorization"); got != "apikey key" {
			t.Fatalf("api key 应通过 Authorization 头发送, 实际 %q", got)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"price": "187.25000"})
	}))
	defer srv.Close()

	price, err := newTestClient(srv.URL).Price(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("成功响应不应报错: %v", err)
	}
	if !price.Equal(decimal.RequireFromString("187.25")) {
		t.Fatalf("期望 187.25, 实际 %s", price)
	}
}

func TestPriceEmptyIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"price": ""})
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Price(context.Background(), "AAPL")
	if !errors.Is(err, ErrEmptyPrice) {
		t.Fatalf("空价格应返回 ErrEmptyPrice, 实际 %v", err)
	}
}

func TestPriceMalformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"price": "12,5"})
	}))
	defer srv.Close()

	if _, err := newTestClient(srv.URL).Price(context.Background(), "AAPL"); err == nil {
		t.Fatal("非法价格格式应报错")
	}
}

func TestErrorEnvelopeOn200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"code": 401, "message": "invalid api key", "status": "error"})
	}))
	defer srv.Close()

	if _, err := newTestClient(srv.URL).Price(context.Background(), "AAPL"); err == nil {
		t.Fatal("status=error 应报错")
	}
}

func TestHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	if _, err := newTestClient(srv.URL).ConversionRate(context.Background(), "BRL", "USD"); err == nil {
		t.Fatal("HTTP 429 应返回错误")
	}
}

func TestConversionRate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != conversionPath {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("symbol"); got != "BRL/USD" {
			t.Fatalf("symbol 应为 BRL/USD, 实际 %s", got)
		}
		_, _ = w.Write([]byte(`{"symbol":"BRL/USD","rate":0.18,"amount":0.18,"timestamp":1700000000}`))
	}))
	defer srv.Close()

	rate, err := newTestClient(srv.URL).ConversionRate(context.Background(), "BRL", "USD")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !rate.Equal(decimal.RequireFromString("0.18")) {
		t.Fatalf("期望 0.18, 实际 %s", rate)
	}
}

func TestMissingAPIKey(t *testing.T) {
	c := New(Options{BaseURL: "http://127.0.0.1:0"}, zerolog.Nop())
	if _, err := c.Price(context.Background(), "AAPL"); err == nil {
		t.Fatal("未配置 api key 时应报错")
	}
}

func TestTransportErrorHidesAPIKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := srv.URL
	srv.Close()

	c := New(Options{BaseURL: addr, APIKey: "SUPERSECRET", Timeout: time.Second}, zerolog.Nop())
	_, err := c.Price(context.Background(), "AAPL")
	if err == nil {
		t.Fatal("连接失败应返回错误")
	}
	if strings.Contains(err.Error(), "SUPERSECRET") {
		t.Fatalf("错误信息泄露了 api key: %v", err)
	}

	_, err = c.ConversionRate(context.Background(), "BRL", "USD")
	if err == nil || strings.Contains(err.Error(), "SUPERSECRET") {
		t.Fatalf("conversion error must not carry the api key: %v", err)
	}
}

func TestRequestsPerMinuteBudget(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		_ = json.NewEncoder(w).Encode(map[string]string{"price": "1"})
	}))
	defer srv.Close()

	c := New(Options{BaseURL: srv.URL, APIKey: "key", Timeout: time.Second, RequestsPerMinute: 1}, zerolog.Nop())

	if _, err := c.Price(context.Background(), "AAPL"); err != nil {
		t.Fatalf("first call: %v", err)
	}

	// the next token is a minute away, far past this deadline
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	start := time.Now()
	if _, err := c.Price(ctx, "AAPL"); err == nil {
		t.Fatal("超出每分钟请求预算时第二次请求应等待并失败")
	}
	if time.Since(start) > time.Second {
		t.Fatal("limiter should give up as soon as the deadline cannot be met")
	}
	if got := atomic.LoadInt32(&hits); got != 1 {
		t.Fatalf("预算耗尽后不应再请求上游, 实际 %d 次", got)
	}
}
