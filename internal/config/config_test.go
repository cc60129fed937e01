package config

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const minimalYAML = `
twelvedata:
  api_key: secret
alerting:
  email:
    smtp_host: smtp.example.com
    smtp_username: bot@example.com
    to_address: me@example.com
`

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalYAML))
	if err != nil {
		t.Fatalf("加载配置失败: %v", err)
	}

	if cfg.Scheduler.Interval != 10*time.Second {
		t.Fatalf("默认轮询间隔应为 10s, 实际 %s", cfg.Scheduler.Interval)
	}
	if cfg.Monitor.Cooldown != time.Hour {
		t.Fatalf("默认冷却时间应为 1h, 实际 %s", cfg.Monitor.Cooldown)
	}
	if cfg.Monitor.TargetCurrency != "USD" {
		t.Fatalf("unexpected target currency %q", cfg.Monitor.TargetCurrency)
	}
	if cfg.Alerting.Email.FromAddress != "bot@example.com" {
		t.Fatalf("from address should fall back to smtp username, got %q", cfg.Alerting.Email.FromAddress)
	}
	if !cfg.Scheduler.ImmediateStart {
		t.Fatal("immediate start should default to true")
	}
}

func TestLoadNumericSeconds(t *testing.T) {
	body := minimalYAML + `
scheduler:
  interval: 2.5
monitor:
  cooldown: 100000000000000
  target_currency: brl
`
	cfg, err := Load(writeConfig(t, body))
	if err != nil {
		t.Fatalf("加载配置失败: %v", err)
	}
	if cfg.Scheduler.Interval != 2500*time.Millisecond {
		t.Fatalf("interval 2.5 应解析为 2.5s, 实际 %s", cfg.Scheduler.Interval)
	}
	if cfg.Monitor.Cooldown != time.Duration(math.MaxInt64) {
		t.Fatalf("huge cooldown should saturate, got %s", cfg.Monitor.Cooldown)
	}
	if cfg.Monitor.TargetCurrency != "BRL" {
		t.Fatalf("currency should be upper-cased, got %q", cfg.Monitor.TargetCurrency)
	}
}

func TestLoadStringSeconds(t *testing.T) {
	t.Setenv("QUOTEALERT_MONITOR_COOLDOWN", "7200")
	body := minimalYAML + `
scheduler:
  interval: "2.5"
  startup_delay: 1m
`
	cfg, err := Load(writeConfig(t, body))
	if err != nil {
		t.Fatalf("字符串形式的秒数应被接受: %v", err)
	}
	if cfg.Monitor.Cooldown != 2*time.Hour {
		t.Fatalf("env cooldown 7200 应解析为 2h, 实际 %s", cfg.Monitor.Cooldown)
	}
	if cfg.Scheduler.Interval != 2500*time.Millisecond {
		t.Fatalf("quoted interval should be 2.5s, got %s", cfg.Scheduler.Interval)
	}
	if cfg.Scheduler.StartupDelay != time.Minute {
		t.Fatalf("durations with a unit must still parse, got %s", cfg.Scheduler.StartupDelay)
	}
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := LoadWithOverrides(writeConfig(t, minimalYAML), Overrides{
		"monitor.instrument":  "PETR4",
		"monitor.lower_bound": "22.5",
		"monitor.upper_bound": "30",
	})
	if err != nil {
		t.Fatalf("加载配置失败: %v", err)
	}
	if err := cfg.ValidateMonitor(); err != nil {
		t.Fatalf("monitor settings should be valid: %v", err)
	}
	if !cfg.Monitor.LowerBound.Equal(decimal.RequireFromString("22.5")) {
		t.Fatalf("lower bound not decoded: %s", cfg.Monitor.LowerBound)
	}
	if !cfg.Monitor.UpperBound.Equal(decimal.NewFromInt(30)) {
		t.Fatalf("upper bound not decoded: %s", cfg.Monitor.UpperBound)
	}
}

func TestLoadWithoutCredentials(t *testing.T) {
	// show and export only need the database
	cfg, err := Load(writeConfig(t, `
database:
  dsn: postgres://localhost/quotealert
`))
	if err != nil {
		t.Fatalf("缺少 api_key 与 SMTP 设置时加载不应失败: %v", err)
	}

	var cfgErr *Error
	if err := cfg.ValidatePolling(); !errors.As(err, &cfgErr) || cfgErr.Key != "twelvedata.api_key" {
		t.Fatalf("轮询前应要求 api_key, 实际 %v", err)
	}
}

func TestValidatePolling(t *testing.T) {
	cases := []struct {
		name    string
		body    string
		wantKey string
	}{
		{name: "complete", body: minimalYAML},
		{
			name: "email without host",
			body: `
twelvedata:
  api_key: secret
`,
			wantKey: "alerting.email.smtp_host",
		},
		{
			name: "invalid recipient",
			body: `
twelvedata:
  api_key: secret
alerting:
  email:
    smtp_host: smtp.example.com
    smtp_username: bot@example.com
    to_address: not-an-address
`,
			wantKey: "alerting.email.to_address",
		},
		{
			name: "telegram without chat",
			body: `
twelvedata:
  api_key: secret
alerting:
  email:
    enabled: false
  telegram:
    enabled: true
    bot_token: token
`,
			wantKey: "alerting.telegram.chat_id",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := Load(writeConfig(t, tc.body))
			if err != nil {
				t.Fatalf("加载配置失败: %v", err)
			}
			err = cfg.ValidatePolling()
			if tc.wantKey == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var cfgErr *Error
			if !errors.As(err, &cfgErr) || cfgErr.Key != tc.wantKey {
				t.Fatalf("期望 %s 配置错误, 实际 %v", tc.wantKey, err)
			}
		})
	}
}

func TestLoadExplicitMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("显式指定的配置文件不存在时应报错")
	}
}

func TestValidateMonitorBand(t *testing.T) {
	cases := []struct {
		name       string
		instrument string
		lower      int64
		upper      int64
		wantErr    bool
	}{
		{name: "valid", instrument: "AAPL", lower: 4, upper: 8},
		{name: "equal bounds", instrument: "AAPL", lower: 8, upper: 8, wantErr: true},
		{name: "inverted", instrument: "AAPL", lower: 9, upper: 8, wantErr: true},
		{name: "no instrument", lower: 4, upper: 8, wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := &Config{Monitor: MonitorConfig{
				Instrument: tc.instrument,
				LowerBound: decimal.NewFromInt(tc.lower),
				UpperBound: decimal.NewFromInt(tc.upper),
			}}
			err := cfg.ValidateMonitor()
			if tc.wantErr && err == nil {
				t.Fatal("expected error")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestSecondsToDuration(t *testing.T) {
	if got := SecondsToDuration(0.5); got != 500*time.Millisecond {
		t.Fatalf("0.5s => %s", got)
	}
	if got := SecondsToDuration(-1); got != 0 {
		t.Fatalf("negative seconds should clamp to 0, got %s", got)
	}
	if got := SecondsToDuration(math.Inf(1)); got != time.Duration(math.MaxInt64) {
		t.Fatalf("+Inf should saturate, got %s", got)
	}
}
