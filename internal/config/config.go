package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"quote-alerts/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Logging    logging.Config   `mapstructure:"logging"`
	Monitor    MonitorConfig    `mapstructure:"monitor"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
	TwelveData TwelveDataConfig `mapstructure:"twelvedata"`
	Currency   CurrencyConfig   `mapstructure:"currency"`
	Alerting   AlertingConfig   `mapstructure:"alerting"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Export     ExportConfig     `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// MonitorConfig describes the tracked instrument and its alert band.
type MonitorConfig struct {
	Instrument     string          `mapstructure:"instrument"`
	LowerBound     decimal.Decimal `mapstructure:"lower_bound"`
	UpperBound     decimal.Decimal `mapstructure:"upper_bound"`
	TargetCurrency string          `mapstructure:"target_currency" validate:"required,alpha,len=3"`
	SourceCurrency string          `mapstructure:"source_currency" validate:"omitempty,alpha,len=3"`
	Cooldown       time.Duration   `mapstructure:"cooldown" validate:"gte=0"`
	ResetOnFailure bool            `mapstructure:"reset_on_failure"`
}

// SchedulerConfig governs sampling cadence.
type SchedulerConfig struct {
	Interval        time.Duration `mapstructure:"interval" validate:"gt=0"`
	AlignToBucket   bool          `mapstructure:"align_to_bucket"`
	ImmediateStart  bool          `mapstructure:"immediate_start"`
	AdvisoryLockKey int64         `mapstructure:"advisory_lock_key"`
	StartupDelay    time.Duration `mapstructure:"startup_delay" validate:"gte=0"`
}

// TwelveDataConfig captures quote API connectivity.
type TwelveDataConfig struct {
	APIKey            string        `mapstructure:"api_key"`
	BaseURL           string        `mapstructure:"base_url" validate:"required,url"`
	QuoteCurrency     string        `mapstructure:"quote_currency" validate:"required,alpha,len=3"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute" validate:"gte=0"`
	UserAgent         string        `mapstructure:"user_agent"`
}

// CurrencyConfig controls conversion-rate caching.
type CurrencyConfig struct {
	CacheTTL time.Duration `mapstructure:"cache_ttl" validate:"gte=0"`
	Redis    RedisConfig   `mapstructure:"redis"`
}

// RedisConfig points the rate cache at a shared Redis instance.
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr" validate:"required_if=Enabled true"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// AlertingConfig defines alert routing.
type AlertingConfig struct {
	Timeout  time.Duration  `mapstructure:"timeout"`
	Email    EmailConfig    `mapstructure:"email"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// EmailConfig 描述 SMTP 告警参数。
type EmailConfig struct {
	Enabled          bool   `mapstructure:"enabled"`
	SMTPHost         string `mapstructure:"smtp_host"`
	SMTPPort         int    `mapstructure:"smtp_port" validate:"gt=0,lte=65535"`
	SMTPUsername     string `mapstructure:"smtp_username"`
	SMTPPassword     string `mapstructure:"smtp_password"`
	SMTPSSL          bool   `mapstructure:"smtp_ssl"`
	FromName         string `mapstructure:"from_name"`
	FromAddress      string `mapstructure:"from_address"`
	ToAddress        string `mapstructure:"to_address"`
	RecipientName    string `mapstructure:"recipient_name"`
	BuySubject       string `mapstructure:"buy_subject"`
	SellSubject      string `mapstructure:"sell_subject"`
	BuyTemplatePath  string `mapstructure:"buy_template_path"`
	SellTemplatePath string `mapstructure:"sell_template_path"`
}

// TelegramConfig 描述 Telegram 告警参数。
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity for the alert audit log.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// MetricsConfig exposes the Prometheus endpoint.
type MetricsConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	ListenAddr string `mapstructure:"listen_addr" validate:"required_if=Enabled true"`
	Path       string `mapstructure:"path"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points" validate:"gt=0"`
}

// Overrides are values supplied on the command line. They win over file and env.
type Overrides map[string]any

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	return LoadWithOverrides(path, nil)
}

// LoadWithOverrides is Load with explicit key overrides applied last.
func LoadWithOverrides(path string, overrides Overrides) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("QUOTEALERT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
	}

	if err := readConfig(v, path != ""); err != nil {
		return nil, err
	}

	for key, value := range overrides {
		v.Set(key, value)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, &Error{Key: "config", Err: fmt.Errorf("unmarshal config: %w", err)}
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper, explicit bool) error {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) && !explicit {
			return nil
		}
		return &Error{Key: "config", Err: fmt.Errorf("read config: %w", err)}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "quotealert")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("monitor.instrument", "")
	v.SetDefault("monitor.lower_bound", "")
	v.SetDefault("monitor.upper_bound", "")
	v.SetDefault("monitor.source_currency", "")
	v.SetDefault("monitor.target_currency", "USD")
	v.SetDefault("monitor.cooldown", "1h")
	v.SetDefault("monitor.reset_on_failure", false)

	v.SetDefault("scheduler.interval", "10s")
	v.SetDefault("scheduler.align_to_bucket", false)
	v.SetDefault("scheduler.immediate_start", true)
	v.SetDefault("scheduler.advisory_lock_key", int64(0))
	v.SetDefault("scheduler.startup_delay", "0s")

	v.SetDefault("twelvedata.api_key", "")
	v.SetDefault("twelvedata.base_url", "https://api.twelvedata.com")
	v.SetDefault("twelvedata.quote_currency", "USD")
	v.SetDefault("twelvedata.request_timeout", "10s")
	v.SetDefault("twelvedata.requests_per_minute", 8)
	v.SetDefault("twelvedata.user_agent", "quotealert/1.0")

	v.SetDefault("currency.cache_ttl", "0s")
	v.SetDefault("currency.redis.enabled", false)
	v.SetDefault("currency.redis.prefix", "quotealert")

	v.SetDefault("alerting.timeout", "30s")
	v.SetDefault("alerting.email.enabled", true)
	v.SetDefault("alerting.email.smtp_host", "")
	v.SetDefault("alerting.email.smtp_port", 587)
	v.SetDefault("alerting.email.smtp_username", "")
	v.SetDefault("alerting.email.smtp_password", "")
	v.SetDefault("alerting.email.to_address", "")
	v.SetDefault("alerting.email.smtp_ssl", true)
	v.SetDefault("alerting.email.buy_subject", "Buy a stock!")
	v.SetDefault("alerting.email.sell_subject", "Sell a stock!")
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.bot_token", "")
	v.SetDefault("alerting.telegram.chat_id", "")
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")

	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.conn_max_lifetime", "30m")

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.listen_addr", ":9102")
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("export.max_data_points", 10000)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			secondsToDurationHookFunc(),
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
			stringToDecimalHookFunc(),
		)
	}
}
