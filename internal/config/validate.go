package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("mapstructure"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Error reports a missing or invalid setting. It is fatal: the process must not
// enter the poll loop with a configuration that produced one.
type Error struct {
	Key string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("config: %s: %v", e.Key, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func invalid(key, format string, args ...any) error {
	return &Error{Key: key, Err: fmt.Errorf(format, args...)}
}

func (c *Config) normalize() {
	c.Monitor.Instrument = strings.TrimSpace(c.Monitor.Instrument)
	c.Monitor.TargetCurrency = strings.ToUpper(strings.TrimSpace(c.Monitor.TargetCurrency))
	c.Monitor.SourceCurrency = strings.ToUpper(strings.TrimSpace(c.Monitor.SourceCurrency))
	c.TwelveData.QuoteCurrency = strings.ToUpper(strings.TrimSpace(c.TwelveData.QuoteCurrency))

	if c.Alerting.Email.FromAddress == "" {
		c.Alerting.Email.FromAddress = c.Alerting.Email.SMTPUsername
	}
}

// Validate performs sanity checks on the configuration values.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			key := strings.TrimPrefix(fe.Namespace(), "Config.")
			if fe.Param() != "" {
				return invalid(key, "failed %q (%s) validation", fe.Tag(), fe.Param())
			}
			return invalid(key, "failed %q validation", fe.Tag())
		}
		return &Error{Key: "config", Err: err}
	}
	return nil
}

// ValidateMonitor checks the settings only the poll loop needs: the instrument
// and a well-formed band.
func (c *Config) ValidateMonitor() error {
	if c.Monitor.Instrument == "" {
		return invalid("monitor.instrument", "is required")
	}
	if !c.Monitor.LowerBound.LessThan(c.Monitor.UpperBound) {
		return invalid("monitor.lower_bound", "must be less than upper bound (%s >= %s)",
			c.Monitor.LowerBound.String(), c.Monitor.UpperBound.String())
	}
	return nil
}

type requirement struct {
	key   string
	value string
	tag   string
}

// ValidatePolling checks the credentials needed to fetch prices and deliver
// alerts. show and export only read the database and skip it.
func (c *Config) ValidatePolling() error {
	reqs := []requirement{
		{key: "twelvedata.api_key", value: c.TwelveData.APIKey, tag: "required"},
	}

	if email := c.Alerting.Email; email.Enabled {
		reqs = append(reqs,
			requirement{key: "alerting.email.smtp_host", value: email.SMTPHost, tag: "required"},
			requirement{key: "alerting.email.to_address", value: email.ToAddress, tag: "required,email"},
			requirement{key: "alerting.email.from_address", value: email.FromAddress, tag: "required,email"},
		)
	}
	if tg := c.Alerting.Telegram; tg.Enabled {
		reqs = append(reqs,
			requirement{key: "alerting.telegram.bot_token", value: tg.BotToken, tag: "required"},
			requirement{key: "alerting.telegram.chat_id", value: tg.ChatID, tag: "required"},
		)
	}

	for _, r := range reqs {
		if err := validate.Var(strings.TrimSpace(r.value), r.tag); err != nil {
			var fieldErrs validator.ValidationErrors
			if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
				return invalid(r.key, "failed %q validation", fieldErrs[0].Tag())
			}
			return &Error{Key: r.key, Err: err}
		}
	}
	return nil
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
