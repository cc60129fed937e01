package config

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/shopspring/decimal"
)

var (
	durationType = reflect.TypeOf(time.Duration(0))
	decimalType  = reflect.TypeOf(decimal.Decimal{})
)

// secondsToDurationHookFunc lets plain numbers such as `cooldown: 3600`,
// `interval: "2.5"` or QUOTEALERT_MONITOR_COOLDOWN=3600 mean seconds. Strings with
// a unit ("1h") are left to StringToTimeDurationHookFunc.
func secondsToDurationHookFunc() mapstructure.DecodeHookFuncType {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if to != durationType || from == durationType {
			return data, nil
		}

		var seconds float64
		switch v := data.(type) {
		case int:
			seconds = float64(v)
		case int32:
			seconds = float64(v)
		case int64:
			seconds = float64(v)
		case uint:
			seconds = float64(v)
		case uint64:
			seconds = float64(v)
		case float32:
			seconds = float64(v)
		case float64:
			seconds = v
		case string:
			parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				return data, nil
			}
			seconds = parsed
		default:
			return data, nil
		}
		return SecondsToDuration(seconds), nil
	}
}

// SecondsToDuration converts fractional seconds, saturating at the largest
// representable duration so an "infinite" cooldown stays positive.
func SecondsToDuration(seconds float64) time.Duration {
	if seconds <= 0 || math.IsNaN(seconds) {
		return 0
	}
	if seconds >= float64(math.MaxInt64)/float64(time.Second) {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(seconds * float64(time.Second))
}

func stringToDecimalHookFunc() mapstructure.DecodeHookFuncType {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if to != decimalType {
			return data, nil
		}

		switch v := data.(type) {
		case decimal.Decimal:
			return v, nil
		case string:
			trimmed := strings.TrimSpace(v)
			if trimmed == "" {
				return decimal.Zero, nil
			}
			d, err := decimal.NewFromString(trimmed)
			if err != nil {
				return nil, fmt.Errorf("invalid decimal %q: %w", v, err)
			}
			return d, nil
		case float64:
			return decimal.NewFromFloat(v), nil
		case float32:
			return decimal.NewFromFloat32(v), nil
		case int:
			return decimal.NewFromInt(int64(v)), nil
		case int64:
			return decimal.NewFromInt(v), nil
		default:
			return data, nil
		}
	}
}
