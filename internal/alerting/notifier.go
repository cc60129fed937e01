package alerting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Direction is the action an alert suggests.
type Direction string

const (
	// Buy is raised when the price drops below the lower bound.
	Buy Direction = "buy"
	// Sell is raised when the price rises above the upper bound.
	Sell Direction = "sell"
)

// Event 封装告警上下文。
type Event struct {
	Direction  Direction
	Instrument string
	Price      decimal.Decimal
	Currency   string
	LowerBound decimal.Decimal
	UpperBound decimal.Decimal
	ObservedAt time.Time
}

// Notifier 定义告警输送接口。
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

// SinkError reports a failed delivery on one channel.
type SinkError struct {
	Channel string
	Err     error
}

func (e *SinkError) Error() string {
	return fmt.Sprintf("deliver alert via %s: %v", e.Channel, e.Err)
}

func (e *SinkError) Unwrap() error { return e.Err }

// Named is implemented by notifiers that report a channel name.
type Named interface {
	Channel() string
}

// Multi fans an event out to every notifier and joins their errors.
type Multi struct {
	notifiers []Notifier
}

// NewMulti builds a fan-out notifier. Nil entries are skipped.
func NewMulti(notifiers ...Notifier) *Multi {
	m := &Multi{}
	for _, n := range notifiers {
		if n != nil {
			m.notifiers = append(m.notifiers, n)
		}
	}
	return m
}

// Notify delivers to all notifiers, even when some of them fail.
func (m *Multi) Notify(ctx context.Context, event Event) error {
	var errs []error
	for _, n := range m.notifiers {
		if err := n.Notify(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Channels lists the channel names of the wrapped notifiers.
func (m *Multi) Channels() []string {
	names := make([]string, 0, len(m.notifiers))
	for _, n := range m.notifiers {
		if named, ok := n.(Named); ok {
			names = append(names, named.Channel())
		}
	}
	return names
}

// Len reports how many notifiers are wired.
func (m *Multi) Len() int {
	return len(m.notifiers)
}

// LogNotifier writes alerts to the log. It is the fallback when no delivery
// channel is enabled.
type LogNotifier struct {
	logger zerolog.Logger
}

func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With().Str("component", "alert_log").Logger()}
}

func (n *LogNotifier) Notify(ctx context.Context, event Event) error {
	n.logger.Warn().
		Str("direction", string(event.Direction)).
		Str("instrument", event.Instrument).
		Str("price", Money(event.Price, event.Currency)).
		Msg("price alert")
	return nil
}

func (n *LogNotifier) Channel() string { return "log" }

var (
	_ Notifier = (*Multi)(nil)
	_ Notifier = (*LogNotifier)(nil)
)
