package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"quote-alerts/internal/alerting"
	"quote-alerts/internal/currency"
	"quote-alerts/internal/fetcher"
	"quote-alerts/internal/scheduler"
	"quote-alerts/internal/storage"
)

// Metrics receives engine observations. metrics.Recorder satisfies it.
type Metrics interface {
	RecordPoll(outcome string)
	RecordAlert(instrument, direction string)
	RecordSinkFailure()
	RecordPrice(instrument, currency string, price float64, class int)
	RecordLatency(op string, d time.Duration)
}

type noopMetrics struct{}

func (noopMetrics) RecordPoll(string) {}
func (noopMetrics) RecordAlert(string, string) {}
func (noopMetrics) RecordSinkFailure() {}
func (noopMetrics) RecordPrice(string, string, float64, int) {}
func (noopMetrics) RecordLatency(string, time.Duration) {}

// State is the hysteresis memory carried between polls. The zero value is the
// initial state: Inside, no alert ever sent.
type State struct {
	LastClassification Classification
	LastEventAt        time.Time
}

// Options configure a single-instrument engine.
type Options struct {
	Instrument string
	Band       Band
	// Cooldown is the minimum gap between two alerts of the same classification.
	Cooldown time.Duration
	// SourceCurrency is the currency the source is expected to quote in. When it
	// differs from the band currency the price and the rate are fetched in parallel.
	SourceCurrency string
	// ResetOnFailure forgets the last classification when a poll fails.
	ResetOnFailure bool
	// SinkTimeout bounds one alert delivery across all channels. Zero means
	// only the channels' own timeouts apply.
	SinkTimeout time.Duration
	Now         func() time.Time

	Alerts  storage.AlertStore
	Locker  storage.AdvisoryLocker
	LockKey int64
	Metrics Metrics
}

// Engine polls one instrument and emits Buy/Sell alerts when it leaves the band.
type Engine struct {
	opts      Options
	scheduler *scheduler.Scheduler
	source    fetcher.PriceSource
	converter currency.Converter
	notifier  alerting.Notifier
	metrics   Metrics
	channels  []string
	logger    zerolog.Logger

	mu    sync.Mutex
	state State
}

// New constructs the alerting engine. sched may be nil when only Poll is used.
func New(opts Options, sched *scheduler.Scheduler, source fetcher.PriceSource, converter currency.Converter, notifier alerting.Notifier, logger zerolog.Logger) (*Engine, error) {
	opts.Instrument = strings.TrimSpace(opts.Instrument)
	if opts.Instrument == "" {
		return nil, errors.New("instrument is required")
	}
	if !opts.Band.Lower.LessThan(opts.Band.Upper) {
		return nil, fmt.Errorf("invalid band [%s, %s]", opts.Band.Lower, opts.Band.Upper)
	}
	if source == nil {
		return nil, errors.New("price source is required")
	}
	if converter == nil {
		return nil, errors.New("currency converter is required")
	}
	if opts.Cooldown < 0 {
		opts.Cooldown = 0
	}
	opts.SourceCurrency = strings.ToUpper(strings.TrimSpace(opts.SourceCurrency))
	if opts.Now == nil {
		opts.Now = time.Now
	}

	logger = logger.With().Str("component", "engine").Str("instrument", opts.Instrument).Logger()
	if notifier == nil {
		notifier = alerting.NewLogNotifier(logger)
	}

	var m Metrics = noopMetrics{}
	if opts.Metrics != nil {
		m = opts.Metrics
	}

	return &Engine{
		opts:      opts,
		scheduler: sched,
		source:    source,
		converter: converter,
		notifier:  notifier,
		metrics:   m,
		channels:  channelsOf(notifier),
		logger:    logger,
	}, nil
}

func channelsOf(n alerting.Notifier) []string {
	switch v := n.(type) {
	case interface{ Channels() []string }:
		return v.Channels()
	case alerting.Named:
		return []string{v.Channel()}
	default:
		return nil
	}
}

// State returns a copy of the current hysteresis state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Run drives Poll on every scheduler tick until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	if e.scheduler == nil {
		return fmt.Errorf("scheduler not configured")
	}
	return e.scheduler.Run(ctx, func(ctx context.Context, _ time.Time) error {
		return e.Poll(ctx)
	})
}

// Poll runs one fetch, normalize, classify and decide cycle. A returned error is
// a *fetcher.SourceError or *currency.ConversionError and leaves the state
// unchanged. Delivery failures are logged only.
func (e *Engine) Poll(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	unlock, proceed, err := e.acquireLock(ctx)
	if err != nil {
		e.metrics.RecordPoll("lock_error")
		return err
	}
	if !proceed {
		e.logger.Debug().Msg("skip poll because advisory lock held elsewhere")
		e.metrics.RecordPoll("skipped")
		return nil
	}
	if unlock != nil {
		defer unlock()
	}

	price, observedAt, err := e.observe(ctx)
	if err != nil {
		e.fail(err)
		return err
	}

	class := e.opts.Band.Classify(price)
	now := e.opts.Now()
	if observedAt.IsZero() {
		observedAt = now.UTC()
	}
	last := e.state
	fire := class != Inside &&
		(class != last.LastClassification || now.After(last.LastEventAt.Add(e.opts.Cooldown)))

	e.state.LastClassification = class
	if fire {
		e.state.LastEventAt = now
	}

	f, _ := price.Float64()
	e.metrics.RecordPrice(e.opts.Instrument, e.opts.Band.Currency, f, int(class))
	e.metrics.RecordPoll("ok")

	logEvt := e.logger.Debug()
	if fire {
		logEvt = e.logger.Info()
	}
	logEvt.Str("price", price.String()).
		Str("currency", e.opts.Band.Currency).
		Str("classification", class.String()).
		Bool("alert", fire).
		Msg("poll complete")

	if fire {
		e.emit(ctx, class, price, observedAt)
	}
	return nil
}

func (e *Engine) fail(err error) {
	outcome := "error"
	var srcErr *fetcher.SourceError
	var convErr *currency.ConversionError
	switch {
	case errors.As(err, &srcErr):
		outcome = "source_error"
	case errors.As(err, &convErr):
		outcome = "conversion_error"
	}
	e.metrics.RecordPoll(outcome)

	if e.opts.ResetOnFailure {
		e.state.LastClassification = Inside
	}
}

// observe returns the latest price expressed in the band currency.
func (e *Engine) observe(ctx context.Context) (decimal.Decimal, time.Time, error) {
	target := e.opts.Band.Currency
	hint := e.opts.SourceCurrency

	var (
		sample fetcher.Sample
		rate   decimal.Decimal
		haveRt bool
	)

	if hint != "" && !currency.Same(hint, target) {
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			s, err := e.fetch(gctx)
			sample = s
			return err
		})
		g.Go(func() error {
			r, err := e.rate(gctx, hint, target)
			rate = r
			return err
		})
		if err := g.Wait(); err != nil {
			return decimal.Decimal{}, time.Time{}, err
		}
		haveRt = true
	} else {
		s, err := e.fetch(ctx)
		if err != nil {
			return decimal.Decimal{}, time.Time{}, err
		}
		sample = s
	}

	from := sample.Currency
	if strings.TrimSpace(from) == "" {
		from = hint
		if from == "" {
			from = target
		}
	}

	switch {
	case currency.Same(from, target):
		rate = decimal.NewFromInt(1)
	case haveRt && currency.Same(from, hint):
		// fetched alongside the price
	default:
		r, err := e.rate(ctx, from, target)
		if err != nil {
			return decimal.Decimal{}, time.Time{}, err
		}
		rate = r
	}

	return sample.Value.Mul(rate), sample.ObservedAt, nil
}

func (e *Engine) fetch(ctx context.Context) (fetcher.Sample, error) {
	start := time.Now()
	sample, err := e.source.FetchPrice(ctx, e.opts.Instrument)
	e.metrics.RecordLatency("price", time.Since(start))
	if err != nil {
		var srcErr *fetcher.SourceError
		if errors.As(err, &srcErr) {
			return fetcher.Sample{}, err
		}
		return fetcher.Sample{}, &fetcher.SourceError{Instrument: e.opts.Instrument, Err: err}
	}
	return sample, nil
}

func (e *Engine) rate(ctx context.Context, from, to string) (decimal.Decimal, error) {
	start := time.Now()
	rate, err := e.converter.GetRate(ctx, from, to)
	e.metrics.RecordLatency("rate", time.Since(start))
	if err != nil {
		var convErr *currency.ConversionError
		if errors.As(err, &convErr) {
			return decimal.Decimal{}, err
		}
		return decimal.Decimal{}, &currency.ConversionError{From: from, To: to, Err: err}
	}
	return rate, nil
}

func (e *Engine) emit(ctx context.Context, class Classification, price decimal.Decimal, observedAt time.Time) {
	direction := alerting.Buy
	if class == AboveUpper {
		direction = alerting.Sell
	}

	event := alerting.Event{
		Direction:  direction,
		Instrument: e.opts.Instrument,
		Price:      price,
		Currency:   e.opts.Band.Currency,
		LowerBound: e.opts.Band.Lower,
		UpperBound: e.opts.Band.Upper,
		ObservedAt: observedAt,
	}
	e.metrics.RecordAlert(e.opts.Instrument, string(direction))

	if e.opts.Alerts != nil {
		record := storage.AlertRecord{
			Instrument: event.Instrument,
			Direction:  string(direction),
			Price:      price,
			Currency:   event.Currency,
			LowerBound: event.LowerBound,
			UpperBound: event.UpperBound,
			Channels:   e.channels,
			CreatedAt:  observedAt,
		}
		if _, err := e.opts.Alerts.InsertAlert(ctx, record); err != nil {
			e.logger.Error().Err(err).Msg("failed to persist alert record")
		}
	}

	notifyCtx := ctx
	if e.opts.SinkTimeout > 0 {
		var cancel context.CancelFunc
		notifyCtx, cancel = context.WithTimeout(ctx, e.opts.SinkTimeout)
		defer cancel()
	}
	if err := e.notifier.Notify(notifyCtx, event); err != nil {
		e.metrics.RecordSinkFailure()
		e.logger.Error().Err(err).Str("direction", string(direction)).Msg("failed to dispatch alert")
	}
}

func (e *Engine) acquireLock(ctx context.Context) (func(), bool, error) {
	if e.opts.LockKey == 0 || e.opts.Locker == nil {
		return nil, true, nil
	}
	unlock, acquired, err := e.opts.Locker.TryAdvisoryLock(ctx, e.opts.LockKey)
	if err != nil {
		return nil, false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}
