package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// TickFunc is invoked once per interval.
type TickFunc func(ctx context.Context, bucket time.Time) error

// Options tune scheduler behaviour.
type Options struct {
	Interval time.Duration
	// AlignToStart fires on wall-clock multiples of Interval instead of
	// measuring the delay from the end of the previous tick.
	AlignToStart   bool
	ImmediateStart bool
	StartupDelay   time.Duration
}

// Scheduler drives sequential execution of polling ticks.
type Scheduler struct {
	opts   Options
	logger zerolog.Logger
	now    func() time.Time
}

// New constructs a Scheduler instance.
func New(opts Options, logger zerolog.Logger) *Scheduler {
	if opts.Interval <= 0 {
		panic("scheduler interval must be positive")
	}
	return &Scheduler{
		opts:   opts,
		logger: logger.With().Str("component", "scheduler").Logger(),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Run blocks, invoking tick every interval until ctx is cancelled. Ticks never
// overlap. A tick already in progress when ctx is cancelled runs to completion
// on a detached context, after which Run returns ctx.Err().
func (s *Scheduler) Run(ctx context.Context, tick TickFunc) error {
	if s.opts.StartupDelay > 0 {
		if err := s.sleep(ctx, s.opts.StartupDelay); err != nil {
			return err
		}
	}

	if s.opts.ImmediateStart {
		s.execute(ctx, tick, s.bucketStart(s.now()))
		if err := ctx.Err(); err != nil {
			return err
		}
	}

	for {
		next := s.nextTick(s.now())
		s.logger.Debug().Time("next_tick", next).Msg("waiting for next tick")
		if err := s.sleep(ctx, time.Until(next)); err != nil {
			return err
		}

		s.execute(ctx, tick, s.bucketStart(next))
		if err := ctx.Err(); err != nil {
			return err
		}
	}
}

func (s *Scheduler) execute(ctx context.Context, tick TickFunc, bucket time.Time) {
	s.logger.Debug().Time("bucket", bucket).Msg("executing scheduled tick")
	if err := tick(context.WithoutCancel(ctx), bucket); err != nil {
		s.logger.Error().Err(err).Time("bucket", bucket).Msg("tick execution failed")
	}
}

func (s *Scheduler) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (s *Scheduler) nextTick(now time.Time) time.Time {
	if !s.opts.AlignToStart {
		return now.Add(s.opts.Interval)
	}
	bucket := now.Truncate(s.opts.Interval)
	if !bucket.After(now) {
		bucket = bucket.Add(s.opts.Interval)
	}
	return bucket
}

func (s *Scheduler) bucketStart(t time.Time) time.Time {
	if !s.opts.AlignToStart {
		return t
	}
	return t.Truncate(s.opts.Interval)
}
