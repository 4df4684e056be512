package scheduler

import (
	"context"
	"errors"
	"time"
)

// DefaultTickResolution is the pause between the end of one tick and the
// start of the next.
const DefaultTickResolution = time.Second

// Target is driven once per tick.
type Target interface {
	Tick(ctx context.Context, now time.Time) error
}

// Observer is told the outcome of every tick.
type Observer func(at time.Time, err error)

type Scheduler struct {
	target         Target
	tickResolution time.Duration
	now            func() time.Time
	observe        Observer
}

type Option func(*Scheduler)

func WithTickResolution(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.tickResolution = d
		}
	}
}

func WithNow(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

func WithObserver(observe Observer) Option {
	return func(s *Scheduler) {
		if observe != nil {
			s.observe = observe
		}
	}
}

func New(target Target, opts ...Option) *Scheduler {
	s := &Scheduler{
		target:         target,
		tickResolution: DefaultTickResolution,
		now:            time.Now,
		observe:        func(time.Time, error) {},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Scheduler) TickResolution() time.Duration {
	return s.tickResolution
}

// Run ticks immediately and then again tickResolution after each tick
// completes, so a slow tick delays the next one instead of overlapping it.
// It returns nil once ctx is done and the first error a tick reports
// otherwise.
func (s *Scheduler) Run(ctx context.Context) error {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
			if ctx.Err() != nil {
				return nil
			}
			if err := s.tick(ctx, s.now()); err != nil {
				return err
			}
			timer.Reset(s.tickResolution)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context, now time.Time) error {
	err := s.target.Tick(ctx, now)
	if err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		return nil
	}
	s.observe(now, err)
	return err
}
