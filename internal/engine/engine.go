// Package engine drives checks, sources and actions through the per-tick
// state machine: refresh due sources, run due checks, decay stale messages
// once per stale period and dispatch the aggregate to filtered actions.
package engine

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pingsantohq/subpub/internal/config"
	"github.com/pingsantohq/subpub/internal/metrics"
	"github.com/pingsantohq/subpub/internal/plugin"
	"github.com/pingsantohq/subpub/pkg/types"
)

type Engine struct {
	logger   *zap.Logger
	recorder metrics.EngineRecorder
	now      func() time.Time

	sources *SourceCache
	checks  []*Check
	actions []*Action

	mu   sync.RWMutex
	last Snapshot
}

// Snapshot is the outcome of the most recent tick.
type Snapshot struct {
	At       time.Time       `json:"at"`
	Messages []types.Message `json:"messages"`
}

type Option func(*Engine)

func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

func WithMetrics(recorder metrics.EngineRecorder) Option {
	return func(e *Engine) {
		if recorder != nil {
			e.recorder = recorder
		}
	}
}

// WithNow sets the clock handed to plugins.
func WithNow(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// New builds every configured check and action. Any failure is a
// configuration error.
func New(cfg config.Config, registry *plugin.Registry, opts ...Option) (*Engine, error) {
	e := &Engine{
		logger:   zap.NewNop(),
		recorder: metrics.NoopEngineRecorder{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	deps := plugin.Dependencies{
		Logger:   e.logger,
		Registry: registry,
		Now:      e.now,
	}
	e.sources = NewSourceCache(registry, deps)

	for _, spec := range cfg.Checks {
		c, err := NewCheck(spec.Type, cfg.Effective(spec), registry, e.sources, deps)
		if err != nil {
			e.Close()
			return nil, err
		}
		e.logger.Info("loaded check", zapIdentifier(c.Identifier), zap.Duration("interval", c.Interval))
		e.checks = append(e.checks, c)
	}
	for _, spec := range cfg.Actions {
		a, err := NewAction(spec.Type, cfg.Effective(spec), registry, deps)
		if err != nil {
			e.Close()
			return nil, err
		}
		e.logger.Info("loaded action", zapIdentifier(a.Identifier), zap.Stringer("id", a.ID), zap.Int("filter_groups", a.Groups()))
		e.actions = append(e.actions, a)
	}
	e.logger.Info("engine ready",
		zap.Int("checks", len(e.checks)),
		zap.Int("actions", len(e.actions)),
		zap.Int("sources", e.sources.Len()),
	)
	return e, nil
}

// Tick performs one full pass at now. Only configuration errors and context
// cancellation are returned; plugin run failures are logged, counted and
// retried on the next tick.
func (e *Engine) Tick(ctx context.Context, now time.Time) error {
	var aggregate []types.Message
	failing := 0
	for _, c := range e.checks {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := e.stepCheck(ctx, c, now); err != nil {
			return err
		}
		if c.Failing {
			failing++
		}
		aggregate = append(aggregate, c.Messages()...)
	}

	for _, a := range e.actions {
		if err := ctx.Err(); err != nil {
			return err
		}
		matched := a.Filter(aggregate)
		e.recorder.AddDispatched(len(matched))
		if err := a.Run(ctx, cloneMessages(matched)); err != nil {
			if config.IsConfigError(err) {
				return err
			}
			e.recorder.IncActionFailures()
			e.logger.Warn("action run failed", zapIdentifier(a.Identifier), zap.Stringer("id", a.ID), zap.Error(err))
		}
	}

	e.recorder.ObserveFailingChecks(failing)
	e.recorder.ObserveTick(now, len(aggregate))

	e.mu.Lock()
	e.last = Snapshot{At: now, Messages: aggregate}
	e.mu.Unlock()
	return nil
}

func (e *Engine) stepCheck(ctx context.Context, c *Check, now time.Time) error {
	log := e.logger.With(zap.String("check", c.Identifier))
	switch {
	case c.Due(now):
		for _, src := range c.Sources() {
			ran, err := src.Refresh(ctx, now)
			if err != nil {
				if config.IsConfigError(err) {
					return err
				}
				e.recorder.IncSourceFailures()
				log.Warn("source run failed", zapIdentifier(src.Identifier), zap.Error(err))
				continue
			}
			if ran {
				log.Debug("source refreshed", zapIdentifier(src.Identifier))
			}
		}

		e.recorder.IncCheckRuns()
		raw, err := c.impl.Run(ctx)
		if err != nil {
			if config.IsConfigError(err) {
				return err
			}
			c.Failing = true
			e.recorder.IncCheckFailures()
			log.Warn("check run failed", zap.Error(err))
			return nil
		}
		c.Failing = false
		c.Degraded = false
		c.LastCheck = now
		if err := c.pipeline.Update(raw); err != nil {
			return err
		}
		log.Debug("check updated", zap.Int("messages", c.pipeline.Len()))
	case !c.Degraded:
		if dropped := c.pipeline.Degrade(); dropped > 0 {
			e.recorder.AddExpired(dropped)
			log.Debug("messages expired", zap.Int("dropped", dropped))
		}
		c.Degraded = true
	}
	return nil
}

// Snapshot returns the aggregate produced by the most recent tick.
func (e *Engine) Snapshot() Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return Snapshot{At: e.last.At, Messages: cloneMessages(e.last.Messages)}
}

func (e *Engine) Checks() []*Check {
	return append([]*Check(nil), e.checks...)
}

func (e *Engine) Actions() []*Action {
	return append([]*Action(nil), e.actions...)
}

func (e *Engine) Sources() []*Source {
	return e.sources.All()
}

// Close releases sources, checks and actions that hold resources.
func (e *Engine) Close() error {
	errs := []error{e.sources.Close()}
	for _, c := range e.checks {
		if closer, ok := c.impl.(io.Closer); ok {
			errs = append(errs, closer.Close())
		}
	}
	for _, a := range e.actions {
		if closer, ok := a.impl.(io.Closer); ok {
			errs = append(errs, closer.Close())
		}
	}
	return errors.Join(errs...)
}

func cloneMessages(in []types.Message) []types.Message {
	if in == nil {
		return nil
	}
	out := make([]types.Message, len(in))
	for i, msg := range in {
		out[i] = msg.Clone()
	}
	return out
}

func zapIdentifier(identifier string) zap.Field {
	return zap.String("plugin", identifier)
}

func zapParts(parts types.Parts) zap.Field {
	return zap.Any("parts", parts)
}
