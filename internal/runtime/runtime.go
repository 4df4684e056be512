package runtime

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pingsantohq/subpub/internal/engine"
	"github.com/pingsantohq/subpub/internal/health"
	"github.com/pingsantohq/subpub/internal/metrics"
	"github.com/pingsantohq/subpub/internal/scheduler"
	"github.com/pingsantohq/subpub/internal/server"
)

const shutdownTimeout = 5 * time.Second

type Option func(*config)

type config struct {
	logger        *zap.Logger
	schedulerOpts []scheduler.Option
	metricsStore  *metrics.Store
	metricsAddr   string
	staleAfter    time.Duration
	now           func() time.Time
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func WithSchedulerOptions(opts ...scheduler.Option) Option {
	return func(c *config) {
		c.schedulerOpts = append(c.schedulerOpts, opts...)
	}
}

func WithMetricsStore(store *metrics.Store) Option {
	return func(c *config) {
		c.metricsStore = store
	}
}

// WithMetricsAddr serves the monitoring endpoints on addr. Empty disables
// the server.
func WithMetricsAddr(addr string) Option {
	return func(c *config) {
		c.metricsAddr = addr
	}
}

// WithStaleAfter sets how long the engine may go without a tick before it is
// reported unhealthy.
func WithStaleAfter(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.staleAfter = d
		}
	}
}

// Runtime runs the engine on its scheduler alongside the optional monitoring
// server.
type Runtime struct {
	engine    *engine.Engine
	scheduler *scheduler.Scheduler
	metrics   *metrics.Store
	health    *health.Checker
	server    *server.Server
	logger    *zap.Logger
	now       func() time.Time
}

// New wires eng into a scheduler. The engine should have been built with the
// same metrics store's EngineRecorder.
func New(eng *engine.Engine, opts ...Option) *Runtime {
	cfg := config{
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.metricsStore == nil {
		cfg.metricsStore = metrics.NewStore()
	}

	rt := &Runtime{
		engine:  eng,
		metrics: cfg.metricsStore,
		logger:  cfg.logger,
		now:     cfg.now,
	}

	schedOpts := append([]scheduler.Option{
		scheduler.WithNow(cfg.now),
		scheduler.WithObserver(rt.observeTick),
	}, cfg.schedulerOpts...)
	rt.scheduler = scheduler.New(eng, schedOpts...)

	staleAfter := cfg.staleAfter
	if staleAfter <= 0 {
		// Allow a few missed ticks before flagging the engine stale.
		staleAfter = 10*rt.scheduler.TickResolution() + time.Minute
	}
	rt.health = health.NewChecker(cfg.metricsStore, staleAfter)

	if cfg.metricsAddr != "" {
		rt.server = server.New(server.Config{Addr: cfg.metricsAddr}, server.Dependencies{
			Logger:   cfg.logger.Named("server"),
			Metrics:  cfg.metricsStore,
			Health:   rt.health,
			Messages: eng,
			Now:      cfg.now,
		})
	}
	return rt
}

func (r *Runtime) observeTick(at time.Time, err error) {
	r.health.ObserveTick(at, err)
	if err == nil {
		r.logger.Debug("tick complete", zap.Time("at", at))
	}
}

// Run blocks until ctx is cancelled or the engine reports a configuration
// error. The monitoring server, if any, is shut down before Run returns.
func (r *Runtime) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	runCtx, stop := context.WithCancel(gctx)
	defer stop()

	g.Go(func() error {
		defer stop()
		return r.scheduler.Run(runCtx)
	})

	if r.server != nil {
		g.Go(func() error {
			r.logger.Info("monitoring server listening", zap.String("addr", r.server.Addr))
			if err := r.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				stop()
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-runCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return r.server.Shutdown(shutdownCtx)
		})
	}

	return g.Wait()
}

func (r *Runtime) Health() *health.Checker {
	return r.health
}

func (r *Runtime) Metrics() *metrics.Store {
	return r.metrics
}

// Handler returns the monitoring routes without binding a listener.
func (r *Runtime) Handler() http.Handler {
	return server.NewRouter(server.Dependencies{
		Logger:   r.logger,
		Metrics:  r.metrics,
		Health:   r.health,
		Messages: r.engine,
		Now:      r.now,
	})
}

func WithTickResolution(d time.Duration) Option {
	return WithSchedulerOptions(scheduler.WithTickResolution(d))
}

func WithNow(now func() time.Time) Option {
	return func(c *config) {
		if now != nil {
			c.now = now
		}
	}
}
