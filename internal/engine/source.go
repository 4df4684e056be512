package engine

import (
	"context"
	"errors"
	"io"
	"reflect"
	"time"

	"github.com/pingsantohq/subpub/internal/config"
	"github.com/pingsantohq/subpub/internal/plugin"
)

// Source is a shared, deduplicated source instance together with its
// freshness timestamp.
type Source struct {
	Identifier string
	Options    config.Options
	// LastCheck is the time of the last successful run. The zero time makes a
	// new source due on its first tick.
	LastCheck time.Time

	impl plugin.Source
}

func (s *Source) Run(ctx context.Context) error {
	return s.impl.Run(ctx)
}

func (s *Source) Data() any {
	return s.impl.Data()
}

// Refresh runs the source unless it already ran at or after now.
func (s *Source) Refresh(ctx context.Context, now time.Time) (ran bool, err error) {
	if !s.LastCheck.Before(now) {
		return false, nil
	}
	if err := s.impl.Run(ctx); err != nil {
		return true, err
	}
	s.LastCheck = now
	return true, nil
}

// SourceCache hands out one Source per distinct identifier and resolved
// options pair. Sources are never evicted.
type SourceCache struct {
	registry *plugin.Registry
	deps     plugin.Dependencies
	sources  []*Source
}

func NewSourceCache(registry *plugin.Registry, deps plugin.Dependencies) *SourceCache {
	return &SourceCache{registry: registry, deps: deps.WithDefaults()}
}

// Get returns the cached source equal to (identifier, opts) or constructs and
// caches a new one.
func (c *SourceCache) Get(identifier string, opts config.Options) (*Source, error) {
	canonical, err := plugin.Canonical(identifier)
	if err != nil {
		return nil, config.Wrap("source", err)
	}
	for _, src := range c.sources {
		if src.Identifier == canonical && reflect.DeepEqual(src.Options, opts) {
			c.deps.Logger.Debug("reusing source", zapIdentifier(canonical))
			return src, nil
		}
	}

	factory, err := c.registry.Sources.Resolve(canonical)
	if err != nil {
		return nil, err
	}
	deps := c.deps
	deps.Logger = c.deps.Logger.Named(canonical)
	impl, err := factory(opts.Clone(), deps)
	if err != nil {
		return nil, config.Wrap("source "+canonical, err)
	}
	src := &Source{
		Identifier: canonical,
		Options:    opts.Clone(),
		impl:       impl,
	}
	c.sources = append(c.sources, src)
	c.deps.Logger.Debug("loaded source", zapIdentifier(canonical))
	return src, nil
}

// All returns the cached sources in creation order.
func (c *SourceCache) All() []*Source {
	return append([]*Source(nil), c.sources...)
}

func (c *SourceCache) Len() int {
	return len(c.sources)
}

// Close releases every source that holds resources.
func (c *SourceCache) Close() error {
	var errs []error
	for _, src := range c.sources {
		if closer, ok := src.impl.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
