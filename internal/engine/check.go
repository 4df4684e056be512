package engine

import (
	"time"

	"github.com/pingsantohq/subpub/internal/config"
	"github.com/pingsantohq/subpub/internal/plugin"
	"github.com/pingsantohq/subpub/pkg/types"
)

// Check is a scheduled check instance: the plugin that produces raw messages
// plus the scheduling state the engine keeps for it.
type Check struct {
	Identifier string
	Options    config.Options
	Interval   time.Duration
	// LastCheck is the time of the last successful run.
	LastCheck time.Time
	// Degraded is set once the held messages have decayed for the current
	// stale period and cleared by the next successful run.
	Degraded bool
	// Failing reports whether the most recent run returned an error.
	Failing bool

	pipeline *Pipeline
	sources  []binding
	impl     plugin.Check
}

type binding struct {
	local  string
	source *Source
}

// NewCheck resolves identifier and constructs the check. Sources the plugin
// binds while being constructed are taken from cache.
func NewCheck(identifier string, opts config.Options, registry *plugin.Registry, cache *SourceCache, deps plugin.Dependencies) (*Check, error) {
	canonical, err := plugin.Canonical(identifier)
	if err != nil {
		return nil, config.Wrap("check", err)
	}
	op := "check " + canonical

	interval, err := opts.Duration("interval", 0)
	if err != nil {
		return nil, config.Wrap(op, err)
	}
	if interval <= 0 {
		return nil, config.Errorf(op, "interval must be positive, got %v", opts["interval"])
	}
	tags, err := opts.Strings("tags")
	if err != nil {
		return nil, config.Errorf(op, "invalid tag data provided: %v", opts["tags"])
	}
	weightCalc, err := ParseCalc(opts["weight_calc"])
	if err != nil {
		return nil, config.Wrap(op, err)
	}
	degradeCalc, err := ParseCalc(opts["degrade_calc"])
	if err != nil {
		return nil, config.Wrap(op, err)
	}

	factory, err := registry.Checks.Resolve(canonical)
	if err != nil {
		return nil, err
	}

	c := &Check{
		Identifier: canonical,
		Options:    opts.Clone(),
		Interval:   interval,
	}
	deps = deps.WithDefaults()
	deps.Registry = registry
	deps.Sources = &binder{check: c, cache: cache}
	deps.Logger = deps.Logger.Named(canonical)
	impl, err := factory(opts.Clone(), deps)
	if err != nil {
		return nil, config.Wrap(op, err)
	}
	c.impl = impl

	defaults := types.Parts{
		types.PartTags:       types.NewTags(),
		types.PartAttributes: map[string]any{},
	}
	if d, ok := impl.(plugin.Defaulter); ok {
		for key, value := range d.MessageDefaults() {
			defaults[key] = value
		}
	}
	defaultTags, err := partTags(defaults[types.PartTags])
	if err != nil {
		return nil, config.Wrap(op, err)
	}
	defaultTags.Add(tags...)
	defaults[types.PartTags] = defaultTags

	c.pipeline = NewPipeline(defaults, weightCalc, degradeCalc)
	deps.Logger.Debug("message defaults", zapParts(defaults))
	return c, nil
}

// Due reports whether more than one interval has passed since the last
// successful run.
func (c *Check) Due(now time.Time) bool {
	return c.LastCheck.Add(c.Interval).Before(now)
}

// Sources returns the bound sources in binding order.
func (c *Check) Sources() []*Source {
	out := make([]*Source, 0, len(c.sources))
	for _, b := range c.sources {
		out = append(out, b.source)
	}
	return out
}

// Source returns the source bound under local.
func (c *Check) Source(local string) (*Source, bool) {
	for _, b := range c.sources {
		if b.local == local {
			return b.source, true
		}
	}
	return nil, false
}

// Messages returns copies of the currently held messages.
func (c *Check) Messages() []types.Message {
	return c.pipeline.Messages()
}

// Pipeline exposes the check's message pipeline.
func (c *Check) Pipeline() *Pipeline {
	return c.pipeline
}

type binder struct {
	check *Check
	cache *SourceCache
}

// Bind attaches the cached source for (identifier, opts) under local. Binding
// the same local name again replaces the earlier source in place.
func (b *binder) Bind(local, identifier string, opts config.Options) (plugin.Source, error) {
	src, err := b.cache.Get(identifier, opts)
	if err != nil {
		return nil, err
	}
	for i := range b.check.sources {
		if b.check.sources[i].local == local {
			b.check.sources[i].source = src
			return src, nil
		}
	}
	b.check.sources = append(b.check.sources, binding{local: local, source: src})
	return src, nil
}

// Plugin returns the constructed check plugin.
func (c *Check) Plugin() plugin.Check {
	return c.impl
}
