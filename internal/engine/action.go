package engine

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/pingsantohq/subpub/internal/config"
	"github.com/pingsantohq/subpub/internal/plugin"
	"github.com/pingsantohq/subpub/pkg/types"
)

// filtersKey is the action option holding its filter groups.
const filtersKey = "for"

// Action is a configured action instance and the filter groups guarding it.
type Action struct {
	ID         uuid.UUID
	Identifier string
	Options    config.Options

	groups [][]plugin.Filter
	impl   plugin.Action
}

// NewAction resolves identifier, builds its filter groups from the "for"
// option and constructs the action.
func NewAction(identifier string, opts config.Options, registry *plugin.Registry, deps plugin.Dependencies) (*Action, error) {
	canonical, err := plugin.Canonical(identifier)
	if err != nil {
		return nil, config.Wrap("action", err)
	}
	op := "action " + canonical

	groups, err := ParseFilterGroups(registry, opts[filtersKey])
	if err != nil {
		return nil, config.Wrap(op, err)
	}
	factory, err := registry.Actions.Resolve(canonical)
	if err != nil {
		return nil, err
	}

	a := &Action{
		ID:         uuid.New(),
		Identifier: canonical,
		Options:    opts.Clone(),
		groups:     groups,
	}
	deps = deps.WithDefaults()
	deps.Registry = registry
	deps.InstanceID = a.ID
	deps.Logger = deps.Logger.Named(canonical)
	impl, err := factory(opts.Clone(), deps)
	if err != nil {
		return nil, config.Wrap(op, err)
	}
	a.impl = impl
	return a, nil
}

// ParseFilterGroups reads a filter expression: a mapping of filter identifier
// to filter configuration is one group, a list of such mappings is a
// disjunction of groups and nil means no groups. Filters within a group are
// built in identifier order.
func ParseFilterGroups(registry *plugin.Registry, raw any) ([][]plugin.Filter, error) {
	if raw == nil {
		return nil, nil
	}
	var specs []config.Options
	if group, ok := config.ToOptions(raw); ok {
		specs = []config.Options{group}
	} else if list, ok := raw.([]any); ok {
		for i, item := range list {
			group, ok := config.ToOptions(item)
			if !ok {
				return nil, config.Errorf("filters", "malformed filters provided: group %d is %T, not a mapping", i, item)
			}
			specs = append(specs, group)
		}
	} else {
		return nil, config.Errorf("filters", "malformed filters provided: %T", raw)
	}

	groups := make([][]plugin.Filter, 0, len(specs))
	for _, spec := range specs {
		names := make([]string, 0, len(spec))
		for name := range spec {
			names = append(names, name)
		}
		sort.Strings(names)
		group := make([]plugin.Filter, 0, len(names))
		for _, name := range names {
			filter, err := registry.NewFilter(name, spec[name])
			if err != nil {
				return nil, err
			}
			group = append(group, filter)
		}
		groups = append(groups, group)
	}
	return groups, nil
}

// Groups returns the number of filter groups.
func (a *Action) Groups() int {
	return len(a.groups)
}

// Filter returns the messages that satisfy every filter of at least one group.
// Without groups every message passes.
func (a *Action) Filter(messages []types.Message) []types.Message {
	if len(a.groups) == 0 {
		return messages
	}
	out := make([]types.Message, 0, len(messages))
	for _, msg := range messages {
		if a.Match(msg) {
			out = append(out, msg)
		}
	}
	return out
}

// Match evaluates the filter groups against msg.
func (a *Action) Match(msg types.Message) bool {
	if len(a.groups) == 0 {
		return true
	}
	for _, group := range a.groups {
		if matchAll(group, msg) {
			return true
		}
	}
	return false
}

func matchAll(group []plugin.Filter, msg types.Message) bool {
	for _, f := range group {
		if !f.Match(msg) {
			return false
		}
	}
	return true
}

func (a *Action) Run(ctx context.Context, messages []types.Message) error {
	return a.impl.Run(ctx, messages)
}

// Plugin returns the constructed action plugin.
func (a *Action) Plugin() plugin.Action {
	return a.impl
}
