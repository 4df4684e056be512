package base

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"

	"github.com/pingsantohq/subpub/internal/config"
	"github.com/pingsantohq/subpub/internal/plugin"
	"github.com/pingsantohq/subpub/pkg/types"
)

// Match follows a file and emits one message per new line matching pattern.
// Named capture groups become message attributes.
type Match struct {
	location string
	pattern  *regexp.Regexp
	kind     string
	source   plugin.Source
}

func NewMatch(opts config.Options, deps plugin.Dependencies) (plugin.Check, error) {
	if deps.Sources == nil {
		return nil, fmt.Errorf("match check requires a source binder")
	}
	if err := opts.Require("location", "pattern"); err != nil {
		return nil, err
	}
	location, err := opts.String("location", "")
	if err != nil {
		return nil, err
	}
	expr, err := opts.String("pattern", "")
	if err != nil {
		return nil, err
	}
	pattern, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", expr, err)
	}
	kind, err := opts.String("kind", "Match")
	if err != nil {
		return nil, err
	}

	m := &Match{location: location, pattern: pattern, kind: kind}
	m.source, err = deps.Sources.Bind("lines", "followfile", config.Options{"location": location})
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Match) MessageDefaults() types.Parts {
	return types.Parts{
		types.PartKind:     m.kind,
		types.PartName:     filepath.Base(m.location),
		types.PartWeight:   1,
		types.PartLocation: m.location,
	}
}

func (m *Match) Run(ctx context.Context) ([]types.Parts, error) {
	lines, ok := m.source.Data().([]string)
	if !ok && m.source.Data() != nil {
		return nil, fmt.Errorf("unexpected followfile data %T", m.source.Data())
	}
	var out []types.Parts
	for _, line := range lines {
		groups := m.pattern.FindStringSubmatch(line)
		if groups == nil {
			continue
		}
		attrs := map[string]any{}
		for i, name := range m.pattern.SubexpNames() {
			if i == 0 || name == "" {
				continue
			}
			attrs[name] = groups[i]
		}
		out = append(out, types.Parts{
			types.PartKey:        line,
			types.PartAttributes: attrs,
		})
	}
	return out, nil
}
