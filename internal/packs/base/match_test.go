package base

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pingsantohq/subpub/internal/config"
	"github.com/pingsantohq/subpub/pkg/types"
)

func newMatch(t *testing.T, opts config.Options) (*Match, *directBinder) {
	t.Helper()
	deps := testDeps()
	binder := newDirectBinder(deps)
	deps.Sources = binder
	check, err := NewMatch(opts, deps)
	require.NoError(t, err)
	t.Cleanup(func() { binder.bound["lines"].(*Followfile).Close() })
	return check.(*Match), binder
}

func TestMatchEmitsMatchingLines(t *testing.T) {
	path := writeFile(t, "auth.log", "")
	m, binder := newMatch(t, config.Options{
		"location": path,
		"pattern":  `Failed password for (?P<user>\w+)`,
	})

	require.Equal(t, "auth.log", m.MessageDefaults()[types.PartName])
	require.Equal(t, "Match", m.MessageDefaults()[types.PartKind])

	appendFile(t, path, "Accepted password for alice\nFailed password for bob\n")
	binder.refresh(t)
	parts, err := m.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, []types.Parts{{
		types.PartKey:        "Failed password for bob",
		types.PartAttributes: map[string]any{"user": "bob"},
	}}, parts)

	binder.refresh(t)
	parts, err = m.Run(context.Background())
	require.NoError(t, err)
	require.Empty(t, parts)
}

func TestMatchOptions(t *testing.T) {
	path := writeFile(t, "app.log", "")
	deps := testDeps()
	deps.Sources = newDirectBinder(deps)

	_, err := NewMatch(config.Options{"location": path}, deps)
	require.Error(t, err)

	_, err = NewMatch(config.Options{"location": path, "pattern": "("}, deps)
	require.ErrorContains(t, err, "invalid pattern")

	m, binder := newMatch(t, config.Options{"location": path, "pattern": "x", "kind": "AppLog"})
	require.Equal(t, "AppLog", m.MessageDefaults()[types.PartKind])
	require.Equal(t, config.Options{"location": path}, binder.opts["lines"])
}
