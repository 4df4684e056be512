package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMergeShallowOverride(t *testing.T) {
	base := Options{
		"interval": 10,
		"tags":     []any{"a", "b"},
		"nested":   map[string]any{"x": 1, "y": 2},
	}
	override := Options{
		"tags":   []any{"c"},
		"nested": map[string]any{"x": 5},
	}

	merged := Merge(base, override)

	require.Equal(t, 10, merged["interval"])
	// lists are replaced, not concatenated
	require.Equal(t, []any{"c"}, merged["tags"])
	// maps are replaced, not merged
	require.Equal(t, map[string]any{"x": 5}, merged["nested"])

	// inputs untouched
	require.Equal(t, []any{"a", "b"}, base["tags"])
	require.Len(t, override, 2)
}

func TestMergeNilLayers(t *testing.T) {
	merged := Merge(nil, Options{"a": 1}, nil)
	require.Equal(t, Options{"a": 1}, merged)
	require.NotNil(t, Merge())
}

func TestRequire(t *testing.T) {
	opts := Options{"location": "/tmp/x"}
	require.NoError(t, opts.Require("location"))

	err := opts.Require("url", "location", "moniker")
	require.Error(t, err)
	require.True(t, IsConfigError(err))
	require.Contains(t, err.Error(), "[moniker url]")
}

func TestTypedAccessors(t *testing.T) {
	opts := Options{
		"name":     "console",
		"show":     3,
		"current":  true,
		"interval": 15,
		"timeout":  "750ms",
		"tags":     "kernel",
		"list":     []any{"a", "b"},
		"bad":      []any{"a", 1},
	}

	s, err := opts.String("name", "noname")
	require.NoError(t, err)
	require.Equal(t, "console", s)

	s, err = opts.String("absent", "noname")
	require.NoError(t, err)
	require.Equal(t, "noname", s)

	n, err := opts.Int("show", 1)
	require.NoError(t, err)
	require.Equal(t, 3, n)

	b, err := opts.Bool("current", false)
	require.NoError(t, err)
	require.True(t, b)

	d, err := opts.Duration("interval", 0)
	require.NoError(t, err)
	require.Equal(t, 15*time.Second, d)

	d, err = opts.Duration("timeout", 0)
	require.NoError(t, err)
	require.Equal(t, 750*time.Millisecond, d)

	list, err := opts.Strings("tags")
	require.NoError(t, err)
	require.Equal(t, []string{"kernel"}, list)

	list, err = opts.Strings("list")
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, list)

	_, err = opts.Strings("bad")
	require.True(t, IsConfigError(err))

	_, err = opts.Int("name", 0)
	require.True(t, IsConfigError(err))

	_, err = opts.Bool("show", false)
	require.True(t, IsConfigError(err))
}

func TestToIntRejectsFloats(t *testing.T) {
	_, ok := ToInt(2.0)
	require.False(t, ok)

	n, ok := ToInt(int64(-4))
	require.True(t, ok)
	require.Equal(t, -4, n)

	f, ok := ToFloat(7)
	require.True(t, ok)
	require.Equal(t, 7.0, f)
}

func TestToOptions(t *testing.T) {
	opts, ok := ToOptions(map[any]any{"rule": "ALL"})
	require.True(t, ok)
	require.Equal(t, "ALL", opts["rule"])

	_, ok = ToOptions(map[any]any{10: 20})
	require.False(t, ok)
}
