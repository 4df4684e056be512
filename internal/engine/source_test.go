package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pingsantohq/subpub/internal/config"
	"github.com/pingsantohq/subpub/internal/plugin"
)

func TestSourceCacheDeduplicates(t *testing.T) {
	f := newFixture(t)
	cache := NewSourceCache(f.reg, plugin.Dependencies{})

	first, err := cache.Get("test.counter", config.Options{"name": "feed", "interval": 10})
	require.NoError(t, err)
	second, err := cache.Get(" test.counter", config.Options{"interval": 10, "name": "feed"})
	require.NoError(t, err)
	require.Same(t, first, second)

	other, err := cache.Get("test.counter", config.Options{"name": "feed", "interval": 20})
	require.NoError(t, err)
	require.NotSame(t, first, other)

	require.Equal(t, 2, cache.Len())
	require.Equal(t, []*Source{first, other}, cache.All())
	require.Equal(t, "test.counter", first.Identifier)
}

func TestSourceCacheResolvesDefaultPack(t *testing.T) {
	f := newFixture(t)
	f.reg.Sources.Register("static", func(opts config.Options, deps plugin.Dependencies) (plugin.Source, error) {
		return &countingSource{name: "static", f: f}, nil
	})
	cache := NewSourceCache(f.reg, plugin.Dependencies{})

	bare, err := cache.Get("static", nil)
	require.NoError(t, err)
	qualified, err := cache.Get("base.static", nil)
	require.NoError(t, err)
	require.Same(t, bare, qualified)
	require.Equal(t, "base.static", bare.Identifier)
}

func TestSourceCacheErrors(t *testing.T) {
	f := newFixture(t)
	f.reg.Sources.Register("test.broken", func(opts config.Options, deps plugin.Dependencies) (plugin.Source, error) {
		return nil, errors.New("no such file")
	})
	cache := NewSourceCache(f.reg, plugin.Dependencies{})

	for _, identifier := range []string{"test.unknown", "missing.counter", "a..b", "test.broken"} {
		_, err := cache.Get(identifier, config.Options{})
		require.Error(t, err, identifier)
		require.True(t, config.IsConfigError(err), identifier)
	}
	require.Zero(t, cache.Len())
}

func TestSourceRefresh(t *testing.T) {
	f := newFixture(t)
	cache := NewSourceCache(f.reg, plugin.Dependencies{})
	src, err := cache.Get("test.counter", config.Options{"name": "feed"})
	require.NoError(t, err)
	ctx := context.Background()

	ran, err := src.Refresh(ctx, at(0))
	require.NoError(t, err)
	require.True(t, ran)
	require.Equal(t, at(0), src.LastCheck)

	ran, err = src.Refresh(ctx, at(0))
	require.NoError(t, err)
	require.False(t, ran)
	require.Equal(t, 1, f.sourceRuns["feed"])

	f.sourceErr["feed"] = errors.New("boom")
	ran, err = src.Refresh(ctx, at(1))
	require.Error(t, err)
	require.True(t, ran)
	require.Equal(t, at(0), src.LastCheck)
	require.Equal(t, 1, src.Data())
}
