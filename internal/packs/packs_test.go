package packs

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pingsantohq/subpub/internal/plugin"
)

func TestDefaultRegistersBasePack(t *testing.T) {
	catalog := Default().Catalog()

	require.Equal(t, []string{"base.flatfile", "base.followfile"}, catalog[plugin.KindSources])
	require.Equal(t, []string{"base.kernel", "base.match"}, catalog[plugin.KindChecks])
	require.Equal(t, []string{"base.debug", "base.journal", "base.log"}, catalog[plugin.KindActions])
	require.Equal(t, []string{"base.tags", "base.weight"}, catalog[plugin.KindFilters])
	require.Equal(t, []string{"base.file", "base.http", "base.https"}, catalog[plugin.KindSchemas])
	require.Equal(t, []string{"base.json", "base.raw", "base.yaml"}, catalog[plugin.KindParsers])
}

func TestDefaultReturnsIndependentRegistries(t *testing.T) {
	a, b := Default(), Default()
	require.NotSame(t, a, b)

	_, err := a.Filters.Resolve("tags")
	require.NoError(t, err)
	_, err = b.Sources.Resolve("flatfile")
	require.NoError(t, err)
}
