package base

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/pingsantohq/subpub/pkg/types"
)

func tagged(tags ...string) types.Message {
	return types.Message{Tags: types.NewTags(tags...)}
}

func weighted(w float64) types.Message {
	return types.Message{Weight: w, Tags: types.NewTags()}
}

// decode mimics how filter configuration reaches a factory.
func decode(t *testing.T, doc string) any {
	t.Helper()
	var out any
	require.NoError(t, yaml.Unmarshal([]byte(doc), &out))
	return out
}

func TestTagsFilterBareAndList(t *testing.T) {
	single, err := NewTagsFilter("new")
	require.NoError(t, err)
	require.True(t, single.Match(tagged("new", "kernel")))
	require.False(t, single.Match(tagged("kernel")))

	list, err := NewTagsFilter(decode(t, "[a, b]"))
	require.NoError(t, err)
	require.True(t, list.Match(tagged("b")))
	require.False(t, list.Match(tagged("c")))
	require.Equal(t, TagRuleAny, list.(*TagsFilter).Rule)
}

func TestTagsFilterRules(t *testing.T) {
	all, err := NewTagsFilter(decode(t, "{rule: ALL, list: [a, b]}"))
	require.NoError(t, err)
	require.True(t, all.Match(tagged("a", "b", "c")))
	require.False(t, all.Match(tagged("a")))

	anyOf, err := NewTagsFilter(decode(t, "{rule: ANY, list: [a, b]}"))
	require.NoError(t, err)
	require.True(t, anyOf.Match(tagged("a")))
	require.False(t, anyOf.Match(tagged()))
}

func TestTagsFilterRejectsMalformed(t *testing.T) {
	for name, raw := range map[string]any{
		"missing list": decode(t, "{rule: ALL}"),
		"missing rule": decode(t, "{list: [a]}"),
		"bad rule":     decode(t, "{rule: SOME, list: [a]}"),
		"bad list":     decode(t, "{rule: ANY, list: [1, 2]}"),
		"number":       7,
		"nested list":  decode(t, "[[a]]"),
	} {
		_, err := NewTagsFilter(raw)
		require.Error(t, err, name)
	}
}

func TestWeightFilterSingleAndList(t *testing.T) {
	single, err := NewWeightFilter(2)
	require.NoError(t, err)
	require.True(t, single.Match(weighted(2)))
	require.False(t, single.Match(weighted(3)))

	list, err := NewWeightFilter(decode(t, "[1, 3]"))
	require.NoError(t, err)
	require.True(t, list.Match(weighted(1)))
	require.True(t, list.Match(weighted(3)))
	require.False(t, list.Match(weighted(2)))
}

func TestWeightFilterRange(t *testing.T) {
	rng, err := NewWeightFilter(decode(t, "{2: 5}"))
	require.NoError(t, err)
	for w, want := range map[float64]bool{1: false, 2: true, 4: true, 5: true, 6: false} {
		require.Equal(t, want, rng.Match(weighted(w)), "weight %v", w)
	}

	fromJSONKeys, err := NewWeightFilter(map[string]any{"0": 1})
	require.NoError(t, err)
	require.True(t, fromJSONKeys.Match(weighted(0)))
}

func TestWeightFilterRequiresIntegralWeight(t *testing.T) {
	f, err := NewWeightFilter(decode(t, "{0: 10}"))
	require.NoError(t, err)
	require.False(t, f.Match(weighted(2.5)))
	require.True(t, f.Match(weighted(2.0)))
}

func TestWeightFilterRejectsMalformed(t *testing.T) {
	for name, raw := range map[string]any{
		"string":      "heavy",
		"float":       1.5,
		"mixed list":  decode(t, "[1, two]"),
		"two ranges":  decode(t, "{1: 2, 3: 4}"),
		"bad bound":   decode(t, "{1: x}"),
		"string key":  map[string]any{"low": 3},
		"empty range": map[string]any{},
	} {
		_, err := NewWeightFilter(raw)
		require.Error(t, err, name)
	}
}
