package base

import (
	"fmt"
	"math"
	"strconv"

	"github.com/pingsantohq/subpub/internal/config"
	"github.com/pingsantohq/subpub/internal/plugin"
	"github.com/pingsantohq/subpub/pkg/types"
)

// TagRule selects how a tags filter compares its set with a message's tags.
type TagRule string

const (
	TagRuleAny TagRule = "ANY"
	TagRuleAll TagRule = "ALL"
)

// TagsFilter matches on message tags.
type TagsFilter struct {
	Rule TagRule
	Tags types.Tags
}

// NewTagsFilter accepts a tag, a list of tags (rule ANY) or a mapping
// {rule: ANY|ALL, list: tags}.
func NewTagsFilter(raw any) (plugin.Filter, error) {
	if opts, ok := config.ToOptions(raw); ok {
		if err := opts.Require("rule", "list"); err != nil {
			return nil, fmt.Errorf("invalid option set provided: %v", raw)
		}
		rule, ok := opts["rule"].(string)
		if !ok || (TagRule(rule) != TagRuleAny && TagRule(rule) != TagRuleAll) {
			return nil, fmt.Errorf("invalid tag rule provided: %v", opts["rule"])
		}
		tags, ok := config.ToStrings(opts["list"])
		if !ok {
			return nil, fmt.Errorf("unsupported tag format provided: %v", opts["list"])
		}
		return &TagsFilter{Rule: TagRule(rule), Tags: types.NewTags(tags...)}, nil
	}
	tags, ok := config.ToStrings(raw)
	if !ok {
		return nil, fmt.Errorf("unsupported tag format provided: %v", raw)
	}
	return &TagsFilter{Rule: TagRuleAny, Tags: types.NewTags(tags...)}, nil
}

func (f *TagsFilter) Match(msg types.Message) bool {
	if f.Rule == TagRuleAll {
		return f.Tags.SubsetOf(msg.Tags)
	}
	return f.Tags.Intersects(msg.Tags)
}

// WeightFilter matches messages whose weight is an integer in a set or an
// inclusive range.
type WeightFilter struct {
	set          map[int]struct{}
	lower, upper int
	ranged       bool
}

// NewWeightFilter accepts an integer, a list of integers or a single-entry
// mapping {lower: upper}.
func NewWeightFilter(raw any) (plugin.Filter, error) {
	if n, ok := config.ToInt(raw); ok {
		return &WeightFilter{set: map[int]struct{}{n: {}}}, nil
	}
	switch v := raw.(type) {
	case []any:
		set := make(map[int]struct{}, len(v))
		for _, item := range v {
			n, ok := config.ToInt(item)
			if !ok {
				return nil, fmt.Errorf("malformed weight list provided: %v", raw)
			}
			set[n] = struct{}{}
		}
		return &WeightFilter{set: set}, nil
	case []int:
		set := make(map[int]struct{}, len(v))
		for _, n := range v {
			set[n] = struct{}{}
		}
		return &WeightFilter{set: set}, nil
	case map[any]any:
		if len(v) == 1 {
			for k, u := range v {
				return newWeightRange(k, u, raw)
			}
		}
	case map[string]any:
		if len(v) == 1 {
			for k, u := range v {
				n, err := strconv.Atoi(k)
				if err != nil {
					return nil, fmt.Errorf("malformed weight options provided: %v", raw)
				}
				return newWeightRange(n, u, raw)
			}
		}
	case map[int]int:
		if len(v) == 1 {
			for k, u := range v {
				return newWeightRange(k, u, raw)
			}
		}
	}
	return nil, fmt.Errorf("malformed weight options provided: %v", raw)
}

func newWeightRange(lowerRaw, upperRaw, raw any) (plugin.Filter, error) {
	lower, ok := config.ToInt(lowerRaw)
	if !ok {
		return nil, fmt.Errorf("malformed weight options provided: %v", raw)
	}
	upper, ok := config.ToInt(upperRaw)
	if !ok {
		return nil, fmt.Errorf("malformed weight options provided: %v", raw)
	}
	return &WeightFilter{lower: lower, upper: upper, ranged: true}, nil
}

func (f *WeightFilter) Match(msg types.Message) bool {
	if msg.Weight != math.Trunc(msg.Weight) || math.IsInf(msg.Weight, 0) {
		return false
	}
	w := int(msg.Weight)
	if f.ranged {
		return w >= f.lower && w <= f.upper
	}
	_, ok := f.set[w]
	return ok
}
