package engine

import (
	"fmt"
	"maps"

	"github.com/pingsantohq/subpub/internal/config"
	"github.com/pingsantohq/subpub/pkg/types"
)

// Pipeline builds, deduplicates and decays the messages of a single check.
type Pipeline struct {
	defaults    types.Parts
	weightCalc  Calc
	degradeCalc Calc

	held []heldMessage
}

// heldMessage pairs the current state of a message with the message as it was
// built, which is what new emissions are compared against.
type heldMessage struct {
	msg    types.Message
	origin types.Message
}

// NewPipeline returns a pipeline layering emitted parts over defaults.
func NewPipeline(defaults types.Parts, weightCalc, degradeCalc Calc) *Pipeline {
	return &Pipeline{
		defaults:    maps.Clone(defaults),
		weightCalc:  weightCalc,
		degradeCalc: degradeCalc,
	}
}

// Defaults returns a copy of the message defaults.
func (p *Pipeline) Defaults() types.Parts {
	return maps.Clone(p.defaults)
}

// Build layers parts over the defaults, checks that every required part is
// present and applies the weight calc.
func (p *Pipeline) Build(parts types.Parts) (types.Message, error) {
	merged := config.Merge(config.Options(p.defaults), config.Options(parts))
	if missing := merged.Missing(types.RequiredParts...); len(missing) > 0 {
		return types.Message{}, config.Errorf("build message", "message missing required parts: %v", missing)
	}

	var msg types.Message
	var err error
	if msg.Name, err = partString(merged, types.PartName); err != nil {
		return types.Message{}, err
	}
	if msg.Kind, err = partString(merged, types.PartKind); err != nil {
		return types.Message{}, err
	}
	if msg.Key, err = partString(merged, types.PartKey); err != nil {
		return types.Message{}, err
	}
	if msg.Location, err = partString(merged, types.PartLocation); err != nil {
		return types.Message{}, err
	}
	weight, ok := config.ToFloat(merged[types.PartWeight])
	if !ok {
		return types.Message{}, config.Errorf("build message", "weight: expected number, got %T", merged[types.PartWeight])
	}
	msg.Weight = p.weightCalc.Apply(weight)
	if msg.Tags, err = partTags(merged[types.PartTags]); err != nil {
		return types.Message{}, err
	}
	if msg.Attributes, err = partAttributes(merged[types.PartAttributes]); err != nil {
		return types.Message{}, err
	}
	return msg, nil
}

// Update replaces the held messages with the built form of raw. A message is
// tagged "new" unless an identical message was built on the previous update.
func (p *Pipeline) Update(raw []types.Parts) error {
	next := make([]heldMessage, 0, len(raw))
	for _, parts := range raw {
		origin, err := p.Build(parts)
		if err != nil {
			return err
		}
		msg := origin.Clone()
		if !p.seen(origin) {
			msg.Tags.Add(types.TagNew)
		}
		next = append(next, heldMessage{msg: msg, origin: origin})
	}
	p.held = next
	return nil
}

func (p *Pipeline) seen(origin types.Message) bool {
	for _, h := range p.held {
		if h.origin.Equal(origin) {
			return true
		}
	}
	return false
}

// Degrade applies one decay step: it drops the "new" tag, applies the degrade
// calc and removes messages whose weight fell to zero or below. It returns the
// number of messages removed.
func (p *Pipeline) Degrade() int {
	kept := p.held[:0]
	dropped := 0
	for _, h := range p.held {
		h.msg.Tags.Remove(types.TagNew)
		h.msg.Weight = p.degradeCalc.Apply(h.msg.Weight)
		if h.msg.Weight <= 0 {
			dropped++
			continue
		}
		kept = append(kept, h)
	}
	p.held = kept
	return dropped
}

// Messages returns copies of the held messages.
func (p *Pipeline) Messages() []types.Message {
	out := make([]types.Message, 0, len(p.held))
	for _, h := range p.held {
		out = append(out, h.msg.Clone())
	}
	return out
}

func (p *Pipeline) Len() int {
	return len(p.held)
}

func partString(parts config.Options, key string) (string, error) {
	switch v := parts[key].(type) {
	case string:
		return v, nil
	case nil:
		return "", config.Errorf("build message", "%s: must not be null", key)
	case bool, int, int64, uint64, float64:
		return fmt.Sprint(v), nil
	default:
		return "", config.Errorf("build message", "%s: expected string, got %T", key, v)
	}
}

func partTags(raw any) (types.Tags, error) {
	switch v := raw.(type) {
	case types.Tags:
		return v.Clone(), nil
	case nil:
		return nil, config.Errorf("build message", "tags: must not be null")
	}
	list, ok := config.ToStrings(raw)
	if !ok {
		return nil, config.Errorf("build message", "tags: expected string or list of strings, got %v", raw)
	}
	return types.NewTags(list...), nil
}

func partAttributes(raw any) (map[string]any, error) {
	if raw == nil {
		return map[string]any{}, nil
	}
	opts, ok := config.ToOptions(raw)
	if !ok {
		return nil, config.Errorf("build message", "attributes: expected mapping, got %T", raw)
	}
	return maps.Clone(map[string]any(opts)), nil
}
