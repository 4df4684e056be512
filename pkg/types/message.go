package types

import (
	"maps"
	"reflect"
)

// Message part names. Every built message carries all of them.
const (
	PartName       = "name"
	PartKind       = "kind"
	PartKey        = "key"
	PartLocation   = "location"
	PartWeight     = "weight"
	PartTags       = "tags"
	PartAttributes = "attributes"
)

// TagNew marks a message that was not held by its check on the previous update.
const TagNew = "new"

// RequiredParts lists the parts a message must carry once defaults are applied.
var RequiredParts = []string{
	PartName,
	PartKind,
	PartKey,
	PartLocation,
	PartWeight,
	PartTags,
	PartAttributes,
}

// Parts is a raw, partially specified message as emitted by a check or held as
// a check's message defaults.
type Parts map[string]any

// Message is a weighted, tagged event produced by a check.
type Message struct {
	Name       string         `json:"name" yaml:"name"`
	Kind       string         `json:"kind" yaml:"kind"`
	Key        string         `json:"key" yaml:"key"`
	Location   string         `json:"location" yaml:"location"`
	Weight     float64        `json:"weight" yaml:"weight"`
	Tags       Tags           `json:"tags" yaml:"tags"`
	Attributes map[string]any `json:"attributes" yaml:"attributes"`
}

// Clone returns a copy that shares no tag set or attribute map with m.
func (m Message) Clone() Message {
	out := m
	out.Tags = m.Tags.Clone()
	if m.Attributes != nil {
		out.Attributes = maps.Clone(m.Attributes)
	} else {
		out.Attributes = map[string]any{}
	}
	return out
}

// Equal reports full structural equality, tags included.
func (m Message) Equal(other Message) bool {
	if m.Name != other.Name || m.Kind != other.Kind || m.Key != other.Key || m.Location != other.Location {
		return false
	}
	if m.Weight != other.Weight {
		return false
	}
	if !m.Tags.Equal(other.Tags) {
		return false
	}
	if len(m.Attributes) != len(other.Attributes) {
		return false
	}
	return maps.EqualFunc(m.Attributes, other.Attributes, func(a, b any) bool {
		return reflect.DeepEqual(a, b)
	})
}

// WithoutTag returns a clone of m with tag removed.
func (m Message) WithoutTag(tag string) Message {
	out := m.Clone()
	out.Tags.Remove(tag)
	return out
}
