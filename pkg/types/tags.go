package types

import (
	"encoding/json"
	"sort"
)

// Tags is a set of message tags.
type Tags map[string]struct{}

func NewTags(tags ...string) Tags {
	out := make(Tags, len(tags))
	for _, tag := range tags {
		out[tag] = struct{}{}
	}
	return out
}

func (t Tags) Has(tag string) bool {
	_, ok := t[tag]
	return ok
}

func (t Tags) Add(tags ...string) {
	for _, tag := range tags {
		t[tag] = struct{}{}
	}
}

func (t Tags) Remove(tag string) {
	delete(t, tag)
}

func (t Tags) Clone() Tags {
	out := make(Tags, len(t))
	for tag := range t {
		out[tag] = struct{}{}
	}
	return out
}

func (t Tags) Equal(other Tags) bool {
	if len(t) != len(other) {
		return false
	}
	for tag := range t {
		if !other.Has(tag) {
			return false
		}
	}
	return true
}

// Intersects reports whether t and other share at least one tag.
func (t Tags) Intersects(other Tags) bool {
	for tag := range t {
		if other.Has(tag) {
			return true
		}
	}
	return false
}

// SubsetOf reports whether every tag in t is present in other.
func (t Tags) SubsetOf(other Tags) bool {
	for tag := range t {
		if !other.Has(tag) {
			return false
		}
	}
	return true
}

// Sorted returns the tags in lexical order.
func (t Tags) Sorted() []string {
	out := make([]string, 0, len(t))
	for tag := range t {
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}

func (t Tags) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Sorted())
}

func (t *Tags) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	*t = NewTags(list...)
	return nil
}

func (t Tags) MarshalYAML() (any, error) {
	return t.Sorted(), nil
}
