package config

import (
	"math"
	"sort"
	"time"
)

// Options is a flat bag of plugin or global settings as decoded from YAML.
type Options map[string]any

// Merge layers options left to right. A key present in a later layer replaces
// the same key from earlier layers wholesale; nested maps and lists are not
// merged. The inputs are never modified.
func Merge(layers ...Options) Options {
	size := 0
	for _, layer := range layers {
		size += len(layer)
	}
	out := make(Options, size)
	for _, layer := range layers {
		for key, value := range layer {
			out[key] = value
		}
	}
	return out
}

func (o Options) Clone() Options {
	return Merge(o)
}

func (o Options) Has(key string) bool {
	_, ok := o[key]
	return ok
}

// Missing returns the keys from required that o does not carry, sorted.
func (o Options) Missing(required ...string) []string {
	var missing []string
	for _, key := range required {
		if _, ok := o[key]; !ok {
			missing = append(missing, key)
		}
	}
	sort.Strings(missing)
	return missing
}

// Require fails with an *Error naming every absent key.
func (o Options) Require(required ...string) error {
	if missing := o.Missing(required...); len(missing) > 0 {
		return Errorf("options", "missing required config attributes: %v", missing)
	}
	return nil
}

func (o Options) String(key, fallback string) (string, error) {
	raw, ok := o[key]
	if !ok || raw == nil {
		return fallback, nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", Errorf("options", "%s: expected string, got %T", key, raw)
	}
	return s, nil
}

func (o Options) Int(key string, fallback int) (int, error) {
	raw, ok := o[key]
	if !ok || raw == nil {
		return fallback, nil
	}
	n, ok := ToInt(raw)
	if !ok {
		return 0, Errorf("options", "%s: expected integer, got %T", key, raw)
	}
	return n, nil
}

func (o Options) Bool(key string, fallback bool) (bool, error) {
	raw, ok := o[key]
	if !ok || raw == nil {
		return fallback, nil
	}
	b, ok := raw.(bool)
	if !ok {
		return false, Errorf("options", "%s: expected boolean, got %T", key, raw)
	}
	return b, nil
}

// Duration accepts whole seconds as an integer or a Go duration string.
func (o Options) Duration(key string, fallback time.Duration) (time.Duration, error) {
	raw, ok := o[key]
	if !ok || raw == nil {
		return fallback, nil
	}
	switch v := raw.(type) {
	case time.Duration:
		return v, nil
	case string:
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, Errorf("options", "%s: %v", key, err)
		}
		return d, nil
	}
	if n, ok := ToInt(raw); ok {
		return time.Duration(n) * time.Second, nil
	}
	return 0, Errorf("options", "%s: expected seconds or duration, got %T", key, raw)
}

// Strings accepts a single string or a list of strings.
func (o Options) Strings(key string) ([]string, error) {
	raw, ok := o[key]
	if !ok || raw == nil {
		return nil, nil
	}
	list, ok := ToStrings(raw)
	if !ok {
		return nil, Errorf("options", "%s: expected string or list of strings, got %v", key, raw)
	}
	return list, nil
}

// ToInt converts YAML-decoded integer values. Floats are rejected even when
// integral.
func ToInt(raw any) (int, bool) {
	switch v := raw.(type) {
	case int:
		return v, true
	case int8:
		return int(v), true
	case int16:
		return int(v), true
	case int32:
		return int(v), true
	case int64:
		return int(v), true
	case uint:
		return int(v), true
	case uint8:
		return int(v), true
	case uint16:
		return int(v), true
	case uint32:
		return int(v), true
	case uint64:
		if v > math.MaxInt64 {
			return 0, false
		}
		return int(v), true
	}
	return 0, false
}

// ToFloat converts any YAML-decoded number.
func ToFloat(raw any) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	}
	if n, ok := ToInt(raw); ok {
		return float64(n), true
	}
	return 0, false
}

// ToStrings converts a string or a list holding only strings.
func ToStrings(raw any) ([]string, bool) {
	switch v := raw.(type) {
	case string:
		return []string{v}, true
	case []string:
		return append([]string(nil), v...), true
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	}
	return nil, false
}

// ToOptions converts a decoded YAML mapping with string keys.
func ToOptions(raw any) (Options, bool) {
	switch v := raw.(type) {
	case Options:
		return v, true
	case map[string]any:
		return Options(v), true
	case map[any]any:
		out := make(Options, len(v))
		for key, value := range v {
			s, ok := key.(string)
			if !ok {
				return nil, false
			}
			out[s] = value
		}
		return out, true
	}
	return nil, false
}
