package config

import (
	"fmt"
	"strconv"
	"strings"
)

var sizeUnitsOrdered = []struct {
	suffix     string
	multiplier int64
}{
	{"tib", 1024 * 1024 * 1024 * 1024},
	{"tb", 1000 * 1000 * 1000 * 1000},
	{"gib", 1024 * 1024 * 1024},
	{"gb", 1000 * 1000 * 1000},
	{"mib", 1024 * 1024},
	{"mb", 1000 * 1000},
	{"kib", 1024},
	{"kb", 1000},
	{"b", 1},
}

// ParseSize reads a byte count such as "512", "64KiB" or "1.5GB".
func ParseSize(value string, defaultBytes int64) (int64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return defaultBytes, nil
	}
	lower := strings.ToLower(value)
	for _, unit := range sizeUnitsOrdered {
		if strings.HasSuffix(lower, unit.suffix) {
			numStr := strings.TrimSpace(value[:len(value)-len(unit.suffix)])
			num, err := strconv.ParseFloat(numStr, 64)
			if err != nil || num < 0 {
				return 0, fmt.Errorf("parse size %q: invalid number", value)
			}
			return int64(num * float64(unit.multiplier)), nil
		}
	}
	num, err := strconv.ParseInt(value, 10, 64)
	if err != nil || num < 0 {
		return 0, fmt.Errorf("parse size %q: invalid number", value)
	}
	return num, nil
}

// Size accepts a byte count as an integer or a ParseSize string.
func (o Options) Size(key string, fallback int64) (int64, error) {
	raw, ok := o[key]
	if !ok || raw == nil {
		return fallback, nil
	}
	if n, ok := ToInt(raw); ok {
		if n < 0 {
			return 0, Errorf("options", "%s: size must not be negative", key)
		}
		return int64(n), nil
	}
	s, ok := raw.(string)
	if !ok {
		return 0, Errorf("options", "%s: expected size, got %T", key, raw)
	}
	n, err := ParseSize(s, fallback)
	if err != nil {
		return 0, Wrap("options", err)
	}
	return n, nil
}
