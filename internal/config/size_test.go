package config

import "testing"

func TestParseSize(t *testing.T) {
	tests := []struct {
		input    string
		expected int64
	}{
		{"1024", 1024},
		{"1KiB", 1024},
		{"2MiB", 2 * 1024 * 1024},
		{"1.5GB", int64(1.5 * 1000 * 1000 * 1000)},
		{"", 2048},
	}

	for _, tt := range tests {
		got, err := ParseSize(tt.input, 2048)
		if err != nil {
			t.Fatalf("ParseSize(%q) returned error: %v", tt.input, err)
		}
		if got != tt.expected {
			t.Fatalf("ParseSize(%q) = %d want %d", tt.input, got, tt.expected)
		}
	}

	for _, bad := range []string{"lots", "-1", "-2MiB", "MiB"} {
		if _, err := ParseSize(bad, 0); err == nil {
			t.Fatalf("ParseSize(%q) expected error", bad)
		}
	}
}

func TestOptionsSize(t *testing.T) {
	opts := Options{"int": 512, "text": "4KiB", "bad": true, "neg": -1}

	if got, err := opts.Size("int", 0); err != nil || got != 512 {
		t.Fatalf("Size(int) = %d, %v", got, err)
	}
	if got, err := opts.Size("text", 0); err != nil || got != 4096 {
		t.Fatalf("Size(text) = %d, %v", got, err)
	}
	if got, err := opts.Size("missing", 7); err != nil || got != 7 {
		t.Fatalf("Size(missing) = %d, %v", got, err)
	}
	for _, key := range []string{"bad", "neg"} {
		if _, err := opts.Size(key, 0); !IsConfigError(err) {
			t.Fatalf("Size(%s) expected configuration error, got %v", key, err)
		}
	}
}
