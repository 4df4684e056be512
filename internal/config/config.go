package config

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	envConfigPath     = "SUBPUB_CONFIG"
	DefaultConfigPath = "~/.subpub"
)

// DefaultInterval applies to every check unless the global or local options
// override it.
const DefaultInterval = 10

type Config struct {
	Options Options      `yaml:"options"`
	Checks  []PluginSpec `yaml:"checks"`
	Actions []PluginSpec `yaml:"actions"`
	Engine  EngineConfig `yaml:"engine"`
}

// PluginSpec declares one check or action by plugin identifier.
type PluginSpec struct {
	Type    string  `yaml:"type"`
	Options Options `yaml:"options"`
}

type EngineConfig struct {
	TickResolution time.Duration `yaml:"tick_resolution"`
	MetricsAddr    string        `yaml:"metrics_addr"`
}

var requiredKeys = []string{"checks", "actions"}

// DefaultOptions returns the global options every configuration starts from.
func DefaultOptions() Options {
	return Options{"interval": DefaultInterval}
}

func Load(ctx context.Context, path string) (Config, error) {
	var cfg Config

	path, err := ExpandPath(path)
	if err != nil {
		return cfg, Wrap("load", err)
	}

	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return cfg, Wrap("load", fmt.Errorf("open config %q: %w", path, err))
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return cfg, Wrap("load", fmt.Errorf("read config %q: %w", path, err))
	}

	return Parse(data)
}

func LoadFromEnv(ctx context.Context) (Config, error) {
	path := os.Getenv(envConfigPath)
	if path == "" {
		path = DefaultConfigPath
	}
	return Load(ctx, path)
}

// Parse decodes a configuration document, checks the required top-level keys
// and layers the global options over DefaultOptions.
func Parse(data []byte) (Config, error) {
	var cfg Config

	var top map[string]any
	if err := yaml.Unmarshal(data, &top); err != nil {
		return cfg, Wrap("parse", err)
	}
	var missing []string
	for _, key := range requiredKeys {
		if _, ok := top[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return cfg, Errorf("parse", "missing required attribute(s): %s", strings.Join(missing, ", "))
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, Wrap("parse", err)
	}
	cfg.Options = Merge(DefaultOptions(), cfg.Options)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if len(c.Checks) == 0 {
		return Errorf("validate", "no checks loaded")
	}
	if len(c.Actions) == 0 {
		return Errorf("validate", "no actions loaded")
	}
	for i, spec := range c.Checks {
		if strings.TrimSpace(spec.Type) == "" {
			return Errorf("validate", "checks[%d]: type is required", i)
		}
	}
	for i, spec := range c.Actions {
		if strings.TrimSpace(spec.Type) == "" {
			return Errorf("validate", "actions[%d]: type is required", i)
		}
	}
	if c.Engine.TickResolution < 0 {
		return Errorf("validate", "engine.tick_resolution must not be negative")
	}
	return nil
}

// Effective layers the global options under spec's local options.
func (c Config) Effective(spec PluginSpec) Options {
	return Merge(c.Options, spec.Options)
}

// ExpandPath resolves a leading "~" to the current user's home directory.
func ExpandPath(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("expand ~: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
