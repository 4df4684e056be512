package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const sampleYAML = `
options:
  interval: 30
  degrade_calc: -1
checks:
  - type: kernel
    options:
      moniker: stable
      tags: [kernel]
  - type: acme.disk
actions:
  - type: debug
    options:
      name: console
      for:
        tags: new
engine:
  tick_resolution: 2s
  metrics_addr: 127.0.0.1:9311
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "subpub.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(context.Background(), writeConfig(t, sampleYAML))
	require.NoError(t, err)

	require.Len(t, cfg.Checks, 2)
	require.Equal(t, "kernel", cfg.Checks[0].Type)
	require.Equal(t, "acme.disk", cfg.Checks[1].Type)
	require.Len(t, cfg.Actions, 1)
	require.Equal(t, 2*time.Second, cfg.Engine.TickResolution)
	require.Equal(t, "127.0.0.1:9311", cfg.Engine.MetricsAddr)

	interval, err := cfg.Options.Int("interval", 0)
	require.NoError(t, err)
	require.Equal(t, 30, interval)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv(envConfigPath, writeConfig(t, sampleYAML))

	cfg, err := LoadFromEnv(context.Background())
	require.NoError(t, err)
	require.Equal(t, "console", cfg.Actions[0].Options["name"])
}

func TestParseAppliesDefaultInterval(t *testing.T) {
	cfg, err := Parse([]byte("checks: [{type: kernel}]\nactions: [{type: debug}]\n"))
	require.NoError(t, err)
	require.Equal(t, DefaultInterval, cfg.Options["interval"])
}

func TestParseMissingRequiredKeys(t *testing.T) {
	_, err := Parse([]byte("checks: [{type: kernel}]\n"))
	require.Error(t, err)
	require.True(t, IsConfigError(err))
	require.Contains(t, err.Error(), "actions")
}

func TestParseRejectsEmptySections(t *testing.T) {
	_, err := Parse([]byte("checks: []\nactions: [{type: debug}]\n"))
	require.True(t, IsConfigError(err))
	require.Contains(t, err.Error(), "no checks loaded")

	_, err = Parse([]byte("checks: [{options: {}}]\nactions: [{type: debug}]\n"))
	require.True(t, IsConfigError(err))
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(context.Background(), filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	require.True(t, IsConfigError(err))
}

func TestEffectiveLayersLocalOverGlobal(t *testing.T) {
	cfg, err := Parse([]byte(sampleYAML))
	require.NoError(t, err)

	eff := cfg.Effective(cfg.Checks[0])
	require.Equal(t, 30, eff["interval"])
	require.Equal(t, -1, eff["degrade_calc"])
	require.Equal(t, "stable", eff["moniker"])

	// global options are not polluted by the local layer
	require.False(t, cfg.Options.Has("moniker"))
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	got, err := ExpandPath("~/.subpub")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(home, ".subpub"), got)

	got, err = ExpandPath("/etc/subpub.yaml")
	require.NoError(t, err)
	require.Equal(t, "/etc/subpub.yaml", got)
}
