package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func execute(t *testing.T, ctx context.Context, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err = cmd.ExecuteContext(ctx)
	return out.String(), errOut.String(), err
}

func writeConfig(t *testing.T, doc string) string {
	t.Helper()
	dir := t.TempDir()
	logPath := filepath.Join(dir, "app.log")
	if err := os.WriteFile(logPath, nil, 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	path := filepath.Join(dir, "subpub.yaml")
	doc = strings.ReplaceAll(doc, "LOGFILE", logPath)
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const matchConfig = `
options:
  interval: 1
checks:
  - type: match
    options: {location: LOGFILE, pattern: ERROR}
actions:
  - type: log
    options: {for: {tags: new}}
engine:
  tick_resolution: 10ms
`

func TestVersionFlag(t *testing.T) {
	out, _, err := execute(t, context.Background(), "--version")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, version) {
		t.Fatalf("expected version in %q", out)
	}
}

func TestPluginsListsBasePack(t *testing.T) {
	out, _, err := execute(t, context.Background(), "plugins")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{"sources:", "base.flatfile", "base.kernel", "base.journal", "base.weight", "base.https", "base.yaml"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in plugin listing:\n%s", want, out)
		}
	}
}

func TestValidateAcceptsConfig(t *testing.T) {
	path := writeConfig(t, matchConfig)
	out, _, err := execute(t, context.Background(), "validate", "--config", path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "configuration OK: 1 check(s), 1 action(s), 1 source(s)") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestValidateReportsConfigurationErrorOnce(t *testing.T) {
	path := writeConfig(t, `
checks:
  - type: nosuchcheck
actions:
  - type: debug
`)
	_, stderr, err := execute(t, context.Background(), "validate", "-c", path)
	if err == nil {
		t.Fatal("expected an error")
	}
	if !errors.Is(err, errReported) {
		t.Fatalf("expected reported error, got %v", err)
	}
	if got := strings.Count(stderr, "invalid configuration"); got != 1 {
		t.Fatalf("expected one error log line, got %d:\n%s", got, stderr)
	}
	if !strings.Contains(stderr, "nosuchcheck") {
		t.Fatalf("expected the check name in %q", stderr)
	}
}

func TestValidateMissingConfig(t *testing.T) {
	_, stderr, err := execute(t, context.Background(), "validate", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	if !errors.Is(err, errReported) {
		t.Fatalf("expected reported error, got %v", err)
	}
	if !strings.Contains(stderr, "invalid configuration") {
		t.Fatalf("unexpected stderr %q", stderr)
	}
}

func TestRunStopsOnCancellation(t *testing.T) {
	path := writeConfig(t, matchConfig)
	logFile := filepath.Join(t.TempDir(), "subpub.json")

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	_, _, err := execute(t, ctx, "run", "--config", path, "--log", logFile)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	for _, want := range []string{"subpub starting", "subpub stopped"} {
		if !bytes.Contains(data, []byte(want)) {
			t.Fatalf("expected %q in log file:\n%s", want, data)
		}
	}
}

func TestRunUsesEnvironmentConfig(t *testing.T) {
	path := writeConfig(t, matchConfig)
	t.Setenv("SUBPUB_CONFIG", path)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if _, _, err := execute(t, ctx, "run", "-q"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestInitWritesStarterConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "subpub.yaml")

	out, _, err := execute(t, context.Background(), "init", "--config", path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, path) {
		t.Fatalf("unexpected output %q", out)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected config file: %v", err)
	}

	if _, _, err := execute(t, context.Background(), "init", "--config", path); err == nil {
		t.Fatal("expected refusal to overwrite")
	}
	if _, _, err := execute(t, context.Background(), "init", "--config", path, "--force"); err != nil {
		t.Fatalf("unexpected error with --force: %v", err)
	}
}
