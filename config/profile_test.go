package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func TestStringSliceUnmarshalScalar(t *testing.T) {
	var slice StringSlice
	if err := slice.UnmarshalYAML(newScalarNode(" main ")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(slice) != 1 || slice[0] != "main" {
		t.Fatalf("expected [main], got %#v", []string(slice))
	}
}

func TestStringSliceUnmarshalSequence(t *testing.T) {
	var slice StringSlice
	if err := slice.UnmarshalYAML(newSequenceNode(" main ", "", "init")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := []string{"main", "init"}
	if len(slice) != len(expected) {
		t.Fatalf("expected %d entries, got %d", len(expected), len(slice))
	}
	for i, v := range expected {
		if slice[i] != v {
			t.Fatalf("expected element %d to be %q, got %q", i, v, slice[i])
		}
	}
}

func TestApplyProfileLoadsNamedProfile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeConfig(t, path, `profiles:
  soak:
    shards: 128
    sweep_interval: 250ms
    notifications: false
    preload:
      - main
    workers: 25
    verbose: true
`)

	cmd := &cobra.Command{Use: "test"}
	cfg := BindFlags(cmd)
	cfg.ConfigPath = path
	cfg.Profile = "soak"
	if err := cmd.ParseFlags([]string{}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	if err := ApplyProfile(cfg, cmd); err != nil {
		t.Fatalf("ApplyProfile error: %v", err)
	}

	if cfg.Shards != 128 {
		t.Fatalf("expected shards 128, got %d", cfg.Shards)
	}
	if cfg.SweepInterval != 250*time.Millisecond {
		t.Fatalf("expected sweep interval 250ms, got %s", cfg.SweepInterval)
	}
	if cfg.Notifications {
		t.Fatalf("expected notifications disabled by profile")
	}
	if len(cfg.Preload) != 1 || cfg.Preload[0] != "main" {
		t.Fatalf("expected preload [main], got %#v", cfg.Preload)
	}
	if cfg.Workers != 25 {
		t.Fatalf("expected workers 25, got %d", cfg.Workers)
	}
	if !cfg.Verbose {
		t.Fatalf("expected verbose true")
	}
	if cfg.ConfigPath != path {
		t.Fatalf("expected config path %s, got %s", path, cfg.ConfigPath)
	}
}

func TestApplyProfileRespectsFlagOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeConfig(t, path, `profiles:
  soak:
    rounds: 4
    workers: 10
`)
	cmd := &cobra.Command{Use: "test"}
	cfg := BindFlags(cmd)
	cfg.ConfigPath = path
	cfg.Profile = "soak"
	if err := cmd.ParseFlags([]string{}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	if err := cmd.Flags().Set("workers", "77"); err != nil {
		t.Fatalf("set workers flag: %v", err)
	}

	if err := ApplyProfile(cfg, cmd); err != nil {
		t.Fatalf("ApplyProfile error: %v", err)
	}

	if cfg.Workers != 77 {
		t.Fatalf("expected workers to remain 77, got %d", cfg.Workers)
	}
	if cfg.Rounds != 4 {
		t.Fatalf("expected rounds 4, got %d", cfg.Rounds)
	}
}

func TestApplyProfileUsesDefaultProfile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeConfig(t, path, `profiles:
  default:
    format: json
    amortized_sweep_rate: 0.5
`)
	cmd := &cobra.Command{Use: "test"}
	cfg := BindFlags(cmd)
	cfg.ConfigPath = path
	if err := cmd.ParseFlags([]string{}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	if err := ApplyProfile(cfg, cmd); err != nil {
		t.Fatalf("ApplyProfile error: %v", err)
	}

	if cfg.Format != FormatJSON {
		t.Fatalf("expected format json, got %s", cfg.Format)
	}
	if cfg.AmortizedSweepRate != 0.5 {
		t.Fatalf("expected amortized sweep rate 0.5, got %v", cfg.AmortizedSweepRate)
	}
}

func TestApplyProfileUnknownProfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfig(t, path, "profiles:\n  default:\n    rounds: 2\n")
	cmd := &cobra.Command{Use: "test"}
	cfg := BindFlags(cmd)
	cfg.ConfigPath = path
	cfg.Profile = "missing"
	if err := cmd.ParseFlags([]string{}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	if err := ApplyProfile(cfg, cmd); err == nil {
		t.Fatalf("expected error for unknown profile")
	}
}

func TestApplyProfileMissingConfigReturnsError(t *testing.T) {
	cmd := &cobra.Command{Use: "test"}
	cfg := BindFlags(cmd)
	cfg.ConfigPath = filepath.Join(t.TempDir(), "missing.yaml")
	cfg.Profile = "quick"
	if err := cmd.ParseFlags([]string{}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	if err := ApplyProfile(cfg, cmd); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}

func writeConfig(t *testing.T, path, contents string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func newScalarNode(values ...string) *yaml.Node {
	if len(values) == 0 {
		return &yaml.Node{Kind: yaml.ScalarNode}
	}
	return &yaml.Node{Kind: yaml.ScalarNode, Value: values[0]}
}

func newSequenceNode(values ...string) *yaml.Node {
	node := &yaml.Node{Kind: yaml.SequenceNode}
	for _, v := range values {
		node.Content = append(node.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: v})
	}
	return node
}
