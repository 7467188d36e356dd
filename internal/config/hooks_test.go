package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/DerianAndre/aidd.md-sub000/internal/hooks"
)

func TestDefaultHooksConfig(t *testing.T) {
	cfg := DefaultHooksConfig()

	if !cfg.Enabled {
		t.Error("default config should be enabled")
	}
	if cfg.AnalyzeEvery != 0 || cfg.PruneEvery != 0 {
		t.Errorf("default cadences should stay zero (no override), got %d/%d",
			cfg.AnalyzeEvery, cfg.PruneEvery)
	}
	if len(cfg.Subscribers) != 5 {
		t.Fatalf("expected 5 subscriber toggles, got %d", len(cfg.Subscribers))
	}
	for name, enabled := range cfg.Subscribers {
		if !enabled {
			t.Errorf("subscriber %s should default to enabled", name)
		}
	}
}

func TestLoadHooksConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadHooksConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("missing file should not error, got %v", err)
	}
	if !cfg.Enabled || len(cfg.Subscribers) != 5 {
		t.Errorf("missing file should yield defaults, got %+v", cfg)
	}
}

func TestLoadHooksConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hooks.yaml")
	content := `enabled: true
analyze_every: 3
subscribers:
  evolution-auto-prune: false
  pattern-auto-detect: true
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadHooksConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.AnalyzeEvery != 3 {
		t.Errorf("AnalyzeEvery = %d, want 3", cfg.AnalyzeEvery)
	}
	if cfg.PruneEvery != 0 {
		t.Errorf("PruneEvery = %d, want 0 (keep default)", cfg.PruneEvery)
	}
	if cfg.Subscribers[hooks.SubscriberAutoPrune] {
		t.Error("evolution-auto-prune should be off")
	}
	if !cfg.Subscribers[hooks.SubscriberPatternAutoDetect] {
		t.Error("pattern-auto-detect should be on")
	}
}

func TestLoadHooksConfigRejectsBadInput(t *testing.T) {
	dir := t.TempDir()

	badYAML := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(badYAML, []byte("enabled: [not a bool"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadHooksConfig(badYAML); err == nil {
		t.Error("malformed YAML should error")
	}

	negative := filepath.Join(dir, "negative.yaml")
	if err := os.WriteFile(negative, []byte("enabled: true\nanalyze_every: -1\n"), 0644); err != nil {
		t.Fatal(err)
	}
	_, err := LoadHooksConfig(negative)
	if err == nil || !strings.Contains(err.Error(), "analyze_every") {
		t.Errorf("negative cadence should error, got %v", err)
	}
}

func TestTogglesMasterSwitch(t *testing.T) {
	cfg := &HooksConfig{
		Enabled: false,
		Subscribers: map[string]bool{
			hooks.SubscriberFeedbackLoop: true,
		},
	}

	toggles := cfg.Toggles()
	if len(toggles) != 5 {
		t.Fatalf("master-off should toggle all 5 subscribers, got %d", len(toggles))
	}
	for name, enabled := range toggles {
		if enabled {
			t.Errorf("subscriber %s should be off when master switch is off", name)
		}
	}

	cfg.Enabled = true
	toggles = cfg.Toggles()
	if !toggles[hooks.SubscriberFeedbackLoop] {
		t.Error("explicit toggle should survive when master switch is on")
	}
	if _, present := toggles[hooks.SubscriberAutoPrune]; present {
		t.Error("unlisted subscribers should be absent, leaving them enabled")
	}
}

func TestSaveDefaultHooksConfigRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hooks.yaml")
	if err := SaveDefaultHooksConfig(path); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	cfg, err := LoadHooksConfig(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	want := DefaultHooksConfig()
	if cfg.Enabled != want.Enabled || cfg.AnalyzeEvery != want.AnalyzeEvery ||
		cfg.PruneEvery != want.PruneEvery || len(cfg.Subscribers) != len(want.Subscribers) {
		t.Errorf("round trip mismatch: got %+v, want %+v", cfg, want)
	}
}
