package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/DerianAndre/aidd.md-sub000/internal/hooks"
)

// HooksConfig represents the subscriber configuration loaded from hooks.yaml.
type HooksConfig struct {
	// Enabled is the master switch. When false every subscriber is off
	// regardless of its own toggle.
	Enabled bool `yaml:"enabled"`

	// AnalyzeEvery overrides the detector pass cadence. Zero keeps the
	// default.
	AnalyzeEvery int `yaml:"analyze_every,omitempty"`

	// PruneEvery overrides the retention pass cadence. Zero keeps the
	// default.
	PruneEvery int `yaml:"prune_every,omitempty"`

	// Subscribers maps subscriber names to their toggles. Absent names stay
	// enabled.
	Subscribers map[string]bool `yaml:"subscribers"`
}

// DefaultHooksConfig returns the default subscriber configuration: everything
// on, cadences left at zero so the environment layer keeps control until an
// operator sets them here explicitly.
func DefaultHooksConfig() *HooksConfig {
	return &HooksConfig{
		Enabled: true,
		Subscribers: map[string]bool{
			hooks.SubscriberPatternAutoDetect:   true,
			hooks.SubscriberPatternModelProfile: true,
			hooks.SubscriberAutoAnalyze:         true,
			hooks.SubscriberFeedbackLoop:        true,
			hooks.SubscriberAutoPrune:           true,
		},
	}
}

// LoadHooksConfig loads subscriber configuration from a YAML file. A missing
// file is not an error: the engine runs with defaults until `aidd init`
// writes one.
func LoadHooksConfig(path string) (*HooksConfig, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return DefaultHooksConfig(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading hooks config: %w", err)
	}

	var config HooksConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parsing hooks config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid hooks config %s: %w", path, err)
	}
	return &config, nil
}

// Validate checks the cadence overrides.
func (c *HooksConfig) Validate() error {
	if c.AnalyzeEvery < 0 {
		return fmt.Errorf("analyze_every cannot be negative (got %d)", c.AnalyzeEvery)
	}
	if c.PruneEvery < 0 {
		return fmt.Errorf("prune_every cannot be negative (got %d)", c.PruneEvery)
	}
	return nil
}

// Toggles flattens the config into the per-subscriber map the engine
// consumes. The master switch wins over individual toggles.
func (c *HooksConfig) Toggles() map[string]bool {
	all := []string{
		hooks.SubscriberPatternAutoDetect,
		hooks.SubscriberPatternModelProfile,
		hooks.SubscriberAutoAnalyze,
		hooks.SubscriberFeedbackLoop,
		hooks.SubscriberAutoPrune,
	}

	out := make(map[string]bool, len(all))
	if !c.Enabled {
		for _, name := range all {
			out[name] = false
		}
		return out
	}
	for name, enabled := range c.Subscribers {
		out[name] = enabled
	}
	return out
}

// SaveDefaultHooksConfig writes the default configuration to a file.
func SaveDefaultHooksConfig(path string) error {
	config := DefaultHooksConfig()

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("marshaling hooks config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing hooks config: %w", err)
	}
	return nil
}
