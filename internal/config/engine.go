// Package config holds the engine tunables and the hooks.yaml loader. Every
// tunable has a default, an environment override under the AIDD_ prefix, and
// a validated range.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// EngineConfig holds the process-level engine configuration.
type EngineConfig struct {
	// DataDir is the engine's working directory: database, analysis dumps,
	// hooks.yaml.
	// Default: ".aidd"
	DataDir string

	// DatabasePath is the SQLite database file.
	// Default: ".aidd/memory.db"
	DatabasePath string

	// FrameworkDir is where approved drafts materialize.
	// Default: "framework"
	FrameworkDir string

	// HookTimeoutSeconds bounds each hook subscriber invocation.
	// Default: 5, Range: 1-300
	HookTimeoutSeconds int

	// AnalyzeEvery is the autonomous detector pass cadence in session ends.
	// Default: 5, Range: 1-100
	AnalyzeEvery int

	// PruneEvery is the retention pass cadence in session ends.
	// Default: 10, Range: 1-1000
	PruneEvery int

	// HooksEnabled is the master switch for the autonomous subscribers.
	// Default: true
	HooksEnabled bool
}

// DefaultEngineConfig returns the default engine configuration.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		DataDir:            ".aidd",
		DatabasePath:       ".aidd/memory.db",
		FrameworkDir:       "framework",
		HookTimeoutSeconds: 5,
		AnalyzeEvery:       5,
		PruneEvery:         10,
		HooksEnabled:       true,
	}
}

// Validate checks if the configuration has valid values.
func (c EngineConfig) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir cannot be empty")
	}
	if c.DatabasePath == "" {
		return fmt.Errorf("database_path cannot be empty")
	}
	if c.FrameworkDir == "" {
		return fmt.Errorf("framework_dir cannot be empty")
	}
	if c.HookTimeoutSeconds < 1 || c.HookTimeoutSeconds > 300 {
		return fmt.Errorf("hook_timeout_seconds must be between 1 and 300 (got %d)",
			c.HookTimeoutSeconds)
	}
	if c.AnalyzeEvery < 1 || c.AnalyzeEvery > 100 {
		return fmt.Errorf("analyze_every must be between 1 and 100 (got %d)", c.AnalyzeEvery)
	}
	if c.PruneEvery < 1 || c.PruneEvery > 1000 {
		return fmt.Errorf("prune_every must be between 1 and 1000 (got %d)", c.PruneEvery)
	}
	return nil
}

// String returns a human-readable representation of the config.
func (c EngineConfig) String() string {
	return fmt.Sprintf(
		"EngineConfig{DataDir: %s, DatabasePath: %s, FrameworkDir: %s, "+
			"HookTimeout: %ds, AnalyzeEvery: %d, PruneEvery: %d, HooksEnabled: %t}",
		c.DataDir, c.DatabasePath, c.FrameworkDir,
		c.HookTimeoutSeconds, c.AnalyzeEvery, c.PruneEvery, c.HooksEnabled,
	)
}

// EngineConfigFromEnv creates an EngineConfig from environment variables,
// falling back to defaults.
//
// Environment variables:
//   - AIDD_DATA_DIR: engine working directory (default: .aidd)
//   - AIDD_DATABASE_PATH: SQLite database file (default: .aidd/memory.db)
//   - AIDD_FRAMEWORK_DIR: approved-draft directory (default: framework)
//   - AIDD_HOOK_TIMEOUT_SECONDS: per-subscriber timeout (default: 5)
//   - AIDD_ANALYZE_EVERY: detector pass cadence in session ends (default: 5)
//   - AIDD_PRUNE_EVERY: retention pass cadence in session ends (default: 10)
//   - AIDD_HOOKS_ENABLED: master switch for autonomous subscribers (default: true)
//
// Returns an error if any environment variable has an invalid value.
func EngineConfigFromEnv() (EngineConfig, error) {
	cfg := DefaultEngineConfig()

	if err := parseEnvString("AIDD_DATA_DIR", &cfg.DataDir); err != nil {
		return cfg, err
	}
	if err := parseEnvString("AIDD_DATABASE_PATH", &cfg.DatabasePath); err != nil {
		return cfg, err
	}
	if err := parseEnvString("AIDD_FRAMEWORK_DIR", &cfg.FrameworkDir); err != nil {
		return cfg, err
	}
	if err := parseEnvInt("AIDD_HOOK_TIMEOUT_SECONDS", &cfg.HookTimeoutSeconds); err != nil {
		return cfg, err
	}
	if err := parseEnvInt("AIDD_ANALYZE_EVERY", &cfg.AnalyzeEvery); err != nil {
		return cfg, err
	}
	if err := parseEnvInt("AIDD_PRUNE_EVERY", &cfg.PruneEvery); err != nil {
		return cfg, err
	}
	if err := parseEnvBool("AIDD_HOOKS_ENABLED", &cfg.HooksEnabled); err != nil {
		return cfg, err
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid engine configuration from environment: %w", err)
	}
	return cfg, nil
}

// parseEnvInt parses an int from an environment variable.
func parseEnvInt(key string, dest *int) error {
	value := os.Getenv(key)
	if value == "" {
		return nil // Use default
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}

// parseEnvBool parses a bool from an environment variable.
func parseEnvBool(key string, dest *bool) error {
	value := os.Getenv(key)
	if value == "" {
		return nil // Use default
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}

// parseEnvString parses a string from an environment variable.
func parseEnvString(key string, dest *string) error {
	value := os.Getenv(key)
	if value == "" {
		return nil // Use default
	}
	*dest = value
	return nil
}
