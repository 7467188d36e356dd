package config

import (
	"strings"
	"testing"
)

// engineEnvKeys is every variable EngineConfigFromEnv reads. Tests clear them
// all so ambient environment never leaks in.
var engineEnvKeys = []string{
	"AIDD_DATA_DIR",
	"AIDD_DATABASE_PATH",
	"AIDD_FRAMEWORK_DIR",
	"AIDD_HOOK_TIMEOUT_SECONDS",
	"AIDD_ANALYZE_EVERY",
	"AIDD_PRUNE_EVERY",
	"AIDD_HOOKS_ENABLED",
}

func clearEngineEnv(t *testing.T) {
	t.Helper()
	for _, key := range engineEnvKeys {
		t.Setenv(key, "")
	}
}

func TestEngineConfigFromEnv(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		wantErr string
		check   func(t *testing.T, cfg EngineConfig)
	}{
		{
			name:    "no environment variables uses defaults",
			envVars: map[string]string{},
			check: func(t *testing.T, cfg EngineConfig) {
				if cfg != DefaultEngineConfig() {
					t.Errorf("cfg = %v, want defaults %v", cfg, DefaultEngineConfig())
				}
			},
		},
		{
			name: "valid custom configuration",
			envVars: map[string]string{
				"AIDD_DATA_DIR":             "/var/lib/aidd",
				"AIDD_DATABASE_PATH":        "/var/lib/aidd/memory.db",
				"AIDD_FRAMEWORK_DIR":        "docs/framework",
				"AIDD_HOOK_TIMEOUT_SECONDS": "30",
				"AIDD_ANALYZE_EVERY":        "3",
				"AIDD_PRUNE_EVERY":          "20",
				"AIDD_HOOKS_ENABLED":        "false",
			},
			check: func(t *testing.T, cfg EngineConfig) {
				if cfg.DataDir != "/var/lib/aidd" {
					t.Errorf("DataDir = %v, want /var/lib/aidd", cfg.DataDir)
				}
				if cfg.DatabasePath != "/var/lib/aidd/memory.db" {
					t.Errorf("DatabasePath = %v", cfg.DatabasePath)
				}
				if cfg.FrameworkDir != "docs/framework" {
					t.Errorf("FrameworkDir = %v", cfg.FrameworkDir)
				}
				if cfg.HookTimeoutSeconds != 30 {
					t.Errorf("HookTimeoutSeconds = %v, want 30", cfg.HookTimeoutSeconds)
				}
				if cfg.AnalyzeEvery != 3 {
					t.Errorf("AnalyzeEvery = %v, want 3", cfg.AnalyzeEvery)
				}
				if cfg.PruneEvery != 20 {
					t.Errorf("PruneEvery = %v, want 20", cfg.PruneEvery)
				}
				if cfg.HooksEnabled {
					t.Error("HooksEnabled = true, want false")
				}
			},
		},
		{
			name:    "malformed int is rejected",
			envVars: map[string]string{"AIDD_HOOK_TIMEOUT_SECONDS": "soon"},
			wantErr: "AIDD_HOOK_TIMEOUT_SECONDS",
		},
		{
			name:    "malformed bool is rejected",
			envVars: map[string]string{"AIDD_HOOKS_ENABLED": "yep"},
			wantErr: "AIDD_HOOKS_ENABLED",
		},
		{
			name:    "out of range value fails validation",
			envVars: map[string]string{"AIDD_HOOK_TIMEOUT_SECONDS": "0"},
			wantErr: "hook_timeout_seconds",
		},
		{
			name:    "cadence above range fails validation",
			envVars: map[string]string{"AIDD_ANALYZE_EVERY": "500"},
			wantErr: "analyze_every",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEngineEnv(t)
			for key, value := range tt.envVars {
				t.Setenv(key, value)
			}

			cfg, err := EngineConfigFromEnv()
			if tt.wantErr != "" {
				if err == nil {
					t.Fatalf("expected error containing %q, got nil", tt.wantErr)
				}
				if !strings.Contains(err.Error(), tt.wantErr) {
					t.Errorf("error = %v, want substring %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			tt.check(t, cfg)
		})
	}
}

func TestEngineConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(cfg *EngineConfig)
		want   string
	}{
		{"empty data dir", func(c *EngineConfig) { c.DataDir = "" }, "data_dir"},
		{"empty database path", func(c *EngineConfig) { c.DatabasePath = "" }, "database_path"},
		{"empty framework dir", func(c *EngineConfig) { c.FrameworkDir = "" }, "framework_dir"},
		{"timeout too large", func(c *EngineConfig) { c.HookTimeoutSeconds = 301 }, "hook_timeout_seconds"},
		{"prune cadence zero", func(c *EngineConfig) { c.PruneEvery = 0 }, "prune_every"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultEngineConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("expected error containing %q, got nil", tt.want)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want substring %q", err, tt.want)
			}
		})
	}

	if err := DefaultEngineConfig().Validate(); err != nil {
		t.Errorf("default config should validate, got %v", err)
	}
}

func TestEngineConfigString(t *testing.T) {
	s := DefaultEngineConfig().String()
	for _, want := range []string{".aidd", "framework", "AnalyzeEvery: 5", "PruneEvery: 10"} {
		if !strings.Contains(s, want) {
			t.Errorf("String() = %q, want substring %q", s, want)
		}
	}
}
