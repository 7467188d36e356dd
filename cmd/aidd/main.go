package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/DerianAndre/aidd.md-sub000/internal/config"
	"github.com/DerianAndre/aidd.md-sub000/internal/engine"
	"github.com/DerianAndre/aidd.md-sub000/internal/storage"
)

var rootCmd = &cobra.Command{
	Use:   "aidd",
	Short: "Session lifecycle compliance and framework evolution engine",
	Long: `aidd tracks AI-assisted coding sessions against a six-phase delivery
lifecycle, scores their documentation discipline, drafts the artifacts they
skipped, and mines finished sessions for framework improvements.

Run 'aidd init' once per workspace, then 'aidd start' to open a session.`,
	PersistentPreRun:  bootstrap,
	PersistentPostRun: teardown,
}

// Shared by every command. bootstrap fills these before a command's Run
// fires; commands on the skip list (init, help) leave them nil.
var (
	engineCfg config.EngineConfig
	hooksCfg  *config.HooksConfig
	store     storage.Storage
	eng       *engine.Engine
)

// bootstrap loads configuration and opens the database and engine. Commands
// that must work before the workspace exists skip it.
func bootstrap(cmd *cobra.Command, args []string) {
	switch cmd.Name() {
	case "init", "help", "completion":
		return
	}

	var err error
	engineCfg, err = config.EngineConfigFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	hooksCfg, err = config.LoadHooksConfig(filepath.Join(engineCfg.DataDir, "hooks.yaml"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if !engineCfg.HooksEnabled {
		hooksCfg.Enabled = false
	}

	// hooks.yaml cadences win over the environment when both are set.
	analyzeEvery := engineCfg.AnalyzeEvery
	if hooksCfg.AnalyzeEvery > 0 {
		analyzeEvery = hooksCfg.AnalyzeEvery
	}
	pruneEvery := engineCfg.PruneEvery
	if hooksCfg.PruneEvery > 0 {
		pruneEvery = hooksCfg.PruneEvery
	}

	ctx := context.Background()
	store, err = storage.NewStorage(ctx, &storage.Config{Path: engineCfg.DatabasePath})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to open database at %s: %v\n", engineCfg.DatabasePath, err)
		fmt.Fprintf(os.Stderr, "Run 'aidd init' to set up this workspace.\n")
		os.Exit(1)
	}

	eng, err = engine.New(&engine.Config{
		Store:        store,
		DataDir:      engineCfg.DataDir,
		FrameworkDir: engineCfg.FrameworkDir,
		HookTimeout:  time.Duration(engineCfg.HookTimeoutSeconds) * time.Second,
		Subscribers:  hooksCfg.Toggles(),
		AnalyzeEvery: analyzeEvery,
		PruneEvery:   pruneEvery,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to initialize engine: %v\n", err)
		os.Exit(1)
	}
}

func teardown(cmd *cobra.Command, args []string) {
	if store != nil {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to close database: %v\n", err)
		}
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
