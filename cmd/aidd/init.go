package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/DerianAndre/aidd.md-sub000/internal/config"
	"github.com/DerianAndre/aidd.md-sub000/internal/storage"
	"github.com/DerianAndre/aidd.md-sub000/internal/types"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize an aidd workspace in the current directory",
	Long: `Create the data directory, the database, the hooks configuration, and
the framework directory tree.

Safe to run more than once: existing files are left alone.

Examples:
  aidd init                # set up ./.aidd and ./framework
  AIDD_DATA_DIR=/tmp/a aidd init`,
	Run: func(cmd *cobra.Command, args []string) {
		green := color.New(color.FgGreen).SprintFunc()
		yellow := color.New(color.FgYellow).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()

		cfg, err := config.EngineConfigFromEnv()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to create %s: %v\n", cfg.DataDir, err)
			os.Exit(1)
		}
		fmt.Printf("%s Data directory %s\n", green("✓"), cfg.DataDir)

		hooksPath := filepath.Join(cfg.DataDir, "hooks.yaml")
		if _, err := os.Stat(hooksPath); os.IsNotExist(err) {
			if err := config.SaveDefaultHooksConfig(hooksPath); err != nil {
				fmt.Fprintf(os.Stderr, "Error: failed to write %s: %v\n", hooksPath, err)
				os.Exit(1)
			}
			fmt.Printf("%s Hooks config %s\n", green("✓"), hooksPath)
		} else {
			fmt.Printf("%s Hooks config %s already exists, leaving it alone\n", yellow("•"), hooksPath)
		}

		// Opening the database creates the schema.
		ctx := context.Background()
		db, err := storage.NewStorage(ctx, &storage.Config{Path: cfg.DatabasePath})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to create database at %s: %v\n", cfg.DatabasePath, err)
			os.Exit(1)
		}
		if err := db.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to close database: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("%s Database %s\n", green("✓"), cfg.DatabasePath)

		categories := []types.DraftCategory{
			types.CategoryRules, types.CategoryKnowledge,
			types.CategorySkills, types.CategoryWorkflows,
		}
		for _, category := range categories {
			dir := filepath.Join(cfg.FrameworkDir, string(category))
			if err := os.MkdirAll(dir, 0755); err != nil {
				fmt.Fprintf(os.Stderr, "Error: failed to create %s: %v\n", dir, err)
				os.Exit(1)
			}
		}
		fmt.Printf("%s Framework directory %s\n", green("✓"), cfg.FrameworkDir)

		fmt.Println()
		fmt.Println(gray("Next steps:"))
		fmt.Println(gray("  aidd start --branch <branch>   open a session"))
		fmt.Println(gray("  aidd status                    engine overview"))
		fmt.Println(gray("  aidd repl                      interactive review"))
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
