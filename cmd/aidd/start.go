package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/DerianAndre/aidd.md-sub000/internal/types"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Open a new session",
	Long: `Register a new capture session on the given branch.

Fast-track sessions carry a reduced documentation requirement: plan, checklist
and retro instead of the full set. Skipped phases redistribute their lifecycle
weight onto execution.

Examples:
  aidd start --branch feat/login
  aidd start --branch fix/flaky-test --fast-track --name "unflake CI"
  aidd start --branch chore/deps --skip brainstorm --skip review`,
	Run: func(cmd *cobra.Command, args []string) {
		branch, _ := cmd.Flags().GetString("branch")
		name, _ := cmd.Flags().GetString("name")
		input, _ := cmd.Flags().GetString("input")
		fastTrack, _ := cmd.Flags().GetBool("fast-track")
		skip, _ := cmd.Flags().GetStringSlice("skip")
		provider, _ := cmd.Flags().GetString("provider")
		model, _ := cmd.Flags().GetString("model")

		var skippable []types.PhaseID
		for _, s := range skip {
			phase := types.PhaseID(s).Canonical()
			if !phase.IsValid() {
				fmt.Fprintf(os.Stderr, "Error: unknown phase %q (brainstorm, plan, execute, test, review, ship)\n", s)
				os.Exit(1)
			}
			skippable = append(skippable, phase)
		}

		session := &types.Session{
			Branch: branch,
			Name:   name,
			Input:  input,
			AIProvider: types.AIProvider{
				Provider: provider,
				Model:    model,
				Client:   "cli",
			},
			TaskClassification: types.TaskClassification{
				FastTrack:       fastTrack,
				SkippableStages: skippable,
			},
		}

		ctx := context.Background()
		if err := eng.StartSession(ctx, session); err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to start session: %v\n", err)
			os.Exit(1)
		}

		green := color.New(color.FgGreen).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()
		fmt.Printf("%s Session %s started on %s\n", green("✓"), session.ID, session.Branch)
		fmt.Println(gray(fmt.Sprintf("  aidd progress %s     lifecycle score", session.ID)))
		fmt.Println(gray(fmt.Sprintf("  aidd complete %s     close it out", session.ID)))
	},
}

func init() {
	startCmd.Flags().StringP("branch", "b", "", "Branch the session works on (required)")
	startCmd.Flags().String("name", "", "Human-readable session name")
	startCmd.Flags().String("input", "", "The task prompt or description")
	startCmd.Flags().Bool("fast-track", false, "Mark the session fast-track (reduced documentation set)")
	startCmd.Flags().StringSlice("skip", nil, "Lifecycle phase to skip (repeatable)")
	startCmd.Flags().String("provider", "", "AI provider, e.g. anthropic")
	startCmd.Flags().String("model", "", "Model display name")
	rootCmd.AddCommand(startCmd)
}
