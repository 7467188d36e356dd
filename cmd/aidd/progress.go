package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/DerianAndre/aidd.md-sub000/internal/types"
)

var progressCmd = &cobra.Command{
	Use:   "progress <session-id>",
	Short: "Show a session's lifecycle scorecard",
	Long: `Compute the lifecycle score for a session from its artifacts: one row per
phase with its effective weight, milestone bonuses, and the 0-100 total.

Examples:
  aidd progress 4f1c9b2a`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		progress, err := eng.Progress(ctx, args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to compute progress: %v\n", err)
			os.Exit(1)
		}

		cyan := color.New(color.FgCyan).SprintFunc()
		green := color.New(color.FgGreen).SprintFunc()
		yellow := color.New(color.FgYellow).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()

		track := "full"
		if progress.IsFastTrack {
			track = "fast-track"
		}
		state := ""
		if progress.IsWip {
			state = yellow("  [wip]")
		}
		fmt.Printf("\n%s Lifecycle (%s)%s\n", cyan("▸"), track, state)

		for _, phase := range progress.Phases {
			var marker, note string
			switch phase.Status {
			case types.PhaseCompleted:
				marker = green("✓")
			case types.PhaseActive:
				marker = yellow("→")
			case types.PhaseSkipped:
				marker = gray("⤳")
				note = gray("  skipped")
			default:
				marker = gray("·")
			}
			fmt.Printf("  %s %-12s %3d/%d%s\n", marker, phase.ID, phase.Contribution, phase.Weight, note)
		}

		fmt.Printf("\n%s Milestones\n", cyan("▸"))
		for _, milestone := range progress.Milestones {
			marker := gray("·")
			points := fmt.Sprintf("+%d", milestone.Points)
			if milestone.Earned {
				marker = green("✓")
				points = green(points)
			} else {
				points = gray(points)
			}
			fmt.Printf("  %s %-12s %s\n", marker, milestone.Artifact, points)
		}

		fmt.Printf("\n  Score: %s\n\n", scoreColor(progress.Score))
	},
}

// scoreColor grades the lifecycle score the way review surfaces grade
// candidate confidence.
func scoreColor(score int) string {
	s := fmt.Sprintf("%d/100", score)
	switch {
	case score >= 80:
		return color.New(color.FgGreen, color.Bold).Sprint(s)
	case score >= 50:
		return color.New(color.FgYellow).Sprint(s)
	default:
		return color.New(color.FgRed).Sprint(s)
	}
}

func init() {
	rootCmd.AddCommand(progressCmd)
}
