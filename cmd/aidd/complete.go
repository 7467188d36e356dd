package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var completeCmd = &cobra.Command{
	Use:   "complete <session-id>",
	Short: "Close a session",
	Long: `End a session: missing required artifacts are drafted first, then the
session is marked terminal and the autonomous subscribers run (pattern
detection, periodic evolution analysis, pruning). A session can only be
completed once.

Examples:
  aidd complete 4f1c9b2a
  aidd feedback 4f1c9b2a positive   # verdict afterwards`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		result, err := eng.CompleteSession(ctx, args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to complete session: %v\n", err)
			os.Exit(1)
		}

		green := color.New(color.FgGreen).SprintFunc()
		yellow := color.New(color.FgYellow).SprintFunc()
		red := color.New(color.FgRed).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()

		for _, artifactType := range result.Remediation.Created {
			fmt.Printf("  %s drafted %s\n", green("+"), artifactType)
		}
		for _, artifactType := range result.Remediation.SkippedExisting {
			fmt.Printf("  %s %s already has a pending draft\n", yellow("="), artifactType)
		}
		for _, failure := range result.Remediation.Failures {
			fmt.Printf("  %s %s\n", red("!"), failure)
		}

		fmt.Printf("%s Session %s ended\n", green("✓"), result.Session.ID)

		if progress, err := eng.Progress(ctx, result.Session.ID); err == nil {
			fmt.Printf("  Lifecycle score: %s\n", scoreColor(progress.Score))
		}
		if result.Remediation.PendingAfter > 0 {
			fmt.Println(gray(fmt.Sprintf("  %d drafts pending review", result.Remediation.PendingAfter)))
		}
		fmt.Println(gray(fmt.Sprintf("  aidd feedback %s <positive|neutral|negative> records your verdict", result.Session.ID)))
	},
}

func init() {
	rootCmd.AddCommand(completeCmd)
}
