package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/DerianAndre/aidd.md-sub000/internal/types"
)

var feedbackCmd = &cobra.Command{
	Use:   "feedback <session-id> <positive|neutral|negative>",
	Short: "Record a verdict on a finished session",
	Long: `Attach your verdict to a session and apply it to every evolution candidate
the session contributed evidence to. Positive feedback raises candidate
confidence, negative feedback lowers it; the movement scales with how much
evidence a candidate has. Candidates dropping to 20 or below are deleted.

Examples:
  aidd feedback 4f1c9b2a positive
  aidd feedback 4f1c9b2a negative`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		result, err := eng.SubmitFeedback(ctx, args[0], types.Feedback(args[1]))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to record feedback: %v\n", err)
			os.Exit(1)
		}

		green := color.New(color.FgGreen).SprintFunc()
		red := color.New(color.FgRed).SprintFunc()
		fmt.Printf("%s Recorded %s feedback\n", green("✓"), result.Feedback)
		fmt.Printf("  Candidates matched: %d  adjusted: %d  deleted: %d\n",
			result.Matched, result.Adjusted, result.Deleted)
		for _, failure := range result.Failures {
			fmt.Printf("  %s %s\n", red("!"), failure)
		}
	},
}

func init() {
	rootCmd.AddCommand(feedbackCmd)
}
