package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var patternsCmd = &cobra.Command{
	Use:   "patterns",
	Short: "List detected failure patterns",
	Long: `Patterns are recurring failure modes mined from session observations.
Detection is automatic; reporting a false positive decays a pattern's
confidence and eventually deactivates it.

Examples:
  aidd patterns
  aidd patterns --all                 # include deactivated patterns
  aidd patterns fp 5a3c               # report a false positive`,
	Run: func(cmd *cobra.Command, args []string) {
		all, _ := cmd.Flags().GetBool("all")

		ctx := context.Background()
		patterns, err := store.ListPatterns(ctx, !all)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to list patterns: %v\n", err)
			os.Exit(1)
		}

		stats, err := store.GetPatternStats(ctx)
		if err == nil {
			fmt.Printf("%d patterns, %d active, %d detections, %d false positives\n\n",
				stats.Total, stats.Active, stats.Detections, stats.FalsePositives)
		}
		if len(patterns) == 0 {
			fmt.Println("No patterns detected yet.")
			return
		}

		green := color.New(color.FgGreen).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()
		for _, pattern := range patterns {
			state := green("active")
			if !pattern.Active {
				state = gray("inactive")
			}
			note := ""
			if pattern.FalsePositiveCount > 0 {
				note = gray(fmt.Sprintf("  %d false positives", pattern.FalsePositiveCount))
			}
			fmt.Printf("%s  %s  %s  %s%s\n",
				pattern.ID, confidenceLabel(pattern.Confidence), state, pattern.Pattern, note)
		}
	},
}

var patternsFPCmd = &cobra.Command{
	Use:   "fp <pattern-id>",
	Short: "Report a pattern detection as a false positive",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		pattern, err := eng.Evolution().ReportFalsePositive(ctx, args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		yellow := color.New(color.FgYellow).SprintFunc()
		state := "still active"
		if !pattern.Active {
			state = "deactivated"
		}
		fmt.Printf("%s Pattern %q decayed to %.0f, %s\n", yellow("⊘"), pattern.Pattern, pattern.Confidence, state)
	},
}

func init() {
	patternsCmd.Flags().Bool("all", false, "Include deactivated patterns")
	patternsCmd.AddCommand(patternsFPCmd)
	rootCmd.AddCommand(patternsCmd)
}
