package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show engine status",
	Long: `Display an overview of the engine: session counts, evolution candidate
counts by status, pattern totals, the framework views epoch, and the state of
every hook subscriber.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		report, err := eng.Status(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to get status: %v\n", err)
			os.Exit(1)
		}

		cyan := color.New(color.FgCyan).SprintFunc()
		green := color.New(color.FgGreen).SprintFunc()
		yellow := color.New(color.FgYellow).SprintFunc()
		red := color.New(color.FgRed).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()

		fmt.Printf("\n%s Sessions\n", cyan("▸"))
		fmt.Printf("  Total: %d  Active: %s  Completed: %d\n",
			report.Sessions.Total, yellow(fmt.Sprintf("%d", report.Sessions.Active)), report.Sessions.Completed)
		for _, session := range report.Recent {
			state := green("ended")
			if session.Active() {
				state = yellow("active")
			}
			label := session.Name
			if label == "" {
				label = session.Input
			}
			fmt.Printf("  %s  %-8s %s %s\n", session.ID, state, session.Branch, gray(label))
		}

		fmt.Printf("\n%s Evolution candidates\n", cyan("▸"))
		fmt.Printf("  Pending: %s  Drafted: %s  Approved: %d  Rejected: %d  Auto-applied: %d\n",
			yellow(fmt.Sprintf("%d", report.Evolution.Pending)),
			yellow(fmt.Sprintf("%d", report.Evolution.Drafted)),
			report.Evolution.Approved, report.Evolution.Rejected, report.Evolution.AutoApplied)

		fmt.Printf("\n%s Patterns\n", cyan("▸"))
		fmt.Printf("  Total: %d  Active: %d  Detections: %d  False positives: %d\n",
			report.Patterns.Total, report.Patterns.Active,
			report.Patterns.Detections, report.Patterns.FalsePositives)

		fmt.Printf("\n%s Framework views epoch: %d\n", cyan("▸"), report.ViewsEpoch)

		fmt.Printf("\n%s Hook subscribers\n", cyan("▸"))
		for _, sub := range report.Subscribers {
			marker := green("✓")
			note := ""
			if sub.Disabled {
				marker = red("⊗")
				note = red(fmt.Sprintf("  tripped after %d failures", sub.ConsecutiveFailures))
			} else if !sub.Enabled {
				marker = yellow("–")
				note = yellow("  disabled by config")
			}
			fmt.Printf("  %s %-26s on %s%s\n", marker, sub.Name, sub.Kind, note)
		}
		fmt.Println()
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
