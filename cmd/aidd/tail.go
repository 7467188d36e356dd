package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/DerianAndre/aidd.md-sub000/internal/types"
)

var tailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Show the evolution log, optionally following it",
	Long: `Print the newest evolution log entries. With --follow, keep polling for
new entries until interrupted; useful while sessions complete in another
terminal and the autonomous passes fire.

Examples:
  aidd tail                # last 20 entries
  aidd tail -n 50
  aidd tail -f             # follow until Ctrl-C`,
	Run: func(cmd *cobra.Command, args []string) {
		limit, _ := cmd.Flags().GetInt("lines")
		follow, _ := cmd.Flags().GetBool("follow")

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		entries, err := store.GetRecentEvolutionLog(ctx, limit)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to read evolution log: %v\n", err)
			os.Exit(1)
		}
		var cursor int64
		for _, entry := range entries {
			displayLogEntry(entry)
			cursor = entry.ID
		}
		if !follow {
			return
		}

		gray := color.New(color.FgHiBlack).SprintFunc()
		fmt.Println(gray("Following evolution log, Ctrl-C to stop..."))

		limiter := rate.NewLimiter(rate.Every(time.Second), 1)
		for {
			if err := limiter.Wait(ctx); err != nil {
				fmt.Println()
				return
			}
			fresh, err := store.GetEvolutionLogAfter(ctx, cursor, 100)
			if err != nil {
				fmt.Fprintf(os.Stderr, "warning: poll failed: %v\n", err)
				continue
			}
			for _, entry := range fresh {
				displayLogEntry(entry)
				cursor = entry.ID
			}
		}
	},
}

func displayLogEntry(entry *types.EvolutionLogEntry) {
	gray := color.New(color.FgHiBlack).SprintFunc()

	var action string
	switch entry.Action {
	case types.ActionAutoApplied:
		action = color.New(color.FgGreen, color.Bold).Sprint(string(entry.Action))
	case types.ActionDrafted:
		action = color.New(color.FgGreen).Sprint(string(entry.Action))
	case types.ActionPending:
		action = color.New(color.FgYellow).Sprint(string(entry.Action))
	case types.ActionReverted:
		action = color.New(color.FgRed).Sprint(string(entry.Action))
	case types.ActionRejected:
		action = color.New(color.FgRed).Sprint(string(entry.Action))
	default:
		action = string(entry.Action)
	}

	fmt.Printf("%s  %-14s %3.0f  %s %s\n",
		gray(entry.Timestamp.Format("15:04:05")), action, entry.Confidence,
		entry.Title, gray(entry.CandidateID))
}

func init() {
	tailCmd.Flags().IntP("lines", "n", 20, "Number of entries to show initially")
	tailCmd.Flags().BoolP("follow", "f", false, "Keep polling for new entries")
	rootCmd.AddCommand(tailCmd)
}
