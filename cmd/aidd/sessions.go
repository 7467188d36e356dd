package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/DerianAndre/aidd.md-sub000/internal/types"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List sessions",
	Long: `List recorded sessions, newest first.

Examples:
  aidd sessions                       # last 20
  aidd sessions --active              # only sessions still in flight
  aidd sessions --branch feat/login
  aidd sessions show 4f1c9b2a
  aidd sessions delete 4f1c9b2a`,
	Run: func(cmd *cobra.Command, args []string) {
		limit, _ := cmd.Flags().GetInt("limit")
		activeOnly, _ := cmd.Flags().GetBool("active")
		branch, _ := cmd.Flags().GetString("branch")

		filter := types.SessionFilter{Limit: limit}
		if activeOnly {
			active := true
			filter.Active = &active
		}
		if branch != "" {
			filter.Branch = &branch
		}

		ctx := context.Background()
		sessions, err := store.ListSessions(ctx, filter)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to list sessions: %v\n", err)
			os.Exit(1)
		}
		if len(sessions) == 0 {
			fmt.Println("No sessions recorded.")
			return
		}

		green := color.New(color.FgGreen).SprintFunc()
		yellow := color.New(color.FgYellow).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()

		for _, session := range sessions {
			state := green("ended ")
			if session.Active() {
				state = yellow("active")
			}
			label := session.Name
			if label == "" {
				label = session.Input
			}
			fmt.Printf("%s  %s  %-20s %s\n", session.ID, state, session.Branch, gray(label))
		}
	},
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Show one session in full",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		session, err := store.GetSession(ctx, args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		cyan := color.New(color.FgCyan).SprintFunc()
		green := color.New(color.FgGreen).SprintFunc()
		yellow := color.New(color.FgYellow).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()

		state := green("ended")
		if session.Active() {
			state = yellow("active")
		}
		fmt.Printf("\n%s Session %s (%s)\n", cyan("▸"), session.ID, state)
		if session.Name != "" {
			fmt.Printf("  Name:       %s\n", session.Name)
		}
		fmt.Printf("  Branch:     %s\n", session.Branch)
		if session.Input != "" {
			fmt.Printf("  Task:       %s\n", session.Input)
		}
		if session.Output != "" {
			fmt.Printf("  Result:     %s\n", session.Output)
		}
		if session.AIProvider.Model != "" {
			fmt.Printf("  Model:      %s\n", session.AIProvider.Model)
		}
		fmt.Printf("  Started:    %s\n", session.StartedAt.Format(time.RFC3339))
		if session.EndedAt != nil {
			fmt.Printf("  Ended:      %s\n", session.EndedAt.Format(time.RFC3339))
		}
		if session.TaskClassification.FastTrack {
			fmt.Printf("  Track:      fast-track\n")
		}
		if len(session.TaskClassification.SkippableStages) > 0 {
			phases := make([]string, len(session.TaskClassification.SkippableStages))
			for i, phase := range session.TaskClassification.SkippableStages {
				phases[i] = string(phase)
			}
			fmt.Printf("  Skipped:    %s\n", strings.Join(phases, ", "))
		}
		if session.Outcome.UserFeedback != types.FeedbackNone {
			fmt.Printf("  Feedback:   %s\n", session.Outcome.UserFeedback)
		}
		if session.TimingMetrics.GovernanceOverheadMs > 0 {
			fmt.Printf("  Governance: %dms\n", session.TimingMetrics.GovernanceOverheadMs)
		}
		for _, task := range session.TasksCompleted {
			fmt.Printf("  %s %s\n", green("✓"), task)
		}
		for _, task := range session.TasksPending {
			fmt.Printf("  %s %s\n", gray("·"), task)
		}
		for _, decision := range session.Decisions {
			fmt.Printf("  %s %s\n", gray("↳"), decision)
		}

		artifacts, err := store.GetSessionArtifacts(ctx, session)
		if err == nil && len(artifacts) > 0 {
			fmt.Printf("\n%s Artifacts\n", cyan("▸"))
			for _, artifact := range artifacts {
				fmt.Printf("  %-12s %-8s %s\n", artifact.Type, artifact.Status, artifact.Title)
			}
		}

		observations, err := store.GetSessionObservations(ctx, session.ID)
		if err == nil && len(observations) > 0 {
			fmt.Printf("\n%s %d observations\n", cyan("▸"), len(observations))
		}
		fmt.Println()
	},
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <session-id>",
	Short: "Delete a session and its observations",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		if err := store.DeleteSession(ctx, args[0]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to delete session: %v\n", err)
			os.Exit(1)
		}
		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s Session %s deleted\n", green("✓"), args[0])
	},
}

func init() {
	sessionsCmd.Flags().IntP("limit", "n", 20, "Number of sessions to show")
	sessionsCmd.Flags().Bool("active", false, "Only sessions still in flight")
	sessionsCmd.Flags().String("branch", "", "Filter by branch")
	sessionsCmd.AddCommand(sessionsShowCmd)
	sessionsCmd.AddCommand(sessionsDeleteCmd)
	rootCmd.AddCommand(sessionsCmd)
}
