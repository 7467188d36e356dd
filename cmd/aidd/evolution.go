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

var evolutionCmd = &cobra.Command{
	Use:   "evolution",
	Short: "Review and drive framework evolution",
	Long: `Evolution candidates are proposed framework changes mined from finished
sessions. High-confidence candidates auto-apply; the 70-89 band is drafted
for review; the rest wait for more evidence.

Examples:
  aidd evolution candidates
  aidd evolution show 8d2e
  aidd evolution approve 8d2e
  aidd evolution reject 8d2e not actually recurring
  aidd evolution analyze            # run the detector pass now
  aidd evolution prune              # enforce retention bounds now
  aidd evolution log 8d2e           # audit trail for one candidate`,
}

var evolutionCandidatesCmd = &cobra.Command{
	Use:   "candidates",
	Short: "List evolution candidates",
	Run: func(cmd *cobra.Command, args []string) {
		statusFlag, _ := cmd.Flags().GetString("status")
		typeFlag, _ := cmd.Flags().GetString("type")
		limit, _ := cmd.Flags().GetInt("limit")

		filter := types.CandidateFilter{Limit: limit}
		switch statusFlag {
		case "open", "all":
		default:
			status := types.CandidateStatus(statusFlag)
			if !status.IsValid() {
				fmt.Fprintf(os.Stderr, "Error: unknown status %q (open, all, pending, drafted, approved, rejected, auto_applied)\n", statusFlag)
				os.Exit(1)
			}
			filter.Status = &status
		}
		if typeFlag != "" {
			candidateType := types.CandidateType(typeFlag)
			if !candidateType.IsValid() {
				fmt.Fprintf(os.Stderr, "Error: unknown candidate type %q\n", typeFlag)
				os.Exit(1)
			}
			filter.Type = &candidateType
		}

		ctx := context.Background()
		candidates, err := store.ListCandidates(ctx, filter)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to list candidates: %v\n", err)
			os.Exit(1)
		}

		shown := 0
		for _, candidate := range candidates {
			if statusFlag == "open" && candidate.Status.IsTerminal() {
				continue
			}
			fmt.Printf("%s  %s  %-22s %-8s %2d sessions  %s\n",
				candidate.ID, confidenceLabel(candidate.Confidence), candidate.Type,
				candidate.Status, candidate.SessionCount, candidate.Title)
			shown++
		}
		if shown == 0 {
			fmt.Println("No candidates match.")
			return
		}

		gray := color.New(color.FgHiBlack).SprintFunc()
		fmt.Println()
		fmt.Println(gray("aidd evolution approve <id> drafts and settles; reject <id> [reason] declines."))
	},
}

var evolutionShowCmd = &cobra.Command{
	Use:   "show <candidate-id>",
	Short: "Show one candidate in full",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		candidate, err := store.GetCandidate(ctx, args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		cyan := color.New(color.FgCyan).SprintFunc()
		fmt.Printf("\n%s %s (%s)\n", cyan("▸"), candidate.Title, candidate.Status)
		fmt.Printf("  Type:       %s\n", candidate.Type)
		fmt.Printf("  Confidence: %s\n", confidenceLabel(candidate.Confidence))
		fmt.Printf("  Evidence:   %d sessions", candidate.SessionCount)
		if len(candidate.Evidence) > 0 {
			fmt.Printf(" (%s)", strings.Join(candidate.Evidence, ", "))
		}
		fmt.Println()
		if candidate.DiscoveryTokensTotal > 0 {
			fmt.Printf("  Discovery:  %d tokens across evidence\n", candidate.DiscoveryTokensTotal)
		}
		if candidate.ModelScope != "" {
			fmt.Printf("  Scope:      %s\n", candidate.ModelScope)
		}
		if candidate.Description != "" {
			fmt.Printf("  %s\n", candidate.Description)
		}
		if candidate.SuggestedAction != "" {
			fmt.Printf("  Suggested:  %s\n", candidate.SuggestedAction)
		}
		fmt.Println()
	},
}

var evolutionApproveCmd = &cobra.Command{
	Use:   "approve <candidate-id>",
	Short: "Approve a candidate",
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) != 1 {
			fmt.Fprintf(os.Stderr, "Error: candidate id is required\n")
			os.Exit(1)
		}
		noDraft, _ := cmd.Flags().GetBool("no-draft")

		ctx := context.Background()
		candidate, draft, err := eng.ApproveCandidate(ctx, args[0], !noDraft)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		green := color.New(color.FgGreen).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()
		fmt.Printf("%s Approved %q\n", green("✓"), candidate.Title)
		if draft != nil {
			fmt.Printf("  Draft %s created\n", draft.ID)
			fmt.Println(gray(fmt.Sprintf("  aidd drafts approve %s publishes it", draft.ID)))
		}
	},
}

var evolutionRejectCmd = &cobra.Command{
	Use:   "reject <candidate-id> [reason...]",
	Short: "Reject a candidate",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		reason := strings.Join(args[1:], " ")
		candidate, err := eng.RejectCandidate(ctx, args[0], reason)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		yellow := color.New(color.FgYellow).SprintFunc()
		fmt.Printf("%s Rejected %q\n", yellow("⊘"), candidate.Title)
	},
}

var evolutionDeleteCmd = &cobra.Command{
	Use:   "delete <candidate-id>",
	Short: "Delete a candidate, logging the reversal",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		if err := eng.DeleteCandidate(ctx, args[0]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s Candidate %s deleted\n", green("✓"), args[0])
	},
}

var evolutionAnalyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run the detector pass over settled session history",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		result, err := eng.Analyze(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: analysis failed: %v\n", err)
			os.Exit(1)
		}

		green := color.New(color.FgGreen).SprintFunc()
		red := color.New(color.FgRed).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()
		fmt.Printf("%s Analysis done: %d new, %d refreshed, %d unchanged\n",
			green("✓"), result.Created, result.Refreshed, result.Unchanged)
		for _, failure := range result.Failures {
			fmt.Printf("  %s %s\n", red("!"), failure)
		}
		if result.SummaryPath != "" {
			fmt.Println(gray(fmt.Sprintf("  Summary: %s", result.SummaryPath)))
		}
	},
}

var evolutionPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Enforce retention bounds on detections, observations and sessions",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		result, err := eng.Prune(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: prune failed: %v\n", err)
			os.Exit(1)
		}

		green := color.New(color.FgGreen).SprintFunc()
		red := color.New(color.FgRed).SprintFunc()
		fmt.Printf("%s Pruned %d detections, %d observations, %d sessions\n",
			green("✓"), result.DetectionsRemoved, result.ObservationsRemoved, result.SessionsRemoved)
		for _, failure := range result.Failures {
			fmt.Printf("  %s %s\n", red("!"), failure)
		}
	},
}

var evolutionLogCmd = &cobra.Command{
	Use:   "log <candidate-id>",
	Short: "Show the audit trail for one candidate",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		limit, _ := cmd.Flags().GetInt("limit")

		ctx := context.Background()
		entries, err := store.GetEvolutionLog(ctx, args[0], limit)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to read log: %v\n", err)
			os.Exit(1)
		}
		if len(entries) == 0 {
			fmt.Println("No log entries for this candidate.")
			return
		}

		gray := color.New(color.FgHiBlack).SprintFunc()
		for _, entry := range entries {
			fmt.Printf("%s  %-14s %3.0f  %s\n",
				gray(entry.Timestamp.Format(time.RFC3339)), entry.Action, entry.Confidence, entry.Title)
		}
	},
}

// confidenceLabel grades a candidate confidence for terminal display.
func confidenceLabel(confidence float64) string {
	s := fmt.Sprintf("%3.0f", confidence)
	switch {
	case confidence >= 90:
		return color.New(color.FgGreen, color.Bold).Sprint(s)
	case confidence >= 70:
		return color.New(color.FgGreen).Sprint(s)
	case confidence >= 40:
		return color.New(color.FgYellow).Sprint(s)
	default:
		return color.New(color.FgRed).Sprint(s)
	}
}

func init() {
	evolutionCandidatesCmd.Flags().String("status", "open", "Filter by status (open, all, or a specific status)")
	evolutionCandidatesCmd.Flags().String("type", "", "Filter by candidate type")
	evolutionCandidatesCmd.Flags().IntP("limit", "n", 50, "Number of candidates to show")
	evolutionApproveCmd.Flags().Bool("no-draft", false, "Approve without creating a framework draft")
	evolutionLogCmd.Flags().IntP("limit", "n", 50, "Number of log entries to show")
	evolutionCmd.AddCommand(evolutionCandidatesCmd)
	evolutionCmd.AddCommand(evolutionShowCmd)
	evolutionCmd.AddCommand(evolutionApproveCmd)
	evolutionCmd.AddCommand(evolutionRejectCmd)
	evolutionCmd.AddCommand(evolutionDeleteCmd)
	evolutionCmd.AddCommand(evolutionAnalyzeCmd)
	evolutionCmd.AddCommand(evolutionPruneCmd)
	evolutionCmd.AddCommand(evolutionLogCmd)
	rootCmd.AddCommand(evolutionCmd)
}
