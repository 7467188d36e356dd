package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/DerianAndre/aidd.md-sub000/internal/types"
)

var draftsCmd = &cobra.Command{
	Use:   "drafts",
	Short: "Review proposed framework files",
	Long: `Drafts are proposed framework files awaiting review. Approval writes the
draft under framework/<category>/<filename> and invalidates cached framework
views; rejection records the reason and writes nothing.

Examples:
  aidd drafts                      # pending drafts
  aidd drafts --status rejected
  aidd drafts show 3b7f
  aidd drafts approve 3b7f
  aidd drafts reject 3b7f too noisy for a rule
  aidd enhance 3b7f                # AI rewrite of placeholder content`,
	Run: func(cmd *cobra.Command, args []string) {
		statusFlag, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")

		filter := types.DraftFilter{Limit: limit}
		if statusFlag != "all" {
			status := types.DraftStatus(statusFlag)
			if !status.IsValid() {
				fmt.Fprintf(os.Stderr, "Error: unknown status %q (pending, approved, rejected, all)\n", statusFlag)
				os.Exit(1)
			}
			filter.Status = &status
		}

		ctx := context.Background()
		drafts, err := store.ListDrafts(ctx, filter)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to list drafts: %v\n", err)
			os.Exit(1)
		}
		if len(drafts) == 0 {
			fmt.Printf("No %s drafts.\n", statusFlag)
			return
		}

		gray := color.New(color.FgHiBlack).SprintFunc()
		for _, draft := range drafts {
			fmt.Printf("%s  %3.0f  %-10s %-10s %s\n",
				draft.ID, draft.Confidence, draft.Category, draft.Source, draft.Title)
		}
		fmt.Println()
		fmt.Println(gray("aidd drafts show <id> prints the content; approve/reject settles it."))
	},
}

var draftsShowCmd = &cobra.Command{
	Use:   "show <draft-id>",
	Short: "Show a draft and its content",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		draft, err := store.GetDraft(ctx, args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		cyan := color.New(color.FgCyan).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()
		fmt.Printf("\n%s %s (%s)\n", cyan("▸"), draft.Title, draft.Status)
		fmt.Printf("  Target:     %s/%s\n", draft.Category, draft.Filename)
		fmt.Printf("  Confidence: %.0f  Source: %s\n", draft.Confidence, draft.Source)
		if draft.SessionID != "" {
			fmt.Printf("  Session:    %s\n", draft.SessionID)
		}
		if draft.EvolutionCandidateID != "" {
			fmt.Printf("  Candidate:  %s\n", draft.EvolutionCandidateID)
		}
		if draft.RejectedReason != "" {
			fmt.Printf("  Rejected:   %s\n", draft.RejectedReason)
		}
		fmt.Println()
		if draft.Content != "" {
			fmt.Println(gray(strings.Repeat("─", 60)))
			fmt.Println(draft.Content)
			fmt.Println(gray(strings.Repeat("─", 60)))
		}
	},
}

var draftsApproveCmd = &cobra.Command{
	Use:   "approve <draft-id>",
	Short: "Approve a draft and write it into the framework",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		draft, path, err := eng.ApproveDraft(ctx, args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s Approved %q\n", green("✓"), draft.Title)
		fmt.Printf("  Written to %s\n", path)
	},
}

var draftsRejectCmd = &cobra.Command{
	Use:   "reject <draft-id> [reason...]",
	Short: "Reject a draft",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		reason := strings.Join(args[1:], " ")
		draft, err := eng.RejectDraft(ctx, args[0], reason)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		yellow := color.New(color.FgYellow).SprintFunc()
		fmt.Printf("%s Rejected %q\n", yellow("⊘"), draft.Title)
	},
}

var draftsDeleteCmd = &cobra.Command{
	Use:   "delete <draft-id>",
	Short: "Delete a draft record",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		if err := store.DeleteDraft(ctx, args[0]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to delete draft: %v\n", err)
			os.Exit(1)
		}
		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s Draft %s deleted\n", green("✓"), args[0])
	},
}

func init() {
	draftsCmd.Flags().String("status", "pending", "Filter by status (pending, approved, rejected, all)")
	draftsCmd.Flags().IntP("limit", "n", 50, "Number of drafts to show")
	draftsCmd.AddCommand(draftsShowCmd)
	draftsCmd.AddCommand(draftsApproveCmd)
	draftsCmd.AddCommand(draftsRejectCmd)
	draftsCmd.AddCommand(draftsDeleteCmd)
	rootCmd.AddCommand(draftsCmd)
}
