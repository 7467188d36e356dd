package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/DerianAndre/aidd.md-sub000/internal/ai"
	"github.com/DerianAndre/aidd.md-sub000/internal/types"
)

var enhanceCmd = &cobra.Command{
	Use:   "enhance <draft-id>",
	Short: "Rewrite a draft's placeholder content with AI",
	Long: `Send a pending draft to the Anthropic API together with its session record
and observations, and replace the placeholder content with a publishable
framework document. The draft stays pending; review it with 'aidd drafts
show' before approving.

Requires ANTHROPIC_API_KEY.

Examples:
  aidd enhance 3b7f
  aidd enhance 3b7f --dry-run          # print without saving
  aidd enhance 3b7f --model claude-3-5-haiku-20241022`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		model, _ := cmd.Flags().GetString("model")
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		force, _ := cmd.Flags().GetBool("force")

		red := color.New(color.FgRed).SprintFunc()
		green := color.New(color.FgGreen).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()

		enhancer, err := ai.NewEnhancer(&ai.Config{Model: model})
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s %v\n", red("✗"), err)
			fmt.Fprintf(os.Stderr, "%s\n", gray("Export ANTHROPIC_API_KEY to use enhancement."))
			os.Exit(1)
		}

		ctx := context.Background()
		draft, err := store.GetDraft(ctx, args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if draft.Status != types.DraftPending && !force {
			fmt.Fprintf(os.Stderr, "Error: draft %s is %s; use --force to enhance anyway\n", draft.ID, draft.Status)
			os.Exit(1)
		}

		// Session context is best effort: a draft can outlive its session.
		var session *types.Session
		var observations []*types.Observation
		if draft.SessionID != "" {
			if s, err := store.GetSession(ctx, draft.SessionID); err == nil {
				session = s
				observations, _ = store.GetSessionObservations(ctx, draft.SessionID)
			}
		}

		fmt.Printf("Enhancing %q...\n", draft.Title)
		content, err := enhancer.EnhanceDraft(ctx, draft, session, observations)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: enhancement failed: %v\n", err)
			os.Exit(1)
		}

		if dryRun {
			fmt.Println()
			fmt.Println(content)
			fmt.Println()
			fmt.Println(gray("Dry run, draft not updated."))
			return
		}

		draft.Content = content
		draft.UpdatedAt = time.Now()
		if err := store.UpdateDraft(ctx, draft); err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to save draft: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("%s Draft %s updated\n", green("✓"), draft.ID)
		fmt.Println(gray(fmt.Sprintf("  aidd drafts show %s to review, approve to publish", draft.ID)))
	},
}

func init() {
	enhanceCmd.Flags().String("model", "", "Model override (default from AIDD_MODEL or the standard model)")
	enhanceCmd.Flags().Bool("dry-run", false, "Print the enhanced content without saving")
	enhanceCmd.Flags().Bool("force", false, "Enhance even when the draft is not pending")
	rootCmd.AddCommand(enhanceCmd)
}
