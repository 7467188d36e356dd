package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var fixCmd = &cobra.Command{
	Use:   "fix <session-id>",
	Short: "Draft placeholder artifacts for a session's compliance gaps",
	Long: `Create one pending draft per missing required artifact. Drafts are
placeholders mined from the session's record; review them with 'aidd drafts'
before approving. Running fix twice never duplicates a draft.

Examples:
  aidd fix 4f1c9b2a`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		result, err := eng.FixCompliance(ctx, args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: remediation failed: %v\n", err)
			os.Exit(1)
		}

		green := color.New(color.FgGreen).SprintFunc()
		yellow := color.New(color.FgYellow).SprintFunc()
		red := color.New(color.FgRed).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()

		if len(result.MissingRequired) == 0 {
			fmt.Printf("%s Nothing missing, session is compliant\n", green("✓"))
			return
		}

		for _, artifactType := range result.Created {
			fmt.Printf("  %s drafted %s\n", green("+"), artifactType)
		}
		for _, artifactType := range result.SkippedExisting {
			fmt.Printf("  %s %s already has a pending draft\n", yellow("="), artifactType)
		}
		for _, failure := range result.Failures {
			fmt.Printf("  %s %s\n", red("!"), failure)
		}

		fmt.Println()
		fmt.Println(gray(fmt.Sprintf("%d drafts pending review. Run 'aidd drafts' to see them.", result.PendingAfter)))
	},
}

func init() {
	rootCmd.AddCommand(fixCmd)
}
