package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/DerianAndre/aidd.md-sub000/internal/types"
)

var complianceCmd = &cobra.Command{
	Use:   "compliance <session-id>",
	Short: "Classify a session against its required artifact set",
	Long: `Report whether the session carries the workflow documentation its track
requires. Full-ceremony sessions need brainstorm, plan, checklist and retro;
fast-track sessions need plan, checklist and retro. Sessions still in flight
are compliant by definition.

Examples:
  aidd compliance 4f1c9b2a`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		wc, err := eng.Compliance(ctx, args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to classify session: %v\n", err)
			os.Exit(1)
		}

		green := color.New(color.FgGreen).SprintFunc()
		red := color.New(color.FgRed).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()

		track := "full"
		if wc.FastTrack {
			track = "fast-track"
		}
		verdict := green("compliant")
		if wc.Status == types.NonCompliant {
			verdict = red("non-compliant")
		}
		fmt.Printf("\nSession %s is %s (%s track)\n\n", args[0], verdict, track)

		missing := make(map[types.ArtifactType]bool, len(wc.Missing))
		for _, artifactType := range wc.Missing {
			missing[artifactType] = true
		}
		for _, artifactType := range wc.Required {
			if missing[artifactType] {
				fmt.Printf("  %s %s\n", red("✗"), artifactType)
			} else {
				fmt.Printf("  %s %s\n", green("✓"), artifactType)
			}
		}
		fmt.Println()

		if len(wc.Missing) > 0 {
			fmt.Println(gray(fmt.Sprintf("Run 'aidd fix %s' to draft the missing artifacts.", args[0])))
		}
	},
}

func init() {
	rootCmd.AddCommand(complianceCmd)
}
