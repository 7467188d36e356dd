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

var observationsCmd = &cobra.Command{
	Use:   "observations",
	Short: "Capture and search session observations",
	Long: `Observations are narrative memory snippets recorded during a session.
The remediator mines them for draft content; pattern detection mines them
for recurring failure modes.

Examples:
  aidd observations add 4f1c9b2a --title "migration gotcha" \
      --narrative "ALTER TABLE on the events table locks writers; batch it."
  aidd observations search "ALTER TABLE"
  aidd observations show 9c41
  aidd observations delete 9c41`,
}

var observationsAddCmd = &cobra.Command{
	Use:   "add <session-id>",
	Short: "Record an observation",
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) != 1 {
			fmt.Fprintf(os.Stderr, "Error: session id is required\n")
			os.Exit(1)
		}
		obsType, _ := cmd.Flags().GetString("type")
		title, _ := cmd.Flags().GetString("title")
		narrative, _ := cmd.Flags().GetString("narrative")
		facts, _ := cmd.Flags().GetString("facts")
		concepts, _ := cmd.Flags().GetStringSlice("concept")
		filesRead, _ := cmd.Flags().GetStringSlice("read")
		filesModified, _ := cmd.Flags().GetStringSlice("modified")
		tokens, _ := cmd.Flags().GetInt("tokens")

		obs := &types.Observation{
			SessionID:       args[0],
			Type:            types.ObservationType(obsType),
			Title:           title,
			Narrative:       narrative,
			Facts:           facts,
			Concepts:        concepts,
			FilesRead:       filesRead,
			FilesModified:   filesModified,
			DiscoveryTokens: tokens,
		}

		ctx := context.Background()
		if err := eng.SaveObservation(ctx, obs); err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to save observation: %v\n", err)
			os.Exit(1)
		}

		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s Observation %s recorded\n", green("✓"), obs.ID)
	},
}

var observationsSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Full-text search across observations",
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) == 0 {
			fmt.Fprintf(os.Stderr, "Error: a search query is required\n")
			os.Exit(1)
		}
		limit, _ := cmd.Flags().GetInt("limit")
		query := strings.Join(args, " ")

		ctx := context.Background()
		observations, err := store.SearchObservations(ctx, query, limit)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: search failed: %v\n", err)
			os.Exit(1)
		}
		if len(observations) == 0 {
			fmt.Printf("No observations match %q.\n", query)
			return
		}

		gray := color.New(color.FgHiBlack).SprintFunc()
		for _, obs := range observations {
			label := obs.Title
			if label == "" {
				label = firstLine(obs.Narrative)
			}
			fmt.Printf("%s  %s  %s\n", obs.ID, gray(obs.SessionID), label)
		}
	},
}

var observationsShowCmd = &cobra.Command{
	Use:   "show <observation-id>",
	Short: "Show one observation in full",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		obs, err := store.GetObservation(ctx, args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		cyan := color.New(color.FgCyan).SprintFunc()
		fmt.Printf("\n%s Observation %s (session %s)\n", cyan("▸"), obs.ID, obs.SessionID)
		if obs.Title != "" {
			fmt.Printf("  Title:    %s\n", obs.Title)
		}
		if obs.Type != "" {
			fmt.Printf("  Type:     %s\n", obs.Type)
		}
		if obs.Narrative != "" {
			fmt.Printf("  Narrative:\n    %s\n", strings.ReplaceAll(obs.Narrative, "\n", "\n    "))
		}
		if obs.Facts != "" {
			fmt.Printf("  Facts:\n    %s\n", strings.ReplaceAll(obs.Facts, "\n", "\n    "))
		}
		if len(obs.Concepts) > 0 {
			fmt.Printf("  Concepts: %s\n", strings.Join(obs.Concepts, ", "))
		}
		if len(obs.FilesModified) > 0 {
			fmt.Printf("  Modified: %s\n", strings.Join(obs.FilesModified, ", "))
		}
		if obs.DiscoveryTokens > 0 {
			fmt.Printf("  Discovery tokens: %d\n", obs.DiscoveryTokens)
		}
		fmt.Println()
	},
}

var observationsDeleteCmd = &cobra.Command{
	Use:   "delete <observation-id>",
	Short: "Delete an observation",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		if err := store.DeleteObservation(ctx, args[0]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to delete observation: %v\n", err)
			os.Exit(1)
		}
		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s Observation %s deleted\n", green("✓"), args[0])
	},
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func init() {
	observationsAddCmd.Flags().String("type", "", "Observation type, e.g. discovery, decision")
	observationsAddCmd.Flags().String("title", "", "Short title")
	observationsAddCmd.Flags().String("narrative", "", "The observation itself")
	observationsAddCmd.Flags().String("facts", "", "Structured facts, free-form")
	observationsAddCmd.Flags().StringSlice("concept", nil, "Concept tag (repeatable)")
	observationsAddCmd.Flags().StringSlice("read", nil, "File read during discovery (repeatable)")
	observationsAddCmd.Flags().StringSlice("modified", nil, "File modified (repeatable)")
	observationsAddCmd.Flags().Int("tokens", 0, "Discovery tokens spent")
	observationsSearchCmd.Flags().IntP("limit", "n", 20, "Number of results")
	observationsCmd.AddCommand(observationsAddCmd)
	observationsCmd.AddCommand(observationsSearchCmd)
	observationsCmd.AddCommand(observationsShowCmd)
	observationsCmd.AddCommand(observationsDeleteCmd)
	rootCmd.AddCommand(observationsCmd)
}
