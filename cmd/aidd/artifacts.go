package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/DerianAndre/aidd.md-sub000/internal/types"
)

var artifactsCmd = &cobra.Command{
	Use:   "artifacts <session-id>",
	Short: "List a session's artifacts",
	Long: `List the workflow documentation recorded for a session, or manage
artifacts directly.

Artifact types: brainstorm, plan, research, adr, diagram, issue, spec,
checklist, retro.

Examples:
  aidd artifacts 4f1c9b2a
  aidd artifacts add 4f1c9b2a --type plan --title "Login rework plan"
  aidd artifacts done 7e2d
  aidd artifacts delete 7e2d`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		session, err := store.GetSession(ctx, args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		artifacts, err := store.GetSessionArtifacts(ctx, session)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to list artifacts: %v\n", err)
			os.Exit(1)
		}
		if len(artifacts) == 0 {
			fmt.Println("No artifacts recorded for this session.")
			return
		}

		green := color.New(color.FgGreen).SprintFunc()
		yellow := color.New(color.FgYellow).SprintFunc()
		for _, artifact := range artifacts {
			status := green(string(artifact.Status))
			if artifact.Status == types.ArtifactActive {
				status = yellow(string(artifact.Status))
			}
			fmt.Printf("%s  %-12s %-8s %s\n", artifact.ID, artifact.Type, status, artifact.Title)
		}
	},
}

var artifactsAddCmd = &cobra.Command{
	Use:   "add <session-id>",
	Short: "Record an artifact for a session",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		artifactType, _ := cmd.Flags().GetString("type")
		title, _ := cmd.Flags().GetString("title")
		description, _ := cmd.Flags().GetString("description")
		content, _ := cmd.Flags().GetString("content")
		feature, _ := cmd.Flags().GetString("feature")
		wip, _ := cmd.Flags().GetBool("wip")

		status := types.ArtifactDone
		if wip {
			status = types.ArtifactActive
		}

		now := time.Now()
		artifact := &types.Artifact{
			ID:          uuid.New().String(),
			SessionID:   args[0],
			Type:        types.ArtifactType(artifactType),
			Status:      status,
			Feature:     feature,
			Title:       title,
			Description: description,
			Content:     content,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := artifact.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		ctx := context.Background()
		if _, err := store.GetSession(ctx, args[0]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if err := store.CreateArtifact(ctx, artifact); err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to create artifact: %v\n", err)
			os.Exit(1)
		}

		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s Recorded %s %q (%s)\n", green("✓"), artifact.Type, artifact.Title, artifact.ID)
	},
}

var artifactsDoneCmd = &cobra.Command{
	Use:   "done <artifact-id>",
	Short: "Mark an artifact done",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		artifact, err := store.GetArtifact(ctx, args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		artifact.Status = types.ArtifactDone
		artifact.UpdatedAt = time.Now()
		if err := store.UpdateArtifact(ctx, artifact); err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to update artifact: %v\n", err)
			os.Exit(1)
		}

		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s %s %q marked done\n", green("✓"), artifact.Type, artifact.Title)
	},
}

var artifactsDeleteCmd = &cobra.Command{
	Use:   "delete <artifact-id>",
	Short: "Delete an artifact",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		if err := store.DeleteArtifact(ctx, args[0]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to delete artifact: %v\n", err)
			os.Exit(1)
		}
		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s Artifact %s deleted\n", green("✓"), args[0])
	},
}

func init() {
	artifactsAddCmd.Flags().StringP("type", "t", "", "Artifact type (required)")
	artifactsAddCmd.Flags().String("title", "", "Artifact title (required)")
	artifactsAddCmd.Flags().String("description", "", "Short description")
	artifactsAddCmd.Flags().String("content", "", "Inline artifact content")
	artifactsAddCmd.Flags().String("feature", "", "Feature tag for legacy session matching")
	artifactsAddCmd.Flags().Bool("wip", false, "Record as still in progress instead of done")
	artifactsCmd.AddCommand(artifactsAddCmd)
	artifactsCmd.AddCommand(artifactsDoneCmd)
	artifactsCmd.AddCommand(artifactsDeleteCmd)
	rootCmd.AddCommand(artifactsCmd)
}
