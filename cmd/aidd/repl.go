package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/DerianAndre/aidd.md-sub000/internal/repl"
)

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Interactive review shell",
	Long: `Start an interactive shell for reviewing compliance, candidates and
drafts without re-running the CLI for every step. Type 'help' inside for
the command list.`,
	Run: func(cmd *cobra.Command, args []string) {
		r, err := repl.New(&repl.Config{Store: store, Engine: eng})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to start repl: %v\n", err)
			os.Exit(1)
		}
		if err := r.Run(context.Background()); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(replCmd)
}
