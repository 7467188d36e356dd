package repl

import (
	"fmt"
	"strings"

	"github.com/fatih/color"

	"github.com/DerianAndre/aidd.md-sub000/internal/types"
)

// confidenceColor grades a confidence value for display.
func confidenceColor(confidence float64) func(a ...interface{}) string {
	switch {
	case confidence >= 90:
		return color.New(color.FgGreen, color.Bold).SprintFunc()
	case confidence >= 70:
		return color.New(color.FgGreen).SprintFunc()
	case confidence >= 40:
		return color.New(color.FgYellow).SprintFunc()
	default:
		return color.New(color.FgRed).SprintFunc()
	}
}

// cmdCandidates lists evolution candidates awaiting review
func (r *REPL) cmdCandidates(args []string) error {
	candidates, err := r.store.ListCandidates(r.ctx, types.CandidateFilter{Limit: 50})
	if err != nil {
		return fmt.Errorf("failed to list candidates: %w", err)
	}

	var open []*types.EvolutionCandidate
	for _, c := range candidates {
		if !c.Status.IsTerminal() {
			open = append(open, c)
		}
	}

	if len(open) == 0 {
		yellow := color.New(color.FgYellow).SprintFunc()
		fmt.Printf("\n%s No candidates awaiting review.\n\n", yellow("ℹ"))
		return nil
	}

	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	fmt.Printf("\n%s\n", cyan("Evolution Candidates"))
	fmt.Println()

	for i, c := range open {
		conf := confidenceColor(c.Confidence)
		fmt.Printf("%2d. [%s] %s  %s\n", i+1,
			conf(fmt.Sprintf("%3.0f", c.Confidence)), green(c.ID), c.Title)
		fmt.Printf("    %s, %d sessions, status %s\n", c.Type, c.SessionCount, c.Status)
	}
	fmt.Println()
	fmt.Println("Use 'approve <id>' or 'reject <id> [reason]'")
	fmt.Println()
	return nil
}

// cmdApprove approves an evolution candidate
func (r *REPL) cmdApprove(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: approve <candidate-id>")
	}

	candidate, draft, err := r.engine.ApproveCandidate(r.ctx, args[0], true)
	if err != nil {
		return fmt.Errorf("approval failed: %w", err)
	}

	green := color.New(color.FgGreen).SprintFunc()
	fmt.Printf("\n%s Approved: %s\n", green("✓"), candidate.Title)
	if draft != nil {
		fmt.Printf("  Draft %s created (%s/%s)\n", draft.ID, draft.Category, draft.Filename)
		fmt.Printf("  Use 'drafts approve %s' to materialize it\n", draft.ID)
	}
	fmt.Println()
	return nil
}

// cmdReject rejects an evolution candidate
func (r *REPL) cmdReject(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: reject <candidate-id> [reason]")
	}
	reason := strings.Join(args[1:], " ")

	candidate, err := r.engine.RejectCandidate(r.ctx, args[0], reason)
	if err != nil {
		return fmt.Errorf("rejection failed: %w", err)
	}

	yellow := color.New(color.FgYellow).SprintFunc()
	fmt.Printf("\n%s Rejected: %s\n\n", yellow("⊗"), candidate.Title)
	return nil
}

// cmdDrafts lists pending drafts, or approves/rejects one via subcommands.
func (r *REPL) cmdDrafts(args []string) error {
	if len(args) > 0 {
		switch args[0] {
		case "approve":
			if len(args) < 2 {
				return fmt.Errorf("usage: drafts approve <draft-id>")
			}
			return r.draftApprove(args[1])
		case "reject":
			if len(args) < 2 {
				return fmt.Errorf("usage: drafts reject <draft-id> [reason]")
			}
			return r.draftReject(args[1], strings.Join(args[2:], " "))
		default:
			return fmt.Errorf("unknown drafts subcommand %q", args[0])
		}
	}

	pending := types.DraftPending
	drafts, err := r.store.ListDrafts(r.ctx, types.DraftFilter{Status: &pending, Limit: 50})
	if err != nil {
		return fmt.Errorf("failed to list drafts: %w", err)
	}

	if len(drafts) == 0 {
		yellow := color.New(color.FgYellow).SprintFunc()
		fmt.Printf("\n%s No pending drafts.\n\n", yellow("ℹ"))
		return nil
	}

	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	fmt.Printf("\n%s\n", cyan("Pending Drafts"))
	fmt.Println()

	for i, d := range drafts {
		fmt.Printf("%2d. %s  %s\n", i+1, green(d.ID), d.Title)
		fmt.Printf("    %s/%s, source %s\n", d.Category, d.Filename, d.Source)
	}
	fmt.Println()
	fmt.Println("Use 'drafts approve <id>' or 'drafts reject <id> [reason]'")
	fmt.Println()
	return nil
}

func (r *REPL) draftApprove(id string) error {
	draft, path, err := r.engine.ApproveDraft(r.ctx, id)
	if err != nil {
		return fmt.Errorf("draft approval failed: %w", err)
	}
	green := color.New(color.FgGreen).SprintFunc()
	fmt.Printf("\n%s Approved: %s\n  Written to %s\n\n", green("✓"), draft.Title, path)
	return nil
}

func (r *REPL) draftReject(id, reason string) error {
	draft, err := r.engine.RejectDraft(r.ctx, id, reason)
	if err != nil {
		return fmt.Errorf("draft rejection failed: %w", err)
	}
	yellow := color.New(color.FgYellow).SprintFunc()
	fmt.Printf("\n%s Rejected: %s\n\n", yellow("⊗"), draft.Title)
	return nil
}
