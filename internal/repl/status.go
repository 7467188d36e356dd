package repl

import (
	"fmt"

	"github.com/fatih/color"

	"github.com/DerianAndre/aidd.md-sub000/internal/types"
)

// cmdStatus shows the engine overview
func (r *REPL) cmdStatus(args []string) error {
	report, err := r.engine.Status(r.ctx)
	if err != nil {
		return fmt.Errorf("failed to get status: %w", err)
	}

	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()

	fmt.Printf("\n%s\n", cyan("Engine Status"))
	fmt.Println()
	fmt.Printf("  Sessions:   %d total, %s active, %d completed\n",
		report.Sessions.Total, yellow(fmt.Sprintf("%d", report.Sessions.Active)),
		report.Sessions.Completed)
	fmt.Printf("  Evolution:  %d pending, %d drafted, %s auto-applied, %d approved\n",
		report.Evolution.Pending, report.Evolution.Drafted,
		green(fmt.Sprintf("%d", report.Evolution.AutoApplied)), report.Evolution.Approved)
	fmt.Printf("  Patterns:   %d tracked (%d active), %d detections, %d false positives\n",
		report.Patterns.Total, report.Patterns.Active,
		report.Patterns.Detections, report.Patterns.FalsePositives)
	fmt.Printf("  Views epoch: %d\n", report.ViewsEpoch)
	fmt.Println()

	fmt.Printf("%s\n", cyan("Hook Subscribers"))
	fmt.Println()
	for _, sub := range report.Subscribers {
		marker := green("✓")
		note := ""
		if sub.Disabled {
			marker = red("⊗")
			note = red(fmt.Sprintf("  tripped after %d failures", sub.ConsecutiveFailures))
		} else if !sub.Enabled {
			marker = yellow("–")
			note = yellow("  disabled by config")
		}
		fmt.Printf("  %s %-26s on %s%s\n", marker, sub.Name, sub.Kind, note)
	}
	fmt.Println()
	return nil
}

// cmdSessions lists recent sessions
func (r *REPL) cmdSessions(args []string) error {
	sessions, err := r.store.ListSessions(r.ctx, types.SessionFilter{Limit: 10})
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}

	if len(sessions) == 0 {
		yellow := color.New(color.FgYellow).SprintFunc()
		fmt.Printf("\n%s No sessions recorded.\n\n", yellow("ℹ"))
		return nil
	}

	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	fmt.Printf("\n%s\n", cyan("Recent Sessions"))
	fmt.Println()

	for i, s := range sessions {
		state := green("ended")
		if s.Active() {
			state = yellow("active")
		}
		label := s.Name
		if label == "" {
			label = s.Input
		}
		fmt.Printf("%2d. [%s] %s  %s  (%s)\n", i+1, state, green(s.ID), label, s.Branch)
	}
	fmt.Println()
	return nil
}

// cmdCompliance shows the compliance verdict for one session
func (r *REPL) cmdCompliance(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: compliance <session-id>")
	}

	wc, err := r.engine.Compliance(r.ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to classify session: %w", err)
	}

	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()

	fmt.Printf("\n%s %s\n", cyan("Compliance:"), args[0])
	fmt.Println()

	verdict := green(string(types.Compliant))
	if wc.Status == types.NonCompliant {
		verdict = red(string(types.NonCompliant))
	}
	track := "full"
	if wc.FastTrack {
		track = "fast-track"
	}
	fmt.Printf("  Verdict:  %s (%s)\n", verdict, track)
	fmt.Printf("  Required: %v\n", wc.Required)
	if len(wc.Missing) > 0 {
		fmt.Printf("  Missing:  %s\n", red(fmt.Sprintf("%v", wc.Missing)))
		fmt.Println()
		fmt.Printf("  Use 'fix %s' to draft the missing artifacts\n", args[0])
	}
	fmt.Println()
	return nil
}

// cmdFix drafts placeholders for a session's missing required artifacts
func (r *REPL) cmdFix(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: fix <session-id>")
	}

	result, err := r.engine.FixCompliance(r.ctx, args[0])
	if err != nil {
		return fmt.Errorf("remediation failed: %w", err)
	}

	green := color.New(color.FgGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()

	fmt.Println()
	if len(result.MissingRequired) == 0 {
		fmt.Printf("%s Nothing missing; no drafts needed.\n\n", green("✓"))
		return nil
	}
	fmt.Printf("%s Drafted %d placeholder(s), %d already pending.\n",
		green("✓"), len(result.Created), len(result.SkippedExisting))
	for _, t := range result.Created {
		fmt.Printf("    + %s\n", t)
	}
	for _, t := range result.SkippedExisting {
		fmt.Printf("    = %s %s\n", t, yellow("(existing draft)"))
	}
	for _, f := range result.Failures {
		fmt.Printf("    %s %s\n", red("!"), f)
	}
	fmt.Println()
	return nil
}
