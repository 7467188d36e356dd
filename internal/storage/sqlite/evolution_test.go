package sqlite

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/DerianAndre/aidd.md-sub000/internal/types"
)

func TestDraftStorage(t *testing.T) {
	store, err := New(":memory:")
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}
	defer func() { _ = store.Close() }()

	ctx := context.Background()

	draft := &types.Draft{
		ID:         "draft-001",
		SessionID:  "sess-gone", // drafts carry no FK, a pruned session is fine
		Title:      "Auto Draft: retro for session sess-gone",
		Category:   types.CategoryWorkflows,
		Source:     types.SourceManual,
		Status:     types.DraftPending,
		Confidence: 90,
		Filename:   "auto-draft-retro-sess-gone.md",
		Content:    "## Retro\n\nsession input here",
	}

	t.Run("CreateAndGet", func(t *testing.T) {
		if err := store.CreateDraft(ctx, draft); err != nil {
			t.Fatalf("Failed to create draft: %v", err)
		}
		got, err := store.GetDraft(ctx, "draft-001")
		if err != nil {
			t.Fatalf("Failed to get draft: %v", err)
		}
		if got.Category != types.CategoryWorkflows {
			t.Errorf("Expected workflows category, got '%s'", got.Category)
		}
		if got.Confidence != 90 {
			t.Errorf("Expected confidence 90, got %v", got.Confidence)
		}
	})

	t.Run("PendingLookupByTitle", func(t *testing.T) {
		got, err := store.GetPendingDraftByTitle(ctx, "Auto Draft: retro for session sess-gone")
		if err != nil {
			t.Fatalf("Failed to look up pending draft: %v", err)
		}
		if got == nil || got.ID != "draft-001" {
			t.Fatal("Expected the pending draft to be found by title")
		}

		missing, err := store.GetPendingDraftByTitle(ctx, "Auto Draft: plan for session sess-gone")
		if err != nil {
			t.Fatalf("Lookup miss must not error: %v", err)
		}
		if missing != nil {
			t.Error("Expected nil for an unknown title")
		}
	})

	t.Run("ApprovedDraftNoLongerPending", func(t *testing.T) {
		got, err := store.GetDraft(ctx, "draft-001")
		if err != nil {
			t.Fatalf("Failed to get draft: %v", err)
		}
		got.Status = types.DraftApproved
		if err := store.UpdateDraft(ctx, got); err != nil {
			t.Fatalf("Failed to update draft: %v", err)
		}

		pending, err := store.GetPendingDraftByTitle(ctx, "Auto Draft: retro for session sess-gone")
		if err != nil {
			t.Fatalf("Lookup must not error: %v", err)
		}
		if pending != nil {
			t.Error("Approved draft must not satisfy the pending lookup")
		}
	})

	t.Run("ListByStatus", func(t *testing.T) {
		second := &types.Draft{
			ID:       "draft-002",
			Title:    "manual improvement",
			Category: types.CategoryRules,
			Source:   types.SourceManual,
			Status:   types.DraftPending,
			Filename: "improvement.md",
		}
		if err := store.CreateDraft(ctx, second); err != nil {
			t.Fatalf("Failed to create draft: %v", err)
		}

		status := types.DraftPending
		drafts, err := store.ListDrafts(ctx, types.DraftFilter{Status: &status})
		if err != nil {
			t.Fatalf("Failed to list drafts: %v", err)
		}
		if len(drafts) != 1 || drafts[0].ID != "draft-002" {
			t.Errorf("Expected only draft-002 pending, got %d drafts", len(drafts))
		}
	})
}

func TestCandidateStorage(t *testing.T) {
	store, err := New(":memory:")
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}
	defer func() { _ = store.Close() }()

	ctx := context.Background()

	candidate := &types.EvolutionCandidate{
		ID:          "cand-001",
		Type:        types.CandidateRuleElevation,
		Title:       "always run the linter before ship",
		Description: "three sessions shipped lint regressions",
		Confidence:  55,
		Status:      types.CandidatePending,
		Evidence:    []string{"sess-101", "sess-102"},
	}

	t.Run("CreateAndGet", func(t *testing.T) {
		if err := store.CreateCandidate(ctx, candidate); err != nil {
			t.Fatalf("Failed to create candidate: %v", err)
		}
		got, err := store.GetCandidate(ctx, "cand-001")
		if err != nil {
			t.Fatalf("Failed to get candidate: %v", err)
		}
		if got.Confidence != 55 {
			t.Errorf("Expected confidence 55, got %v", got.Confidence)
		}
		if len(got.Evidence) != 2 {
			t.Errorf("Expected 2 evidence entries, got %d", len(got.Evidence))
		}
	})

	t.Run("TypeTitleLookupSkipsTerminal", func(t *testing.T) {
		got, err := store.GetCandidateByTypeTitle(ctx, types.CandidateRuleElevation, "always run the linter before ship")
		if err != nil {
			t.Fatalf("Failed to look up candidate: %v", err)
		}
		if got == nil || got.ID != "cand-001" {
			t.Fatal("Expected the open candidate to be found")
		}

		got.Status = types.CandidateRejected
		if err := store.UpdateCandidate(ctx, got); err != nil {
			t.Fatalf("Failed to update candidate: %v", err)
		}

		gone, err := store.GetCandidateByTypeTitle(ctx, types.CandidateRuleElevation, "always run the linter before ship")
		if err != nil {
			t.Fatalf("Lookup must not error: %v", err)
		}
		if gone != nil {
			t.Error("Terminal candidates must be invisible to the dedup lookup")
		}
	})

	t.Run("Stats", func(t *testing.T) {
		for _, c := range []*types.EvolutionCandidate{
			{ID: "cand-002", Type: types.CandidateSkillCombo, Title: "skill a", Confidence: 92, Status: types.CandidateAutoApplied},
			{ID: "cand-003", Type: types.CandidateNewConvention, Title: "rule b", Confidence: 75, Status: types.CandidateDrafted},
			{ID: "cand-004", Type: types.CandidateRoutingWeight, Title: "rule c", Confidence: 40, Status: types.CandidatePending},
		} {
			if err := store.CreateCandidate(ctx, c); err != nil {
				t.Fatalf("Failed to create candidate: %v", err)
			}
		}

		stats, err := store.GetEvolutionStats(ctx)
		if err != nil {
			t.Fatalf("Failed to get stats: %v", err)
		}
		if stats.Pending != 1 || stats.Drafted != 1 || stats.AutoApplied != 1 || stats.Rejected != 1 {
			t.Errorf("Unexpected status breakdown: %+v", stats)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		if err := store.DeleteCandidate(ctx, "cand-004"); err != nil {
			t.Fatalf("Failed to delete candidate: %v", err)
		}
		_, err := store.GetCandidate(ctx, "cand-004")
		if err == nil || !strings.Contains(err.Error(), "not found") {
			t.Errorf("Expected 'not found' after delete, got: %v", err)
		}
	})
}

func TestEvolutionLog(t *testing.T) {
	store, err := New(":memory:")
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}
	defer func() { _ = store.Close() }()

	ctx := context.Background()

	entries := []*types.EvolutionLogEntry{
		{CandidateID: "cand-x", Action: types.ActionPending, Confidence: 40},
		{CandidateID: "cand-x", Action: types.ActionDrafted, Confidence: 75},
		{CandidateID: "cand-x", Action: types.ActionAutoApplied, Confidence: 92},
	}
	for _, e := range entries {
		if err := store.AppendEvolutionLog(ctx, e); err != nil {
			t.Fatalf("Failed to append log entry: %v", err)
		}
		if e.ID == 0 {
			t.Fatal("Append must assign the entry id")
		}
	}

	t.Run("NewestFirst", func(t *testing.T) {
		got, err := store.GetEvolutionLog(ctx, "cand-x", 10)
		if err != nil {
			t.Fatalf("Failed to read log: %v", err)
		}
		if len(got) != 3 {
			t.Fatalf("Expected 3 entries, got %d", len(got))
		}
		if got[0].Action != types.ActionAutoApplied {
			t.Errorf("Expected newest first, got action '%s'", got[0].Action)
		}
	})

	t.Run("TailAfterID", func(t *testing.T) {
		got, err := store.GetEvolutionLogAfter(ctx, entries[0].ID, 10)
		if err != nil {
			t.Fatalf("Failed to tail log: %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("Expected 2 entries after the first, got %d", len(got))
		}
		if got[0].Action != types.ActionDrafted || got[1].Action != types.ActionAutoApplied {
			t.Error("Tail must return entries oldest first")
		}
	})

	t.Run("RejectsBadAction", func(t *testing.T) {
		err := store.AppendEvolutionLog(ctx, &types.EvolutionLogEntry{CandidateID: "cand-x", Action: "promoted"})
		if err == nil {
			t.Error("Expected unknown action to be refused")
		}
	})
}

func TestPatternStorage(t *testing.T) {
	store, err := New(":memory:")
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}
	defer func() { _ = store.Close() }()

	ctx := context.Background()

	pattern := &types.Pattern{
		ID:          "pat-001",
		Pattern:     "retry-without-backoff",
		Description: "model retries failing calls in a tight loop",
		Confidence:  70,
		Active:      true,
	}
	if err := store.CreatePattern(ctx, pattern); err != nil {
		t.Fatalf("Failed to create pattern: %v", err)
	}

	t.Run("KeyLookup", func(t *testing.T) {
		got, err := store.GetPatternByKey(ctx, "retry-without-backoff")
		if err != nil {
			t.Fatalf("Failed to look up pattern: %v", err)
		}
		if got == nil || got.ID != "pat-001" {
			t.Fatal("Expected the pattern to be found by key")
		}

		missing, err := store.GetPatternByKey(ctx, "no-such-pattern")
		if err != nil {
			t.Fatalf("Lookup miss must not error: %v", err)
		}
		if missing != nil {
			t.Error("Expected nil for an unknown key")
		}
	})

	t.Run("RecurrenceAggregation", func(t *testing.T) {
		detections := []struct {
			session string
			model   string
			age     time.Duration
		}{
			{"sess-1", "claude-sonnet", 40 * 24 * time.Hour},
			{"sess-1", "claude-sonnet", time.Hour},
			{"sess-2", "claude-sonnet", time.Hour},
			{"sess-3", "claude-sonnet", time.Hour},
			{"sess-4", "gpt-5", time.Hour},
		}
		for _, d := range detections {
			det := &types.PatternDetection{
				PatternID:  "pat-001",
				SessionID:  d.session,
				ModelID:    d.model,
				DetectedAt: time.Now().Add(-d.age),
			}
			if err := store.RecordPatternDetection(ctx, det); err != nil {
				t.Fatalf("Failed to record detection: %v", err)
			}
		}

		stats, err := store.ModelPatternRecurrences(ctx, 4, 3)
		if err != nil {
			t.Fatalf("Failed to aggregate recurrences: %v", err)
		}
		if len(stats) != 1 {
			t.Fatalf("Expected one model over threshold, got %d", len(stats))
		}
		if stats[0].ModelID != "claude-sonnet" || stats[0].Detections != 4 || stats[0].Sessions != 3 {
			t.Errorf("Unexpected aggregate: %+v", stats[0])
		}
	})

	t.Run("PruneOldDetections", func(t *testing.T) {
		removed, err := store.DeletePatternDetectionsBefore(ctx, time.Now().Add(-30*24*time.Hour))
		if err != nil {
			t.Fatalf("Failed to prune detections: %v", err)
		}
		if removed != 1 {
			t.Errorf("Expected 1 stale detection pruned, got %d", removed)
		}
	})

	t.Run("FalsePositiveDecay", func(t *testing.T) {
		got, err := store.GetPattern(ctx, "pat-001")
		if err != nil {
			t.Fatalf("Failed to get pattern: %v", err)
		}
		got.Confidence = got.Confidence * 0.85
		got.FalsePositiveCount++
		if got.Confidence < 50 {
			got.Active = false
		}
		if err := store.UpdatePattern(ctx, got); err != nil {
			t.Fatalf("Failed to update pattern: %v", err)
		}

		reread, err := store.GetPattern(ctx, "pat-001")
		if err != nil {
			t.Fatalf("Failed to get pattern: %v", err)
		}
		if reread.FalsePositiveCount != 1 {
			t.Errorf("Expected false positive count 1, got %d", reread.FalsePositiveCount)
		}
		if !reread.Active {
			t.Error("Pattern at 59.5 confidence must stay active")
		}
	})

	t.Run("ActiveFilter", func(t *testing.T) {
		inactive := &types.Pattern{ID: "pat-002", Pattern: "dead-pattern", Confidence: 30, Active: false}
		if err := store.CreatePattern(ctx, inactive); err != nil {
			t.Fatalf("Failed to create pattern: %v", err)
		}

		active, err := store.ListPatterns(ctx, true)
		if err != nil {
			t.Fatalf("Failed to list patterns: %v", err)
		}
		if len(active) != 1 || active[0].ID != "pat-001" {
			t.Errorf("Expected only pat-001 active, got %d patterns", len(active))
		}

		all, err := store.ListPatterns(ctx, false)
		if err != nil {
			t.Fatalf("Failed to list patterns: %v", err)
		}
		if len(all) != 2 {
			t.Errorf("Expected 2 patterns total, got %d", len(all))
		}
	})

	t.Run("Stats", func(t *testing.T) {
		stats, err := store.GetPatternStats(ctx)
		if err != nil {
			t.Fatalf("Failed to get pattern stats: %v", err)
		}
		if stats.Total != 2 || stats.Active != 1 {
			t.Errorf("Expected 2 total / 1 active, got %d/%d", stats.Total, stats.Active)
		}
		if stats.FalsePositives != 1 {
			t.Errorf("Expected 1 false positive, got %d", stats.FalsePositives)
		}
		if stats.Detections != 4 {
			t.Errorf("Expected 4 detections after prune, got %d", stats.Detections)
		}
	})
}

func TestCounterStorage(t *testing.T) {
	store, err := New(":memory:")
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}
	defer func() { _ = store.Close() }()

	ctx := context.Background()

	t.Run("MissingReadsZero", func(t *testing.T) {
		v, err := store.GetCounter(ctx, "sessions_since_last_evolution")
		if err != nil {
			t.Fatalf("Failed to read counter: %v", err)
		}
		if v != 0 {
			t.Errorf("Expected 0 for unset counter, got %d", v)
		}
	})

	t.Run("IncrementReturnsNewValue", func(t *testing.T) {
		for want := int64(1); want <= 3; want++ {
			v, err := store.IncrementCounter(ctx, "sessions_since_last_evolution")
			if err != nil {
				t.Fatalf("Failed to increment counter: %v", err)
			}
			if v != want {
				t.Errorf("Expected %d, got %d", want, v)
			}
		}
	})

	t.Run("Reset", func(t *testing.T) {
		if err := store.ResetCounter(ctx, "sessions_since_last_evolution"); err != nil {
			t.Fatalf("Failed to reset counter: %v", err)
		}
		v, err := store.GetCounter(ctx, "sessions_since_last_evolution")
		if err != nil {
			t.Fatalf("Failed to read counter: %v", err)
		}
		if v != 0 {
			t.Errorf("Expected 0 after reset, got %d", v)
		}
	})

	t.Run("IndependentKeys", func(t *testing.T) {
		if _, err := store.IncrementCounter(ctx, "sessions_since_last_prune"); err != nil {
			t.Fatalf("Failed to increment counter: %v", err)
		}
		v, err := store.GetCounter(ctx, "sessions_since_last_evolution")
		if err != nil {
			t.Fatalf("Failed to read counter: %v", err)
		}
		if v != 0 {
			t.Errorf("Counters must not share state, got %d", v)
		}
	})
}
