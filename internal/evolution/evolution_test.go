package evolution

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DerianAndre/aidd.md-sub000/internal/storage"
	"github.com/DerianAndre/aidd.md-sub000/internal/types"
)

func newTestService(t *testing.T) (*Service, storage.Storage) {
	t.Helper()

	store, err := storage.NewStorage(context.Background(), &storage.Config{Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	svc, err := New(&Config{Store: store, DataDir: t.TempDir()})
	require.NoError(t, err)
	return svc, store
}

func seedCandidate(t *testing.T, svc *Service, confidence float64, evidence []string, modelScope string) *types.EvolutionCandidate {
	t.Helper()

	c := &types.EvolutionCandidate{
		Type:       types.CandidateSkillCombo,
		Title:      "Skill combo: caching + invalidation",
		Confidence: confidence,
		Evidence:   evidence,
		ModelScope: modelScope,
	}
	require.NoError(t, svc.CreateCandidate(context.Background(), c))
	return c
}

func TestTierBoundaries(t *testing.T) {
	assert.Equal(t, types.CandidatePending, tierFor(69))
	assert.Equal(t, types.CandidateDrafted, tierFor(70))
	assert.Equal(t, types.CandidateDrafted, tierFor(89))
	assert.Equal(t, types.CandidateAutoApplied, tierFor(90))
}

func TestInitialConfidence(t *testing.T) {
	assert.Equal(t, float64(60), initialConfidence(3))
	assert.Equal(t, float64(70), initialConfidence(4))
	assert.Equal(t, float64(85), initialConfidence(6))  // capped
	assert.Equal(t, float64(85), initialConfidence(50)) // capped
}

func TestCreateCandidateTiersAndLogs(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	c := seedCandidate(t, svc, 75, []string{"sess-1"}, "")
	assert.Equal(t, types.CandidateDrafted, c.Status)

	entries, err := store.GetEvolutionLog(ctx, c.ID, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, types.ActionDrafted, entries[0].Action)
	assert.Equal(t, float64(75), entries[0].Confidence)
	assert.Contains(t, entries[0].Snapshot, c.Title)
}

func TestAdjustConfidenceRetiers(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	c := seedCandidate(t, svc, 85, []string{"sess-1"}, "")

	settled, err := svc.AdjustConfidence(ctx, c.ID, 10)
	require.NoError(t, err)
	require.NotNil(t, settled)
	assert.Equal(t, float64(95), settled.Confidence)
	assert.Equal(t, types.CandidateAutoApplied, settled.Status)

	settled, err = svc.AdjustConfidence(ctx, c.ID, -40)
	require.NoError(t, err)
	require.NotNil(t, settled)
	assert.Equal(t, float64(55), settled.Confidence)
	assert.Equal(t, types.CandidatePending, settled.Status)

	// One entry per transition: create, raise, lower.
	entries, err := store.GetEvolutionLog(ctx, c.ID, 10)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestConfidenceFloorDestroysCandidate(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	c := seedCandidate(t, svc, 30, []string{"sess-1"}, "")

	settled, err := svc.AdjustConfidence(ctx, c.ID, -15)
	require.NoError(t, err)
	assert.Nil(t, settled)

	_, err = store.GetCandidate(ctx, c.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")

	// The log keeps the candidate's whole history, ending in reverted.
	entries, err := store.GetEvolutionLog(ctx, c.ID, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, types.ActionReverted, entries[0].Action)
}

func TestNegativeFeedbackDemotesAutoApplied(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	evidence := []string{"sess-fb", "sess-2", "sess-3", "sess-4", "sess-5", "sess-6"}
	c := seedCandidate(t, svc, 91, evidence, "")
	require.Equal(t, types.CandidateAutoApplied, c.Status)

	session := &types.Session{
		ID:      "sess-fb",
		Outcome: types.Outcome{UserFeedback: types.FeedbackNegative},
	}
	result, err := svc.ApplyFeedback(ctx, session)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Matched)
	assert.Equal(t, 1, result.Adjusted)
	assert.Equal(t, 0, result.Deleted)

	// Six evidence entries means the strong delta: 91 - 15 = 76.
	got, err := store.GetCandidate(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, float64(76), got.Confidence)
	assert.Equal(t, types.CandidateDrafted, got.Status)

	// Create plus the demotion: exactly one entry for the adjustment.
	entries, err := store.GetEvolutionLog(ctx, c.ID, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, types.ActionDrafted, entries[0].Action)
	assert.Equal(t, float64(76), entries[0].Confidence)
}

func TestFeedbackDeltaScalesWithEvidence(t *testing.T) {
	assert.Equal(t, float64(5), feedbackDelta(0))
	assert.Equal(t, float64(5), feedbackDelta(2))
	assert.Equal(t, float64(10), feedbackDelta(3))
	assert.Equal(t, float64(10), feedbackDelta(5))
	assert.Equal(t, float64(15), feedbackDelta(6))
}

func TestFeedbackMatchesByModelScope(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	c := seedCandidate(t, svc, 50, []string{"unrelated"}, "claude-sonnet")

	session := &types.Session{
		ID:         "sess-model",
		AIProvider: types.AIProvider{ModelID: "claude-sonnet"},
		Outcome:    types.Outcome{UserFeedback: types.FeedbackPositive},
	}
	result, err := svc.ApplyFeedback(ctx, session)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Matched)

	got, err := store.GetCandidate(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, float64(55), got.Confidence)
}

func TestFeedbackSkipsTerminalAndUnmatched(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	terminal := seedCandidate(t, svc, 95, []string{"sess-skip"}, "")
	_, _, err := svc.ApproveCandidate(ctx, terminal.ID, false)
	require.NoError(t, err)

	unmatched := &types.EvolutionCandidate{
		Type:       types.CandidateNewConvention,
		Title:      "Adopt convention table-driven-tests",
		Confidence: 60,
		Evidence:   []string{"sess-elsewhere"},
	}
	require.NoError(t, svc.CreateCandidate(ctx, unmatched))

	session := &types.Session{
		ID:      "sess-skip",
		Outcome: types.Outcome{UserFeedback: types.FeedbackNegative},
	}
	result, err := svc.ApplyFeedback(ctx, session)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Matched)

	got, err := store.GetCandidate(ctx, terminal.ID)
	require.NoError(t, err)
	assert.Equal(t, float64(95), got.Confidence)
	assert.Equal(t, types.CandidateApproved, got.Status)
}

func TestNeutralFeedbackIsNoOp(t *testing.T) {
	svc, _ := newTestService(t)

	session := &types.Session{ID: "sess-quiet", Outcome: types.Outcome{UserFeedback: types.FeedbackNeutral}}
	result, err := svc.ApplyFeedback(context.Background(), session)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Matched)

	session.Outcome.UserFeedback = types.FeedbackNone
	result, err = svc.ApplyFeedback(context.Background(), session)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Matched)
}

func TestApproveMaterializesDraft(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	c := seedCandidate(t, svc, 55, []string{"sess-1"}, "")

	approved, draft, err := svc.ApproveCandidate(ctx, c.ID, true)
	require.NoError(t, err)
	// Approval bypasses the tiers: 55 would otherwise be pending.
	assert.Equal(t, types.CandidateApproved, approved.Status)

	require.NotNil(t, draft)
	assert.Equal(t, types.CategorySkills, draft.Category)
	assert.Equal(t, types.SourceEvolution, draft.Source)
	assert.Equal(t, c.ID, draft.EvolutionCandidateID)
	assert.Equal(t, types.DraftPending, draft.Status)
	assert.NotEmpty(t, draft.Filename)

	stored, err := store.GetDraft(ctx, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, draft.Title, stored.Title)

	entries, err := store.GetEvolutionLog(ctx, c.ID, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, types.ActionDrafted, entries[0].Action)
}

func TestRejectLogsAndSettles(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	c := seedCandidate(t, svc, 80, []string{"sess-1"}, "")

	rejected, err := svc.RejectCandidate(ctx, c.ID, "duplicate of an existing rule")
	require.NoError(t, err)
	assert.Equal(t, types.CandidateRejected, rejected.Status)

	entries, err := store.GetEvolutionLog(ctx, c.ID, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, types.ActionRejected, entries[0].Action)
}

func TestDeleteLogsReverted(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	c := seedCandidate(t, svc, 80, []string{"sess-1"}, "")
	require.NoError(t, svc.DeleteCandidate(ctx, c.ID))

	_, err := store.GetCandidate(ctx, c.ID)
	assert.Error(t, err)

	entries, err := store.GetEvolutionLog(ctx, c.ID, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, types.ActionReverted, entries[0].Action)
}

func TestUpdateBypassesTiers(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	c := seedCandidate(t, svc, 40, []string{"sess-1"}, "")

	// The operator pins a high confidence but keeps the status pending;
	// the edit is taken as given.
	c.Confidence = 95
	require.NoError(t, svc.UpdateCandidate(ctx, c))

	got, err := store.GetCandidate(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, float64(95), got.Confidence)
	assert.Equal(t, types.CandidatePending, got.Status)
}

func TestRecordPatternLifecycle(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	narrative := "the retry loop hammers the API without any backoff"

	p1, err := svc.RecordPattern(ctx, narrative, "sess-1", "claude-sonnet")
	require.NoError(t, err)
	require.NotNil(t, p1)
	assert.Equal(t, float64(60), p1.Confidence)
	assert.True(t, p1.Active)

	// Case and punctuation variants key the same pattern.
	p2, err := svc.RecordPattern(ctx, "The retry loop hammers the API, without any backoff!", "sess-2", "claude-sonnet")
	require.NoError(t, err)
	require.NotNil(t, p2)
	assert.Equal(t, p1.ID, p2.ID)
	assert.Equal(t, float64(65), p2.Confidence)

	stats, err := store.GetPatternStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Total)
	assert.Equal(t, 2, stats.Detections)
}

func TestRecordPatternEmptyKey(t *testing.T) {
	svc, _ := newTestService(t)

	p, err := svc.RecordPattern(context.Background(), "a an it", "sess-1", "")
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestFalsePositiveDecayDeactivates(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	p, err := svc.RecordPattern(ctx, "tests silently skipped when the harness panics", "sess-1", "")
	require.NoError(t, err)
	require.NotNil(t, p)

	// 60 * 0.85 = 51, still active.
	decayed, err := svc.ReportFalsePositive(ctx, p.ID)
	require.NoError(t, err)
	assert.InDelta(t, 51, decayed.Confidence, 0.01)
	assert.True(t, decayed.Active)
	assert.Equal(t, 1, decayed.FalsePositiveCount)

	// 51 * 0.85 = 43.35, below 50: deactivated.
	decayed, err = svc.ReportFalsePositive(ctx, p.ID)
	require.NoError(t, err)
	assert.False(t, decayed.Active)

	// A deactivated pattern stops accumulating detections.
	before, err := store.GetPatternStats(ctx)
	require.NoError(t, err)
	same, err := svc.RecordPattern(ctx, "tests silently skipped when the harness panics", "sess-2", "")
	require.NoError(t, err)
	assert.False(t, same.Active)
	after, err := store.GetPatternStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, before.Detections, after.Detections)
}

func TestPruneEnforcesRetention(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	p, err := svc.RecordPattern(ctx, "stale detection retention check narrative", "sess-new", "")
	require.NoError(t, err)
	require.NotNil(t, p)

	old := &types.PatternDetection{
		PatternID:  p.ID,
		SessionID:  "sess-old",
		DetectedAt: time.Now().Add(-40 * 24 * time.Hour),
	}
	require.NoError(t, store.RecordPatternDetection(ctx, old))

	result, err := svc.Prune(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.DetectionsRemoved)
	assert.Equal(t, 0, result.ObservationsRemoved)
	assert.Equal(t, 0, result.SessionsRemoved)
	assert.Empty(t, result.Failures)
}
