package hooks

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DerianAndre/aidd.md-sub000/internal/evolution"
	"github.com/DerianAndre/aidd.md-sub000/internal/storage"
	"github.com/DerianAndre/aidd.md-sub000/internal/types"
)

func newWiredBus(t *testing.T) (*Bus, storage.Storage, *evolution.Service) {
	t.Helper()

	store, err := storage.NewStorage(context.Background(), &storage.Config{Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	svc, err := evolution.New(&evolution.Config{Store: store, DataDir: t.TempDir()})
	require.NoError(t, err)

	bus := New(nil)
	require.NoError(t, RegisterDefaults(bus, &Deps{Store: store, Evolution: svc}))
	return bus, store, svc
}

func endSession(t *testing.T, store storage.Storage, s *types.Session) {
	t.Helper()

	if s.Branch == "" {
		s.Branch = "main"
	}
	ctx := context.Background()
	require.NoError(t, store.CreateSession(ctx, s))
	require.NoError(t, store.EndSession(ctx, s.ID, time.Now()))
}

func TestRegisterDefaultsOrder(t *testing.T) {
	bus, _, _ := newWiredBus(t)

	var names []string
	for _, st := range bus.Status() {
		names = append(names, st.Name)
	}
	assert.Equal(t, []string{
		SubscriberPatternAutoDetect,
		SubscriberPatternModelProfile,
		SubscriberAutoAnalyze,
		SubscriberFeedbackLoop,
		SubscriberAutoPrune,
	}, names)
}

func TestPatternAutoDetectRecordsLongNarratives(t *testing.T) {
	bus, store, _ := newWiredBus(t)
	ctx := context.Background()

	require.NoError(t, store.CreateSession(ctx, &types.Session{
		ID:         "sess-1",
		Branch:     "main",
		AIProvider: types.AIProvider{ModelID: "claude-sonnet"},
	}))

	long := &types.Observation{
		ID:        "obs-long",
		SessionID: "sess-1",
		Narrative: "the cache invalidation path was never exercised under load in staging",
	}
	require.NoError(t, store.CreateObservation(ctx, long))
	bus.Publish(ctx, NewObservationSaved("obs-long", "sess-1"))

	stats, err := store.GetPatternStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Total)
	assert.Equal(t, 1, stats.Detections)

	short := &types.Observation{
		ID:        "obs-short",
		SessionID: "sess-1",
		Narrative: "too short to matter",
	}
	require.NoError(t, store.CreateObservation(ctx, short))
	bus.Publish(ctx, NewObservationSaved("obs-short", "sess-1"))

	stats, err = store.GetPatternStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Total, "short narratives must not open patterns")
	assert.Equal(t, 1, stats.Detections)
}

func TestFeedbackLoopAdjustsMatchingCandidates(t *testing.T) {
	bus, store, svc := newWiredBus(t)
	ctx := context.Background()

	c := &types.EvolutionCandidate{
		Type:       types.CandidateSkillCombo,
		Title:      "Skill combo: caching + invalidation",
		Confidence: 60,
		Evidence:   []string{"sess-1"},
	}
	require.NoError(t, svc.CreateCandidate(ctx, c))

	endSession(t, store, &types.Session{
		ID:      "sess-1",
		Outcome: types.Outcome{UserFeedback: types.FeedbackPositive},
	})
	bus.Publish(ctx, NewSessionEnded("sess-1"))

	got, err := store.GetCandidate(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, float64(65), got.Confidence) // single evidence entry: weak delta
}

func TestAutoAnalyzeFiresEveryFifthSessionEnd(t *testing.T) {
	bus, store, _ := newWiredBus(t)
	ctx := context.Background()

	title := "Lower routing weight for claude-sonnet on backend tasks"
	for i := 1; i <= 5; i++ {
		id := fmt.Sprintf("sess-%d", i)
		endSession(t, store, &types.Session{
			ID:                 id,
			AIProvider:         types.AIProvider{ModelID: "claude-sonnet"},
			TaskClassification: types.TaskClassification{Domain: "backend"},
			Outcome:            types.Outcome{Reverts: 1},
		})
		bus.Publish(ctx, NewSessionEnded(id))

		c, err := store.GetCandidateByTypeTitle(ctx, types.CandidateRoutingWeight, title)
		require.NoError(t, err)
		if i < 5 {
			assert.Nil(t, c, "analysis must wait for the fifth session end")
		} else {
			require.NotNil(t, c)
			assert.Equal(t, 5, c.SessionCount)
		}
	}

	n, err := store.GetCounter(ctx, CounterEvolution)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n, "cadence counter resets after the pass")

	n, err = store.GetCounter(ctx, CounterPrune)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n, "the prune counter keeps its own cadence")
}

func TestAutoPruneFiresEveryTenthSessionEnd(t *testing.T) {
	bus, store, svc := newWiredBus(t)
	ctx := context.Background()

	p, err := svc.RecordPattern(ctx, "stale detection retention check narrative", "sess-old", "")
	require.NoError(t, err)
	require.NotNil(t, p)
	require.NoError(t, store.RecordPatternDetection(ctx, &types.PatternDetection{
		PatternID:  p.ID,
		SessionID:  "sess-old",
		DetectedAt: time.Now().Add(-40 * 24 * time.Hour),
	}))

	for i := 1; i <= 10; i++ {
		id := fmt.Sprintf("sess-%d", i)
		endSession(t, store, &types.Session{ID: id})
		bus.Publish(ctx, NewSessionEnded(id))
	}

	stats, err := store.GetPatternStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Detections, "the stale detection is pruned, the fresh one stays")

	n, err := store.GetCounter(ctx, CounterPrune)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestModelProfilePromotesModelCandidate(t *testing.T) {
	bus, store, svc := newWiredBus(t)
	ctx := context.Background()

	narrative := "retry loop hammers the endpoint without backoff"
	for _, sessID := range []string{"sess-1", "sess-2", "sess-3", "sess-1", "sess-2"} {
		_, err := svc.RecordPattern(ctx, narrative, sessID, "claude-sonnet")
		require.NoError(t, err)
	}

	endSession(t, store, &types.Session{ID: "sess-1"})
	bus.Publish(ctx, NewSessionEnded("sess-1"))

	modelType := types.CandidateModelRecommendation
	list, err := store.ListCandidates(ctx, types.CandidateFilter{Type: &modelType})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "claude-sonnet", list[0].ModelScope)
	assert.Equal(t, 3, list[0].SessionCount)
}

func TestMissingObservationTripsDetectBreaker(t *testing.T) {
	bus, _, _ := newWiredBus(t)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		bus.Publish(ctx, NewObservationSaved("obs-missing", "sess-1"))
	}

	var found bool
	for _, st := range bus.Status() {
		if st.Name == SubscriberPatternAutoDetect {
			found = true
			assert.True(t, st.Disabled)
			assert.Equal(t, maxConsecutiveFailures, st.ConsecutiveFailures)
		}
	}
	require.True(t, found)
}
