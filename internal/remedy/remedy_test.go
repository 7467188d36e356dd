package remedy

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DerianAndre/aidd.md-sub000/internal/storage"
	"github.com/DerianAndre/aidd.md-sub000/internal/types"
)

func newTestRemediator(t *testing.T) (*Remediator, storage.Storage) {
	t.Helper()

	store, err := storage.NewStorage(context.Background(), &storage.Config{Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	r, err := New(&Config{Store: store})
	require.NoError(t, err)
	return r, store
}

func newSession(t *testing.T, store storage.Storage, id string, fastTrack bool) *types.Session {
	t.Helper()

	session := &types.Session{
		ID:     id,
		Branch: "feat/" + id,
		Input:  "add request tracing to the gateway",
		TaskClassification: types.TaskClassification{
			FastTrack: fastTrack,
		},
		StartedAt: time.Now().Add(-time.Hour),
	}
	require.NoError(t, store.CreateSession(context.Background(), session))
	return session
}

func TestNewRequiresStorage(t *testing.T) {
	_, err := New(&Config{})
	assert.Error(t, err)

	_, err = New(nil)
	assert.Error(t, err)
}

func TestFixComplianceDraftsEveryGap(t *testing.T) {
	r, store := newTestRemediator(t)
	ctx := context.Background()
	newSession(t, store, "sess-gap", false)

	result, err := r.FixCompliance(ctx, "sess-gap")
	require.NoError(t, err)

	assert.Equal(t, []types.ArtifactType{
		types.ArtifactBrainstorm, types.ArtifactPlan, types.ArtifactChecklist, types.ArtifactRetro,
	}, result.MissingRequired)
	assert.Len(t, result.Created, 4)
	assert.Empty(t, result.SkippedExisting)
	assert.Equal(t, 4, result.PendingAfter)
	assert.Empty(t, result.Failures)

	draft, err := store.GetPendingDraftByTitle(ctx, DraftTitle(types.ArtifactRetro, "sess-gap"))
	require.NoError(t, err)
	require.NotNil(t, draft)
	assert.Equal(t, types.CategoryWorkflows, draft.Category)
	assert.Equal(t, types.SourceManual, draft.Source)
	assert.Equal(t, float64(90), draft.Confidence)
	assert.Equal(t, "auto-draft-retro-sess-gap.md", draft.Filename)
	assert.Equal(t, types.ArtifactRetro, draft.ArtifactType)
	assert.Equal(t, "sess-gap", draft.SessionID)
	assert.Contains(t, draft.Content, "add request tracing to the gateway")
}

func TestFixComplianceIsIdempotent(t *testing.T) {
	r, store := newTestRemediator(t)
	ctx := context.Background()
	newSession(t, store, "sess-twice", false)

	first, err := r.FixCompliance(ctx, "sess-twice")
	require.NoError(t, err)
	require.NotEmpty(t, first.Created)
	assert.Empty(t, first.SkippedExisting)

	second, err := r.FixCompliance(ctx, "sess-twice")
	require.NoError(t, err)
	assert.Empty(t, second.Created)
	assert.Equal(t, first.Created, second.SkippedExisting)
	assert.Equal(t, first.PendingAfter, second.PendingAfter)

	status := types.DraftPending
	drafts, err := store.ListDrafts(ctx, types.DraftFilter{Status: &status})
	require.NoError(t, err)
	assert.Len(t, drafts, len(first.Created))
}

func TestFixComplianceHonorsExistingArtifacts(t *testing.T) {
	r, store := newTestRemediator(t)
	ctx := context.Background()
	newSession(t, store, "sess-part", true)

	for i, at := range []types.ArtifactType{types.ArtifactPlan, types.ArtifactRetro} {
		artifact := &types.Artifact{
			ID:        "art-" + string(rune('a'+i)),
			SessionID: "sess-part",
			Type:      at,
			Status:    types.ArtifactDone,
			Title:     string(at),
		}
		require.NoError(t, store.CreateArtifact(ctx, artifact))
	}

	result, err := r.FixCompliance(ctx, "sess-part")
	require.NoError(t, err)

	// Fast-track requires plan, checklist, retro; only the checklist is open.
	assert.Equal(t, []types.ArtifactType{types.ArtifactChecklist}, result.MissingRequired)
	assert.Equal(t, []types.ArtifactType{types.ArtifactChecklist}, result.Created)
	assert.Equal(t, 1, result.PendingAfter)
}

func TestFixComplianceObservationExcerpts(t *testing.T) {
	r, store := newTestRemediator(t)
	ctx := context.Background()
	newSession(t, store, "sess-obs", true)

	long := strings.Repeat("х", 200)
	narratives := []string{long, "", "short finding", "another finding",
		"third finding", "fourth finding", "fifth surplus finding"}
	for i, n := range narratives {
		obs := &types.Observation{
			ID:        "obs-" + string(rune('a'+i)),
			SessionID: "sess-obs",
			Narrative: n,
			CreatedAt: time.Now().Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, store.CreateObservation(ctx, obs))
	}

	_, err := r.FixCompliance(ctx, "sess-obs")
	require.NoError(t, err)

	draft, err := store.GetPendingDraftByTitle(ctx, DraftTitle(types.ArtifactChecklist, "sess-obs"))
	require.NoError(t, err)
	require.NotNil(t, draft)

	assert.Contains(t, draft.Content, strings.Repeat("х", 180)+"...")
	assert.NotContains(t, draft.Content, strings.Repeat("х", 181))
	// Blank narratives are skipped and the excerpt list is capped at five.
	assert.Equal(t, 5, strings.Count(draft.Content, "\n- "))
	assert.NotContains(t, draft.Content, "fifth surplus finding")
}

func TestFixComplianceUnknownSession(t *testing.T) {
	r, _ := newTestRemediator(t)

	_, err := r.FixCompliance(context.Background(), "sess-missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestFixComplianceRedraftsAfterApproval(t *testing.T) {
	r, store := newTestRemediator(t)
	ctx := context.Background()
	newSession(t, store, "sess-redo", true)

	first, err := r.FixCompliance(ctx, "sess-redo")
	require.NoError(t, err)
	require.Contains(t, first.Created, types.ArtifactChecklist)

	draft, err := store.GetPendingDraftByTitle(ctx, DraftTitle(types.ArtifactChecklist, "sess-redo"))
	require.NoError(t, err)
	require.NotNil(t, draft)
	draft.Status = types.DraftApproved
	require.NoError(t, store.UpdateDraft(ctx, draft))

	// Only a pending draft suppresses creation; a settled one does not.
	second, err := r.FixCompliance(ctx, "sess-redo")
	require.NoError(t, err)
	assert.Contains(t, second.Created, types.ArtifactChecklist)
	assert.NotContains(t, second.SkippedExisting, types.ArtifactChecklist)
}

func TestFixComplianceConcurrentCallsDoNotDuplicate(t *testing.T) {
	r, store := newTestRemediator(t)
	ctx := context.Background()
	newSession(t, store, "sess-race", false)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := r.FixCompliance(ctx, "sess-race")
			if err != nil {
				t.Errorf("FixCompliance failed: %v", err)
				return
			}
			if result.PendingAfter != 4 {
				t.Errorf("Expected 4 pending after, got %d", result.PendingAfter)
			}
		}()
	}
	wg.Wait()

	status := types.DraftPending
	drafts, err := store.ListDrafts(ctx, types.DraftFilter{Status: &status})
	require.NoError(t, err)
	assert.Len(t, drafts, 4)
}
