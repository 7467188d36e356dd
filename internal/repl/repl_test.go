package repl

import (
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DerianAndre/aidd.md-sub000/internal/engine"
	"github.com/DerianAndre/aidd.md-sub000/internal/storage"
	"github.com/DerianAndre/aidd.md-sub000/internal/types"
)

func newTestREPL(t *testing.T) (*REPL, storage.Storage, *engine.Engine) {
	t.Helper()

	store, err := storage.NewStorage(context.Background(), &storage.Config{Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	eng, err := engine.New(&engine.Config{
		Store:        store,
		DataDir:      t.TempDir(),
		FrameworkDir: filepath.Join(t.TempDir(), "framework"),
	})
	require.NoError(t, err)

	r, err := New(&Config{Store: store, Engine: eng})
	require.NoError(t, err)
	r.ctx = context.Background()
	return r, store, eng
}

func TestNewValidates(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)

	store, err := storage.NewStorage(context.Background(), &storage.Config{Path: ":memory:"})
	require.NoError(t, err)
	defer store.Close()

	_, err = New(&Config{Store: store})
	assert.Error(t, err, "engine is required")
}

func TestProcessInputDispatch(t *testing.T) {
	r, _, _ := newTestREPL(t)

	// Unknown commands and empty lines are not errors.
	assert.NoError(t, r.processInput("definitely-not-a-command"))
	assert.NoError(t, r.processInput("   "))

	// Registered commands run.
	assert.NoError(t, r.processInput("help"))
	assert.NoError(t, r.processInput("status"))
	assert.NoError(t, r.processInput("sessions"))
	assert.NoError(t, r.processInput("candidates"))
	assert.NoError(t, r.processInput("drafts"))
}

func TestComplianceCommand(t *testing.T) {
	r, store, _ := newTestREPL(t)
	ctx := context.Background()

	assert.Error(t, r.processInput("compliance"), "usage error without args")

	now := time.Now()
	require.NoError(t, store.CreateSession(ctx, &types.Session{
		ID: "sess-1", Branch: "main", StartedAt: now, UpdatedAt: now,
	}))
	require.NoError(t, store.EndSession(ctx, "sess-1", now))

	assert.NoError(t, r.processInput("compliance sess-1"))
	assert.Error(t, r.processInput("compliance sess-missing"))
}

func TestFixCreatesDrafts(t *testing.T) {
	r, store, _ := newTestREPL(t)
	ctx := context.Background()

	assert.Error(t, r.processInput("fix"))

	now := time.Now()
	require.NoError(t, store.CreateSession(ctx, &types.Session{
		ID: "sess-1", Branch: "main", StartedAt: now, UpdatedAt: now,
	}))

	require.NoError(t, r.processInput("fix sess-1"))

	pending := types.DraftPending
	drafts, err := store.ListDrafts(ctx, types.DraftFilter{Status: &pending})
	require.NoError(t, err)
	assert.Len(t, drafts, 4)

	// Listing them afterwards still works.
	assert.NoError(t, r.processInput("drafts"))
}

func TestCandidateReviewFlow(t *testing.T) {
	r, store, eng := newTestREPL(t)
	ctx := context.Background()

	require.NoError(t, eng.CreateCandidate(ctx, &types.EvolutionCandidate{
		ID:         "cand-1",
		Type:       types.CandidateSkillCombo,
		Title:      "Skill combo: caching + invalidation",
		Confidence: 50,
	}))

	assert.Error(t, r.processInput("approve"))
	require.NoError(t, r.processInput("approve cand-1"))

	candidate, err := store.GetCandidate(ctx, "cand-1")
	require.NoError(t, err)
	assert.Equal(t, types.CandidateApproved, candidate.Status)

	// Approval drafted the framework file proposal.
	pending := types.DraftPending
	drafts, err := store.ListDrafts(ctx, types.DraftFilter{Status: &pending})
	require.NoError(t, err)
	require.Len(t, drafts, 1)

	// Approve the draft through the shell's subcommand form.
	require.NoError(t, r.processInput("drafts approve "+drafts[0].ID))
	approved, err := store.GetDraft(ctx, drafts[0].ID)
	require.NoError(t, err)
	assert.Equal(t, types.DraftApproved, approved.Status)

	assert.Error(t, r.processInput("reject cand-missing"))
}

func TestRejectCandidate(t *testing.T) {
	r, store, eng := newTestREPL(t)
	ctx := context.Background()

	require.NoError(t, eng.CreateCandidate(ctx, &types.EvolutionCandidate{
		ID:         "cand-1",
		Type:       types.CandidateNewConvention,
		Title:      "Adopt convention table-driven-tests",
		Confidence: 40,
	}))

	require.NoError(t, r.processInput("reject cand-1 not enough evidence yet"))

	candidate, err := store.GetCandidate(ctx, "cand-1")
	require.NoError(t, err)
	assert.Equal(t, types.CandidateRejected, candidate.Status)
}

func TestExitSignalsEOF(t *testing.T) {
	r, _, _ := newTestREPL(t)
	assert.Equal(t, io.EOF, r.processInput("exit"))
	assert.Equal(t, io.EOF, r.processInput("quit"))
}
