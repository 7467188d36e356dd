// Package engine assembles storage, the hook bus, the remediator, and the
// evolution service behind the operation surface that CLI and hub clients
// call. Reads are pure computations over storage snapshots; the mutating
// operations publish bus events after their primary write lands, so
// auto-learning stays best-effort relative to the primary workflow.
package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/DerianAndre/aidd.md-sub000/internal/compliance"
	"github.com/DerianAndre/aidd.md-sub000/internal/evolution"
	"github.com/DerianAndre/aidd.md-sub000/internal/hooks"
	"github.com/DerianAndre/aidd.md-sub000/internal/lifecycle"
	"github.com/DerianAndre/aidd.md-sub000/internal/remedy"
	"github.com/DerianAndre/aidd.md-sub000/internal/storage"
	"github.com/DerianAndre/aidd.md-sub000/internal/types"
)

// CounterViewsEpoch is the meta counter bumped whenever a framework file
// changes. Hub views cache against the epoch and treat any change as
// invalidation.
const CounterViewsEpoch = "views_epoch"

// recentSessionCount bounds the status report's recent-session list.
const recentSessionCount = 5

// Engine is the assembled operation surface.
type Engine struct {
	store        storage.Storage
	bus          *hooks.Bus
	evo          *evolution.Service
	remediator   *remedy.Remediator
	frameworkDir string
}

// Config holds engine configuration.
type Config struct {
	// Store is required.
	Store storage.Storage
	// DataDir is where analysis dumps land. Default ".aidd".
	DataDir string
	// FrameworkDir is where approved drafts are materialized.
	// Default "framework".
	FrameworkDir string
	// HookTimeout bounds each subscriber invocation. Zero means the bus
	// default.
	HookTimeout time.Duration
	// Subscribers toggles the named standard subscribers. Absent names stay
	// enabled.
	Subscribers map[string]bool
	// AnalyzeEvery and PruneEvery override the autonomous pass cadences in
	// session ends. Zero means the defaults.
	AnalyzeEvery int
	PruneEvery   int
	// Fingerprinter overrides the evolution fingerprinter. Optional.
	Fingerprinter evolution.Fingerprinter
}

// New wires the subsystems and registers the standard subscribers.
func New(cfg *Config) (*Engine, error) {
	if cfg == nil || cfg.Store == nil {
		return nil, fmt.Errorf("storage is required")
	}
	dataDir := cfg.DataDir
	if dataDir == "" {
		dataDir = ".aidd"
	}
	frameworkDir := cfg.FrameworkDir
	if frameworkDir == "" {
		frameworkDir = "framework"
	}

	evo, err := evolution.New(&evolution.Config{
		Store:         cfg.Store,
		DataDir:       dataDir,
		Fingerprinter: cfg.Fingerprinter,
	})
	if err != nil {
		return nil, err
	}
	remediator, err := remedy.New(&remedy.Config{Store: cfg.Store})
	if err != nil {
		return nil, err
	}

	bus := hooks.New(&hooks.Config{Timeout: cfg.HookTimeout})
	err = hooks.RegisterDefaults(bus, &hooks.Deps{
		Store:        cfg.Store,
		Evolution:    evo,
		AnalyzeEvery: cfg.AnalyzeEvery,
		PruneEvery:   cfg.PruneEvery,
	})
	if err != nil {
		return nil, err
	}
	// A typo in hooks.yaml should not brick the engine.
	for name, enabled := range cfg.Subscribers {
		if err := bus.SetEnabled(name, enabled); err != nil {
			fmt.Fprintf(os.Stderr, "warning: hooks config: %v\n", err)
		}
	}

	return &Engine{
		store:        cfg.Store,
		bus:          bus,
		evo:          evo,
		remediator:   remediator,
		frameworkDir: frameworkDir,
	}, nil
}

// Evolution exposes the evolution service for operator commands.
func (e *Engine) Evolution() *evolution.Service { return e.evo }

// Subscribers reports the hook bus state for the status surfaces.
func (e *Engine) Subscribers() []hooks.SubscriberStatus { return e.bus.Status() }

// Progress computes the lifecycle progress snapshot for one session.
func (e *Engine) Progress(ctx context.Context, sessionID string) (*types.LifecycleProgress, error) {
	session, artifacts, err := e.sessionSnapshot(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	progress := lifecycle.Score(session, artifacts)
	return &progress, nil
}

// Compliance classifies one session against its required artifact set.
func (e *Engine) Compliance(ctx context.Context, sessionID string) (*types.WorkflowCompliance, error) {
	session, artifacts, err := e.sessionSnapshot(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	result := compliance.Classify(session, artifacts)
	return &result, nil
}

// FixCompliance drafts placeholders for the session's compliance gaps.
func (e *Engine) FixCompliance(ctx context.Context, sessionID string) (*remedy.Result, error) {
	return e.remediator.FixCompliance(ctx, sessionID)
}

// StartSession registers a new capture session.
func (e *Engine) StartSession(ctx context.Context, session *types.Session) error {
	if session.ID == "" {
		session.ID = uuid.New().String()
	}
	now := time.Now()
	if session.StartedAt.IsZero() {
		session.StartedAt = now
	}
	session.UpdatedAt = now
	if err := session.Validate(); err != nil {
		return fmt.Errorf("invalid session: %w", err)
	}
	return e.store.CreateSession(ctx, session)
}

// CompletionResult is what CompleteSession reports back.
type CompletionResult struct {
	Session     *types.Session `json:"session"`
	Remediation *remedy.Result `json:"remediation"`
}

// CompleteSession closes a session: remediation first, then the one-shot
// terminal transition, then the session_ended event. Remediation gaps are
// reported, not fatal; a session that cannot be loaded or is already ended
// fails before anything is written.
func (e *Engine) CompleteSession(ctx context.Context, sessionID string) (*CompletionResult, error) {
	session, err := e.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !session.Active() {
		return nil, fmt.Errorf("session %s is already ended", sessionID)
	}

	remediation, err := e.remediator.FixCompliance(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("remediation failed: %w", err)
	}
	if err := e.store.EndSession(ctx, sessionID, time.Now()); err != nil {
		return nil, err
	}

	e.bus.Publish(ctx, hooks.NewSessionEnded(sessionID))

	session, err = e.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return &CompletionResult{Session: session, Remediation: remediation}, nil
}

// SaveObservation persists the observation and announces it on the bus.
func (e *Engine) SaveObservation(ctx context.Context, obs *types.Observation) error {
	if obs.ID == "" {
		obs.ID = uuid.New().String()
	}
	if obs.CreatedAt.IsZero() {
		obs.CreatedAt = time.Now()
	}
	if err := obs.Validate(); err != nil {
		return fmt.Errorf("invalid observation: %w", err)
	}
	if _, err := e.store.GetSession(ctx, obs.SessionID); err != nil {
		return err
	}
	if err := e.store.CreateObservation(ctx, obs); err != nil {
		return err
	}

	e.bus.Publish(ctx, hooks.NewObservationSaved(obs.ID, obs.SessionID))
	return nil
}

// SubmitFeedback records the operator verdict on a session and immediately
// applies it to matching candidates. Feedback usually arrives after the
// session_ended event has long fired, so the loop is applied here rather
// than waiting for a bus event that already passed.
func (e *Engine) SubmitFeedback(ctx context.Context, sessionID string, feedback types.Feedback) (*evolution.FeedbackResult, error) {
	if feedback == types.FeedbackNone || !feedback.IsValid() {
		return nil, fmt.Errorf("invalid feedback: %q", feedback)
	}
	if err := e.store.SetUserFeedback(ctx, sessionID, feedback); err != nil {
		return nil, err
	}
	session, err := e.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return e.evo.ApplyFeedback(ctx, session)
}

// ApproveDraft marks a pending draft approved and materializes it under the
// framework directory. The views epoch is bumped after the file lands, so
// cached views re-read the framework.
func (e *Engine) ApproveDraft(ctx context.Context, draftID string) (*types.Draft, string, error) {
	draft, err := e.store.GetDraft(ctx, draftID)
	if err != nil {
		return nil, "", err
	}
	if draft.Status != types.DraftPending {
		return nil, "", fmt.Errorf("draft %s is %s, not pending", draftID, draft.Status)
	}

	path := filepath.Join(e.frameworkDir, string(draft.Category), draft.Filename)
	if err := writeFileAtomic(path, []byte(draft.Content)); err != nil {
		return nil, "", fmt.Errorf("failed to materialize draft: %w", err)
	}

	now := time.Now()
	draft.Status = types.DraftApproved
	draft.ApprovedAt = &now
	draft.UpdatedAt = now
	if err := e.store.UpdateDraft(ctx, draft); err != nil {
		return nil, "", err
	}
	if _, err := e.store.IncrementCounter(ctx, CounterViewsEpoch); err != nil {
		return nil, "", fmt.Errorf("draft approved but views epoch not bumped: %w", err)
	}
	return draft, path, nil
}

// RejectDraft marks a pending draft rejected. Nothing is materialized, so the
// views epoch is left alone.
func (e *Engine) RejectDraft(ctx context.Context, draftID, reason string) (*types.Draft, error) {
	draft, err := e.store.GetDraft(ctx, draftID)
	if err != nil {
		return nil, err
	}
	if draft.Status != types.DraftPending {
		return nil, fmt.Errorf("draft %s is %s, not pending", draftID, draft.Status)
	}

	draft.Status = types.DraftRejected
	draft.RejectedReason = reason
	draft.UpdatedAt = time.Now()
	if err := e.store.UpdateDraft(ctx, draft); err != nil {
		return nil, err
	}
	return draft, nil
}

// ApproveCandidate forwards operator approval to the evolution service.
func (e *Engine) ApproveCandidate(ctx context.Context, id string, withDraft bool) (*types.EvolutionCandidate, *types.Draft, error) {
	return e.evo.ApproveCandidate(ctx, id, withDraft)
}

// RejectCandidate forwards operator rejection to the evolution service.
func (e *Engine) RejectCandidate(ctx context.Context, id, reason string) (*types.EvolutionCandidate, error) {
	return e.evo.RejectCandidate(ctx, id, reason)
}

// CreateCandidate registers an operator-authored candidate.
func (e *Engine) CreateCandidate(ctx context.Context, c *types.EvolutionCandidate) error {
	return e.evo.CreateCandidate(ctx, c)
}

// UpdateCandidate persists an operator edit to a candidate.
func (e *Engine) UpdateCandidate(ctx context.Context, c *types.EvolutionCandidate) error {
	return e.evo.UpdateCandidate(ctx, c)
}

// DeleteCandidate removes a candidate, logging the removal.
func (e *Engine) DeleteCandidate(ctx context.Context, id string) error {
	return e.evo.DeleteCandidate(ctx, id)
}

// Analyze runs the full detector pass on demand.
func (e *Engine) Analyze(ctx context.Context) (*evolution.AnalysisResult, error) {
	return e.evo.Analyze(ctx)
}

// Prune enforces the retention bounds on demand.
func (e *Engine) Prune(ctx context.Context) (*evolution.PruneResult, error) {
	return e.evo.Prune(ctx)
}

// StatusReport aggregates the engine's health counters for one status call.
type StatusReport struct {
	Sessions    *types.SessionStats      `json:"sessions"`
	Recent      []*types.Session         `json:"recent"`
	Evolution   *types.EvolutionStats    `json:"evolution"`
	Patterns    *types.PatternStats      `json:"patterns"`
	Subscribers []hooks.SubscriberStatus `json:"subscribers"`
	ViewsEpoch  int64                    `json:"views_epoch"`
}

// Status snapshots the aggregate counters surfaced by `aidd status`.
func (e *Engine) Status(ctx context.Context) (*StatusReport, error) {
	sessions, err := e.store.GetSessionStats(ctx)
	if err != nil {
		return nil, err
	}
	recent, err := e.store.ListSessions(ctx, types.SessionFilter{Limit: recentSessionCount})
	if err != nil {
		return nil, err
	}
	evo, err := e.store.GetEvolutionStats(ctx)
	if err != nil {
		return nil, err
	}
	patterns, err := e.store.GetPatternStats(ctx)
	if err != nil {
		return nil, err
	}
	epoch, err := e.store.GetCounter(ctx, CounterViewsEpoch)
	if err != nil {
		return nil, err
	}

	return &StatusReport{
		Sessions:    sessions,
		Recent:      recent,
		Evolution:   evo,
		Patterns:    patterns,
		Subscribers: e.bus.Status(),
		ViewsEpoch:  epoch,
	}, nil
}

// sessionSnapshot loads a session with its associated artifacts.
func (e *Engine) sessionSnapshot(ctx context.Context, sessionID string) (*types.Session, []types.Artifact, error) {
	session, err := e.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	artifacts, err := e.store.GetSessionArtifacts(ctx, session)
	if err != nil {
		return nil, nil, err
	}
	return session, artifacts, nil
}

// writeFileAtomic writes via a temp file and rename, so a half-written
// framework file is never visible.
func writeFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}
