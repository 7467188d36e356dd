// Package evolution turns session history into confidence-scored proposals
// for changing the governing framework. Detectors mine recurring behavior
// into candidates, operator feedback moves candidate confidence up or down,
// and confidence tiers decide whether a candidate is pending, drafted for
// review, applied automatically, or destroyed. Every transition lands in an
// append-only log.
package evolution

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/DerianAndre/aidd.md-sub000/internal/storage"
	"github.com/DerianAndre/aidd.md-sub000/internal/types"
)

// Confidence tier boundaries. Checked on every confidence change.
const (
	// deleteThreshold destroys a candidate outright.
	deleteThreshold = 20
	// draftThreshold promotes a candidate into the review queue.
	draftThreshold = 70
	// autoApplyThreshold applies a candidate without review.
	autoApplyThreshold = 90
)

// Detector confidence shaping: initial confidence grows with the number of
// sessions backing the detection, capped below the auto-apply tier so a
// fresh detection always passes through review.
const (
	confidenceBase       = 30
	confidencePerSession = 10
	initialConfidenceCap = 85
)

// Service owns evolution candidates: detection, confidence movement,
// operator decisions, and the transition log.
type Service struct {
	store   storage.Storage
	fp      Fingerprinter
	dataDir string

	// mu makes candidate transitions single-writer. The engine itself is
	// single-threaded but subscribers and operator commands may interleave.
	mu sync.Mutex
}

// Config holds evolution service configuration
type Config struct {
	Store storage.Storage
	// Fingerprinter normalizes free text into detection keys.
	// Defaults to the reference TokenFingerprinter.
	Fingerprinter Fingerprinter
	// DataDir is where analysis dumps are written. Defaults to ".aidd".
	DataDir string
}

// New creates an evolution service
func New(cfg *Config) (*Service, error) {
	if cfg == nil || cfg.Store == nil {
		return nil, fmt.Errorf("storage is required")
	}
	fp := cfg.Fingerprinter
	if fp == nil {
		fp = &TokenFingerprinter{}
	}
	dataDir := cfg.DataDir
	if dataDir == "" {
		dataDir = ".aidd"
	}
	return &Service{store: cfg.Store, fp: fp, dataDir: dataDir}, nil
}

// tierFor maps a confidence value to its automatic status tier.
func tierFor(confidence float64) types.CandidateStatus {
	switch {
	case confidence >= autoApplyThreshold:
		return types.CandidateAutoApplied
	case confidence >= draftThreshold:
		return types.CandidateDrafted
	default:
		return types.CandidatePending
	}
}

// actionFor maps a candidate status to the log action recorded for it.
func actionFor(status types.CandidateStatus) types.LogAction {
	switch status {
	case types.CandidateAutoApplied:
		return types.ActionAutoApplied
	case types.CandidateDrafted, types.CandidateApproved:
		return types.ActionDrafted
	case types.CandidateRejected:
		return types.ActionRejected
	default:
		return types.ActionPending
	}
}

// initialConfidence is the starting confidence for a detection backed by
// sessionCount sessions.
func initialConfidence(sessionCount int) float64 {
	c := float64(confidenceBase + confidencePerSession*sessionCount)
	if c > initialConfidenceCap {
		return initialConfidenceCap
	}
	return c
}

// clampConfidence bounds a confidence value to [0, 100].
func clampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 100 {
		return 100
	}
	return c
}

// logTransition appends the immutable audit record for a candidate
// transition, capturing the candidate as it stands.
func (s *Service) logTransition(ctx context.Context, c *types.EvolutionCandidate, action types.LogAction) error {
	snapshot, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to snapshot candidate %s: %w", c.ID, err)
	}
	entry := &types.EvolutionLogEntry{
		CandidateID: c.ID,
		Action:      action,
		Title:       c.Title,
		Confidence:  c.Confidence,
		Snapshot:    string(snapshot),
		Timestamp:   time.Now(),
	}
	if err := s.store.AppendEvolutionLog(ctx, entry); err != nil {
		return fmt.Errorf("failed to log %s for candidate %s: %w", action, c.ID, err)
	}
	return nil
}

// applyTier settles a candidate after its confidence changed: destroyed at
// the floor, otherwise re-tiered and persisted. Exactly one log entry is
// appended. Callers hold s.mu and must not pass terminal candidates.
func (s *Service) applyTier(ctx context.Context, c *types.EvolutionCandidate) error {
	c.Confidence = clampConfidence(c.Confidence)

	if c.Confidence <= deleteThreshold {
		if err := s.logTransition(ctx, c, types.ActionReverted); err != nil {
			return err
		}
		if err := s.store.DeleteCandidate(ctx, c.ID); err != nil {
			return err
		}
		log.Printf("[EVOLUTION] reverted candidate %q at confidence %.0f", c.Title, c.Confidence)
		return nil
	}

	c.Status = tierFor(c.Confidence)
	c.UpdatedAt = time.Now()
	if err := s.store.UpdateCandidate(ctx, c); err != nil {
		return err
	}
	return s.logTransition(ctx, c, actionFor(c.Status))
}

// AdjustConfidence moves a candidate's confidence by delta and settles the
// result through the tiers. Terminal candidates are left untouched: the
// operator's verdict outranks automation. Returns the settled candidate, or
// nil if the adjustment destroyed it.
func (s *Service) AdjustConfidence(ctx context.Context, id string, delta float64) (*types.EvolutionCandidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.store.GetCandidate(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.Status.IsTerminal() {
		return c, nil
	}

	c.Confidence = clampConfidence(c.Confidence + delta)
	if err := s.applyTier(ctx, c); err != nil {
		return nil, err
	}
	if c.Confidence <= deleteThreshold {
		return nil, nil
	}
	return c, nil
}

// CreateCandidate records an operator-created candidate. The status is
// taken as given when set; otherwise the confidence tier decides. One log
// entry is appended.
func (s *Service) CreateCandidate(ctx context.Context, c *types.EvolutionCandidate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	c.Confidence = clampConfidence(c.Confidence)
	if c.Status == "" {
		c.Status = tierFor(c.Confidence)
	}
	now := time.Now()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now

	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid candidate: %w", err)
	}
	if err := s.store.CreateCandidate(ctx, c); err != nil {
		return err
	}
	return s.logTransition(ctx, c, actionFor(c.Status))
}

// UpdateCandidate persists an operator edit as given. The tier thresholds
// are deliberately not re-applied: operator intent is authoritative. One
// log entry is appended with the candidate's current tier action.
func (s *Service) UpdateCandidate(ctx context.Context, c *types.EvolutionCandidate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c.Confidence = clampConfidence(c.Confidence)
	c.UpdatedAt = time.Now()
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid candidate: %w", err)
	}
	if err := s.store.UpdateCandidate(ctx, c); err != nil {
		return err
	}
	return s.logTransition(ctx, c, actionFor(c.Status))
}

// ApproveCandidate marks a candidate approved and, when withDraft is set,
// materializes a review draft from it. Approval bypasses the tiers.
func (s *Service) ApproveCandidate(ctx context.Context, id string, withDraft bool) (*types.EvolutionCandidate, *types.Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.store.GetCandidate(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if c.Status == types.CandidateApproved {
		return c, nil, nil
	}

	c.Status = types.CandidateApproved
	c.UpdatedAt = time.Now()
	if err := s.store.UpdateCandidate(ctx, c); err != nil {
		return nil, nil, err
	}
	if err := s.logTransition(ctx, c, types.ActionDrafted); err != nil {
		return nil, nil, err
	}

	var draft *types.Draft
	if withDraft {
		draft = draftFromCandidate(c)
		if err := s.store.CreateDraft(ctx, draft); err != nil {
			return c, nil, fmt.Errorf("candidate approved but draft failed: %w", err)
		}
	}
	return c, draft, nil
}

// RejectCandidate marks a candidate rejected. The reason is logged but not
// persisted on the candidate; the transition snapshot records final state.
func (s *Service) RejectCandidate(ctx context.Context, id, reason string) (*types.EvolutionCandidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.store.GetCandidate(ctx, id)
	if err != nil {
		return nil, err
	}

	c.Status = types.CandidateRejected
	c.UpdatedAt = time.Now()
	if err := s.store.UpdateCandidate(ctx, c); err != nil {
		return nil, err
	}
	if err := s.logTransition(ctx, c, types.ActionRejected); err != nil {
		return nil, err
	}
	log.Printf("[EVOLUTION] rejected candidate %q: %s", c.Title, reason)
	return c, nil
}

// DeleteCandidate removes a candidate on operator request, logging the
// removal first so the log keeps its final state.
func (s *Service) DeleteCandidate(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.store.GetCandidate(ctx, id)
	if err != nil {
		return err
	}
	if err := s.logTransition(ctx, c, types.ActionReverted); err != nil {
		return err
	}
	return s.store.DeleteCandidate(ctx, id)
}

// draftCategories maps candidate types to the framework directory their
// drafts belong in.
var draftCategories = map[types.CandidateType]types.DraftCategory{
	types.CandidateRuleElevation:       types.CategoryRules,
	types.CandidateNewConvention:       types.CategoryRules,
	types.CandidateSkillCombo:          types.CategorySkills,
	types.CandidateCompoundWorkflow:    types.CategoryWorkflows,
	types.CandidateTKBPromotion:        types.CategoryKnowledge,
	types.CandidateRoutingWeight:       types.CategoryKnowledge,
	types.CandidateModelRecommendation: types.CategoryKnowledge,
}

// draftFromCandidate materializes a review draft for an approved candidate.
func draftFromCandidate(c *types.EvolutionCandidate) *types.Draft {
	category, ok := draftCategories[c.Type]
	if !ok {
		category = types.CategoryKnowledge
	}

	fp := &TokenFingerprinter{}
	filename := fp.Fingerprint(c.Title)
	if filename == "" {
		filename = c.ID
	}

	content := fmt.Sprintf("# %s\n\n%s\n", c.Title, c.Description)
	if c.SuggestedAction != "" {
		content += fmt.Sprintf("\n## Suggested action\n\n%s\n", c.SuggestedAction)
	}
	if len(c.Evidence) > 0 {
		content += "\n## Evidence\n\n"
		for _, e := range c.Evidence {
			content += fmt.Sprintf("- %s\n", e)
		}
	}

	now := time.Now()
	return &types.Draft{
		ID:                   uuid.New().String(),
		Category:             category,
		Title:                c.Title,
		Filename:             filename + ".md",
		Content:              content,
		Confidence:           c.Confidence,
		Source:               types.SourceEvolution,
		EvolutionCandidateID: c.ID,
		Status:               types.DraftPending,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
}
