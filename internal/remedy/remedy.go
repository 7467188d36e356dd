// Package remedy closes workflow compliance gaps. For every required
// artifact type a session is missing it drafts a placeholder into the
// review queue, so the gap is visible and recoverable instead of silently
// lost when the session ends.
package remedy

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/DerianAndre/aidd.md-sub000/internal/compliance"
	"github.com/DerianAndre/aidd.md-sub000/internal/storage"
	"github.com/DerianAndre/aidd.md-sub000/internal/types"
)

const (
	// narrativeLimit bounds each observation excerpt folded into draft content.
	narrativeLimit = 180
	// maxExcerpts bounds how many observation excerpts a draft carries.
	maxExcerpts = 5
	// draftConfidence is the fixed confidence assigned to remediation drafts.
	draftConfidence = 90
)

// Result reports the outcome of one remediation run. Created and
// SkippedExisting partition the missing artifact types the run handled;
// Failures collects per-item errors without aborting the run.
type Result struct {
	Created         []types.ArtifactType `json:"created"`
	SkippedExisting []types.ArtifactType `json:"skipped_existing"`
	PendingAfter    int                  `json:"pending_after"`
	MissingRequired []types.ArtifactType `json:"missing_required"`
	Failures        []string             `json:"failures,omitempty"`
}

// Remediator drafts placeholder artifacts for sessions that are missing
// required workflow documentation.
type Remediator struct {
	store storage.Storage
	group singleflight.Group
}

// Config holds remediator configuration
type Config struct {
	Store storage.Storage
}

// New creates a remediator
func New(cfg *Config) (*Remediator, error) {
	if cfg == nil || cfg.Store == nil {
		return nil, fmt.Errorf("storage is required")
	}
	return &Remediator{store: cfg.Store}, nil
}

// DraftTitle derives the canonical title for an auto-remediation draft.
// The pending-draft lookup keys on this exact string, which is what makes
// repeated remediation idempotent.
func DraftTitle(missing types.ArtifactType, sessionID string) string {
	return fmt.Sprintf("Auto Draft: %s for session %s", missing, sessionID)
}

// FixCompliance drafts one pending placeholder per missing required artifact
// type. Repeat calls do not duplicate: a pending draft carrying the derived
// title suppresses creation, and concurrent calls for the same session
// collapse into a single run. Per-draft failures land in the result rather
// than aborting the loop, so a caller can always retry safely.
//
// The wall-clock cost of the run is charged to the session's governance
// overhead, cumulatively.
func (r *Remediator) FixCompliance(ctx context.Context, sessionID string) (*Result, error) {
	v, err, _ := r.group.Do(sessionID, func() (interface{}, error) {
		return r.fixCompliance(ctx, sessionID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Result), nil
}

func (r *Remediator) fixCompliance(ctx context.Context, sessionID string) (*Result, error) {
	start := time.Now()

	session, err := r.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	artifacts, err := r.store.GetSessionArtifacts(ctx, session)
	if err != nil {
		return nil, fmt.Errorf("failed to load artifacts for session %s: %w", sessionID, err)
	}

	result := &Result{
		Created:         []types.ArtifactType{},
		SkippedExisting: []types.ArtifactType{},
		MissingRequired: compliance.Missing(session, artifacts),
	}

	var excerpts []string
	if len(result.MissingRequired) > 0 {
		excerpts = r.observationExcerpts(ctx, sessionID, result)
	}

	now := time.Now()
	for _, missing := range result.MissingRequired {
		title := DraftTitle(missing, sessionID)

		existing, err := r.store.GetPendingDraftByTitle(ctx, title)
		if err != nil {
			result.Failures = append(result.Failures, fmt.Sprintf("%s: %v", missing, err))
			continue
		}
		if existing != nil {
			result.SkippedExisting = append(result.SkippedExisting, missing)
			continue
		}

		draft := &types.Draft{
			ID:           uuid.New().String(),
			Category:     types.CategoryWorkflows,
			Title:        title,
			Filename:     fmt.Sprintf("auto-draft-%s-%s.md", missing, sessionID),
			Content:      draftContent(session, missing, excerpts),
			Confidence:   draftConfidence,
			Source:       types.SourceManual,
			SessionID:    sessionID,
			ArtifactType: missing,
			Status:       types.DraftPending,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := r.store.CreateDraft(ctx, draft); err != nil {
			result.Failures = append(result.Failures, fmt.Sprintf("%s: %v", missing, err))
			continue
		}
		result.Created = append(result.Created, missing)
	}
	result.PendingAfter = len(result.Created) + len(result.SkippedExisting)

	// Charge the run to the session additively; a later run must never
	// erase an earlier run's charge.
	if err := r.store.AddGovernanceOverhead(ctx, sessionID, time.Since(start).Milliseconds()); err != nil {
		result.Failures = append(result.Failures, fmt.Sprintf("governance overhead: %v", err))
	}

	return result, nil
}

// observationExcerpts collects up to maxExcerpts narrative snippets from the
// session's observations. A load failure is reported in the result and the
// drafts simply carry no excerpts.
func (r *Remediator) observationExcerpts(ctx context.Context, sessionID string, result *Result) []string {
	observations, err := r.store.GetSessionObservations(ctx, sessionID)
	if err != nil {
		result.Failures = append(result.Failures, fmt.Sprintf("observations: %v", err))
		return nil
	}

	var excerpts []string
	for _, obs := range observations {
		if strings.TrimSpace(obs.Narrative) == "" {
			continue
		}
		excerpts = append(excerpts, truncate(obs.Narrative, narrativeLimit))
		if len(excerpts) == maxExcerpts {
			break
		}
	}
	return excerpts
}

// draftContent synthesizes placeholder markdown from the session's stated
// intent and its observation excerpts.
func draftContent(session *types.Session, missing types.ArtifactType, excerpts []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", DraftTitle(missing, session.ID))
	fmt.Fprintf(&b, "Placeholder %s drafted automatically because the session has no %s artifact.\n",
		missing, missing)

	if strings.TrimSpace(session.Input) != "" {
		fmt.Fprintf(&b, "\n## Session intent\n\n%s\n", session.Input)
	}

	if len(excerpts) > 0 {
		b.WriteString("\n## Observations\n\n")
		for _, e := range excerpts {
			fmt.Fprintf(&b, "- %s\n", e)
		}
	}

	return b.String()
}

// truncate bounds s to limit runes, marking the cut.
func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit]) + "..."
}
