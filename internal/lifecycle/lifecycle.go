// Package lifecycle scores how far a coding session has progressed through
// the fixed six-phase development lifecycle. Scoring is pure and
// deterministic: the same session and artifact snapshot always produce the
// same LifecycleProgress, so callers may recompute freely instead of caching.
package lifecycle

import (
	"github.com/DerianAndre/aidd.md-sub000/internal/types"
)

// InitBaseline is granted to every session before any phase completes.
const InitBaseline = 5

// phaseDef pairs a phase with its base weight. Base weights sum to 50;
// skip redistribution keeps the assignable total at 50.
type phaseDef struct {
	id     types.PhaseID
	weight int
}

var phaseTable = []phaseDef{
	{types.PhaseBrainstorm, 8},
	{types.PhasePlan, 8},
	{types.PhaseExecute, 14},
	{types.PhaseTest, 8},
	{types.PhaseReview, 7},
	{types.PhaseShip, 5},
}

// milestoneDef pairs a milestone artifact with its bonus points.
type milestoneDef struct {
	artifact types.ArtifactType
	points   int
}

var milestoneTable = []milestoneDef{
	{types.ArtifactADR, 15},
	{types.ArtifactChecklist, 10},
	{types.ArtifactRetro, 20},
}

// defaultFastTrackSkips is applied when a fast-track session declares no
// explicit skippable stages.
var defaultFastTrackSkips = []types.PhaseID{types.PhaseBrainstorm, types.PhasePlan, types.PhaseTest}

// Score computes the lifecycle progress of a session from its artifact
// snapshot. Artifacts not associated with the session (explicit session id,
// or the legacy feature/title fallback) are ignored, so callers may pass a
// broader slice than strictly necessary.
func Score(session *types.Session, artifacts []types.Artifact) types.LifecycleProgress {
	owned := make([]types.Artifact, 0, len(artifacts))
	for _, a := range artifacts {
		if a.BelongsTo(session) {
			owned = append(owned, a)
		}
	}

	byType := make(map[types.ArtifactType]bool, len(owned))
	for _, a := range owned {
		byType[a.Type] = true
	}

	skips := skipSet(session.TaskClassification)
	active := session.Active()

	phases := make([]types.PhaseProgress, 0, len(phaseTable))
	redistributed := 0
	for _, def := range phaseTable {
		if skips[def.id] && def.id != types.PhaseExecute {
			redistributed += def.weight
		}
	}

	score := InitBaseline
	activeAssigned := false
	var activePhase types.PhaseID
	for _, def := range phaseTable {
		// Effective weight depends on skip-set membership alone, so the
		// assignable total stays at 50 even when a skippable phase happens
		// to complete anyway.
		weight := def.weight
		if def.id == types.PhaseExecute {
			weight += redistributed
		} else if skips[def.id] {
			weight = 0
		}

		var status types.PhaseStatus
		switch {
		case phaseCompleted(def.id, session, byType):
			status = types.PhaseCompleted
		case skips[def.id]:
			status = types.PhaseSkipped
		case active && !activeAssigned:
			status = types.PhaseActive
			activeAssigned = true
			activePhase = def.id
		default:
			status = types.PhasePending
		}

		contribution := 0
		if status == types.PhaseCompleted {
			contribution = weight
		}
		score += contribution

		phases = append(phases, types.PhaseProgress{
			ID:           def.id,
			Status:       status,
			Weight:       weight,
			Contribution: contribution,
		})
	}

	milestones := make([]types.Milestone, 0, len(milestoneTable))
	for _, def := range milestoneTable {
		earned := byType[def.artifact]
		if earned {
			score += def.points
		}
		milestones = append(milestones, types.Milestone{
			Artifact: def.artifact,
			Points:   def.points,
			Earned:   earned,
		})
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	return types.LifecycleProgress{
		Phases:      phases,
		Milestones:  milestones,
		Score:       score,
		ActivePhase: activePhase,
		IsWip:       active && activeAssigned,
		IsFastTrack: session.TaskClassification.FastTrack,
	}
}

// skipSet resolves which phases the session may skip: its declared
// skippable stages if any, else the fast-track default, else nothing.
// Execute is never skippable: it is the redistribution target.
func skipSet(tc types.TaskClassification) map[types.PhaseID]bool {
	declared := tc.SkippableStages
	if len(declared) == 0 {
		if !tc.FastTrack {
			return nil
		}
		declared = defaultFastTrackSkips
	}
	skips := make(map[types.PhaseID]bool, len(declared))
	for _, p := range declared {
		canonical := p.Canonical()
		if canonical.IsValid() && canonical != types.PhaseExecute {
			skips[canonical] = true
		}
	}
	return skips
}

// phaseCompleted holds the per-phase completion predicates. Review has no
// artifact signal of its own; it completes when the session terminates.
func phaseCompleted(id types.PhaseID, session *types.Session, byType map[types.ArtifactType]bool) bool {
	switch id {
	case types.PhaseBrainstorm:
		return byType[types.ArtifactBrainstorm] || byType[types.ArtifactResearch]
	case types.PhasePlan:
		return byType[types.ArtifactPlan] || byType[types.ArtifactADR] ||
			byType[types.ArtifactDiagram] || byType[types.ArtifactSpec]
	case types.PhaseExecute:
		return byType[types.ArtifactIssue] || byType[types.ArtifactSpec] ||
			len(session.FilesModified) > 0 || len(session.TasksCompleted) > 0
	case types.PhaseTest:
		return byType[types.ArtifactChecklist]
	case types.PhaseReview:
		return !session.Active()
	case types.PhaseShip:
		return byType[types.ArtifactRetro]
	}
	return false
}
