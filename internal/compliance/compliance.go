// Package compliance classifies whether a finished session satisfied the
// mandatory documentation workflow. Classification is pure: it never touches
// storage, and its output is derived on demand rather than persisted.
package compliance

import (
	"github.com/DerianAndre/aidd.md-sub000/internal/types"
)

// requiredFull is the mandatory artifact set for full-ceremony sessions, in
// reporting order.
var requiredFull = []types.ArtifactType{
	types.ArtifactBrainstorm,
	types.ArtifactPlan,
	types.ArtifactChecklist,
	types.ArtifactRetro,
}

// requiredFastTrack drops the brainstorm requirement for low-ceremony work.
var requiredFastTrack = []types.ArtifactType{
	types.ArtifactPlan,
	types.ArtifactChecklist,
	types.ArtifactRetro,
}

// Required returns the mandatory artifact types for the session, honoring
// its fast-track classification. The returned slice is a copy.
func Required(session *types.Session) []types.ArtifactType {
	src := requiredFull
	if session.TaskClassification.FastTrack {
		src = requiredFastTrack
	}
	out := make([]types.ArtifactType, len(src))
	copy(out, src)
	return out
}

// Missing returns the required artifact types the session has no matching
// artifact for, in reporting order. It ignores session status so the
// remediator can run against a session that is about to terminate; Classify
// layers the active-session rule on top.
func Missing(session *types.Session, artifacts []types.Artifact) []types.ArtifactType {
	present := make(map[types.ArtifactType]bool)
	for _, a := range artifacts {
		if a.BelongsTo(session) {
			present[a.Type] = true
		}
	}

	missing := []types.ArtifactType{}
	for _, req := range Required(session) {
		if !present[req] {
			missing = append(missing, req)
		}
	}
	return missing
}

// Classify computes the workflow compliance verdict for a session against
// its artifact snapshot. Active sessions are always compliant: in-flight
// work cannot yet be judged. Terminal sessions are compliant iff every
// required artifact type has at least one matching artifact.
func Classify(session *types.Session, artifacts []types.Artifact) types.WorkflowCompliance {
	wc := types.WorkflowCompliance{
		Status:    types.Compliant,
		Required:  Required(session),
		Missing:   []types.ArtifactType{},
		FastTrack: session.TaskClassification.FastTrack,
	}
	if session.Active() {
		return wc
	}

	wc.Missing = Missing(session, artifacts)
	if len(wc.Missing) > 0 {
		wc.Status = types.NonCompliant
	}
	return wc
}
