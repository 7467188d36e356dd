package compliance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/DerianAndre/aidd.md-sub000/internal/types"
)

func session(terminal, fastTrack bool) *types.Session {
	now := time.Now()
	s := &types.Session{
		ID:        "sess-9",
		Branch:    "feat/compliance",
		StartedAt: now.Add(-time.Hour),
		UpdatedAt: now,
	}
	s.TaskClassification.FastTrack = fastTrack
	if terminal {
		ended := now
		s.EndedAt = &ended
	}
	return s
}

func artifact(at types.ArtifactType) types.Artifact {
	return types.Artifact{
		ID:        "art-" + string(at),
		SessionID: "sess-9",
		Type:      at,
		Status:    types.ArtifactDone,
		Title:     string(at),
	}
}

// TestActiveSessionAlwaysCompliant verifies in-flight sessions are never
// judged
func TestActiveSessionAlwaysCompliant(t *testing.T) {
	wc := Classify(session(false, false), nil)

	assert.Equal(t, types.Compliant, wc.Status)
	assert.Empty(t, wc.Missing)
	assert.Equal(t, []types.ArtifactType{
		types.ArtifactBrainstorm, types.ArtifactPlan,
		types.ArtifactChecklist, types.ArtifactRetro,
	}, wc.Required)
}

// TestTerminalMissingEverything verifies the full required set is reported
// missing in table order
func TestTerminalMissingEverything(t *testing.T) {
	wc := Classify(session(true, false), nil)

	assert.Equal(t, types.NonCompliant, wc.Status)
	assert.Equal(t, []types.ArtifactType{
		types.ArtifactBrainstorm, types.ArtifactPlan,
		types.ArtifactChecklist, types.ArtifactRetro,
	}, wc.Missing)
}

// TestFastTrackChecklistGap covers the fast-track session missing only a
// checklist, before and after the gap is filled
func TestFastTrackChecklistGap(t *testing.T) {
	s := session(true, true)
	arts := []types.Artifact{artifact(types.ArtifactPlan), artifact(types.ArtifactRetro)}

	wc := Classify(s, arts)
	assert.Equal(t, types.NonCompliant, wc.Status)
	assert.Equal(t, []types.ArtifactType{types.ArtifactChecklist}, wc.Missing)
	assert.True(t, wc.FastTrack)

	arts = append(arts, artifact(types.ArtifactChecklist))
	wc = Classify(s, arts)
	assert.Equal(t, types.Compliant, wc.Status)
	assert.Empty(t, wc.Missing)
}

// TestFastTrackDropsBrainstorm verifies the fast-track required set
func TestFastTrackDropsBrainstorm(t *testing.T) {
	req := Required(session(true, true))
	assert.Equal(t, []types.ArtifactType{
		types.ArtifactPlan, types.ArtifactChecklist, types.ArtifactRetro,
	}, req)
}

// TestLegacyArtifactsSatisfyRequirements verifies the branch/title fallback
// counts toward compliance for rows without a session id
func TestLegacyArtifactsSatisfyRequirements(t *testing.T) {
	s := session(true, true)
	legacy := []types.Artifact{
		{ID: "l-1", Type: types.ArtifactPlan, Status: types.ArtifactDone, Feature: "FEAT/COMPLIANCE", Title: "plan"},
		{ID: "l-2", Type: types.ArtifactChecklist, Status: types.ArtifactDone, Title: "checklist for sess-9"},
		{ID: "l-3", Type: types.ArtifactRetro, Status: types.ArtifactDone, Feature: "feat/compliance", Title: "retro"},
	}

	wc := Classify(s, legacy)
	assert.Equal(t, types.Compliant, wc.Status)
}

// TestMissingIgnoresSessionStatus verifies the remediator-facing helper
// works on active sessions so completion can remediate before termination
func TestMissingIgnoresSessionStatus(t *testing.T) {
	s := session(false, true)
	missing := Missing(s, []types.Artifact{artifact(types.ArtifactPlan)})

	assert.Equal(t, []types.ArtifactType{types.ArtifactChecklist, types.ArtifactRetro}, missing)
}

// TestForeignArtifactsDoNotCount verifies artifacts owned by another session
// are excluded
func TestForeignArtifactsDoNotCount(t *testing.T) {
	s := session(true, true)
	foreign := []types.Artifact{
		{ID: "f-1", SessionID: "other", Type: types.ArtifactPlan, Status: types.ArtifactDone, Title: "plan"},
	}

	wc := Classify(s, foreign)
	assert.Equal(t, types.NonCompliant, wc.Status)
	assert.Contains(t, wc.Missing, types.ArtifactPlan)
}
