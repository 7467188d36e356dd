package evolution

import (
	"context"
	"fmt"
	"strings"

	"github.com/DerianAndre/aidd.md-sub000/internal/types"
)

// Feedback delta magnitudes by evidence strength: the more sessions back a
// candidate, the harder one verdict moves it.
const (
	deltaWeakEvidence   = 5  // fewer than 3 evidence entries
	deltaMediumEvidence = 10 // 3 to 5 entries
	deltaStrongEvidence = 15 // more than 5 entries
)

// FeedbackResult reports one feedback application pass.
type FeedbackResult struct {
	Feedback types.Feedback `json:"feedback"`
	Matched  int            `json:"matched"`
	Adjusted int            `json:"adjusted"`
	Deleted  int            `json:"deleted"`
	Failures []string       `json:"failures,omitempty"`
}

// feedbackDelta returns the unsigned confidence movement for a candidate.
func feedbackDelta(evidenceCount int) float64 {
	switch {
	case evidenceCount > 5:
		return deltaStrongEvidence
	case evidenceCount >= 3:
		return deltaMediumEvidence
	default:
		return deltaWeakEvidence
	}
}

// matchesSession reports whether a candidate is tied to the session: any
// evidence entry mentioning the session ID, or a model scope equal to the
// session's model.
func matchesSession(c *types.EvolutionCandidate, session *types.Session) bool {
	for _, e := range c.Evidence {
		if session.ID != "" && strings.Contains(e, session.ID) {
			return true
		}
	}
	return c.ModelScope != "" && c.ModelScope == session.AIProvider.ModelID
}

// ApplyFeedback moves the confidence of every open candidate tied to the
// session: positive feedback raises it, negative lowers it, with magnitude
// set by evidence strength. Terminal candidates are exempt. Neutral or
// absent feedback is a no-op. Per-candidate failures are collected so one
// bad row never stops the pass.
func (s *Service) ApplyFeedback(ctx context.Context, session *types.Session) (*FeedbackResult, error) {
	result := &FeedbackResult{Feedback: session.Outcome.UserFeedback}

	var sign float64
	switch session.Outcome.UserFeedback {
	case types.FeedbackPositive:
		sign = 1
	case types.FeedbackNegative:
		sign = -1
	default:
		return result, nil
	}

	candidates, err := s.store.ListCandidates(ctx, types.CandidateFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to list candidates: %w", err)
	}

	for _, c := range candidates {
		if c.Status.IsTerminal() || !matchesSession(c, session) {
			continue
		}
		result.Matched++

		delta := sign * feedbackDelta(len(c.Evidence))
		settled, err := s.AdjustConfidence(ctx, c.ID, delta)
		if err != nil {
			result.Failures = append(result.Failures, fmt.Sprintf("%s: %v", c.ID, err))
			continue
		}
		if settled == nil {
			result.Deleted++
		} else {
			result.Adjusted++
		}
	}
	return result, nil
}
