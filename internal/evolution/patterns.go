package evolution

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/DerianAndre/aidd.md-sub000/internal/types"
)

// Pattern confidence shaping: a fresh pattern starts as a plausible
// observation, each repeat sighting strengthens it, and false-positive
// reports decay it multiplicatively until it deactivates.
const (
	patternInitialConfidence = 60
	patternRepeatBonus       = 5
	patternConfidenceCap     = 95
	falsePositiveFactor      = 0.85
	deactivateThreshold      = 50
)

// RecordPattern fingerprints a narrative, upserting the pattern it keys and
// recording one detection against the session. Repeat sightings raise the
// pattern's confidence. Returns the pattern, or nil when the narrative
// normalizes to nothing.
func (s *Service) RecordPattern(ctx context.Context, narrative, sessionID, modelID string) (*types.Pattern, error) {
	key := s.fp.Fingerprint(narrative)
	if key == "" {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	pattern, err := s.store.GetPatternByKey(ctx, key)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	switch {
	case pattern == nil:
		pattern = &types.Pattern{
			ID:          uuid.New().String(),
			Pattern:     key,
			Description: truncate(narrative, 200),
			Confidence:  patternInitialConfidence,
			Active:      true,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := s.store.CreatePattern(ctx, pattern); err != nil {
			return nil, err
		}
	case !pattern.Active:
		// Deactivated patterns are out of the detection loop entirely.
		return pattern, nil
	default:
		pattern.Confidence += patternRepeatBonus
		if pattern.Confidence > patternConfidenceCap {
			pattern.Confidence = patternConfidenceCap
		}
		pattern.UpdatedAt = now
		if err := s.store.UpdatePattern(ctx, pattern); err != nil {
			return nil, err
		}
	}

	det := &types.PatternDetection{
		PatternID:  pattern.ID,
		SessionID:  sessionID,
		ModelID:    modelID,
		DetectedAt: now,
	}
	if err := s.store.RecordPatternDetection(ctx, det); err != nil {
		return nil, err
	}
	return pattern, nil
}

// ReportFalsePositive decays a pattern's confidence by 15% and deactivates
// it once confidence falls below 50. Deactivated patterns stop feeding
// detection but keep their history.
func (s *Service) ReportFalsePositive(ctx context.Context, patternID string) (*types.Pattern, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pattern, err := s.store.GetPattern(ctx, patternID)
	if err != nil {
		return nil, err
	}

	pattern.Confidence *= falsePositiveFactor
	pattern.FalsePositiveCount++
	pattern.UpdatedAt = time.Now()
	if pattern.Active && pattern.Confidence < deactivateThreshold {
		pattern.Active = false
		log.Printf("[EVOLUTION] deactivated pattern %q after %d false positives",
			pattern.Pattern, pattern.FalsePositiveCount)
	}

	if err := s.store.UpdatePattern(ctx, pattern); err != nil {
		return nil, err
	}
	return pattern, nil
}

// truncate bounds s to limit runes, marking the cut.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return fmt.Sprintf("%s...", string(runes[:limit]))
}
