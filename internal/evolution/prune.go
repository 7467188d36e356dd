package evolution

import (
	"context"
	"fmt"
	"log"
	"time"
)

// Retention bounds. History beyond these adds storage weight without adding
// detection signal.
const (
	// detectionRetention is how long pattern detections stay queryable.
	detectionRetention = 30 * 24 * time.Hour
	// observationCap keeps the newest observations.
	observationCap = 1000
	// terminalSessionCap keeps the newest terminal sessions. Active sessions
	// are never pruned.
	terminalSessionCap = 50
)

// PruneResult reports one retention pass.
type PruneResult struct {
	DetectionsRemoved   int      `json:"detections_removed"`
	ObservationsRemoved int      `json:"observations_removed"`
	SessionsRemoved     int      `json:"sessions_removed"`
	Failures            []string `json:"failures,omitempty"`
}

// Prune enforces the retention bounds: stale pattern detections go, the
// observation and terminal-session sets are capped at their newest entries,
// and the write-ahead log is checkpointed back into the database file.
// Every step is attempted even when an earlier one fails.
func (s *Service) Prune(ctx context.Context) (*PruneResult, error) {
	result := &PruneResult{}

	n, err := s.store.DeletePatternDetectionsBefore(ctx, time.Now().Add(-detectionRetention))
	if err != nil {
		result.Failures = append(result.Failures, fmt.Sprintf("detections: %v", err))
	} else {
		result.DetectionsRemoved = n
	}

	n, err = s.store.CapObservations(ctx, observationCap)
	if err != nil {
		result.Failures = append(result.Failures, fmt.Sprintf("observations: %v", err))
	} else {
		result.ObservationsRemoved = n
	}

	n, err = s.store.CapTerminalSessions(ctx, terminalSessionCap)
	if err != nil {
		result.Failures = append(result.Failures, fmt.Sprintf("sessions: %v", err))
	} else {
		result.SessionsRemoved = n
	}

	if err := s.store.Checkpoint(ctx); err != nil {
		result.Failures = append(result.Failures, fmt.Sprintf("checkpoint: %v", err))
	}

	if result.DetectionsRemoved+result.ObservationsRemoved+result.SessionsRemoved > 0 {
		log.Printf("[EVOLUTION] pruned %d detections, %d observations, %d sessions",
			result.DetectionsRemoved, result.ObservationsRemoved, result.SessionsRemoved)
	}
	return result, nil
}
