package evolution

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/DerianAndre/aidd.md-sub000/internal/types"
)

// Dump filenames under the data directory.
const (
	summaryFilename = "evolution-summary.md"
	stateFilename   = "evolution-state.json"
)

// AnalysisResult reports one detection pass over session history.
type AnalysisResult struct {
	Created     int       `json:"created"`
	Refreshed   int       `json:"refreshed"`
	Unchanged   int       `json:"unchanged"`
	SummaryPath string    `json:"summary_path,omitempty"`
	StatePath   string    `json:"state_path,omitempty"`
	GeneratedAt time.Time `json:"generated_at"`
	Failures    []string  `json:"failures,omitempty"`
}

// Analyze runs every detector over settled session history and reconciles
// the proposals into the candidate set: new signals become candidates, known
// ones are refreshed, and anything already up to date is left alone. The
// pass finishes by dumping a human summary and a machine state file.
// Per-candidate failures are collected, never fatal.
func (s *Service) Analyze(ctx context.Context) (*AnalysisResult, error) {
	in, err := s.gatherInput(ctx)
	if err != nil {
		return nil, err
	}

	result := &AnalysisResult{GeneratedAt: time.Now()}
	for _, det := range s.detectors() {
		for _, proposal := range det.run(in) {
			outcome, err := s.upsertDetected(ctx, proposal)
			if err != nil {
				result.Failures = append(result.Failures, fmt.Sprintf("%s: %v", det.name, err))
				continue
			}
			switch outcome {
			case upsertCreated:
				result.Created++
			case upsertRefreshed:
				result.Refreshed++
			default:
				result.Unchanged++
			}
		}
	}

	if err := s.writeDumps(ctx, result); err != nil {
		result.Failures = append(result.Failures, fmt.Sprintf("dumps: %v", err))
	}
	return result, nil
}

// ProfileModels runs only the model detector, so per-model pattern
// concentration is promoted into a candidate as soon as it shows up instead
// of waiting for the next full analysis pass. No dumps are written.
func (s *Service) ProfileModels(ctx context.Context) (*AnalysisResult, error) {
	stats, err := s.store.ModelPatternRecurrences(ctx, modelPatternMinDetections, minRecurrence)
	if err != nil {
		return nil, err
	}

	result := &AnalysisResult{GeneratedAt: time.Now()}
	for _, proposal := range s.detectModelRecommendations(&detectorInput{modelStats: stats}) {
		outcome, err := s.upsertDetected(ctx, proposal)
		if err != nil {
			result.Failures = append(result.Failures, fmt.Sprintf("model_recommendation: %v", err))
			continue
		}
		switch outcome {
		case upsertCreated:
			result.Created++
		case upsertRefreshed:
			result.Refreshed++
		default:
			result.Unchanged++
		}
	}
	return result, nil
}

// gatherInput snapshots everything detection reads: terminal sessions with
// their observations, plus the pattern aggregates.
func (s *Service) gatherInput(ctx context.Context) (*detectorInput, error) {
	sessions, err := s.store.ListSessions(ctx, types.SessionFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	in := &detectorInput{observations: make(map[string][]*types.Observation)}
	for _, sess := range sessions {
		// Detection reads settled history only; an active session is still
		// moving.
		if sess.Active() {
			continue
		}
		in.sessions = append(in.sessions, sess)
		obs, err := s.store.GetSessionObservations(ctx, sess.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load observations for %s: %w", sess.ID, err)
		}
		in.observations[sess.ID] = obs
	}

	in.patterns, err = s.store.PatternRecurrences(ctx, minRecurrence)
	if err != nil {
		return nil, err
	}
	in.modelStats, err = s.store.ModelPatternRecurrences(ctx, modelPatternMinDetections, minRecurrence)
	if err != nil {
		return nil, err
	}
	return in, nil
}

type upsertOutcome int

const (
	upsertCreated upsertOutcome = iota
	upsertRefreshed
	upsertUnchanged
)

// upsertDetected reconciles one detector proposal against the candidate set.
// A new (type, title) becomes a candidate at its detection-strength
// confidence; an open match is refreshed (evidence union, session count,
// confidence floor raised) and re-tiered. Refreshing never lowers confidence
// a candidate earned through feedback. A proposal that changes nothing
// writes nothing, so repeated analysis stays quiet in the log.
func (s *Service) upsertDetected(ctx context.Context, proposal *types.EvolutionCandidate) (upsertOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.store.GetCandidateByTypeTitle(ctx, proposal.Type, proposal.Title)
	if err != nil {
		return upsertUnchanged, err
	}

	if existing == nil {
		proposal.ID = uuid.New().String()
		proposal.Confidence = initialConfidence(proposal.SessionCount)
		proposal.Status = tierFor(proposal.Confidence)
		now := time.Now()
		proposal.CreatedAt = now
		proposal.UpdatedAt = now
		if err := proposal.Validate(); err != nil {
			return upsertUnchanged, fmt.Errorf("invalid detection %q: %w", proposal.Title, err)
		}
		if err := s.store.CreateCandidate(ctx, proposal); err != nil {
			return upsertUnchanged, err
		}
		if err := s.logTransition(ctx, proposal, actionFor(proposal.Status)); err != nil {
			return upsertCreated, err
		}
		return upsertCreated, nil
	}

	evidence := mergeEvidence(existing.Evidence, proposal.Evidence)
	sessionCount := existing.SessionCount
	if proposal.SessionCount > sessionCount {
		sessionCount = proposal.SessionCount
	}
	confidence := existing.Confidence
	if floor := initialConfidence(sessionCount); floor > confidence {
		confidence = floor
	}
	discoveryTokens := existing.DiscoveryTokensTotal
	if proposal.DiscoveryTokensTotal > discoveryTokens {
		discoveryTokens = proposal.DiscoveryTokensTotal
	}

	if len(evidence) == len(existing.Evidence) &&
		sessionCount == existing.SessionCount &&
		confidence == existing.Confidence &&
		discoveryTokens == existing.DiscoveryTokensTotal {
		return upsertUnchanged, nil
	}

	existing.Evidence = evidence
	existing.SessionCount = sessionCount
	existing.Confidence = confidence
	existing.DiscoveryTokensTotal = discoveryTokens
	if err := s.applyTier(ctx, existing); err != nil {
		return upsertRefreshed, err
	}
	return upsertRefreshed, nil
}

// mergeEvidence unions two evidence lists, keeping first-seen order.
func mergeEvidence(existing, incoming []string) []string {
	seen := make(map[string]bool, len(existing))
	merged := make([]string, 0, len(existing)+len(incoming))
	for _, e := range existing {
		if !seen[e] {
			seen[e] = true
			merged = append(merged, e)
		}
	}
	for _, e := range incoming {
		if !seen[e] {
			seen[e] = true
			merged = append(merged, e)
		}
	}
	return merged
}

// stateDump is the machine-readable analysis snapshot.
type stateDump struct {
	GeneratedAt  time.Time                   `json:"generated_at"`
	Stats        *types.EvolutionStats       `json:"stats"`
	Candidates   []*types.EvolutionCandidate `json:"candidates"`
	PatternStats *types.PatternStats         `json:"pattern_stats"`
	Patterns     []*types.Pattern            `json:"patterns"`
}

// writeDumps renders the summary and state files atomically.
func (s *Service) writeDumps(ctx context.Context, result *AnalysisResult) error {
	stats, err := s.store.GetEvolutionStats(ctx)
	if err != nil {
		return err
	}
	candidates, err := s.store.ListCandidates(ctx, types.CandidateFilter{})
	if err != nil {
		return err
	}
	patternStats, err := s.store.GetPatternStats(ctx)
	if err != nil {
		return err
	}
	patterns, err := s.store.ListPatterns(ctx, false)
	if err != nil {
		return err
	}

	summaryPath := filepath.Join(s.dataDir, summaryFilename)
	summary := renderSummary(result.GeneratedAt, stats, candidates, patternStats)
	if err := writeFileAtomic(summaryPath, []byte(summary)); err != nil {
		return fmt.Errorf("failed to write summary: %w", err)
	}
	result.SummaryPath = summaryPath

	statePath := filepath.Join(s.dataDir, stateFilename)
	data, err := json.MarshalIndent(&stateDump{
		GeneratedAt:  result.GeneratedAt,
		Stats:        stats,
		Candidates:   candidates,
		PatternStats: patternStats,
		Patterns:     patterns,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}
	if err := writeFileAtomic(statePath, append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write state: %w", err)
	}
	result.StatePath = statePath
	return nil
}

// renderSummary produces the compact human-readable analysis dump.
func renderSummary(generatedAt time.Time, stats *types.EvolutionStats, candidates []*types.EvolutionCandidate, patternStats *types.PatternStats) string {
	var b strings.Builder
	b.WriteString("# Evolution summary\n\n")
	fmt.Fprintf(&b, "Generated: %s\n\n", generatedAt.Format(time.RFC3339))

	b.WriteString("## Candidates\n\n")
	fmt.Fprintf(&b, "- pending: %d\n", stats.Pending)
	fmt.Fprintf(&b, "- drafted: %d\n", stats.Drafted)
	fmt.Fprintf(&b, "- auto-applied: %d\n", stats.AutoApplied)
	fmt.Fprintf(&b, "- approved: %d\n", stats.Approved)
	fmt.Fprintf(&b, "- rejected: %d\n", stats.Rejected)

	var open []*types.EvolutionCandidate
	for _, c := range candidates {
		if !c.Status.IsTerminal() {
			open = append(open, c)
		}
	}
	if len(open) > 0 {
		b.WriteString("\n## Open candidates by confidence\n\n")
		for i, c := range open {
			if i == 10 {
				fmt.Fprintf(&b, "- and %d more\n", len(open)-i)
				break
			}
			fmt.Fprintf(&b, "- [%3.0f] %s (%s, %d sessions)\n", c.Confidence, c.Title, c.Type, c.SessionCount)
		}
	}

	b.WriteString("\n## Patterns\n\n")
	fmt.Fprintf(&b, "- tracked: %d (%d active)\n", patternStats.Total, patternStats.Active)
	fmt.Fprintf(&b, "- detections on record: %d\n", patternStats.Detections)
	fmt.Fprintf(&b, "- false positives reported: %d\n", patternStats.FalsePositives)
	return b.String()
}

// writeFileAtomic writes via a temp file and rename, so readers never see a
// half-written dump.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}
