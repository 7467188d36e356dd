package evolution

import (
	"fmt"
	"sort"
	"strings"

	"github.com/DerianAndre/aidd.md-sub000/internal/storage/sqlite"
	"github.com/DerianAndre/aidd.md-sub000/internal/types"
)

// Detection thresholds. Every detector demands recurrence before proposing
// anything: one session proves nothing.
const (
	// minRecurrence is how many distinct sessions a grouped signal needs.
	minRecurrence = 3
	// modelPatternMinDetections is the sighting floor for per-model pattern
	// promotion.
	modelPatternMinDetections = 5
	// patternElevationConfidence is the pattern confidence floor for rule
	// elevation.
	patternElevationConfidence = 70
	// compoundMinCompliance is the compliance score floor for codifying a
	// recurring workflow.
	compoundMinCompliance = 80
	// tkbTokenThreshold and tkbMinSessions gate knowledge-base promotion on
	// repeated expensive discovery of one topic.
	tkbTokenThreshold = 5000
	tkbMinSessions    = 2
)

// detectorInput is the read-only snapshot detectors mine. Detection never
// writes and never calls out; proposals are settled by the upsert machinery.
type detectorInput struct {
	sessions     []*types.Session                // terminal sessions, newest first
	observations map[string][]*types.Observation // keyed by session ID
	patterns     []*sqlite.PatternRecurrenceStat
	modelStats   []*sqlite.ModelPatternStat
}

// detector pairs a stable name with one detection pass.
type detector struct {
	name string
	run  func(in *detectorInput) []*types.EvolutionCandidate
}

// detectors returns every detection pass in run order.
func (s *Service) detectors() []detector {
	return []detector{
		{"model_recommendation", s.detectModelRecommendations},
		{"rule_elevation", s.detectRuleElevations},
		{"routing_weight", s.detectRoutingWeights},
		{"skill_combo", s.detectSkillCombos},
		{"compound_workflow", s.detectCompoundWorkflows},
		{"new_convention", s.detectNewConventions},
		{"tkb_promotion", s.detectTKBPromotions},
	}
}

// detectModelRecommendations promotes patterns that keep recurring under one
// model into model guidance.
func (s *Service) detectModelRecommendations(in *detectorInput) []*types.EvolutionCandidate {
	var out []*types.EvolutionCandidate
	for _, stat := range in.modelStats {
		out = append(out, &types.EvolutionCandidate{
			Type:  types.CandidateModelRecommendation,
			Title: fmt.Sprintf("Model %s repeatedly shows %s", stat.ModelID, stat.PatternKey),
			Description: strings.TrimSpace(fmt.Sprintf("%s Seen %d times across %d sessions with %s.",
				sentence(stat.Description), stat.Detections, stat.Sessions, stat.ModelID)),
			SessionCount:    stat.Sessions,
			Evidence:        []string{"pattern:" + stat.PatternID},
			SuggestedAction: fmt.Sprintf("Add a model note steering %s away from %s", stat.ModelID, stat.PatternKey),
			ModelScope:      stat.ModelID,
		})
	}
	return out
}

// detectRuleElevations proposes turning high-confidence recurring patterns
// into explicit rules.
func (s *Service) detectRuleElevations(in *detectorInput) []*types.EvolutionCandidate {
	var out []*types.EvolutionCandidate
	for _, p := range in.patterns {
		if p.Confidence < patternElevationConfidence {
			continue
		}
		out = append(out, &types.EvolutionCandidate{
			Type:  types.CandidateRuleElevation,
			Title: fmt.Sprintf("Elevate pattern %s to a rule", p.PatternKey),
			Description: strings.TrimSpace(fmt.Sprintf("%s Confidence %.0f after sightings in %d sessions.",
				sentence(p.Description), p.Confidence, p.Sessions)),
			SessionCount:    p.Sessions,
			Evidence:        []string{"pattern:" + p.PatternID},
			SuggestedAction: "Write a rule that names this behavior and the expected alternative",
		})
	}
	return out
}

// detectRoutingWeights flags models that keep underperforming in one domain.
func (s *Service) detectRoutingWeights(in *detectorInput) []*types.EvolutionCandidate {
	type key struct{ model, domain string }
	groups := make(map[key]map[string]bool)

	for _, sess := range in.sessions {
		model := sess.AIProvider.ModelID
		domain := sess.TaskClassification.Domain
		if model == "" || domain == "" {
			continue
		}
		// Underperformance needs a positive signal; absent outcome data is
		// neutral, not a failure.
		o := sess.Outcome
		if o.Reverts == 0 && o.Reworks == 0 && o.UserFeedback != types.FeedbackNegative {
			continue
		}
		k := key{model, domain}
		if groups[k] == nil {
			groups[k] = make(map[string]bool)
		}
		groups[k][sess.ID] = true
	}

	var out []*types.EvolutionCandidate
	for k, sessions := range groups {
		if len(sessions) < minRecurrence {
			continue
		}
		ids := sortedKeys(sessions)
		out = append(out, &types.EvolutionCandidate{
			Type:  types.CandidateRoutingWeight,
			Title: fmt.Sprintf("Lower routing weight for %s on %s tasks", k.model, k.domain),
			Description: fmt.Sprintf("%s underperformed on %s work in %d sessions (reverts, reworks, or negative feedback).",
				k.model, k.domain, len(ids)),
			SessionCount:    len(ids),
			Evidence:        ids,
			SuggestedAction: fmt.Sprintf("Prefer another model for %s tasks", k.domain),
			ModelScope:      k.model,
		})
	}
	return out
}

// detectSkillCombos finds concept pairs that keep appearing together.
func (s *Service) detectSkillCombos(in *detectorInput) []*types.EvolutionCandidate {
	pairSessions := make(map[string]map[string]bool)

	for _, sess := range in.sessions {
		concepts := make(map[string]bool)
		for _, obs := range in.observations[sess.ID] {
			for _, c := range obs.Concepts {
				if c != "" {
					concepts[c] = true
				}
			}
		}
		sorted := sortedKeys(concepts)
		for i := 0; i < len(sorted); i++ {
			for j := i + 1; j < len(sorted); j++ {
				pair := sorted[i] + " + " + sorted[j]
				if pairSessions[pair] == nil {
					pairSessions[pair] = make(map[string]bool)
				}
				pairSessions[pair][sess.ID] = true
			}
		}
	}

	var out []*types.EvolutionCandidate
	for pair, sessions := range pairSessions {
		if len(sessions) < minRecurrence {
			continue
		}
		ids := sortedKeys(sessions)
		out = append(out, &types.EvolutionCandidate{
			Type:            types.CandidateSkillCombo,
			Title:           fmt.Sprintf("Skill combo: %s", pair),
			Description:     fmt.Sprintf("The concepts %s were worked together in %d sessions.", pair, len(ids)),
			SessionCount:    len(ids),
			Evidence:        ids,
			SuggestedAction: fmt.Sprintf("Bundle %s into one reusable skill", pair),
		})
	}
	return out
}

// detectCompoundWorkflows codifies task classifications that keep finishing
// with high compliance.
func (s *Service) detectCompoundWorkflows(in *detectorInput) []*types.EvolutionCandidate {
	type key struct{ domain, nature string }
	groups := make(map[key]map[string]bool)

	for _, sess := range in.sessions {
		tc := sess.TaskClassification
		if tc.Domain == "" || tc.Nature == "" {
			continue
		}
		if sess.Outcome.ComplianceScore < compoundMinCompliance {
			continue
		}
		k := key{tc.Domain, tc.Nature}
		if groups[k] == nil {
			groups[k] = make(map[string]bool)
		}
		groups[k][sess.ID] = true
	}

	var out []*types.EvolutionCandidate
	for k, sessions := range groups {
		if len(sessions) < minRecurrence {
			continue
		}
		ids := sortedKeys(sessions)
		out = append(out, &types.EvolutionCandidate{
			Type:  types.CandidateCompoundWorkflow,
			Title: fmt.Sprintf("Codify the %s/%s workflow", k.domain, k.nature),
			Description: fmt.Sprintf("%s/%s sessions finished with compliance of at least %d, %d times.",
				k.domain, k.nature, compoundMinCompliance, len(ids)),
			SessionCount:    len(ids),
			Evidence:        ids,
			SuggestedAction: fmt.Sprintf("Write a workflow template for %s/%s tasks", k.domain, k.nature),
		})
	}
	return out
}

// detectNewConventions finds decisions whose normalized form recurs across
// sessions.
func (s *Service) detectNewConventions(in *detectorInput) []*types.EvolutionCandidate {
	type convention struct {
		example  string
		sessions map[string]bool
	}
	byKey := make(map[string]*convention)

	for _, sess := range in.sessions {
		for _, decision := range sess.Decisions {
			key := s.fp.Fingerprint(decision)
			if key == "" {
				continue
			}
			cv := byKey[key]
			if cv == nil {
				cv = &convention{example: decision, sessions: make(map[string]bool)}
				byKey[key] = cv
			}
			cv.sessions[sess.ID] = true
		}
	}

	var out []*types.EvolutionCandidate
	for key, cv := range byKey {
		if len(cv.sessions) < minRecurrence {
			continue
		}
		ids := sortedKeys(cv.sessions)
		out = append(out, &types.EvolutionCandidate{
			// The title is keyed on the fingerprint, not the raw decision
			// text, so re-detection lands on the same candidate.
			Type:            types.CandidateNewConvention,
			Title:           fmt.Sprintf("Adopt convention %s", key),
			Description:     fmt.Sprintf("The decision %q recurs across %d sessions.", cv.example, len(ids)),
			SessionCount:    len(ids),
			Evidence:        ids,
			SuggestedAction: "Document this decision as a standing convention",
		})
	}
	return out
}

// detectTKBPromotions flags topics that keep costing discovery tokens.
func (s *Service) detectTKBPromotions(in *detectorInput) []*types.EvolutionCandidate {
	type topic struct {
		tokens   int
		sessions map[string]bool
	}
	topics := make(map[string]*topic)

	for _, sess := range in.sessions {
		for _, obs := range in.observations[sess.ID] {
			if obs.DiscoveryTokens <= 0 {
				continue
			}
			for _, concept := range obs.Concepts {
				if concept == "" {
					continue
				}
				t := topics[concept]
				if t == nil {
					t = &topic{sessions: make(map[string]bool)}
					topics[concept] = t
				}
				t.tokens += obs.DiscoveryTokens
				t.sessions[sess.ID] = true
			}
		}
	}

	var out []*types.EvolutionCandidate
	for concept, t := range topics {
		if t.tokens < tkbTokenThreshold || len(t.sessions) < tkbMinSessions {
			continue
		}
		ids := sortedKeys(t.sessions)
		out = append(out, &types.EvolutionCandidate{
			Type:  types.CandidateTKBPromotion,
			Title: fmt.Sprintf("Promote %s to the knowledge base", concept),
			Description: fmt.Sprintf("Rediscovering %s has cost %d tokens across %d sessions.",
				concept, t.tokens, len(ids)),
			SessionCount:         len(ids),
			Evidence:             ids,
			DiscoveryTokensTotal: t.tokens,
			SuggestedAction:      fmt.Sprintf("Write up %s once so sessions stop re-deriving it", concept),
		})
	}
	return out
}

// sortedKeys returns a set's members in stable order, so evidence lists
// compare equal across runs.
func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// sentence normalizes a fragment into sentence position.
func sentence(s string) string {
	if s == "" {
		return ""
	}
	if s[len(s)-1] != '.' {
		return s + "."
	}
	return s
}
