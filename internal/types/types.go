package types

import (
	"fmt"
	"strings"
	"time"
)

// Session represents one AI-assisted coding session captured by a client
// (editor hook, CLI wrapper, or the desktop hub). A session is active while
// EndedAt is nil and terminal once it is set; EndedAt is set at most once.
// Compliance and evolution only ever judge terminal sessions.
type Session struct {
	ID                 string             `json:"id"`
	Branch             string             `json:"branch"`
	Name               string             `json:"name,omitempty"`
	Input              string             `json:"input,omitempty"`
	Output             string             `json:"output,omitempty"`
	AIProvider         AIProvider         `json:"ai_provider"`
	TaskClassification TaskClassification `json:"task_classification"`
	Outcome            Outcome            `json:"outcome"`
	TasksCompleted     []string           `json:"tasks_completed,omitempty"`
	TasksPending       []string           `json:"tasks_pending,omitempty"`
	FilesModified      []string           `json:"files_modified,omitempty"`
	Decisions          []string           `json:"decisions,omitempty"`
	ErrorsResolved     []string           `json:"errors_resolved,omitempty"`
	TimingMetrics      TimingMetrics      `json:"timing_metrics"`
	StartedAt          time.Time          `json:"started_at"`
	EndedAt            *time.Time         `json:"ended_at,omitempty"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

// Active reports whether the session is still in flight.
func (s *Session) Active() bool {
	return s.EndedAt == nil
}

// Validate checks if the session has valid field values
func (s *Session) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("id is required")
	}
	if strings.TrimSpace(s.Branch) == "" {
		return fmt.Errorf("branch is required")
	}
	if !s.Outcome.UserFeedback.IsValid() {
		return fmt.Errorf("invalid user feedback: %s", s.Outcome.UserFeedback)
	}
	for _, p := range s.TaskClassification.SkippableStages {
		if !p.Canonical().IsValid() {
			return fmt.Errorf("invalid skippable stage: %s", p)
		}
	}
	if s.TimingMetrics.GovernanceOverheadMs < 0 {
		return fmt.Errorf("governance_overhead_ms cannot be negative")
	}
	return nil
}

// AIProvider identifies which model served the session and through which client.
type AIProvider struct {
	Provider string `json:"provider,omitempty"` // e.g. "anthropic"
	Model    string `json:"model,omitempty"`    // display name
	ModelID  string `json:"model_id,omitempty"` // routing identifier
	Client   string `json:"client,omitempty"`   // capture client, e.g. "cli", "hub"
}

// TaskClassification is the capture client's judgment of the work performed.
// Missing or malformed values default to the zero value rather than failing:
// an unclassified session is simply full-ceremony.
type TaskClassification struct {
	Domain          string    `json:"domain,omitempty"`
	Nature          string    `json:"nature,omitempty"`
	Complexity      string    `json:"complexity,omitempty"`
	FastTrack       bool      `json:"fast_track,omitempty"`
	SkippableStages []PhaseID `json:"skippable_stages,omitempty"`
}

// Outcome records how the session ended. Zero values are neutral.
type Outcome struct {
	TestsPassing    bool     `json:"tests_passing,omitempty"`
	ComplianceScore int      `json:"compliance_score,omitempty"`
	Reverts         int      `json:"reverts,omitempty"`
	Reworks         int      `json:"reworks,omitempty"`
	UserFeedback    Feedback `json:"user_feedback,omitempty"`
}

// Feedback is the operator's verdict on a finished session
type Feedback string

const (
	FeedbackPositive Feedback = "positive"
	FeedbackNeutral  Feedback = "neutral"
	FeedbackNegative Feedback = "negative"
	FeedbackNone     Feedback = "" // no verdict recorded
)

// IsValid checks if the feedback value is valid
func (f Feedback) IsValid() bool {
	switch f {
	case FeedbackPositive, FeedbackNeutral, FeedbackNegative, FeedbackNone:
		return true
	}
	return false
}

// TimingMetrics carries per-session timing counters. GovernanceOverheadMs is
// cumulative: remediation passes add to it and must never overwrite it.
type TimingMetrics struct {
	StartupMs            int64 `json:"startup_ms,omitempty"`
	GovernanceOverheadMs int64 `json:"governance_overhead_ms,omitempty"`
}

// PhaseID names one of the six fixed lifecycle phases
type PhaseID string

const (
	PhaseBrainstorm PhaseID = "brainstorm"
	PhasePlan       PhaseID = "plan"
	PhaseExecute    PhaseID = "execute"
	PhaseTest       PhaseID = "test"
	PhaseReview     PhaseID = "review"
	PhaseShip       PhaseID = "ship"
)

// Canonical maps legacy stage aliases onto the fixed phase table. Older
// capture clients name the test stage after its checklist artifact.
func (p PhaseID) Canonical() PhaseID {
	if p == "checklist" {
		return PhaseTest
	}
	return p
}

// IsValid checks if the phase id is one of the six canonical phases
func (p PhaseID) IsValid() bool {
	switch p {
	case PhaseBrainstorm, PhasePlan, PhaseExecute, PhaseTest, PhaseReview, PhaseShip:
		return true
	}
	return false
}

// PhaseStatus is the per-phase state within a computed LifecycleProgress
type PhaseStatus string

const (
	PhaseCompleted PhaseStatus = "completed"
	PhaseSkipped   PhaseStatus = "skipped"
	PhaseActive    PhaseStatus = "active"
	PhasePending   PhaseStatus = "pending"
)

// PhaseProgress is one row of the lifecycle score breakdown. Weight is the
// effective weight after skip redistribution; Contribution equals Weight when
// the phase is completed and 0 otherwise.
type PhaseProgress struct {
	ID           PhaseID     `json:"id"`
	Status       PhaseStatus `json:"status"`
	Weight       int         `json:"weight"`
	Contribution int         `json:"contribution"`
}

// Milestone is a bonus score contribution tied to a specific artifact type,
// independent of phase completion.
type Milestone struct {
	Artifact ArtifactType `json:"artifact"`
	Points   int          `json:"points"`
	Earned   bool         `json:"earned"`
}

// LifecycleProgress is the derived, never-persisted result of scoring a
// session against its artifacts. Compute on read; caching it as a source of
// truth invites staleness bugs.
type LifecycleProgress struct {
	Phases      []PhaseProgress `json:"phases"`
	Milestones  []Milestone     `json:"milestones"`
	Score       int             `json:"score"`
	ActivePhase PhaseID         `json:"active_phase,omitempty"` // empty when no phase is active
	IsWip       bool            `json:"is_wip"`
	IsFastTrack bool            `json:"is_fast_track"`
}

// ArtifactType categorizes session documentation artifacts
type ArtifactType string

const (
	ArtifactBrainstorm ArtifactType = "brainstorm"
	ArtifactPlan       ArtifactType = "plan"
	ArtifactResearch   ArtifactType = "research"
	ArtifactADR        ArtifactType = "adr"
	ArtifactDiagram    ArtifactType = "diagram"
	ArtifactIssue      ArtifactType = "issue"
	ArtifactSpec       ArtifactType = "spec"
	ArtifactChecklist  ArtifactType = "checklist"
	ArtifactRetro      ArtifactType = "retro"
)

// IsValid checks if the artifact type value is valid
func (t ArtifactType) IsValid() bool {
	switch t {
	case ArtifactBrainstorm, ArtifactPlan, ArtifactResearch, ArtifactADR,
		ArtifactDiagram, ArtifactIssue, ArtifactSpec, ArtifactChecklist, ArtifactRetro:
		return true
	}
	return false
}

// ArtifactStatus represents the working state of an artifact
type ArtifactStatus string

const (
	ArtifactActive ArtifactStatus = "active"
	ArtifactDone   ArtifactStatus = "done"
)

// IsValid checks if the artifact status value is valid
func (s ArtifactStatus) IsValid() bool {
	return s == ArtifactActive || s == ArtifactDone
}

// Artifact is one documentation artifact produced during (or imported into)
// a session. SessionID may be empty on legacy rows; those still associate to
// a session when Feature equals the session branch (case-insensitive) or the
// session id appears inside Title. That fallback is load-bearing for
// historical data and must not be tightened.
type Artifact struct {
	ID          string         `json:"id"`
	SessionID   string         `json:"session_id,omitempty"` // empty for legacy rows
	Type        ArtifactType   `json:"type"`
	Status      ArtifactStatus `json:"status"`
	Feature     string         `json:"feature,omitempty"`
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	Content     string         `json:"content,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// Validate checks if the artifact has valid field values
func (a *Artifact) Validate() error {
	if a.ID == "" {
		return fmt.Errorf("id is required")
	}
	if strings.TrimSpace(a.Title) == "" {
		return fmt.Errorf("title is required")
	}
	if !a.Type.IsValid() {
		return fmt.Errorf("invalid artifact type: %s", a.Type)
	}
	if !a.Status.IsValid() {
		return fmt.Errorf("invalid artifact status: %s", a.Status)
	}
	return nil
}

// BelongsTo reports whether the artifact is associated with the given
// session, applying the legacy matching fallback for rows without an
// explicit session id.
func (a *Artifact) BelongsTo(s *Session) bool {
	if a.SessionID != "" {
		return a.SessionID == s.ID
	}
	if a.Feature != "" && strings.EqualFold(a.Feature, s.Branch) {
		return true
	}
	return s.ID != "" && strings.Contains(a.Title, s.ID)
}

// ComplianceStatus is the verdict of the workflow compliance classifier
type ComplianceStatus string

const (
	Compliant    ComplianceStatus = "compliant"
	NonCompliant ComplianceStatus = "non_compliant"
)

// WorkflowCompliance is the derived, never-persisted classifier output.
type WorkflowCompliance struct {
	Status    ComplianceStatus `json:"status"`
	Required  []ArtifactType   `json:"required"`
	Missing   []ArtifactType   `json:"missing"`
	FastTrack bool             `json:"fast_track"`
}

// ObservationType is the capture client's taxonomy for observations. It is
// free-form on purpose: clients evolve faster than this engine and unknown
// types must not be rejected.
type ObservationType string

// Observation is one narrative memory snippet recorded during a session.
// The remediator mines narratives for draft content; pattern detection mines
// them for recurring failure modes.
type Observation struct {
	ID              string          `json:"id"`
	SessionID       string          `json:"session_id"`
	Type            ObservationType `json:"type,omitempty"`
	Title           string          `json:"title,omitempty"`
	Narrative       string          `json:"narrative,omitempty"`
	Facts           string          `json:"facts,omitempty"`
	Concepts        []string        `json:"concepts,omitempty"`
	FilesRead       []string        `json:"files_read,omitempty"`
	FilesModified   []string        `json:"files_modified,omitempty"`
	DiscoveryTokens int             `json:"discovery_tokens,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

// Validate checks if the observation has valid field values
func (o *Observation) Validate() error {
	if o.ID == "" {
		return fmt.Errorf("id is required")
	}
	if o.SessionID == "" {
		return fmt.Errorf("session_id is required")
	}
	if o.DiscoveryTokens < 0 {
		return fmt.Errorf("discovery_tokens cannot be negative")
	}
	return nil
}

// CandidateType categorizes evolution candidates by the kind of framework
// mutation they propose
type CandidateType string

const (
	CandidateRoutingWeight       CandidateType = "routing_weight"
	CandidateSkillCombo          CandidateType = "skill_combo"
	CandidateRuleElevation       CandidateType = "rule_elevation"
	CandidateCompoundWorkflow    CandidateType = "compound_workflow"
	CandidateTKBPromotion        CandidateType = "tkb_promotion"
	CandidateNewConvention       CandidateType = "new_convention"
	CandidateModelRecommendation CandidateType = "model_recommendation"
)

// IsValid checks if the candidate type value is valid
func (t CandidateType) IsValid() bool {
	switch t {
	case CandidateRoutingWeight, CandidateSkillCombo, CandidateRuleElevation,
		CandidateCompoundWorkflow, CandidateTKBPromotion, CandidateNewConvention,
		CandidateModelRecommendation:
		return true
	}
	return false
}

// CandidateStatus is the lifecycle state of an evolution candidate
type CandidateStatus string

const (
	CandidatePending     CandidateStatus = "pending"
	CandidateDrafted     CandidateStatus = "drafted"
	CandidateApproved    CandidateStatus = "approved"
	CandidateRejected    CandidateStatus = "rejected"
	CandidateAutoApplied CandidateStatus = "auto_applied"
)

// IsValid checks if the candidate status value is valid
func (s CandidateStatus) IsValid() bool {
	switch s {
	case CandidatePending, CandidateDrafted, CandidateApproved,
		CandidateRejected, CandidateAutoApplied:
		return true
	}
	return false
}

// IsTerminal reports whether an operator has settled the candidate. Terminal
// candidates are exempt from automatic confidence adjustment.
func (s CandidateStatus) IsTerminal() bool {
	return s == CandidateApproved || s == CandidateRejected
}

// EvolutionCandidate is a proposed, confidence-scored mutation to the
// governing framework, discovered automatically by detectors or created
// manually. Confidence decaying to 20 or below destroys the candidate.
type EvolutionCandidate struct {
	ID                   string          `json:"id"`
	Type                 CandidateType   `json:"type"`
	Title                string          `json:"title"`
	Description          string          `json:"description,omitempty"`
	Confidence           float64         `json:"confidence"`
	SessionCount         int             `json:"session_count"`
	Evidence             []string        `json:"evidence,omitempty"`
	DiscoveryTokensTotal int             `json:"discovery_tokens_total,omitempty"`
	SuggestedAction      string          `json:"suggested_action,omitempty"`
	ModelScope           string          `json:"model_scope,omitempty"`
	Status               CandidateStatus `json:"status"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
}

// Validate checks if the candidate has valid field values
func (c *EvolutionCandidate) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("id is required")
	}
	if strings.TrimSpace(c.Title) == "" {
		return fmt.Errorf("title is required")
	}
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid candidate type: %s", c.Type)
	}
	if !c.Status.IsValid() {
		return fmt.Errorf("invalid candidate status: %s", c.Status)
	}
	if c.Confidence < 0 || c.Confidence > 100 {
		return fmt.Errorf("confidence must be between 0 and 100 (got %.1f)", c.Confidence)
	}
	if c.SessionCount < 0 {
		return fmt.Errorf("session_count cannot be negative")
	}
	return nil
}

// LogAction is the action recorded by an evolution log entry
type LogAction string

const (
	ActionAutoApplied LogAction = "auto_applied"
	ActionDrafted     LogAction = "drafted"
	ActionPending     LogAction = "pending"
	ActionReverted    LogAction = "reverted"
	ActionRejected    LogAction = "rejected"
)

// IsValid checks if the log action value is valid
func (a LogAction) IsValid() bool {
	switch a {
	case ActionAutoApplied, ActionDrafted, ActionPending, ActionReverted, ActionRejected:
		return true
	}
	return false
}

// EvolutionLogEntry is the append-only audit record of candidate state
// transitions. Entries are immutable once written; every confidence-affecting
// transition appends exactly one.
type EvolutionLogEntry struct {
	ID          int64     `json:"id"`
	CandidateID string    `json:"candidate_id"`
	Action      LogAction `json:"action"`
	Title       string    `json:"title"`
	Confidence  float64   `json:"confidence"`
	Snapshot    string    `json:"snapshot"` // JSON snapshot of the candidate at transition time
	Timestamp   time.Time `json:"timestamp"`
}

// DraftCategory is the framework directory a draft materializes into
type DraftCategory string

const (
	CategoryRules     DraftCategory = "rules"
	CategoryKnowledge DraftCategory = "knowledge"
	CategorySkills    DraftCategory = "skills"
	CategoryWorkflows DraftCategory = "workflows"
)

// IsValid checks if the draft category value is valid
func (c DraftCategory) IsValid() bool {
	switch c {
	case CategoryRules, CategoryKnowledge, CategorySkills, CategoryWorkflows:
		return true
	}
	return false
}

// DraftSource records what produced a draft
type DraftSource string

const (
	SourceEvolution DraftSource = "evolution"
	SourceManual    DraftSource = "manual"
)

// IsValid checks if the draft source value is valid
func (s DraftSource) IsValid() bool {
	return s == SourceEvolution || s == SourceManual
}

// DraftStatus is the review state of a draft
type DraftStatus string

const (
	DraftPending  DraftStatus = "pending"
	DraftApproved DraftStatus = "approved"
	DraftRejected DraftStatus = "rejected"
)

// IsValid checks if the draft status value is valid
func (s DraftStatus) IsValid() bool {
	return s == DraftPending || s == DraftApproved || s == DraftRejected
}

// Draft is a proposed framework file awaiting operator review. Approval
// materializes it under framework/<category>/<filename> and invalidates any
// cached session/artifact views held by collaborators.
type Draft struct {
	ID                   string        `json:"id"`
	Category             DraftCategory `json:"category"`
	Title                string        `json:"title"`
	Filename             string        `json:"filename"`
	Content              string        `json:"content,omitempty"`
	Confidence           float64       `json:"confidence"`
	Source               DraftSource   `json:"source"`
	EvolutionCandidateID string        `json:"evolution_candidate_id,omitempty"`
	SessionID            string        `json:"session_id,omitempty"`
	ArtifactType         ArtifactType  `json:"artifact_type,omitempty"`
	Status               DraftStatus   `json:"status"`
	CreatedAt            time.Time     `json:"created_at"`
	UpdatedAt            time.Time     `json:"updated_at"`
	ApprovedAt           *time.Time    `json:"approved_at,omitempty"`
	RejectedReason       string        `json:"rejected_reason,omitempty"`
}

// Validate checks if the draft has valid field values
func (d *Draft) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("id is required")
	}
	if strings.TrimSpace(d.Title) == "" {
		return fmt.Errorf("title is required")
	}
	if strings.TrimSpace(d.Filename) == "" {
		return fmt.Errorf("filename is required")
	}
	if strings.ContainsAny(d.Filename, "/\\") {
		return fmt.Errorf("filename must not contain path separators (got %q)", d.Filename)
	}
	if !d.Category.IsValid() {
		return fmt.Errorf("invalid draft category: %s", d.Category)
	}
	if !d.Source.IsValid() {
		return fmt.Errorf("invalid draft source: %s", d.Source)
	}
	if !d.Status.IsValid() {
		return fmt.Errorf("invalid draft status: %s", d.Status)
	}
	if d.Confidence < 0 || d.Confidence > 100 {
		return fmt.Errorf("confidence must be between 0 and 100 (got %.1f)", d.Confidence)
	}
	if d.ArtifactType != "" && !d.ArtifactType.IsValid() {
		return fmt.Errorf("invalid artifact type: %s", d.ArtifactType)
	}
	return nil
}

// Pattern is a recurring failure mode tracked across sessions. Confidence
// drops multiplicatively on false-positive reports; below 50 the pattern
// deactivates and is excluded from future detection.
type Pattern struct {
	ID                 string    `json:"id"`
	Pattern            string    `json:"pattern"` // normalized detection key
	Description        string    `json:"description,omitempty"`
	Confidence         float64   `json:"confidence"`
	Active             bool      `json:"active"`
	FalsePositiveCount int       `json:"false_positive_count"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// PatternDetection is one sighting of a pattern in a session.
type PatternDetection struct {
	ID         int64     `json:"id"`
	PatternID  string    `json:"pattern_id"`
	SessionID  string    `json:"session_id"`
	ModelID    string    `json:"model_id,omitempty"`
	DetectedAt time.Time `json:"detected_at"`
}

// SessionFilter is used to filter session queries
type SessionFilter struct {
	Active *bool
	Branch *string
	Limit  int
}

// ArtifactFilter is used to filter artifact queries
type ArtifactFilter struct {
	Type    *ArtifactType
	Status  *ArtifactStatus
	Feature *string
	Limit   int
}

// DraftFilter is used to filter draft queries
type DraftFilter struct {
	Status   *DraftStatus
	Category *DraftCategory
	Source   *DraftSource
	Limit    int
}

// CandidateFilter is used to filter evolution candidate queries
type CandidateFilter struct {
	Status *CandidateStatus
	Type   *CandidateType
	Limit  int
}

// SessionStats provides aggregate session metrics for the status surface
type SessionStats struct {
	Total     int `json:"total"`
	Active    int `json:"active"`
	Completed int `json:"completed"`
}

// EvolutionStats provides candidate counts by status
type EvolutionStats struct {
	Pending     int `json:"pending"`
	Drafted     int `json:"drafted"`
	Approved    int `json:"approved"`
	Rejected    int `json:"rejected"`
	AutoApplied int `json:"auto_applied"`
}

// PatternStats provides aggregate pattern metrics
type PatternStats struct {
	Total          int `json:"total"`
	Active         int `json:"active"`
	Detections     int `json:"detections"`
	FalsePositives int `json:"false_positives"`
}
