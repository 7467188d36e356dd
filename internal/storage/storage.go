package storage

import (
	"context"
	"time"

	"github.com/DerianAndre/aidd.md-sub000/internal/storage/sqlite"
	"github.com/DerianAndre/aidd.md-sub000/internal/types"
)

// Storage defines the interface for engine storage backends
type Storage interface {
	// Sessions
	CreateSession(ctx context.Context, session *types.Session) error
	GetSession(ctx context.Context, id string) (*types.Session, error)
	ListSessions(ctx context.Context, filter types.SessionFilter) ([]*types.Session, error)
	UpdateSession(ctx context.Context, session *types.Session) error
	DeleteSession(ctx context.Context, id string) error
	// EndSession marks the session terminal. The transition happens at most
	// once; ending an already-terminal session is an error.
	EndSession(ctx context.Context, id string, endedAt time.Time) error
	// AddGovernanceOverhead adds to the cumulative governance overhead
	// counter. It never overwrites.
	AddGovernanceOverhead(ctx context.Context, sessionID string, ms int64) error
	SetUserFeedback(ctx context.Context, sessionID string, feedback types.Feedback) error
	GetSessionStats(ctx context.Context) (*types.SessionStats, error)
	// CapTerminalSessions deletes terminal sessions beyond the newest keep,
	// returning how many were removed.
	CapTerminalSessions(ctx context.Context, keep int) (int, error)

	// Artifacts
	CreateArtifact(ctx context.Context, artifact *types.Artifact) error
	GetArtifact(ctx context.Context, id string) (*types.Artifact, error)
	ListArtifacts(ctx context.Context, filter types.ArtifactFilter) ([]*types.Artifact, error)
	UpdateArtifact(ctx context.Context, artifact *types.Artifact) error
	DeleteArtifact(ctx context.Context, id string) error
	// GetSessionArtifacts returns artifacts associated with the session:
	// explicit session id plus the legacy feature/title fallback.
	GetSessionArtifacts(ctx context.Context, session *types.Session) ([]types.Artifact, error)

	// Observations
	CreateObservation(ctx context.Context, obs *types.Observation) error
	GetObservation(ctx context.Context, id string) (*types.Observation, error)
	GetSessionObservations(ctx context.Context, sessionID string) ([]*types.Observation, error)
	UpdateObservation(ctx context.Context, obs *types.Observation) error
	SearchObservations(ctx context.Context, query string, limit int) ([]*types.Observation, error)
	DeleteObservation(ctx context.Context, id string) error
	// CapObservations deletes observations beyond the newest keep.
	CapObservations(ctx context.Context, keep int) (int, error)

	// Drafts
	CreateDraft(ctx context.Context, draft *types.Draft) error
	GetDraft(ctx context.Context, id string) (*types.Draft, error)
	ListDrafts(ctx context.Context, filter types.DraftFilter) ([]*types.Draft, error)
	UpdateDraft(ctx context.Context, draft *types.Draft) error
	DeleteDraft(ctx context.Context, id string) error
	// GetPendingDraftByTitle returns the pending draft with the exact title,
	// or nil when none exists. Absence is a normal outcome, not an error.
	GetPendingDraftByTitle(ctx context.Context, title string) (*types.Draft, error)

	// Evolution candidates
	CreateCandidate(ctx context.Context, candidate *types.EvolutionCandidate) error
	GetCandidate(ctx context.Context, id string) (*types.EvolutionCandidate, error)
	ListCandidates(ctx context.Context, filter types.CandidateFilter) ([]*types.EvolutionCandidate, error)
	UpdateCandidate(ctx context.Context, candidate *types.EvolutionCandidate) error
	DeleteCandidate(ctx context.Context, id string) error
	// GetCandidateByTypeTitle returns the newest non-terminal candidate with
	// the given type and title, or nil when none exists.
	GetCandidateByTypeTitle(ctx context.Context, ctype types.CandidateType, title string) (*types.EvolutionCandidate, error)
	GetEvolutionStats(ctx context.Context) (*types.EvolutionStats, error)

	// Evolution log (append-only; entries outlive their candidates)
	AppendEvolutionLog(ctx context.Context, entry *types.EvolutionLogEntry) error
	GetEvolutionLog(ctx context.Context, candidateID string, limit int) ([]*types.EvolutionLogEntry, error)
	GetEvolutionLogAfter(ctx context.Context, afterID int64, limit int) ([]*types.EvolutionLogEntry, error)
	// GetRecentEvolutionLog returns the newest limit entries in append order.
	GetRecentEvolutionLog(ctx context.Context, limit int) ([]*types.EvolutionLogEntry, error)

	// Patterns
	CreatePattern(ctx context.Context, pattern *types.Pattern) error
	GetPattern(ctx context.Context, id string) (*types.Pattern, error)
	GetPatternByKey(ctx context.Context, key string) (*types.Pattern, error)
	ListPatterns(ctx context.Context, activeOnly bool) ([]*types.Pattern, error)
	UpdatePattern(ctx context.Context, pattern *types.Pattern) error
	RecordPatternDetection(ctx context.Context, det *types.PatternDetection) error
	// ModelPatternRecurrences aggregates detections of active patterns per
	// (pattern, model), keeping rows with at least minDetections sightings
	// across at least minSessions distinct sessions.
	ModelPatternRecurrences(ctx context.Context, minDetections, minSessions int) ([]*sqlite.ModelPatternStat, error)
	// PatternRecurrences aggregates detections of active patterns per pattern,
	// keeping rows seen in at least minSessions distinct sessions.
	PatternRecurrences(ctx context.Context, minSessions int) ([]*sqlite.PatternRecurrenceStat, error)
	DeletePatternDetectionsBefore(ctx context.Context, cutoff time.Time) (int, error)
	GetPatternStats(ctx context.Context) (*types.PatternStats, error)

	// Meta counters (cadence counters, views epoch). Increments are atomic
	// with respect to concurrent writers.
	IncrementCounter(ctx context.Context, key string) (int64, error)
	GetCounter(ctx context.Context, key string) (int64, error)
	ResetCounter(ctx context.Context, key string) error

	// Checkpoint flushes the WAL into the main database file.
	Checkpoint(ctx context.Context) error

	// Lifecycle
	Close() error
}

// Config holds database configuration
type Config struct {
	// Path is the SQLite database file path
	// Default: ".aidd/memory.db"
	// Special value ":memory:" creates an in-memory database (useful for tests)
	Path string
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Path: ".aidd/memory.db",
	}
}

// NewStorage creates a new SQLite storage backend
// The ctx parameter is currently unused but kept for API consistency
// and future extension possibilities
func NewStorage(ctx context.Context, cfg *Config) (Storage, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	if cfg.Path == "" {
		cfg.Path = ".aidd/memory.db"
	}

	return sqlite.New(cfg.Path)
}
