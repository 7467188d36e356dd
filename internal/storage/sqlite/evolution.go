package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/DerianAndre/aidd.md-sub000/internal/types"
)

const candidateColumns = `id, type, title, description, confidence, session_count,
	evidence, discovery_tokens_total, suggested_action, model_scope, status,
	created_at, updated_at`

// CreateCandidate stores a new evolution candidate
func (s *SQLiteStorage) CreateCandidate(ctx context.Context, candidate *types.EvolutionCandidate) error {
	if err := candidate.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	if candidate.CreatedAt.IsZero() {
		candidate.CreatedAt = now
	}
	candidate.UpdatedAt = now

	evidence, err := marshalStrings(candidate.Evidence)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO evolution_candidates (id, type, title, description, confidence,
			session_count, evidence, discovery_tokens_total, suggested_action,
			model_scope, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		candidate.ID, candidate.Type, candidate.Title, candidate.Description,
		candidate.Confidence, candidate.SessionCount, evidence,
		candidate.DiscoveryTokensTotal, candidate.SuggestedAction, candidate.ModelScope,
		candidate.Status, candidate.CreatedAt, candidate.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create candidate %s: %w", candidate.ID, err)
	}
	return nil
}

// GetCandidate retrieves a candidate by ID
func (s *SQLiteStorage) GetCandidate(ctx context.Context, id string) (*types.EvolutionCandidate, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+candidateColumns+` FROM evolution_candidates WHERE id = ?`, id)
	candidate, err := scanCandidate(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("candidate not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get candidate %s: %w", id, err)
	}
	return candidate, nil
}

// ListCandidates retrieves candidates matching the given filter, highest
// confidence first
func (s *SQLiteStorage) ListCandidates(ctx context.Context, filter types.CandidateFilter) ([]*types.EvolutionCandidate, error) {
	query := `SELECT ` + candidateColumns + ` FROM evolution_candidates WHERE 1=1`
	args := []interface{}{}

	if filter.Status != nil {
		query += " AND status = ?"
		args = append(args, *filter.Status)
	}
	if filter.Type != nil {
		query += " AND type = ?"
		args = append(args, *filter.Type)
	}

	query += " ORDER BY confidence DESC, created_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query candidates: %w", err)
	}
	defer rows.Close()

	var result []*types.EvolutionCandidate
	for rows.Next() {
		candidate, err := scanCandidate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan candidate: %w", err)
		}
		result = append(result, candidate)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating candidate rows: %w", err)
	}
	return result, nil
}

// UpdateCandidate rewrites the mutable fields of a candidate
func (s *SQLiteStorage) UpdateCandidate(ctx context.Context, candidate *types.EvolutionCandidate) error {
	if err := candidate.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	candidate.UpdatedAt = time.Now()
	evidence, err := marshalStrings(candidate.Evidence)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE evolution_candidates SET
			type = ?, title = ?, description = ?, confidence = ?, session_count = ?,
			evidence = ?, discovery_tokens_total = ?, suggested_action = ?,
			model_scope = ?, status = ?, updated_at = ?
		WHERE id = ?
	`,
		candidate.Type, candidate.Title, candidate.Description, candidate.Confidence,
		candidate.SessionCount, evidence, candidate.DiscoveryTokensTotal,
		candidate.SuggestedAction, candidate.ModelScope, candidate.Status,
		candidate.UpdatedAt, candidate.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update candidate %s: %w", candidate.ID, err)
	}
	return requireRowAffected(res, "candidate", candidate.ID)
}

// DeleteCandidate removes a candidate. Its evolution log entries remain.
func (s *SQLiteStorage) DeleteCandidate(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM evolution_candidates WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete candidate %s: %w", id, err)
	}
	return requireRowAffected(res, "candidate", id)
}

// GetCandidateByTypeTitle returns the newest non-terminal candidate with
// the given type and title, or nil when none exists. Detectors use this to
// refresh an existing proposal instead of duplicating it; settled
// (approved/rejected) candidates stay untouched.
func (s *SQLiteStorage) GetCandidateByTypeTitle(ctx context.Context, ctype types.CandidateType, title string) (*types.EvolutionCandidate, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+candidateColumns+` FROM evolution_candidates
		WHERE type = ? AND title = ? AND status NOT IN ('approved', 'rejected')
		ORDER BY created_at DESC
		LIMIT 1
	`, ctype, title)
	candidate, err := scanCandidate(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up candidate %s %q: %w", ctype, title, err)
	}
	return candidate, nil
}

// GetEvolutionStats returns candidate counts by status
func (s *SQLiteStorage) GetEvolutionStats(ctx context.Context) (*types.EvolutionStats, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT status, COUNT(*) FROM evolution_candidates GROUP BY status
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to get evolution stats: %w", err)
	}
	defer rows.Close()

	stats := &types.EvolutionStats{}
	for rows.Next() {
		var status types.CandidateStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan evolution stats: %w", err)
		}
		switch status {
		case types.CandidatePending:
			stats.Pending = count
		case types.CandidateDrafted:
			stats.Drafted = count
		case types.CandidateApproved:
			stats.Approved = count
		case types.CandidateRejected:
			stats.Rejected = count
		case types.CandidateAutoApplied:
			stats.AutoApplied = count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating evolution stats: %w", err)
	}
	return stats, nil
}

// AppendEvolutionLog appends one immutable log entry. The log has no update
// or delete path; entries outlive their candidates.
func (s *SQLiteStorage) AppendEvolutionLog(ctx context.Context, entry *types.EvolutionLogEntry) error {
	if !entry.Action.IsValid() {
		return fmt.Errorf("invalid log action: %s", entry.Action)
	}
	if entry.CandidateID == "" {
		return fmt.Errorf("candidate_id is required")
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO evolution_log (candidate_id, action, title, confidence, snapshot, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id
	`,
		entry.CandidateID, entry.Action, entry.Title, entry.Confidence,
		entry.Snapshot, entry.Timestamp,
	).Scan(&entry.ID)
	if err != nil {
		return fmt.Errorf("failed to append evolution log for %s: %w", entry.CandidateID, err)
	}
	return nil
}

// GetEvolutionLog retrieves log entries for one candidate, newest first
func (s *SQLiteStorage) GetEvolutionLog(ctx context.Context, candidateID string, limit int) ([]*types.EvolutionLogEntry, error) {
	query := `
		SELECT id, candidate_id, action, title, confidence, snapshot, timestamp
		FROM evolution_log
		WHERE candidate_id = ?
		ORDER BY id DESC
	`
	args := []interface{}{candidateID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query evolution log for %s: %w", candidateID, err)
	}
	defer rows.Close()
	return collectLogEntries(rows)
}

// GetEvolutionLogAfter retrieves log entries with an id greater than
// afterID in append order. The tail command polls with this.
func (s *SQLiteStorage) GetEvolutionLogAfter(ctx context.Context, afterID int64, limit int) ([]*types.EvolutionLogEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, candidate_id, action, title, confidence, snapshot, timestamp
		FROM evolution_log
		WHERE id > ?
		ORDER BY id ASC
		LIMIT ?
	`, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query evolution log after %d: %w", afterID, err)
	}
	defer rows.Close()
	return collectLogEntries(rows)
}

// GetRecentEvolutionLog retrieves the newest limit entries across all
// candidates, in append order.
func (s *SQLiteStorage) GetRecentEvolutionLog(ctx context.Context, limit int) ([]*types.EvolutionLogEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, candidate_id, action, title, confidence, snapshot, timestamp
		FROM (
			SELECT id, candidate_id, action, title, confidence, snapshot, timestamp
			FROM evolution_log
			ORDER BY id DESC
			LIMIT ?
		)
		ORDER BY id ASC
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent evolution log: %w", err)
	}
	defer rows.Close()
	return collectLogEntries(rows)
}

// collectLogEntries scans all rows into log entries
func collectLogEntries(rows *sql.Rows) ([]*types.EvolutionLogEntry, error) {
	var result []*types.EvolutionLogEntry
	for rows.Next() {
		var entry types.EvolutionLogEntry
		err := rows.Scan(&entry.ID, &entry.CandidateID, &entry.Action, &entry.Title,
			&entry.Confidence, &entry.Snapshot, &entry.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("failed to scan evolution log entry: %w", err)
		}
		result = append(result, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating evolution log rows: %w", err)
	}
	return result, nil
}

// scanCandidate reads one candidate row
func scanCandidate(row rowScanner) (*types.EvolutionCandidate, error) {
	var candidate types.EvolutionCandidate
	var evidence string

	err := row.Scan(
		&candidate.ID, &candidate.Type, &candidate.Title, &candidate.Description,
		&candidate.Confidence, &candidate.SessionCount, &evidence,
		&candidate.DiscoveryTokensTotal, &candidate.SuggestedAction,
		&candidate.ModelScope, &candidate.Status, &candidate.CreatedAt, &candidate.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	candidate.Evidence = lenientStrings(evidence)
	return &candidate, nil
}
