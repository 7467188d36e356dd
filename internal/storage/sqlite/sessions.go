package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/DerianAndre/aidd.md-sub000/internal/types"
)

const sessionColumns = `id, branch, name, input, output, ai_provider, task_classification,
	outcome, tasks_completed, tasks_pending, files_modified, decisions, errors_resolved,
	startup_ms, governance_overhead_ms, started_at, ended_at, updated_at`

// CreateSession stores a new session
func (s *SQLiteStorage) CreateSession(ctx context.Context, session *types.Session) error {
	if err := session.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	if session.StartedAt.IsZero() {
		session.StartedAt = now
	}
	session.UpdatedAt = now

	provider, classification, outcome, lists, err := encodeSessionColumns(session)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions (
			id, branch, name, input, output, ai_provider, task_classification,
			outcome, tasks_completed, tasks_pending, files_modified, decisions,
			errors_resolved, startup_ms, governance_overhead_ms, started_at,
			ended_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		session.ID, session.Branch, session.Name, session.Input, session.Output,
		provider, classification, outcome,
		lists[0], lists[1], lists[2], lists[3], lists[4],
		session.TimingMetrics.StartupMs, session.TimingMetrics.GovernanceOverheadMs,
		session.StartedAt, nullTime(session.EndedAt), session.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create session %s: %w", session.ID, err)
	}
	return nil
}

// GetSession retrieves a session by ID
func (s *SQLiteStorage) GetSession(ctx context.Context, id string) (*types.Session, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	session, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("session not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session %s: %w", id, err)
	}
	return session, nil
}

// ListSessions retrieves sessions matching the given filter, newest first
func (s *SQLiteStorage) ListSessions(ctx context.Context, filter types.SessionFilter) ([]*types.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE 1=1`
	args := []interface{}{}

	if filter.Active != nil {
		if *filter.Active {
			query += " AND ended_at IS NULL"
		} else {
			query += " AND ended_at IS NOT NULL"
		}
	}
	if filter.Branch != nil {
		query += " AND branch = ?"
		args = append(args, *filter.Branch)
	}

	query += " ORDER BY started_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var result []*types.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		result = append(result, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating session rows: %w", err)
	}
	return result, nil
}

// UpdateSession rewrites the mutable fields of a session. Two columns are
// deliberately out of reach here: ended_at moves only through EndSession
// (set at most once) and governance_overhead_ms only through
// AddGovernanceOverhead (cumulative, never overwritten).
func (s *SQLiteStorage) UpdateSession(ctx context.Context, session *types.Session) error {
	if err := session.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	session.UpdatedAt = time.Now()
	provider, classification, outcome, lists, err := encodeSessionColumns(session)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE sessions SET
			branch = ?, name = ?, input = ?, output = ?, ai_provider = ?,
			task_classification = ?, outcome = ?, tasks_completed = ?,
			tasks_pending = ?, files_modified = ?, decisions = ?,
			errors_resolved = ?, startup_ms = ?, updated_at = ?
		WHERE id = ?
	`,
		session.Branch, session.Name, session.Input, session.Output,
		provider, classification, outcome,
		lists[0], lists[1], lists[2], lists[3], lists[4],
		session.TimingMetrics.StartupMs, session.UpdatedAt, session.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update session %s: %w", session.ID, err)
	}
	return requireRowAffected(res, "session", session.ID)
}

// DeleteSession removes a session. Observations cascade away; artifacts
// become legacy rows via ON DELETE SET NULL.
func (s *SQLiteStorage) DeleteSession(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete session %s: %w", id, err)
	}
	return requireRowAffected(res, "session", id)
}

// EndSession marks a session terminal. The WHERE clause makes the
// transition single-shot: an already-terminal session is reported as an
// error rather than silently re-stamped.
func (s *SQLiteStorage) EndSession(ctx context.Context, id string, endedAt time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE sessions SET ended_at = ?, updated_at = ?
		WHERE id = ? AND ended_at IS NULL
	`, endedAt, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to end session %s: %w", id, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check end session result: %w", err)
	}
	if rows == 0 {
		var exists int
		err := s.db.QueryRowContext(ctx, `SELECT 1 FROM sessions WHERE id = ?`, id).Scan(&exists)
		if err == sql.ErrNoRows {
			return fmt.Errorf("session not found: %s", id)
		}
		if err != nil {
			return fmt.Errorf("failed to check session %s: %w", id, err)
		}
		return fmt.Errorf("session already ended: %s", id)
	}
	return nil
}

// AddGovernanceOverhead adds to the cumulative governance overhead counter
// in place. The arithmetic lives in SQL so concurrent remediation passes
// never lose an increment.
func (s *SQLiteStorage) AddGovernanceOverhead(ctx context.Context, sessionID string, ms int64) error {
	if ms < 0 {
		return fmt.Errorf("governance overhead must be non-negative (got %d)", ms)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE sessions SET governance_overhead_ms = governance_overhead_ms + ?, updated_at = ?
		WHERE id = ?
	`, ms, time.Now(), sessionID)
	if err != nil {
		return fmt.Errorf("failed to add governance overhead to session %s: %w", sessionID, err)
	}
	return requireRowAffected(res, "session", sessionID)
}

// SetUserFeedback records the operator verdict inside the session outcome.
// Read-modify-write under an immediate transaction keeps the rest of the
// outcome object intact.
func (s *SQLiteStorage) SetUserFeedback(ctx context.Context, sessionID string, feedback types.Feedback) error {
	if !feedback.IsValid() {
		return fmt.Errorf("invalid user feedback: %s", feedback)
	}

	conn, finish, err := s.beginImmediate(ctx)
	if err != nil {
		return err
	}
	err = func() error {
		var raw string
		err := conn.QueryRowContext(ctx, `SELECT outcome FROM sessions WHERE id = ?`, sessionID).Scan(&raw)
		if err == sql.ErrNoRows {
			return fmt.Errorf("session not found: %s", sessionID)
		}
		if err != nil {
			return fmt.Errorf("failed to read outcome for session %s: %w", sessionID, err)
		}

		var outcome types.Outcome
		lenientUnmarshal(raw, &outcome)
		outcome.UserFeedback = feedback

		encoded, err := json.Marshal(outcome)
		if err != nil {
			return fmt.Errorf("failed to marshal outcome: %w", err)
		}
		_, err = conn.ExecContext(ctx, `UPDATE sessions SET outcome = ?, updated_at = ? WHERE id = ?`,
			string(encoded), time.Now(), sessionID)
		if err != nil {
			return fmt.Errorf("failed to update outcome for session %s: %w", sessionID, err)
		}
		return nil
	}()
	return finish(err)
}

// GetSessionStats returns aggregate session counts
func (s *SQLiteStorage) GetSessionStats(ctx context.Context) (*types.SessionStats, error) {
	stats := &types.SessionStats{}
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(ended_at) FROM sessions
	`).Scan(&stats.Total, &stats.Completed)
	if err != nil {
		return nil, fmt.Errorf("failed to get session stats: %w", err)
	}
	stats.Active = stats.Total - stats.Completed
	return stats, nil
}

// CapTerminalSessions deletes terminal sessions beyond the newest keep.
// Active sessions are never pruned.
func (s *SQLiteStorage) CapTerminalSessions(ctx context.Context, keep int) (int, error) {
	if keep < 0 {
		keep = 0
	}
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM sessions
		WHERE ended_at IS NOT NULL
		  AND id NOT IN (
			SELECT id FROM sessions
			WHERE ended_at IS NOT NULL
			ORDER BY ended_at DESC
			LIMIT ?
		  )
	`, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to cap terminal sessions: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count pruned sessions: %w", err)
	}
	return int(rows), nil
}

// encodeSessionColumns marshals the structured session fields for storage
func encodeSessionColumns(session *types.Session) (provider, classification, outcome string, lists [5]string, err error) {
	p, err := json.Marshal(session.AIProvider)
	if err != nil {
		return "", "", "", lists, fmt.Errorf("failed to marshal ai provider: %w", err)
	}
	c, err := json.Marshal(session.TaskClassification)
	if err != nil {
		return "", "", "", lists, fmt.Errorf("failed to marshal task classification: %w", err)
	}
	o, err := json.Marshal(session.Outcome)
	if err != nil {
		return "", "", "", lists, fmt.Errorf("failed to marshal outcome: %w", err)
	}

	for i, values := range [][]string{
		session.TasksCompleted, session.TasksPending, session.FilesModified,
		session.Decisions, session.ErrorsResolved,
	} {
		encoded, err := marshalStrings(values)
		if err != nil {
			return "", "", "", lists, err
		}
		lists[i] = encoded
	}
	return string(p), string(c), string(o), lists, nil
}

// rowScanner lets scanSession work for both QueryRow and Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanSession reads one session row. Structured sub-objects decode
// leniently: capture clients evolve ahead of this engine, and a malformed
// classification or outcome degrades to neutral values instead of making
// the whole row unreadable.
func scanSession(row rowScanner) (*types.Session, error) {
	var session types.Session
	var provider, classification, outcome string
	var lists [5]string
	var endedAt sql.NullTime

	err := row.Scan(
		&session.ID, &session.Branch, &session.Name, &session.Input, &session.Output,
		&provider, &classification, &outcome,
		&lists[0], &lists[1], &lists[2], &lists[3], &lists[4],
		&session.TimingMetrics.StartupMs, &session.TimingMetrics.GovernanceOverheadMs,
		&session.StartedAt, &endedAt, &session.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	lenientUnmarshal(provider, &session.AIProvider)
	lenientUnmarshal(classification, &session.TaskClassification)
	lenientUnmarshal(outcome, &session.Outcome)
	session.TasksCompleted = lenientStrings(lists[0])
	session.TasksPending = lenientStrings(lists[1])
	session.FilesModified = lenientStrings(lists[2])
	session.Decisions = lenientStrings(lists[3])
	session.ErrorsResolved = lenientStrings(lists[4])

	if endedAt.Valid {
		t := endedAt.Time
		session.EndedAt = &t
	}
	return &session, nil
}

// lenientUnmarshal decodes JSON into v, leaving v zero-valued on malformed
// input
func lenientUnmarshal(raw string, v interface{}) {
	if raw == "" || raw == "{}" {
		return
	}
	_ = json.Unmarshal([]byte(raw), v)
}

// lenientStrings decodes a JSON string list, dropping malformed input
func lenientStrings(raw string) []string {
	values, err := unmarshalStrings(raw)
	if err != nil {
		return nil
	}
	return values
}

// nullTime maps a nil time pointer to NULL
func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// requireRowAffected converts a zero-row update into a not-found error
func requireRowAffected(res sql.Result, entity, id string) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check %s update result: %w", entity, err)
	}
	if rows == 0 {
		return fmt.Errorf("%s not found: %s", entity, id)
	}
	return nil
}
