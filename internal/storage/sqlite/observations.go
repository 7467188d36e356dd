package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/DerianAndre/aidd.md-sub000/internal/types"
)

const observationColumns = `id, session_id, type, title, narrative, facts, concepts,
	files_read, files_modified, discovery_tokens, created_at`

// CreateObservation stores a new observation
func (s *SQLiteStorage) CreateObservation(ctx context.Context, obs *types.Observation) error {
	if err := obs.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	if obs.CreatedAt.IsZero() {
		obs.CreatedAt = time.Now()
	}

	concepts, err := marshalStrings(obs.Concepts)
	if err != nil {
		return err
	}
	filesRead, err := marshalStrings(obs.FilesRead)
	if err != nil {
		return err
	}
	filesModified, err := marshalStrings(obs.FilesModified)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO observations (id, session_id, type, title, narrative, facts,
			concepts, files_read, files_modified, discovery_tokens, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		obs.ID, obs.SessionID, obs.Type, obs.Title, obs.Narrative, obs.Facts,
		concepts, filesRead, filesModified, obs.DiscoveryTokens, obs.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create observation %s: %w", obs.ID, err)
	}
	return nil
}

// GetObservation retrieves an observation by ID
func (s *SQLiteStorage) GetObservation(ctx context.Context, id string) (*types.Observation, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+observationColumns+` FROM observations WHERE id = ?`, id)
	obs, err := scanObservation(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("observation not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get observation %s: %w", id, err)
	}
	return obs, nil
}

// GetSessionObservations retrieves all observations for a session in
// capture order
func (s *SQLiteStorage) GetSessionObservations(ctx context.Context, sessionID string) ([]*types.Observation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+observationColumns+` FROM observations
		WHERE session_id = ?
		ORDER BY created_at ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query observations for session %s: %w", sessionID, err)
	}
	defer rows.Close()
	return collectObservations(rows)
}

// UpdateObservation rewrites an observation's content fields. The session
// association and capture timestamp are immutable.
func (s *SQLiteStorage) UpdateObservation(ctx context.Context, obs *types.Observation) error {
	if err := obs.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	concepts, err := marshalStrings(obs.Concepts)
	if err != nil {
		return err
	}
	filesRead, err := marshalStrings(obs.FilesRead)
	if err != nil {
		return err
	}
	filesModified, err := marshalStrings(obs.FilesModified)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE observations SET
			type = ?, title = ?, narrative = ?, facts = ?,
			concepts = ?, files_read = ?, files_modified = ?, discovery_tokens = ?
		WHERE id = ?
	`,
		obs.Type, obs.Title, obs.Narrative, obs.Facts,
		concepts, filesRead, filesModified, obs.DiscoveryTokens, obs.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update observation %s: %w", obs.ID, err)
	}
	return requireRowAffected(res, "observation", obs.ID)
}

// SearchObservations finds observations whose title or narrative contains
// the query, newest first
func (s *SQLiteStorage) SearchObservations(ctx context.Context, query string, limit int) ([]*types.Observation, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+observationColumns+` FROM observations
		WHERE title LIKE '%' || ? || '%' OR narrative LIKE '%' || ? || '%'
		ORDER BY created_at DESC
		LIMIT ?
	`, query, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search observations: %w", err)
	}
	defer rows.Close()
	return collectObservations(rows)
}

// DeleteObservation removes an observation
func (s *SQLiteStorage) DeleteObservation(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM observations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete observation %s: %w", id, err)
	}
	return requireRowAffected(res, "observation", id)
}

// CapObservations deletes observations beyond the newest keep
func (s *SQLiteStorage) CapObservations(ctx context.Context, keep int) (int, error) {
	if keep < 0 {
		keep = 0
	}
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM observations
		WHERE id NOT IN (
			SELECT id FROM observations
			ORDER BY created_at DESC
			LIMIT ?
		)
	`, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to cap observations: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count pruned observations: %w", err)
	}
	return int(rows), nil
}

// collectObservations scans all rows into observations
func collectObservations(rows *sql.Rows) ([]*types.Observation, error) {
	var result []*types.Observation
	for rows.Next() {
		obs, err := scanObservation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan observation: %w", err)
		}
		result = append(result, obs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating observation rows: %w", err)
	}
	return result, nil
}

// scanObservation reads one observation row
func scanObservation(row rowScanner) (*types.Observation, error) {
	var obs types.Observation
	var concepts, filesRead, filesModified string

	err := row.Scan(
		&obs.ID, &obs.SessionID, &obs.Type, &obs.Title, &obs.Narrative, &obs.Facts,
		&concepts, &filesRead, &filesModified, &obs.DiscoveryTokens, &obs.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	obs.Concepts = lenientStrings(concepts)
	obs.FilesRead = lenientStrings(filesRead)
	obs.FilesModified = lenientStrings(filesModified)
	return &obs, nil
}
