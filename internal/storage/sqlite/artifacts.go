package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/DerianAndre/aidd.md-sub000/internal/types"
)

const artifactColumns = `id, session_id, type, status, feature, title, description, content, created_at, updated_at`

// CreateArtifact stores a new artifact
func (s *SQLiteStorage) CreateArtifact(ctx context.Context, artifact *types.Artifact) error {
	if err := artifact.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	if artifact.CreatedAt.IsZero() {
		artifact.CreatedAt = now
	}
	artifact.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO artifacts (id, session_id, type, status, feature, title, description, content, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		artifact.ID, nullString(artifact.SessionID), artifact.Type, artifact.Status,
		artifact.Feature, artifact.Title, artifact.Description, artifact.Content,
		artifact.CreatedAt, artifact.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create artifact %s: %w", artifact.ID, err)
	}
	return nil
}

// GetArtifact retrieves an artifact by ID
func (s *SQLiteStorage) GetArtifact(ctx context.Context, id string) (*types.Artifact, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+artifactColumns+` FROM artifacts WHERE id = ?`, id)
	artifact, err := scanArtifact(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("artifact not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get artifact %s: %w", id, err)
	}
	return artifact, nil
}

// ListArtifacts retrieves artifacts matching the given filter, newest first
func (s *SQLiteStorage) ListArtifacts(ctx context.Context, filter types.ArtifactFilter) ([]*types.Artifact, error) {
	query := `SELECT ` + artifactColumns + ` FROM artifacts WHERE 1=1`
	args := []interface{}{}

	if filter.Type != nil {
		query += " AND type = ?"
		args = append(args, *filter.Type)
	}
	if filter.Status != nil {
		query += " AND status = ?"
		args = append(args, *filter.Status)
	}
	if filter.Feature != nil {
		query += " AND LOWER(feature) = LOWER(?)"
		args = append(args, *filter.Feature)
	}

	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query artifacts: %w", err)
	}
	defer rows.Close()
	return collectArtifacts(rows)
}

// UpdateArtifact rewrites the mutable fields of an artifact
func (s *SQLiteStorage) UpdateArtifact(ctx context.Context, artifact *types.Artifact) error {
	if err := artifact.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	artifact.UpdatedAt = time.Now()
	res, err := s.db.ExecContext(ctx, `
		UPDATE artifacts SET
			session_id = ?, type = ?, status = ?, feature = ?, title = ?,
			description = ?, content = ?, updated_at = ?
		WHERE id = ?
	`,
		nullString(artifact.SessionID), artifact.Type, artifact.Status, artifact.Feature,
		artifact.Title, artifact.Description, artifact.Content, artifact.UpdatedAt, artifact.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update artifact %s: %w", artifact.ID, err)
	}
	return requireRowAffected(res, "artifact", artifact.ID)
}

// DeleteArtifact removes an artifact
func (s *SQLiteStorage) DeleteArtifact(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM artifacts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete artifact %s: %w", id, err)
	}
	return requireRowAffected(res, "artifact", id)
}

// GetSessionArtifacts returns the artifacts associated with a session.
// Association is the explicit session id, or for legacy rows without one,
// a case-insensitive feature/branch match or the session id appearing
// inside the title. The fallback is load-bearing for pre-capture data and
// for artifacts orphaned by session pruning.
func (s *SQLiteStorage) GetSessionArtifacts(ctx context.Context, session *types.Session) ([]types.Artifact, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+artifactColumns+` FROM artifacts
		WHERE session_id = ?
		   OR (session_id IS NULL AND (
				(feature <> '' AND LOWER(feature) = LOWER(?))
				OR instr(title, ?) > 0
		   ))
		ORDER BY created_at ASC
	`, session.ID, session.Branch, session.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to query artifacts for session %s: %w", session.ID, err)
	}
	defer rows.Close()

	ptrs, err := collectArtifacts(rows)
	if err != nil {
		return nil, err
	}
	result := make([]types.Artifact, 0, len(ptrs))
	for _, a := range ptrs {
		result = append(result, *a)
	}
	return result, nil
}

// collectArtifacts scans all rows into artifacts
func collectArtifacts(rows *sql.Rows) ([]*types.Artifact, error) {
	var result []*types.Artifact
	for rows.Next() {
		artifact, err := scanArtifact(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan artifact: %w", err)
		}
		result = append(result, artifact)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating artifact rows: %w", err)
	}
	return result, nil
}

// scanArtifact reads one artifact row
func scanArtifact(row rowScanner) (*types.Artifact, error) {
	var artifact types.Artifact
	var sessionID sql.NullString

	err := row.Scan(
		&artifact.ID, &sessionID, &artifact.Type, &artifact.Status, &artifact.Feature,
		&artifact.Title, &artifact.Description, &artifact.Content,
		&artifact.CreatedAt, &artifact.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	artifact.SessionID = sessionID.String
	return &artifact, nil
}
