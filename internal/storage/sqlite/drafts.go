package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/DerianAndre/aidd.md-sub000/internal/types"
)

const draftColumns = `id, category, title, filename, content, confidence, source,
	evolution_candidate_id, session_id, artifact_type, status, created_at,
	updated_at, approved_at, rejected_reason`

// CreateDraft stores a new draft
func (s *SQLiteStorage) CreateDraft(ctx context.Context, draft *types.Draft) error {
	if err := draft.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	if draft.CreatedAt.IsZero() {
		draft.CreatedAt = now
	}
	draft.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO drafts (id, category, title, filename, content, confidence, source,
			evolution_candidate_id, session_id, artifact_type, status, created_at,
			updated_at, approved_at, rejected_reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		draft.ID, draft.Category, draft.Title, draft.Filename, draft.Content,
		draft.Confidence, draft.Source, draft.EvolutionCandidateID, draft.SessionID,
		draft.ArtifactType, draft.Status, draft.CreatedAt, draft.UpdatedAt,
		nullTime(draft.ApprovedAt), draft.RejectedReason,
	)
	if err != nil {
		return fmt.Errorf("failed to create draft %s: %w", draft.ID, err)
	}
	return nil
}

// GetDraft retrieves a draft by ID
func (s *SQLiteStorage) GetDraft(ctx context.Context, id string) (*types.Draft, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+draftColumns+` FROM drafts WHERE id = ?`, id)
	draft, err := scanDraft(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("draft not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get draft %s: %w", id, err)
	}
	return draft, nil
}

// ListDrafts retrieves drafts matching the given filter, newest first
func (s *SQLiteStorage) ListDrafts(ctx context.Context, filter types.DraftFilter) ([]*types.Draft, error) {
	query := `SELECT ` + draftColumns + ` FROM drafts WHERE 1=1`
	args := []interface{}{}

	if filter.Status != nil {
		query += " AND status = ?"
		args = append(args, *filter.Status)
	}
	if filter.Category != nil {
		query += " AND category = ?"
		args = append(args, *filter.Category)
	}
	if filter.Source != nil {
		query += " AND source = ?"
		args = append(args, *filter.Source)
	}

	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query drafts: %w", err)
	}
	defer rows.Close()

	var result []*types.Draft
	for rows.Next() {
		draft, err := scanDraft(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan draft: %w", err)
		}
		result = append(result, draft)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating draft rows: %w", err)
	}
	return result, nil
}

// UpdateDraft rewrites the mutable fields of a draft
func (s *SQLiteStorage) UpdateDraft(ctx context.Context, draft *types.Draft) error {
	if err := draft.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	draft.UpdatedAt = time.Now()
	res, err := s.db.ExecContext(ctx, `
		UPDATE drafts SET
			category = ?, title = ?, filename = ?, content = ?, confidence = ?,
			source = ?, evolution_candidate_id = ?, session_id = ?, artifact_type = ?,
			status = ?, updated_at = ?, approved_at = ?, rejected_reason = ?
		WHERE id = ?
	`,
		draft.Category, draft.Title, draft.Filename, draft.Content, draft.Confidence,
		draft.Source, draft.EvolutionCandidateID, draft.SessionID, draft.ArtifactType,
		draft.Status, draft.UpdatedAt, nullTime(draft.ApprovedAt), draft.RejectedReason,
		draft.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update draft %s: %w", draft.ID, err)
	}
	return requireRowAffected(res, "draft", draft.ID)
}

// DeleteDraft removes a draft
func (s *SQLiteStorage) DeleteDraft(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM drafts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete draft %s: %w", id, err)
	}
	return requireRowAffected(res, "draft", id)
}

// GetPendingDraftByTitle returns the pending draft with the exact title, or
// nil when none exists. The remediator's idempotency check rides on this
// lookup, so absence is a normal outcome rather than an error.
func (s *SQLiteStorage) GetPendingDraftByTitle(ctx context.Context, title string) (*types.Draft, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+draftColumns+` FROM drafts
		WHERE title = ? AND status = 'pending'
		ORDER BY created_at DESC
		LIMIT 1
	`, title)
	draft, err := scanDraft(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up pending draft %q: %w", title, err)
	}
	return draft, nil
}

// scanDraft reads one draft row
func scanDraft(row rowScanner) (*types.Draft, error) {
	var draft types.Draft
	var approvedAt sql.NullTime

	err := row.Scan(
		&draft.ID, &draft.Category, &draft.Title, &draft.Filename, &draft.Content,
		&draft.Confidence, &draft.Source, &draft.EvolutionCandidateID, &draft.SessionID,
		&draft.ArtifactType, &draft.Status, &draft.CreatedAt, &draft.UpdatedAt,
		&approvedAt, &draft.RejectedReason,
	)
	if err != nil {
		return nil, err
	}
	if approvedAt.Valid {
		t := approvedAt.Time
		draft.ApprovedAt = &t
	}
	return &draft, nil
}
