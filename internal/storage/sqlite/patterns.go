package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/DerianAndre/aidd.md-sub000/internal/types"
)

const patternColumns = `id, pattern, description, confidence, active, false_positive_count, created_at, updated_at`

// ModelPatternStat is one aggregate row of pattern sightings per model
type ModelPatternStat struct {
	PatternID   string
	PatternKey  string
	Description string
	ModelID     string
	Detections  int
	Sessions    int
}

// PatternRecurrenceStat is one aggregate row of pattern sightings across
// all models
type PatternRecurrenceStat struct {
	PatternID   string
	PatternKey  string
	Description string
	Confidence  float64
	Detections  int
	Sessions    int
}

// CreatePattern stores a new pattern
func (s *SQLiteStorage) CreatePattern(ctx context.Context, pattern *types.Pattern) error {
	if pattern.ID == "" {
		return fmt.Errorf("id is required")
	}
	if pattern.Pattern == "" {
		return fmt.Errorf("pattern key is required")
	}

	now := time.Now()
	if pattern.CreatedAt.IsZero() {
		pattern.CreatedAt = now
	}
	pattern.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO patterns (id, pattern, description, confidence, active,
			false_positive_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		pattern.ID, pattern.Pattern, pattern.Description, pattern.Confidence,
		pattern.Active, pattern.FalsePositiveCount, pattern.CreatedAt, pattern.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create pattern %s: %w", pattern.ID, err)
	}
	return nil
}

// GetPattern retrieves a pattern by ID
func (s *SQLiteStorage) GetPattern(ctx context.Context, id string) (*types.Pattern, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+patternColumns+` FROM patterns WHERE id = ?`, id)
	pattern, err := scanPattern(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("pattern not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pattern %s: %w", id, err)
	}
	return pattern, nil
}

// GetPatternByKey retrieves a pattern by its normalized key, or nil when
// none exists. Detection treats a fresh key as a new pattern, not an error.
func (s *SQLiteStorage) GetPatternByKey(ctx context.Context, key string) (*types.Pattern, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+patternColumns+` FROM patterns WHERE pattern = ?`, key)
	pattern, err := scanPattern(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up pattern %q: %w", key, err)
	}
	return pattern, nil
}

// ListPatterns retrieves patterns, optionally only active ones
func (s *SQLiteStorage) ListPatterns(ctx context.Context, activeOnly bool) ([]*types.Pattern, error) {
	query := `SELECT ` + patternColumns + ` FROM patterns`
	if activeOnly {
		query += ` WHERE active = 1`
	}
	query += ` ORDER BY confidence DESC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query patterns: %w", err)
	}
	defer rows.Close()

	var result []*types.Pattern
	for rows.Next() {
		pattern, err := scanPattern(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pattern: %w", err)
		}
		result = append(result, pattern)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating pattern rows: %w", err)
	}
	return result, nil
}

// UpdatePattern rewrites the mutable fields of a pattern
func (s *SQLiteStorage) UpdatePattern(ctx context.Context, pattern *types.Pattern) error {
	pattern.UpdatedAt = time.Now()
	res, err := s.db.ExecContext(ctx, `
		UPDATE patterns SET
			pattern = ?, description = ?, confidence = ?, active = ?,
			false_positive_count = ?, updated_at = ?
		WHERE id = ?
	`,
		pattern.Pattern, pattern.Description, pattern.Confidence, pattern.Active,
		pattern.FalsePositiveCount, pattern.UpdatedAt, pattern.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update pattern %s: %w", pattern.ID, err)
	}
	return requireRowAffected(res, "pattern", pattern.ID)
}

// RecordPatternDetection appends one pattern sighting
func (s *SQLiteStorage) RecordPatternDetection(ctx context.Context, det *types.PatternDetection) error {
	if det.PatternID == "" {
		return fmt.Errorf("pattern_id is required")
	}
	if det.SessionID == "" {
		return fmt.Errorf("session_id is required")
	}
	if det.DetectedAt.IsZero() {
		det.DetectedAt = time.Now()
	}

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO pattern_detections (pattern_id, session_id, model_id, detected_at)
		VALUES (?, ?, ?, ?)
		RETURNING id
	`, det.PatternID, det.SessionID, det.ModelID, det.DetectedAt).Scan(&det.ID)
	if err != nil {
		return fmt.Errorf("failed to record pattern detection for %s: %w", det.PatternID, err)
	}
	return nil
}

// ModelPatternRecurrences aggregates sightings of active patterns per
// (pattern, model), keeping rows with at least minDetections sightings
// across at least minSessions distinct sessions. Feeds the model-profile
// promotion pass.
func (s *SQLiteStorage) ModelPatternRecurrences(ctx context.Context, minDetections, minSessions int) ([]*ModelPatternStat, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.pattern, p.description, d.model_id,
		       COUNT(*) AS detections, COUNT(DISTINCT d.session_id) AS sessions
		FROM pattern_detections d
		JOIN patterns p ON p.id = d.pattern_id
		WHERE p.active = 1 AND d.model_id <> ''
		GROUP BY p.id, d.model_id
		HAVING COUNT(*) >= ? AND COUNT(DISTINCT d.session_id) >= ?
		ORDER BY detections DESC
	`, minDetections, minSessions)
	if err != nil {
		return nil, fmt.Errorf("failed to query model pattern recurrences: %w", err)
	}
	defer rows.Close()

	var result []*ModelPatternStat
	for rows.Next() {
		var stat ModelPatternStat
		err := rows.Scan(&stat.PatternID, &stat.PatternKey, &stat.Description,
			&stat.ModelID, &stat.Detections, &stat.Sessions)
		if err != nil {
			return nil, fmt.Errorf("failed to scan model pattern stat: %w", err)
		}
		result = append(result, &stat)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating model pattern stats: %w", err)
	}
	return result, nil
}

// PatternRecurrences aggregates sightings of active patterns per pattern,
// keeping rows seen in at least minSessions distinct sessions. Feeds the
// rule-elevation pass.
func (s *SQLiteStorage) PatternRecurrences(ctx context.Context, minSessions int) ([]*PatternRecurrenceStat, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.pattern, p.description, p.confidence,
		       COUNT(*) AS detections, COUNT(DISTINCT d.session_id) AS sessions
		FROM pattern_detections d
		JOIN patterns p ON p.id = d.pattern_id
		WHERE p.active = 1
		GROUP BY p.id
		HAVING COUNT(DISTINCT d.session_id) >= ?
		ORDER BY sessions DESC, detections DESC
	`, minSessions)
	if err != nil {
		return nil, fmt.Errorf("failed to query pattern recurrences: %w", err)
	}
	defer rows.Close()

	var result []*PatternRecurrenceStat
	for rows.Next() {
		var stat PatternRecurrenceStat
		err := rows.Scan(&stat.PatternID, &stat.PatternKey, &stat.Description,
			&stat.Confidence, &stat.Detections, &stat.Sessions)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pattern recurrence stat: %w", err)
		}
		result = append(result, &stat)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating pattern recurrence stats: %w", err)
	}
	return result, nil
}

// DeletePatternDetectionsBefore removes sightings older than the cutoff
func (s *SQLiteStorage) DeletePatternDetectionsBefore(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM pattern_detections WHERE detected_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old pattern detections: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted pattern detections: %w", err)
	}
	return int(rows), nil
}

// GetPatternStats returns aggregate pattern metrics
func (s *SQLiteStorage) GetPatternStats(ctx context.Context) (*types.PatternStats, error) {
	stats := &types.PatternStats{}
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(active), 0),
		       COALESCE(SUM(false_positive_count), 0),
		       (SELECT COUNT(*) FROM pattern_detections)
		FROM patterns
	`).Scan(&stats.Total, &stats.Active, &stats.FalsePositives, &stats.Detections)
	if err != nil {
		return nil, fmt.Errorf("failed to get pattern stats: %w", err)
	}
	return stats, nil
}

// scanPattern reads one pattern row
func scanPattern(row rowScanner) (*types.Pattern, error) {
	var pattern types.Pattern
	err := row.Scan(
		&pattern.ID, &pattern.Pattern, &pattern.Description, &pattern.Confidence,
		&pattern.Active, &pattern.FalsePositiveCount, &pattern.CreatedAt, &pattern.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &pattern, nil
}
