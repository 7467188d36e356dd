// Package sqlite implements the engine storage contract on SQLite. The
// database lives inside the project's .aidd directory and is shared with the
// capture clients, so the schema stays additive and writes stay short.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// SQLiteStorage implements the Storage interface using SQLite
type SQLiteStorage struct {
	db   *sql.DB
	path string
}

// New creates a new SQLite storage backend
func New(path string) (*SQLiteStorage, error) {
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// An in-memory database exists per connection; without this clamp every
	// new pool connection would see an empty schema.
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// WAL for concurrent readers alongside the capture clients; foreign keys
	// for the session cascade rules; busy_timeout so short write bursts from
	// another process wait instead of failing.
	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db, path: path}, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// Checkpoint flushes the WAL into the main database file. Invoked by the
// prune pass so the file handed to backup tooling is self-contained.
func (s *SQLiteStorage) Checkpoint(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return fmt.Errorf("failed to checkpoint database: %w", err)
	}
	return nil
}

// IncrementCounter atomically bumps a persisted meta counter and returns the
// new value. The UPSERT keeps the increment atomic with respect to other
// writers, so cadence counters never lose events across processes.
func (s *SQLiteStorage) IncrementCounter(ctx context.Context, key string) (int64, error) {
	var value int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO engine_meta (key, value) VALUES (?, 1)
		ON CONFLICT(key) DO UPDATE SET value = value + 1
		RETURNING value
	`, key).Scan(&value)
	if err != nil {
		return 0, fmt.Errorf("failed to increment counter %s: %w", key, err)
	}
	return value, nil
}

// GetCounter returns the current value of a meta counter (0 when unset)
func (s *SQLiteStorage) GetCounter(ctx context.Context, key string) (int64, error) {
	var value int64
	err := s.db.QueryRowContext(ctx, `SELECT value FROM engine_meta WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read counter %s: %w", key, err)
	}
	return value, nil
}

// ResetCounter sets a meta counter back to zero
func (s *SQLiteStorage) ResetCounter(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO engine_meta (key, value) VALUES (?, 0)
		ON CONFLICT(key) DO UPDATE SET value = 0
	`, key)
	if err != nil {
		return fmt.Errorf("failed to reset counter %s: %w", key, err)
	}
	return nil
}

// beginImmediate starts a write transaction that takes the reserved lock up
// front. database/sql has no transaction-mode parameter, so the statement
// runs raw on a dedicated connection; the returned finish func rolls back
// unless commit succeeded.
func (s *SQLiteStorage) beginImmediate(ctx context.Context) (*sql.Conn, func(err error) error, error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to acquire connection: %w", err)
	}
	if _, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE"); err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("failed to begin immediate transaction: %w", err)
	}

	finish := func(opErr error) error {
		defer conn.Close()
		if opErr != nil {
			// Roll back on a background context so cleanup survives a
			// canceled caller context.
			_, _ = conn.ExecContext(context.Background(), "ROLLBACK")
			return opErr
		}
		if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
			_, _ = conn.ExecContext(context.Background(), "ROLLBACK")
			return fmt.Errorf("failed to commit transaction: %w", err)
		}
		return nil
	}
	return conn, finish, nil
}

// marshalStrings encodes a string slice as its JSON column representation
func marshalStrings(values []string) (string, error) {
	if len(values) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(values)
	if err != nil {
		return "", fmt.Errorf("failed to marshal string list: %w", err)
	}
	return string(data), nil
}

// unmarshalStrings decodes a JSON column into a string slice
func unmarshalStrings(raw string) ([]string, error) {
	if raw == "" || raw == "[]" {
		return nil, nil
	}
	var values []string
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil, fmt.Errorf("failed to unmarshal string list: %w", err)
	}
	return values, nil
}

// nullString maps empty strings to NULL for nullable columns
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
