package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

// TestNewCreatesParentDirectories verifies New creates the data directory
// the way 'aidd init' relies on.
func TestNewCreatesParentDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deeper", "memory.db")

	store, err := New(path)
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}
	defer store.Close()

	if _, err := os.Stat(path); err != nil {
		t.Errorf("Expected database file at %s: %v", path, err)
	}
}

// TestReopenKeepsData verifies the schema setup is idempotent and data
// survives a close/reopen cycle.
func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memory.db")
	ctx := context.Background()

	store, err := New(path)
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}
	if _, err := store.IncrementCounter(ctx, "views_epoch"); err != nil {
		t.Fatalf("Failed to increment counter: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Failed to close storage: %v", err)
	}

	reopened, err := New(path)
	if err != nil {
		t.Fatalf("Failed to reopen storage: %v", err)
	}
	defer reopened.Close()

	value, err := reopened.GetCounter(ctx, "views_epoch")
	if err != nil {
		t.Fatalf("Failed to read counter: %v", err)
	}
	if value != 1 {
		t.Errorf("Expected counter to survive reopen with value 1, got %d", value)
	}
}

// TestForeignKeysEnabled verifies the pragma is applied; the session cascade
// rules depend on it.
func TestForeignKeysEnabled(t *testing.T) {
	store, err := New(":memory:")
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}
	defer store.Close()

	var fkEnabled int
	if err := store.db.QueryRow("PRAGMA foreign_keys").Scan(&fkEnabled); err != nil {
		t.Fatalf("Failed to check foreign keys: %v", err)
	}
	if fkEnabled != 1 {
		t.Errorf("Expected foreign keys to be enabled (1), got %d", fkEnabled)
	}
}

// TestJournalModeWAL verifies file databases run in WAL mode so capture
// clients can read while the engine writes.
func TestJournalModeWAL(t *testing.T) {
	store, err := New(filepath.Join(t.TempDir(), "memory.db"))
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}
	defer store.Close()

	var mode string
	if err := store.db.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatalf("Failed to check journal mode: %v", err)
	}
	if mode != "wal" {
		t.Errorf("Expected journal_mode wal, got %q", mode)
	}
}

func TestCounters(t *testing.T) {
	store, err := New(":memory:")
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}
	defer store.Close()
	ctx := context.Background()

	value, err := store.GetCounter(ctx, "sessions_since_analysis")
	if err != nil {
		t.Fatalf("GetCounter on unset key failed: %v", err)
	}
	if value != 0 {
		t.Errorf("Expected unset counter to read 0, got %d", value)
	}

	for want := int64(1); want <= 3; want++ {
		got, err := store.IncrementCounter(ctx, "sessions_since_analysis")
		if err != nil {
			t.Fatalf("IncrementCounter failed: %v", err)
		}
		if got != want {
			t.Errorf("Expected increment to return %d, got %d", want, got)
		}
	}

	if err := store.ResetCounter(ctx, "sessions_since_analysis"); err != nil {
		t.Fatalf("ResetCounter failed: %v", err)
	}
	value, err = store.GetCounter(ctx, "sessions_since_analysis")
	if err != nil {
		t.Fatalf("GetCounter after reset failed: %v", err)
	}
	if value != 0 {
		t.Errorf("Expected counter to read 0 after reset, got %d", value)
	}

	// Resetting a key that was never set is not an error.
	if err := store.ResetCounter(ctx, "never_touched"); err != nil {
		t.Errorf("ResetCounter on unset key failed: %v", err)
	}

	got, err := store.IncrementCounter(ctx, "sessions_since_analysis")
	if err != nil {
		t.Fatalf("IncrementCounter after reset failed: %v", err)
	}
	if got != 1 {
		t.Errorf("Expected counter to restart at 1 after reset, got %d", got)
	}
}

func TestCheckpoint(t *testing.T) {
	store, err := New(filepath.Join(t.TempDir(), "memory.db"))
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}
	defer store.Close()
	ctx := context.Background()

	if _, err := store.IncrementCounter(ctx, "views_epoch"); err != nil {
		t.Fatalf("Failed to write before checkpoint: %v", err)
	}

	if err := store.Checkpoint(ctx); err != nil {
		t.Fatalf("Checkpoint failed: %v", err)
	}
	// A checkpoint with nothing new to flush still succeeds.
	if err := store.Checkpoint(ctx); err != nil {
		t.Fatalf("Second checkpoint failed: %v", err)
	}
}

func TestMarshalStrings(t *testing.T) {
	encoded, err := marshalStrings(nil)
	if err != nil {
		t.Fatalf("marshalStrings(nil) failed: %v", err)
	}
	if encoded != "[]" {
		t.Errorf("Expected empty slice to encode as [], got %q", encoded)
	}

	encoded, err = marshalStrings([]string{"sess-1", "sess-2"})
	if err != nil {
		t.Fatalf("marshalStrings failed: %v", err)
	}
	decoded, err := unmarshalStrings(encoded)
	if err != nil {
		t.Fatalf("unmarshalStrings failed: %v", err)
	}
	if len(decoded) != 2 || decoded[0] != "sess-1" || decoded[1] != "sess-2" {
		t.Errorf("Round trip mismatch: %v", decoded)
	}

	decoded, err = unmarshalStrings("")
	if err != nil {
		t.Fatalf("unmarshalStrings(\"\") failed: %v", err)
	}
	if decoded != nil {
		t.Errorf("Expected empty column to decode as nil, got %v", decoded)
	}

	if _, err := unmarshalStrings("{not json"); err == nil {
		t.Error("Expected malformed column to error")
	}
}

func TestNullString(t *testing.T) {
	if ns := nullString(""); ns.Valid {
		t.Error("Expected empty string to map to NULL")
	}
	if ns := nullString("feat/login"); !ns.Valid || ns.String != "feat/login" {
		t.Errorf("Expected valid wrapper, got %+v", ns)
	}
}
