package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/wjkennedy/cjm/internal/journey"
)

// createTestStore creates a new SQLite store in a temp directory.
func createTestStore(t *testing.T, mode KeyMode) *SQLiteStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := OpenSQLite(path, mode)
	if err != nil {
		t.Fatalf("OpenSQLite() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestBadgerStore creates a new in-memory Badger store.
func createTestBadgerStore(t *testing.T, mode KeyMode) *BadgerStore {
	t.Helper()
	s, err := OpenBadger(InMemoryBadgerConfig(), mode)
	if err != nil {
		t.Fatalf("OpenBadger() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// backends lists every Store implementation for contract tests.
var backends = []struct {
	name string
	open func(t *testing.T, mode KeyMode) Store
}{
	{"sqlite", func(t *testing.T, mode KeyMode) Store { return createTestStore(t, mode) }},
	{"badger", func(t *testing.T, mode KeyMode) Store { return createTestBadgerStore(t, mode) }},
}

// createTestStep creates a step with minimal required fields.
func createTestStep(id, customerID, version string, day int) journey.Step {
	return journey.Step{
		ID:            id,
		CustomerID:    customerID,
		Name:          "step " + id,
		Timestamp:     time.Date(2024, 1, day, 0, 0, 0, 0, time.UTC),
		ContactMethod: "email",
		Version:       version,
	}
}
