package testutil

import (
	"path/filepath"
	"testing"

	"github.com/wjkennedy/cjm/internal/journey"
	"github.com/wjkennedy/cjm/internal/store"
)

// EndToEndBatchJSON is the two-step C1 journey used across package tests.
const EndToEndBatchJSON = `{
  "version": "1.0",
  "customers": [
    {
      "customer_id": "C1",
      "journey": [
        {"step_id": "s1", "step_name": "Inquiry", "timestamp": "2024-01-01T00:00:00",
         "contact_method": "email", "lead_time": 24, "handoff_to": "s2"},
        {"step_id": "s2", "step_name": "Quote", "timestamp": "2024-01-02T00:00:00",
         "contact_method": "call", "handoff_to": null}
      ]
    }
  ]
}`

// EndToEndBatch returns EndToEndBatchJSON as a typed batch.
func EndToEndBatch() journey.Batch {
	return journey.Batch{
		Version: "1.0",
		Customers: []journey.CustomerInput{
			{
				CustomerID: "C1",
				Journey: []journey.StepInput{
					{
						StepID:        "s1",
						StepName:      "Inquiry",
						Timestamp:     "2024-01-01T00:00:00",
						ContactMethod: "email",
						LeadTime:      journey.Float(24),
						HandoffTo:     journey.String("s2"),
					},
					{
						StepID:        "s2",
						StepName:      "Quote",
						Timestamp:     "2024-01-02T00:00:00",
						ContactMethod: "call",
					},
				},
			},
		},
	}
}

// OpenStore opens a legacy-mode SQLite store in a temp directory and closes
// it when the test ends.
func OpenStore(t *testing.T) store.Store {
	t.Helper()
	return OpenStoreMode(t, store.KeyLegacy)
}

// OpenStoreMode is OpenStore with an explicit key mode.
func OpenStoreMode(t *testing.T, mode store.KeyMode) store.Store {
	t.Helper()
	s, err := store.OpenSQLite(filepath.Join(t.TempDir(), "test.db"), mode)
	if err != nil {
		t.Fatalf("OpenSQLite() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}
