package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/wjkennedy/cjm/internal/journey"
)

// UpsertCustomer inserts a customer row if none exists for its key.
//
// In KeyLegacy mode the key is customer_id alone, so the first version ever
// ingested for a customer is the one kept. In KeyStrict mode the key is
// (customer_id, version). Duplicates are silently ignored in both modes.
func (s *SQLiteStore) UpsertCustomer(ctx context.Context, customerID, version string) error {
	if customerID == "" {
		return fmt.Errorf("upsert customer: empty customer id")
	}

	var err error
	if s.mode == KeyStrict {
		_, err = s.db.ExecContext(ctx, `
			INSERT INTO customers (customer_id, version)
			VALUES (?, ?)
			ON CONFLICT(customer_id, version) DO NOTHING
		`, customerID, version)
	} else {
		_, err = s.db.ExecContext(ctx, `
			INSERT INTO customers (customer_id, version)
			SELECT ?, ?
			WHERE NOT EXISTS (SELECT 1 FROM customers WHERE customer_id = ?)
		`, customerID, version, customerID)
	}
	return journey.StoreUnavailable("upsert customer", err)
}

// UpsertStep inserts or fully replaces a journey step.
//
// Every column is overwritten from step, including customer_id, version and
// the nullable lead_time/handoff_to. In KeyLegacy mode rows of the same
// step_id under other versions are removed in the same transaction, so a
// step_id names exactly one row across all versions.
func (s *SQLiteStore) UpsertStep(ctx context.Context, step journey.Step) error {
	if step.ID == "" {
		return fmt.Errorf("upsert step: empty step id")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return journey.StoreUnavailable("upsert step: begin tx", err)
	}
	defer tx.Rollback() // No-op if committed

	if s.mode == KeyLegacy {
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM journey_steps WHERE step_id = ? AND version <> ?
		`, step.ID, step.Version); err != nil {
			return journey.StoreUnavailable("upsert step: replace other versions", err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO journey_steps
		(step_id, customer_id, step_name, timestamp, contact_method, lead_time, handoff_to, version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(step_id, version) DO UPDATE SET
			customer_id    = excluded.customer_id,
			step_name      = excluded.step_name,
			timestamp      = excluded.timestamp,
			contact_method = excluded.contact_method,
			lead_time      = excluded.lead_time,
			handoff_to     = excluded.handoff_to
	`,
		step.ID,
		step.CustomerID,
		step.Name,
		journey.FormatTimestamp(step.Timestamp),
		step.ContactMethod,
		nullFloat(step.LeadTime),
		nullString(step.HandoffTo),
		step.Version,
	)
	if err != nil {
		return journey.StoreUnavailable("upsert step", err)
	}

	if err := tx.Commit(); err != nil {
		return journey.StoreUnavailable("upsert step: commit", err)
	}
	return nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}
