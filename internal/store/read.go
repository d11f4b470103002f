package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/wjkennedy/cjm/internal/journey"
)

// StepsForCustomer returns all steps for a customer under one version.
// Results are ordered deterministically: ORDER BY timestamp ASC, step_id ASC.
//
// Returns an empty slice (not nil) if no rows match.
func (s *SQLiteStore) StepsForCustomer(ctx context.Context, customerID, version string) ([]journey.Step, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT step_id, customer_id, step_name, timestamp, contact_method, lead_time, handoff_to, version
		FROM journey_steps
		WHERE customer_id = ? AND version = ?
		ORDER BY timestamp ASC, step_id COLLATE BINARY ASC
	`, customerID, version)
	if err != nil {
		return nil, journey.StoreUnavailable("query steps", err)
	}
	defer rows.Close()

	var steps []journey.Step
	for rows.Next() {
		step, err := scanStep(rows)
		if err != nil {
			return nil, err
		}
		steps = append(steps, step)
	}

	if err := rows.Err(); err != nil {
		return nil, journey.StoreUnavailable("iterate steps", err)
	}

	return emptyIfNil(steps), nil
}

// Customers returns every customer row ordered by customer_id, version.
func (s *SQLiteStore) Customers(ctx context.Context) ([]journey.Customer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT customer_id, version
		FROM customers
		ORDER BY customer_id COLLATE BINARY ASC, version COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, journey.StoreUnavailable("query customers", err)
	}
	defer rows.Close()

	var customers []journey.Customer
	for rows.Next() {
		var c journey.Customer
		if err := rows.Scan(&c.ID, &c.Version); err != nil {
			return nil, journey.StoreUnavailable("scan customer", err)
		}
		customers = append(customers, c)
	}

	if err := rows.Err(); err != nil {
		return nil, journey.StoreUnavailable("iterate customers", err)
	}

	return emptyIfNil(customers), nil
}

// CustomerIDs returns the distinct customer ids that own at least one step.
func (s *SQLiteStore) CustomerIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT customer_id
		FROM journey_steps
		ORDER BY customer_id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, journey.StoreUnavailable("query customer ids", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, journey.StoreUnavailable("scan customer id", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, journey.StoreUnavailable("iterate customer ids", err)
	}

	return emptyIfNil(ids), nil
}

// scanStep scans a row into a journey.Step.
func scanStep(rows *sql.Rows) (journey.Step, error) {
	var step journey.Step
	var ts string
	var leadTime sql.NullFloat64
	var handoffTo sql.NullString

	if err := rows.Scan(
		&step.ID, &step.CustomerID, &step.Name, &ts, &step.ContactMethod,
		&leadTime, &handoffTo, &step.Version,
	); err != nil {
		return journey.Step{}, journey.StoreUnavailable("scan step", err)
	}

	parsed, err := journey.ParseStoredTimestamp(ts)
	if err != nil {
		return journey.Step{}, fmt.Errorf("scan step %s: parse timestamp %q: %w", step.ID, ts, err)
	}
	step.Timestamp = parsed

	if leadTime.Valid {
		step.LeadTime = journey.Float(leadTime.Float64)
	}
	if handoffTo.Valid {
		step.HandoffTo = journey.String(handoffTo.String)
	}

	return step, nil
}
