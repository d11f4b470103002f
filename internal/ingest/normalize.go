package ingest

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/wjkennedy/cjm/internal/journey"
)

// timestampLayouts are tried in order. Layouts without a zone parse as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseTimestamp parses an ISO-8601 timestamp as it appears in batches.
// The result is in UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}

// cleanString trims surrounding whitespace and applies NFC normalisation so
// visually identical ids compare equal.
func cleanString(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// normalizeStep stamps in with its owning customer and version and converts
// it to a journey.Step. field locates the step for error messages.
func normalizeStep(in journey.StepInput, customerID, version, field string) (journey.Step, error) {
	ts, err := ParseTimestamp(in.Timestamp)
	if err != nil {
		e := journey.NewMalformedBatch(field+".timestamp", "invalid timestamp")
		e.Err = err
		return journey.Step{}, e
	}

	step := journey.Step{
		ID:            cleanString(in.StepID),
		CustomerID:    customerID,
		Name:          cleanString(in.StepName),
		Timestamp:     ts,
		ContactMethod: cleanString(in.ContactMethod),
		Version:       version,
	}
	if in.LeadTime != nil {
		step.LeadTime = journey.Float(*in.LeadTime)
	}
	if in.HandoffTo != nil {
		if target := cleanString(*in.HandoffTo); target != "" {
			step.HandoffTo = journey.String(target)
		}
	}
	return step, nil
}

// normalizeBatch converts every step in b, failing on the first malformed one.
// The returned slice is parallel to b.Customers.
func normalizeBatch(b journey.Batch) (string, []normalizedCustomer, error) {
	version := cleanString(b.Version)
	if version == "" {
		return "", nil, journey.NewMalformedBatch("version", "version is required")
	}

	out := make([]normalizedCustomer, 0, len(b.Customers))
	for i, c := range b.Customers {
		field := fmt.Sprintf("customers[%d]", i)
		customerID := cleanString(c.CustomerID)
		if customerID == "" {
			return "", nil, journey.NewMalformedBatch(field+".customer_id", "customer_id is required")
		}

		nc := normalizedCustomer{id: customerID, steps: make([]journey.Step, 0, len(c.Journey))}
		for j, in := range c.Journey {
			stepField := fmt.Sprintf("%s.journey[%d]", field, j)
			step, err := normalizeStep(in, customerID, version, stepField)
			if err != nil {
				return "", nil, err
			}
			for _, f := range []struct{ name, value string }{
				{"step_id", step.ID},
				{"step_name", step.Name},
				{"contact_method", step.ContactMethod},
			} {
				if f.value == "" {
					return "", nil, journey.NewMalformedBatch(stepField+"."+f.name, f.name+" is required")
				}
			}
			nc.steps = append(nc.steps, step)
		}
		out = append(out, nc)
	}
	return version, out, nil
}

type normalizedCustomer struct {
	id    string
	steps []journey.Step
}
