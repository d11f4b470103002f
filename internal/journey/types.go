package journey

import "time"

// Customer is one customer snapshot, identified by (ID, Version).
type Customer struct {
	ID      string `json:"customer_id"`
	Version string `json:"version"`
}

// Step is one persisted contact event in a customer's journey.
type Step struct {
	ID            string    `json:"step_id"`
	CustomerID    string    `json:"customer_id"`
	Name          string    `json:"step_name"`
	Timestamp     time.Time `json:"timestamp"`
	ContactMethod string    `json:"contact_method"`
	LeadTime      *float64  `json:"lead_time"`  // duration to the next step, nil when unknown
	HandoffTo     *string   `json:"handoff_to"` // next step id, nil when the chain ends here
	Version       string    `json:"version"`
}

// HasHandoff reports whether the step hands off to another step.
func (s Step) HasHandoff() bool {
	return s.HandoffTo != nil && *s.HandoffTo != ""
}

// TimestampLayout is the fixed-width UTC layout used wherever timestamps are
// persisted as text. Fixed width keeps lexical and chronological order equal.
const TimestampLayout = "2006-01-02T15:04:05.000000000Z"

// FormatTimestamp renders t in TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ParseStoredTimestamp parses a value written by FormatTimestamp.
func ParseStoredTimestamp(s string) (time.Time, error) {
	return time.Parse(TimestampLayout, s)
}

// Float returns a pointer to v. Convenience for optional fields.
func Float(v float64) *float64 { return &v }

// String returns a pointer to v. Convenience for optional fields.
func String(v string) *string { return &v }
