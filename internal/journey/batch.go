package journey

// Batch is the ingestion document: one version tag over many customers.
//
// Field tags drive three decoders: encoding/json for uploads, yaml.v3 for
// YAML batch files, and go-playground/validator for required-field checks.
type Batch struct {
	Version   string          `json:"version" yaml:"version" validate:"required"`
	Customers []CustomerInput `json:"customers" yaml:"customers" validate:"required,dive"`
}

// CustomerInput is one customer entry of a Batch.
type CustomerInput struct {
	CustomerID string      `json:"customer_id" yaml:"customer_id" validate:"required"`
	Journey    []StepInput `json:"journey" yaml:"journey" validate:"dive"`
}

// StepInput is a journey step as it arrives, before stamping and normalisation.
type StepInput struct {
	StepID        string   `json:"step_id" yaml:"step_id" validate:"required"`
	StepName      string   `json:"step_name" yaml:"step_name" validate:"required"`
	Timestamp     string   `json:"timestamp" yaml:"timestamp" validate:"required"`
	ContactMethod string   `json:"contact_method" yaml:"contact_method" validate:"required"`
	LeadTime      *float64 `json:"lead_time" yaml:"lead_time"`
	HandoffTo     *string  `json:"handoff_to" yaml:"handoff_to"`
}

// StepCount returns the total number of steps across all customers.
func (b Batch) StepCount() int {
	n := 0
	for _, c := range b.Customers {
		n += len(c.Journey)
	}
	return n
}
