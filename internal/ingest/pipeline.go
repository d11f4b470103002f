package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/wjkennedy/cjm/internal/journey"
	"github.com/wjkennedy/cjm/internal/metrics"
	"github.com/wjkennedy/cjm/internal/store"
)

// batchValidate checks the required-field tags on journey.Batch.
// Field names in errors use the JSON names of the ingestion document.
var batchValidate = newBatchValidator()

func newBatchValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Result summarises one Ingest call.
type Result struct {
	RunID     string `json:"run_id"`
	Version   string `json:"version"`
	Customers int    `json:"customers"`
	Steps     int    `json:"steps"`
}

// Pipeline validates batches and writes them to a store.
type Pipeline struct {
	store  store.Store
	ids    RunIDGenerator
	logger *slog.Logger
}

// New creates a pipeline writing to st. A nil ids defaults to UUIDv7Generator
// and a nil logger to slog.Default().
func New(st store.Store, ids RunIDGenerator, logger *slog.Logger) *Pipeline {
	if ids == nil {
		ids = UUIDv7Generator{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{store: st, ids: ids, logger: logger}
}

// Ingest validates batch and upserts it under batch.Version.
//
// For each customer in input order the customer row is upserted, then each of
// its steps, stamped with the customer id and version. Returns a
// journey.ErrCodeMalformedBatch error before touching the store when a
// required field is missing or a timestamp cannot be parsed. Store failures
// are returned as-is; the Result then counts what was written before the
// failure.
func (p *Pipeline) Ingest(ctx context.Context, batch journey.Batch) (Result, error) {
	start := time.Now()
	res := Result{RunID: p.ids.Generate()}
	logger := p.logger.With("run_id", res.RunID)

	version, customers, err := validateBatch(batch)
	if err != nil {
		metrics.ObserveIngest(metrics.ResultMalformed, 0, time.Since(start))
		logger.Warn("rejected malformed batch", "error", err)
		return res, err
	}
	res.Version = version
	logger = logger.With("version", version)
	logger.Debug("ingesting batch", "customers", len(customers), "steps", batch.StepCount())

	for _, c := range customers {
		if err := p.store.UpsertCustomer(ctx, c.id, version); err != nil {
			return res, p.fail(logger, res, start, fmt.Errorf("ingest customer %s: %w", c.id, err))
		}
		res.Customers++

		for _, step := range c.steps {
			if err := p.store.UpsertStep(ctx, step); err != nil {
				return res, p.fail(logger, res, start, fmt.Errorf("ingest step %s of customer %s: %w", step.ID, c.id, err))
			}
			res.Steps++
		}
	}

	metrics.ObserveIngest(metrics.ResultOK, res.Steps, time.Since(start))
	logger.Info("batch ingested", "customers", res.Customers, "steps", res.Steps)
	return res, nil
}

func (p *Pipeline) fail(logger *slog.Logger, res Result, start time.Time, err error) error {
	metrics.ObserveIngest(metrics.ResultError, res.Steps, time.Since(start))
	logger.Error("batch ingest failed", "customers", res.Customers, "steps", res.Steps, "error", err)
	return err
}

// validateBatch applies the struct tags and then normalises every step.
func validateBatch(batch journey.Batch) (string, []normalizedCustomer, error) {
	if err := batchValidate.Struct(batch); err != nil {
		return "", nil, malformedFromValidation(err)
	}
	return normalizeBatch(batch)
}

// malformedFromValidation reports the first failing field.
func malformedFromValidation(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		e := journey.NewMalformedBatch("", "invalid batch")
		e.Err = err
		return e
	}
	fe := verrs[0]
	field := fe.Namespace()
	if i := strings.IndexByte(field, '.'); i >= 0 {
		field = field[i+1:] // drop the "Batch." root
	}
	return journey.NewMalformedBatch(field, fmt.Sprintf("%s is %s", fe.Field(), fe.Tag()))
}
