package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/wjkennedy/cjm/internal/journey"
)

// Store persists customers and journey steps.
type Store interface {
	// UpsertCustomer inserts the customer if absent. An existing row,
	// including its version, is left untouched.
	UpsertCustomer(ctx context.Context, customerID, version string) error

	// UpsertStep inserts or fully replaces a step row. Optional fields that
	// are nil on step become NULL.
	UpsertStep(ctx context.Context, step journey.Step) error

	// StepsForCustomer returns the steps matching both customer and version,
	// ordered by timestamp ASC, step_id ASC.
	StepsForCustomer(ctx context.Context, customerID, version string) ([]journey.Step, error)

	// Customers returns every customer row ordered by customer_id, version.
	Customers(ctx context.Context) ([]journey.Customer, error)

	// CustomerIDs returns the distinct ids of customers owning at least one step.
	CustomerIDs(ctx context.Context) ([]string, error)

	// KeyMode reports how steps and customers are keyed.
	KeyMode() KeyMode

	Close() error
}

// KeyMode selects the primary key of persisted rows.
type KeyMode string

const (
	// KeyLegacy keys steps on step_id and customers on customer_id.
	KeyLegacy KeyMode = "legacy"

	// KeyStrict keys steps on (step_id, version) and customers on (customer_id, version).
	KeyStrict KeyMode = "strict"
)

// ParseKeyMode validates a key mode name. The empty string selects KeyLegacy.
func ParseKeyMode(s string) (KeyMode, error) {
	switch KeyMode(s) {
	case "", KeyLegacy:
		return KeyLegacy, nil
	case KeyStrict:
		return KeyStrict, nil
	default:
		return "", fmt.Errorf("invalid key mode %q: must be %q or %q", s, KeyLegacy, KeyStrict)
	}
}

// Backend names a storage engine.
type Backend string

const (
	BackendSQLite Backend = "sqlite"
	BackendBadger Backend = "badger"
)

// ParseBackend validates a backend name. The empty string selects BackendSQLite.
func ParseBackend(s string) (Backend, error) {
	switch Backend(s) {
	case "", BackendSQLite:
		return BackendSQLite, nil
	case BackendBadger:
		return BackendBadger, nil
	default:
		return "", fmt.Errorf("invalid backend %q: must be %q or %q", s, BackendSQLite, BackendBadger)
	}
}

// Options configures Open.
type Options struct {
	Backend Backend
	Path    string
	KeyMode KeyMode

	// Logger receives store diagnostics. Defaults to slog.Default().
	Logger *slog.Logger
}

// Open opens the backend named by opts.
func Open(opts Options) (Store, error) {
	mode, err := ParseKeyMode(string(opts.KeyMode))
	if err != nil {
		return nil, err
	}
	backend, err := ParseBackend(string(opts.Backend))
	if err != nil {
		return nil, err
	}

	switch backend {
	case BackendBadger:
		cfg := DefaultBadgerConfig()
		cfg.Path = opts.Path
		cfg.Logger = opts.Logger
		return OpenBadger(cfg, mode)
	default:
		return OpenSQLite(opts.Path, mode)
	}
}

// checkKeyMode compares the mode recorded in a database with the requested one.
func checkKeyMode(recorded string, requested KeyMode) error {
	if KeyMode(recorded) != requested {
		return fmt.Errorf("database was created with key mode %q, cannot open with %q", recorded, requested)
	}
	return nil
}

func emptyIfNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
