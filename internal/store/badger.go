package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"

	"github.com/dgraph-io/badger/v4"

	"github.com/wjkennedy/cjm/internal/journey"
)

// Key layout:
//
//	m/key_mode                              -> recorded KeyMode
//	c/<customer>[\x00<version>]             -> customer JSON (version suffix in strict mode)
//	s/<step>[\x00<version>]                 -> step JSON (version suffix in strict mode)
//	x/<customer>\x00<version>\x00<ts>\x00<step key> -> step key (timestamp index)
var (
	metaKeyMode    = []byte("m/key_mode")
	customerPrefix = []byte("c/")
	stepPrefix     = []byte("s/")
	indexPrefix    = []byte("x/")
)

const sep = "\x00"

// maxConflictRetries bounds retries of a transaction that lost a write-write
// race; the losing writer re-applies its upsert so the last commit wins.
const maxConflictRetries = 16

// BadgerConfig holds configuration for a BadgerDB-backed store.
type BadgerConfig struct {
	// Path is the directory for BadgerDB files.
	// Ignored when InMemory is true.
	Path string

	// InMemory enables in-memory mode (no disk persistence). Useful for testing.
	InMemory bool

	// SyncWrites makes every commit durable before it returns.
	SyncWrites bool

	// Logger receives BadgerDB's internal logging. If nil, it is disabled.
	Logger *slog.Logger
}

// DefaultBadgerConfig returns durable defaults for production use.
func DefaultBadgerConfig() BadgerConfig {
	return BadgerConfig{SyncWrites: true}
}

// InMemoryBadgerConfig returns configuration optimized for testing.
func InMemoryBadgerConfig() BadgerConfig {
	return BadgerConfig{InMemory: true}
}

// badgerLogger adapts slog.Logger to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// BadgerStore is the BadgerDB-backed Store.
type BadgerStore struct {
	db   *badger.DB
	mode KeyMode
}

var _ Store = (*BadgerStore)(nil)

// OpenBadger opens a BadgerDB store, creating the directory if needed.
func OpenBadger(cfg BadgerConfig, mode KeyMode) (*BadgerStore, error) {
	mode, err := ParseKeyMode(string(mode))
	if err != nil {
		return nil, err
	}
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("open badger: path is required for persistent database")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}

	opts = opts.WithSyncWrites(cfg.SyncWrites)
	opts = opts.WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}

	s := &BadgerStore{db: db, mode: mode}
	if err := s.recordKeyMode(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database.
func (s *BadgerStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// KeyMode reports how keys are built.
func (s *BadgerStore) KeyMode() KeyMode {
	return s.mode
}

func (s *BadgerStore) recordKeyMode() error {
	var recorded string
	err := s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(metaKeyMode)
		if errors.Is(err, badger.ErrKeyNotFound) {
			recorded = string(s.mode)
			return txn.Set(metaKeyMode, []byte(s.mode))
		}
		if err != nil {
			return err
		}
		val, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		recorded = string(val)
		return nil
	})
	if err != nil {
		return fmt.Errorf("record key mode: %w", err)
	}
	return checkKeyMode(recorded, s.mode)
}

// update runs fn in a read-write transaction, retrying on write conflicts.
func (s *BadgerStore) update(fn func(txn *badger.Txn) error) error {
	var err error
	for attempt := 0; attempt <= maxConflictRetries; attempt++ {
		err = s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return err
}

func (s *BadgerStore) customerKey(customerID, version string) []byte {
	key := string(customerPrefix) + customerID
	if s.mode == KeyStrict {
		key += sep + version
	}
	return []byte(key)
}

func (s *BadgerStore) stepKey(stepID, version string) []byte {
	key := string(stepPrefix) + stepID
	if s.mode == KeyStrict {
		key += sep + version
	}
	return []byte(key)
}

func indexKey(step journey.Step, stepKey []byte) []byte {
	return []byte(string(indexPrefix) + step.CustomerID + sep + step.Version + sep +
		journey.FormatTimestamp(step.Timestamp) + sep + string(stepKey))
}

func indexScanPrefix(customerID, version string) []byte {
	return []byte(string(indexPrefix) + customerID + sep + version + sep)
}

// UpsertCustomer inserts a customer if none exists for its key.
func (s *BadgerStore) UpsertCustomer(ctx context.Context, customerID, version string) error {
	if customerID == "" {
		return fmt.Errorf("upsert customer: empty customer id")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	key := s.customerKey(customerID, version)
	val, err := json.Marshal(journey.Customer{ID: customerID, Version: version})
	if err != nil {
		return fmt.Errorf("upsert customer: %w", err)
	}

	err = s.update(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		if err == nil {
			return nil
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.Set(key, val)
	})
	return journey.StoreUnavailable("upsert customer", err)
}

// UpsertStep inserts or fully replaces a step and moves its index entry.
func (s *BadgerStore) UpsertStep(ctx context.Context, step journey.Step) error {
	if step.ID == "" {
		return fmt.Errorf("upsert step: empty step id")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	key := s.stepKey(step.ID, step.Version)
	val, err := json.Marshal(step)
	if err != nil {
		return fmt.Errorf("upsert step: %w", err)
	}

	err = s.update(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		switch {
		case err == nil:
			old, err := decodeStep(item)
			if err != nil {
				return err
			}
			if err := txn.Delete(indexKey(old, key)); err != nil {
				return err
			}
		case !errors.Is(err, badger.ErrKeyNotFound):
			return err
		}

		if err := txn.Set(key, val); err != nil {
			return err
		}
		return txn.Set(indexKey(step, key), key)
	})
	return journey.StoreUnavailable("upsert step", err)
}

// StepsForCustomer walks the timestamp index for (customer, version).
// Index keys sort by timestamp then step key, matching the SQLite ordering.
func (s *BadgerStore) StepsForCustomer(ctx context.Context, customerID, version string) ([]journey.Step, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prefix := indexScanPrefix(customerID, version)
	var steps []journey.Step
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			stepKey, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			item, err := txn.Get(stepKey)
			if err != nil {
				return fmt.Errorf("index entry %q: %w", stepKey, err)
			}
			step, err := decodeStep(item)
			if err != nil {
				return err
			}
			steps = append(steps, step)
		}
		return nil
	})
	if err != nil {
		return nil, journey.StoreUnavailable("query steps", err)
	}
	return emptyIfNil(steps), nil
}

// Customers returns every customer ordered by id, version.
func (s *BadgerStore) Customers(ctx context.Context) ([]journey.Customer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var customers []journey.Customer
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = customerPrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(customerPrefix); it.ValidForPrefix(customerPrefix); it.Next() {
			val, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			var c journey.Customer
			if err := json.Unmarshal(val, &c); err != nil {
				return fmt.Errorf("decode customer: %w", err)
			}
			customers = append(customers, c)
		}
		return nil
	})
	if err != nil {
		return nil, journey.StoreUnavailable("query customers", err)
	}

	sort.Slice(customers, func(i, j int) bool {
		if customers[i].ID != customers[j].ID {
			return customers[i].ID < customers[j].ID
		}
		return customers[i].Version < customers[j].Version
	})
	return emptyIfNil(customers), nil
}

// CustomerIDs returns distinct customer ids found in the step index.
func (s *BadgerStore) CustomerIDs(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var ids []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = indexPrefix
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(indexPrefix); it.ValidForPrefix(indexPrefix); it.Next() {
			rest := bytes.TrimPrefix(it.Item().Key(), indexPrefix)
			end := bytes.IndexByte(rest, 0)
			if end < 0 {
				continue
			}
			id := string(rest[:end])
			if len(ids) == 0 || ids[len(ids)-1] != id {
				ids = append(ids, id)
			}
		}
		return nil
	})
	if err != nil {
		return nil, journey.StoreUnavailable("query customer ids", err)
	}
	return emptyIfNil(ids), nil
}

func decodeStep(item *badger.Item) (journey.Step, error) {
	val, err := item.ValueCopy(nil)
	if err != nil {
		return journey.Step{}, err
	}
	var step journey.Step
	if err := json.Unmarshal(val, &step); err != nil {
		return journey.Step{}, fmt.Errorf("decode step %q: %w", item.Key(), err)
	}
	return step, nil
}
