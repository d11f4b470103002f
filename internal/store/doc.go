// Package store provides durable storage for customers and journey steps.
//
// Two backends implement the Store interface:
//   - SQLiteStore: tables customers and journey_steps (mattn/go-sqlite3)
//   - BadgerStore: embedded key/value store with a timestamp index (badger/v4)
//
// Both pass the same contract tests.
//
// # Key Modes
//
// KeyLegacy keys steps on step_id alone and customers on customer_id alone.
// Re-ingesting a step under a new version overwrites the row seen by every
// version. KeyStrict keys on (step_id, version) and (customer_id, version),
// so versions never overwrite each other. The mode is recorded the first time
// a database is opened; reopening it with another mode fails.
//
// # Query Results
//
//   - StepsForCustomer orders by timestamp ASC, step_id ASC
//   - Empty results are empty slices, never nil
//
// # Database Configuration (SQLite)
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Store failures are returned as journey.ErrCodeStoreUnavailable errors and
// are not retried. The one exception is a Badger write conflict: the
// transaction is re-applied, up to a fixed limit, so the last writer wins.
package store
