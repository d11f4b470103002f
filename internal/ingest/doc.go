// Package ingest turns journey batch documents into persisted state.
//
// Decode checks a raw JSON or YAML document against an embedded CUE schema
// and unmarshals it into a journey.Batch. Pipeline.Ingest validates the
// batch, normalises every step and upserts customers and steps into a
// store.Store under the batch's version tag.
//
// Processing order is input order: customers in sequence, and within a
// customer its journey steps in sequence. Nothing is reordered or
// deduplicated beyond the store's replace-by-key semantics, so ingesting the
// same batch twice leaves the same state as ingesting it once.
//
// A batch is validated completely before the first upsert: malformed input
// never reaches the store. A store failure part-way through leaves earlier
// upserts committed; a batch is a sequence of independent single-row writes,
// not a transaction.
package ingest
