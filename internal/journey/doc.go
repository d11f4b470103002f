// Package journey provides the domain types shared by every cjm package.
//
// This package contains type definitions and the error taxonomy only. The
// store, ingestion, query, graph and layout packages all import journey;
// journey imports nothing internal.
//
// Key design constraints:
//   - Optional step fields (LeadTime, HandoffTo) are pointers; nil means absent
//   - Timestamps are held as UTC time.Time once ingested
//   - All JSON tags use snake_case, matching the ingestion document
package journey
