package testutil

import "sync"

// DefaultRunID is returned by a FixedRunIDGenerator created without ids.
const DefaultRunID = "test-run-default"

// FixedRunIDGenerator returns predetermined ingest run ids for testing.
//
// Ids are returned in order. Once they are used up the last one repeats, so a
// test can ingest any number of batches and still compare results byte for
// byte.
//
// Thread-safety: FixedRunIDGenerator is safe for concurrent use via internal mutex.
type FixedRunIDGenerator struct {
	mu  sync.Mutex
	ids []string
	idx int
}

// NewFixedRunIDGenerator creates a generator that returns ids in order.
// With no ids, Generate() always returns DefaultRunID.
func NewFixedRunIDGenerator(ids ...string) *FixedRunIDGenerator {
	if len(ids) == 0 {
		ids = []string{DefaultRunID}
	}
	return &FixedRunIDGenerator{ids: ids}
}

// Generate returns the next predetermined id.
func (g *FixedRunIDGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	id := g.ids[g.idx]
	if g.idx < len(g.ids)-1 {
		g.idx++
	}
	return id
}
