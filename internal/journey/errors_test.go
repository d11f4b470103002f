package journey

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_Message(t *testing.T) {
	e := NewMalformedBatch("customers[0].customer_id", "customer_id is required")
	assert.Equal(t, "MALFORMED_BATCH: customer_id is required (field=customers[0].customer_id)", e.Error())

	e = NewMalformedBatch("", "invalid json document")
	e.Err = errors.New("unexpected EOF")
	assert.Equal(t, "MALFORMED_BATCH: invalid json document: unexpected EOF", e.Error())
}

func TestError_Classification(t *testing.T) {
	cause := errors.New("database is locked")
	err := fmt.Errorf("ingest step s1: %w", StoreUnavailable("upsert step", cause))

	assert.True(t, IsStoreUnavailable(err))
	assert.False(t, IsMalformedBatch(err))
	assert.ErrorIs(t, err, cause)

	wrapped := fmt.Errorf("decode: %w", NewMalformedBatch("version", "version is required"))
	assert.True(t, IsMalformedBatch(wrapped))
	assert.False(t, IsStoreUnavailable(wrapped))

	assert.False(t, IsMalformedBatch(nil))
	assert.False(t, IsStoreUnavailable(errors.New("plain")))
}

func TestStoreUnavailable_NilPassesThrough(t *testing.T) {
	assert.NoError(t, StoreUnavailable("read", nil))
}

func TestTimestampLayout_SortsLexically(t *testing.T) {
	earlier := time.Date(2024, 1, 1, 0, 0, 0, 5, time.UTC)
	later := time.Date(2024, 1, 1, 0, 0, 0, 40, time.UTC)
	zoned := time.Date(2024, 1, 1, 2, 0, 0, 0, time.FixedZone("EET", 2*3600))

	a, b := FormatTimestamp(earlier), FormatTimestamp(later)
	assert.Less(t, a, b)
	assert.Len(t, a, len(b))
	assert.Equal(t, "2024-01-01T00:00:00.000000000Z", FormatTimestamp(zoned))

	back, err := ParseStoredTimestamp(a)
	require.NoError(t, err)
	assert.True(t, earlier.Equal(back))
}

func TestStep_HasHandoff(t *testing.T) {
	assert.False(t, Step{}.HasHandoff())
	assert.False(t, Step{HandoffTo: String("")}.HasHandoff())
	assert.True(t, Step{HandoffTo: String("s2")}.HasHandoff())
}

func TestBatch_StepCount(t *testing.T) {
	b := Batch{Customers: []CustomerInput{
		{Journey: make([]StepInput, 2)},
		{},
		{Journey: make([]StepInput, 3)},
	}}
	assert.Equal(t, 5, b.StepCount())
}
