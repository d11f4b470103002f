package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wjkennedy/cjm/internal/journey"
	"github.com/wjkennedy/cjm/internal/store"
	"github.com/wjkennedy/cjm/internal/testutil"
)

func newTestPipeline(t *testing.T, st store.Store) *Pipeline {
	t.Helper()
	return New(st, testutil.NewFixedRunIDGenerator("run-1"), nil)
}

func TestIngest_EndToEndBatch(t *testing.T) {
	ctx := context.Background()
	st := testutil.OpenStore(t)
	p := newTestPipeline(t, st)

	res, err := p.Ingest(ctx, testutil.EndToEndBatch())
	require.NoError(t, err)
	assert.Equal(t, Result{RunID: "run-1", Version: "1.0", Customers: 1, Steps: 2}, res)

	customers, err := st.Customers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []journey.Customer{{ID: "C1", Version: "1.0"}}, customers)

	steps, err := st.StepsForCustomer(ctx, "C1", "1.0")
	require.NoError(t, err)
	require.Len(t, steps, 2)

	assert.Equal(t, journey.Step{
		ID:            "s1",
		CustomerID:    "C1",
		Name:          "Inquiry",
		Timestamp:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		ContactMethod: "email",
		LeadTime:      journey.Float(24),
		HandoffTo:     journey.String("s2"),
		Version:       "1.0",
	}, steps[0])
	assert.Equal(t, "s2", steps[1].ID)
	assert.Nil(t, steps[1].HandoffTo)
	assert.Nil(t, steps[1].LeadTime)
}

func TestIngest_Idempotent(t *testing.T) {
	ctx := context.Background()
	once := testutil.OpenStore(t)
	twice := testutil.OpenStore(t)

	_, err := newTestPipeline(t, once).Ingest(ctx, testutil.EndToEndBatch())
	require.NoError(t, err)

	p := newTestPipeline(t, twice)
	for i := 0; i < 2; i++ {
		_, err := p.Ingest(ctx, testutil.EndToEndBatch())
		require.NoError(t, err)
	}

	for _, check := range []func(store.Store) (any, error){
		func(s store.Store) (any, error) { return s.Customers(ctx) },
		func(s store.Store) (any, error) { return s.CustomerIDs(ctx) },
		func(s store.Store) (any, error) { return s.StepsForCustomer(ctx, "C1", "1.0") },
	} {
		want, err := check(once)
		require.NoError(t, err)
		got, err := check(twice)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

// Re-ingesting s1 under 2.0 in legacy mode moves the single s1 row to 2.0:
// the 2.0 journey sees the new name, the 1.0 journey keeps its other steps
// but no longer contains s1.
func TestIngest_LegacyReingestAcrossVersions(t *testing.T) {
	ctx := context.Background()
	st := testutil.OpenStore(t)
	p := New(st, testutil.NewFixedRunIDGenerator("run-1", "run-2"), nil)

	_, err := p.Ingest(ctx, testutil.EndToEndBatch())
	require.NoError(t, err)

	_, err = p.Ingest(ctx, journey.Batch{
		Version: "2.0",
		Customers: []journey.CustomerInput{{
			CustomerID: "C1",
			Journey: []journey.StepInput{{
				StepID:        "s1",
				StepName:      "First Contact",
				Timestamp:     "2024-01-01T00:00:00",
				ContactMethod: "email",
			}},
		}},
	})
	require.NoError(t, err)

	v2, err := st.StepsForCustomer(ctx, "C1", "2.0")
	require.NoError(t, err)
	require.Len(t, v2, 1)
	assert.Equal(t, "First Contact", v2[0].Name)

	v1, err := st.StepsForCustomer(ctx, "C1", "1.0")
	require.NoError(t, err)
	require.Len(t, v1, 1)
	assert.Equal(t, "s2", v1[0].ID)
	assert.Equal(t, "Quote", v1[0].Name)

	// The customer row keeps the first version it was ingested under.
	customers, err := st.Customers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []journey.Customer{{ID: "C1", Version: "1.0"}}, customers)
}

func TestIngest_StrictReingestAcrossVersions(t *testing.T) {
	ctx := context.Background()
	st := testutil.OpenStoreMode(t, store.KeyStrict)
	p := New(st, testutil.NewFixedRunIDGenerator("run-1", "run-2"), nil)

	_, err := p.Ingest(ctx, testutil.EndToEndBatch())
	require.NoError(t, err)

	renamed := testutil.EndToEndBatch()
	renamed.Version = "2.0"
	renamed.Customers[0].Journey[0].StepName = "First Contact"
	_, err = p.Ingest(ctx, renamed)
	require.NoError(t, err)

	v1, err := st.StepsForCustomer(ctx, "C1", "1.0")
	require.NoError(t, err)
	require.Len(t, v1, 2)
	assert.Equal(t, "Inquiry", v1[0].Name)

	v2, err := st.StepsForCustomer(ctx, "C1", "2.0")
	require.NoError(t, err)
	require.Len(t, v2, 2)
	assert.Equal(t, "First Contact", v2[0].Name)
}

func TestIngest_MalformedBatch(t *testing.T) {
	valid := testutil.EndToEndBatch

	tests := []struct {
		name   string
		mutate func(b *journey.Batch)
		field  string
	}{
		{"missing version", func(b *journey.Batch) { b.Version = "" }, "version"},
		{"blank version", func(b *journey.Batch) { b.Version = "  " }, "version"},
		{"missing customers", func(b *journey.Batch) { b.Customers = nil }, "customers"},
		{"missing customer id", func(b *journey.Batch) { b.Customers[0].CustomerID = "" }, "customers[0].customer_id"},
		{"missing step id", func(b *journey.Batch) { b.Customers[0].Journey[1].StepID = "" }, "customers[0].journey[1].step_id"},
		{"missing step name", func(b *journey.Batch) { b.Customers[0].Journey[0].StepName = "" }, "customers[0].journey[0].step_name"},
		{"missing timestamp", func(b *journey.Batch) { b.Customers[0].Journey[0].Timestamp = "" }, "customers[0].journey[0].timestamp"},
		{"missing contact method", func(b *journey.Batch) { b.Customers[0].Journey[0].ContactMethod = "" }, "customers[0].journey[0].contact_method"},
		{"blank contact method", func(b *journey.Batch) { b.Customers[0].Journey[0].ContactMethod = "\t" }, "customers[0].journey[0].contact_method"},
		{"bad timestamp", func(b *journey.Batch) { b.Customers[0].Journey[1].Timestamp = "yesterday" }, "customers[0].journey[1].timestamp"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			st := testutil.OpenStore(t)

			batch := valid()
			tt.mutate(&batch)

			_, err := newTestPipeline(t, st).Ingest(ctx, batch)
			require.Error(t, err)
			assert.True(t, journey.IsMalformedBatch(err), "got %v", err)

			var je *journey.Error
			require.True(t, errors.As(err, &je))
			assert.Equal(t, tt.field, je.Field)

			// Validation happens before any upsert.
			customers, err := st.Customers(ctx)
			require.NoError(t, err)
			assert.Empty(t, customers)
		})
	}
}

func TestIngest_EmptyCustomersIsValid(t *testing.T) {
	st := testutil.OpenStore(t)

	res, err := newTestPipeline(t, st).Ingest(context.Background(), journey.Batch{
		Version:   "1.0",
		Customers: []journey.CustomerInput{},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Customers)
	assert.Equal(t, 0, res.Steps)
}

func TestIngest_CustomerWithoutJourney(t *testing.T) {
	ctx := context.Background()
	st := testutil.OpenStore(t)

	_, err := newTestPipeline(t, st).Ingest(ctx, journey.Batch{
		Version:   "1.0",
		Customers: []journey.CustomerInput{{CustomerID: "C9"}},
	})
	require.NoError(t, err)

	customers, err := st.Customers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []journey.Customer{{ID: "C9", Version: "1.0"}}, customers)
}

func TestIngest_Normalizes(t *testing.T) {
	ctx := context.Background()
	st := testutil.OpenStore(t)

	_, err := newTestPipeline(t, st).Ingest(ctx, journey.Batch{
		Version: " 1.0 ",
		Customers: []journey.CustomerInput{{
			CustomerID: " C1",
			Journey: []journey.StepInput{{
				StepID:        "s1 ",
				StepName:      "Cafe\u0301",
				Timestamp:     "2024-01-01T02:00:00+02:00",
				ContactMethod: "chat",
				HandoffTo:     journey.String(""),
			}},
		}},
	})
	require.NoError(t, err)

	steps, err := st.StepsForCustomer(ctx, "C1", "1.0")
	require.NoError(t, err)
	require.Len(t, steps, 1)
	assert.Equal(t, "s1", steps[0].ID)
	assert.Equal(t, "Caf\u00e9", steps[0].Name)
	assert.True(t, steps[0].Timestamp.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
	assert.Nil(t, steps[0].HandoffTo, "empty handoff_to is absent")
}

func TestIngest_InputOrderLastStepWins(t *testing.T) {
	ctx := context.Background()
	st := testutil.OpenStore(t)

	batch := testutil.EndToEndBatch()
	dup := batch.Customers[0].Journey[0]
	dup.StepName = "Inquiry (revised)"
	batch.Customers[0].Journey = append(batch.Customers[0].Journey, dup)

	res, err := newTestPipeline(t, st).Ingest(ctx, batch)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Steps)

	steps, err := st.StepsForCustomer(ctx, "C1", "1.0")
	require.NoError(t, err)
	require.Len(t, steps, 2)
	assert.Equal(t, "Inquiry (revised)", steps[0].Name)
}

// failingStore fails every step upsert after the first n.
type failingStore struct {
	store.Store
	n int
}

func (f *failingStore) UpsertStep(ctx context.Context, step journey.Step) error {
	if f.n == 0 {
		return journey.StoreUnavailable("upsert step", errors.New("disk full"))
	}
	f.n--
	return f.Store.UpsertStep(ctx, step)
}

func TestIngest_StoreFailureKeepsEarlierUpserts(t *testing.T) {
	ctx := context.Background()
	st := testutil.OpenStore(t)

	res, err := newTestPipeline(t, &failingStore{Store: st, n: 1}).Ingest(ctx, testutil.EndToEndBatch())
	require.Error(t, err)
	assert.True(t, journey.IsStoreUnavailable(err))
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, 1, res.Steps)

	steps, err := st.StepsForCustomer(ctx, "C1", "1.0")
	require.NoError(t, err)
	require.Len(t, steps, 1)
	assert.Equal(t, "s1", steps[0].ID)
}

func TestParseTimestamp(t *testing.T) {
	want := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	tests := []struct {
		in   string
		want time.Time
	}{
		{"2024-01-02T03:04:05", want},
		{"2024-01-02T03:04:05Z", want},
		{"2024-01-02T05:04:05+02:00", want},
		{"2024-01-02 03:04:05", want},
		{"2024-01-02T03:04:05.250", want.Add(250 * time.Millisecond)},
		{"2024-01-02", time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTimestamp(tt.in)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %v", got)
			assert.Equal(t, time.UTC, got.Location())
		})
	}

	_, err := ParseTimestamp("01/02/2024")
	assert.Error(t, err)
}

func TestUUIDv7Generator(t *testing.T) {
	g := UUIDv7Generator{}
	a, b := g.Generate(), g.Generate()
	assert.Len(t, a, 36)
	assert.NotEqual(t, a, b)
}
