package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wjkennedy/cjm/internal/journey"
)

// Every backend must satisfy the same contract.

func TestContract_UpsertCustomer_ExistingRowWins(t *testing.T) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			s := b.open(t, KeyLegacy)

			require.NoError(t, s.UpsertCustomer(ctx, "C1", "1.0"))
			require.NoError(t, s.UpsertCustomer(ctx, "C1", "1.0"))
			require.NoError(t, s.UpsertCustomer(ctx, "C1", "2.0"))

			customers, err := s.Customers(ctx)
			require.NoError(t, err)
			assert.Equal(t, []journey.Customer{{ID: "C1", Version: "1.0"}}, customers)
		})
	}
}

func TestContract_UpsertCustomer_StrictKeepsEachVersion(t *testing.T) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			s := b.open(t, KeyStrict)

			require.NoError(t, s.UpsertCustomer(ctx, "C1", "2.0"))
			require.NoError(t, s.UpsertCustomer(ctx, "C1", "1.0"))
			require.NoError(t, s.UpsertCustomer(ctx, "C1", "1.0"))

			customers, err := s.Customers(ctx)
			require.NoError(t, err)
			assert.Equal(t, []journey.Customer{
				{ID: "C1", Version: "1.0"},
				{ID: "C1", Version: "2.0"},
			}, customers)
		})
	}
}

func TestContract_UpsertCustomer_EmptyID(t *testing.T) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			s := b.open(t, KeyLegacy)
			assert.Error(t, s.UpsertCustomer(context.Background(), "", "1.0"))
		})
	}
}

func TestContract_UpsertStep_RoundTrip(t *testing.T) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			s := b.open(t, KeyLegacy)

			step := createTestStep("s1", "C1", "1.0", 1)
			step.LeadTime = journey.Float(2.5)
			step.HandoffTo = journey.String("s2")
			require.NoError(t, s.UpsertStep(ctx, step))

			steps, err := s.StepsForCustomer(ctx, "C1", "1.0")
			require.NoError(t, err)
			require.Len(t, steps, 1)
			assert.Equal(t, step, steps[0])
		})
	}
}

func TestContract_UpsertStep_FullyReplaces(t *testing.T) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			s := b.open(t, KeyLegacy)

			first := createTestStep("s1", "C1", "1.0", 1)
			first.LeadTime = journey.Float(3)
			first.HandoffTo = journey.String("s2")
			require.NoError(t, s.UpsertStep(ctx, first))

			// Optional fields omitted in the new record become absent.
			second := createTestStep("s1", "C1", "1.0", 5)
			second.Name = "Renamed"
			second.ContactMethod = "call"
			require.NoError(t, s.UpsertStep(ctx, second))

			steps, err := s.StepsForCustomer(ctx, "C1", "1.0")
			require.NoError(t, err)
			require.Len(t, steps, 1)
			assert.Equal(t, "Renamed", steps[0].Name)
			assert.Equal(t, "call", steps[0].ContactMethod)
			assert.Nil(t, steps[0].LeadTime)
			assert.Nil(t, steps[0].HandoffTo)
			assert.True(t, steps[0].Timestamp.Equal(second.Timestamp))
		})
	}
}

func TestContract_UpsertStep_MovesBetweenCustomers(t *testing.T) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			s := b.open(t, KeyLegacy)

			require.NoError(t, s.UpsertStep(ctx, createTestStep("s1", "C1", "1.0", 1)))
			require.NoError(t, s.UpsertStep(ctx, createTestStep("s1", "C2", "1.0", 1)))

			c1, err := s.StepsForCustomer(ctx, "C1", "1.0")
			require.NoError(t, err)
			assert.Empty(t, c1)

			c2, err := s.StepsForCustomer(ctx, "C2", "1.0")
			require.NoError(t, err)
			require.Len(t, c2, 1)
			assert.Equal(t, "C2", c2[0].CustomerID)
		})
	}
}

func TestContract_UpsertStep_EmptyID(t *testing.T) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			s := b.open(t, KeyLegacy)
			assert.Error(t, s.UpsertStep(context.Background(), createTestStep("", "C1", "1.0", 1)))
		})
	}
}

func TestContract_StepsForCustomer_OrderedByTimestamp(t *testing.T) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			s := b.open(t, KeyLegacy)

			// Insert out of chronological order; b and a tie on day 2.
			for _, st := range []journey.Step{
				createTestStep("c", "C1", "1.0", 9),
				createTestStep("b", "C1", "1.0", 2),
				createTestStep("z", "C1", "1.0", 1),
				createTestStep("a", "C1", "1.0", 2),
			} {
				require.NoError(t, s.UpsertStep(ctx, st))
			}

			steps, err := s.StepsForCustomer(ctx, "C1", "1.0")
			require.NoError(t, err)
			assert.Equal(t, []string{"z", "a", "b", "c"}, stepIDs(steps))
		})
	}
}

func TestContract_StepsForCustomer_SubSecondOrdering(t *testing.T) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			s := b.open(t, KeyLegacy)

			late := createTestStep("late", "C1", "1.0", 1)
			late.Timestamp = late.Timestamp.Add(time.Second)
			early := createTestStep("early", "C1", "1.0", 1)
			early.Timestamp = early.Timestamp.Add(500 * time.Millisecond)

			require.NoError(t, s.UpsertStep(ctx, late))
			require.NoError(t, s.UpsertStep(ctx, early))

			steps, err := s.StepsForCustomer(ctx, "C1", "1.0")
			require.NoError(t, err)
			assert.Equal(t, []string{"early", "late"}, stepIDs(steps))
		})
	}
}

func TestContract_StepsForCustomer_EmptyNotNil(t *testing.T) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			s := b.open(t, KeyLegacy)

			steps, err := s.StepsForCustomer(context.Background(), "nobody", "1.0")
			require.NoError(t, err)
			assert.NotNil(t, steps)
			assert.Empty(t, steps)
		})
	}
}

func TestContract_StepsForCustomer_FiltersVersion(t *testing.T) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			s := b.open(t, KeyLegacy)

			require.NoError(t, s.UpsertStep(ctx, createTestStep("s1", "C1", "1.0", 1)))
			require.NoError(t, s.UpsertStep(ctx, createTestStep("s2", "C1", "2.0", 2)))

			v1, err := s.StepsForCustomer(ctx, "C1", "1.0")
			require.NoError(t, err)
			assert.Equal(t, []string{"s1"}, stepIDs(v1))

			v2, err := s.StepsForCustomer(ctx, "C1", "2.0")
			require.NoError(t, err)
			assert.Equal(t, []string{"s2"}, stepIDs(v2))
		})
	}
}

// In legacy mode a step_id names one row across all versions: re-ingesting it
// under a new version takes it away from the old version's snapshot.
func TestContract_Legacy_CrossVersionOverwrite(t *testing.T) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			s := b.open(t, KeyLegacy)

			require.NoError(t, s.UpsertStep(ctx, createTestStep("s1", "C1", "1.0", 1)))
			require.NoError(t, s.UpsertStep(ctx, createTestStep("s2", "C1", "1.0", 2)))

			moved := createTestStep("s1", "C1", "2.0", 1)
			moved.Name = "Inquiry v2"
			require.NoError(t, s.UpsertStep(ctx, moved))

			v1, err := s.StepsForCustomer(ctx, "C1", "1.0")
			require.NoError(t, err)
			assert.Equal(t, []string{"s2"}, stepIDs(v1))

			v2, err := s.StepsForCustomer(ctx, "C1", "2.0")
			require.NoError(t, err)
			require.Len(t, v2, 1)
			assert.Equal(t, "Inquiry v2", v2[0].Name)
		})
	}
}

func TestContract_Strict_VersionsAreIndependent(t *testing.T) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			s := b.open(t, KeyStrict)

			require.NoError(t, s.UpsertStep(ctx, createTestStep("s1", "C1", "1.0", 1)))
			moved := createTestStep("s1", "C1", "2.0", 1)
			moved.Name = "Inquiry v2"
			require.NoError(t, s.UpsertStep(ctx, moved))

			v1, err := s.StepsForCustomer(ctx, "C1", "1.0")
			require.NoError(t, err)
			require.Len(t, v1, 1)
			assert.Equal(t, "step s1", v1[0].Name)

			v2, err := s.StepsForCustomer(ctx, "C1", "2.0")
			require.NoError(t, err)
			require.Len(t, v2, 1)
			assert.Equal(t, "Inquiry v2", v2[0].Name)
		})
	}
}

func TestContract_CustomerIDs(t *testing.T) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			s := b.open(t, KeyLegacy)

			ids, err := s.CustomerIDs(ctx)
			require.NoError(t, err)
			assert.NotNil(t, ids)
			assert.Empty(t, ids)

			require.NoError(t, s.UpsertCustomer(ctx, "no-steps", "1.0"))
			require.NoError(t, s.UpsertStep(ctx, createTestStep("s1", "C2", "1.0", 1)))
			require.NoError(t, s.UpsertStep(ctx, createTestStep("s2", "C1", "1.0", 1)))
			require.NoError(t, s.UpsertStep(ctx, createTestStep("s3", "C1", "2.0", 1)))
			require.NoError(t, s.UpsertStep(ctx, createTestStep("s4", "C10", "1.0", 1)))

			ids, err = s.CustomerIDs(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"C1", "C10", "C2"}, ids)
		})
	}
}

func TestContract_ConcurrentUpsertsSameStep(t *testing.T) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			s := b.open(t, KeyLegacy)

			var wg sync.WaitGroup
			errs := make(chan error, 8)
			for i := 0; i < 8; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					step := createTestStep("s1", "C1", "1.0", 1)
					step.Name = fmt.Sprintf("writer-%d", i)
					errs <- s.UpsertStep(ctx, step)
				}(i)
			}
			wg.Wait()
			close(errs)
			for err := range errs {
				require.NoError(t, err)
			}

			// Last writer wins: exactly one row survives.
			steps, err := s.StepsForCustomer(ctx, "C1", "1.0")
			require.NoError(t, err)
			require.Len(t, steps, 1)
			assert.Contains(t, steps[0].Name, "writer-")
		})
	}
}

func stepIDs(steps []journey.Step) []string {
	ids := make([]string, len(steps))
	for i, s := range steps {
		ids[i] = s.ID
	}
	return ids
}
