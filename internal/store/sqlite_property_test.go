package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"bracket-trader/internal/models"
)

// Property: whatever sequence of transition calls is thrown at an intent, the
// stored record never violates the lifecycle invariants:
//   - PENDING and CANCELLED-from-PENDING records carry no broker order ids
//   - EXECUTED and EXITED records carry both ids
//   - a terminal status never changes again
func TestProperty_LifecycleInvariants(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "property.db")
	s, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer s.Close()

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())
	properties := gopter.NewProperties(parameters)

	// Each op is one transition attempt; errors are expected and ignored,
	// only the resulting record matters.
	const (
		opExecute = iota
		opCancel
		opExit
		opCount
	)

	properties.Property("Transition sequences preserve lifecycle invariants", prop.ForAll(
		func(ops []int, qty int, price float64) bool {
			ctx := context.Background()
			id, err := s.CreateIntent(ctx, &models.Intent{
				Instrument:   "NSE_EQ|PROPTEST",
				Quantity:     qty,
				TriggerPrice: price,
				LimitPrice:   price + 1,
				StopLoss:     price - 10,
			})
			if err != nil {
				t.Logf("CreateIntent failed: %v", err)
				return false
			}

			var lastTerminal models.IntentStatus
			for i, op := range ops {
				switch op % opCount {
				case opExecute:
					_ = s.RecordExecution(ctx, id, "E1", "S1")
				case opCancel:
					_ = s.MarkCancelled(ctx, id)
				case opExit:
					_ = s.MarkExited(ctx, id)
				}

				got, err := s.GetIntent(ctx, id)
				if err != nil {
					t.Logf("GetIntent failed after op %d: %v", i, err)
					return false
				}

				hasIDs := got.EntryOrderID != "" && got.SLOrderID != ""
				noIDs := got.EntryOrderID == "" && got.SLOrderID == ""
				switch got.Status {
				case models.StatusPending, models.StatusCancelled:
					if !noIDs {
						t.Logf("%s record carries order ids: %+v", got.Status, got)
						return false
					}
				case models.StatusExecuted, models.StatusExited:
					if !hasIDs {
						t.Logf("%s record missing order ids: %+v", got.Status, got)
						return false
					}
				default:
					t.Logf("Unknown status %q", got.Status)
					return false
				}

				if lastTerminal != "" && got.Status != lastTerminal {
					t.Logf("Terminal status changed from %s to %s", lastTerminal, got.Status)
					return false
				}
				if got.Status.IsTerminal() {
					lastTerminal = got.Status
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, opCount-1)),
		gen.IntRange(1, 1000),
		gen.Float64Range(50, 5000),
	))

	properties.Property("Execution is exactly-once: repeated attempts keep the first ids", prop.ForAll(
		func(attempts int) bool {
			ctx := context.Background()
			id, err := s.CreateIntent(ctx, &models.Intent{
				Instrument:   "NSE_EQ|PROPTEST",
				Quantity:     1,
				TriggerPrice: 100,
				LimitPrice:   101,
				StopLoss:     95,
			})
			if err != nil {
				return false
			}
			if err := s.RecordExecution(ctx, id, "FIRST_E", "FIRST_S"); err != nil {
				return false
			}
			for i := 0; i < attempts; i++ {
				_ = s.RecordExecution(ctx, id, "LATER_E", "LATER_S")
			}
			got, err := s.GetIntent(ctx, id)
			if err != nil {
				return false
			}
			return got.EntryOrderID == "FIRST_E" && got.SLOrderID == "FIRST_S" &&
				got.Status == models.StatusExecuted
		},
		gen.IntRange(1, 10),
	))

	properties.TestingRun(t)
}
