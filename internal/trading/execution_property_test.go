package trading

import (
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/rs/zerolog"

	"bracket-trader/internal/broker"
	"bracket-trader/internal/models"
	"bracket-trader/internal/store"
)

// Property: the stop-loss leg always triggers exactly at the configured
// stop-loss price, and its limit sits exactly one offset below, rounded to the
// paise. The limit is strictly below the trigger for every positive offset.
func TestProperty_StopLossPricing(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	parameters.Rng.Seed(time.Now().UnixNano())
	properties := gopter.NewProperties(parameters)

	properties.Property("SL trigger equals stop loss, limit is offset below", prop.ForAll(
		func(stopLoss, offset float64) bool {
			e := NewExecutor(broker.NewSimGateway(), nil, nil, nil, zerolog.Nop(), ExecutorConfig{
				StopLossOffset: offset,
			})
			trigger, limit := e.stopLossPrices(&models.Intent{StopLoss: stopLoss})

			if trigger != stopLoss {
				return false
			}
			want := math.Round((stopLoss-offset)*100) / 100
			if limit != want {
				return false
			}
			// Round-to-paise can only move the limit by half a paise, so any
			// offset of a paise or more keeps it strictly below the trigger.
			if offset >= 0.01 && limit >= trigger {
				return false
			}
			return true
		},
		gen.Float64Range(1, 50000),
		gen.Float64Range(0.01, 5),
	))

	properties.Property("Default offset is 0.20", prop.ForAll(
		func(stopLoss float64) bool {
			e := NewExecutor(broker.NewSimGateway(), nil, nil, nil, zerolog.Nop(), ExecutorConfig{})
			trigger, limit := e.stopLossPrices(&models.Intent{StopLoss: stopLoss})
			want := math.Round((stopLoss-0.20)*100) / 100
			return trigger == stopLoss && limit == want
		},
		gen.Float64Range(1, 50000),
	))

	properties.TestingRun(t)
}

// Property: executing any batch of valid pending intents against a broker
// that fills everything leaves every record EXECUTED with both order ids set,
// and the executed count equals the batch size.
func TestProperty_ExecuteAllFillsEveryValidIntent(t *testing.T) {
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "exec_property.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer s.Close()

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 30
	parameters.Rng.Seed(time.Now().UnixNano())
	properties := gopter.NewProperties(parameters)

	properties.Property("All valid intents reach EXECUTED", prop.ForAll(
		func(count int, qty int, basePrice float64) bool {
			ctx := context.Background()
			g := broker.NewSimGateway()
			e := NewExecutor(g, s, nil, nil, zerolog.Nop(), ExecutorConfig{
				FillPoll:    time.Millisecond,
				FillTimeout: 100 * time.Millisecond,
			})

			intents := make([]models.Intent, 0, count)
			for i := 0; i < count; i++ {
				intent := models.Intent{
					Instrument:   "NSE_EQ|BATCH",
					Quantity:     qty,
					TriggerPrice: basePrice + float64(i),
					LimitPrice:   basePrice + float64(i) + 0.5,
					StopLoss:     basePrice + float64(i) - 10,
				}
				if _, err := s.CreateIntent(ctx, &intent); err != nil {
					t.Logf("CreateIntent failed: %v", err)
					return false
				}
				intents = append(intents, intent)
			}

			executed := e.ExecuteAll(ctx, intents)
			if executed != count {
				t.Logf("Executed %d of %d", executed, count)
				return false
			}
			for _, in := range intents {
				got, err := s.GetIntent(ctx, in.ID)
				if err != nil {
					return false
				}
				if got.Status != models.StatusExecuted || got.EntryOrderID == "" || got.SLOrderID == "" {
					t.Logf("Intent %d not fully executed: %+v", in.ID, got)
					return false
				}
			}
			return true
		},
		gen.IntRange(1, 8),
		gen.IntRange(1, 500),
		gen.Float64Range(50, 4000),
	))

	properties.TestingRun(t)
}
