// Package trading implements the bracket-order lifecycle: entry execution,
// the once-per-day entry guard, and reconciliation against broker state.
package trading

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"bracket-trader/internal/broker"
	"bracket-trader/internal/errors"
	"bracket-trader/internal/logging"
	"bracket-trader/internal/models"
	"bracket-trader/internal/notify"
	"bracket-trader/internal/store"
	"bracket-trader/internal/stream"
	"bracket-trader/pkg/utils"
)

// ExecutorConfig holds entry execution configuration.
type ExecutorConfig struct {
	DryRun         bool
	StopLossOffset float64 // SL leg limit = trigger - offset
	Exchange       models.Exchange
	Product        string
	FillPoll       time.Duration
	FillTimeout    time.Duration
}

// Executor turns one PENDING intent into a live bracket (entry + stop-loss)
// or a terminal CANCELLED state.
//
// The in-memory EXECUTING phase between entry submission and the final store
// write is deliberately not persisted: a crash inside it leaves the record
// PENDING, and the reconciler plus the abandoned-order cancel policy cover
// the gap.
type Executor struct {
	gateway  broker.Gateway
	store    store.OrderStore
	hub      *stream.Hub
	notifier notify.Notifier
	logger   zerolog.Logger
	cfg      ExecutorConfig
}

// NewExecutor creates a new entry executor.
func NewExecutor(g broker.Gateway, s store.OrderStore, hub *stream.Hub, n notify.Notifier, logger zerolog.Logger, cfg ExecutorConfig) *Executor {
	if cfg.StopLossOffset <= 0 {
		cfg.StopLossOffset = 0.20
	}
	if cfg.FillPoll <= 0 {
		cfg.FillPoll = 2 * time.Second
	}
	if cfg.FillTimeout <= 0 {
		cfg.FillTimeout = 3 * time.Minute
	}
	if cfg.Exchange == "" {
		cfg.Exchange = models.NSE
	}
	if cfg.Product == "" {
		cfg.Product = "MIS"
	}
	return &Executor{
		gateway:  g,
		store:    s,
		hub:      hub,
		notifier: n,
		logger:   logger,
		cfg:      cfg,
	}
}

// ExecuteAll runs the executor over a batch of pending intents. Each intent
// is processed independently; one failure never aborts its siblings. The
// returned count is the number of intents that reached EXECUTED.
func (e *Executor) ExecuteAll(ctx context.Context, intents []models.Intent) int {
	executed := 0
	for i := range intents {
		if err := e.ExecuteIntent(ctx, &intents[i]); err != nil {
			logger := logging.WithIntent(e.logger, intents[i].ID)
			logger.Error().Err(err).Msg("Entry execution failed")
			continue
		}
		if intents[i].Status == models.StatusExecuted {
			executed++
		}
	}
	return executed
}

// ExecuteIntent runs the entry state machine for one PENDING intent.
func (e *Executor) ExecuteIntent(ctx context.Context, intent *models.Intent) error {
	logger := logging.WithInstrument(logging.WithIntent(e.logger, intent.ID), intent.Instrument)

	if err := validateIntent(intent); err != nil {
		return err
	}

	if e.cfg.DryRun {
		slTrigger, slLimit := e.stopLossPrices(intent)
		logger.Info().
			Int("qty", intent.Quantity).
			Float64("trigger", intent.TriggerPrice).
			Float64("limit", intent.LimitPrice).
			Float64("sl_trigger", slTrigger).
			Float64("sl_limit", slLimit).
			Msg("Dry run: would place bracket")
		e.publish(models.LifecycleEvent{
			IntentID:   intent.ID,
			Kind:       models.EventDryRunValidated,
			Instrument: intent.Instrument,
		})
		return nil
	}

	// Step 1: submit the entry order. On failure the intent stays PENDING
	// for the next scheduled attempt.
	entryID, err := e.gateway.PlaceOrder(ctx, broker.OrderRequest{
		Instrument:   intent.Instrument,
		Exchange:     e.cfg.Exchange,
		Side:         models.OrderSideBuy,
		Type:         models.OrderTypeStopLoss,
		Product:      e.cfg.Product,
		Quantity:     intent.Quantity,
		Price:        intent.LimitPrice,
		TriggerPrice: intent.TriggerPrice,
		Tag:          fmt.Sprintf("bracket-%d", intent.ID),
	})
	if err != nil {
		e.publish(models.LifecycleEvent{
			IntentID:   intent.ID,
			Kind:       models.EventSkipped,
			Instrument: intent.Instrument,
			Reason:     "entry submission failed",
		})
		return errors.NewSubmissionError(intent.ID, intent.Instrument, "entry", err)
	}

	logger = logging.WithOrderID(logger, entryID)
	logger.Info().Msg("Entry order placed")
	e.publish(models.LifecycleEvent{
		IntentID:     intent.ID,
		Kind:         models.EventPlaced,
		Instrument:   intent.Instrument,
		EntryOrderID: entryID,
	})

	// Step 2: bounded wait for the fill.
	state, filled := e.waitForFill(ctx, logger, entryID)

	// Step 3: no fill inside the deadline, or a terminal non-fill state.
	if !filled {
		return e.cancelEntry(ctx, logger, intent, entryID, state)
	}

	// Step 4: entry filled, submit the protective stop-loss.
	slTrigger, slLimit := e.stopLossPrices(intent)
	slID, err := e.gateway.PlaceOrder(ctx, broker.OrderRequest{
		Instrument:   intent.Instrument,
		Exchange:     e.cfg.Exchange,
		Side:         models.OrderSideSell,
		Type:         models.OrderTypeStopLoss,
		Product:      e.cfg.Product,
		Quantity:     intent.Quantity,
		Price:        slLimit,
		TriggerPrice: slTrigger,
		Tag:          fmt.Sprintf("bracket-%d-sl", intent.ID),
	})
	if err != nil {
		// The position is open and naked. Never retried automatically: a
		// retry could place a duplicate stop-loss. Surfaced for manual
		// intervention instead; the record stays PENDING so no invariant
		// is violated.
		perr := errors.NewPartialExecutionError(intent.ID, intent.Instrument, entryID, err)
		e.publish(models.LifecycleEvent{
			IntentID:     intent.ID,
			Kind:         models.EventNakedPosition,
			Instrument:   intent.Instrument,
			EntryOrderID: entryID,
			Reason:       err.Error(),
		})
		if e.notifier != nil {
			_ = e.notifier.Send(ctx, notify.Notification{
				Severity: notify.SeverityCritical,
				Title:    "Naked position: stop-loss submission failed",
				Message:  perr.Error(),
				Data: map[string]interface{}{
					"intent_id":      intent.ID,
					"instrument":     intent.Instrument,
					"entry_order_id": entryID,
					"quantity":       intent.Quantity,
				},
			})
		}
		return perr
	}

	// Step 5: persist both ids and the EXECUTED status atomically.
	if err := e.store.RecordExecution(ctx, intent.ID, entryID, slID); err != nil {
		return errors.Wrapf(err, "recording execution (entry %s, sl %s)", entryID, slID)
	}
	intent.EntryOrderID = entryID
	intent.SLOrderID = slID
	intent.Status = models.StatusExecuted

	logger.Info().Str("sl_order_id", slID).Msg("Bracket live")
	e.publish(models.LifecycleEvent{
		IntentID:     intent.ID,
		Kind:         models.EventExecuted,
		Instrument:   intent.Instrument,
		EntryOrderID: entryID,
		SLOrderID:    slID,
	})
	return nil
}

// waitForFill polls the entry order until it reaches a terminal state or the
// deadline elapses. Transient status-query errors are logged and polling
// continues; only an observed terminal state or the deadline decides.
func (e *Executor) waitForFill(ctx context.Context, logger zerolog.Logger, orderID string) (models.BrokerOrderState, bool) {
	last := models.BrokerOrderPending
	done, err := utils.PollUntil(ctx, utils.PollConfig{
		Interval: e.cfg.FillPoll,
		Deadline: e.cfg.FillTimeout,
	}, func() (bool, error) {
		state, serr := e.gateway.GetOrderStatus(ctx, orderID)
		if serr != nil {
			logger.Warn().Err(serr).Msg("Entry status query failed, retrying")
			return false, nil
		}
		last = state
		return state.IsTerminal(), nil
	})
	if err != nil {
		logger.Warn().Err(err).Msg("Fill wait aborted")
		return last, false
	}
	if !done {
		logger.Warn().Dur("deadline", e.cfg.FillTimeout).Msg("Entry not filled within deadline")
		return last, false
	}
	return last, last == models.BrokerOrderComplete
}

// cancelEntry abandons the entry attempt: cancels the live entry order (best
// effort, one attempt) and marks the intent CANCELLED.
func (e *Executor) cancelEntry(ctx context.Context, logger zerolog.Logger, intent *models.Intent, entryID string, state models.BrokerOrderState) error {
	reason := fmt.Sprintf("entry %s", state)
	if !state.IsTerminal() {
		reason = "fill wait deadline elapsed"
		if err := e.gateway.CancelOrder(ctx, entryID); err != nil {
			logger.Warn().Err(err).Msg("Cancelling abandoned entry order failed")
		}
	}

	if err := e.store.MarkCancelled(ctx, intent.ID); err != nil {
		return errors.Wrap(err, "marking cancelled")
	}
	intent.Status = models.StatusCancelled

	logger.Info().Str("reason", reason).Msg("Intent cancelled")
	e.publish(models.LifecycleEvent{
		IntentID:     intent.ID,
		Kind:         models.EventCancelled,
		Instrument:   intent.Instrument,
		EntryOrderID: entryID,
		Reason:       reason,
	})
	return nil
}

// stopLossPrices computes the stop-loss leg's trigger and limit. The limit
// sits a fixed offset below the trigger to guarantee fill priority.
func (e *Executor) stopLossPrices(intent *models.Intent) (trigger, limit float64) {
	trigger = intent.StopLoss
	limit = math.Round((intent.StopLoss-e.cfg.StopLossOffset)*100) / 100
	return trigger, limit
}

func (e *Executor) publish(ev models.LifecycleEvent) {
	logging.LogDecision(e.logger, ev)
	if e.hub != nil {
		e.hub.Publish(ev)
	}
}

func validateIntent(intent *models.Intent) error {
	if intent.Status != models.StatusPending {
		return errors.ErrNotPending
	}
	if intent.Instrument == "" {
		return errors.NewValidationError("instrument", intent.Instrument, "must not be empty")
	}
	if intent.Quantity <= 0 {
		return errors.NewValidationError("quantity", intent.Quantity, "must be positive")
	}
	if intent.TriggerPrice <= 0 || intent.LimitPrice <= 0 || intent.StopLoss <= 0 {
		return errors.NewValidationError("prices", intent, "all prices must be positive")
	}
	return nil
}
