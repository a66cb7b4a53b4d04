package trading

import (
	"context"

	"github.com/rs/zerolog"

	"bracket-trader/internal/broker"
	"bracket-trader/internal/errors"
	"bracket-trader/internal/logging"
	"bracket-trader/internal/models"
	"bracket-trader/internal/store"
	"bracket-trader/internal/stream"
)

// Reconciler periodically compares local lifecycle status against
// broker-observed truth and advances local status accordingly.
type Reconciler struct {
	store   store.OrderStore
	gateway broker.Gateway
	hub     *stream.Hub
	logger  zerolog.Logger
}

// NewReconciler creates a new reconciler.
func NewReconciler(s store.OrderStore, g broker.Gateway, hub *stream.Hub, logger zerolog.Logger) *Reconciler {
	return &Reconciler{store: s, gateway: g, hub: hub, logger: logger}
}

// Reconcile runs one sweep over all stored intents. Each intent is
// reconciled independently; a gateway error on one is logged and skipped so
// the rest of the sweep still runs.
func (r *Reconciler) Reconcile(ctx context.Context) {
	intents, err := r.store.ListIntents(ctx)
	if err != nil {
		r.logger.Error().Err(err).Msg("Reconciliation sweep aborted: listing intents failed")
		return
	}

	for i := range intents {
		if err := r.reconcileIntent(ctx, &intents[i]); err != nil {
			logger := logging.WithIntent(r.logger, intents[i].ID)
			logger.Warn().Err(err).Msg("Reconciliation skipped, will retry next cycle")
		}
	}
}

func (r *Reconciler) reconcileIntent(ctx context.Context, intent *models.Intent) error {
	switch intent.Status {
	case models.StatusPending:
		return r.reconcilePending(ctx, intent)
	case models.StatusExecuted:
		return r.reconcileExecuted(ctx, intent)
	default:
		// Terminal states never regress.
		return nil
	}
}

// reconcilePending handles the defensive case of a PENDING record that
// already carries an entry order id: if the broker reports that order dead,
// the intent is cancelled locally too.
func (r *Reconciler) reconcilePending(ctx context.Context, intent *models.Intent) error {
	if intent.EntryOrderID == "" {
		return nil
	}

	state, err := r.gateway.GetOrderStatus(ctx, intent.EntryOrderID)
	if err != nil {
		return errors.NewReconciliationError(intent.ID, "entry order status", err)
	}

	if state != models.BrokerOrderCancelled && state != models.BrokerOrderRejected {
		return nil
	}

	if err := r.store.MarkCancelled(ctx, intent.ID); err != nil {
		return errors.NewReconciliationError(intent.ID, "mark cancelled", err)
	}
	r.publish(models.LifecycleEvent{
		IntentID:     intent.ID,
		Kind:         models.EventCancelled,
		Instrument:   intent.Instrument,
		EntryOrderID: intent.EntryOrderID,
		Reason:       "broker reports entry " + string(state),
	})
	return nil
}

// reconcileExecuted transitions an EXECUTED intent to EXITED once the broker
// no longer reports an open position for its instrument: the stop-loss or a
// manual action closed it.
func (r *Reconciler) reconcileExecuted(ctx context.Context, intent *models.Intent) error {
	positions, err := r.gateway.ListOpenPositions(ctx)
	if err != nil {
		return errors.NewReconciliationError(intent.ID, "open positions", err)
	}

	for _, p := range positions {
		if p.Instrument == intent.Instrument && p.Quantity != 0 {
			return nil // Still open.
		}
	}

	if err := r.store.MarkExited(ctx, intent.ID); err != nil {
		return errors.NewReconciliationError(intent.ID, "mark exited", err)
	}
	r.publish(models.LifecycleEvent{
		IntentID:     intent.ID,
		Kind:         models.EventExited,
		Instrument:   intent.Instrument,
		EntryOrderID: intent.EntryOrderID,
		SLOrderID:    intent.SLOrderID,
		Reason:       "no open position remains",
	})
	return nil
}

func (r *Reconciler) publish(ev models.LifecycleEvent) {
	logging.LogDecision(r.logger, ev)
	if r.hub != nil {
		r.hub.Publish(ev)
	}
}
