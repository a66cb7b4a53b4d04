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

// Actions exposes the operator-invoked cancel and force-exit operations.
// These are the only paths on which this process proactively cancels live
// broker orders.
type Actions struct {
	store    store.OrderStore
	gateway  broker.Gateway
	hub      *stream.Hub
	logger   zerolog.Logger
	exchange models.Exchange
	product  string
}

// NewActions creates the operator action surface.
func NewActions(s store.OrderStore, g broker.Gateway, hub *stream.Hub, logger zerolog.Logger, exchange models.Exchange, product string) *Actions {
	if exchange == "" {
		exchange = models.NSE
	}
	if product == "" {
		product = "MIS"
	}
	return &Actions{store: s, gateway: g, hub: hub, logger: logger, exchange: exchange, product: product}
}

// CancelIntent cancels a PENDING intent. Any entry order the record carries
// is cancelled at the broker first.
func (a *Actions) CancelIntent(ctx context.Context, id int64) error {
	intent, err := a.store.GetIntent(ctx, id)
	if err != nil {
		return err
	}
	if intent.Status != models.StatusPending {
		return errors.ErrNotPending
	}

	if intent.EntryOrderID != "" {
		if err := a.gateway.CancelOrder(ctx, intent.EntryOrderID); err != nil {
			return errors.Wrap(err, "cancelling entry order")
		}
	}

	if err := a.store.MarkCancelled(ctx, id); err != nil {
		return err
	}
	a.publish(models.LifecycleEvent{
		IntentID:   id,
		Kind:       models.EventCancelled,
		Instrument: intent.Instrument,
		Reason:     "cancelled by operator",
	})
	return nil
}

// ForceExit closes an EXECUTED intent's position with a market order. The
// protective stop-loss is cancelled first so the exit cannot double-fill.
func (a *Actions) ForceExit(ctx context.Context, id int64) error {
	intent, err := a.store.GetIntent(ctx, id)
	if err != nil {
		return err
	}
	if intent.Status != models.StatusExecuted {
		return errors.Wrapf(errors.ErrNotExecuted, "intent %d is %s", id, intent.Status)
	}

	logger := logging.WithIntent(a.logger, id)

	if intent.SLOrderID != "" {
		if err := a.gateway.CancelOrder(ctx, intent.SLOrderID); err != nil {
			// The stop-loss may already be complete or cancelled; the
			// market exit below still closes whatever remains open.
			logger.Warn().Err(err).Msg("Cancelling stop-loss before force exit failed")
		}
	}

	exitID, err := a.gateway.PlaceOrder(ctx, broker.OrderRequest{
		Instrument: intent.Instrument,
		Exchange:   a.exchange,
		Side:       models.OrderSideSell,
		Type:       models.OrderTypeMarket,
		Product:    a.product,
		Quantity:   intent.Quantity,
	})
	if err != nil {
		return errors.NewSubmissionError(id, intent.Instrument, "force exit", err)
	}

	if err := a.store.MarkExited(ctx, id); err != nil {
		return err
	}
	logger.Info().Str("exit_order_id", exitID).Msg("Position force-exited")
	a.publish(models.LifecycleEvent{
		IntentID:     id,
		Kind:         models.EventExited,
		Instrument:   intent.Instrument,
		EntryOrderID: intent.EntryOrderID,
		SLOrderID:    intent.SLOrderID,
		Reason:       "force exit by operator",
	})
	return nil
}

func (a *Actions) publish(ev models.LifecycleEvent) {
	logging.LogDecision(a.logger, ev)
	if a.hub != nil {
		a.hub.Publish(ev)
	}
}
