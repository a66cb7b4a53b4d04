// Package broker provides broker integration implementations.
package broker

import (
	"context"
	"fmt"
	"sync"

	"bracket-trader/internal/models"
)

// SimGateway implements the Gateway interface against in-memory state. It is
// the deterministic stand-in used by paper mode and by tests: entry orders
// fill (or fail) according to the configured behaviour, and filled BUY orders
// open simulated positions.
type SimGateway struct {
	mu sync.Mutex

	orders       map[string]*simOrder
	positions    map[string]int
	orderCounter int

	// entryState is the state a BUY order reaches immediately after
	// placement. Defaults to COMPLETE.
	entryState models.BrokerOrderState

	// Injectable failures
	connectivityErr error
	placeErr        map[models.OrderSide]error
	statusErr       map[string]error
	positionsErr    error

	// calls counts every Gateway invocation, for asserting that dry-run
	// never touches the broker.
	calls int
}

type simOrder struct {
	id    string
	req   OrderRequest
	state models.BrokerOrderState
}

// NewSimGateway creates a simulator whose entry orders fill immediately.
func NewSimGateway() *SimGateway {
	return &SimGateway{
		orders:     make(map[string]*simOrder),
		positions:  make(map[string]int),
		entryState: models.BrokerOrderComplete,
		placeErr:   make(map[models.OrderSide]error),
		statusErr:  make(map[string]error),
	}
}

// SetEntryState sets the state BUY orders reach after placement.
func (g *SimGateway) SetEntryState(state models.BrokerOrderState) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.entryState = state
}

// SetConnectivityError makes CheckConnectivity fail with err.
func (g *SimGateway) SetConnectivityError(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.connectivityErr = err
}

// FailPlace makes every placement on the given side fail with err.
func (g *SimGateway) FailPlace(side models.OrderSide, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.placeErr[side] = err
}

// FailStatus makes status queries for instrument-tagged orders fail with err.
func (g *SimGateway) FailStatus(orderID string, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.statusErr[orderID] = err
}

// FailPositions makes ListOpenPositions fail with err.
func (g *SimGateway) FailPositions(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.positionsErr = err
}

// ClosePosition zeroes the simulated position for an instrument, as if the
// stop-loss or a manual action closed it at the venue.
func (g *SimGateway) ClosePosition(instrument string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.positions, instrument)
}

// Calls returns the number of Gateway invocations made so far.
func (g *SimGateway) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

// Order returns a placed order's request by id, for assertions.
func (g *SimGateway) Order(orderID string) (OrderRequest, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	o, ok := g.orders[orderID]
	if !ok {
		return OrderRequest{}, false
	}
	return o.req, true
}

// CheckConnectivity reports simulated account state.
func (g *SimGateway) CheckConnectivity(ctx context.Context) (*models.ConnectivityInfo, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++

	if g.connectivityErr != nil {
		return nil, g.connectivityErr
	}
	open := 0
	for _, qty := range g.positions {
		if qty != 0 {
			open++
		}
	}
	return &models.ConnectivityInfo{
		AccountID:     "SIM001",
		AvailableCash: 1000000,
		OpenPositions: open,
	}, nil
}

// PlaceOrder records the order and applies the configured fill behaviour.
func (g *SimGateway) PlaceOrder(ctx context.Context, req OrderRequest) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++

	if err := g.placeErr[req.Side]; err != nil {
		return "", err
	}

	g.orderCounter++
	id := fmt.Sprintf("SIM_%06d", g.orderCounter)

	state := models.BrokerOrderPending
	if req.Side == models.OrderSideBuy {
		state = g.entryState
	}
	g.orders[id] = &simOrder{id: id, req: req, state: state}

	if state == models.BrokerOrderComplete {
		g.applyFill(req)
	}
	if req.Side == models.OrderSideSell && req.Type == models.OrderTypeMarket {
		// Market exit fills immediately in simulation.
		g.orders[id].state = models.BrokerOrderComplete
		g.applyFill(req)
	}
	return id, nil
}

func (g *SimGateway) applyFill(req OrderRequest) {
	if req.Side == models.OrderSideBuy {
		g.positions[req.Instrument] += req.Quantity
	} else {
		g.positions[req.Instrument] -= req.Quantity
		if g.positions[req.Instrument] == 0 {
			delete(g.positions, req.Instrument)
		}
	}
}

// GetOrderStatus returns the simulated order state.
func (g *SimGateway) GetOrderStatus(ctx context.Context, orderID string) (models.BrokerOrderState, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++

	if err := g.statusErr[orderID]; err != nil {
		return models.BrokerOrderUnknown, err
	}
	o, ok := g.orders[orderID]
	if !ok {
		return models.BrokerOrderUnknown, nil
	}
	return o.state, nil
}

// ListOpenPositions returns all simulated non-zero positions.
func (g *SimGateway) ListOpenPositions(ctx context.Context) ([]models.Position, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++

	if g.positionsErr != nil {
		return nil, g.positionsErr
	}
	result := make([]models.Position, 0, len(g.positions))
	for instrument, qty := range g.positions {
		if qty != 0 {
			result = append(result, models.Position{Instrument: instrument, Quantity: qty})
		}
	}
	return result, nil
}

// CancelOrder cancels a simulated order if it is still open.
func (g *SimGateway) CancelOrder(ctx context.Context, orderID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++

	o, ok := g.orders[orderID]
	if !ok {
		return fmt.Errorf("order not found: %s", orderID)
	}
	if !o.state.IsTerminal() {
		o.state = models.BrokerOrderCancelled
	}
	return nil
}

// Ensure SimGateway implements Gateway
var _ Gateway = (*SimGateway)(nil)
