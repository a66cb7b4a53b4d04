// Package broker provides broker integration interfaces and implementations.
package broker

import (
	"context"

	"bracket-trader/internal/models"
)

// Gateway abstracts the remote trading venue. Any concrete broker becomes a
// pluggable adapter behind these five operations, which keeps the lifecycle
// logic testable against deterministic fakes.
type Gateway interface {
	// CheckConnectivity verifies the session and returns account state.
	// A failure here aborts an entire scheduled entry run.
	CheckConnectivity(ctx context.Context) (*models.ConnectivityInfo, error)

	// PlaceOrder submits an order and returns the broker-assigned id.
	PlaceOrder(ctx context.Context, req OrderRequest) (string, error)

	// GetOrderStatus returns the broker-observed state of an order.
	// Unknown ids report BrokerOrderUnknown rather than an error.
	GetOrderStatus(ctx context.Context, orderID string) (models.BrokerOrderState, error)

	// ListOpenPositions returns all positions with non-zero net quantity.
	ListOpenPositions(ctx context.Context) ([]models.Position, error)

	// CancelOrder cancels an open order.
	CancelOrder(ctx context.Context, orderID string) error
}

// OrderRequest describes a single order leg to submit.
type OrderRequest struct {
	Instrument   string // trading symbol
	Exchange     models.Exchange
	Side         models.OrderSide
	Type         models.OrderType
	Product      string // MIS, CNC
	Quantity     int
	Price        float64 // limit price; unused for MARKET
	TriggerPrice float64 // unused unless Type is SL
	Tag          string
}
