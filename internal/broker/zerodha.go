// Package broker provides broker integration implementations.
package broker

import (
	"context"
	"fmt"
	"strings"

	kiteconnect "github.com/zerodha/gokiteconnect/v4"

	"bracket-trader/internal/errors"
	"bracket-trader/internal/models"
)

// ZerodhaGateway implements the Gateway interface for Zerodha Kite Connect.
type ZerodhaGateway struct {
	client *kiteconnect.Client
}

// ZerodhaConfig holds configuration for the Zerodha gateway. The access token
// is generated out of band; this process never runs the login flow itself.
type ZerodhaConfig struct {
	APIKey      string
	AccessToken string
}

// NewZerodhaGateway creates a new Zerodha gateway instance.
func NewZerodhaGateway(cfg ZerodhaConfig) *ZerodhaGateway {
	client := kiteconnect.New(cfg.APIKey)
	client.SetAccessToken(cfg.AccessToken)
	return &ZerodhaGateway{client: client}
}

// CheckConnectivity verifies the session by fetching the user profile, funds
// and open positions in one pass.
func (z *ZerodhaGateway) CheckConnectivity(ctx context.Context) (*models.ConnectivityInfo, error) {
	profile, err := z.client.GetUserProfile()
	if err != nil {
		return nil, errors.NewConnectivityError("profile", err)
	}

	margins, err := z.client.GetUserMargins()
	if err != nil {
		return nil, errors.NewConnectivityError("margins", err)
	}

	positions, err := z.client.GetPositions()
	if err != nil {
		return nil, errors.NewConnectivityError("positions", err)
	}

	open := 0
	for _, p := range positions.Net {
		if p.Quantity != 0 {
			open++
		}
	}

	return &models.ConnectivityInfo{
		AccountID:     profile.UserID,
		AvailableCash: margins.Equity.Available.Cash,
		OpenPositions: open,
	}, nil
}

// PlaceOrder submits a regular-variety order.
func (z *ZerodhaGateway) PlaceOrder(ctx context.Context, req OrderRequest) (string, error) {
	params := kiteconnect.OrderParams{
		Exchange:        string(req.Exchange),
		Tradingsymbol:   req.Instrument,
		TransactionType: string(req.Side),
		OrderType:       string(req.Type),
		Product:         req.Product,
		Quantity:        req.Quantity,
		Price:           req.Price,
		TriggerPrice:    req.TriggerPrice,
		Validity:        "DAY",
		Tag:             req.Tag,
	}

	resp, err := z.client.PlaceOrder(kiteconnect.VarietyRegular, params)
	if err != nil {
		if isSessionError(err) {
			return "", errors.NewConnectivityError("place order", err)
		}
		return "", fmt.Errorf("failed to place order: %w", err)
	}
	return resp.OrderID, nil
}

// GetOrderStatus fetches the latest broker state of an order.
func (z *ZerodhaGateway) GetOrderStatus(ctx context.Context, orderID string) (models.BrokerOrderState, error) {
	history, err := z.client.GetOrderHistory(orderID)
	if err != nil {
		if isSessionError(err) {
			return models.BrokerOrderUnknown, errors.NewConnectivityError("order status", err)
		}
		return models.BrokerOrderUnknown, fmt.Errorf("failed to get order status: %w", err)
	}
	if len(history) == 0 {
		return models.BrokerOrderUnknown, nil
	}
	return mapKiteStatus(history[len(history)-1].Status), nil
}

// ListOpenPositions returns all net positions with non-zero quantity.
func (z *ZerodhaGateway) ListOpenPositions(ctx context.Context) ([]models.Position, error) {
	positions, err := z.client.GetPositions()
	if err != nil {
		if isSessionError(err) {
			return nil, errors.NewConnectivityError("positions", err)
		}
		return nil, fmt.Errorf("failed to get positions: %w", err)
	}

	result := make([]models.Position, 0, len(positions.Net))
	for _, p := range positions.Net {
		if p.Quantity == 0 {
			continue
		}
		result = append(result, models.Position{
			Instrument: p.Tradingsymbol,
			Quantity:   int(p.Quantity),
		})
	}
	return result, nil
}

// CancelOrder cancels an open regular-variety order.
func (z *ZerodhaGateway) CancelOrder(ctx context.Context, orderID string) error {
	_, err := z.client.CancelOrder(kiteconnect.VarietyRegular, orderID, nil)
	if err != nil {
		if isSessionError(err) {
			return errors.NewConnectivityError("cancel order", err)
		}
		return fmt.Errorf("failed to cancel order: %w", err)
	}
	return nil
}

// mapKiteStatus maps Kite order statuses onto the lifecycle's order states.
func mapKiteStatus(status string) models.BrokerOrderState {
	switch strings.ToUpper(status) {
	case "COMPLETE":
		return models.BrokerOrderComplete
	case "CANCELLED", "CANCELLED AMO":
		return models.BrokerOrderCancelled
	case "REJECTED":
		return models.BrokerOrderRejected
	case "OPEN", "TRIGGER PENDING", "AMO REQ RECEIVED", "OPEN PENDING",
		"VALIDATION PENDING", "PUT ORDER REQ RECEIVED", "MODIFY PENDING":
		return models.BrokerOrderPending
	default:
		return models.BrokerOrderUnknown
	}
}

// isSessionError reports whether a Kite error means the session or network is
// bad rather than this particular order.
func isSessionError(err error) bool {
	var kerr kiteconnect.Error
	if errors.As(err, &kerr) {
		switch kerr.ErrorType {
		case kiteconnect.GeneralError, kiteconnect.TokenError, kiteconnect.PermissionError, kiteconnect.NetworkError:
			return true
		}
		return false
	}
	// Transport-level failures arrive as plain errors.
	return strings.Contains(err.Error(), "connection") || strings.Contains(err.Error(), "timeout")
}

// Ensure ZerodhaGateway implements Gateway
var _ Gateway = (*ZerodhaGateway)(nil)
