// Package models provides domain models for the bracket trading application.
package models

import (
	"time"
)

// Exchange represents a stock exchange.
type Exchange string

const (
	NSE Exchange = "NSE"
	BSE Exchange = "BSE"
)

// OrderSide represents the side of an order.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

// OrderType represents the type of an order.
type OrderType string

const (
	OrderTypeMarket   OrderType = "MARKET"
	OrderTypeLimit    OrderType = "LIMIT"
	OrderTypeStopLoss OrderType = "SL"
)

// IntentStatus represents the lifecycle status of an order intent.
type IntentStatus string

const (
	// StatusPending means the intent is stored but no broker order exists yet.
	StatusPending IntentStatus = "PENDING"
	// StatusExecuted means the entry filled and a protective stop-loss is live.
	StatusExecuted IntentStatus = "EXECUTED"
	// StatusExited means the position has been closed (stop-loss hit or manual exit).
	StatusExited IntentStatus = "EXITED"
	// StatusCancelled means the entry never completed.
	StatusCancelled IntentStatus = "CANCELLED"
)

// IsTerminal returns true for statuses that can never change again.
func (s IntentStatus) IsTerminal() bool {
	return s == StatusExited || s == StatusCancelled
}

// BrokerOrderState represents the broker-observed state of a single order.
type BrokerOrderState string

const (
	BrokerOrderPending   BrokerOrderState = "PENDING"
	BrokerOrderComplete  BrokerOrderState = "COMPLETE"
	BrokerOrderCancelled BrokerOrderState = "CANCELLED"
	BrokerOrderRejected  BrokerOrderState = "REJECTED"
	BrokerOrderUnknown   BrokerOrderState = "UNKNOWN"
)

// IsTerminal returns true once the broker will no longer advance the order.
func (s BrokerOrderState) IsTerminal() bool {
	switch s {
	case BrokerOrderComplete, BrokerOrderCancelled, BrokerOrderRejected:
		return true
	}
	return false
}

// Intent represents a persisted bracket-order trading decision.
// Instrument, quantity and prices are immutable after creation; the broker
// order ids are set exactly once, together, when the bracket goes live.
type Intent struct {
	ID           int64        `json:"id"`
	Instrument   string       `json:"instrument"`
	Quantity     int          `json:"quantity"`
	TriggerPrice float64      `json:"trigger_price"`
	LimitPrice   float64      `json:"limit_price"`
	StopLoss     float64      `json:"stop_loss"`
	EntryOrderID string       `json:"entry_order_id,omitempty"`
	SLOrderID    string       `json:"sl_order_id,omitempty"`
	Status       IntentStatus `json:"status"`
	CreatedAt    time.Time    `json:"created_at"`
}

// Position represents an open position as reported by the broker.
type Position struct {
	Instrument string
	Quantity   int
}

// ConnectivityInfo is the result of a broker connectivity and funds check.
type ConnectivityInfo struct {
	AccountID     string
	AvailableCash float64
	OpenPositions int
}

// EventKind identifies a lifecycle decision made about an intent.
type EventKind string

const (
	EventPlaced          EventKind = "PLACED"
	EventExecuted        EventKind = "EXECUTED"
	EventCancelled       EventKind = "CANCELLED"
	EventExited          EventKind = "EXITED"
	EventSkipped         EventKind = "SKIPPED"
	EventDryRunValidated EventKind = "DRY_RUN_VALIDATED"
	EventNakedPosition   EventKind = "NAKED_POSITION"
)

// LifecycleEvent is a single auditable decision in an intent's lifecycle.
// Every placement, transition and skip is published as one of these so
// operators can reconstruct each trading day's actions.
type LifecycleEvent struct {
	IntentID     int64     `json:"intent_id"`
	Kind         EventKind `json:"kind"`
	Instrument   string    `json:"instrument"`
	EntryOrderID string    `json:"entry_order_id,omitempty"`
	SLOrderID    string    `json:"sl_order_id,omitempty"`
	Reason       string    `json:"reason,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}
