// Package stream provides in-process distribution of lifecycle events.
package stream

import (
	"context"
	"fmt"
	"sync"
	"time"

	"bracket-trader/internal/models"
)

// HubConfig holds configuration for the event hub.
type HubConfig struct {
	// BufferSize is the size of the internal event channel buffer.
	BufferSize int
	// SubscriberBufferSize is the size of each subscriber's channel buffer.
	SubscriberBufferSize int
	// BroadcastTimeout is the maximum time to wait when sending to a subscriber.
	BroadcastTimeout time.Duration
}

// DefaultHubConfig returns the default hub configuration.
func DefaultHubConfig() HubConfig {
	return HubConfig{
		BufferSize:           256,
		SubscriberBufferSize: 64,
		BroadcastTimeout:     10 * time.Millisecond,
	}
}

// Hub fans lifecycle events out to multiple subscribers. The executor, guard
// and reconciler publish every decision here; the websocket API and any other
// observer subscribe. A slow subscriber drops events rather than blocking the
// trading loop.
type Hub struct {
	config      HubConfig
	mu          sync.RWMutex
	subscribers map[string]*Subscriber
	eventChan   chan models.LifecycleEvent
	done        chan struct{}
	started     bool

	subCounter int

	// Metrics
	metricsMu      sync.RWMutex
	eventsReceived uint64
	eventsDropped  uint64
}

// Subscriber represents a channel subscriber with metadata.
type Subscriber struct {
	ID           string
	Channel      chan models.LifecycleEvent
	DroppedCount int
	CreatedAt    time.Time
}

// NewHub creates a new event hub with default configuration.
func NewHub() *Hub {
	return NewHubWithConfig(DefaultHubConfig())
}

// NewHubWithConfig creates a new event hub with custom configuration.
func NewHubWithConfig(config HubConfig) *Hub {
	return &Hub{
		config:      config,
		subscribers: make(map[string]*Subscriber),
		eventChan:   make(chan models.LifecycleEvent, config.BufferSize),
		done:        make(chan struct{}),
	}
}

// Start begins the hub's distribution loop.
func (h *Hub) Start(ctx context.Context) {
	h.mu.Lock()
	if h.started {
		h.mu.Unlock()
		return
	}
	h.started = true
	h.mu.Unlock()

	go h.broadcastLoop(ctx)
}

// Stop shuts the hub down and closes all subscriber channels.
func (h *Hub) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.started {
		return
	}
	h.started = false
	close(h.done)

	for id, sub := range h.subscribers {
		close(sub.Channel)
		delete(h.subscribers, id)
	}
}

// Publish queues a lifecycle event for broadcast. Never blocks the caller.
func (h *Hub) Publish(ev models.LifecycleEvent) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	h.metricsMu.Lock()
	h.eventsReceived++
	h.metricsMu.Unlock()

	select {
	case h.eventChan <- ev:
	default:
		h.metricsMu.Lock()
		h.eventsDropped++
		h.metricsMu.Unlock()
	}
}

// Subscribe registers a new subscriber and returns it.
func (h *Hub) Subscribe() *Subscriber {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.subCounter++
	sub := &Subscriber{
		ID:        fmt.Sprintf("sub-%d", h.subCounter),
		Channel:   make(chan models.LifecycleEvent, h.config.SubscriberBufferSize),
		CreatedAt: time.Now(),
	}
	h.subscribers[sub.ID] = sub
	return sub
}

// Unsubscribe removes a subscriber and closes its channel.
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if sub, ok := h.subscribers[id]; ok {
		close(sub.Channel)
		delete(h.subscribers, id)
	}
}

// Stats returns received and dropped event counts.
func (h *Hub) Stats() (received, dropped uint64) {
	h.metricsMu.RLock()
	defer h.metricsMu.RUnlock()
	return h.eventsReceived, h.eventsDropped
}

func (h *Hub) broadcastLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-h.done:
			return
		case ev := <-h.eventChan:
			h.broadcast(ev)
		}
	}
}

func (h *Hub) broadcast(ev models.LifecycleEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, sub := range h.subscribers {
		select {
		case sub.Channel <- ev:
		case <-time.After(h.config.BroadcastTimeout):
			sub.DroppedCount++
			h.metricsMu.Lock()
			h.eventsDropped++
			h.metricsMu.Unlock()
		}
	}
}
