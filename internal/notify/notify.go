// Package notify provides high-severity alerting for lifecycle failures.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Severity classifies a notification.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityCritical Severity = "critical"
)

// Notification represents a notification message.
type Notification struct {
	Severity  Severity               `json:"severity"`
	Title     string                 `json:"title"`
	Message   string                 `json:"message"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// Notifier defines the interface for sending notifications. The executor uses
// it to flag naked positions for manual intervention.
type Notifier interface {
	Send(ctx context.Context, n Notification) error
}

// LogNotifier writes notifications to the structured log. It is the fallback
// channel and is always configured.
type LogNotifier struct {
	logger zerolog.Logger
}

// NewLogNotifier creates a notifier that writes to the given logger.
func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Send logs the notification at a level matching its severity.
func (n *LogNotifier) Send(ctx context.Context, msg Notification) error {
	ev := n.logger.Info()
	if msg.Severity == SeverityCritical {
		ev = n.logger.Error()
	}
	ev.Str("event", "notification").
		Str("severity", string(msg.Severity)).
		Str("title", msg.Title).
		Interface("data", msg.Data).
		Msg(msg.Message)
	return nil
}

// WebhookNotifier POSTs notifications as JSON to a configured endpoint.
type WebhookNotifier struct {
	url    string
	client *http.Client
}

// NewWebhookNotifier creates a webhook notifier.
func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Send posts the notification to the webhook endpoint.
func (n *WebhookNotifier) Send(ctx context.Context, msg Notification) error {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshaling notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// Multi fans a notification out to several channels; the first error is
// returned but every channel is attempted.
type Multi struct {
	channels []Notifier
}

// NewMulti creates a multi-channel notifier.
func NewMulti(channels ...Notifier) *Multi {
	return &Multi{channels: channels}
}

// Send delivers the notification to every channel.
func (m *Multi) Send(ctx context.Context, msg Notification) error {
	var firstErr error
	for _, ch := range m.channels {
		if err := ch.Send(ctx, msg); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
