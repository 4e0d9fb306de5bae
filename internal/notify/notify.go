// Package notify provides outbound notification channels for emitted
// alerts. Delivery is best-effort: a failing channel never blocks the
// engine.
package notify

import (
	"context"
	"sync"
	"time"

	"battlecard-trader/internal/models"
)

// Notification represents an outbound notification message.
type Notification struct {
	Type      models.AlertType
	Title     string
	Message   string
	Data      map[string]interface{}
	Timestamp time.Time
}

// Notifier defines the interface for sending notifications.
type Notifier interface {
	Name() string
	Send(ctx context.Context, n Notification) error
}

// FromAlert builds a notification from an emitted alert.
func FromAlert(a *models.Alert) Notification {
	return Notification{
		Type:      a.Type,
		Title:     a.Title,
		Message:   a.Message,
		Timestamp: a.Timestamp,
		Data: map[string]interface{}{
			"alert_id":    a.ID,
			"card_id":     a.CardID,
			"scenario_id": a.ScenarioID,
			"kind":        string(a.Kind),
		},
	}
}

// MultiNotifier fans a notification out to several channels.
type MultiNotifier struct {
	mu       sync.RWMutex
	channels []Notifier
}

// NewMultiNotifier creates a notifier over the given channels.
func NewMultiNotifier(channels ...Notifier) *MultiNotifier {
	return &MultiNotifier{channels: channels}
}

// Add registers an additional channel.
func (m *MultiNotifier) Add(n Notifier) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels = append(m.channels, n)
}

// Name implements Notifier.
func (m *MultiNotifier) Name() string { return "multi" }

// Send delivers to every channel; the last error wins but every
// channel is attempted.
func (m *MultiNotifier) Send(ctx context.Context, n Notification) error {
	m.mu.RLock()
	channels := make([]Notifier, len(m.channels))
	copy(channels, m.channels)
	m.mu.RUnlock()

	var lastErr error
	for _, ch := range channels {
		if err := ch.Send(ctx, n); err != nil {
			lastErr = err
		}
	}
	return lastErr
}
