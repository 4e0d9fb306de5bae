package engine

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	apperrors "battlecard-trader/internal/errors"
	"battlecard-trader/internal/models"
	"battlecard-trader/internal/notify"
	"battlecard-trader/internal/store"
	"battlecard-trader/pkg/id"
)

// DefaultAlertCapacity bounds the retained alert set. Generous enough
// that eviction is rare in practice.
const DefaultAlertCapacity = 200

// AlertManager converts engine events into deduplicated, ordered alert
// records and keeps read/unread bookkeeping. It is shared across all
// symbol workers, so every method is safe for concurrent use.
type AlertManager struct {
	mu       sync.Mutex
	log      zerolog.Logger
	store    store.DataStore
	notifier notify.Notifier
	capacity int

	alerts []*models.Alert
	seen   map[string]struct{} // dedup keys for the system's lifetime
}

// NewAlertManager creates an alert manager with the given capacity.
// A capacity of zero or less falls back to the default.
func NewAlertManager(capacity int, logger zerolog.Logger) *AlertManager {
	if capacity <= 0 {
		capacity = DefaultAlertCapacity
	}
	return &AlertManager{
		log:      logger,
		capacity: capacity,
		seen:     make(map[string]struct{}),
	}
}

// SetStore attaches the persistence collaborator; the manager mirrors
// its alert set there after every mutation.
func (m *AlertManager) SetStore(s store.DataStore) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store = s
}

// SetNotifier attaches an outbound notifier for emitted alerts.
func (m *AlertManager) SetNotifier(n notify.Notifier) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifier = n
}

// Load restores alerts from the store and rebuilds the dedup table.
func (m *AlertManager) Load(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.store == nil {
		return nil
	}

	alerts, err := m.store.LoadAlerts(ctx)
	if err != nil {
		return apperrors.Wrap(err, "loading alerts")
	}
	keys, err := m.store.LoadAlertKeys(ctx)
	if err != nil {
		return apperrors.Wrap(err, "loading alert keys")
	}

	m.alerts = alerts
	// The persisted key set covers evicted and dismissed alerts too;
	// the retained alerts are folded in for stores written before any
	// key was recorded.
	m.seen = make(map[string]struct{}, len(keys))
	for _, k := range keys {
		m.seen[k] = struct{}{}
	}
	for _, a := range alerts {
		if a.Kind != "" && a.Kind != models.EventSaveFailed {
			m.seen[a.DedupKey()] = struct{}{}
		}
	}
	return nil
}

// Emit records a candidate alert unless its (card, scenario, kind) key
// has already been seen. The returned bool reports whether the alert
// was actually emitted. Timestamps are assigned here, at emission, so
// display order is emission order even when ticks arrive with skew.
func (m *AlertManager) Emit(candidate models.Alert) (*models.Alert, bool) {
	m.mu.Lock()

	// Save-failure alerts may repeat; everything else dedups for the
	// lifetime of the system, surviving eviction.
	if candidate.Kind != models.EventSaveFailed {
		key := candidate.DedupKey()
		if _, dup := m.seen[key]; dup {
			m.mu.Unlock()
			return nil, false
		}
		m.seen[key] = struct{}{}
	}

	alert := candidate
	alert.ID = id.New()
	alert.Timestamp = time.Now()
	alert.Read = false
	m.alerts = append(m.alerts, &alert)

	// Oldest-first eviction, read or unread.
	if over := len(m.alerts) - m.capacity; over > 0 {
		m.alerts = append([]*models.Alert(nil), m.alerts[over:]...)
	}

	notifier := m.notifier
	m.mu.Unlock()

	m.persist()

	if notifier != nil {
		// Outbound delivery must never block a symbol worker.
		go func() {
			if err := notifier.Send(context.Background(), notify.FromAlert(&alert)); err != nil {
				m.log.Warn().Err(err).Str("alert_id", alert.ID).Msg("Notification delivery failed")
			}
		}()
	}

	m.log.Info().
		Str("alert_id", alert.ID).
		Str("card_id", alert.CardID).
		Str("kind", string(alert.Kind)).
		Msg("Alert emitted")

	return &alert, true
}

// List returns alerts in emission order, optionally unread only.
func (m *AlertManager) List(unreadOnly bool) []models.Alert {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]models.Alert, 0, len(m.alerts))
	for _, a := range m.alerts {
		if unreadOnly && a.Read {
			continue
		}
		out = append(out, *a)
	}
	return out
}

// MarkRead flips an alert's read flag. The flip is one-way.
func (m *AlertManager) MarkRead(alertID string) error {
	m.mu.Lock()
	var found bool
	for _, a := range m.alerts {
		if a.ID == alertID {
			a.Read = true
			found = true
			break
		}
	}
	m.mu.Unlock()

	if !found {
		return apperrors.ErrAlertNotFound
	}
	m.persist()
	return nil
}

// Dismiss removes an alert. Its dedup key stays recorded, so dismissal
// never re-opens an emission.
func (m *AlertManager) Dismiss(alertID string) error {
	m.mu.Lock()
	var found bool
	for i, a := range m.alerts {
		if a.ID == alertID {
			m.alerts = append(m.alerts[:i], m.alerts[i+1:]...)
			found = true
			break
		}
	}
	m.mu.Unlock()

	if !found {
		return apperrors.ErrAlertNotFound
	}
	m.persist()
	return nil
}

// UnreadCount returns the number of unread alerts.
func (m *AlertManager) UnreadCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, a := range m.alerts {
		if !a.Read {
			n++
		}
	}
	return n
}

// Count returns the number of retained alerts.
func (m *AlertManager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.alerts)
}

// persist mirrors the current alert set and dedup keys to the store,
// best-effort.
func (m *AlertManager) persist() {
	m.mu.Lock()
	s := m.store
	snapshot := make([]*models.Alert, len(m.alerts))
	copy(snapshot, m.alerts)
	keys := make([]string, 0, len(m.seen))
	for k := range m.seen {
		keys = append(keys, k)
	}
	m.mu.Unlock()

	if s == nil {
		return
	}
	if err := s.SaveAlerts(context.Background(), snapshot); err != nil {
		m.log.Warn().Err(err).Msg("Persisting alerts failed")
	}
	if err := s.SaveAlertKeys(context.Background(), keys); err != nil {
		m.log.Warn().Err(err).Msg("Persisting alert keys failed")
	}
}
