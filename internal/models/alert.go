package models

import "time"

// AlertType is the display severity of an alert.
type AlertType string

const (
	AlertInfo    AlertType = "info"
	AlertSuccess AlertType = "success"
	AlertWarning AlertType = "warning"
	AlertDanger  AlertType = "danger"
)

// EventKind identifies what kind of engine event produced an alert.
// It is part of the alert deduplication key.
type EventKind string

const (
	EventTrigger     EventKind = "trigger"
	EventStop        EventKind = "stop"
	EventTarget1     EventKind = "target1"
	EventTarget2     EventKind = "target2"
	EventTarget3     EventKind = "target3"
	EventMonitoring  EventKind = "monitoring"  // card entered MONITORING
	EventInvalidated EventKind = "invalidated" // card closed by invalidation
	EventClosed      EventKind = "closed"      // card closed by user action
	EventSaveFailed  EventKind = "save_failed" // persistence write-back gave up
)

// Alert is a deduplicated notification record. Alerts reference cards
// and scenarios by id only, so an alert stays valid after its card is
// archived.
type Alert struct {
	ID         string
	Type       AlertType
	Title      string
	Message    string
	CardID     string
	ScenarioID string
	Kind       EventKind
	Timestamp  time.Time // assigned at emission, not at the originating tick
	Read       bool
}

// DedupKey returns the (card, scenario, kind) identity used to suppress
// duplicate emissions for the lifetime of the system.
func (a *Alert) DedupKey() string {
	return a.CardID + "|" + a.ScenarioID + "|" + string(a.Kind)
}
