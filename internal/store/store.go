// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"

	"battlecard-trader/internal/models"
)

// DataStore defines the interface for battle-card and alert persistence.
// The engine calls Save* after every mutation and re-derives its
// subscription set from LoadBattleCards on restart; it never assumes
// durability beyond what the implementation guarantees.
type DataStore interface {
	// Battle cards
	LoadBattleCards(ctx context.Context) ([]*models.BattleCard, error)
	GetBattleCard(ctx context.Context, id string) (*models.BattleCard, error)
	SaveBattleCard(ctx context.Context, card *models.BattleCard) error
	DeleteBattleCard(ctx context.Context, id string) error

	// Alerts. The dedup keys outlive the alerts themselves: an evicted
	// or dismissed alert must stay suppressed across restarts.
	LoadAlerts(ctx context.Context) ([]*models.Alert, error)
	SaveAlerts(ctx context.Context, alerts []*models.Alert) error
	LoadAlertKeys(ctx context.Context) ([]string, error)
	SaveAlertKeys(ctx context.Context, keys []string) error

	// Lifecycle
	Close() error
}
