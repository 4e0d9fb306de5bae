package store

import (
	"context"
	"sync"

	"battlecard-trader/internal/errors"
	"battlecard-trader/internal/models"
)

// MemoryStore is an in-memory DataStore. It backs tests and the replay
// mode, and can inject save failures to exercise the engine's
// write-back retry path.
type MemoryStore struct {
	mu     sync.Mutex
	cards  map[string]*models.BattleCard
	order  []string
	alerts []*models.Alert
	keys   map[string]struct{}

	// FailSaves makes the next N SaveBattleCard calls fail.
	FailSaves int
	SaveCount int
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		cards: make(map[string]*models.BattleCard),
		keys:  make(map[string]struct{}),
	}
}

// LoadBattleCards returns copies of all stored cards in insert order.
func (s *MemoryStore) LoadBattleCards(ctx context.Context) ([]*models.BattleCard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*models.BattleCard, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.cards[id].Clone())
	}
	return out, nil
}

// GetBattleCard returns a copy of the card with the given id.
func (s *MemoryStore) GetBattleCard(ctx context.Context, id string) (*models.BattleCard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	card, ok := s.cards[id]
	if !ok {
		return nil, errors.ErrCardNotFound
	}
	return card.Clone(), nil
}

// SaveBattleCard stores a copy of the card.
func (s *MemoryStore) SaveBattleCard(ctx context.Context, card *models.BattleCard) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.SaveCount++
	if s.FailSaves > 0 {
		s.FailSaves--
		return errors.ErrDatabaseError
	}

	if _, ok := s.cards[card.ID]; !ok {
		s.order = append(s.order, card.ID)
	}
	s.cards[card.ID] = card.Clone()
	return nil
}

// DeleteBattleCard removes a card.
func (s *MemoryStore) DeleteBattleCard(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.cards[id]; !ok {
		return errors.ErrCardNotFound
	}
	delete(s.cards, id)
	for i, cid := range s.order {
		if cid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// LoadAlerts returns copies of the stored alerts in emission order.
func (s *MemoryStore) LoadAlerts(ctx context.Context) ([]*models.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*models.Alert, len(s.alerts))
	for i, a := range s.alerts {
		cp := *a
		out[i] = &cp
	}
	return out, nil
}

// SaveAlerts replaces the stored alert set.
func (s *MemoryStore) SaveAlerts(ctx context.Context, alerts []*models.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.alerts = make([]*models.Alert, len(alerts))
	for i, a := range alerts {
		cp := *a
		s.alerts[i] = &cp
	}
	return nil
}

// LoadAlertKeys returns the recorded alert dedup keys.
func (s *MemoryStore) LoadAlertKeys(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, 0, len(s.keys))
	for k := range s.keys {
		out = append(out, k)
	}
	return out, nil
}

// SaveAlertKeys records alert dedup keys. Keys only ever accumulate.
func (s *MemoryStore) SaveAlertKeys(ctx context.Context, keys []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, k := range keys {
		s.keys[k] = struct{}{}
	}
	return nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }
