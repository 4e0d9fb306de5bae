// Package models provides domain models for the battle-card engine.
package models

import (
	"fmt"
	"time"
)

// CardStatus represents the lifecycle status of a battle card.
type CardStatus string

const (
	CardDraft      CardStatus = "DRAFT"
	CardActive     CardStatus = "ACTIVE"
	CardMonitoring CardStatus = "MONITORING"
	CardClosed     CardStatus = "CLOSED"
	CardCompleted  CardStatus = "COMPLETED"
	CardArchived   CardStatus = "ARCHIVED"
)

// IsTerminal reports whether the status admits no further transitions.
func (s CardStatus) IsTerminal() bool {
	return s == CardClosed || s == CardCompleted || s == CardArchived
}

// ScenarioType is the fixed four-branch taxonomy of a thesis.
type ScenarioType string

const (
	ScenarioPrimary      ScenarioType = "A"
	ScenarioSecondary    ScenarioType = "B"
	ScenarioChaos        ScenarioType = "C"
	ScenarioInvalidation ScenarioType = "D"
)

// Scenario is one forward branch of a battle card's thesis.
type Scenario struct {
	ID               string
	Type             ScenarioType
	TriggerPrice     float64
	TriggerCondition string // free-form description of the trigger
	EntryPrice       float64
	StopLoss         float64
	Target1          float64
	Target2          float64
	Target3          float64
	Probability      int // 0-100
	IsActive         bool
	TriggeredAt      *time.Time // set exactly once, never reset
	ParentID         string     // non-owning back-reference within the same card
}

// IsLong reports the side implied by the entry/stop ordering.
// A stop below the entry means the trade profits on the way up.
func (s *Scenario) IsLong() bool {
	return s.EntryPrice >= s.StopLoss
}

// Fired reports whether the scenario's trigger has ever fired.
func (s *Scenario) Fired() bool {
	return s.TriggeredAt != nil
}

// Targets returns the non-zero target levels in order.
func (s *Scenario) Targets() []float64 {
	var out []float64
	for _, t := range []float64{s.Target1, s.Target2, s.Target3} {
		if t > 0 {
			out = append(out, t)
		}
	}
	return out
}

// Clone returns a deep copy of the scenario.
func (s *Scenario) Clone() *Scenario {
	c := *s
	if s.TriggeredAt != nil {
		t := *s.TriggeredAt
		c.TriggeredAt = &t
	}
	return &c
}

// BattleCard is a single trade thesis with up to four scenarios.
type BattleCard struct {
	ID               string
	Symbol           string
	Timeframe        string
	Thesis           string
	Scenarios        []*Scenario
	Status           CardStatus
	ActiveScenarioID string // mirrors the single active scenario, or empty
	Reassessment     string // free text from the AI collaborator, never parsed
	ReassessedAt     *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Scenario returns the scenario with the given id, or nil.
func (c *BattleCard) Scenario(id string) *Scenario {
	for _, s := range c.Scenarios {
		if s.ID == id {
			return s
		}
	}
	return nil
}

// ActiveScenario returns the currently active scenario, or nil.
func (c *BattleCard) ActiveScenario() *Scenario {
	if c.ActiveScenarioID == "" {
		return nil
	}
	return c.Scenario(c.ActiveScenarioID)
}

// Children returns the scenarios whose ParentID matches the given id.
// The child set is always derived by scanning the scenario list; it is
// never cached, which keeps the object graph acyclic.
func (c *BattleCard) Children(parentID string) []*Scenario {
	var out []*Scenario
	for _, s := range c.Scenarios {
		if s.ParentID != "" && s.ParentID == parentID {
			out = append(out, s)
		}
	}
	return out
}

// ActiveCount returns the number of scenarios with IsActive set.
// The engine invariant holds this at zero or one.
func (c *BattleCard) ActiveCount() int {
	n := 0
	for _, s := range c.Scenarios {
		if s.IsActive {
			n++
		}
	}
	return n
}

// Watchable reports whether the price monitor should evaluate this card.
func (c *BattleCard) Watchable() bool {
	return c.Status == CardActive || c.Status == CardMonitoring
}

// RemainingPaths returns the non-invalidation scenarios that have not
// fired yet. When this is empty the only forward path left is the
// invalidation branch.
func (c *BattleCard) RemainingPaths() []*Scenario {
	var out []*Scenario
	for _, s := range c.Scenarios {
		if s.Type != ScenarioInvalidation && !s.Fired() {
			out = append(out, s)
		}
	}
	return out
}

// Clone returns a deep copy of the card, including its scenarios.
// The monitor snapshots a card before applying a tick so it can roll
// back on an internal consistency error.
func (c *BattleCard) Clone() *BattleCard {
	cp := *c
	if c.ReassessedAt != nil {
		t := *c.ReassessedAt
		cp.ReassessedAt = &t
	}
	cp.Scenarios = make([]*Scenario, len(c.Scenarios))
	for i, s := range c.Scenarios {
		cp.Scenarios[i] = s.Clone()
	}
	return &cp
}

// Restore copies the snapshot's state back into the card.
func (c *BattleCard) Restore(snapshot *BattleCard) {
	*c = *snapshot.Clone()
}

// Validate checks the structural soundness of a card before it enters
// the engine. Dangling ParentID references are allowed (the scenario
// is then treated as a root); self-references are not.
func (c *BattleCard) Validate() error {
	if c.Symbol == "" {
		return fmt.Errorf("symbol is required")
	}
	if len(c.Scenarios) == 0 {
		return fmt.Errorf("at least one scenario is required")
	}
	if len(c.Scenarios) > 4 {
		return fmt.Errorf("at most four scenarios allowed, got %d", len(c.Scenarios))
	}
	seenTypes := make(map[ScenarioType]bool)
	seenIDs := make(map[string]bool)
	for _, s := range c.Scenarios {
		switch s.Type {
		case ScenarioPrimary, ScenarioSecondary, ScenarioChaos, ScenarioInvalidation:
		default:
			return fmt.Errorf("unknown scenario type %q", s.Type)
		}
		if seenTypes[s.Type] {
			return fmt.Errorf("duplicate scenario type %s", s.Type)
		}
		seenTypes[s.Type] = true
		if s.ID != "" {
			if seenIDs[s.ID] {
				return fmt.Errorf("duplicate scenario id %s", s.ID)
			}
			seenIDs[s.ID] = true
		}
		if s.TriggerPrice <= 0 {
			return fmt.Errorf("scenario %s: trigger price must be positive", s.Type)
		}
		if s.EntryPrice <= 0 {
			return fmt.Errorf("scenario %s: entry price must be positive", s.Type)
		}
		if s.StopLoss <= 0 {
			return fmt.Errorf("scenario %s: stop loss must be positive", s.Type)
		}
		if s.Probability < 0 || s.Probability > 100 {
			return fmt.Errorf("scenario %s: probability must be between 0 and 100, got %d", s.Type, s.Probability)
		}
		if s.ParentID != "" && s.ParentID == s.ID {
			return fmt.Errorf("scenario %s: cannot depend on itself", s.Type)
		}
	}
	return nil
}
