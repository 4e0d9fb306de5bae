package models

import (
	"testing"
	"time"
)

func validScenario(typ ScenarioType) *Scenario {
	return &Scenario{
		ID:           "s-" + string(typ),
		Type:         typ,
		TriggerPrice: 105,
		EntryPrice:   100,
		StopLoss:     95,
		Target1:      110,
		Probability:  60,
	}
}

func validCard() *BattleCard {
	return &BattleCard{
		ID:        "card-1",
		Symbol:    "BTCUSDT",
		Status:    CardDraft,
		Scenarios: []*Scenario{validScenario(ScenarioPrimary), validScenario(ScenarioSecondary)},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*BattleCard)
		wantErr bool
	}{
		{"valid card", func(c *BattleCard) {}, false},
		{"missing symbol", func(c *BattleCard) { c.Symbol = "" }, true},
		{"no scenarios", func(c *BattleCard) { c.Scenarios = nil }, true},
		{"five scenarios", func(c *BattleCard) {
			c.Scenarios = append(c.Scenarios,
				validScenario(ScenarioChaos), validScenario(ScenarioInvalidation))
			extra := validScenario(ScenarioPrimary)
			extra.ID = "s-extra"
			c.Scenarios = append(c.Scenarios, extra)
		}, true},
		{"duplicate type", func(c *BattleCard) { c.Scenarios[1].Type = ScenarioPrimary }, true},
		{"unknown type", func(c *BattleCard) { c.Scenarios[0].Type = "X" }, true},
		{"duplicate id", func(c *BattleCard) { c.Scenarios[1].ID = c.Scenarios[0].ID }, true},
		{"zero trigger", func(c *BattleCard) { c.Scenarios[0].TriggerPrice = 0 }, true},
		{"negative entry", func(c *BattleCard) { c.Scenarios[0].EntryPrice = -1 }, true},
		{"zero stop", func(c *BattleCard) { c.Scenarios[0].StopLoss = 0 }, true},
		{"probability over 100", func(c *BattleCard) { c.Scenarios[0].Probability = 101 }, true},
		{"self parent", func(c *BattleCard) { c.Scenarios[0].ParentID = c.Scenarios[0].ID }, true},
		{"dangling parent allowed", func(c *BattleCard) { c.Scenarios[0].ParentID = "gone" }, false},
		{"full four scenarios", func(c *BattleCard) {
			c.Scenarios = append(c.Scenarios,
				validScenario(ScenarioChaos), validScenario(ScenarioInvalidation))
		}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			card := validCard()
			tt.mutate(card)
			err := card.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestIsLong(t *testing.T) {
	long := &Scenario{EntryPrice: 100, StopLoss: 95}
	if !long.IsLong() {
		t.Error("stop below entry should read as long")
	}
	short := &Scenario{EntryPrice: 95, StopLoss: 100}
	if short.IsLong() {
		t.Error("stop above entry should read as short")
	}
}

func TestTargetsSkipsUnsetLevels(t *testing.T) {
	s := &Scenario{Target1: 110, Target3: 120}
	got := s.Targets()
	if len(got) != 2 || got[0] != 110 || got[1] != 120 {
		t.Errorf("Targets() = %v, want [110 120]", got)
	}
}

func TestWatchable(t *testing.T) {
	card := validCard()
	for status, want := range map[CardStatus]bool{
		CardDraft:      false,
		CardActive:     true,
		CardMonitoring: true,
		CardClosed:     false,
		CardCompleted:  false,
		CardArchived:   false,
	} {
		card.Status = status
		if card.Watchable() != want {
			t.Errorf("Watchable() in %s = %v, want %v", status, card.Watchable(), want)
		}
	}
}

func TestRemainingPaths(t *testing.T) {
	card := validCard()
	inval := validScenario(ScenarioInvalidation)
	card.Scenarios = append(card.Scenarios, inval)

	if got := len(card.RemainingPaths()); got != 2 {
		t.Fatalf("RemainingPaths() = %d, want 2 (invalidation excluded)", got)
	}

	now := time.Now()
	card.Scenarios[0].TriggeredAt = &now
	if got := len(card.RemainingPaths()); got != 1 {
		t.Errorf("RemainingPaths() = %d after one fire, want 1", got)
	}
	card.Scenarios[1].TriggeredAt = &now
	if got := len(card.RemainingPaths()); got != 0 {
		t.Errorf("RemainingPaths() = %d after all fires, want 0", got)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	card := validCard()
	now := time.Now()
	card.Scenarios[0].TriggeredAt = &now

	clone := card.Clone()
	clone.Status = CardClosed
	clone.Scenarios[0].IsActive = true
	later := now.Add(time.Hour)
	clone.Scenarios[0].TriggeredAt = &later

	if card.Status == CardClosed {
		t.Error("mutating clone status leaked into original")
	}
	if card.Scenarios[0].IsActive {
		t.Error("mutating clone scenario leaked into original")
	}
	if !card.Scenarios[0].TriggeredAt.Equal(now) {
		t.Error("mutating clone TriggeredAt leaked into original")
	}
}

func TestRestoreRollsBackMutations(t *testing.T) {
	card := validCard()
	card.Status = CardActive
	snapshot := card.Clone()

	now := time.Now()
	card.Status = CardMonitoring
	card.Scenarios[0].IsActive = true
	card.Scenarios[0].TriggeredAt = &now
	card.ActiveScenarioID = card.Scenarios[0].ID

	card.Restore(snapshot)

	if card.Status != CardActive {
		t.Errorf("status = %s after restore, want ACTIVE", card.Status)
	}
	if card.Scenarios[0].IsActive || card.Scenarios[0].Fired() {
		t.Error("scenario mutations survived restore")
	}
	if card.ActiveScenarioID != "" {
		t.Errorf("ActiveScenarioID = %q after restore", card.ActiveScenarioID)
	}
}
