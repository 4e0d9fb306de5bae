package engine

import (
	"context"
	"fmt"
	"testing"

	"github.com/rs/zerolog"

	"battlecard-trader/internal/models"
	"battlecard-trader/internal/store"
)

func testAlert(cardID, scenarioID string, kind models.EventKind) models.Alert {
	return models.Alert{
		Type:       models.AlertInfo,
		Kind:       kind,
		CardID:     cardID,
		ScenarioID: scenarioID,
		Title:      fmt.Sprintf("%s %s", cardID, kind),
	}
}

func TestEmitDeduplicatesByCardScenarioKind(t *testing.T) {
	mgr := NewAlertManager(10, zerolog.Nop())

	if _, emitted := mgr.Emit(testAlert("c1", "s1", models.EventTrigger)); !emitted {
		t.Fatal("first emission should succeed")
	}
	if _, emitted := mgr.Emit(testAlert("c1", "s1", models.EventTrigger)); emitted {
		t.Error("duplicate emission should be suppressed")
	}
	// Different kind on the same scenario is a new alert.
	if _, emitted := mgr.Emit(testAlert("c1", "s1", models.EventStop)); !emitted {
		t.Error("different kind should emit")
	}
	// Same kind on a different card is a new alert.
	if _, emitted := mgr.Emit(testAlert("c2", "s1", models.EventTrigger)); !emitted {
		t.Error("different card should emit")
	}
	if mgr.Count() != 3 {
		t.Errorf("Count = %d, want 3", mgr.Count())
	}
}

func TestEmitSaveFailedBypassesDedup(t *testing.T) {
	mgr := NewAlertManager(10, zerolog.Nop())

	for i := 0; i < 3; i++ {
		if _, emitted := mgr.Emit(testAlert("c1", "", models.EventSaveFailed)); !emitted {
			t.Fatalf("save-failed emission %d suppressed", i)
		}
	}
	if mgr.Count() != 3 {
		t.Errorf("Count = %d, want 3", mgr.Count())
	}
}

func TestEmitEvictsOldestAtCapacity(t *testing.T) {
	mgr := NewAlertManager(3, zerolog.Nop())

	var first *models.Alert
	for i := 0; i < 4; i++ {
		a, emitted := mgr.Emit(testAlert("c1", fmt.Sprintf("s%d", i), models.EventTrigger))
		if !emitted {
			t.Fatalf("emission %d suppressed", i)
		}
		if i == 0 {
			first = a
		}
	}

	if mgr.Count() != 3 {
		t.Fatalf("Count = %d, want 3", mgr.Count())
	}
	for _, a := range mgr.List(false) {
		if a.ID == first.ID {
			t.Error("oldest alert should have been evicted")
		}
	}
}

func TestDedupSurvivesEviction(t *testing.T) {
	mgr := NewAlertManager(2, zerolog.Nop())

	mgr.Emit(testAlert("c1", "s0", models.EventTrigger))
	mgr.Emit(testAlert("c1", "s1", models.EventTrigger))
	mgr.Emit(testAlert("c1", "s2", models.EventTrigger)) // evicts s0

	if _, emitted := mgr.Emit(testAlert("c1", "s0", models.EventTrigger)); emitted {
		t.Error("evicted alert's key must stay deduplicated")
	}
}

func TestDedupSurvivesDismiss(t *testing.T) {
	mgr := NewAlertManager(10, zerolog.Nop())

	a, _ := mgr.Emit(testAlert("c1", "s1", models.EventTrigger))
	if err := mgr.Dismiss(a.ID); err != nil {
		t.Fatalf("Dismiss() error: %v", err)
	}
	if mgr.Count() != 0 {
		t.Errorf("Count = %d after dismiss, want 0", mgr.Count())
	}
	if _, emitted := mgr.Emit(testAlert("c1", "s1", models.EventTrigger)); emitted {
		t.Error("dismissal must not re-open the dedup key")
	}
}

func TestMarkReadAndUnreadCount(t *testing.T) {
	mgr := NewAlertManager(10, zerolog.Nop())

	a, _ := mgr.Emit(testAlert("c1", "s1", models.EventTrigger))
	mgr.Emit(testAlert("c1", "s2", models.EventTrigger))

	if mgr.UnreadCount() != 2 {
		t.Fatalf("UnreadCount = %d, want 2", mgr.UnreadCount())
	}
	if err := mgr.MarkRead(a.ID); err != nil {
		t.Fatalf("MarkRead() error: %v", err)
	}
	if mgr.UnreadCount() != 1 {
		t.Errorf("UnreadCount = %d, want 1", mgr.UnreadCount())
	}
	if got := mgr.List(true); len(got) != 1 {
		t.Errorf("List(unread) returned %d alerts, want 1", len(got))
	}
}

func TestMarkReadUnknownAlert(t *testing.T) {
	mgr := NewAlertManager(10, zerolog.Nop())
	if err := mgr.MarkRead("nope"); err == nil {
		t.Error("expected error for unknown alert id")
	}
}

func TestLoadRebuildsDedupTable(t *testing.T) {
	ctx := context.Background()
	ms := store.NewMemoryStore()

	mgr := NewAlertManager(10, zerolog.Nop())
	mgr.SetStore(ms)
	mgr.Emit(testAlert("c1", "s1", models.EventTrigger))
	mgr.Emit(testAlert("c1", "", models.EventSaveFailed))

	// A fresh manager over the same store must remember the trigger key
	// but keep save-failure alerts repeatable.
	fresh := NewAlertManager(10, zerolog.Nop())
	fresh.SetStore(ms)
	if err := fresh.Load(ctx); err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if fresh.Count() != 2 {
		t.Fatalf("Count = %d after load, want 2", fresh.Count())
	}
	if _, emitted := fresh.Emit(testAlert("c1", "s1", models.EventTrigger)); emitted {
		t.Error("persisted dedup key not honored after reload")
	}
	if _, emitted := fresh.Emit(testAlert("c1", "", models.EventSaveFailed)); !emitted {
		t.Error("save-failed alerts must stay repeatable after reload")
	}
}

func TestDedupSurvivesEvictionAcrossReload(t *testing.T) {
	ctx := context.Background()
	ms := store.NewMemoryStore()

	mgr := NewAlertManager(2, zerolog.Nop())
	mgr.SetStore(ms)
	mgr.Emit(testAlert("c1", "s0", models.EventTrigger))
	mgr.Emit(testAlert("c1", "s1", models.EventTrigger))
	mgr.Emit(testAlert("c1", "s2", models.EventTrigger)) // evicts s0

	// The s0 alert is gone from the retained set, but its key is
	// persisted and must still suppress after a restart.
	fresh := NewAlertManager(2, zerolog.Nop())
	fresh.SetStore(ms)
	if err := fresh.Load(ctx); err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if _, emitted := fresh.Emit(testAlert("c1", "s0", models.EventTrigger)); emitted {
		t.Error("evicted alert's key must stay deduplicated after reload")
	}
}

func TestDedupSurvivesDismissAcrossReload(t *testing.T) {
	ctx := context.Background()
	ms := store.NewMemoryStore()

	mgr := NewAlertManager(10, zerolog.Nop())
	mgr.SetStore(ms)
	a, _ := mgr.Emit(testAlert("c1", "s1", models.EventTrigger))
	if err := mgr.Dismiss(a.ID); err != nil {
		t.Fatalf("Dismiss() error: %v", err)
	}

	fresh := NewAlertManager(10, zerolog.Nop())
	fresh.SetStore(ms)
	if err := fresh.Load(ctx); err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if fresh.Count() != 0 {
		t.Fatalf("Count = %d after reload, want 0", fresh.Count())
	}
	if _, emitted := fresh.Emit(testAlert("c1", "s1", models.EventTrigger)); emitted {
		t.Error("dismissed alert's key must stay deduplicated after reload")
	}
}

func TestEmitAssignsEmissionTimestampAndOrder(t *testing.T) {
	mgr := NewAlertManager(10, zerolog.Nop())

	a1, _ := mgr.Emit(testAlert("c1", "s1", models.EventTrigger))
	a2, _ := mgr.Emit(testAlert("c1", "s2", models.EventTrigger))

	if a1.Timestamp.IsZero() || a2.Timestamp.IsZero() {
		t.Fatal("emission must assign timestamps")
	}
	if a2.Timestamp.Before(a1.Timestamp) {
		t.Error("timestamps must be non-decreasing in emission order")
	}
	list := mgr.List(false)
	if len(list) != 2 || list[0].ID != a1.ID {
		t.Error("List must preserve emission order")
	}
}
