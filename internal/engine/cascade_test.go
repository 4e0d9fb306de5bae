package engine

import (
	"errors"
	"testing"

	apperrors "battlecard-trader/internal/errors"
)

func TestResolveActivatesFiredScenario(t *testing.T) {
	a := longBreakout()
	b := longPullback()
	card := cardWith(a, b)

	result, err := Resolve(card, a)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if err := Apply(card, result); err != nil {
		t.Fatalf("Apply() error: %v", err)
	}

	if !a.IsActive {
		t.Error("fired scenario should be active")
	}
	if b.IsActive {
		t.Error("sibling should not be activated")
	}
	if card.ActiveScenarioID != a.ID {
		t.Errorf("ActiveScenarioID = %q, want %q", card.ActiveScenarioID, a.ID)
	}
}

func TestResolveDeactivatesPreviousActive(t *testing.T) {
	a := longBreakout()
	b := longPullback()
	a.IsActive = true
	card := cardWith(a, b)
	card.ActiveScenarioID = a.ID

	result, err := Resolve(card, b)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if err := Apply(card, result); err != nil {
		t.Fatalf("Apply() error: %v", err)
	}

	if a.IsActive {
		t.Error("previously active scenario should be deactivated")
	}
	if !b.IsActive {
		t.Error("newly fired scenario should be active")
	}
	if card.ActiveScenarioID != b.ID {
		t.Errorf("ActiveScenarioID = %q, want %q", card.ActiveScenarioID, b.ID)
	}
	if card.ActiveCount() != 1 {
		t.Errorf("ActiveCount = %d, want 1", card.ActiveCount())
	}
}

func TestResolveRefiringActiveScenarioIsStable(t *testing.T) {
	a := longBreakout()
	a.IsActive = true
	card := cardWith(a)
	card.ActiveScenarioID = a.ID

	result, err := Resolve(card, a)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if err := Apply(card, result); err != nil {
		t.Fatalf("Apply() error: %v", err)
	}
	if !a.IsActive || card.ActiveCount() != 1 {
		t.Error("re-resolving the active scenario must leave it active")
	}
}

func TestResolveRejectsForeignScenario(t *testing.T) {
	card := cardWith(longBreakout())
	foreign := longPullback()

	_, err := Resolve(card, foreign)
	var invErr *apperrors.InvariantError
	if !errors.As(err, &invErr) {
		t.Fatalf("expected InvariantError, got %v", err)
	}
}

func TestResolveBreachDoesNotPromoteSibling(t *testing.T) {
	a := longBreakout()
	b := longPullback()
	a.IsActive = true
	card := cardWith(a, b)
	card.ActiveScenarioID = a.ID

	result, err := ResolveBreach(card, a)
	if err != nil {
		t.Fatalf("ResolveBreach() error: %v", err)
	}
	if err := Apply(card, result); err != nil {
		t.Fatalf("Apply() error: %v", err)
	}

	if a.IsActive || b.IsActive {
		t.Error("breach must leave no scenario active")
	}
	if card.ActiveScenarioID != "" {
		t.Errorf("ActiveScenarioID should be cleared, got %q", card.ActiveScenarioID)
	}
}

func TestApplyDetectsMultipleActive(t *testing.T) {
	a := longBreakout()
	b := longPullback()
	a.IsActive = true
	card := cardWith(a, b)

	// A result that activates b without deactivating a is corrupt.
	err := Apply(card, CascadeResult{Activate: []string{b.ID}})
	var invErr *apperrors.InvariantError
	if !errors.As(err, &invErr) {
		t.Fatalf("expected InvariantError, got %v", err)
	}
}
