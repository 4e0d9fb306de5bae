package engine

import (
	"time"

	apperrors "battlecard-trader/internal/errors"
	"battlecard-trader/internal/models"
)

// The status machine is draft → active → monitoring → {closed,
// completed, archived}. The engine's own authority is limited to
// active→monitoring (first scenario fire) and monitoring→closed
// (invalidation); everything else is a user action.

// MarkMonitoring moves a card to MONITORING the instant any scenario
// first fires. Returns true when the status actually changed. A
// terminal card reaching this path is an internal defect.
func MarkMonitoring(card *models.BattleCard) (bool, error) {
	if card.Status.IsTerminal() {
		return false, apperrors.NewInvariantError(card.ID, "terminal-transition",
			"engine transition attempted on "+string(card.Status)+" card")
	}
	if card.Status == models.CardMonitoring {
		return false, nil
	}
	card.Status = models.CardMonitoring
	return true, nil
}

// CloseOnInvalidation closes a card when its invalidation branch fires
// or no non-invalidation path remains.
func CloseOnInvalidation(card *models.BattleCard) error {
	if card.Status.IsTerminal() {
		return apperrors.NewInvariantError(card.ID, "terminal-transition",
			"engine transition attempted on "+string(card.Status)+" card")
	}
	card.Status = models.CardClosed
	return nil
}

// Activate commits a draft card so the monitor starts watching its
// instrument. User action.
func Activate(card *models.BattleCard) error {
	if card.Status.IsTerminal() {
		return apperrors.ErrTerminalState
	}
	if card.Status != models.CardDraft {
		return nil
	}
	card.Status = models.CardActive
	card.UpdatedAt = time.Now()
	return nil
}

// Close closes a card. User action.
func Close(card *models.BattleCard) error {
	return userTransition(card, models.CardClosed)
}

// Complete marks a card completed. User action.
func Complete(card *models.BattleCard) error {
	return userTransition(card, models.CardCompleted)
}

// Archive archives a card. User action; the engine never archives.
func Archive(card *models.BattleCard) error {
	return userTransition(card, models.CardArchived)
}

func userTransition(card *models.BattleCard, to models.CardStatus) error {
	if card.Status.IsTerminal() {
		return apperrors.ErrTerminalState
	}
	card.Status = to
	card.UpdatedAt = time.Now()
	return nil
}
