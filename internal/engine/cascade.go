package engine

import (
	"fmt"

	apperrors "battlecard-trader/internal/errors"
	"battlecard-trader/internal/models"
)

// CascadeResult is the activation/deactivation set computed for a fired
// scenario. Child scenarios are never auto-activated: a parent firing
// merely unlocks them for their own trigger evaluation.
type CascadeResult struct {
	Activate   []string
	Deactivate []string
}

// Resolve computes the cascade for a (non-stop, non-target) trigger
// fire: every other currently active scenario is deactivated and the
// fired scenario activated. The output must leave exactly one scenario
// active; anything else is an internal consistency defect, not a
// user-facing error.
func Resolve(card *models.BattleCard, fired *models.Scenario) (CascadeResult, error) {
	if fired == nil || card.Scenario(fired.ID) == nil {
		return CascadeResult{}, apperrors.NewInvariantError(card.ID, "cascade",
			"fired scenario does not belong to card")
	}

	var result CascadeResult
	for _, s := range card.Scenarios {
		if s.IsActive && s.ID != fired.ID {
			result.Deactivate = append(result.Deactivate, s.ID)
		}
	}
	result.Activate = append(result.Activate, fired.ID)

	// Post-condition: applying the result leaves exactly one active.
	active := 0
	for _, s := range card.Scenarios {
		on := s.IsActive
		for _, d := range result.Deactivate {
			if s.ID == d {
				on = false
			}
		}
		for _, a := range result.Activate {
			if s.ID == a {
				on = true
			}
		}
		if on {
			active++
		}
	}
	if active != 1 {
		return CascadeResult{}, apperrors.NewInvariantError(card.ID, "single-active",
			fmt.Sprintf("cascade would leave %d scenarios active", active))
	}

	return result, nil
}

// ResolveBreach computes the cascade for a stop-loss breach: the
// breached scenario is deactivated and no sibling is promoted.
func ResolveBreach(card *models.BattleCard, breached *models.Scenario) (CascadeResult, error) {
	if breached == nil || card.Scenario(breached.ID) == nil {
		return CascadeResult{}, apperrors.NewInvariantError(card.ID, "cascade",
			"breached scenario does not belong to card")
	}
	return CascadeResult{Deactivate: []string{breached.ID}}, nil
}

// Apply mutates the card according to a cascade result and re-checks
// the single-active invariant, keeping ActiveScenarioID in sync with
// the scenario flags.
func Apply(card *models.BattleCard, result CascadeResult) error {
	for _, id := range result.Deactivate {
		if s := card.Scenario(id); s != nil {
			s.IsActive = false
			if card.ActiveScenarioID == id {
				card.ActiveScenarioID = ""
			}
		}
	}
	for _, id := range result.Activate {
		if s := card.Scenario(id); s != nil {
			s.IsActive = true
			card.ActiveScenarioID = id
		}
	}

	if n := card.ActiveCount(); n > 1 {
		return apperrors.NewInvariantError(card.ID, "single-active",
			fmt.Sprintf("%d scenarios active after cascade", n))
	}
	return nil
}
