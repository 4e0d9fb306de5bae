// Package engine implements the price-trigger evaluation engine: pure
// trigger/breach detection, scenario cascade resolution, the battle-card
// status machine, alert bookkeeping and the price monitor loop.
package engine

import (
	"math"
	"sort"

	"battlecard-trader/internal/models"
)

// Direction is the direction of a price crossing.
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)

// Event is one detected crossing for a scenario. Events carry the
// threshold that was crossed so a single tick jumping through several
// levels can be ordered along the tick's path.
type Event struct {
	Scenario  *models.Scenario
	Kind      models.EventKind
	Direction Direction
	Threshold float64
}

// TriggerDirection infers the direction a scenario's entry trigger
// must be crossed in. The side comes from the entry/stop ordering and
// the breakout-versus-pullback distinction from the trigger/entry
// ordering; the user is never asked for a direction separately.
func TriggerDirection(s *models.Scenario) Direction {
	if s.IsLong() {
		if s.TriggerPrice >= s.EntryPrice {
			return DirectionUp // breakout above
		}
		return DirectionDown // entry on pullback
	}
	if s.TriggerPrice <= s.EntryPrice {
		return DirectionDown // breakdown below
	}
	return DirectionUp // short entry on pullback
}

// crossed reports whether moving from prev to cur crosses level in the
// given direction. A tick landing exactly on the level counts as
// crossed, so large single-tick moves cannot skip a trigger.
func crossed(prev, cur, level float64, dir Direction) bool {
	if level <= 0 || math.IsNaN(level) {
		return false
	}
	if dir == DirectionUp {
		return prev < level && cur >= level
	}
	return prev > level && cur <= level
}

// eligible reports whether a scenario's entry trigger may be evaluated.
// A child scenario is locked until its parent has fired.
func eligible(card *models.BattleCard, s *models.Scenario) bool {
	if s.ParentID == "" {
		return true
	}
	parent := card.Scenario(s.ParentID)
	if parent == nil {
		// Dangling parent reference; treat the scenario as a root.
		return true
	}
	return parent.Fired()
}

// Evaluate computes the events produced for one scenario by a price
// move from prev to cur. It is a pure function: re-evaluating the same
// pair after TriggeredAt is set yields no trigger event (idempotence),
// and stop/target levels are only consulted while the scenario is
// active or became active on this same tick.
func Evaluate(card *models.BattleCard, s *models.Scenario, prev, cur float64) []Event {
	var events []Event

	firedNow := false
	if !s.Fired() && eligible(card, s) {
		dir := TriggerDirection(s)
		if crossed(prev, cur, s.TriggerPrice, dir) {
			events = append(events, Event{
				Scenario:  s,
				Kind:      models.EventTrigger,
				Direction: dir,
				Threshold: s.TriggerPrice,
			})
			firedNow = true
		}
	}

	// A tick that jumps through both the trigger and the stop reports
	// both; the caller orders them along the tick's path.
	if s.IsActive || firedNow {
		stopDir := DirectionDown
		if !s.IsLong() {
			stopDir = DirectionUp
		}
		if crossed(prev, cur, s.StopLoss, stopDir) {
			events = append(events, Event{
				Scenario:  s,
				Kind:      models.EventStop,
				Direction: stopDir,
				Threshold: s.StopLoss,
			})
		}

		targetDir := DirectionUp
		if !s.IsLong() {
			targetDir = DirectionDown
		}
		targetKinds := []models.EventKind{models.EventTarget1, models.EventTarget2, models.EventTarget3}
		for i, level := range []float64{s.Target1, s.Target2, s.Target3} {
			if crossed(prev, cur, level, targetDir) {
				events = append(events, Event{
					Scenario:  s,
					Kind:      targetKinds[i],
					Direction: targetDir,
					Threshold: level,
				})
			}
		}
	}

	return events
}

// EvaluateCard evaluates every scenario of a card against a price move
// and returns the events sorted along the tick's path: the threshold
// closest to the previous price comes first.
func EvaluateCard(card *models.BattleCard, prev, cur float64) []Event {
	var events []Event
	for _, s := range card.Scenarios {
		events = append(events, Evaluate(card, s, prev, cur)...)
	}

	sort.SliceStable(events, func(i, j int) bool {
		return math.Abs(events[i].Threshold-prev) < math.Abs(events[j].Threshold-prev)
	})

	return events
}
