package agents

import (
	"context"
	"fmt"
	"strings"
	"time"

	apperrors "battlecard-trader/internal/errors"
	"battlecard-trader/internal/models"
)

const reassessSystemPrompt = `You are a trading analyst reviewing a battle card: a pre-planned
trade thesis with branching price scenarios. You will be given the card's thesis, its scenarios
with trigger, stop and target levels, which scenarios have fired, and the current price.
Reassess the thesis: is it still intact, weakened, or invalidated? Which remaining scenario is
most likely next, and should any level be re-examined? Answer in a few short paragraphs of
plain prose. Do not output JSON or bullet lists.`

// Reassessor asks the LLM to re-evaluate a battle card's thesis
// against what has actually happened. The response is attached to the
// card verbatim; the engine never parses it or acts on it.
type Reassessor struct {
	llm LLMClient
}

// NewReassessor creates a reassessor over the given LLM client.
func NewReassessor(llm LLMClient) *Reassessor {
	return &Reassessor{llm: llm}
}

// Reassess runs one reassessment and writes the result onto the card.
func (r *Reassessor) Reassess(ctx context.Context, card *models.BattleCard, currentPrice float64) error {
	if r.llm == nil {
		return apperrors.ErrAgentUnavailable
	}

	prompt := BuildPrompt(card, currentPrice)
	response, err := r.llm.CompleteWithSystem(ctx, reassessSystemPrompt, prompt)
	if err != nil {
		return apperrors.NewAgentError("reassess", err)
	}

	card.Reassessment = strings.TrimSpace(response)
	now := time.Now()
	card.ReassessedAt = &now
	card.UpdatedAt = now
	return nil
}

// BuildPrompt renders the card state into the user prompt. The layout
// is deterministic so repeated calls over an unchanged card produce
// identical prompts.
func BuildPrompt(card *models.BattleCard, currentPrice float64) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Battle card: %s (%s)\n", card.Symbol, card.Timeframe)
	fmt.Fprintf(&b, "Status: %s\n", card.Status)
	fmt.Fprintf(&b, "Current price: %.4f\n", currentPrice)
	fmt.Fprintf(&b, "Thesis: %s\n\n", card.Thesis)

	b.WriteString("Scenarios:\n")
	for _, s := range card.Scenarios {
		state := "waiting"
		if s.Fired() {
			state = fmt.Sprintf("fired at %s", s.TriggeredAt.Format(time.RFC3339))
		}
		if s.IsActive {
			state += ", active"
		}
		fmt.Fprintf(&b, "  %s (%s): trigger %.4f, entry %.4f, stop %.4f",
			s.Type, state, s.TriggerPrice, s.EntryPrice, s.StopLoss)
		for i, target := range s.Targets() {
			fmt.Fprintf(&b, ", target%d %.4f", i+1, target)
		}
		if s.Probability > 0 {
			fmt.Fprintf(&b, ", probability %d%%", s.Probability)
		}
		if s.ParentID != "" {
			parentType := "?"
			if p := card.Scenario(s.ParentID); p != nil {
				parentType = string(p.Type)
			}
			fmt.Fprintf(&b, ", depends on scenario %s", parentType)
		}
		if s.TriggerCondition != "" {
			fmt.Fprintf(&b, "\n    condition: %s", s.TriggerCondition)
		}
		b.WriteString("\n")
	}

	if card.Reassessment != "" && card.ReassessedAt != nil {
		fmt.Fprintf(&b, "\nPrevious reassessment (%s):\n%s\n",
			card.ReassessedAt.Format(time.RFC3339), card.Reassessment)
	}

	return b.String()
}
