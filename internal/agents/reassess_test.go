package agents

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	apperrors "battlecard-trader/internal/errors"
	"battlecard-trader/internal/models"
)

type fakeLLM struct {
	response   string
	err        error
	lastSystem string
	lastUser   string
}

func (f *fakeLLM) Complete(ctx context.Context, prompt string) (string, error) {
	f.lastUser = prompt
	return f.response, f.err
}

func (f *fakeLLM) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	f.lastSystem = systemPrompt
	f.lastUser = userPrompt
	return f.response, f.err
}

func reassessCard() *models.BattleCard {
	fired := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	return &models.BattleCard{
		ID:        "card-1",
		Symbol:    "BTCUSDT",
		Timeframe: "4h",
		Thesis:    "range breakout continuation",
		Status:    models.CardMonitoring,
		Scenarios: []*models.Scenario{
			{ID: "s-a", Type: models.ScenarioPrimary, TriggerPrice: 105,
				EntryPrice: 100, StopLoss: 95, Target1: 110,
				Probability: 55, IsActive: true, TriggeredAt: &fired},
			{ID: "s-b", Type: models.ScenarioSecondary, TriggerPrice: 98,
				EntryPrice: 100, StopLoss: 95, ParentID: "s-a",
				TriggerCondition: "pullback holds above support"},
		},
		ActiveScenarioID: "s-a",
	}
}

func TestReassessAttachesResponse(t *testing.T) {
	llm := &fakeLLM{response: "  thesis intact, watch the retest  \n"}
	r := NewReassessor(llm)
	card := reassessCard()

	if err := r.Reassess(context.Background(), card, 107.5); err != nil {
		t.Fatalf("Reassess() error: %v", err)
	}

	if card.Reassessment != "thesis intact, watch the retest" {
		t.Errorf("Reassessment = %q, want trimmed response", card.Reassessment)
	}
	if card.ReassessedAt == nil {
		t.Fatal("ReassessedAt not set")
	}
	if llm.lastSystem == "" {
		t.Error("system prompt not sent")
	}
}

func TestReassessPromptContents(t *testing.T) {
	llm := &fakeLLM{response: "ok"}
	r := NewReassessor(llm)
	card := reassessCard()

	if err := r.Reassess(context.Background(), card, 107.5); err != nil {
		t.Fatalf("Reassess() error: %v", err)
	}

	for _, want := range []string{
		"BTCUSDT", "4h", "range breakout continuation",
		"107.5000",          // current price
		"trigger 105.0000",  // scenario level
		"fired at",          // trigger history
		"depends on scenario A",
		"pullback holds above support",
	} {
		if !strings.Contains(llm.lastUser, want) {
			t.Errorf("prompt missing %q:\n%s", want, llm.lastUser)
		}
	}
}

func TestBuildPromptIsDeterministic(t *testing.T) {
	card := reassessCard()
	if BuildPrompt(card, 107.5) != BuildPrompt(card, 107.5) {
		t.Error("identical card state must render identical prompts")
	}
}

func TestReassessWrapsLLMError(t *testing.T) {
	llm := &fakeLLM{err: errors.New("rate limited")}
	r := NewReassessor(llm)
	card := reassessCard()

	err := r.Reassess(context.Background(), card, 100)
	var agentErr *apperrors.AgentError
	if !errors.As(err, &agentErr) {
		t.Fatalf("expected AgentError, got %v", err)
	}
	if card.Reassessment != "" {
		t.Error("failed reassessment must not touch the card")
	}
}

func TestReassessWithoutClient(t *testing.T) {
	r := NewReassessor(nil)
	err := r.Reassess(context.Background(), reassessCard(), 100)
	if !errors.Is(err, apperrors.ErrAgentUnavailable) {
		t.Errorf("err = %v, want ErrAgentUnavailable", err)
	}
}
