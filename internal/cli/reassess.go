package cli

import (
	"github.com/spf13/cobra"

	"battlecard-trader/internal/agents"
	apperrors "battlecard-trader/internal/errors"
)

// addReassessCommands adds the AI reassessment command.
func addReassessCommands(rootCmd *cobra.Command, app *App) {
	cmd := &cobra.Command{
		Use:   "reassess <card-id>",
		Short: "Ask the AI to reassess a battle card's thesis",
		Long: `Send the card's thesis, scenario levels and fired-scenario history to the
configured LLM and attach the free-text response to the card. The engine
never parses or acts on the response.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if app.Store == nil {
				return apperrors.ErrDatabaseError
			}
			if app.LLMClient == nil {
				output.Error("No OpenAI API key configured; set OPENAI_API_KEY or credentials.toml")
				return apperrors.ErrAgentUnavailable
			}

			card, err := app.Store.GetBattleCard(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			price, _ := cmd.Flags().GetFloat64("price")
			reassessor := agents.NewReassessor(app.LLMClient)
			if err := reassessor.Reassess(cmd.Context(), card, price); err != nil {
				return err
			}
			if err := app.Store.SaveBattleCard(cmd.Context(), card); err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(map[string]string{
					"card_id":      card.ID,
					"reassessment": card.Reassessment,
				})
			}
			output.Bold("Reassessment for %s:", card.Symbol)
			output.Printf("%s\n", card.Reassessment)
			return nil
		},
	}
	cmd.Flags().Float64("price", 0, "current price to include in the prompt")
	rootCmd.AddCommand(cmd)
}
