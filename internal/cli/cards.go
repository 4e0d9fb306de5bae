package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"battlecard-trader/internal/engine"
	apperrors "battlecard-trader/internal/errors"
	"battlecard-trader/internal/models"
	"battlecard-trader/pkg/id"
)

// addCardCommands adds battle card management commands.
func addCardCommands(rootCmd *cobra.Command, app *App) {
	cmd := &cobra.Command{
		Use:     "cards",
		Aliases: []string{"card"},
		Short:   "Battle card management",
		Long:    "Create, inspect and transition battle cards.",
	}

	cmd.AddCommand(newCardsListCmd(app))
	cmd.AddCommand(newCardsShowCmd(app))
	cmd.AddCommand(newCardsAddCmd(app))
	cmd.AddCommand(newCardsTransitionCmd(app, "activate", "Commit a draft card for monitoring", engine.Activate))
	cmd.AddCommand(newCardsTransitionCmd(app, "close", "Close a card", engine.Close))
	cmd.AddCommand(newCardsTransitionCmd(app, "complete", "Mark a card completed", engine.Complete))
	cmd.AddCommand(newCardsTransitionCmd(app, "archive", "Archive a card", engine.Archive))
	cmd.AddCommand(newCardsDeleteCmd(app))

	rootCmd.AddCommand(cmd)
}

func newCardsListCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List battle cards",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if app.Store == nil {
				return apperrors.ErrDatabaseError
			}
			cards, err := app.Store.LoadBattleCards(cmd.Context())
			if err != nil {
				return err
			}

			statusFilter, _ := cmd.Flags().GetString("status")
			if statusFilter != "" {
				want := models.CardStatus(strings.ToUpper(statusFilter))
				filtered := cards[:0]
				for _, c := range cards {
					if c.Status == want {
						filtered = append(filtered, c)
					}
				}
				cards = filtered
			}

			if output.IsJSON() {
				return output.JSON(cards)
			}
			if len(cards) == 0 {
				output.Dim("No battle cards")
				return nil
			}
			for _, c := range cards {
				status := output.ColoredString(statusColor(string(c.Status)), string(c.Status))
				output.Printf("%s  %-10s %-10s %s  (%d scenarios)\n",
					c.ID, c.Symbol, status, c.Timeframe, len(c.Scenarios))
			}
			return nil
		},
	}
	cmd.Flags().String("status", "", "filter by status (draft, active, monitoring, closed, completed, archived)")
	return cmd
}

func newCardsShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show <card-id>",
		Short: "Show a battle card with its scenarios",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if app.Store == nil {
				return apperrors.ErrDatabaseError
			}
			card, err := app.Store.GetBattleCard(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(card)
			}
			printCard(output, card)
			return nil
		},
	}
}

func printCard(output *Output, card *models.BattleCard) {
	status := output.ColoredString(statusColor(string(card.Status)), string(card.Status))
	output.Bold("%s  %s  %s", card.Symbol, card.Timeframe, status)
	output.Printf("id: %s\n", card.ID)
	if card.Thesis != "" {
		output.Printf("thesis: %s\n", card.Thesis)
	}
	output.Println()
	for _, s := range card.Scenarios {
		marker := " "
		if s.IsActive {
			marker = output.Green("*")
		} else if s.Fired() {
			marker = output.ColoredString(ColorDim, "+")
		}
		side := "long"
		if !s.IsLong() {
			side = "short"
		}
		output.Printf("%s %s (%s): trigger %.4f  entry %.4f  stop %.4f",
			marker, s.Type, side, s.TriggerPrice, s.EntryPrice, s.StopLoss)
		for i, target := range s.Targets() {
			output.Printf("  t%d %.4f", i+1, target)
		}
		if s.Fired() {
			output.Printf("  fired %s", s.TriggeredAt.Format("2006-01-02 15:04"))
		}
		output.Println()
	}
	if card.Reassessment != "" {
		output.Println()
		output.Info("Last reassessment (%s):", card.ReassessedAt.Format("2006-01-02 15:04"))
		output.Printf("%s\n", card.Reassessment)
	}
}

// cardFile is the JSON shape accepted by `cards add`.
type cardFile struct {
	Symbol    string `json:"symbol"`
	Timeframe string `json:"timeframe"`
	Thesis    string `json:"thesis"`
	Scenarios []struct {
		Type             string  `json:"type"`
		TriggerPrice     float64 `json:"trigger_price"`
		TriggerCondition string  `json:"trigger_condition"`
		EntryPrice       float64 `json:"entry_price"`
		StopLoss         float64 `json:"stop_loss"`
		Target1          float64 `json:"target1"`
		Target2          float64 `json:"target2"`
		Target3          float64 `json:"target3"`
		Probability      int     `json:"probability"`
		ParentType       string  `json:"parent_type"` // scenario type this one depends on
	} `json:"scenarios"`
}

func newCardsAddCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <file.json>",
		Short: "Create a battle card from a JSON file",
		Long: `Create a battle card from a JSON definition. The card starts in DRAFT;
use 'cards activate' to commit it for monitoring. Scenario dependencies
are expressed by parent_type referencing another scenario's type.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if app.Store == nil {
				return apperrors.ErrDatabaseError
			}

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading card file: %w", err)
			}
			var cf cardFile
			if err := json.Unmarshal(data, &cf); err != nil {
				return fmt.Errorf("parsing card file: %w", err)
			}

			now := time.Now()
			card := &models.BattleCard{
				ID:        id.New(),
				Symbol:    strings.ToUpper(cf.Symbol),
				Timeframe: cf.Timeframe,
				Thesis:    cf.Thesis,
				Status:    models.CardDraft,
				CreatedAt: now,
				UpdatedAt: now,
			}

			byType := make(map[string]string)
			for _, sf := range cf.Scenarios {
				s := &models.Scenario{
					ID:               id.New(),
					Type:             models.ScenarioType(strings.ToUpper(sf.Type)),
					TriggerPrice:     sf.TriggerPrice,
					TriggerCondition: sf.TriggerCondition,
					EntryPrice:       sf.EntryPrice,
					StopLoss:         sf.StopLoss,
					Target1:          sf.Target1,
					Target2:          sf.Target2,
					Target3:          sf.Target3,
					Probability:      sf.Probability,
				}
				byType[string(s.Type)] = s.ID
				card.Scenarios = append(card.Scenarios, s)
			}
			for i, sf := range cf.Scenarios {
				if sf.ParentType == "" {
					continue
				}
				parentID, ok := byType[strings.ToUpper(sf.ParentType)]
				if !ok {
					return fmt.Errorf("scenario %s: parent_type %q does not match any scenario", sf.Type, sf.ParentType)
				}
				card.Scenarios[i].ParentID = parentID
			}

			if err := card.Validate(); err != nil {
				return fmt.Errorf("invalid card: %w", err)
			}
			if err := app.Store.SaveBattleCard(cmd.Context(), card); err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(card)
			}
			output.Success("Created battle card %s for %s (%d scenarios)", card.ID, card.Symbol, len(card.Scenarios))
			output.Dim("Run 'battlecard cards activate %s' to start monitoring", card.ID)
			return nil
		},
	}
	return cmd
}

func newCardsTransitionCmd(app *App, use, short string, fn func(*models.BattleCard) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <card-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if app.Store == nil {
				return apperrors.ErrDatabaseError
			}
			card, err := app.Store.GetBattleCard(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			before := card.Status
			if err := fn(card); err != nil {
				return err
			}
			card.UpdatedAt = time.Now()
			if err := app.Store.SaveBattleCard(cmd.Context(), card); err != nil {
				return err
			}
			if before != models.CardClosed && card.Status == models.CardClosed {
				if mgr, err := loadAlertManager(cmd, app); err == nil {
					mgr.Emit(engine.CardClosedAlert(card))
				}
			}
			if output.IsJSON() {
				return output.JSON(card)
			}
			output.Success("%s is now %s", card.Symbol, card.Status)
			return nil
		},
	}
}

func newCardsDeleteCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <card-id>",
		Short: "Delete a battle card",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if app.Store == nil {
				return apperrors.ErrDatabaseError
			}
			if err := app.Store.DeleteBattleCard(cmd.Context(), args[0]); err != nil {
				return err
			}
			output.Success("Deleted battle card %s", args[0])
			return nil
		},
	}
}
