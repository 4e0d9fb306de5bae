package cli

import (
	"github.com/spf13/cobra"

	"battlecard-trader/internal/engine"
	apperrors "battlecard-trader/internal/errors"
	"battlecard-trader/internal/models"
)

// addAlertCommands adds alert inspection commands.
func addAlertCommands(rootCmd *cobra.Command, app *App) {
	cmd := &cobra.Command{
		Use:     "alerts",
		Aliases: []string{"alert"},
		Short:   "Alert management",
		Long:    "List, read and dismiss alerts raised by the engine.",
	}

	cmd.AddCommand(newAlertsListCmd(app))
	cmd.AddCommand(newAlertsReadCmd(app))
	cmd.AddCommand(newAlertsDismissCmd(app))

	rootCmd.AddCommand(cmd)
}

// loadAlertManager builds an alert manager over the persisted alerts.
func loadAlertManager(cmd *cobra.Command, app *App) (*engine.AlertManager, error) {
	if app.Store == nil {
		return nil, apperrors.ErrDatabaseError
	}
	mgr := engine.NewAlertManager(app.Config.Alerts.Capacity, app.Logger)
	mgr.SetStore(app.Store)
	if err := mgr.Load(cmd.Context()); err != nil {
		return nil, err
	}
	return mgr, nil
}

func newAlertsListCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List alerts",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			mgr, err := loadAlertManager(cmd, app)
			if err != nil {
				return err
			}
			unreadOnly, _ := cmd.Flags().GetBool("unread")
			alerts := mgr.List(unreadOnly)

			if output.IsJSON() {
				return output.JSON(alerts)
			}
			if len(alerts) == 0 {
				output.Dim("No alerts")
				return nil
			}
			for _, a := range alerts {
				printAlert(output, a)
			}
			output.Printf("\n%d alerts, %d unread\n", mgr.Count(), mgr.UnreadCount())
			return nil
		},
	}
	cmd.Flags().Bool("unread", false, "only show unread alerts")
	return cmd
}

func printAlert(output *Output, a models.Alert) {
	color := ColorCyan
	switch a.Type {
	case models.AlertSuccess:
		color = ColorGreen
	case models.AlertWarning:
		color = ColorYellow
	case models.AlertDanger:
		color = ColorRed
	}
	marker := "*"
	if a.Read {
		marker = " "
	}
	output.Printf("%s %s  %s  %s\n",
		marker,
		a.Timestamp.Format("2006-01-02 15:04:05"),
		output.ColoredString(color, a.Title),
		a.ID)
	if a.Message != "" {
		output.Dim("    %s", a.Message)
	}
}

func newAlertsReadCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "read <alert-id>",
		Short: "Mark an alert as read",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			mgr, err := loadAlertManager(cmd, app)
			if err != nil {
				return err
			}
			if err := mgr.MarkRead(args[0]); err != nil {
				return err
			}
			output.Success("Alert %s marked read", args[0])
			return nil
		},
	}
}

func newAlertsDismissCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "dismiss <alert-id>",
		Short: "Dismiss an alert",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			mgr, err := loadAlertManager(cmd, app)
			if err != nil {
				return err
			}
			if err := mgr.Dismiss(args[0]); err != nil {
				return err
			}
			output.Success("Alert %s dismissed", args[0])
			return nil
		},
	}
}
