package cli

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"battlecard-trader/internal/engine"
	apperrors "battlecard-trader/internal/errors"
	"battlecard-trader/internal/feed"
	"battlecard-trader/internal/models"
	"battlecard-trader/internal/notify"
	"battlecard-trader/pkg/utils"
)

// addMonitorCommands adds the live monitor loop command.
func addMonitorCommands(rootCmd *cobra.Command, app *App) {
	var replayFile string
	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Run the price monitor loop",
		Long: `Connect to the price feed, subscribe to every instrument referenced by
an active or monitoring battle card, and evaluate triggers, stops and
targets until interrupted.

With --replay, ticks are played back from a CSV file (symbol,price
columns, optional timestamp) instead of the live feed, and the command
exits when the file is exhausted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMonitor(cmd, app, replayFile)
		},
	}
	cmd.Flags().StringVar(&replayFile, "replay", "", "replay ticks from a CSV file instead of the live feed")
	rootCmd.AddCommand(cmd)
}

func runMonitor(cmd *cobra.Command, app *App, replayFile string) error {
	output := NewOutput(cmd)
	if app.Store == nil {
		return apperrors.ErrDatabaseError
	}
	cfg := app.Config

	alerts := engine.NewAlertManager(cfg.Alerts.Capacity, app.Logger)
	alerts.SetStore(app.Store)
	if err := alerts.Load(cmd.Context()); err != nil {
		app.Logger.Warn().Err(err).Msg("Could not load persisted alerts")
	}

	if cfg.Notifications.Enabled {
		var channels []notify.Notifier
		if cfg.Notifications.Terminal {
			channels = append(channels, notify.NewTerminalNotifier())
		}
		if cfg.Notifications.Webhook.Enabled && cfg.Notifications.Webhook.URL != "" {
			channels = append(channels, notify.NewWebhookNotifier(cfg.Notifications.Webhook.URL))
		}
		if len(channels) > 0 {
			alerts.SetNotifier(notify.NewMultiNotifier(channels...))
		}
	}

	var priceFeed feed.PriceFeed
	var replayTicks []models.Tick
	var simFeed *feed.SimFeed
	if replayFile != "" {
		ticks, err := feed.LoadReplayTicks(replayFile)
		if err != nil {
			return err
		}
		replayTicks = ticks
		simFeed = feed.NewSimFeed()
		priceFeed = simFeed
	} else {
		priceFeed = feed.NewWSFeed(feed.WSFeedConfig{
			URL:               cfg.Feed.URL,
			ReconnectAttempts: cfg.Feed.ReconnectAttempts,
			ReconnectDelay:    cfg.Feed.ReconnectDelay,
			ReadTimeout:       cfg.Feed.ReadTimeout,
		})
	}

	monitorCfg := engine.MonitorConfig{
		WorkerBufferSize: cfg.Engine.WorkerBufferSize,
		SaveRetry: utils.RetryConfig{
			MaxAttempts:   cfg.Engine.SaveRetryAttempts,
			InitialDelay:  cfg.Engine.SaveRetryDelay,
			MaxDelay:      10 * time.Second,
			BackoffFactor: 2.0,
		},
	}

	monitor := engine.NewMonitor(monitorCfg, priceFeed, app.Store, alerts, app.Logger)
	monitor.SetOnCardChanged(func(card *models.BattleCard) {
		app.Logger.Info().
			Str("card_id", card.ID).
			Str("symbol", card.Symbol).
			Str("status", string(card.Status)).
			Msg("Battle card updated")
	})

	if err := monitor.Start(cmd.Context()); err != nil {
		return err
	}

	symbols := monitor.SubscribedSymbols()
	if len(symbols) == 0 {
		output.Warning("No active battle cards; monitoring an empty subscription set")
	} else {
		output.Info("Monitoring %d symbols: %v", len(symbols), symbols)
	}
	if simFeed != nil {
		output.Info("Replaying %d ticks", len(replayTicks))
		for _, tick := range replayTicks {
			simFeed.Push(tick)
		}
		// Let the symbol workers drain their channels before stopping.
		time.Sleep(200 * time.Millisecond)
	} else {
		output.Dim("Press Ctrl+C to stop")

		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		select {
		case <-sig:
		case <-cmd.Context().Done():
		}

		output.Println()
		output.Info("Shutting down")
	}
	monitor.Stop()

	m := monitor.Metrics()
	output.Printf("ticks received: %d  dropped: %d  malformed: %d  events: %d\n",
		m.TicksReceived, m.TicksDropped, m.TicksMalformed, m.EventsApplied)
	return nil
}
