package cli

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"battlecard-trader/internal/agents"
	"battlecard-trader/internal/config"
	"battlecard-trader/internal/logging"
	"battlecard-trader/internal/store"
)

// Version information
const (
	Version   = "0.1.0"
	BuildDate = "2025-06-01"
)

// App holds the application dependencies.
type App struct {
	Config    *config.Config
	Logger    zerolog.Logger
	Store     store.DataStore
	LLMClient agents.LLMClient
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd(cfg *config.Config, logger zerolog.Logger) *cobra.Command {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	dataStore, err := store.NewSQLiteStore(cfg.Engine.DatabasePath)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to initialize store, some features may be unavailable")
	} else {
		app.Store = dataStore
		logger.Debug().Str("path", cfg.Engine.DatabasePath).Msg("SQLite store initialized")
	}

	if cfg.Credentials.OpenAI.APIKey != "" {
		app.LLMClient = agents.NewOpenAIClient(cfg.Credentials.OpenAI.APIKey, cfg.Credentials.OpenAI.Model)
		logger.Debug().Str("model", cfg.Credentials.OpenAI.Model).Msg("OpenAI LLM client initialized")
	}

	rootCmd := &cobra.Command{
		Use:   "battlecard",
		Short: "Battle-card price-trigger engine",
		Long: `Battlecard watches a live price stream and evaluates pre-planned trade
theses (battle cards) against it. Each card holds up to four branching
scenarios with trigger, stop-loss and target levels; the engine detects
crossings, cascades scenario activation, walks the card lifecycle and
raises deduplicated alerts.

Use 'battlecard help <command>' for more information about a command.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			debug, _ := cmd.Flags().GetBool("debug")
			if debug {
				logging.SetDebugLevel()
				app.Logger = app.Logger.Level(zerolog.DebugLevel)
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/battlecard-trader)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	addCoreCommands(rootCmd, app)
	addCardCommands(rootCmd, app)
	addAlertCommands(rootCmd, app)
	addMonitorCommands(rootCmd, app)
	addReassessCommands(rootCmd, app)

	return rootCmd
}

// addCoreCommands adds core utility commands.
func addCoreCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			} else {
				output.Printf("Battlecard v%s\n", Version)
				output.Dim("Build date: %s", BuildDate)
			}
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and manage application configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(app.Config)
			}
			output.Bold("Engine")
			output.Printf("  worker buffer size:  %d\n", app.Config.Engine.WorkerBufferSize)
			output.Printf("  save retry attempts: %d\n", app.Config.Engine.SaveRetryAttempts)
			output.Printf("  database path:       %s\n", app.Config.Engine.DatabasePath)
			output.Bold("Feed")
			output.Printf("  url:                 %s\n", app.Config.Feed.URL)
			output.Printf("  reconnect attempts:  %d\n", app.Config.Feed.ReconnectAttempts)
			output.Bold("Alerts")
			output.Printf("  capacity:            %d\n", app.Config.Alerts.Capacity)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration directory path",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{"path": config.DefaultConfigDir()})
			} else {
				output.Println(config.DefaultConfigDir())
			}
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration files",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Config.Validate(); err != nil {
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			if output.IsJSON() {
				output.JSON(map[string]bool{"valid": true})
			} else {
				output.Success("Configuration is valid")
			}
			return nil
		},
	})

	return cmd
}
