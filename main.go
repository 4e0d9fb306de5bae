package main

import (
	"fmt"
	"os"

	"battlecard-trader/internal/cli"
	"battlecard-trader/internal/config"
	"battlecard-trader/internal/logging"
)

func main() {
	configDir := config.DefaultConfigDir()
	// The --config flag has to be read before cobra parses anything,
	// because the config decides how the root command is wired.
	for i, arg := range os.Args {
		if arg == "--config" && i+1 < len(os.Args) {
			configDir = os.Args[i+1]
		}
	}

	cfg, err := config.Load(configDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logCfg := logging.DefaultLogConfig()
	logCfg.Level = cfg.Logging.Level
	logCfg.Console = cfg.Logging.Console
	logCfg.File = cfg.Logging.File
	logger := logging.NewLoggerWithConfig(logCfg)

	rootCmd := cli.NewRootCmd(cfg, logger)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
