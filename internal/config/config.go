// Package config provides configuration management for the battle-card engine.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Engine        EngineConfig       `mapstructure:"engine"`
	Feed          FeedConfig         `mapstructure:"feed"`
	Alerts        AlertConfig        `mapstructure:"alerts"`
	Notifications NotificationConfig `mapstructure:"notifications"`
	Logging       LoggingConfig      `mapstructure:"logging"`
	Credentials   Credentials        `mapstructure:"-"` // loaded separately
}

// EngineConfig holds price-monitor engine configuration.
type EngineConfig struct {
	WorkerBufferSize   int           `mapstructure:"worker_buffer_size"`
	SaveRetryAttempts  int           `mapstructure:"save_retry_attempts"`
	SaveRetryDelay     time.Duration `mapstructure:"save_retry_delay"`
	DatabasePath       string        `mapstructure:"database_path"`
}

// FeedConfig holds price feed configuration.
type FeedConfig struct {
	URL               string        `mapstructure:"url"`
	ReconnectAttempts int           `mapstructure:"reconnect_attempts"`
	ReconnectDelay    time.Duration `mapstructure:"reconnect_delay"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
}

// AlertConfig holds alert bookkeeping configuration.
type AlertConfig struct {
	Capacity int `mapstructure:"capacity"`
}

// NotificationConfig holds outbound notification configuration.
type NotificationConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Terminal bool          `mapstructure:"terminal"`
	Webhook  WebhookConfig `mapstructure:"webhook"`
}

// WebhookConfig holds webhook notification configuration.
type WebhookConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level   string `mapstructure:"level"`
	Console bool   `mapstructure:"console"`
	File    bool   `mapstructure:"file"`
}

// Credentials holds API credentials.
type Credentials struct {
	OpenAI OpenAICredentials `mapstructure:"openai"`
}

// OpenAICredentials holds OpenAI API credentials.
type OpenAICredentials struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/battlecard-trader"
	}
	return filepath.Join(home, ".config", "battlecard-trader")
}

// Default returns a configuration with all defaults applied.
func Default() *Config {
	return &Config{
		Engine: EngineConfig{
			WorkerBufferSize:  256,
			SaveRetryAttempts: 3,
			SaveRetryDelay:    100 * time.Millisecond,
			DatabasePath:      filepath.Join(DefaultConfigDir(), "battlecards.db"),
		},
		Feed: FeedConfig{
			URL:               "wss://stream.binance.com:9443/ws",
			ReconnectAttempts: 5,
			ReconnectDelay:    time.Second,
			ReadTimeout:       60 * time.Second,
		},
		Alerts: AlertConfig{
			Capacity: 200,
		},
		Notifications: NotificationConfig{
			Enabled:  true,
			Terminal: true,
		},
		Logging: LoggingConfig{
			Level:   "info",
			Console: true,
			File:    true,
		},
		Credentials: Credentials{
			OpenAI: OpenAICredentials{Model: "gpt-4o"},
		},
	}
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	cfg := Default()

	if err := loadConfigFile(configDir, "config", cfg); err != nil {
		return nil, fmt.Errorf("loading config.toml: %w", err)
	}

	if err := loadCredentials(configDir, &cfg.Credentials); err != nil {
		return nil, fmt.Errorf("loading credentials.toml: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func loadConfigFile(configDir, name string, target interface{}) error {
	v := viper.New()
	v.SetConfigName(name)
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Missing config is fine, defaults apply.
			return nil
		}
		return err
	}

	return v.Unmarshal(target)
}

func loadCredentials(configDir string, creds *Credentials) error {
	v := viper.New()
	v.SetConfigName("credentials")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return err
	}

	return v.Unmarshal(creds)
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.Credentials.OpenAI.APIKey = v
	}
	if v := os.Getenv("BATTLECARD_FEED_URL"); v != "" {
		cfg.Feed.URL = v
	}
	if v := os.Getenv("BATTLECARD_DB_PATH"); v != "" {
		cfg.Engine.DatabasePath = v
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.Alerts.Capacity <= 0 {
		return fmt.Errorf("alerts.capacity must be positive, got %d", c.Alerts.Capacity)
	}
	if c.Engine.WorkerBufferSize <= 0 {
		return fmt.Errorf("engine.worker_buffer_size must be positive, got %d", c.Engine.WorkerBufferSize)
	}
	if c.Engine.SaveRetryAttempts <= 0 {
		return fmt.Errorf("engine.save_retry_attempts must be positive, got %d", c.Engine.SaveRetryAttempts)
	}
	if c.Feed.URL == "" {
		return fmt.Errorf("feed.url must not be empty")
	}
	return nil
}
