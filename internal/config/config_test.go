package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default() should validate: %v", err)
	}
	if cfg.Alerts.Capacity != 200 {
		t.Errorf("Alerts.Capacity = %d, want 200", cfg.Alerts.Capacity)
	}
	if cfg.Engine.SaveRetryAttempts != 3 {
		t.Errorf("Engine.SaveRetryAttempts = %d, want 3", cfg.Engine.SaveRetryAttempts)
	}
	if cfg.Feed.URL == "" {
		t.Error("Feed.URL should have a default")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"zero alert capacity", func(c *Config) { c.Alerts.Capacity = 0 }, true},
		{"negative worker buffer", func(c *Config) { c.Engine.WorkerBufferSize = -1 }, true},
		{"zero retry attempts", func(c *Config) { c.Engine.SaveRetryAttempts = 0 }, true},
		{"empty feed url", func(c *Config) { c.Feed.URL = "" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadMissingFilesUsesDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	want := Default()
	if cfg.Alerts.Capacity != want.Alerts.Capacity {
		t.Errorf("Alerts.Capacity = %d, want %d", cfg.Alerts.Capacity, want.Alerts.Capacity)
	}
	if cfg.Engine.WorkerBufferSize != want.Engine.WorkerBufferSize {
		t.Errorf("Engine.WorkerBufferSize = %d, want %d", cfg.Engine.WorkerBufferSize, want.Engine.WorkerBufferSize)
	}
}

func TestLoadReadsConfigAndCredentials(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "config.toml"), `
[engine]
worker_buffer_size = 64
save_retry_attempts = 5
save_retry_delay = "250ms"

[alerts]
capacity = 50

[feed]
url = "wss://testnet.example/ws"
`)
	writeFile(t, filepath.Join(dir, "credentials.toml"), `
[openai]
api_key = "sk-test"
model = "gpt-4o-mini"
`)

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Engine.WorkerBufferSize != 64 {
		t.Errorf("WorkerBufferSize = %d, want 64", cfg.Engine.WorkerBufferSize)
	}
	if cfg.Engine.SaveRetryAttempts != 5 {
		t.Errorf("SaveRetryAttempts = %d, want 5", cfg.Engine.SaveRetryAttempts)
	}
	if cfg.Engine.SaveRetryDelay != 250*time.Millisecond {
		t.Errorf("SaveRetryDelay = %v, want 250ms", cfg.Engine.SaveRetryDelay)
	}
	if cfg.Alerts.Capacity != 50 {
		t.Errorf("Alerts.Capacity = %d, want 50", cfg.Alerts.Capacity)
	}
	if cfg.Feed.URL != "wss://testnet.example/ws" {
		t.Errorf("Feed.URL = %q", cfg.Feed.URL)
	}
	if cfg.Credentials.OpenAI.APIKey != "sk-test" {
		t.Errorf("OpenAI.APIKey = %q", cfg.Credentials.OpenAI.APIKey)
	}
	if cfg.Credentials.OpenAI.Model != "gpt-4o-mini" {
		t.Errorf("OpenAI.Model = %q", cfg.Credentials.OpenAI.Model)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-env")
	t.Setenv("BATTLECARD_FEED_URL", "wss://env.example/ws")
	t.Setenv("BATTLECARD_DB_PATH", "/tmp/env.db")

	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Credentials.OpenAI.APIKey != "sk-env" {
		t.Errorf("OpenAI.APIKey = %q, want env value", cfg.Credentials.OpenAI.APIKey)
	}
	if cfg.Feed.URL != "wss://env.example/ws" {
		t.Errorf("Feed.URL = %q, want env value", cfg.Feed.URL)
	}
	if cfg.Engine.DatabasePath != "/tmp/env.db" {
		t.Errorf("Engine.DatabasePath = %q, want env value", cfg.Engine.DatabasePath)
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "config.toml"), `
[alerts]
capacity = 0
`)

	if _, err := Load(dir); err == nil {
		t.Error("Load() should reject zero alert capacity")
	}
}

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
}
