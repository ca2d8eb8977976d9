package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

const validYAML = `
telegram:
  token: "123:abc"
  channel_id: -1001234567890
  owner_user_ids: [42]
  poll_timeout: "10s"
logging:
  level: "info"
  console: true
  file:
    enabled: false
    path: ""
storage:
  driver: "sqlite"
  path: "./postbot.db"
buffer:
  window: "2s"
scheduler:
  spec: "@every 60s"
  retry_max: 3
`

func TestLoadYAML(t *testing.T) {
	t.Parallel()

	m := NewManager(writeFile(t, "config.yaml", validYAML))
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Telegram.ChannelID != -1001234567890 {
		t.Errorf("channel_id = %d", cfg.Telegram.ChannelID)
	}
	if !cfg.Owner(42) || cfg.Owner(43) {
		t.Error("owner check wrong")
	}
	if cfg.Buffer.Window != "2s" {
		t.Errorf("buffer.window = %q", cfg.Buffer.Window)
	}
	if got := m.Get(); got != cfg {
		t.Error("Get did not return the committed config")
	}
}

func TestLoadJSON(t *testing.T) {
	t.Parallel()

	body := `{
		"telegram": {"token": "123:abc", "channel_id": -100, "owner_user_ids": [1]},
		"logging": {"level": "debug", "console": true, "file": {"enabled": false, "path": ""}},
		"storage": {"driver": "memory"},
		"buffer": {},
		"scheduler": {}
	}`
	m := NewManager(writeFile(t, "config.json", body))
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("level = %q", cfg.Logging.Level)
	}
}

func TestLoadRejectsUnknownField(t *testing.T) {
	t.Parallel()

	m := NewManager(writeFile(t, "config.yaml", validYAML+"\nextra_section:\n  x: 1\n"))
	if _, err := m.Load(); err == nil {
		t.Fatal("unknown top-level key was accepted")
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"missing token", func(c *Config) { c.Telegram.Token = " " }, "telegram.token"},
		{"missing channel", func(c *Config) { c.Telegram.ChannelID = 0 }, "telegram.channel_id"},
		{"no owners", func(c *Config) { c.Telegram.OwnerUserIDs = nil }, "owner_user_ids"},
		{"bad duration", func(c *Config) { c.Buffer.Window = "2 parsecs" }, "buffer.window"},
		{"negative retry", func(c *Config) { c.Scheduler.RetryMax = -1 }, "retry_max"},
		{"unknown driver", func(c *Config) { c.Storage.Driver = "etcd" }, "storage.driver"},
		{"postgres without dsn", func(c *Config) { c.Storage.Driver = "postgres"; c.Storage.DSN = "" }, "storage.dsn"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := &Config{
				Telegram: TelegramConfig{Token: "t", ChannelID: -1, OwnerUserIDs: []int64{1}},
				Storage:  StorageConfig{Driver: "sqlite", Path: "./postbot.db"},
			}
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestSummarizeChange(t *testing.T) {
	t.Parallel()

	old := &Config{
		Telegram:  TelegramConfig{Token: "t", ChannelID: -1, OwnerUserIDs: []int64{1}},
		Logging:   LoggingConfig{Level: "info"},
		Scheduler: SchedulerConfig{RetryMax: 3},
	}
	next := *old
	next.Logging.Level = "debug"
	next.Scheduler.RetryMax = 5

	changed, _ := SummarizeChange(old, &next)
	want := []string{"logging", "scheduler"}
	if len(changed) != len(want) {
		t.Fatalf("changed = %v, want %v", changed, want)
	}
	for i := range want {
		if changed[i] != want[i] {
			t.Fatalf("changed = %v, want %v", changed, want)
		}
	}
}
