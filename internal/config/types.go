package config

type Config struct {
	Telegram  TelegramConfig  `json:"telegram"`
	Logging   LoggingConfig   `json:"logging"`
	Storage   StorageConfig   `json:"storage"`
	Buffer    BufferConfig    `json:"buffer"`
	Scheduler SchedulerConfig `json:"scheduler"`
}

type TelegramConfig struct {
	Token string `json:"token"`
	// ChannelID is the destination channel posts are published to.
	ChannelID int64 `json:"channel_id"`
	// OwnerUserIDs are the users allowed to submit and schedule content.
	OwnerUserIDs []int64 `json:"owner_user_ids"`
	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout string `json:"poll_timeout,omitempty"`
	RatePerSec  int    `json:"rate_per_sec,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// StorageConfig selects the persistence backend.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./postbot.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path,omitempty"`
	DSN         string `json:"dsn,omitempty"`          // postgres connection string
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// BufferConfig controls album grouping.
//
// All durations are Go duration strings (e.g. "500ms", "2s", "5m").
type BufferConfig struct {
	// Window is the quiet period after the last item before a group is
	// released. Defaults to "2s".
	Window string `json:"window,omitempty"`
	// MaxAge forces a group out even if items keep trickling in.
	// Defaults to "5m".
	MaxAge string `json:"max_age,omitempty"`
}

// SchedulerConfig controls the deferred-delivery loop.
type SchedulerConfig struct {
	// Spec is a cron expression or "@every ..." interval. Defaults to
	// "@every 60s".
	Spec       string `json:"spec,omitempty"`
	RetryMax   int    `json:"retry_max,omitempty"`
	BatchLimit int    `json:"batch_limit,omitempty"`
	// RetryBackoff is the base delay between attempts; the n-th retry
	// waits n times this. Go duration string, defaults to "30s".
	RetryBackoff string `json:"retry_backoff,omitempty"`
	// SendTimeout bounds a single delivery call. Defaults to "30s".
	SendTimeout string `json:"send_timeout,omitempty"`
}
