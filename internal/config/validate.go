package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks structural requirements and that every duration field
// parses. It does not touch the network.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	var errs []error

	if strings.TrimSpace(c.Telegram.Token) == "" {
		errs = append(errs, errors.New("telegram.token is required"))
	}
	if c.Telegram.ChannelID == 0 {
		errs = append(errs, errors.New("telegram.channel_id is required"))
	}
	if len(c.Telegram.OwnerUserIDs) == 0 {
		errs = append(errs, errors.New("telegram.owner_user_ids must list at least one user"))
	}
	if _, err := ParseDurationField("telegram.poll_timeout", c.Telegram.PollTimeout); err != nil {
		errs = append(errs, err)
	}

	switch strings.TrimSpace(strings.ToLower(c.Storage.Driver)) {
	case "", "sqlite", "sqlite3":
		if strings.TrimSpace(c.Storage.Path) == "" {
			errs = append(errs, errors.New("storage.path is required for the sqlite driver"))
		}
		if _, err := ParseDurationField("storage.busy_timeout", c.Storage.BusyTimeout); err != nil {
			errs = append(errs, err)
		}
	case "postgres", "pg":
		if strings.TrimSpace(c.Storage.DSN) == "" {
			errs = append(errs, errors.New("storage.dsn is required for the postgres driver"))
		}
	case "memory":
	default:
		errs = append(errs, fmt.Errorf("storage.driver: unknown driver %q", c.Storage.Driver))
	}

	for _, f := range []struct{ path, raw string }{
		{"buffer.window", c.Buffer.Window},
		{"buffer.max_age", c.Buffer.MaxAge},
		{"scheduler.retry_backoff", c.Scheduler.RetryBackoff},
		{"scheduler.send_timeout", c.Scheduler.SendTimeout},
	} {
		if _, err := ParseDurationField(f.path, f.raw); err != nil {
			errs = append(errs, err)
		}
	}
	if c.Scheduler.RetryMax < 0 {
		errs = append(errs, errors.New("scheduler.retry_max must be >= 0"))
	}
	if c.Scheduler.BatchLimit < 0 {
		errs = append(errs, errors.New("scheduler.batch_limit must be >= 0"))
	}

	return errors.Join(errs...)
}

// Owner reports whether the given user may drive the bot.
func (c *Config) Owner(userID int64) bool {
	for _, id := range c.Telegram.OwnerUserIDs {
		if id == userID {
			return true
		}
	}
	return false
}
