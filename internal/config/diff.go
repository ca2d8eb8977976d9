package config

import (
	"reflect"
	"sort"
	"strings"

	"postbot/pkg/logx"
)

// SummarizeChange returns the sections that differ between two configs plus
// structured attrs safe for logging (the token itself is never included).
func SummarizeChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 5)
	attrs := make([]logx.Field, 0, 12)

	if oldCfg.Telegram.ChannelID != newCfg.Telegram.ChannelID ||
		!reflect.DeepEqual(oldCfg.Telegram.OwnerUserIDs, newCfg.Telegram.OwnerUserIDs) ||
		strings.TrimSpace(oldCfg.Telegram.PollTimeout) != strings.TrimSpace(newCfg.Telegram.PollTimeout) ||
		oldCfg.Telegram.RatePerSec != newCfg.Telegram.RatePerSec ||
		(strings.TrimSpace(oldCfg.Telegram.Token) != "") != (strings.TrimSpace(newCfg.Telegram.Token) != "") {
		changed = append(changed, "telegram")
		attrs = append(attrs,
			logx.Int64("telegram.channel_id", newCfg.Telegram.ChannelID),
			logx.Int("telegram.owner_count", len(newCfg.Telegram.OwnerUserIDs)),
		)
	}

	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	if oldCfg.Storage != newCfg.Storage {
		changed = append(changed, "storage")
		attrs = append(attrs,
			logx.String("storage.driver", strings.TrimSpace(newCfg.Storage.Driver)),
			logx.Bool("storage.path_set", strings.TrimSpace(newCfg.Storage.Path) != ""),
		)
	}

	if oldCfg.Buffer != newCfg.Buffer {
		changed = append(changed, "buffer")
		attrs = append(attrs,
			logx.String("buffer.window", strings.TrimSpace(newCfg.Buffer.Window)),
			logx.String("buffer.max_age", strings.TrimSpace(newCfg.Buffer.MaxAge)),
		)
	}

	if oldCfg.Scheduler != newCfg.Scheduler {
		changed = append(changed, "scheduler")
		attrs = append(attrs,
			logx.String("scheduler.spec", strings.TrimSpace(newCfg.Scheduler.Spec)),
			logx.Int("scheduler.retry_max", newCfg.Scheduler.RetryMax),
			logx.String("scheduler.retry_backoff", strings.TrimSpace(newCfg.Scheduler.RetryBackoff)),
		)
	}

	sort.Strings(changed)
	return changed, attrs
}
