// Package tghtml provides Telegram HTML plumbing:
//   - The platform's structural limits (message/caption length, album size)
//   - A whitelist sanitizer for ParseMode="HTML" content
//   - A tag-aware splitter for text that exceeds the message limit
//
// Length rules are measured in runes, after sanitation, since Telegram's
// limits are inclusive of markup.
package tghtml
