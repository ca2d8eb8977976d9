// Package transport defines the delivery-client boundary the core composes
// payloads for, plus the inbound update shapes adapters produce. Adapters
// (internal/transport/telegram) implement Sender; the core never talks to
// the platform directly.
package transport

import (
	"context"

	"postbot/internal/post"
)

type ChatTarget struct {
	ChatID   int64
	ThreadID int
}

// Receipt identifies the delivered platform message(s).
type Receipt struct {
	MessageIDs []int `json:"message_ids"`
}

type SendOptions struct {
	ParseMode      string
	DisablePreview bool
	Silent         bool
}

// Sender delivers composed payloads.
//
// Calls are not idempotent: an ambiguous timeout may mean the message was
// delivered anyway, so callers must treat timeouts as retryable-with-caution.
type Sender interface {
	SendText(ctx context.Context, to ChatTarget, html string, opt *SendOptions) (Receipt, error)
	SendMedia(ctx context.Context, to ChatTarget, item post.Item, captionHTML string) (Receipt, error)
	SendAlbum(ctx context.Context, to ChatTarget, items []post.Item, captionHTML string) (Receipt, error)
}

// InboundItem is one content-producing event from the upstream source.
//
// GroupID is the platform's album identifier; it is empty for standalone
// messages.
type InboundItem struct {
	GroupID string
	Item    post.Item
	Chat    ChatTarget
	FromID  int64
	Text    string // plain text of a non-media message, "" otherwise
}

// InboundFunc consumes inbound items (the group buffer's entry point).
type InboundFunc func(in InboundItem)
