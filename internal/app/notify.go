package app

import (
	"context"
	"fmt"
	"time"

	"postbot/internal/eventbus"
	"postbot/internal/scheduler"
	"postbot/internal/transport"
	"postbot/pkg/logx"
	"postbot/pkg/tghtml"
)

// notifyLoop forwards scheduler outcomes to the post owner's chat.
func (a *App) notifyLoop(ctx context.Context, events <-chan eventbus.Event, unsub func()) {
	defer unsub()
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			out, ok := e.Data.(scheduler.OutcomeEvent)
			if !ok || out.OwnerChat == 0 {
				continue
			}
			a.notifyOwner(ctx, e.Type, out)
		}
	}
}

func (a *App) notifyOwner(ctx context.Context, eventType string, out scheduler.OutcomeEvent) {
	var msg string
	switch eventType {
	case eventbus.EventPublished:
		msg = fmt.Sprintf("Scheduled post <code>%s</code> published.", tghtml.Esc(out.UID))
		if out.Degraded {
			msg += "\nPart of the post could not be delivered: " + tghtml.Esc(out.Error)
		}
	case eventbus.EventFailed:
		msg = fmt.Sprintf("Scheduled post <code>%s</code> failed: %s",
			tghtml.Esc(out.UID), tghtml.Esc(out.Error))
	default:
		return
	}

	sctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	to := transport.ChatTarget{ChatID: out.OwnerChat}
	if _, err := a.adapter.SendText(sctx, to, msg, nil); err != nil {
		a.log.Warn("owner notification failed",
			logx.Err(err),
			logx.String("uid", out.UID),
			logx.Int64("chat", out.OwnerChat))
	}
}
