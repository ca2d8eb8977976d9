// Package publish drives composed payloads through the delivery client and
// classifies the outcome for the scheduler's bookkeeping.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"postbot/internal/compose"
	"postbot/internal/transport"
	"postbot/pkg/logx"
)

// Outcome is the result of one publish attempt.
//
// Delivered with Degraded=true means the leading payloads went out but a
// trailing one failed; FailedPayload records which. A failed outcome is
// retryable unless the error was classified permanent.
type Outcome struct {
	Delivered     bool
	Receipt       transport.Receipt
	Degraded      bool
	FailedPayload int // index of the failed payload, -1 when none
	Err           error
	Retryable     bool
}

// ReceiptJSON serializes the delivery receipt for storage.
func (o Outcome) ReceiptJSON() string {
	if len(o.Receipt.MessageIDs) == 0 {
		return ""
	}
	b, err := json.Marshal(o.Receipt)
	if err != nil {
		return ""
	}
	return string(b)
}

type Publisher struct {
	sender  transport.Sender
	timeout time.Duration // per-payload delivery bound
	log     logx.Logger
}

func New(sender transport.Sender, timeout time.Duration, log logx.Logger) *Publisher {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Publisher{sender: sender, timeout: timeout, log: log}
}

// Publish delivers payloads in order and stops at the first failure.
//
// A failure before anything was delivered yields a Failed outcome. A failure
// after at least one delivered payload yields Delivered with the degraded
// flag set: the post is out, just incomplete, and re-sending it whole would
// duplicate content.
func (p *Publisher) Publish(ctx context.Context, to transport.ChatTarget, payloads []compose.Payload) Outcome {
	out := Outcome{FailedPayload: -1}
	for i, pl := range payloads {
		r, err := p.sendOne(ctx, to, pl)
		if err == nil {
			out.Delivered = true
			out.Receipt.MessageIDs = append(out.Receipt.MessageIDs, r.MessageIDs...)
			continue
		}

		if transport.IsTimeout(err) {
			// Ambiguous: the platform may have accepted the send.
			p.log.Warn("delivery timed out; payload may have gone out anyway",
				logx.Int64("chat_id", to.ChatID), logx.Int("payload", i), logx.Err(err))
		}

		out.Err = err
		out.FailedPayload = i
		if out.Delivered {
			out.Degraded = true
			p.log.Warn("partial delivery",
				logx.Int64("chat_id", to.ChatID),
				logx.Int("delivered", i), logx.Int("total", len(payloads)), logx.Err(err))
			return out
		}
		out.Retryable = !transport.IsPermanent(err)
		return out
	}
	return out
}

func (p *Publisher) sendOne(ctx context.Context, to transport.ChatTarget, pl compose.Payload) (transport.Receipt, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	opt := &transport.SendOptions{ParseMode: "HTML"}
	switch pl.Kind {
	case compose.PayloadText:
		return p.sender.SendText(ctx, to, pl.Text, opt)
	case compose.PayloadSingle:
		return p.sender.SendMedia(ctx, to, pl.Items[0], pl.Text)
	case compose.PayloadAlbum:
		return p.sender.SendAlbum(ctx, to, pl.Items, pl.Text)
	default:
		return transport.Receipt{}, transport.Permanent(fmt.Errorf("unknown payload kind %q", pl.Kind))
	}
}
