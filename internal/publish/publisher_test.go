package publish

import (
	"context"
	"errors"
	"testing"
	"time"

	"postbot/internal/compose"
	"postbot/internal/post"
	"postbot/internal/transport"
	"postbot/pkg/logx"
)

// fakeSender fails per-call according to errs, keyed by call index.
type fakeSender struct {
	calls int
	errs  map[int]error
	slow  time.Duration
}

func (f *fakeSender) send(ctx context.Context) (transport.Receipt, error) {
	idx := f.calls
	f.calls++
	if f.slow > 0 {
		select {
		case <-ctx.Done():
			return transport.Receipt{}, ctx.Err()
		case <-time.After(f.slow):
		}
	}
	if err := f.errs[idx]; err != nil {
		return transport.Receipt{}, err
	}
	return transport.Receipt{MessageIDs: []int{100 + idx}}, nil
}

func (f *fakeSender) SendText(ctx context.Context, to transport.ChatTarget, html string, opt *transport.SendOptions) (transport.Receipt, error) {
	return f.send(ctx)
}
func (f *fakeSender) SendMedia(ctx context.Context, to transport.ChatTarget, it post.Item, caption string) (transport.Receipt, error) {
	return f.send(ctx)
}
func (f *fakeSender) SendAlbum(ctx context.Context, to transport.ChatTarget, items []post.Item, caption string) (transport.Receipt, error) {
	return f.send(ctx)
}

func payloads(n int) []compose.Payload {
	out := make([]compose.Payload, n)
	for i := range out {
		out[i] = compose.Payload{Kind: compose.PayloadText, Text: "x"}
	}
	return out
}

func TestPublishAllDelivered(t *testing.T) {
	t.Parallel()
	p := New(&fakeSender{}, 0, logx.Nop())
	out := p.Publish(context.Background(), transport.ChatTarget{ChatID: 1}, payloads(3))
	if !out.Delivered || out.Degraded || out.Err != nil {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	if len(out.Receipt.MessageIDs) != 3 {
		t.Fatalf("receipt has %d ids, want 3", len(out.Receipt.MessageIDs))
	}
	if out.ReceiptJSON() == "" {
		t.Fatal("empty receipt json")
	}
}

func TestPublishTransientFailureRetryable(t *testing.T) {
	t.Parallel()
	f := &fakeSender{errs: map[int]error{0: errors.New("flood wait")}}
	p := New(f, 0, logx.Nop())
	out := p.Publish(context.Background(), transport.ChatTarget{ChatID: 1}, payloads(2))
	if out.Delivered || !out.Retryable || out.FailedPayload != 0 {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	if f.calls != 1 {
		t.Fatalf("made %d calls after first failure, want 1", f.calls)
	}
}

func TestPublishPermanentFailureNotRetryable(t *testing.T) {
	t.Parallel()
	f := &fakeSender{errs: map[int]error{0: transport.Permanent(errors.New("bot was kicked"))}}
	p := New(f, 0, logx.Nop())
	out := p.Publish(context.Background(), transport.ChatTarget{ChatID: 1}, payloads(1))
	if out.Delivered || out.Retryable {
		t.Fatalf("unexpected outcome: %+v", out)
	}
}

func TestPublishPartialSuccessDegraded(t *testing.T) {
	t.Parallel()
	f := &fakeSender{errs: map[int]error{1: errors.New("boom")}}
	p := New(f, 0, logx.Nop())
	out := p.Publish(context.Background(), transport.ChatTarget{ChatID: 1}, payloads(2))
	if !out.Delivered || !out.Degraded {
		t.Fatalf("partial failure should be delivered+degraded: %+v", out)
	}
	if out.FailedPayload != 1 || out.Err == nil {
		t.Fatalf("failed payload not recorded: %+v", out)
	}
	if len(out.Receipt.MessageIDs) != 1 {
		t.Fatalf("receipt should keep the delivered part: %+v", out.Receipt)
	}
}

func TestPublishTimeoutIsRetryable(t *testing.T) {
	t.Parallel()
	f := &fakeSender{slow: 200 * time.Millisecond}
	p := New(f, 20*time.Millisecond, logx.Nop())
	out := p.Publish(context.Background(), transport.ChatTarget{ChatID: 1}, payloads(1))
	if out.Delivered || !out.Retryable {
		t.Fatalf("timeout should be a retryable failure: %+v", out)
	}
	if !transport.IsTimeout(out.Err) {
		t.Fatalf("err = %v, want deadline exceeded", out.Err)
	}
}
