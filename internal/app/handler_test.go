package app

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"postbot/internal/album"
	"postbot/internal/config"
	"postbot/internal/post"
	"postbot/internal/publish"
	"postbot/internal/storage"
	"postbot/internal/transport"
	"postbot/pkg/logx"
)

const (
	ownerID   = int64(42)
	channelID = int64(-1001)
)

type sentMessage struct {
	chat  int64
	text  string
	kind  string // "text", "media", "album"
	items int
}

// recordSender captures every delivery for assertions.
type recordSender struct {
	mu   sync.Mutex
	sent []sentMessage
}

func (r *recordSender) SendText(_ context.Context, to transport.ChatTarget, html string, _ *transport.SendOptions) (transport.Receipt, error) {
	r.record(sentMessage{chat: to.ChatID, text: html, kind: "text"})
	return transport.Receipt{MessageIDs: []int{1}}, nil
}

func (r *recordSender) SendMedia(_ context.Context, to transport.ChatTarget, _ post.Item, caption string) (transport.Receipt, error) {
	r.record(sentMessage{chat: to.ChatID, text: caption, kind: "media", items: 1})
	return transport.Receipt{MessageIDs: []int{2}}, nil
}

func (r *recordSender) SendAlbum(_ context.Context, to transport.ChatTarget, items []post.Item, caption string) (transport.Receipt, error) {
	r.record(sentMessage{chat: to.ChatID, text: caption, kind: "album", items: len(items)})
	return transport.Receipt{MessageIDs: []int{3, 4}}, nil
}

func (r *recordSender) record(m sentMessage) {
	r.mu.Lock()
	r.sent = append(r.sent, m)
	r.mu.Unlock()
}

func (r *recordSender) to(chat int64) []sentMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []sentMessage
	for _, m := range r.sent {
		if m.chat == chat {
			out = append(out, m)
		}
	}
	return out
}

func testConfig() *config.Config {
	return &config.Config{
		Telegram: config.TelegramConfig{
			Token:        "t",
			ChannelID:    channelID,
			OwnerUserIDs: []int64{ownerID},
		},
	}
}

func newTestHandler(t *testing.T, window time.Duration) (*Handler, *recordSender, *storage.Memory) {
	t.Helper()
	sender := &recordSender{}
	store := storage.NewMemory()
	cfg := testConfig()
	pub := publish.New(sender, time.Second, logx.Nop())
	h := NewHandler(func() *config.Config { return cfg }, store, pub, sender, logx.Nop())
	buf := album.New(album.Config{Window: window}, h.HandleRelease, logx.Nop())
	h.SetBuffer(buf)
	t.Cleanup(buf.Stop)
	return h, sender, store
}

func photo(id string, caption string) transport.InboundItem {
	return transport.InboundItem{
		Item:   post.Item{Kind: post.KindPhoto, FileID: id, Source: post.SourceUser, Caption: caption},
		Chat:   transport.ChatTarget{ChatID: ownerID},
		FromID: ownerID,
	}
}

func text(s string) transport.InboundItem {
	return transport.InboundItem{
		Item:   post.Item{Kind: post.KindText, Source: post.SourceUser},
		Chat:   transport.ChatTarget{ChatID: ownerID},
		FromID: ownerID,
		Text:   s,
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestAlbumBecomesDraftAndPublishes(t *testing.T) {
	t.Parallel()

	h, sender, _ := newTestHandler(t, 20*time.Millisecond)

	in1 := photo("f1", "the caption")
	in1.GroupID = "g1"
	in2 := photo("f2", "")
	in2.GroupID = "g1"
	h.HandleInbound(in1)
	h.HandleInbound(in2)

	// Draft summary arrives after the debounce window.
	waitFor(t, func() bool { return len(sender.to(ownerID)) >= 1 })
	summary := sender.to(ownerID)[0]
	if !strings.Contains(summary.text, "2 photo") {
		t.Fatalf("summary = %q, want mention of 2 photos", summary.text)
	}

	cmd := text("/post")
	h.HandleInbound(cmd)

	chan1 := sender.to(channelID)
	if len(chan1) != 1 || chan1[0].kind != "album" || chan1[0].items != 2 {
		t.Fatalf("channel deliveries = %+v, want one 2-item album", chan1)
	}
	if chan1[0].text != "the caption" {
		t.Fatalf("album caption = %q", chan1[0].text)
	}

	// Second /post has nothing left.
	h.HandleInbound(cmd)
	if got := sender.to(channelID); len(got) != 1 {
		t.Fatalf("draft was not consumed: %+v", got)
	}
}

func TestMultiCaptionAlbumStillPublishes(t *testing.T) {
	t.Parallel()

	h, sender, _ := newTestHandler(t, 20*time.Millisecond)

	// Some clients put a caption on every album item; only the first one
	// counts and the rest must not block the draft.
	in1 := photo("f1", "first caption")
	in1.GroupID = "g1"
	in2 := photo("f2", "second caption")
	in2.GroupID = "g1"
	h.HandleInbound(in1)
	h.HandleInbound(in2)

	waitFor(t, func() bool { return len(sender.to(ownerID)) >= 1 })

	h.HandleInbound(text("/post"))
	chan1 := sender.to(channelID)
	if len(chan1) != 1 || chan1[0].kind != "album" {
		t.Fatalf("channel deliveries = %+v, want one album", chan1)
	}
	if chan1[0].text != "first caption" {
		t.Fatalf("album caption = %q, want first item's caption", chan1[0].text)
	}
}

func TestNonOwnerIsIgnored(t *testing.T) {
	t.Parallel()

	h, sender, _ := newTestHandler(t, 10*time.Millisecond)

	in := photo("f1", "")
	in.FromID = 999
	h.HandleInbound(in)

	time.Sleep(50 * time.Millisecond)
	if len(sender.sent) != 0 {
		t.Fatalf("non-owner update produced output: %+v", sender.sent)
	}
}

func TestPlainTextSetsCaption(t *testing.T) {
	t.Parallel()

	h, sender, _ := newTestHandler(t, 10*time.Millisecond)

	// Ungrouped media releases immediately.
	h.HandleInbound(photo("f1", ""))
	waitFor(t, func() bool { return len(sender.to(ownerID)) >= 1 })

	h.HandleInbound(text("hello world"))

	replies := sender.to(ownerID)
	last := replies[len(replies)-1]
	if !strings.Contains(last.text, "caption set") {
		t.Fatalf("reply = %q, want caption confirmation", last.text)
	}

	h.HandleInbound(text("/post"))
	chan1 := sender.to(channelID)
	if len(chan1) != 1 || chan1[0].kind != "media" || chan1[0].text != "hello world" {
		t.Fatalf("channel deliveries = %+v", chan1)
	}
}

func TestScheduleAndQueue(t *testing.T) {
	t.Parallel()

	h, sender, store := newTestHandler(t, 10*time.Millisecond)

	h.HandleInbound(photo("f1", ""))
	waitFor(t, func() bool { return len(sender.to(ownerID)) >= 1 })

	when := time.Now().Add(time.Hour).Format(time.RFC3339)
	h.HandleInbound(text("/schedule " + when))

	pending, err := store.ScheduledFor(context.Background(), ownerID)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 {
		t.Fatalf("pending = %d, want 1", len(pending))
	}
	sp := pending[0]
	if sp.Status != post.StatusScheduled || sp.ChannelID != channelID || sp.UID == "" {
		t.Fatalf("scheduled post wrong: %+v", sp)
	}

	h.HandleInbound(text("/queue"))
	replies := sender.to(ownerID)
	last := replies[len(replies)-1]
	if !strings.Contains(last.text, sp.UID) {
		t.Fatalf("queue reply %q does not list %q", last.text, sp.UID)
	}

	// Nothing went to the channel yet.
	if got := sender.to(channelID); len(got) != 0 {
		t.Fatalf("scheduled post delivered early: %+v", got)
	}
}

func TestSchedulePastTimeRejected(t *testing.T) {
	t.Parallel()

	h, sender, store := newTestHandler(t, 10*time.Millisecond)

	h.HandleInbound(photo("f1", ""))
	waitFor(t, func() bool { return len(sender.to(ownerID)) >= 1 })

	h.HandleInbound(text("/schedule 2001-01-01 00:00"))

	pending, _ := store.ScheduledFor(context.Background(), ownerID)
	if len(pending) != 0 {
		t.Fatalf("past schedule was accepted: %+v", pending)
	}
	replies := sender.to(ownerID)
	last := replies[len(replies)-1]
	if !strings.Contains(last.text, "past") {
		t.Fatalf("reply = %q, want past-time rejection", last.text)
	}
}

func TestSplitCommand(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, cmd, arg string
	}{
		{"/post", "/post", ""},
		{"/schedule 2026-01-02 15:04", "/schedule", "2026-01-02 15:04"},
		{"/queue@postbot", "/queue", ""},
		{"just a caption", "", "just a caption"},
	}
	for _, tt := range tests {
		cmd, arg := splitCommand(tt.in)
		if cmd != tt.cmd || arg != tt.arg {
			t.Errorf("splitCommand(%q) = (%q, %q), want (%q, %q)", tt.in, cmd, arg, tt.cmd, tt.arg)
		}
	}
}

func TestParseScheduleTime(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	if _, err := parseScheduleTime("", now); err == nil {
		t.Error("empty arg accepted")
	}
	if _, err := parseScheduleTime("garbage", now); err == nil {
		t.Error("garbage accepted")
	}
	if _, err := parseScheduleTime("2026-08-30 11:00", now); err == nil {
		t.Error("past time accepted")
	}
	got, err := parseScheduleTime("2026-08-30 13:30", now)
	if err != nil {
		t.Fatal(err)
	}
	want := time.Date(2026, 8, 30, 13, 30, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("parsed %v, want %v", got, want)
	}
	if _, err := parseScheduleTime("2026-08-30T14:00:00Z", now); err != nil {
		t.Errorf("RFC3339 rejected: %v", err)
	}
}
