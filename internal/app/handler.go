package app

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"postbot/internal/album"
	"postbot/internal/compose"
	"postbot/internal/config"
	"postbot/internal/post"
	"postbot/internal/publish"
	"postbot/internal/storage"
	"postbot/internal/transport"
	"postbot/pkg/logx"
	"postbot/pkg/tghtml"
)

// draft is the per-owner working set: media collected from released album
// groups plus an optional caption, waiting for /post or /schedule.
type draft struct {
	items   []post.Item
	caption string
	updated time.Time
}

// Handler is the user-facing flow: it routes inbound updates into the album
// buffer, keeps per-owner drafts, and executes the publish/schedule commands.
type Handler struct {
	cfg    func() *config.Config
	buf    *album.Buffer
	store  storage.Store
	pub    *publish.Publisher
	sender transport.Sender
	log    logx.Logger

	mu     sync.Mutex
	drafts map[int64]*draft

	now func() time.Time
}

func NewHandler(cfg func() *config.Config, store storage.Store, pub *publish.Publisher, sender transport.Sender, log logx.Logger) *Handler {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Handler{
		cfg:    cfg,
		store:  store,
		pub:    pub,
		sender: sender,
		log:    log,
		drafts: map[int64]*draft{},
		now:    time.Now,
	}
}

// SetBuffer wires the album buffer; done post-construction because the
// buffer's release callback points back at the handler.
func (h *Handler) SetBuffer(buf *album.Buffer) { h.buf = buf }

// HandleInbound is the adapter's entry point for every update.
func (h *Handler) HandleInbound(in transport.InboundItem) {
	cfg := h.cfg()
	if cfg == nil || !cfg.Owner(in.FromID) {
		h.log.Debug("update from non-owner ignored", logx.Int64("from", in.FromID))
		return
	}
	if in.Item.Kind == post.KindText {
		h.handleText(in)
		return
	}
	h.buf.Submit(in.GroupID, in.Item, in.Chat)
}

// HandleRelease receives finalized groups from the album buffer and folds
// them into the owner's draft.
func (h *Handler) HandleRelease(groupID string, items []post.Item, chat transport.ChatTarget) {
	h.mu.Lock()
	d := h.drafts[chat.ChatID]
	if d == nil {
		d = &draft{}
		h.drafts[chat.ChatID] = d
	}
	// Only the first caption of a burst can ever be used, so fold it into
	// the draft caption and strip the rest; a caption on a later item must
	// not wedge the draft at compose time.
	for _, it := range items {
		if d.caption == "" && it.Caption != "" {
			d.caption = it.Caption
		}
		it.Caption = ""
		d.items = append(d.items, it)
	}
	d.updated = h.now()
	summary := h.summarizeLocked(d)
	h.mu.Unlock()

	h.log.Info("group released into draft",
		logx.String("group", groupID),
		logx.Int64("chat", chat.ChatID),
		logx.Int("items", len(items)))
	h.reply(chat, summary)
}

func (h *Handler) handleText(in transport.InboundItem) {
	text := strings.TrimSpace(in.Text)
	cmd, arg := splitCommand(text)
	switch cmd {
	case "/start", "/help":
		h.reply(in.Chat, usageText)
	case "/post":
		h.publishNow(in.Chat)
	case "/schedule":
		h.schedule(in.Chat, arg)
	case "/queue":
		h.listQueue(in.Chat)
	default:
		if strings.HasPrefix(text, "/") {
			h.reply(in.Chat, "Unknown command. Send /help for usage.")
			return
		}
		h.setCaption(in.Chat, text)
	}
}

func (h *Handler) setCaption(chat transport.ChatTarget, text string) {
	h.mu.Lock()
	d := h.drafts[chat.ChatID]
	if d == nil {
		d = &draft{}
		h.drafts[chat.ChatID] = d
	}
	d.caption = text
	d.updated = h.now()
	summary := h.summarizeLocked(d)
	h.mu.Unlock()
	h.reply(chat, summary)
}

// takeDraft atomically removes and returns the owner's draft.
func (h *Handler) takeDraft(chatID int64) *draft {
	h.mu.Lock()
	defer h.mu.Unlock()
	d := h.drafts[chatID]
	if d == nil || (len(d.items) == 0 && d.caption == "") {
		return nil
	}
	delete(h.drafts, chatID)
	return d
}

// restoreDraft puts a draft back after a failed command so the user's work
// is not lost.
func (h *Handler) restoreDraft(chatID int64, d *draft) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.drafts[chatID]; !exists {
		h.drafts[chatID] = d
	}
}

func (h *Handler) publishNow(chat transport.ChatTarget) {
	d := h.takeDraft(chat.ChatID)
	if d == nil {
		h.reply(chat, "Nothing to post. Send media or text first.")
		return
	}
	payloads, err := compose.Compose(d.items, d.caption)
	if err != nil {
		h.restoreDraft(chat.ChatID, d)
		h.reply(chat, "Cannot compose the post: "+tghtml.Esc(err.Error()))
		return
	}

	cfg := h.cfg()
	target := transport.ChatTarget{ChatID: cfg.Telegram.ChannelID}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	out := h.pub.Publish(ctx, target, payloads)
	switch {
	case out.Delivered && !out.Degraded:
		h.reply(chat, "Published to the channel.")
	case out.Delivered:
		h.reply(chat, "Published, but part of the post failed: "+tghtml.Esc(errText(out.Err)))
	default:
		h.restoreDraft(chat.ChatID, d)
		h.reply(chat, "Publish failed: "+tghtml.Esc(errText(out.Err)))
	}
}

func (h *Handler) schedule(chat transport.ChatTarget, arg string) {
	fireAt, err := parseScheduleTime(arg, h.now())
	if err != nil {
		h.reply(chat, tghtml.Esc(err.Error()))
		return
	}
	d := h.takeDraft(chat.ChatID)
	if d == nil {
		h.reply(chat, "Nothing to schedule. Send media or text first.")
		return
	}
	// Reject un-composable drafts up front so they never reach the queue.
	if _, err := compose.Compose(d.items, d.caption); err != nil {
		h.restoreDraft(chat.ChatID, d)
		h.reply(chat, "Cannot compose the post: "+tghtml.Esc(err.Error()))
		return
	}

	cfg := h.cfg()
	sp := &post.Scheduled{
		Post: post.Post{
			ChannelID: cfg.Telegram.ChannelID,
			OwnerChat: chat.ChatID,
			Items:     d.items,
			Text:      d.caption,
			Status:    post.StatusScheduled,
			CreatedAt: h.now(),
		},
		FireAt: fireAt,
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := h.store.CreateScheduled(ctx, sp); err != nil {
		h.restoreDraft(chat.ChatID, d)
		h.log.Error("schedule failed", logx.Err(err), logx.Int64("chat", chat.ChatID))
		h.reply(chat, "Could not save the scheduled post, try again.")
		return
	}
	h.log.Info("post scheduled",
		logx.String("uid", sp.UID),
		logx.Time("fire_at", fireAt),
		logx.Int("items", len(sp.Items)))
	h.reply(chat, fmt.Sprintf("Scheduled <code>%s</code> for %s.",
		tghtml.Esc(sp.UID), fireAt.Format("2006-01-02 15:04 MST")))
}

func (h *Handler) listQueue(chat transport.ChatTarget) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	pending, err := h.store.ScheduledFor(ctx, chat.ChatID)
	if err != nil {
		h.log.Error("queue listing failed", logx.Err(err), logx.Int64("chat", chat.ChatID))
		h.reply(chat, "Could not read the queue, try again.")
		return
	}
	if len(pending) == 0 {
		h.reply(chat, "The queue is empty.")
		return
	}
	var b strings.Builder
	b.WriteString("<b>Scheduled posts</b>\n")
	for _, sp := range pending {
		fmt.Fprintf(&b, "• <code>%s</code> — %s, %s",
			tghtml.Esc(sp.UID),
			sp.FireAt.Format("2006-01-02 15:04"),
			describeContent(sp.Items, sp.Text))
		if sp.Retries > 0 {
			fmt.Fprintf(&b, " (retry %d)", sp.Retries)
		}
		b.WriteString("\n")
	}
	h.reply(chat, b.String())
}

func (h *Handler) summarizeLocked(d *draft) string {
	var b strings.Builder
	b.WriteString("<b>Draft</b>: ")
	b.WriteString(describeContent(d.items, d.caption))
	b.WriteString("\nSend /post to publish now or /schedule &lt;time&gt; to defer.")
	return b.String()
}

func describeContent(items []post.Item, caption string) string {
	counts := map[post.ItemKind]int{}
	for _, it := range items {
		counts[it.Kind]++
	}
	parts := make([]string, 0, 4)
	for _, k := range []post.ItemKind{post.KindPhoto, post.KindVideo, post.KindAnimation, post.KindVoice, post.KindDocument} {
		if n := counts[k]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, k))
		}
	}
	if len(parts) == 0 {
		parts = append(parts, "no media")
	}
	s := strings.Join(parts, ", ")
	if caption != "" {
		s += ", caption set"
	} else {
		s += ", no caption"
	}
	return s
}

func (h *Handler) reply(chat transport.ChatTarget, html string) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if _, err := h.sender.SendText(ctx, chat, html, nil); err != nil {
		h.log.Warn("reply failed", logx.Err(err), logx.Int64("chat", chat.ChatID))
	}
}

func splitCommand(text string) (cmd, arg string) {
	if !strings.HasPrefix(text, "/") {
		return "", text
	}
	cmd, arg, _ = strings.Cut(text, " ")
	// Strip the @botname suffix of group-style commands.
	if i := strings.Index(cmd, "@"); i > 0 {
		cmd = cmd[:i]
	}
	return strings.ToLower(cmd), strings.TrimSpace(arg)
}

// parseScheduleTime accepts RFC3339 or "2006-01-02 15:04" (server local
// time) and requires the result to be in the future.
func parseScheduleTime(arg string, now time.Time) (time.Time, error) {
	if arg == "" {
		return time.Time{}, fmt.Errorf("usage: /schedule 2006-01-02 15:04 (or RFC3339)")
	}
	var t time.Time
	var err error
	if t, err = time.Parse(time.RFC3339, arg); err != nil {
		t, err = time.ParseInLocation("2006-01-02 15:04", arg, now.Location())
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("cannot parse %q: use 2006-01-02 15:04 or RFC3339", arg)
	}
	if !t.After(now) {
		return time.Time{}, fmt.Errorf("%s is in the past", t.Format("2006-01-02 15:04"))
	}
	return t, nil
}

func errText(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}

const usageText = `<b>postbot</b>
Send photos, videos or albums; they become your current draft.
Plain text sets the draft caption.

/post — publish the draft to the channel now
/schedule <code>2006-01-02 15:04</code> — publish later
/queue — list pending scheduled posts
/help — this message`
