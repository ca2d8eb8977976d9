// Package album aggregates media-group bursts. Telegram delivers each album
// item as a separate update with a shared media_group_id and no end-of-album
// signal, so the buffer infers completion with a per-group debounce window.
//
// The buffer has no persistent state: a restart drops pending groups. The
// upstream source is best-effort live traffic, so this is documented rather
// than mitigated.
package album

import (
	"sync"
	"time"

	"postbot/internal/post"
	"postbot/internal/transport"
	"postbot/pkg/logx"
)

const (
	DefaultWindow = 2 * time.Second
	DefaultMaxAge = 5 * time.Minute
)

type Config struct {
	// Window is the quiet period after the last item before a group releases.
	Window time.Duration
	// MaxAge caps total buffering time per group, so a slow trickle of items
	// cannot keep a group pending forever.
	MaxAge time.Duration
}

// ReleaseFunc receives a finalized group: its items in arrival order and the
// originating chat. It is called from a timer goroutine (or inline for
// ungrouped items) and must not block for long.
type ReleaseFunc func(groupID string, items []post.Item, chat transport.ChatTarget)

type group struct {
	items   []post.Item
	chat    transport.ChatTarget
	firstAt time.Time
	seq     uint64 // bumped on every append; stale timer fires are ignored
	timer   *time.Timer
}

type Buffer struct {
	mu     sync.Mutex
	groups map[string]*group

	window  time.Duration
	maxAge  time.Duration
	release ReleaseFunc
	log     logx.Logger
	now     func() time.Time
}

func New(cfg Config, release ReleaseFunc, log logx.Logger) *Buffer {
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = DefaultMaxAge
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Buffer{
		groups:  map[string]*group{},
		window:  cfg.Window,
		maxAge:  cfg.MaxAge,
		release: release,
		log:     log,
		now:     time.Now,
	}
}

// Submit feeds one inbound item into the buffer.
//
// An empty groupID bypasses buffering: the item releases immediately as a
// one-item group. Otherwise the item is appended to its pending group and the
// group's debounce timer re-arms. An append racing a just-fired release
// starts a brand-new group; it never resurrects the released one.
func (b *Buffer) Submit(groupID string, it post.Item, chat transport.ChatTarget) {
	if groupID == "" {
		b.release(groupID, []post.Item{it}, chat)
		return
	}

	b.mu.Lock()
	g, ok := b.groups[groupID]
	if !ok {
		g = &group{chat: chat, firstAt: b.now()}
		b.groups[groupID] = g
	}
	g.items = append(g.items, it)
	g.seq++
	seq := g.seq

	d := b.window
	// Force an early release when the group hits its buffering-age ceiling.
	if rem := b.maxAge - b.now().Sub(g.firstAt); rem < d {
		d = rem
		if d < 0 {
			d = 0
		}
	}
	if g.timer != nil {
		g.timer.Stop()
	}
	g.timer = time.AfterFunc(d, func() { b.fire(groupID, g, seq) })
	n := len(g.items)
	b.mu.Unlock()

	b.log.Debug("album item buffered", logx.String("group", groupID), logx.Int("buffered", n))
}

func (b *Buffer) fire(groupID string, g *group, seq uint64) {
	b.mu.Lock()
	cur, ok := b.groups[groupID]
	if !ok || cur != g || g.seq != seq {
		// Superseded by a later append, or already released.
		b.mu.Unlock()
		return
	}
	delete(b.groups, groupID)
	items := g.items
	chat := g.chat
	b.mu.Unlock()

	b.log.Info("album released", logx.String("group", groupID), logx.Int("count", len(items)))
	b.release(groupID, items, chat)
}

// Pending reports the number of groups still buffering.
func (b *Buffer) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.groups)
}

// Stop drops all pending groups without releasing them.
func (b *Buffer) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, g := range b.groups {
		if g.timer != nil {
			g.timer.Stop()
		}
		delete(b.groups, id)
	}
}
