// Package telegram adapts the delivery and inbound boundaries to the
// Telegram Bot API via telebot.
package telegram

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v4"

	"postbot/internal/post"
	"postbot/internal/transport"
	"postbot/pkg/logx"
)

type Config struct {
	Token       string
	PollTimeout time.Duration
	// RatePerSec caps outbound API calls (Telegram allows ~30 msg/s overall).
	RatePerSec int
}

type Adapter struct {
	cfg Config
	log logx.Logger

	bot     *tele.Bot
	limiter *rate.Limiter

	inbound atomic.Value // stores transport.InboundFunc

	runMu   sync.Mutex
	running bool
	wg      sync.WaitGroup
}

func New(cfg Config, log logx.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	timeout := cfg.PollTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	b, err := tele.NewBot(tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: timeout},
	})
	if err != nil {
		return nil, err
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	rps := cfg.RatePerSec
	if rps <= 0 {
		rps = 25
	}
	a := &Adapter{
		cfg:     cfg,
		log:     log,
		bot:     b,
		limiter: rate.NewLimiter(rate.Limit(rps), rps),
	}
	var nilFn transport.InboundFunc
	a.inbound.Store(nilFn)
	a.registerHandlers()
	return a, nil
}

// SetInbound installs the consumer for inbound items. Must be called before
// Start; updates after Start still take effect (handlers read it per update).
func (a *Adapter) SetInbound(fn transport.InboundFunc) {
	a.inbound.Store(fn)
}

func (a *Adapter) Start(ctx context.Context) error {
	a.runMu.Lock()
	if a.running {
		a.runMu.Unlock()
		return nil
	}
	a.running = true
	a.runMu.Unlock()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.log.Info("polling started")
		a.bot.Start() // blocks until Stop()
		a.log.Info("polling stopped")
	}()
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		<-ctx.Done()
		a.bot.Stop()
	}()
	return nil
}

func (a *Adapter) Stop(ctx context.Context) error {
	a.runMu.Lock()
	wasRunning := a.running
	a.running = false
	a.runMu.Unlock()
	if !wasRunning {
		return nil
	}

	a.bot.Stop()

	// Keep shutdown snappy even if the long-poll is still waiting.
	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	grace := 2 * time.Second
	if dl, ok := ctx.Deadline(); ok {
		if rem := time.Until(dl); rem > 0 && rem < grace {
			grace = rem
		}
	}
	select {
	case <-done:
		return nil
	case <-time.After(grace):
		a.log.Warn("telegram stop timed out")
		return nil
	}
}

// VerifyChannel checks that the bot can post to the destination channel.
func (a *Adapter) VerifyChannel(ctx context.Context, channelID int64) error {
	if err := a.limiter.Wait(ctx); err != nil {
		return err
	}
	member, err := a.bot.ChatMemberOf(&tele.Chat{ID: channelID}, a.bot.Me)
	if err != nil {
		return classify(err)
	}
	switch member.Role {
	case tele.Creator:
		return nil
	case tele.Administrator:
		if member.Rights.CanPostMessages {
			return nil
		}
	}
	return transport.Permanent(errors.New("bot cannot post to this channel"))
}

func (a *Adapter) registerHandlers() {
	a.bot.Handle(tele.OnText, func(c tele.Context) error {
		m := c.Message()
		if m == nil {
			return nil
		}
		a.forward(transport.InboundItem{
			Item:   post.Item{Kind: post.KindText, Source: post.SourceUser},
			Chat:   transport.ChatTarget{ChatID: m.Chat.ID, ThreadID: m.ThreadID},
			FromID: m.Sender.ID,
			Text:   m.Text,
		})
		return nil
	})

	media := func(kind post.ItemKind, file func(*tele.Message) tele.File) func(tele.Context) error {
		return func(c tele.Context) error {
			m := c.Message()
			if m == nil {
				return nil
			}
			f := file(m)
			a.forward(transport.InboundItem{
				GroupID: m.AlbumID,
				Item: post.Item{
					Kind:     kind,
					FileID:   f.FileID,
					UniqueID: f.UniqueID,
					Source:   post.SourceUser,
					Caption:  m.Caption,
				},
				Chat:   transport.ChatTarget{ChatID: m.Chat.ID, ThreadID: m.ThreadID},
				FromID: m.Sender.ID,
			})
			return nil
		}
	}

	a.bot.Handle(tele.OnPhoto, media(post.KindPhoto, func(m *tele.Message) tele.File { return m.Photo.File }))
	a.bot.Handle(tele.OnVideo, media(post.KindVideo, func(m *tele.Message) tele.File { return m.Video.File }))
	a.bot.Handle(tele.OnAnimation, media(post.KindAnimation, func(m *tele.Message) tele.File { return m.Animation.File }))
	a.bot.Handle(tele.OnVoice, media(post.KindVoice, func(m *tele.Message) tele.File { return m.Voice.File }))
	a.bot.Handle(tele.OnDocument, media(post.KindDocument, func(m *tele.Message) tele.File { return m.Document.File }))
}

func (a *Adapter) forward(in transport.InboundItem) {
	fn, _ := a.inbound.Load().(transport.InboundFunc)
	if fn == nil {
		return
	}
	fn(in)
}
