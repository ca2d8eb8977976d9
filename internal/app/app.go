// Package app wires configuration, storage, the Telegram adapter, the album
// buffer and the scheduler into one runnable bot.
package app

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"postbot/internal/album"
	"postbot/internal/config"
	"postbot/internal/eventbus"
	"postbot/internal/publish"
	"postbot/internal/scheduler"
	"postbot/internal/storage"
	"postbot/internal/transport/telegram"
	"postbot/pkg/logx"
)

type App struct {
	cfgm *config.Manager
	logs *logx.Service
	log  logx.Logger

	bus     eventbus.Bus
	store   storage.Store
	adapter *telegram.Adapter
	buf     *album.Buffer
	handler *Handler
	sched   *scheduler.Service

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	log = log.With(logx.String("comp", "app"))
	cfgm.SetLogger(log.With(logx.String("comp", "config")))

	busyTimeout, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(storage.Config{
		Driver:      cfg.Storage.Driver,
		Path:        cfg.Storage.Path,
		DSN:         cfg.Storage.DSN,
		BusyTimeout: busyTimeout,
	}, log.With(logx.String("comp", "storage")))
	if err != nil {
		return nil, err
	}

	pollTimeout, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return nil, err
	}
	adapter, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: pollTimeout,
		RatePerSec:  cfg.Telegram.RatePerSec,
	}, log.With(logx.String("comp", "telegram")))
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	sendTimeout, err := config.ParseDurationOrDefault("scheduler.send_timeout", cfg.Scheduler.SendTimeout, 30*time.Second)
	if err != nil {
		return nil, err
	}
	pub := publish.New(adapter, sendTimeout, log.With(logx.String("comp", "publish")))

	handler := NewHandler(cfgm.Get, store, pub, adapter, log.With(logx.String("comp", "handler")))

	window, err := config.ParseDurationField("buffer.window", cfg.Buffer.Window)
	if err != nil {
		return nil, err
	}
	maxAge, err := config.ParseDurationField("buffer.max_age", cfg.Buffer.MaxAge)
	if err != nil {
		return nil, err
	}
	buf := album.New(album.Config{Window: window, MaxAge: maxAge},
		handler.HandleRelease, log.With(logx.String("comp", "buffer")))
	handler.SetBuffer(buf)
	adapter.SetInbound(handler.HandleInbound)

	retryBackoff, err := config.ParseDurationField("scheduler.retry_backoff", cfg.Scheduler.RetryBackoff)
	if err != nil {
		return nil, err
	}
	bus := eventbus.New()
	sched := scheduler.New(scheduler.Config{
		Spec:         cfg.Scheduler.Spec,
		RetryMax:     cfg.Scheduler.RetryMax,
		RetryBackoff: retryBackoff,
		BatchLimit:   cfg.Scheduler.BatchLimit,
	}, store, pub, bus, log.With(logx.String("comp", "scheduler")))

	return &App{
		cfgm:    cfgm,
		logs:    logSvc,
		log:     log,
		bus:     bus,
		store:   store,
		adapter: adapter,
		buf:     buf,
		handler: handler,
		sched:   sched,
	}, nil
}

func (a *App) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	if err := a.adapter.Start(runCtx); err != nil {
		cancel()
		return err
	}

	// Channel rights are checked once at startup; a failure is surfaced but
	// not fatal (the bot may be granted rights later).
	vctx, vcancel := context.WithTimeout(runCtx, 15*time.Second)
	if err := a.adapter.VerifyChannel(vctx, a.cfgm.Get().Telegram.ChannelID); err != nil {
		a.log.Warn("channel access check failed",
			logx.Err(err),
			logx.Int64("channel", a.cfgm.Get().Telegram.ChannelID))
	}
	vcancel()

	if err := a.sched.Start(runCtx); err != nil {
		cancel()
		return err
	}

	events, unsub := a.bus.Subscribe(64)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.notifyLoop(runCtx, events, unsub)
	}()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		_ = a.cfgm.Watch(runCtx)
	}()

	sub := a.cfgm.Subscribe(8)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.reloadLoop(runCtx, sub)
	}()

	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)
	a.log.Info("bot started",
		logx.Int64("channel", a.cfgm.Get().Telegram.ChannelID),
		logx.String("scan", a.cfgm.Get().Scheduler.Spec))
	return nil
}

// reloadLoop applies hot-reloadable config (logging) and flags the sections
// that need a restart.
func (a *App) reloadLoop(ctx context.Context, sub chan *config.Config) {
	defer a.cfgm.Unsubscribe(sub)
	last := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case cfg, ok := <-sub:
			if !ok {
				return
			}
			sections, attrs := config.SummarizeChange(last, cfg)
			if len(sections) == 0 {
				continue
			}
			fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
			a.log.Info("config change applied", fields...)
			last = cfg

			a.logs.Apply(logx.Config{
				Level:   cfg.Logging.Level,
				Console: cfg.Logging.Console,
				File: logx.FileConfig{
					Enabled: cfg.Logging.File.Enabled,
					Path:    cfg.Logging.File.Path,
				},
			})
			for _, s := range sections {
				switch s {
				case "storage", "telegram", "buffer", "scheduler":
					a.log.Warn("section change requires restart", logx.String("section", s))
				}
			}
		}
	}
}

func (a *App) Stop(ctx context.Context) error {
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

	// Stop intake first so no new groups form, drop pending groups, then
	// stop the scheduler (which waits for the in-flight cycle), then close
	// the durable layers.
	_ = a.adapter.Stop(ctx)
	a.buf.Stop()
	if a.cancel != nil {
		a.cancel()
	}
	_ = a.sched.Stop(ctx)

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}

	if err := a.store.Close(); err != nil {
		a.log.Warn("storage close failed", logx.Err(err))
	}
	a.log.Info("bot stopped")
	return a.logs.Close()
}
