// Package scheduler runs the deferred-publishing loop: a fixed-cadence scan
// for due scheduled posts, an exclusive claim per post, and outcome
// bookkeeping with bounded retries.
//
// The loop runs independently of inbound traffic. The claim (a conditional
// status update in storage) is the only cross-process mutual exclusion, so
// the loop is safe to run as multiple replicas.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"postbot/internal/eventbus"
	"postbot/internal/publish"
	"postbot/internal/storage"
	"postbot/pkg/logx"
)

type Service struct {
	cfg   Config
	store storage.Store
	pub   *publish.Publisher
	bus   eventbus.Bus
	log   logx.Logger

	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	running bool // overlap guard; cycles never run concurrently in-process

	now func() time.Time
}

func New(cfg Config, store storage.Store, pub *publish.Publisher, bus eventbus.Bus, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		cfg:   cfg.withDefaults(),
		store: store,
		pub:   pub,
		bus:   bus,
		log:   log,
		now:   time.Now,
	}
}

func (s *Service) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)

	// SecondOptional allows both 5-field and 6-field cron specs.
	parser := cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	c := cron.New(cron.WithParser(parser))
	if _, err := c.AddFunc(s.cfg.Spec, s.tick); err != nil {
		return err
	}
	s.cron = c
	c.Start()

	s.log.Info("publishing loop started", logx.String("spec", s.cfg.Spec),
		logx.Int("retry_max", s.cfg.RetryMax), logx.Duration("retry_backoff", s.cfg.RetryBackoff))

	// Catch up on posts that came due while the process was down.
	s.tick()
	return nil
}

// Stop halts the loop and waits for an in-flight cycle to finish (or to
// revert its claims) before returning.
func (s *Service) Stop(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		s.log.Warn("publishing loop stop timed out", logx.Err(ctx.Err()))
		return ctx.Err()
	}
}

func (s *Service) tick() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.log.Debug("previous cycle still running; skipping")
		return
	}
	s.running = true
	s.mu.Unlock()

	s.wg.Add(1)
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	if s.ctx.Err() != nil {
		return
	}
	s.RunCycle(s.ctx)
}
