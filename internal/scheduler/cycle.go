package scheduler

import (
	"context"
	"errors"
	"time"

	"postbot/internal/compose"
	"postbot/internal/eventbus"
	"postbot/internal/post"
	"postbot/internal/transport"
	"postbot/pkg/logx"
)

// RunCycle executes one scan-claim-publish pass. One post's failure never
// aborts the rest of the batch; outcomes are aggregated into CycleStats.
func (s *Service) RunCycle(ctx context.Context) CycleStats {
	var stats CycleStats
	now := s.now()

	due, err := s.store.DueScheduled(ctx, now, s.cfg.BatchLimit)
	if err != nil {
		s.log.Error("due scan failed", logx.Err(err))
		return stats
	}
	stats.Due = len(due)
	if len(due) == 0 {
		return stats
	}
	s.log.Info("processing due posts", logx.Int("count", len(due)))

	for _, sp := range due {
		if ctx.Err() != nil {
			break
		}
		s.processOne(ctx, sp, now, &stats)
	}

	s.log.Info("cycle finished",
		logx.Int("due", stats.Due), logx.Int("published", stats.Published),
		logx.Int("rescheduled", stats.Rescheduled), logx.Int("failed", stats.Failed),
		logx.Int("conflicts", stats.Conflicts))
	return stats
}

func (s *Service) processOne(ctx context.Context, sp post.Scheduled, now time.Time, stats *CycleStats) {
	log := s.log.With(logx.String("uid", sp.UID), logx.Int64("channel", sp.ChannelID))

	claimed, err := s.store.Claim(ctx, sp.ID, now)
	if err != nil {
		log.Error("claim failed", logx.Err(err))
		return
	}
	if !claimed {
		// Another scanner instance owns the row. Expected, not an error.
		log.Debug("claim conflict; skipping")
		stats.Conflicts++
		return
	}

	payloads, err := compose.Compose(sp.Items, sp.Text)
	if err != nil {
		// Contract violation: nothing was delivered and retrying cannot help.
		s.finishFailed(sp, "compose: "+err.Error(), log)
		stats.Failed++
		return
	}

	out := s.pub.Publish(ctx, transport.ChatTarget{ChatID: sp.ChannelID}, payloads)
	switch {
	case out.Delivered:
		err := s.withBG(func(ctx context.Context) error {
			return s.store.MarkPublished(ctx, sp.ID, out.ReceiptJSON(), out.Degraded)
		})
		if err != nil {
			log.Error("publish succeeded but status update failed", logx.Err(err))
			return
		}
		stats.Published++
		log.Info("scheduled post published", logx.Bool("degraded", out.Degraded))
		degradedErr := ""
		if out.Degraded && out.Err != nil {
			degradedErr = out.Err.Error()
		}
		s.emit(eventbus.EventPublished, sp, out.Degraded, degradedErr)

	case errors.Is(out.Err, context.Canceled):
		// Shutdown mid-flight: hand the claim back untouched.
		if err := s.withBG(func(ctx context.Context) error { return s.store.Release(ctx, sp.ID) }); err != nil {
			log.Error("claim release failed", logx.Err(err))
			return
		}
		stats.Released++
		log.Info("publish interrupted by shutdown; claim released")

	case out.Retryable && sp.Retries < s.cfg.RetryMax:
		attempt := sp.Retries + 1
		next := now.Add(s.cfg.RetryBackoff * time.Duration(attempt))
		err := s.withBG(func(ctx context.Context) error { return s.store.Reschedule(ctx, sp.ID, attempt, next) })
		if err != nil {
			log.Error("reschedule failed", logx.Err(err))
			return
		}
		stats.Rescheduled++
		log.Warn("delivery failed; re-armed",
			logx.Int("attempt", attempt), logx.Time("next", next), logx.Err(out.Err))

	default:
		reason := "delivery failed"
		if out.Err != nil {
			reason = out.Err.Error()
		}
		if out.Retryable {
			reason = "retries exhausted: " + reason
		}
		s.finishFailed(sp, reason, log)
		stats.Failed++
	}
}

func (s *Service) finishFailed(sp post.Scheduled, reason string, log logx.Logger) {
	if err := s.withBG(func(ctx context.Context) error { return s.store.MarkFailed(ctx, sp.ID, reason) }); err != nil {
		log.Error("failure bookkeeping failed", logx.Err(err))
		return
	}
	log.Warn("scheduled post failed", logx.String("reason", reason))
	s.emit(eventbus.EventFailed, sp, false, reason)
}

func (s *Service) emit(typ string, sp post.Scheduled, degraded bool, errText string) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(eventbus.Event{Type: typ, Data: OutcomeEvent{
		UID:       sp.UID,
		OwnerChat: sp.OwnerChat,
		ChannelID: sp.ChannelID,
		Text:      sp.Text,
		Degraded:  degraded,
		Error:     errText,
	}})
}

// withBG runs a status write under a fresh bounded context, so outcomes are
// recorded even when the cycle's context is already cancelled (shutdown must
// not lose bookkeeping).
func (s *Service) withBG(fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return fn(ctx)
}
