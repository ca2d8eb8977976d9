package storage

import (
	"context"
	"errors"
	"time"

	"postbot/internal/post"
)

var ErrNotFound = errors.New("storage: not found")

// Config configures storage.
//
// Driver values:
//   - "sqlite": SQLite database file (default)
//   - "postgres": Postgres via DSN
//   - "memory": in-process store (tests, throwaway runs)
type Config struct {
	Driver      string
	Path        string        // sqlite file path
	DSN         string        // postgres connection string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Store is the durable boundary for scheduled posts.
//
// Claim is the sole cross-process mutual-exclusion point of the core: it is
// a conditional scheduled->publishing transition, so concurrent scanner
// replicas can never both own the same row.
type Store interface {
	// CreateScheduled persists sp and fills in its ID.
	CreateScheduled(ctx context.Context, sp *post.Scheduled) error

	// DueScheduled lists posts with status=scheduled and fire_at <= now,
	// oldest first, at most limit rows (0 means no limit).
	DueScheduled(ctx context.Context, now time.Time, limit int) ([]post.Scheduled, error)

	// Claim attempts the atomic scheduled->publishing transition.
	// claimed=false means another owner won the row (not an error).
	Claim(ctx context.Context, id int64, now time.Time) (claimed bool, err error)

	// MarkPublished records terminal success with the delivery receipt.
	MarkPublished(ctx context.Context, id int64, receipt string, degraded bool) error

	// MarkFailed records terminal failure with the last error.
	MarkFailed(ctx context.Context, id int64, reason string) error

	// Reschedule re-arms a claimed post for a later attempt
	// (publishing->scheduled, retry counter updated).
	Reschedule(ctx context.Context, id int64, retries int, fireAt time.Time) error

	// Release reverts a claim without touching the retry counter
	// (graceful-shutdown path).
	Release(ctx context.Context, id int64) error

	// ScheduledFor lists pending scheduled posts owned by a chat, soonest first.
	ScheduledFor(ctx context.Context, ownerChat int64) ([]post.Scheduled, error)

	Close() error
}
