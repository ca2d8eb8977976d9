package scheduler

import "time"

// Config controls the publishing loop.
//
// Spec accepts a cron expression (5 or 6 fields) or a descriptor such as
// "@every 60s".
type Config struct {
	Spec         string
	RetryMax     int           // re-attempts after the first failure
	RetryBackoff time.Duration // linear backoff base between attempts
	BatchLimit   int           // max due posts per cycle, 0 = unlimited
}

const (
	DefaultSpec         = "@every 60s"
	DefaultRetryMax     = 3
	DefaultRetryBackoff = 30 * time.Second
	DefaultBatchLimit   = 50
)

func (c Config) withDefaults() Config {
	if c.Spec == "" {
		c.Spec = DefaultSpec
	}
	if c.RetryMax <= 0 {
		c.RetryMax = DefaultRetryMax
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = DefaultRetryBackoff
	}
	if c.BatchLimit < 0 {
		c.BatchLimit = 0
	} else if c.BatchLimit == 0 {
		c.BatchLimit = DefaultBatchLimit
	}
	return c
}

// CycleStats summarizes one scanner cycle for logs and tests.
type CycleStats struct {
	Due         int
	Published   int
	Rescheduled int
	Failed      int
	Conflicts   int
	Released    int
}

// OutcomeEvent is the bus payload for post.published / post.failed.
type OutcomeEvent struct {
	UID       string
	OwnerChat int64
	ChannelID int64
	Text      string
	Degraded  bool
	Error     string
}
