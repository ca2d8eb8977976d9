package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"postbot/internal/post"
)

// Memory is an in-process Store. It backs the "memory" driver and tests;
// nothing survives a restart.
type Memory struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]*post.Scheduled
}

func NewMemory() *Memory {
	return &Memory{rows: map[int64]*post.Scheduled{}}
}

func (m *Memory) CreateScheduled(ctx context.Context, sp *post.Scheduled) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sp.UID == "" {
		sp.UID = uuid.NewString()
	}
	if sp.CreatedAt.IsZero() {
		sp.CreatedAt = time.Now()
	}
	sp.Status = post.StatusScheduled
	m.nextID++
	sp.ID = m.nextID
	cp := *sp
	cp.Items = append([]post.Item(nil), sp.Items...)
	m.rows[sp.ID] = &cp
	return nil
}

func (m *Memory) DueScheduled(ctx context.Context, now time.Time, limit int) ([]post.Scheduled, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []post.Scheduled
	for _, r := range m.rows {
		if r.Status == post.StatusScheduled && !r.FireAt.After(now) {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FireAt.Before(out[j].FireAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) Claim(ctx context.Context, id int64, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok || r.Status != post.StatusScheduled {
		return false, nil
	}
	r.Status = post.StatusPublishing
	r.ClaimedAt = now
	return true, nil
}

func (m *Memory) MarkPublished(ctx context.Context, id int64, receipt string, degraded bool) error {
	return m.update(id, func(r *post.Scheduled) {
		r.Status = post.StatusPublished
		r.Receipt = receipt
		r.Degraded = degraded
	})
}

func (m *Memory) MarkFailed(ctx context.Context, id int64, reason string) error {
	return m.update(id, func(r *post.Scheduled) {
		r.Status = post.StatusFailed
		r.LastError = reason
	})
}

func (m *Memory) Reschedule(ctx context.Context, id int64, retries int, fireAt time.Time) error {
	return m.update(id, func(r *post.Scheduled) {
		r.Status = post.StatusScheduled
		r.Retries = retries
		r.FireAt = fireAt
		r.ClaimedAt = time.Time{}
	})
}

func (m *Memory) Release(ctx context.Context, id int64) error {
	return m.update(id, func(r *post.Scheduled) {
		r.Status = post.StatusScheduled
		r.ClaimedAt = time.Time{}
	})
}

func (m *Memory) ScheduledFor(ctx context.Context, ownerChat int64) ([]post.Scheduled, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []post.Scheduled
	for _, r := range m.rows {
		if r.OwnerChat == ownerChat && r.Status == post.StatusScheduled {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FireAt.Before(out[j].FireAt) })
	return out, nil
}

func (m *Memory) Close() error { return nil }

// Get returns a snapshot of one row (test helper).
func (m *Memory) Get(id int64) (post.Scheduled, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok {
		return post.Scheduled{}, false
	}
	return *r, true
}

func (m *Memory) update(id int64, fn func(*post.Scheduled)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok {
		return ErrNotFound
	}
	fn(r)
	return nil
}
