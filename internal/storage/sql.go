package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"postbot/internal/post"
	"postbot/pkg/logx"
)

const table = "scheduled_posts"

var selectColumns = []string{
	"id", "uid", "channel_id", "owner_chat", "body", "media", "status",
	"fire_at", "retries", "claimed_at", "last_error", "degraded", "receipt",
	"created_at",
}

// sqlStore is the shared database/sql implementation behind the sqlite and
// postgres drivers. The drivers differ only in placeholders, migrations and
// how an insert id comes back.
type sqlStore struct {
	db        *sql.DB
	sb        sq.StatementBuilderType
	returning bool // INSERT ... RETURNING id (postgres); sqlite uses LastInsertId
	log       logx.Logger
}

func (s *sqlStore) CreateScheduled(ctx context.Context, sp *post.Scheduled) error {
	if sp.UID == "" {
		sp.UID = uuid.NewString()
	}
	if sp.CreatedAt.IsZero() {
		sp.CreatedAt = time.Now()
	}
	sp.Status = post.StatusScheduled

	media, err := post.EncodeItems(sp.Items)
	if err != nil {
		return err
	}

	q := s.sb.Insert(table).
		Columns("uid", "channel_id", "owner_chat", "body", "media", "status",
			"fire_at", "retries", "created_at", "updated_at").
		Values(sp.UID, sp.ChannelID, sp.OwnerChat, sp.Text, media, string(sp.Status),
			sp.FireAt.UnixMilli(), sp.Retries, sp.CreatedAt.UnixMilli(), sp.CreatedAt.UnixMilli())

	if s.returning {
		sqlStr, args, err := q.Suffix("RETURNING id").ToSql()
		if err != nil {
			return err
		}
		if err := s.db.QueryRowContext(ctx, sqlStr, args...).Scan(&sp.ID); err != nil {
			return fmt.Errorf("insert scheduled: %w", err)
		}
		return nil
	}

	sqlStr, args, err := q.ToSql()
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return fmt.Errorf("insert scheduled: %w", err)
	}
	sp.ID, err = res.LastInsertId()
	return err
}

func (s *sqlStore) DueScheduled(ctx context.Context, now time.Time, limit int) ([]post.Scheduled, error) {
	q := s.sb.Select(selectColumns...).From(table).
		Where(sq.Eq{"status": string(post.StatusScheduled)}).
		Where(sq.LtOrEq{"fire_at": now.UnixMilli()}).
		OrderBy("fire_at ASC")
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	return s.queryScheduled(ctx, q)
}

func (s *sqlStore) Claim(ctx context.Context, id int64, now time.Time) (bool, error) {
	sqlStr, args, err := s.sb.Update(table).
		Set("status", string(post.StatusPublishing)).
		Set("claimed_at", now.UnixMilli()).
		Set("updated_at", now.UnixMilli()).
		Where(sq.Eq{"id": id, "status": string(post.StatusScheduled)}).
		ToSql()
	if err != nil {
		return false, err
	}
	res, err := s.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return false, fmt.Errorf("claim %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *sqlStore) MarkPublished(ctx context.Context, id int64, receipt string, degraded bool) error {
	return s.updateOne(ctx, id, map[string]any{
		"status":   string(post.StatusPublished),
		"receipt":  receipt,
		"degraded": degraded,
	})
}

func (s *sqlStore) MarkFailed(ctx context.Context, id int64, reason string) error {
	return s.updateOne(ctx, id, map[string]any{
		"status":     string(post.StatusFailed),
		"last_error": reason,
	})
}

func (s *sqlStore) Reschedule(ctx context.Context, id int64, retries int, fireAt time.Time) error {
	return s.updateOne(ctx, id, map[string]any{
		"status":     string(post.StatusScheduled),
		"retries":    retries,
		"fire_at":    fireAt.UnixMilli(),
		"claimed_at": nil,
	})
}

func (s *sqlStore) Release(ctx context.Context, id int64) error {
	return s.updateOne(ctx, id, map[string]any{
		"status":     string(post.StatusScheduled),
		"claimed_at": nil,
	})
}

func (s *sqlStore) ScheduledFor(ctx context.Context, ownerChat int64) ([]post.Scheduled, error) {
	q := s.sb.Select(selectColumns...).From(table).
		Where(sq.Eq{"owner_chat": ownerChat, "status": string(post.StatusScheduled)}).
		OrderBy("fire_at ASC")
	return s.queryScheduled(ctx, q)
}

func (s *sqlStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqlStore) updateOne(ctx context.Context, id int64, set map[string]any) error {
	set["updated_at"] = time.Now().UnixMilli()
	sqlStr, args, err := s.sb.Update(table).SetMap(set).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return fmt.Errorf("update %d: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *sqlStore) queryScheduled(ctx context.Context, q sq.SelectBuilder) ([]post.Scheduled, error) {
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("query scheduled: %w", err)
	}
	defer rows.Close()

	var out []post.Scheduled
	for rows.Next() {
		sp, err := scanScheduled(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sp)
	}
	return out, rows.Err()
}

func scanScheduled(rows *sql.Rows) (post.Scheduled, error) {
	var (
		sp        post.Scheduled
		status    string
		media     string
		fireAt    int64
		createdAt int64
		claimedAt sql.NullInt64
		lastErr   sql.NullString
		receipt   sql.NullString
	)
	if err := rows.Scan(&sp.ID, &sp.UID, &sp.ChannelID, &sp.OwnerChat, &sp.Text, &media,
		&status, &fireAt, &sp.Retries, &claimedAt, &lastErr, &sp.Degraded, &receipt,
		&createdAt); err != nil {
		return sp, fmt.Errorf("scan scheduled: %w", err)
	}
	items, err := post.DecodeItems(media)
	if err != nil {
		return sp, err
	}
	sp.Items = items
	sp.Status = post.Status(status)
	sp.FireAt = time.UnixMilli(fireAt)
	sp.CreatedAt = time.UnixMilli(createdAt)
	if claimedAt.Valid {
		sp.ClaimedAt = time.UnixMilli(claimedAt.Int64)
	}
	sp.LastError = lastErr.String
	sp.Receipt = receipt.String
	return sp, nil
}
