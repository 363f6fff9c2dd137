package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/analianare-star/avellaneda-backend/internal/domain"
	"github.com/analianare-star/avellaneda-backend/internal/store"
)

const broadcastColumns = `id, shop_id, title, description, platform, url, status,
	scheduled_at, scheduled_end_planned, original_scheduled_at,
	reprogram_reason, reprogram_batch_id, pending_reprogram_note,
	edit_count, last_edited_at, started_at, finished_at, cancelled_at, cancel_reason,
	report_count, moderation_reason, created_at, updated_at`

func scanBroadcast(row pgx.Row, b *domain.Broadcast) error {
	return row.Scan(&b.ID, &b.ShopID, &b.Title, &b.Description, &b.Platform, &b.URL, &b.Status,
		&b.ScheduledAt, &b.ScheduledEndPlanned, &b.OriginalScheduledAt,
		&b.ReprogramReason, &b.ReprogramBatchID, &b.PendingReprogramNote,
		&b.EditCount, &b.LastEditedAt, &b.StartedAt, &b.FinishedAt, &b.CancelledAt, &b.CancelReason,
		&b.ReportCount, &b.ModerationReason, &b.CreatedAt, &b.UpdatedAt)
}

func (t *tx) GetBroadcastForUpdate(ctx context.Context, id uuid.UUID) (*domain.Broadcast, error) {
	var b domain.Broadcast
	err := scanBroadcast(t.tx.QueryRow(ctx,
		`SELECT `+broadcastColumns+` FROM broadcasts WHERE id = $1 FOR UPDATE`, id), &b)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NotFound("store.get_broadcast", "broadcast", id.String())
	}
	if err != nil {
		return nil, fmt.Errorf("querying broadcast: %w", err)
	}
	return &b, nil
}

func (t *tx) InsertBroadcast(ctx context.Context, b *domain.Broadcast) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO broadcasts (`+broadcastColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23)`,
		b.ID, b.ShopID, b.Title, b.Description, b.Platform, b.URL, b.Status,
		b.ScheduledAt, b.ScheduledEndPlanned, b.OriginalScheduledAt,
		b.ReprogramReason, b.ReprogramBatchID, b.PendingReprogramNote,
		b.EditCount, b.LastEditedAt, b.StartedAt, b.FinishedAt, b.CancelledAt, b.CancelReason,
		b.ReportCount, b.ModerationReason, b.CreatedAt, b.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting broadcast: %w", err)
	}
	return nil
}

func (t *tx) UpdateBroadcast(ctx context.Context, b *domain.Broadcast) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE broadcasts SET
		   title = $2, description = $3, platform = $4, url = $5, status = $6,
		   scheduled_at = $7, scheduled_end_planned = $8, original_scheduled_at = $9,
		   reprogram_reason = $10, reprogram_batch_id = $11, pending_reprogram_note = $12,
		   edit_count = $13, last_edited_at = $14, started_at = $15, finished_at = $16,
		   cancelled_at = $17, cancel_reason = $18, report_count = $19, moderation_reason = $20,
		   updated_at = $21
		 WHERE id = $1`,
		b.ID, b.Title, b.Description, b.Platform, b.URL, b.Status,
		b.ScheduledAt, b.ScheduledEndPlanned, b.OriginalScheduledAt,
		b.ReprogramReason, b.ReprogramBatchID, b.PendingReprogramNote,
		b.EditCount, b.LastEditedAt, b.StartedAt, b.FinishedAt,
		b.CancelledAt, b.CancelReason, b.ReportCount, b.ModerationReason, b.UpdatedAt)
	if err != nil {
		return fmt.Errorf("updating broadcast: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound("store.update_broadcast", "broadcast", b.ID.String())
	}
	return nil
}

func broadcastWhere(f store.BroadcastFilter) *where {
	w := &where{}
	if f.ShopID != uuid.Nil {
		w.add("shop_id = $%d", f.ShopID)
	}
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			statuses[i] = string(s)
		}
		w.add("status = ANY($%d)", statuses)
	}
	if !f.From.IsZero() {
		w.add("scheduled_at >= $%d", f.From)
	}
	if !f.Before.IsZero() {
		w.add("scheduled_at < $%d", f.Before)
	}
	if !f.Through.IsZero() {
		w.add("scheduled_at <= $%d", f.Through)
	}
	if f.ExcludeID != uuid.Nil {
		w.add("id <> $%d", f.ExcludeID)
	}
	return w
}

func (t *tx) CountBroadcasts(ctx context.Context, f store.BroadcastFilter) (int, error) {
	w := broadcastWhere(f)
	var n int
	if err := t.tx.QueryRow(ctx, `SELECT COUNT(*) FROM broadcasts WHERE `+w.String(), w.args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting broadcasts: %w", err)
	}
	return n, nil
}

func (t *tx) ListBroadcasts(ctx context.Context, f store.BroadcastFilter) ([]domain.Broadcast, error) {
	w := broadcastWhere(f)
	query := `SELECT ` + broadcastColumns + ` FROM broadcasts WHERE ` + w.String() + ` ORDER BY scheduled_at, id`
	args := w.args
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", w.next())
		args = append(args, f.Limit)
	}

	rows, err := t.tx.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying broadcasts: %w", err)
	}
	defer rows.Close()

	out := []domain.Broadcast{}
	for rows.Next() {
		var b domain.Broadcast
		if err := scanBroadcast(rows, &b); err != nil {
			return nil, fmt.Errorf("scanning broadcast: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// Posts

func (t *tx) InsertPost(ctx context.Context, p *domain.Post) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO posts (id, shop_id, url, platform, created_at) VALUES ($1, $2, $3, $4, $5)`,
		p.ID, p.ShopID, p.URL, p.Platform, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting post: %w", err)
	}
	return nil
}

func (t *tx) CountPosts(ctx context.Context, f store.PostFilter) (int, error) {
	w := &where{}
	if f.ShopID != uuid.Nil {
		w.add("shop_id = $%d", f.ShopID)
	}
	if !f.From.IsZero() {
		w.add("created_at >= $%d", f.From)
	}
	if !f.Before.IsZero() {
		w.add("created_at < $%d", f.Before)
	}
	if f.ExcludeID != uuid.Nil {
		w.add("id <> $%d", f.ExcludeID)
	}

	var n int
	if err := t.tx.QueryRow(ctx, `SELECT COUNT(*) FROM posts WHERE `+w.String(), w.args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting posts: %w", err)
	}
	return n, nil
}

// Reports

func (t *tx) InsertReport(ctx context.Context, r *domain.BroadcastReport) error {
	tag, err := t.tx.Exec(ctx,
		`INSERT INTO broadcast_reports (id, broadcast_id, reporter_id, reason, counted, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (broadcast_id, reporter_id) DO NOTHING`,
		r.ID, r.BroadcastID, r.ReporterID, r.Reason, r.Counted, r.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting report: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.Errorf(domain.ECONFLICT, "store.insert_report", "broadcast %s was already reported by %s", r.BroadcastID, r.ReporterID)
	}
	return nil
}

// Purchases

func (t *tx) InsertPurchase(ctx context.Context, p *domain.Purchase) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO purchases (id, shop_id, resource, quantity, status, approved_at, actor_type, actor_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		p.ID, p.ShopID, p.Resource, p.Quantity, p.Status, p.ApprovedAt, p.ActorType, p.ActorID, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting purchase: %w", err)
	}
	return nil
}
