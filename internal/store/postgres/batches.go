package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/analianare-star/avellaneda-backend/internal/domain"
)

func (t *tx) InsertBatch(ctx context.Context, b *domain.RescheduleBatch, items []domain.RescheduleItem) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO reschedule_batches
		   (id, shop_id, reason, suspended_until, status, moved, flagged, skipped, failed,
		    actor_type, actor_id, created_at, completed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		b.ID, b.ShopID, b.Reason, b.SuspendedUntil, b.Status, b.Moved, b.Flagged, b.Skipped, b.Failed,
		b.ActorType, b.ActorID, b.CreatedAt, b.CompletedAt)
	if err != nil {
		return fmt.Errorf("inserting reschedule batch: %w", err)
	}

	if len(items) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for i, it := range items {
		batch.Queue(
			`INSERT INTO reschedule_batch_items
			   (batch_id, broadcast_id, position, status, from_at, to_at, error, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			b.ID, it.BroadcastID, i, it.Status, it.FromAt, it.ToAt, it.Error, it.UpdatedAt)
	}
	if err := t.tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("inserting reschedule items: %w", err)
	}
	return nil
}

func (t *tx) GetBatch(ctx context.Context, id uuid.UUID) (*domain.RescheduleBatch, []domain.RescheduleItem, error) {
	var b domain.RescheduleBatch
	err := t.tx.QueryRow(ctx,
		`SELECT id, shop_id, reason, suspended_until, status, moved, flagged, skipped, failed,
		        actor_type, actor_id, created_at, completed_at
		 FROM reschedule_batches WHERE id = $1 FOR UPDATE`, id,
	).Scan(&b.ID, &b.ShopID, &b.Reason, &b.SuspendedUntil, &b.Status, &b.Moved, &b.Flagged, &b.Skipped, &b.Failed,
		&b.ActorType, &b.ActorID, &b.CreatedAt, &b.CompletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, domain.NotFound("store.get_batch", "reschedule batch", id.String())
	}
	if err != nil {
		return nil, nil, fmt.Errorf("querying reschedule batch: %w", err)
	}

	rows, err := t.tx.Query(ctx,
		`SELECT batch_id, broadcast_id, status, from_at, to_at, error, updated_at
		 FROM reschedule_batch_items WHERE batch_id = $1
		 ORDER BY position`, id)
	if err != nil {
		return nil, nil, fmt.Errorf("querying reschedule items: %w", err)
	}
	defer rows.Close()

	items := []domain.RescheduleItem{}
	for rows.Next() {
		var it domain.RescheduleItem
		if err := rows.Scan(&it.BatchID, &it.BroadcastID, &it.Status, &it.FromAt, &it.ToAt, &it.Error, &it.UpdatedAt); err != nil {
			return nil, nil, fmt.Errorf("scanning reschedule item: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterating reschedule items: %w", err)
	}
	return &b, items, nil
}

func (t *tx) UpdateBatch(ctx context.Context, b *domain.RescheduleBatch) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE reschedule_batches
		 SET status = $2, moved = $3, flagged = $4, skipped = $5, failed = $6, completed_at = $7
		 WHERE id = $1`,
		b.ID, b.Status, b.Moved, b.Flagged, b.Skipped, b.Failed, b.CompletedAt)
	if err != nil {
		return fmt.Errorf("updating reschedule batch: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound("store.update_batch", "reschedule batch", b.ID.String())
	}
	return nil
}

func (t *tx) UpdateBatchItem(ctx context.Context, it *domain.RescheduleItem) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE reschedule_batch_items
		 SET status = $3, to_at = $4, error = $5, updated_at = $6
		 WHERE batch_id = $1 AND broadcast_id = $2`,
		it.BatchID, it.BroadcastID, it.Status, it.ToAt, it.Error, it.UpdatedAt)
	if err != nil {
		return fmt.Errorf("updating reschedule item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound("store.update_batch_item", "reschedule item", it.BroadcastID.String())
	}
	return nil
}
