package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/analianare-star/avellaneda-backend/internal/domain"
)

const shopColumns = `id, name, plan, status, status_reason, status_changed_at,
	agenda_suspended_until, agenda_suspended_reason, agenda_suspended_by,
	broadcast_quota, post_quota, created_at, updated_at`

func scanShop(row pgx.Row, s *domain.Shop) error {
	return row.Scan(&s.ID, &s.Name, &s.Plan, &s.Status, &s.StatusReason, &s.StatusChangedAt,
		&s.AgendaSuspendedUntil, &s.AgendaSuspendedReason, &s.AgendaSuspendedBy,
		&s.BroadcastQuota, &s.PostQuota, &s.CreatedAt, &s.UpdatedAt)
}

func (t *tx) GetShop(ctx context.Context, id uuid.UUID) (*domain.Shop, error) {
	var s domain.Shop
	err := scanShop(t.tx.QueryRow(ctx, `SELECT `+shopColumns+` FROM shops WHERE id = $1`, id), &s)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NotFound("store.get_shop", "shop", id.String())
	}
	if err != nil {
		return nil, fmt.Errorf("querying shop: %w", err)
	}
	return &s, nil
}

func (t *tx) InsertShop(ctx context.Context, s *domain.Shop) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO shops (`+shopColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		s.ID, s.Name, s.Plan, s.Status, s.StatusReason, s.StatusChangedAt,
		s.AgendaSuspendedUntil, s.AgendaSuspendedReason, s.AgendaSuspendedBy,
		s.BroadcastQuota, s.PostQuota, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting shop: %w", err)
	}
	return nil
}

func (t *tx) UpdateShopStatus(ctx context.Context, id uuid.UUID, change domain.ShopStatusChange) error {
	var s domain.Shop
	change.Apply(&s)
	tag, err := t.tx.Exec(ctx,
		`UPDATE shops SET status = $2, status_reason = $3, status_changed_at = $4,
		   agenda_suspended_until = $5, agenda_suspended_reason = $6, agenda_suspended_by = $7,
		   updated_at = $8
		 WHERE id = $1`,
		id, s.Status, s.StatusReason, s.StatusChangedAt,
		s.AgendaSuspendedUntil, s.AgendaSuspendedReason, s.AgendaSuspendedBy, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("updating shop status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound("store.update_shop_status", "shop", id.String())
	}
	return nil
}

func (t *tx) UpdateShopPlan(ctx context.Context, id uuid.UUID, plan string, at time.Time) error {
	tag, err := t.tx.Exec(ctx, `UPDATE shops SET plan = $2, updated_at = $3 WHERE id = $1`, id, plan, at)
	if err != nil {
		return fmt.Errorf("updating shop plan: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound("store.update_shop_plan", "shop", id.String())
	}
	return nil
}

func (t *tx) SetLegacyQuotaTotal(ctx context.Context, id uuid.UUID, resource domain.Resource, total int) error {
	column := "broadcast_quota"
	if resource == domain.ResourcePost {
		column = "post_quota"
	}
	tag, err := t.tx.Exec(ctx, `UPDATE shops SET `+column+` = $2 WHERE id = $1`, id, total)
	if err != nil {
		return fmt.Errorf("updating legacy quota total: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound("store.set_legacy_quota_total", "shop", id.String())
	}
	return nil
}

func (t *tx) ListShopsWithoutWallet(ctx context.Context, limit int) ([]domain.Shop, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT `+shopColumns+` FROM shops s
		 WHERE NOT EXISTS (SELECT 1 FROM quota_wallets w WHERE w.shop_id = s.id)
		 ORDER BY created_at, id
		 LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying shops without wallet: %w", err)
	}
	defer rows.Close()

	var shops []domain.Shop
	for rows.Next() {
		var s domain.Shop
		if err := scanShop(rows, &s); err != nil {
			return nil, fmt.Errorf("scanning shop: %w", err)
		}
		shops = append(shops, s)
	}
	return shops, rows.Err()
}
