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

const walletColumns = `shop_id,
	weekly_broadcast_base_limit, weekly_broadcast_used, weekly_broadcast_week_key, broadcast_extra_balance,
	daily_post_limit, daily_post_used, daily_post_date_key, post_extra_balance,
	created_at, updated_at`

func (t *tx) GetWalletForUpdate(ctx context.Context, shopID uuid.UUID) (*domain.QuotaWallet, error) {
	var w domain.QuotaWallet
	err := t.tx.QueryRow(ctx,
		`SELECT `+walletColumns+` FROM quota_wallets WHERE shop_id = $1 FOR UPDATE`, shopID,
	).Scan(&w.ShopID,
		&w.WeeklyBroadcastBaseLimit, &w.WeeklyBroadcastUsed, &w.WeeklyBroadcastWeekKey, &w.BroadcastExtraBalance,
		&w.DailyPostLimit, &w.DailyPostUsed, &w.DailyPostDateKey, &w.PostExtraBalance,
		&w.CreatedAt, &w.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying wallet: %w", err)
	}
	return &w, nil
}

func (t *tx) InsertWallet(ctx context.Context, w *domain.QuotaWallet) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO quota_wallets (`+walletColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		w.ShopID,
		w.WeeklyBroadcastBaseLimit, w.WeeklyBroadcastUsed, w.WeeklyBroadcastWeekKey, w.BroadcastExtraBalance,
		w.DailyPostLimit, w.DailyPostUsed, w.DailyPostDateKey, w.PostExtraBalance,
		w.CreatedAt, w.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting wallet: %w", err)
	}
	return nil
}

func (t *tx) UpdateWallet(ctx context.Context, w *domain.QuotaWallet) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE quota_wallets SET
		   weekly_broadcast_base_limit = $2, weekly_broadcast_used = $3,
		   weekly_broadcast_week_key = $4, broadcast_extra_balance = $5,
		   daily_post_limit = $6, daily_post_used = $7,
		   daily_post_date_key = $8, post_extra_balance = $9,
		   updated_at = $10
		 WHERE shop_id = $1`,
		w.ShopID,
		w.WeeklyBroadcastBaseLimit, w.WeeklyBroadcastUsed, w.WeeklyBroadcastWeekKey, w.BroadcastExtraBalance,
		w.DailyPostLimit, w.DailyPostUsed, w.DailyPostDateKey, w.PostExtraBalance,
		w.UpdatedAt)
	if err != nil {
		return fmt.Errorf("updating wallet: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound("store.update_wallet", "wallet", w.ShopID.String())
	}
	return nil
}

// Ledger

func (t *tx) AppendTransaction(ctx context.Context, qt *domain.QuotaTransaction) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO quota_transactions
		   (id, shop_id, resource, direction, amount, reason, ref_type, ref_id, actor_type, actor_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		qt.ID, qt.ShopID, qt.Resource, qt.Direction, qt.Amount, qt.Reason,
		qt.RefType, qt.RefID, qt.ActorType, qt.ActorID, qt.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting quota transaction: %w", err)
	}
	return nil
}

func (t *tx) ListTransactions(ctx context.Context, shopID uuid.UUID, f store.LedgerFilter) ([]domain.QuotaTransaction, int64, error) {
	f = f.Normalize()

	w := &where{}
	w.add("shop_id = $%d", shopID)
	if f.Resource != "" {
		w.add("resource = $%d", f.Resource)
	}

	var total int64
	if err := t.tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM quota_transactions WHERE `+w.String(), w.args...,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting quota transactions: %w", err)
	}

	offset := (f.Page - 1) * f.PageSize
	query := fmt.Sprintf(
		`SELECT id, shop_id, resource, direction, amount, reason, ref_type, ref_id, actor_type, actor_id, created_at
		 FROM quota_transactions WHERE %s
		 ORDER BY seq ASC
		 LIMIT $%d OFFSET $%d`, w.String(), w.next(), w.next()+1)
	args := append(w.args, f.PageSize, offset)

	rows, err := t.tx.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("querying quota transactions: %w", err)
	}
	defer rows.Close()

	items := []domain.QuotaTransaction{}
	for rows.Next() {
		var qt domain.QuotaTransaction
		if err := rows.Scan(&qt.ID, &qt.ShopID, &qt.Resource, &qt.Direction, &qt.Amount, &qt.Reason,
			&qt.RefType, &qt.RefID, &qt.ActorType, &qt.ActorID, &qt.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scanning quota transaction: %w", err)
		}
		items = append(items, qt)
	}
	return items, total, rows.Err()
}
