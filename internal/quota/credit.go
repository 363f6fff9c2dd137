package quota

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/analianare-star/avellaneda-backend/internal/domain"
	"github.com/analianare-star/avellaneda-backend/internal/metrics"
	"github.com/analianare-star/avellaneda-backend/internal/plan"
	"github.com/analianare-star/avellaneda-backend/internal/store"
)

// CreditRequest adds Amount units to a shop's extra balance.
type CreditRequest struct {
	ShopID   uuid.UUID
	Resource domain.Resource
	Amount   int
	Reason   domain.Reason
	Ref      domain.Ref
	Actor    domain.Actor
	At       time.Time
}

// Credit adds to the extra balance and records one CREDIT entry. The legacy
// total is recomputed from a fresh snapshot at req.At.
func (e *Engine) Credit(ctx context.Context, tx store.Tx, req CreditRequest) (*domain.QuotaTransaction, error) {
	const op = "quota.credit"

	if req.Amount <= 0 {
		metrics.QuotaRejectionsTotal.WithLabelValues(string(req.Resource), domain.EAMOUNT).Inc()
		return nil, domain.InvalidAmount(op, req.Amount)
	}
	if req.Reason == "" {
		req.Reason = domain.ReasonPurchase
	}

	snap, err := e.Snapshot(ctx, tx, SnapshotRequest{ShopID: req.ShopID, Resource: req.Resource, At: req.At})
	if err != nil {
		return nil, err
	}

	c := snap.Wallet.Counter(req.Resource)
	c.Extra += req.Amount
	snap.Wallet.SetCounter(req.Resource, c)
	snap.Wallet.UpdatedAt = e.now()
	snap.Extra = c.Extra
	if err := tx.UpdateWallet(ctx, snap.Wallet); err != nil {
		return nil, domain.Internal(err, op, "persisting wallet")
	}

	if err := e.projectLegacyTotal(ctx, tx, snap); err != nil {
		return nil, err
	}

	entry := e.entry(req.ShopID, req.Resource, domain.DirectionCredit, req.Amount, req.Reason, req.Ref, req.Actor)
	if err := tx.AppendTransaction(ctx, entry); err != nil {
		return nil, domain.Internal(err, op, "appending ledger entry")
	}

	metrics.QuotaCreditedUnitsTotal.WithLabelValues(string(req.Resource), string(req.Reason)).Add(float64(req.Amount))
	e.logger.Info("quota credited",
		"shop_id", req.ShopID,
		"resource", req.Resource,
		"amount", req.Amount,
		"reason", req.Reason,
		"extra_balance", c.Extra,
	)
	return entry, nil
}

// MigrateRequest carries a shop's legacy flat "remaining quota" numbers.
type MigrateRequest struct {
	ShopID          uuid.UUID
	LegacyBroadcast int
	LegacyPost      int
	At              time.Time
}

// MigrationResult reports what MigrateLegacy did.
type MigrationResult struct {
	Wallet       *domain.QuotaWallet
	Created      bool
	Transactions []*domain.QuotaTransaction
}

// MigrateLegacy splits legacy totals into base usage and extra balance and
// creates the wallet. A shop that already has a wallet is left untouched.
func (e *Engine) MigrateLegacy(ctx context.Context, tx store.Tx, req MigrateRequest) (*MigrationResult, error) {
	const op = "quota.migrate_legacy"

	shop, err := tx.GetShop(ctx, req.ShopID)
	if err != nil {
		return nil, err
	}

	existing, err := tx.GetWalletForUpdate(ctx, req.ShopID)
	if err != nil {
		return nil, domain.Internal(err, op, "loading wallet")
	}
	if existing != nil {
		return &MigrationResult{Wallet: existing}, nil
	}

	limits := plan.Resolve(shop.Plan)
	wallet := e.newWallet(shop, req.At)
	legacy := map[domain.Resource]int{
		domain.ResourceBroadcast: req.LegacyBroadcast,
		domain.ResourcePost:      req.LegacyPost,
	}

	for _, r := range []domain.Resource{domain.ResourceBroadcast, domain.ResourcePost} {
		c := wallet.Counter(r)
		c.Used, c.Extra = SplitLegacy(legacy[r], limits.Base(r))
		wallet.SetCounter(r, c)
	}

	if err := tx.InsertWallet(ctx, wallet); err != nil {
		return nil, domain.Internal(err, op, "creating wallet")
	}

	result := &MigrationResult{Wallet: wallet, Created: true}
	for _, r := range []domain.Resource{domain.ResourceBroadcast, domain.ResourcePost} {
		c := wallet.Counter(r)
		if err := tx.SetLegacyQuotaTotal(ctx, shop.ID, r, c.Limit-c.Used+c.Extra); err != nil {
			return nil, domain.Internal(err, op, "writing legacy total")
		}
		if c.Extra <= 0 {
			continue
		}
		entry := e.entry(shop.ID, r, domain.DirectionCredit, c.Extra, domain.ReasonLegacyMigration,
			domain.Ref{Type: domain.RefSystem, ID: "legacy-migration"}, domain.SystemActor)
		if err := tx.AppendTransaction(ctx, entry); err != nil {
			return nil, domain.Internal(err, op, "appending ledger entry")
		}
		result.Transactions = append(result.Transactions, entry)
	}

	e.logger.Info("legacy quota migrated",
		"shop_id", shop.ID,
		"broadcast_extra", wallet.BroadcastExtraBalance,
		"broadcast_used", wallet.WeeklyBroadcastUsed,
		"post_extra", wallet.PostExtraBalance,
		"post_used", wallet.DailyPostUsed,
	)
	return result, nil
}

// SplitLegacy converts a legacy remaining total into base usage and extra balance
// for a plan granting base units. Negative totals count as zero.
func SplitLegacy(legacy, base int) (used, extra int) {
	legacy = max(0, legacy)
	extra = max(0, legacy-base)
	used = base - min(legacy, base)
	return used, extra
}
