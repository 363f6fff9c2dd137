package quota

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/analianare-star/avellaneda-backend/internal/domain"
	inats "github.com/analianare-star/avellaneda-backend/internal/nats"
	"github.com/analianare-star/avellaneda-backend/internal/store"
)

// Service exposes wallet operations that run in their own transaction.
type Service struct {
	store     store.Store
	engine    *Engine
	publisher inats.EventPublisher
	now       func() time.Time
}

// NewService creates a quota Service.
func NewService(st store.Store, engine *Engine, publisher inats.EventPublisher) *Service {
	if publisher == nil {
		publisher = inats.NoopPublisher{}
	}
	return &Service{store: st, engine: engine, publisher: publisher, now: engine.now}
}

// ResourceView is the caller-facing quota state of one resource.
type ResourceView struct {
	Resource      domain.Resource `json:"resource"`
	PeriodKey     string          `json:"period_key"`
	PeriodStart   time.Time       `json:"period_start"`
	PeriodEnd     time.Time       `json:"period_end"`
	BaseLimit     int             `json:"base_limit"`
	Consumed      int             `json:"consumed"`
	BaseRemaining int             `json:"base_remaining"`
	ExtraBalance  int             `json:"extra_balance"`
	Available     int             `json:"available"`
}

// WalletView is the quota state of both resources at one instant.
type WalletView struct {
	ShopID    uuid.UUID    `json:"shop_id"`
	At        time.Time    `json:"at"`
	Broadcast ResourceView `json:"broadcast"`
	Post      ResourceView `json:"post"`
}

func newResourceView(s *Snapshot) ResourceView {
	return ResourceView{
		Resource:      s.Resource,
		PeriodKey:     s.Period.Key(),
		PeriodStart:   s.Period.Start,
		PeriodEnd:     s.Period.End,
		BaseLimit:     s.BaseLimit,
		Consumed:      s.Consumed,
		BaseRemaining: s.BaseRemaining,
		ExtraBalance:  s.Extra,
		Available:     s.Available(),
	}
}

// Snapshot returns the wallet view at the given instant; zero means now.
// Rolling over and reconciling are persisted like any other snapshot.
func (s *Service) Snapshot(ctx context.Context, shopID uuid.UUID, at time.Time) (*WalletView, error) {
	if at.IsZero() {
		at = s.now()
	}

	var view *WalletView
	err := s.store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		b, err := s.engine.Snapshot(ctx, tx, SnapshotRequest{ShopID: shopID, Resource: domain.ResourceBroadcast, At: at})
		if err != nil {
			return err
		}
		p, err := s.engine.Snapshot(ctx, tx, SnapshotRequest{ShopID: shopID, Resource: domain.ResourcePost, At: at})
		if err != nil {
			return err
		}
		// A rollover changes what remains, so keep the display totals in step.
		if err := s.engine.projectLegacyTotal(ctx, tx, b); err != nil {
			return err
		}
		if err := s.engine.projectLegacyTotal(ctx, tx, p); err != nil {
			return err
		}
		view = &WalletView{ShopID: shopID, At: at, Broadcast: newResourceView(b), Post: newResourceView(p)}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// GrantRequest is an administrative credit.
type GrantRequest struct {
	ShopID   uuid.UUID
	Resource domain.Resource
	Amount   int
	Note     string
}

// Grant credits extra units on behalf of an administrator.
func (s *Service) Grant(ctx context.Context, req GrantRequest, actor domain.Actor) (*domain.QuotaTransaction, error) {
	const op = "quota.grant"

	if !actor.IsAdmin() {
		return nil, domain.Forbidden(op, "only administrators can grant quota")
	}
	if !req.Resource.Valid() {
		return nil, domain.Invalid(op, "unknown resource "+string(req.Resource))
	}

	now := s.now()
	var entry *domain.QuotaTransaction
	err := s.store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		entry, err = s.engine.Credit(ctx, tx, CreditRequest{
			ShopID:   req.ShopID,
			Resource: req.Resource,
			Amount:   req.Amount,
			Reason:   domain.ReasonAdminGrant,
			Ref:      domain.Ref{Type: domain.RefSystem, ID: "admin-grant"},
			Actor:    actor,
			At:       now,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	details := fmt.Sprintf("granted %d %s units", req.Amount, req.Resource.Label())
	if req.Note != "" {
		details += ": " + req.Note
	}
	inats.Emit(ctx, s.publisher, []*domain.QuotaTransaction{entry},
		inats.NewAuditEvent(req.ShopID, inats.EventQuotaGranted, "quota_transaction", entry.ID.String(), details, actor, now))
	return entry, nil
}

// MigrateLegacyWallet creates the shop's wallet from its legacy display totals.
// It is idempotent: a shop that already has a wallet reports Created=false.
func (s *Service) MigrateLegacyWallet(ctx context.Context, shopID uuid.UUID) (*MigrationResult, error) {
	now := s.now()
	var result *MigrationResult
	err := s.store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		shop, err := tx.GetShop(ctx, shopID)
		if err != nil {
			return err
		}
		result, err = s.engine.MigrateLegacy(ctx, tx, MigrateRequest{
			ShopID:          shopID,
			LegacyBroadcast: shop.BroadcastQuota,
			LegacyPost:      shop.PostQuota,
			At:              now,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	if result.Created {
		inats.Emit(ctx, s.publisher, result.Transactions,
			inats.NewAuditEvent(shopID, inats.EventWalletMigrated, "quota_wallet", shopID.String(),
				fmt.Sprintf("legacy wallet migrated: broadcast extra %d, post extra %d",
					result.Wallet.BroadcastExtraBalance, result.Wallet.PostExtraBalance),
				domain.SystemActor, now))
	}
	return result, nil
}

// BackfillReport summarizes a backfill run.
type BackfillReport struct {
	Created int
	Skipped int
	Failed  int
}

// Backfill migrates every shop without a wallet, batchSize shops at a time.
func (s *Service) Backfill(ctx context.Context, batchSize int) (*BackfillReport, error) {
	if batchSize <= 0 {
		batchSize = 100
	}
	report := &BackfillReport{}
	failed := make(map[uuid.UUID]bool)

	for {
		var shops []domain.Shop
		err := s.store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
			var err error
			shops, err = tx.ListShopsWithoutWallet(ctx, batchSize+len(failed))
			return err
		})
		if err != nil {
			return report, fmt.Errorf("listing shops without wallet: %w", err)
		}

		progressed := false
		for _, shop := range shops {
			if failed[shop.ID] {
				continue
			}
			if ctx.Err() != nil {
				return report, ctx.Err()
			}
			res, err := s.MigrateLegacyWallet(ctx, shop.ID)
			if err != nil {
				failed[shop.ID] = true
				report.Failed++
				slog.Error("backfill: migrating wallet", "error", err, "shop_id", shop.ID)
				continue
			}
			progressed = true
			if res.Created {
				report.Created++
			} else {
				report.Skipped++
			}
		}

		if !progressed {
			return report, nil
		}
	}
}

// TransactionPage is one page of ledger entries.
type TransactionPage struct {
	Items    []domain.QuotaTransaction
	Total    int64
	Page     int
	PageSize int
}

// Transactions lists a shop's ledger in audit order.
func (s *Service) Transactions(ctx context.Context, shopID uuid.UUID, f store.LedgerFilter) (*TransactionPage, error) {
	f = f.Normalize()
	page := &TransactionPage{Page: f.Page, PageSize: f.PageSize}
	err := s.store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if _, err := tx.GetShop(ctx, shopID); err != nil {
			return err
		}
		var err error
		page.Items, page.Total, err = tx.ListTransactions(ctx, shopID, f)
		return err
	})
	if err != nil {
		return nil, err
	}
	return page, nil
}
