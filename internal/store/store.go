// Package store defines the transactional persistence contract used by the
// quota core and the services built on it.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/analianare-star/avellaneda-backend/internal/domain"
)

// Store runs units of work atomically.
type Store interface {
	// InTx runs fn in one isolated transaction. A non-nil error from fn rolls
	// everything back. fn may be invoked more than once when the store retries
	// a serialization failure, so it must not leak side effects outside tx.
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Tx is the set of operations available inside a transaction.
type Tx interface {
	Shops
	Wallets
	Ledger
	Broadcasts
	Posts
	Purchases
	Batches
	Reports
}

// Shops is the shop directory.
type Shops interface {
	// GetShop returns a domain ENOTFOUND error when the shop does not exist.
	GetShop(ctx context.Context, id uuid.UUID) (*domain.Shop, error)
	InsertShop(ctx context.Context, shop *domain.Shop) error
	UpdateShopStatus(ctx context.Context, id uuid.UUID, change domain.ShopStatusChange) error
	// UpdateShopPlan changes the plan; wallets pick it up at their next rollover.
	UpdateShopPlan(ctx context.Context, id uuid.UUID, plan string, at time.Time) error
	SetLegacyQuotaTotal(ctx context.Context, id uuid.UUID, resource domain.Resource, total int) error
	// ListShopsWithoutWallet returns up to limit shops that have no wallet yet.
	ListShopsWithoutWallet(ctx context.Context, limit int) ([]domain.Shop, error)
}

// Wallets persists quota wallets.
type Wallets interface {
	// GetWalletForUpdate locks and returns the wallet, or nil when none exists.
	GetWalletForUpdate(ctx context.Context, shopID uuid.UUID) (*domain.QuotaWallet, error)
	InsertWallet(ctx context.Context, w *domain.QuotaWallet) error
	UpdateWallet(ctx context.Context, w *domain.QuotaWallet) error
}

// Ledger is append-only.
type Ledger interface {
	AppendTransaction(ctx context.Context, t *domain.QuotaTransaction) error
	ListTransactions(ctx context.Context, shopID uuid.UUID, f LedgerFilter) ([]domain.QuotaTransaction, int64, error)
}

// Broadcasts persists broadcasts.
type Broadcasts interface {
	GetBroadcastForUpdate(ctx context.Context, id uuid.UUID) (*domain.Broadcast, error)
	InsertBroadcast(ctx context.Context, b *domain.Broadcast) error
	UpdateBroadcast(ctx context.Context, b *domain.Broadcast) error
	CountBroadcasts(ctx context.Context, f BroadcastFilter) (int, error)
	ListBroadcasts(ctx context.Context, f BroadcastFilter) ([]domain.Broadcast, error)
}

// Posts persists posts.
type Posts interface {
	InsertPost(ctx context.Context, p *domain.Post) error
	CountPosts(ctx context.Context, f PostFilter) (int, error)
}

// Purchases persists purchase records.
type Purchases interface {
	InsertPurchase(ctx context.Context, p *domain.Purchase) error
}

// Reports persists broadcast reports.
type Reports interface {
	// InsertReport returns a domain ECONFLICT error when the reporter already
	// reported the broadcast.
	InsertReport(ctx context.Context, r *domain.BroadcastReport) error
}

// Batches persists rescheduling batches and their items.
type Batches interface {
	InsertBatch(ctx context.Context, b *domain.RescheduleBatch, items []domain.RescheduleItem) error
	GetBatch(ctx context.Context, id uuid.UUID) (*domain.RescheduleBatch, []domain.RescheduleItem, error)
	UpdateBatch(ctx context.Context, b *domain.RescheduleBatch) error
	UpdateBatchItem(ctx context.Context, item *domain.RescheduleItem) error
}

// BroadcastFilter selects broadcasts of one shop. Zero-valued fields are ignored.
type BroadcastFilter struct {
	ShopID   uuid.UUID
	Statuses []domain.BroadcastStatus
	// From is inclusive.
	From time.Time
	// Before is exclusive.
	Before time.Time
	// Through is inclusive.
	Through   time.Time
	ExcludeID uuid.UUID
	Limit     int
}

// PostFilter selects posts of one shop created in [From, Before).
type PostFilter struct {
	ShopID    uuid.UUID
	From      time.Time
	Before    time.Time
	ExcludeID uuid.UUID
}

// LedgerFilter paginates ledger listings.
type LedgerFilter struct {
	Resource domain.Resource
	Page     int
	PageSize int
}

// Normalize clamps pagination to sane bounds.
func (f LedgerFilter) Normalize() LedgerFilter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 || f.PageSize > 100 {
		f.PageSize = 20
	}
	return f
}

// Match reports whether b satisfies the filter. Used by the in-memory store.
func (f BroadcastFilter) Match(b *domain.Broadcast) bool {
	if f.ShopID != uuid.Nil && b.ShopID != f.ShopID {
		return false
	}
	if f.ExcludeID != uuid.Nil && b.ID == f.ExcludeID {
		return false
	}
	if len(f.Statuses) > 0 {
		found := false
		for _, s := range f.Statuses {
			if b.Status == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if !f.From.IsZero() && b.ScheduledAt.Before(f.From) {
		return false
	}
	if !f.Before.IsZero() && !b.ScheduledAt.Before(f.Before) {
		return false
	}
	if !f.Through.IsZero() && b.ScheduledAt.After(f.Through) {
		return false
	}
	return true
}

// Match reports whether p satisfies the filter.
func (f PostFilter) Match(p *domain.Post) bool {
	if f.ShopID != uuid.Nil && p.ShopID != f.ShopID {
		return false
	}
	if f.ExcludeID != uuid.Nil && p.ID == f.ExcludeID {
		return false
	}
	if !f.From.IsZero() && p.CreatedAt.Before(f.From) {
		return false
	}
	if !f.Before.IsZero() && !p.CreatedAt.Before(f.Before) {
		return false
	}
	return true
}
