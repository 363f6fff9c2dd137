// Package quota implements the per-shop quota wallet: lazy period rollover,
// recount-based reconciliation, reservations and credits.
//
// Engine methods run inside a caller-provided store.Tx so that wallet writes,
// legacy totals, the consuming entity and the ledger entry commit together.
package quota

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/analianare-star/avellaneda-backend/internal/domain"
	"github.com/analianare-star/avellaneda-backend/internal/metrics"
	"github.com/analianare-star/avellaneda-backend/internal/period"
	"github.com/analianare-star/avellaneda-backend/internal/plan"
	"github.com/analianare-star/avellaneda-backend/internal/store"
)

// Engine is stateless apart from its clock and location.
type Engine struct {
	keyer  period.Keyer
	now    func() time.Time
	logger *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the clock used for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// NewEngine creates an Engine computing periods with keyer.
func NewEngine(keyer period.Keyer, opts ...Option) *Engine {
	e := &Engine{keyer: keyer, now: time.Now, logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Keyer returns the period keyer the engine uses.
func (e *Engine) Keyer() period.Keyer {
	return e.keyer
}

// PeriodFor returns the counting period of resource r containing at.
func (e *Engine) PeriodFor(r domain.Resource, at time.Time) period.Period {
	if r == domain.ResourcePost {
		return e.keyer.Day(at)
	}
	return e.keyer.Week(at)
}

// Snapshot is a wallet view for one resource at one instant.
type Snapshot struct {
	Shop          *domain.Shop
	Wallet        *domain.QuotaWallet
	Resource      domain.Resource
	Period        period.Period
	BaseLimit     int
	Consumed      int
	BaseRemaining int
	Extra         int
}

// Available is the number of units a reservation could still draw.
func (s *Snapshot) Available() int {
	return s.BaseRemaining + s.Extra
}

// SnapshotRequest identifies what to snapshot. ExcludeID keeps an entity that
// is being re-validated from counting against itself.
type SnapshotRequest struct {
	ShopID    uuid.UUID
	Resource  domain.Resource
	At        time.Time
	ExcludeID uuid.UUID
}

// Snapshot loads or creates the wallet, rolls it to the period of req.At and
// reconciles stored usage against the committed entities in that period.
func (e *Engine) Snapshot(ctx context.Context, tx store.Tx, req SnapshotRequest) (*Snapshot, error) {
	const op = "quota.snapshot"

	if !req.Resource.Valid() {
		return nil, domain.Invalid(op, "unknown resource "+string(req.Resource))
	}

	shop, err := tx.GetShop(ctx, req.ShopID)
	if err != nil {
		return nil, err
	}

	wallet, err := tx.GetWalletForUpdate(ctx, req.ShopID)
	if err != nil {
		return nil, domain.Internal(err, op, "loading wallet")
	}
	if wallet == nil {
		wallet = e.newWallet(shop, req.At)
		if err := tx.InsertWallet(ctx, wallet); err != nil {
			return nil, domain.Internal(err, op, "creating wallet")
		}
		e.logger.Debug("quota wallet created", "shop_id", shop.ID, "plan", shop.Plan)
	}

	p := e.PeriodFor(req.Resource, req.At)
	c := wallet.Counter(req.Resource)
	dirty := false

	if c.Key != p.Key() {
		// Plan changes take effect here, never retroactively.
		c.Limit = plan.Resolve(shop.Plan).Base(req.Resource)
		c.Used = 0
		c.Key = p.Key()
		dirty = true
	}

	count, err := e.count(ctx, tx, req.ShopID, req.Resource, p, req.ExcludeID)
	if err != nil {
		return nil, domain.Internal(err, op, "counting consumed units")
	}

	// A count that leaves an entity out is one short for the wallet, so it
	// shapes the returned snapshot but is never written back.
	persist := req.ExcludeID == uuid.Nil

	used := min(count, c.Limit)
	if used != c.Used {
		if !dirty && persist {
			metrics.QuotaReconciliationsTotal.WithLabelValues(string(req.Resource)).Inc()
			e.logger.Info("quota usage reconciled",
				"shop_id", shop.ID,
				"resource", req.Resource,
				"stored", c.Used,
				"counted", used,
			)
		}
		c.Used = used
		dirty = true
	}

	wallet.SetCounter(req.Resource, c)
	snap := &Snapshot{
		Shop:          shop,
		Wallet:        wallet,
		Resource:      req.Resource,
		Period:        p,
		BaseLimit:     c.Limit,
		Consumed:      count,
		BaseRemaining: max(0, c.Limit-count),
		Extra:         c.Extra,
	}

	if dirty && persist {
		wallet.UpdatedAt = e.now()
		if err := tx.UpdateWallet(ctx, wallet); err != nil {
			return nil, domain.Internal(err, op, "persisting wallet")
		}
		if err := e.projectLegacyTotal(ctx, tx, snap); err != nil {
			return nil, err
		}
	}

	return snap, nil
}

func (e *Engine) count(ctx context.Context, tx store.Tx, shopID uuid.UUID, r domain.Resource, p period.Period, exclude uuid.UUID) (int, error) {
	if r == domain.ResourcePost {
		return tx.CountPosts(ctx, store.PostFilter{
			ShopID:    shopID,
			From:      p.Start,
			Before:    p.End,
			ExcludeID: exclude,
		})
	}
	return tx.CountBroadcasts(ctx, store.BroadcastFilter{
		ShopID:    shopID,
		Statuses:  domain.OccupyingStatuses,
		From:      p.Start,
		Before:    p.End,
		ExcludeID: exclude,
	})
}

func (e *Engine) newWallet(shop *domain.Shop, at time.Time) *domain.QuotaWallet {
	limits := plan.Resolve(shop.Plan)
	now := e.now()
	return &domain.QuotaWallet{
		ShopID:                   shop.ID,
		WeeklyBroadcastBaseLimit: limits.WeeklyBroadcastBase,
		WeeklyBroadcastWeekKey:   e.keyer.WeekKey(at),
		DailyPostLimit:           limits.DailyPost,
		DailyPostDateKey:         e.keyer.DayKey(at),
		CreatedAt:                now,
		UpdatedAt:                now,
	}
}

func (e *Engine) entry(shopID uuid.UUID, r domain.Resource, dir domain.Direction, amount int, reason domain.Reason, ref domain.Ref, actor domain.Actor) *domain.QuotaTransaction {
	return &domain.QuotaTransaction{
		ID:        uuid.New(),
		ShopID:    shopID,
		Resource:  r,
		Direction: dir,
		Amount:    amount,
		Reason:    reason,
		RefType:   ref.Type,
		RefID:     ref.ID,
		ActorType: actor.Type,
		ActorID:   actor.ID,
		CreatedAt: e.now(),
	}
}
