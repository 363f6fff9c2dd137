package quota

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/analianare-star/avellaneda-backend/internal/domain"
	"github.com/analianare-star/avellaneda-backend/internal/metrics"
	"github.com/analianare-star/avellaneda-backend/internal/store"
)

// ReserveRequest asks for one unit of resource at instant At.
type ReserveRequest struct {
	ShopID    uuid.UUID
	Resource  domain.Resource
	At        time.Time
	ExcludeID uuid.UUID
	Ref       domain.Ref
	Actor     domain.Actor
}

// Reservation is the outcome of a successful Reserve.
type Reservation struct {
	Source      domain.Source
	Transaction *domain.QuotaTransaction
	Snapshot    *Snapshot
}

// Reserve charges one unit to the base allowance if any remains, otherwise to
// the extra balance. It fails with EQUOTA when neither has units left.
func (e *Engine) Reserve(ctx context.Context, tx store.Tx, req ReserveRequest) (*Reservation, error) {
	const op = "quota.reserve"

	snap, err := e.Snapshot(ctx, tx, SnapshotRequest{
		ShopID:    req.ShopID,
		Resource:  req.Resource,
		At:        req.At,
		ExcludeID: req.ExcludeID,
	})
	if err != nil {
		return nil, err
	}

	c := snap.Wallet.Counter(req.Resource)
	var source domain.Source
	switch {
	case snap.BaseRemaining > 0:
		source = domain.SourceBase
		snap.Consumed++
		c.Used = min(c.Limit, snap.Consumed)
		snap.BaseRemaining = max(0, c.Limit-snap.Consumed)
	case c.Extra > 0:
		source = domain.SourceExtra
		c.Extra--
		snap.Extra = c.Extra
	default:
		metrics.QuotaRejectionsTotal.WithLabelValues(string(req.Resource), domain.EQUOTA).Inc()
		e.logger.Info("quota exhausted",
			"shop_id", req.ShopID,
			"resource", req.Resource,
			"period", snap.Period.Key(),
			"limit", snap.BaseLimit,
			"consumed", snap.Consumed,
		)
		return nil, domain.QuotaExhausted(op, req.Resource)
	}

	snap.Wallet.SetCounter(req.Resource, c)
	snap.Wallet.UpdatedAt = e.now()
	if err := tx.UpdateWallet(ctx, snap.Wallet); err != nil {
		return nil, domain.Internal(err, op, "persisting wallet")
	}

	if err := e.projectLegacyTotal(ctx, tx, snap); err != nil {
		return nil, err
	}

	reason := domain.ReasonPlanBase
	if source == domain.SourceExtra {
		reason = domain.ReasonPurchase
	}
	entry := e.entry(req.ShopID, req.Resource, domain.DirectionDebit, 1, reason, req.Ref, req.Actor)
	if err := tx.AppendTransaction(ctx, entry); err != nil {
		return nil, domain.Internal(err, op, "appending ledger entry")
	}

	metrics.QuotaReservationsTotal.WithLabelValues(string(req.Resource), string(source)).Inc()
	e.logger.Debug("quota reserved",
		"shop_id", req.ShopID,
		"resource", req.Resource,
		"source", source,
		"ref_type", req.Ref.Type,
		"ref_id", req.Ref.ID,
	)

	return &Reservation{Source: source, Transaction: entry, Snapshot: snap}, nil
}

// projectLegacyTotal writes baseRemaining + extra onto the shop's display field.
func (e *Engine) projectLegacyTotal(ctx context.Context, tx store.Tx, snap *Snapshot) error {
	total := snap.Available()
	if err := tx.SetLegacyQuotaTotal(ctx, snap.Shop.ID, snap.Resource, total); err != nil {
		return domain.Internal(err, "quota.project_legacy_total", "writing legacy total")
	}
	if snap.Resource == domain.ResourcePost {
		snap.Shop.PostQuota = total
	} else {
		snap.Shop.BroadcastQuota = total
	}
	return nil
}
