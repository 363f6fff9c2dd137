package broadcasts

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/analianare-star/avellaneda-backend/internal/domain"
	"github.com/analianare-star/avellaneda-backend/internal/quota"
	"github.com/analianare-star/avellaneda-backend/internal/store"
)

// validate checks that the shop may place a broadcast at `at`. exclude keeps
// a broadcast being edited out of its own counts. Checks run in order and the
// first failure wins, so quota is only reported once the calendar rules pass.
func (s *Service) validate(ctx context.Context, tx store.Tx, shopID uuid.UUID, at time.Time, exclude uuid.UUID, now time.Time) error {
	const op = "broadcasts.validate"

	shop, err := tx.GetShop(ctx, shopID)
	if err != nil {
		return err
	}
	if err := s.ensureSchedulable(ctx, tx, shop, now); err != nil {
		return err
	}

	if at.Before(now) {
		return domain.InvalidSchedule(op, "cannot schedule a broadcast in the past")
	}

	day := s.engine.Keyer().Day(at)
	sameDay, err := tx.CountBroadcasts(ctx, store.BroadcastFilter{
		ShopID:    shopID,
		Statuses:  domain.OccupyingStatuses,
		From:      day.Start,
		Before:    day.End,
		ExcludeID: exclude,
	})
	if err != nil {
		return domain.Internal(err, op, "counting broadcasts of the day")
	}
	if sameDay >= 1 {
		return domain.InvalidSchedule(op, "daily limit: a broadcast is already scheduled on %s", day.Key())
	}

	snap, err := s.engine.Snapshot(ctx, tx, quota.SnapshotRequest{
		ShopID:    shopID,
		Resource:  domain.ResourceBroadcast,
		At:        at,
		ExcludeID: exclude,
	})
	if err != nil {
		return err
	}
	if snap.Consumed >= s.cfg.WeeklyCap {
		return domain.InvalidSchedule(op, "weekly limit reached (maximum %d broadcasts)", s.cfg.WeeklyCap)
	}
	if snap.Available() <= 0 {
		return domain.QuotaExhausted(op, domain.ResourceBroadcast)
	}
	return nil
}

// ensureSchedulable lifts an expired suspension in place and rejects shops
// that may not schedule.
func (s *Service) ensureSchedulable(ctx context.Context, tx store.Tx, shop *domain.Shop, now time.Time) error {
	const op = "broadcasts.validate"

	if shop.Status == domain.ShopActive {
		return nil
	}
	if shop.SuspensionExpired(now) {
		change := domain.LiftChange(now, "")
		if err := tx.UpdateShopStatus(ctx, shop.ID, change); err != nil {
			return domain.Internal(err, op, "lifting expired suspension")
		}
		change.Apply(shop)
		s.logger.Info("expired agenda suspension lifted", "shop_id", shop.ID)
		return nil
	}
	if shop.Status == domain.ShopAgendaSuspended {
		until := "an unspecified date"
		if shop.AgendaSuspendedUntil != nil {
			until = shop.AgendaSuspendedUntil.In(s.engine.Keyer().Location()).Format(time.RFC3339)
		}
		return domain.InvalidSchedule(op, "agenda suspended until %s", until)
	}
	return domain.InvalidSchedule(op, "shop is not enabled to schedule broadcasts")
}
