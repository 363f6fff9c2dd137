// Package agenda suspends a shop's broadcast scheduling and shifts the
// broadcasts caught inside the suspension window.
//
// A suspension is recorded as a RescheduleBatch with one item per affected
// broadcast. The shop status and the batch commit first; every item is then
// processed in its own transaction, so a failure leaves the item FAILED and
// resumable without undoing what was already moved.
package agenda

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/analianare-star/avellaneda-backend/internal/domain"
	"github.com/analianare-star/avellaneda-backend/internal/metrics"
	inats "github.com/analianare-star/avellaneda-backend/internal/nats"
	"github.com/analianare-star/avellaneda-backend/internal/period"
	"github.com/analianare-star/avellaneda-backend/internal/store"
)

const (
	DefaultSuspensionDays = 7
	// ShiftDays is how far a suspended broadcast is pushed forward.
	ShiftDays = 7

	defaultReason   = "agenda suspended"
	reprogramReason = "agenda suspension"
	collisionNote   = "agenda conflict caused by suspension"
)

type Config struct {
	// DefaultDays is used when a request does not set Days.
	DefaultDays int
	// Duration plans the end of a moved broadcast that has none.
	Duration time.Duration
}

type Service struct {
	store     store.Store
	keyer     period.Keyer
	publisher inats.EventPublisher
	cfg       Config
	now       func() time.Time
	logger    *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func NewService(st store.Store, keyer period.Keyer, publisher inats.EventPublisher, cfg Config, opts ...Option) *Service {
	if cfg.DefaultDays <= 0 {
		cfg.DefaultDays = DefaultSuspensionDays
	}
	if cfg.Duration <= 0 {
		cfg.Duration = 30 * time.Minute
	}
	if publisher == nil {
		publisher = inats.NoopPublisher{}
	}
	s := &Service{
		store:     st,
		keyer:     keyer,
		publisher: publisher,
		cfg:       cfg,
		now:       time.Now,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SuspendRequest describes a suspension. Zero Days means the configured default.
type SuspendRequest struct {
	Days   int
	Reason string
	Actor  domain.Actor
}

// Summary reports the outcome of a batch.
type Summary struct {
	BatchID        uuid.UUID               `json:"batch_id"`
	ShopID         uuid.UUID               `json:"shop_id"`
	Status         domain.BatchStatus      `json:"status"`
	SuspendedUntil time.Time               `json:"suspended_until"`
	Moved          int                     `json:"moved"`
	Flagged        int                     `json:"flagged"`
	Skipped        int                     `json:"skipped"`
	Failed         int                     `json:"failed"`
	Items          []domain.RescheduleItem `json:"items"`
}

func newSummary(b *domain.RescheduleBatch, items []domain.RescheduleItem) *Summary {
	return &Summary{
		BatchID:        b.ID,
		ShopID:         b.ShopID,
		Status:         b.Status,
		SuspendedUntil: b.SuspendedUntil,
		Moved:          b.Moved,
		Flagged:        b.Flagged,
		Skipped:        b.Skipped,
		Failed:         b.Failed,
		Items:          items,
	}
}

// SuspendAndReschedule suspends the shop's agenda until now + Days and shifts
// every UPCOMING broadcast scheduled in [now, until] by ShiftDays. A broadcast
// whose target day is already taken is flagged PENDING_REPROGRAMMATION instead.
// Per-broadcast failures are reported in the summary, never returned.
func (s *Service) SuspendAndReschedule(ctx context.Context, shopID uuid.UUID, req SuspendRequest) (*Summary, error) {
	const op = "agenda.suspend"

	if !req.Actor.IsAdmin() && req.Actor.Type != domain.ActorSystem {
		return nil, domain.Forbidden(op, "only administrators can suspend an agenda")
	}
	days := req.Days
	if days == 0 {
		days = s.cfg.DefaultDays
	}
	if days < 0 {
		return nil, domain.InvalidSchedule(op, "suspension days must not be negative, got %d", days)
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		reason = defaultReason
	}

	var (
		batch *domain.RescheduleBatch
		items []domain.RescheduleItem
	)
	err := s.store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		shop, err := tx.GetShop(ctx, shopID)
		if err != nil {
			return err
		}
		if shop.Status != domain.ShopActive && shop.Status != domain.ShopAgendaSuspended {
			return domain.InvalidSchedule(op, "shop %s is %s and cannot be suspended", shopID, shop.Status)
		}

		now := s.now()
		until := s.keyer.AddDays(now, days)
		change := domain.ShopStatusChange{
			Status:         domain.ShopAgendaSuspended,
			Reason:         reason,
			SuspendedUntil: &until,
			SuspendedBy:    req.Actor.ID,
			At:             now,
		}
		if err := tx.UpdateShopStatus(ctx, shopID, change); err != nil {
			return domain.Internal(err, op, "suspending agenda")
		}

		affected, err := tx.ListBroadcasts(ctx, store.BroadcastFilter{
			ShopID:   shopID,
			Statuses: []domain.BroadcastStatus{domain.BroadcastUpcoming},
			From:     now,
			Through:  until,
		})
		if err != nil {
			return domain.Internal(err, op, "listing affected broadcasts")
		}

		batch = &domain.RescheduleBatch{
			ID:             uuid.New(),
			ShopID:         shopID,
			Reason:         reason,
			SuspendedUntil: until,
			Status:         domain.BatchRunning,
			ActorType:      req.Actor.Type,
			ActorID:        req.Actor.ID,
			CreatedAt:      now,
		}
		items = make([]domain.RescheduleItem, 0, len(affected))
		for _, b := range affected {
			items = append(items, domain.RescheduleItem{
				BatchID:     batch.ID,
				BroadcastID: b.ID,
				Status:      domain.ItemPending,
				FromAt:      b.ScheduledAt,
				UpdatedAt:   now,
			})
		}
		if err := tx.InsertBatch(ctx, batch, items); err != nil {
			return domain.Internal(err, op, "recording reschedule batch")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("agenda suspended",
		"shop_id", shopID,
		"batch_id", batch.ID,
		"until", batch.SuspendedUntil,
		"affected", len(items),
	)
	inats.Emit(ctx, s.publisher, nil, inats.NewAuditEvent(
		shopID, inats.EventAgendaSuspended, "shop", shopID.String(),
		details(map[string]any{"reason": reason, "days": days, "until": batch.SuspendedUntil, "batch_id": batch.ID}),
		req.Actor, batch.CreatedAt,
	))

	return s.run(ctx, batch, items, req.Actor)
}

// ResumeBatch processes the PENDING and FAILED items of a batch again.
func (s *Service) ResumeBatch(ctx context.Context, batchID uuid.UUID, actor domain.Actor) (*Summary, error) {
	const op = "agenda.resume"

	if !actor.IsAdmin() && actor.Type != domain.ActorSystem {
		return nil, domain.Forbidden(op, "only administrators can resume a batch")
	}

	var (
		batch *domain.RescheduleBatch
		items []domain.RescheduleItem
	)
	err := s.store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		batch, items, err = tx.GetBatch(ctx, batchID)
		return err
	})
	if err != nil {
		return nil, err
	}

	if batch.Status == domain.BatchCompleted {
		batch.Tally(items)
		return newSummary(batch, items), nil
	}

	s.logger.Info("resuming reschedule batch", "batch_id", batch.ID, "shop_id", batch.ShopID)
	return s.run(ctx, batch, items, actor)
}

// run processes every unfinished item and closes the batch.
func (s *Service) run(ctx context.Context, batch *domain.RescheduleBatch, items []domain.RescheduleItem, actor domain.Actor) (*Summary, error) {
	var flagged []inats.AuditEvent
	for i := range items {
		if items[i].Status.Done() {
			continue
		}
		items[i] = s.processItem(ctx, batch, items[i])
		metrics.RescheduleOutcomesTotal.WithLabelValues(strings.ToLower(string(items[i].Status))).Inc()
		if items[i].Status == domain.ItemFlagged {
			flagged = append(flagged, inats.NewAuditEvent(
				batch.ShopID, inats.EventBroadcastFlagged, "broadcast", items[i].BroadcastID.String(),
				details(map[string]any{"batch_id": batch.ID, "scheduled_at": items[i].FromAt}),
				actor, items[i].UpdatedAt,
			))
		}
	}

	summary, err := s.complete(ctx, batch.ID)
	if err != nil {
		s.logger.Error("closing reschedule batch", "batch_id", batch.ID, "error", err)
		// Item outcomes are already committed; report them from memory.
		batch.Tally(items)
		summary = newSummary(batch, items)
	}

	s.logger.Info("reschedule batch processed",
		"batch_id", summary.BatchID,
		"shop_id", summary.ShopID,
		"moved", summary.Moved,
		"flagged", summary.Flagged,
		"skipped", summary.Skipped,
		"failed", summary.Failed,
	)
	flagged = append(flagged, inats.NewAuditEvent(
		summary.ShopID, inats.EventRescheduleCompleted, "reschedule_batch", summary.BatchID.String(),
		details(map[string]any{
			"moved":   summary.Moved,
			"flagged": summary.Flagged,
			"skipped": summary.Skipped,
			"failed":  summary.Failed,
		}),
		actor, s.now(),
	))
	inats.Emit(ctx, s.publisher, nil, flagged...)
	return summary, nil
}

// processItem moves or flags one broadcast in its own transaction. The
// returned item carries the recorded outcome.
func (s *Service) processItem(ctx context.Context, batch *domain.RescheduleBatch, item domain.RescheduleItem) domain.RescheduleItem {
	var result domain.RescheduleItem
	err := s.store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		result = item
		now := s.now()
		result.UpdatedAt = now
		result.Error = ""

		b, err := tx.GetBroadcastForUpdate(ctx, item.BroadcastID)
		if err != nil {
			return err
		}

		if b.Status != domain.BroadcastUpcoming {
			result.Status = domain.ItemSkipped
			return tx.UpdateBatchItem(ctx, &result)
		}

		target := s.keyer.AddDays(b.ScheduledAt, ShiftDays)
		day := s.keyer.Day(target)
		taken, err := tx.CountBroadcasts(ctx, store.BroadcastFilter{
			ShopID:    b.ShopID,
			Statuses:  domain.CollisionStatuses,
			From:      day.Start,
			Before:    day.End,
			ExcludeID: b.ID,
		})
		if err != nil {
			return err
		}

		batchID := batch.ID
		b.ReprogramReason = reprogramReason
		b.ReprogramBatchID = &batchID
		b.UpdatedAt = now
		if taken > 0 {
			b.Status = domain.BroadcastPendingReprogrammation
			b.PendingReprogramNote = collisionNote
			result.Status = domain.ItemFlagged
		} else {
			duration := b.ScheduledEndPlanned.Sub(b.ScheduledAt)
			if duration <= 0 {
				duration = s.cfg.Duration
			}
			b.MoveTo(target, duration)
			result.Status = domain.ItemMoved
			result.ToAt = &target
		}

		if err := tx.UpdateBroadcast(ctx, b); err != nil {
			return err
		}
		return tx.UpdateBatchItem(ctx, &result)
	})
	if err == nil {
		return result
	}

	s.logger.Warn("rescheduling broadcast failed",
		"batch_id", batch.ID,
		"broadcast_id", item.BroadcastID,
		"error", err,
	)
	failed := item
	failed.Status = domain.ItemFailed
	failed.Error = err.Error()
	failed.UpdatedAt = s.now()
	if err := s.store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.UpdateBatchItem(ctx, &failed)
	}); err != nil {
		s.logger.Error("recording failed reschedule item", "batch_id", batch.ID, "broadcast_id", item.BroadcastID, "error", err)
	}
	return failed
}

// complete recounts the batch from its stored items. The batch stays RUNNING
// while any item is still PENDING or FAILED.
func (s *Service) complete(ctx context.Context, batchID uuid.UUID) (*Summary, error) {
	var summary *Summary
	err := s.store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		batch, items, err := tx.GetBatch(ctx, batchID)
		if err != nil {
			return err
		}
		batch.Tally(items)

		batch.Status = domain.BatchCompleted
		for _, it := range items {
			if !it.Status.Done() {
				batch.Status = domain.BatchRunning
				break
			}
		}
		if batch.Status == domain.BatchCompleted {
			now := s.now()
			batch.CompletedAt = &now
		}
		if err := tx.UpdateBatch(ctx, batch); err != nil {
			return err
		}
		summary = newSummary(batch, items)
		return nil
	})
	return summary, err
}

// LiftSuspension reactivates a suspended shop. Broadcasts waiting for manual
// reprogramming are left as they are.
func (s *Service) LiftSuspension(ctx context.Context, shopID uuid.UUID, actor domain.Actor) (*domain.Shop, error) {
	const op = "agenda.lift"

	if !actor.IsAdmin() && actor.Type != domain.ActorSystem {
		return nil, domain.Forbidden(op, "only administrators can lift a suspension")
	}

	var shop *domain.Shop
	err := s.store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		shop, err = tx.GetShop(ctx, shopID)
		if err != nil {
			return err
		}
		if shop.Status != domain.ShopAgendaSuspended {
			return domain.Invalid(op, "shop agenda is not suspended")
		}

		change := domain.LiftChange(s.now(), "")
		if err := tx.UpdateShopStatus(ctx, shopID, change); err != nil {
			return domain.Internal(err, op, "lifting suspension")
		}
		change.Apply(shop)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("agenda suspension lifted", "shop_id", shopID, "actor_id", actor.ID)
	inats.Emit(ctx, s.publisher, nil, inats.NewAuditEvent(
		shopID, inats.EventAgendaLifted, "shop", shopID.String(), "", actor, *shop.StatusChangedAt,
	))
	return shop, nil
}

// GetBatch returns a batch summary.
func (s *Service) GetBatch(ctx context.Context, batchID uuid.UUID) (*Summary, error) {
	var summary *Summary
	err := s.store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		batch, items, err := tx.GetBatch(ctx, batchID)
		if err != nil {
			return err
		}
		summary = newSummary(batch, items)
		return nil
	})
	return summary, err
}

func details(fields map[string]any) string {
	raw, err := json.Marshal(fields)
	if err != nil {
		return ""
	}
	return string(raw)
}
