// Package broadcasts schedules and manages a shop's live broadcasts. Every
// scheduled broadcast draws one weekly quota unit in the same transaction that
// creates it.
package broadcasts

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/analianare-star/avellaneda-backend/internal/domain"
	inats "github.com/analianare-star/avellaneda-backend/internal/nats"
	"github.com/analianare-star/avellaneda-backend/internal/quota"
	"github.com/analianare-star/avellaneda-backend/internal/store"
)

const (
	DefaultWeeklyCap = 7
	DefaultDuration  = 30 * time.Minute
)

// Config holds scheduling limits.
type Config struct {
	// WeeklyCap bounds quota-occupying broadcasts per week regardless of balance.
	WeeklyCap int
	// Duration is added to scheduledAt to plan the end of a broadcast.
	Duration time.Duration
}

type Service struct {
	store     store.Store
	engine    *quota.Engine
	publisher inats.EventPublisher
	cfg       Config
	suspender Suspender
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

func NewService(st store.Store, engine *quota.Engine, publisher inats.EventPublisher, cfg Config, opts ...Option) *Service {
	if cfg.WeeklyCap <= 0 {
		cfg.WeeklyCap = DefaultWeeklyCap
	}
	if cfg.Duration <= 0 {
		cfg.Duration = DefaultDuration
	}
	if publisher == nil {
		publisher = inats.NoopPublisher{}
	}
	s := &Service{
		store:     st,
		engine:    engine,
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

type ScheduleRequest struct {
	ShopID      uuid.UUID
	Title       string
	Description string
	Platform    string
	URL         string
	ScheduledAt time.Time
}

// Schedule validates the slot, reserves one broadcast unit and creates the broadcast.
func (s *Service) Schedule(ctx context.Context, req ScheduleRequest, actor domain.Actor) (*domain.Broadcast, error) {
	const op = "broadcasts.schedule"

	if !actor.CanActOn(req.ShopID) {
		return nil, domain.Forbidden(op, "cannot schedule broadcasts for another shop")
	}
	if req.ScheduledAt.IsZero() {
		return nil, domain.Invalid(op, "scheduled_at is required")
	}

	var (
		created     *domain.Broadcast
		reservation *quota.Reservation
	)
	err := s.store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		now := s.now()
		if err := s.validate(ctx, tx, req.ShopID, req.ScheduledAt, uuid.Nil, now); err != nil {
			return err
		}

		id := uuid.New()
		var err error
		reservation, err = s.engine.Reserve(ctx, tx, quota.ReserveRequest{
			ShopID:   req.ShopID,
			Resource: domain.ResourceBroadcast,
			At:       req.ScheduledAt,
			Ref:      domain.Ref{Type: domain.RefBroadcast, ID: id.String()},
			Actor:    actor,
		})
		if err != nil {
			return err
		}

		b := &domain.Broadcast{
			ID:                  id,
			ShopID:              req.ShopID,
			Title:               req.Title,
			Description:         req.Description,
			Platform:            req.Platform,
			URL:                 req.URL,
			Status:              domain.BroadcastUpcoming,
			ScheduledAt:         req.ScheduledAt,
			ScheduledEndPlanned: req.ScheduledAt.Add(s.cfg.Duration),
			CreatedAt:           now,
			UpdatedAt:           now,
		}
		if err := tx.InsertBroadcast(ctx, b); err != nil {
			return domain.Internal(err, op, "creating broadcast")
		}
		created = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("broadcast scheduled",
		"shop_id", created.ShopID,
		"broadcast_id", created.ID,
		"scheduled_at", created.ScheduledAt,
		"source", reservation.Source,
	)
	inats.Emit(ctx, s.publisher, []*domain.QuotaTransaction{reservation.Transaction})
	return created, nil
}

// Reschedule moves an editable broadcast to a new instant. A broadcast waiting
// for manual reprogramming becomes UPCOMING again. Quota is not charged again.
func (s *Service) Reschedule(ctx context.Context, id uuid.UUID, at time.Time, actor domain.Actor) (*domain.Broadcast, error) {
	const op = "broadcasts.reschedule"

	if at.IsZero() {
		return nil, domain.Invalid(op, "scheduled_at is required")
	}

	return s.mutate(ctx, op, id, actor, func(ctx context.Context, tx store.Tx, b *domain.Broadcast, now time.Time) error {
		if !b.Status.Editable() {
			return domain.InvalidSchedule(op, "only scheduled broadcasts can be edited")
		}
		if err := s.validate(ctx, tx, b.ShopID, at, b.ID, now); err != nil {
			return err
		}
		if b.Status == domain.BroadcastPendingReprogrammation {
			b.Status = domain.BroadcastUpcoming
			b.PendingReprogramNote = ""
		}
		b.ScheduledAt = at
		b.ScheduledEndPlanned = at.Add(s.cfg.Duration)
		b.EditCount++
		b.LastEditedAt = &now
		return nil
	})
}

// Cancel cancels an UPCOMING or PENDING_REPROGRAMMATION broadcast. The unit it
// consumed is not refunded; the next recount frees the base slot.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, reason string, actor domain.Actor) (*domain.Broadcast, error) {
	const op = "broadcasts.cancel"
	return s.mutate(ctx, op, id, actor, func(_ context.Context, _ store.Tx, b *domain.Broadcast, now time.Time) error {
		if !b.Status.Editable() {
			return domain.InvalidSchedule(op, "only scheduled broadcasts can be cancelled")
		}
		b.Status = domain.BroadcastCancelled
		b.CancelledAt = &now
		b.CancelReason = reason
		return nil
	})
}

// GoLive starts an UPCOMING broadcast.
func (s *Service) GoLive(ctx context.Context, id uuid.UUID, actor domain.Actor) (*domain.Broadcast, error) {
	const op = "broadcasts.go_live"
	return s.mutate(ctx, op, id, actor, func(_ context.Context, _ store.Tx, b *domain.Broadcast, now time.Time) error {
		if b.Status != domain.BroadcastUpcoming {
			return domain.InvalidSchedule(op, "only upcoming broadcasts can go live")
		}
		b.Status = domain.BroadcastLive
		b.StartedAt = &now
		return nil
	})
}

// Finish ends a LIVE broadcast.
func (s *Service) Finish(ctx context.Context, id uuid.UUID, actor domain.Actor) (*domain.Broadcast, error) {
	const op = "broadcasts.finish"
	return s.mutate(ctx, op, id, actor, func(_ context.Context, _ store.Tx, b *domain.Broadcast, now time.Time) error {
		if b.Status != domain.BroadcastLive {
			return domain.InvalidSchedule(op, "only live broadcasts can be finished")
		}
		b.Status = domain.BroadcastFinished
		b.FinishedAt = &now
		return nil
	})
}

func (s *Service) mutate(ctx context.Context, op string, id uuid.UUID, actor domain.Actor,
	fn func(ctx context.Context, tx store.Tx, b *domain.Broadcast, now time.Time) error,
) (*domain.Broadcast, error) {
	var updated *domain.Broadcast
	err := s.store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		b, err := tx.GetBroadcastForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !actor.CanActOn(b.ShopID) {
			return domain.Forbidden(op, "broadcast belongs to another shop")
		}

		now := s.now()
		if err := fn(ctx, tx, b, now); err != nil {
			return err
		}
		b.UpdatedAt = now
		if err := tx.UpdateBroadcast(ctx, b); err != nil {
			return domain.Internal(err, op, "updating broadcast")
		}
		updated = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("broadcast updated", "op", op, "broadcast_id", updated.ID, "status", updated.Status)
	return updated, nil
}

// Get returns one broadcast visible to actor.
func (s *Service) Get(ctx context.Context, id uuid.UUID, actor domain.Actor) (*domain.Broadcast, error) {
	var b *domain.Broadcast
	err := s.store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		b, err = tx.GetBroadcastForUpdate(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	if !actor.CanActOn(b.ShopID) {
		return nil, domain.Forbidden("broadcasts.get", "broadcast belongs to another shop")
	}
	return b, nil
}

// ListByShop returns the shop's broadcasts ordered by scheduledAt, optionally
// restricted to some statuses.
func (s *Service) ListByShop(ctx context.Context, shopID uuid.UUID, statuses []domain.BroadcastStatus, actor domain.Actor) ([]domain.Broadcast, error) {
	if !actor.CanActOn(shopID) {
		return nil, domain.Forbidden("broadcasts.list", "cannot list broadcasts of another shop")
	}
	var out []domain.Broadcast
	err := s.store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if _, err := tx.GetShop(ctx, shopID); err != nil {
			return err
		}
		var err error
		out, err = tx.ListBroadcasts(ctx, store.BroadcastFilter{ShopID: shopID, Statuses: statuses})
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
