// Package posts publishes short videos. Each post draws one daily post unit.
package posts

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/analianare-star/avellaneda-backend/internal/domain"
	inats "github.com/analianare-star/avellaneda-backend/internal/nats"
	"github.com/analianare-star/avellaneda-backend/internal/quota"
	"github.com/analianare-star/avellaneda-backend/internal/store"
)

type Service struct {
	store     store.Store
	engine    *quota.Engine
	publisher inats.EventPublisher
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

func NewService(st store.Store, engine *quota.Engine, publisher inats.EventPublisher, opts ...Option) *Service {
	if publisher == nil {
		publisher = inats.NoopPublisher{}
	}
	s := &Service{
		store:     st,
		engine:    engine,
		publisher: publisher,
		now:       time.Now,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type CreatePostRequest struct {
	ShopID   uuid.UUID
	URL      string
	Platform string
}

// Create reserves a post unit for today and stores the post.
func (s *Service) Create(ctx context.Context, req CreatePostRequest, actor domain.Actor) (*domain.Post, error) {
	const op = "posts.create"

	if !actor.CanActOn(req.ShopID) {
		return nil, domain.Forbidden(op, "cannot publish posts for another shop")
	}
	if strings.TrimSpace(req.URL) == "" {
		return nil, domain.Invalid(op, "url is required")
	}

	var (
		created     *domain.Post
		reservation *quota.Reservation
	)
	err := s.store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		shop, err := tx.GetShop(ctx, req.ShopID)
		if err != nil {
			return err
		}
		if shop.Status == domain.ShopBanned || shop.Status == domain.ShopHidden {
			return domain.Forbidden(op, "shop is not enabled to publish posts")
		}

		now := s.now()
		id := uuid.New()
		reservation, err = s.engine.Reserve(ctx, tx, quota.ReserveRequest{
			ShopID:   req.ShopID,
			Resource: domain.ResourcePost,
			At:       now,
			Ref:      domain.Ref{Type: domain.RefPost, ID: id.String()},
			Actor:    actor,
		})
		if err != nil {
			return err
		}

		p := &domain.Post{
			ID:        id,
			ShopID:    req.ShopID,
			URL:       req.URL,
			Platform:  req.Platform,
			CreatedAt: now,
		}
		if err := tx.InsertPost(ctx, p); err != nil {
			return domain.Internal(err, op, "creating post")
		}
		created = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("post created", "shop_id", created.ShopID, "post_id", created.ID, "source", reservation.Source)
	inats.Emit(ctx, s.publisher, []*domain.QuotaTransaction{reservation.Transaction})
	return created, nil
}
