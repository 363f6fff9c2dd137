// Package shops manages the shop directory records the quota core reads, and
// the purchases that top up a shop's extra balance.
package shops

import (
	"context"
	"fmt"
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

// CreateShopRequest carries the legacy remaining totals of a shop imported
// from the old directory. New shops leave them at zero.
type CreateShopRequest struct {
	Name                 string
	Plan                 string
	LegacyBroadcastQuota int
	LegacyPostQuota      int
}

// Create inserts an ACTIVE shop and migrates its wallet in the same transaction.
func (s *Service) Create(ctx context.Context, req CreateShopRequest, actor domain.Actor) (*domain.Shop, error) {
	const op = "shops.create"

	if !actor.IsAdmin() && actor.Type != domain.ActorSystem {
		return nil, domain.Forbidden(op, "only administrators can create shops")
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.Invalid(op, "name is required")
	}
	if strings.TrimSpace(req.Plan) == "" {
		return nil, domain.Invalid(op, "plan is required")
	}

	var (
		shop      *domain.Shop
		migration *quota.MigrationResult
	)
	err := s.store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		now := s.now()
		shop = &domain.Shop{
			ID:             uuid.New(),
			Name:           name,
			Plan:           req.Plan,
			Status:         domain.ShopActive,
			BroadcastQuota: req.LegacyBroadcastQuota,
			PostQuota:      req.LegacyPostQuota,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := tx.InsertShop(ctx, shop); err != nil {
			return domain.Internal(err, op, "creating shop")
		}

		var err error
		migration, err = s.engine.MigrateLegacy(ctx, tx, quota.MigrateRequest{
			ShopID:          shop.ID,
			LegacyBroadcast: req.LegacyBroadcastQuota,
			LegacyPost:      req.LegacyPostQuota,
			At:              now,
		})
		if err != nil {
			return err
		}
		// Reload for the legacy totals written by the migration.
		shop, err = tx.GetShop(ctx, shop.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("shop created", "shop_id", shop.ID, "plan", shop.Plan)
	inats.Emit(ctx, s.publisher, migration.Transactions)
	return shop, nil
}

// Get returns a shop visible to actor.
func (s *Service) Get(ctx context.Context, id uuid.UUID, actor domain.Actor) (*domain.Shop, error) {
	if !actor.CanActOn(id) {
		return nil, domain.Forbidden("shops.get", "cannot read another shop")
	}
	var shop *domain.Shop
	err := s.store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		shop, err = tx.GetShop(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return shop, nil
}

// ChangePlan switches the shop's plan. New base limits apply from the next
// period rollover of each resource.
func (s *Service) ChangePlan(ctx context.Context, id uuid.UUID, planName string, actor domain.Actor) (*domain.Shop, error) {
	const op = "shops.change_plan"

	if !actor.IsAdmin() {
		return nil, domain.Forbidden(op, "only administrators can change plans")
	}
	if strings.TrimSpace(planName) == "" {
		return nil, domain.Invalid(op, "plan is required")
	}

	var shop *domain.Shop
	err := s.store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if _, err := tx.GetShop(ctx, id); err != nil {
			return err
		}
		if err := tx.UpdateShopPlan(ctx, id, planName, s.now()); err != nil {
			return domain.Internal(err, op, "updating plan")
		}
		var err error
		shop, err = tx.GetShop(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("shop plan changed", "shop_id", id, "plan", planName)
	return shop, nil
}

type PurchaseRequest struct {
	ShopID   uuid.UUID
	Resource domain.Resource
	Quantity int
}

// Receipt is an approved purchase and the ledger entry that credited it.
type Receipt struct {
	Purchase    *domain.Purchase         `json:"purchase"`
	Transaction *domain.QuotaTransaction `json:"transaction"`
}

// Purchase records an approved purchase and credits the extra balance.
// Broadcast units cannot be bought while the agenda is suspended.
func (s *Service) Purchase(ctx context.Context, req PurchaseRequest, actor domain.Actor) (*Receipt, error) {
	const op = "shops.purchase"

	if !actor.CanActOn(req.ShopID) {
		return nil, domain.Forbidden(op, "cannot purchase for another shop")
	}
	if !req.Resource.Valid() {
		return nil, domain.Invalid(op, fmt.Sprintf("unknown resource %q", req.Resource))
	}
	if req.Quantity <= 0 {
		return nil, domain.InvalidAmount(op, req.Quantity)
	}

	var receipt *Receipt
	err := s.store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		shop, err := tx.GetShop(ctx, req.ShopID)
		if err != nil {
			return err
		}

		now := s.now()
		if req.Resource == domain.ResourceBroadcast {
			if shop.SuspensionExpired(now) {
				if err := tx.UpdateShopStatus(ctx, shop.ID, domain.LiftChange(now, "")); err != nil {
					return domain.Internal(err, op, "lifting expired suspension")
				}
			} else if shop.AgendaSuspended(now) {
				return domain.Forbidden(op, "broadcast quota cannot be purchased while the agenda is suspended")
			}
		}

		p := &domain.Purchase{
			ID:         uuid.New(),
			ShopID:     shop.ID,
			Resource:   req.Resource,
			Quantity:   req.Quantity,
			Status:     domain.PurchaseApproved,
			ApprovedAt: &now,
			ActorType:  actor.Type,
			ActorID:    actor.ID,
			CreatedAt:  now,
		}
		if err := tx.InsertPurchase(ctx, p); err != nil {
			return domain.Internal(err, op, "recording purchase")
		}

		entry, err := s.engine.Credit(ctx, tx, quota.CreditRequest{
			ShopID:   shop.ID,
			Resource: req.Resource,
			Amount:   req.Quantity,
			Reason:   domain.ReasonPurchase,
			Ref:      domain.Ref{Type: domain.RefPurchase, ID: p.ID.String()},
			Actor:    actor,
			At:       now,
		})
		if err != nil {
			return err
		}
		receipt = &Receipt{Purchase: p, Transaction: entry}
		return nil
	})
	if err != nil {
		return nil, err
	}

	p := receipt.Purchase
	s.logger.Info("quota purchased", "shop_id", p.ShopID, "purchase_id", p.ID, "resource", p.Resource, "quantity", p.Quantity)
	inats.Emit(ctx, s.publisher, []*domain.QuotaTransaction{receipt.Transaction},
		inats.NewAuditEvent(p.ShopID, inats.EventQuotaPurchased, "purchase", p.ID.String(),
			fmt.Sprintf("%d %s units", p.Quantity, p.Resource.Label()), actor, p.CreatedAt))
	return receipt, nil
}
