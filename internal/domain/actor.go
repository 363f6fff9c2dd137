package domain

import "github.com/google/uuid"

type ActorType string

const (
	ActorShop   ActorType = "SHOP"
	ActorAdmin  ActorType = "ADMIN"
	ActorSystem ActorType = "SYSTEM"
)

// Actor identifies who caused a change. It is carried into ledger entries as-is.
type Actor struct {
	Type ActorType `json:"actor_type"`
	ID   string    `json:"actor_id"`
	// ShopID is set for shop actors.
	ShopID uuid.UUID `json:"shop_id,omitempty"`
}

// SystemActor is used for migrations and background work.
var SystemActor = Actor{Type: ActorSystem, ID: "system"}

func (a Actor) IsAdmin() bool {
	return a.Type == ActorAdmin
}

// CanActOn reports whether the actor may operate on the given shop.
func (a Actor) CanActOn(shopID uuid.UUID) bool {
	switch a.Type {
	case ActorAdmin, ActorSystem:
		return true
	case ActorShop:
		return a.ShopID == shopID
	default:
		return false
	}
}
