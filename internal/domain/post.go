package domain

import (
	"time"

	"github.com/google/uuid"
)

// Post is a short video published by a shop. Each one consumes a daily post unit.
type Post struct {
	ID        uuid.UUID `json:"id"`
	ShopID    uuid.UUID `json:"shop_id"`
	URL       string    `json:"url"`
	Platform  string    `json:"platform"`
	CreatedAt time.Time `json:"created_at"`
}

type PurchaseStatus string

const PurchaseApproved PurchaseStatus = "APPROVED"

// Purchase records extra quota bought by a shop.
type Purchase struct {
	ID         uuid.UUID      `json:"id"`
	ShopID     uuid.UUID      `json:"shop_id"`
	Resource   Resource       `json:"resource"`
	Quantity   int            `json:"quantity"`
	Status     PurchaseStatus `json:"status"`
	ApprovedAt *time.Time     `json:"approved_at,omitempty"`
	ActorType  ActorType      `json:"actor_type"`
	ActorID    string         `json:"actor_id,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}
