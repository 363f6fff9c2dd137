package domain

import (
	"time"

	"github.com/google/uuid"
)

type BatchStatus string

const (
	BatchRunning   BatchStatus = "RUNNING"
	BatchCompleted BatchStatus = "COMPLETED"
)

type ItemStatus string

const (
	ItemPending ItemStatus = "PENDING"
	ItemMoved   ItemStatus = "MOVED"
	ItemFlagged ItemStatus = "FLAGGED"
	ItemSkipped ItemStatus = "SKIPPED"
	ItemFailed  ItemStatus = "FAILED"
)

// Done reports whether the item needs no further processing.
func (s ItemStatus) Done() bool {
	return s == ItemMoved || s == ItemFlagged || s == ItemSkipped
}

// RescheduleBatch groups the broadcasts shifted by one suspension event.
type RescheduleBatch struct {
	ID             uuid.UUID   `json:"id"`
	ShopID         uuid.UUID   `json:"shop_id"`
	Reason         string      `json:"reason"`
	SuspendedUntil time.Time   `json:"suspended_until"`
	Status         BatchStatus `json:"status"`
	Moved          int         `json:"moved"`
	Flagged        int         `json:"flagged"`
	Skipped        int         `json:"skipped"`
	Failed         int         `json:"failed"`
	ActorType      ActorType   `json:"actor_type"`
	ActorID        string      `json:"actor_id,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
	CompletedAt    *time.Time  `json:"completed_at,omitempty"`
}

// RescheduleItem tracks one broadcast within a batch.
type RescheduleItem struct {
	BatchID     uuid.UUID  `json:"batch_id"`
	BroadcastID uuid.UUID  `json:"broadcast_id"`
	Status      ItemStatus `json:"status"`
	FromAt      time.Time  `json:"from_at"`
	ToAt        *time.Time `json:"to_at,omitempty"`
	Error       string     `json:"error,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Tally recomputes the batch counters from its items.
func (b *RescheduleBatch) Tally(items []RescheduleItem) {
	b.Moved, b.Flagged, b.Skipped, b.Failed = 0, 0, 0, 0
	for _, it := range items {
		switch it.Status {
		case ItemMoved:
			b.Moved++
		case ItemFlagged:
			b.Flagged++
		case ItemSkipped:
			b.Skipped++
		case ItemFailed:
			b.Failed++
		}
	}
}
