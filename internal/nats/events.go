package nats

import (
	"time"

	"github.com/google/uuid"

	"github.com/analianare-star/avellaneda-backend/internal/domain"
)

// FetchTimeout is the default timeout for batch fetching messages from consumers.
const FetchTimeout = 2 * time.Second

// Stream names.
const (
	StreamEvents = "AVELLANEDA_EVENTS"
)

// Subject constants.
const (
	SubjectLedgerEvent = "avellaneda.events.ledger"
	SubjectAuditEvent  = "avellaneda.events.audit"
)

// Audit event types.
const (
	EventAgendaSuspended     = "agenda_suspended"
	EventAgendaLifted        = "agenda_lifted"
	EventRescheduleCompleted = "reschedule_completed"
	EventQuotaPurchased      = "quota_purchased"
	EventQuotaGranted        = "quota_granted"
	EventWalletMigrated      = "wallet_migrated"
	EventBroadcastFlagged    = "broadcast_flagged"
	EventBroadcastBanned     = "broadcast_banned"
	EventBroadcastMissed     = "broadcast_missed"
)

// LedgerEvent mirrors a committed quota transaction.
type LedgerEvent struct {
	TransactionID uuid.UUID `json:"transaction_id"`
	ShopID        uuid.UUID `json:"shop_id"`
	Resource      string    `json:"resource"`
	Direction     string    `json:"direction"`
	Amount        int       `json:"amount"`
	Reason        string    `json:"reason"`
	RefType       string    `json:"ref_type,omitempty"`
	RefID         string    `json:"ref_id,omitempty"`
	ActorType     string    `json:"actor_type"`
	ActorID       string    `json:"actor_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// NewLedgerEvent converts a ledger entry into its event form.
func NewLedgerEvent(t *domain.QuotaTransaction) LedgerEvent {
	return LedgerEvent{
		TransactionID: t.ID,
		ShopID:        t.ShopID,
		Resource:      string(t.Resource),
		Direction:     string(t.Direction),
		Amount:        t.Amount,
		Reason:        string(t.Reason),
		RefType:       string(t.RefType),
		RefID:         t.RefID,
		ActorType:     string(t.ActorType),
		ActorID:       t.ActorID,
		CreatedAt:     t.CreatedAt,
	}
}

// AuditEvent is published for administrative and quota-affecting actions.
type AuditEvent struct {
	ShopID       uuid.UUID `json:"shop_id"`
	EventType    string    `json:"event_type"`
	Severity     string    `json:"severity"` // info, warn, error
	ResourceType string    `json:"resource_type"`
	ResourceID   string    `json:"resource_id"`
	Details      string    `json:"details"`
	ActorType    string    `json:"actor_type"`
	ActorID      string    `json:"actor_id,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// NewAuditEvent fills the actor fields from a domain actor.
func NewAuditEvent(shopID uuid.UUID, eventType, resourceType, resourceID, details string, actor domain.Actor, at time.Time) AuditEvent {
	return AuditEvent{
		ShopID:       shopID,
		EventType:    eventType,
		Severity:     "info",
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Details:      details,
		ActorType:    string(actor.Type),
		ActorID:      actor.ID,
		Timestamp:    at,
	}
}
