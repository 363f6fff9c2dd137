package audit

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	inats "github.com/analianare-star/avellaneda-backend/internal/nats"
)

// AuditLog matches the audit_logs table schema.
type AuditLog struct {
	ID           uuid.UUID       `json:"id"`
	ShopID       uuid.UUID       `json:"shop_id"`
	EventType    string          `json:"event_type"`
	Severity     string          `json:"severity"`
	ResourceType string          `json:"resource_type,omitempty"`
	ResourceID   string          `json:"resource_id,omitempty"`
	Details      json.RawMessage `json:"details,omitempty"`
	ActorType    string          `json:"actor_type,omitempty"`
	ActorID      string          `json:"actor_id,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// ListParams holds pagination and filtering parameters for audit log queries.
type ListParams struct {
	EventType string
	From      *time.Time
	To        *time.Time
	Page      int
	PageSize  int
}

// DefaultListParams returns sensible defaults.
func DefaultListParams() ListParams {
	return ListParams{
		Page:     1,
		PageSize: 20,
	}
}

func (p ListParams) normalize() ListParams {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 || p.PageSize > 100 {
		p.PageSize = 20
	}
	return p
}

// FromEvent converts a published audit event into a row. Details that are
// already a JSON object are stored as-is; plain text is wrapped as
// {"message": ...}.
func FromEvent(event inats.AuditEvent) *AuditLog {
	log := &AuditLog{
		ID:           uuid.New(),
		ShopID:       event.ShopID,
		EventType:    event.EventType,
		Severity:     event.Severity,
		ResourceType: event.ResourceType,
		ResourceID:   event.ResourceID,
		ActorType:    event.ActorType,
		ActorID:      event.ActorID,
		CreatedAt:    event.Timestamp,
	}
	if log.Severity == "" {
		log.Severity = "info"
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}

	var obj map[string]any
	if event.Details != "" && json.Unmarshal([]byte(event.Details), &obj) == nil {
		log.Details = json.RawMessage(event.Details)
		return log
	}
	if event.Details != "" {
		if data, err := json.Marshal(map[string]string{"message": event.Details}); err == nil {
			log.Details = data
		}
	}
	return log
}
