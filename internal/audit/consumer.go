package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	inats "github.com/analianare-star/avellaneda-backend/internal/nats"
)

// Consumer listens on the audit event subject and persists entries.
type Consumer struct {
	repo        Writer
	consumerMgr *inats.ConsumerManager
}

// NewConsumer creates a new audit event Consumer.
func NewConsumer(repo Writer, consumerMgr *inats.ConsumerManager) *Consumer {
	return &Consumer{
		repo:        repo,
		consumerMgr: consumerMgr,
	}
}

// Start begins the consume loop. Blocks until ctx is cancelled.
func (c *Consumer) Start(ctx context.Context) error {
	return c.consumerMgr.Consume(ctx, inats.ConsumerAuditPersister, inats.SubjectAuditEvent, c.handle)
}

func (c *Consumer) handle(ctx context.Context, data []byte) error {
	var event inats.AuditEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return fmt.Errorf("unmarshaling audit event: %w", err)
	}

	if err := c.repo.Insert(ctx, FromEvent(event)); err != nil {
		return fmt.Errorf("persisting audit log %s: %w", event.EventType, err)
	}

	slog.Debug("audit consumer: persisted event",
		"event_type", event.EventType,
		"shop_id", event.ShopID,
		"resource_id", event.ResourceID,
	)
	return nil
}
