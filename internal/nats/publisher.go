package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/analianare-star/avellaneda-backend/internal/domain"
)

// EventPublisher is what services depend on. Publishing happens after commit.
type EventPublisher interface {
	PublishLedgerEvent(ctx context.Context, event LedgerEvent) error
	PublishAuditEvent(ctx context.Context, event AuditEvent) error
}

// Publisher provides typed methods for publishing events to NATS JetStream.
type Publisher struct {
	js jetstream.JetStream
}

// NewPublisher creates a new Publisher.
func NewPublisher(js jetstream.JetStream) *Publisher {
	return &Publisher{js: js}
}

// PublishLedgerEvent publishes a committed ledger entry.
// The transaction id is the message id, so a retried publish is deduplicated
// by the stream.
func (p *Publisher) PublishLedgerEvent(ctx context.Context, event LedgerEvent) error {
	return p.publish(ctx, SubjectLedgerEvent, event.TransactionID.String(), event)
}

// PublishAuditEvent publishes an audit event.
func (p *Publisher) PublishAuditEvent(ctx context.Context, event AuditEvent) error {
	return p.publish(ctx, SubjectAuditEvent, "", event)
}

func (p *Publisher) publish(ctx context.Context, subject, msgID string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshaling event for %s: %w", subject, err)
	}
	var opts []jetstream.PublishOpt
	if msgID != "" {
		opts = append(opts, jetstream.WithMsgID(msgID))
	}
	_, err = p.js.Publish(ctx, subject, payload, opts...)
	if err != nil {
		return fmt.Errorf("publishing to %s: %w", subject, err)
	}
	return nil
}

// NoopPublisher discards events. Used when NATS is not configured.
type NoopPublisher struct{}

func (NoopPublisher) PublishLedgerEvent(context.Context, LedgerEvent) error { return nil }
func (NoopPublisher) PublishAuditEvent(context.Context, AuditEvent) error   { return nil }

// Emit publishes ledger entries and audit events, logging failures.
// The database is the source of truth, so a failed publish never fails the caller.
func Emit(ctx context.Context, p EventPublisher, entries []*domain.QuotaTransaction, audits ...AuditEvent) {
	if p == nil {
		return
	}
	for _, e := range entries {
		if e == nil {
			continue
		}
		if err := p.PublishLedgerEvent(ctx, NewLedgerEvent(e)); err != nil {
			slog.Warn("publishing ledger event", "error", err, "transaction_id", e.ID, "shop_id", e.ShopID)
		}
	}
	for _, a := range audits {
		if err := p.PublishAuditEvent(ctx, a); err != nil {
			slog.Warn("publishing audit event", "error", err, "event_type", a.EventType, "shop_id", a.ShopID)
		}
	}
}
