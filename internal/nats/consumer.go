package nats

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

// Durable consumer names.
const (
	ConsumerAuditPersister = "audit-persister"
)

const (
	fetchBatch = 10
	ackWait    = 30 * time.Second
	maxDeliver = 5
)

// ConsumerManager handles durable consumer creation and the fetch loop.
type ConsumerManager struct {
	js jetstream.JetStream
}

// NewConsumerManager creates a new ConsumerManager.
func NewConsumerManager(js jetstream.JetStream) *ConsumerManager {
	return &ConsumerManager{js: js}
}

// EnsureConsumer creates or updates a durable consumer on the given stream.
// A message is redelivered at most maxDeliver times.
func (cm *ConsumerManager) EnsureConsumer(ctx context.Context, stream, name, filterSubject string) (jetstream.Consumer, error) {
	cfg := jetstream.ConsumerConfig{
		Durable:       name,
		FilterSubject: filterSubject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       ackWait,
		MaxDeliver:    maxDeliver,
	}

	consumer, err := cm.js.CreateOrUpdateConsumer(ctx, stream, cfg)
	if err != nil {
		return nil, fmt.Errorf("ensuring consumer %s on %s: %w", name, stream, err)
	}
	return consumer, nil
}

// Handler processes one message. Returning an error naks it for redelivery.
type Handler func(ctx context.Context, data []byte) error

// Consume fetches from a durable consumer and hands each message to handle.
// Blocks until ctx is cancelled.
func (cm *ConsumerManager) Consume(ctx context.Context, name, filterSubject string, handle Handler) error {
	consumer, err := cm.EnsureConsumer(ctx, StreamEvents, name, filterSubject)
	if err != nil {
		return err
	}

	slog.Info("consumer started", "consumer", name, "subject", filterSubject)

	for {
		msgs, err := consumer.Fetch(fetchBatch, jetstream.FetchMaxWait(FetchTimeout))
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			slog.Debug("fetching events", "consumer", name, "error", err)
			continue
		}

		for msg := range msgs.Messages() {
			if err := handle(ctx, msg.Data()); err != nil {
				slog.Error("handling event", "consumer", name, "subject", msg.Subject(), "error", err)
				_ = msg.Nak()
				continue
			}
			_ = msg.Ack()
		}

		if ctx.Err() != nil {
			return nil
		}
	}
}
