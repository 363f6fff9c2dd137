//go:build integration

package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/analianare-star/avellaneda-backend/internal/config"
	"github.com/analianare-star/avellaneda-backend/internal/domain"
)

func setupNATSContainer(t *testing.T) *Client {
	t.Helper()
	ctx := context.Background()

	natsContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "nats:2-alpine",
			ExposedPorts: []string{"4222/tcp"},
			Cmd:          []string{"--jetstream", "--store_dir", "/data"},
			WaitingFor:   wait.ForLog("Server is ready").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { natsContainer.Terminate(ctx) })

	host, _ := natsContainer.Host(ctx)
	port, _ := natsContainer.MappedPort(ctx, "4222")

	client, err := NewClient(ctx, config.NATSConfig{
		URL: fmt.Sprintf("nats://%s:%s", host, port.Port()),
	})
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	return client
}

func TestJetStreamEvents(t *testing.T) {
	client := setupNATSContainer(t)
	ctx := context.Background()

	publisher := NewPublisher(client.JetStream())
	consumerMgr := NewConsumerManager(client.JetStream())

	t.Run("ledger event round trip", func(t *testing.T) {
		entry := &domain.QuotaTransaction{
			ID:        uuid.New(),
			ShopID:    uuid.New(),
			Resource:  domain.ResourcePost,
			Direction: domain.DirectionCredit,
			Amount:    2,
			Reason:    domain.ReasonPurchase,
			ActorType: domain.ActorShop,
			CreatedAt: time.Now().UTC(),
		}
		require.NoError(t, publisher.PublishLedgerEvent(ctx, NewLedgerEvent(entry)))

		consumer, err := consumerMgr.EnsureConsumer(ctx, StreamEvents, "test-ledger", SubjectLedgerEvent)
		require.NoError(t, err)

		msgs, err := consumer.Fetch(1, jetstream.FetchMaxWait(5*time.Second))
		require.NoError(t, err)

		var received LedgerEvent
		for m := range msgs.Messages() {
			require.NoError(t, json.Unmarshal(m.Data(), &received))
			_ = m.Ack()
		}

		assert.Equal(t, entry.ID, received.TransactionID)
		assert.Equal(t, 2, received.Amount)
		assert.Equal(t, "PURCHASE", received.Reason)
	})

	t.Run("consume loop hands audit events to the handler", func(t *testing.T) {
		shopID := uuid.New()
		event := NewAuditEvent(shopID, EventAgendaLifted, "shop", shopID.String(), "",
			domain.Actor{Type: domain.ActorAdmin, ID: "ops"}, time.Now().UTC())
		require.NoError(t, publisher.PublishAuditEvent(ctx, event))

		var (
			mu  sync.Mutex
			got []AuditEvent
		)
		runCtx, cancel := context.WithCancel(ctx)
		done := make(chan error, 1)
		go func() {
			done <- consumerMgr.Consume(runCtx, "test-audit", SubjectAuditEvent, func(_ context.Context, data []byte) error {
				var e AuditEvent
				if err := json.Unmarshal(data, &e); err != nil {
					return err
				}
				mu.Lock()
				got = append(got, e)
				mu.Unlock()
				return nil
			})
		}()

		require.Eventually(t, func() bool {
			mu.Lock()
			defer mu.Unlock()
			return len(got) == 1
		}, 10*time.Second, 100*time.Millisecond)

		cancel()
		require.NoError(t, <-done)
		assert.Equal(t, EventAgendaLifted, got[0].EventType)
		assert.Equal(t, shopID, got[0].ShopID)
	})

	t.Run("client is healthy", func(t *testing.T) {
		assert.True(t, client.Healthy())
	})
}
