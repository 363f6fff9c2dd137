package nats

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/analianare-star/avellaneda-backend/internal/domain"
)

type fakePublisher struct {
	ledger []LedgerEvent
	audit  []AuditEvent
	err    error
}

func (f *fakePublisher) PublishLedgerEvent(_ context.Context, e LedgerEvent) error {
	f.ledger = append(f.ledger, e)
	return f.err
}

func (f *fakePublisher) PublishAuditEvent(_ context.Context, e AuditEvent) error {
	f.audit = append(f.audit, e)
	return f.err
}

func TestEmit(t *testing.T) {
	shopID := uuid.New()
	entry := &domain.QuotaTransaction{
		ID:        uuid.New(),
		ShopID:    shopID,
		Resource:  domain.ResourceBroadcast,
		Direction: domain.DirectionDebit,
		Amount:    1,
		Reason:    domain.ReasonPlanBase,
		RefType:   domain.RefBroadcast,
		RefID:     "b-1",
		ActorType: domain.ActorShop,
		ActorID:   "owner",
		CreatedAt: time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC),
	}
	audit := NewAuditEvent(shopID, EventAgendaSuspended, "shop", shopID.String(), `{"days":7}`,
		domain.Actor{Type: domain.ActorAdmin, ID: "ops"}, entry.CreatedAt)

	pub := &fakePublisher{}
	Emit(context.Background(), pub, []*domain.QuotaTransaction{entry, nil}, audit)

	require.Len(t, pub.ledger, 1)
	assert.Equal(t, entry.ID, pub.ledger[0].TransactionID)
	assert.Equal(t, "BROADCAST", pub.ledger[0].Resource)
	assert.Equal(t, "b-1", pub.ledger[0].RefID)

	require.Len(t, pub.audit, 1)
	assert.Equal(t, "info", pub.audit[0].Severity)
	assert.Equal(t, "ADMIN", pub.audit[0].ActorType)
}

func TestEmit_FailuresAreSwallowed(t *testing.T) {
	pub := &fakePublisher{err: errors.New("nats down")}
	assert.NotPanics(t, func() {
		Emit(context.Background(), pub, []*domain.QuotaTransaction{{ID: uuid.New()}},
			AuditEvent{EventType: EventQuotaGranted})
	})
	assert.Len(t, pub.ledger, 1)
	assert.Len(t, pub.audit, 1)

	Emit(context.Background(), nil, []*domain.QuotaTransaction{{ID: uuid.New()}})
}
