package quota

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/analianare-star/avellaneda-backend/internal/domain"
	"github.com/analianare-star/avellaneda-backend/internal/period"
	"github.com/analianare-star/avellaneda-backend/internal/store"
	"github.com/analianare-star/avellaneda-backend/internal/store/memory"
)

// Wednesday of the week starting 2026-03-02.
var testNow = time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	st     *memory.Store
	engine *Engine
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &testEnv{
		st: memory.New(),
		engine: NewEngine(period.NewKeyer(time.UTC),
			WithClock(func() time.Time { return testNow }),
			WithLogger(logger),
		),
	}
}

func (e *testEnv) seedShop(t *testing.T, planName string) uuid.UUID {
	t.Helper()
	shop := &domain.Shop{
		ID:        uuid.New(),
		Name:      "Tienda Avellaneda",
		Plan:      planName,
		Status:    domain.ShopActive,
		CreatedAt: testNow,
		UpdatedAt: testNow,
	}
	require.NoError(t, e.st.InTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		return tx.InsertShop(ctx, shop)
	}))
	return shop.ID
}

func (e *testEnv) wallet(t *testing.T, shopID uuid.UUID) *domain.QuotaWallet {
	t.Helper()
	var w *domain.QuotaWallet
	require.NoError(t, e.st.InTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		var err error
		w, err = tx.GetWalletForUpdate(ctx, shopID)
		return err
	}))
	return w
}

func (e *testEnv) shop(t *testing.T, shopID uuid.UUID) *domain.Shop {
	t.Helper()
	var s *domain.Shop
	require.NoError(t, e.st.InTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		var err error
		s, err = tx.GetShop(ctx, shopID)
		return err
	}))
	return s
}

func (e *testEnv) ledger(t *testing.T, shopID uuid.UUID) []domain.QuotaTransaction {
	t.Helper()
	var items []domain.QuotaTransaction
	require.NoError(t, e.st.InTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		var err error
		items, _, err = tx.ListTransactions(ctx, shopID, store.LedgerFilter{PageSize: 100})
		return err
	}))
	return items
}

func (e *testEnv) snapshot(t *testing.T, shopID uuid.UUID, r domain.Resource, at time.Time, exclude uuid.UUID) *Snapshot {
	t.Helper()
	var snap *Snapshot
	require.NoError(t, e.st.InTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		var err error
		snap, err = e.engine.Snapshot(ctx, tx, SnapshotRequest{ShopID: shopID, Resource: r, At: at, ExcludeID: exclude})
		return err
	}))
	return snap
}

// scheduleBroadcast reserves a unit and creates the broadcast in one transaction.
func (e *testEnv) scheduleBroadcast(ctx context.Context, shopID uuid.UUID, at time.Time) (*Reservation, error) {
	var res *Reservation
	err := e.st.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		id := uuid.New()
		var err error
		res, err = e.engine.Reserve(ctx, tx, ReserveRequest{
			ShopID:   shopID,
			Resource: domain.ResourceBroadcast,
			At:       at,
			Ref:      domain.Ref{Type: domain.RefBroadcast, ID: id.String()},
			Actor:    domain.Actor{Type: domain.ActorShop, ID: shopID.String(), ShopID: shopID},
		})
		if err != nil {
			return err
		}
		return tx.InsertBroadcast(ctx, &domain.Broadcast{
			ID:          id,
			ShopID:      shopID,
			Title:       "Liquidación de temporada",
			Status:      domain.BroadcastUpcoming,
			ScheduledAt: at,
			CreatedAt:   testNow,
		})
	})
	return res, err
}

func (e *testEnv) createPost(ctx context.Context, shopID uuid.UUID, at time.Time) (*Reservation, error) {
	var res *Reservation
	err := e.st.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		id := uuid.New()
		var err error
		res, err = e.engine.Reserve(ctx, tx, ReserveRequest{
			ShopID:   shopID,
			Resource: domain.ResourcePost,
			At:       at,
			Ref:      domain.Ref{Type: domain.RefPost, ID: id.String()},
			Actor:    domain.Actor{Type: domain.ActorShop, ID: shopID.String(), ShopID: shopID},
		})
		if err != nil {
			return err
		}
		return tx.InsertPost(ctx, &domain.Post{ID: id, ShopID: shopID, URL: "https://example.com/p", CreatedAt: at})
	})
	return res, err
}

func (e *testEnv) insertRawBroadcast(t *testing.T, shopID uuid.UUID, at time.Time, status domain.BroadcastStatus) uuid.UUID {
	t.Helper()
	id := uuid.New()
	require.NoError(t, e.st.InTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		return tx.InsertBroadcast(ctx, &domain.Broadcast{ID: id, ShopID: shopID, Status: status, ScheduledAt: at})
	}))
	return id
}

func (e *testEnv) credit(t *testing.T, shopID uuid.UUID, r domain.Resource, amount int) {
	t.Helper()
	require.NoError(t, e.st.InTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		_, err := e.engine.Credit(ctx, tx, CreditRequest{
			ShopID:   shopID,
			Resource: r,
			Amount:   amount,
			Reason:   domain.ReasonPurchase,
			Ref:      domain.Ref{Type: domain.RefPurchase, ID: uuid.NewString()},
			Actor:    domain.Actor{Type: domain.ActorShop, ID: shopID.String(), ShopID: shopID},
			At:       testNow,
		})
		return err
	}))
}

func TestSnapshot_CreatesWalletLazily(t *testing.T) {
	env := newTestEnv(t)
	shopID := env.seedShop(t, "alta")

	assert.Nil(t, env.wallet(t, shopID))

	snap := env.snapshot(t, shopID, domain.ResourceBroadcast, testNow, uuid.Nil)
	assert.Equal(t, 1, snap.BaseLimit)
	assert.Equal(t, 0, snap.Consumed)
	assert.Equal(t, 1, snap.BaseRemaining)
	assert.Equal(t, 0, snap.Extra)
	assert.Equal(t, "2026-03-02", snap.Period.Key())

	w := env.wallet(t, shopID)
	require.NotNil(t, w)
	assert.Equal(t, 1, w.WeeklyBroadcastBaseLimit)
	assert.Equal(t, "2026-03-02", w.WeeklyBroadcastWeekKey)
	assert.Equal(t, 3, w.DailyPostLimit)
	assert.Equal(t, "2026-03-04", w.DailyPostDateKey)
}

func TestSnapshot_ShopNotFound(t *testing.T) {
	env := newTestEnv(t)
	err := env.st.InTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		_, err := env.engine.Snapshot(ctx, tx, SnapshotRequest{ShopID: uuid.New(), Resource: domain.ResourceBroadcast, At: testNow})
		return err
	})
	require.Error(t, err)
	assert.Equal(t, domain.ENOTFOUND, domain.ErrorCode(err))
}

func TestSnapshot_RolloverIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	shopID := env.seedShop(t, "maxima")

	_, err := env.scheduleBroadcast(context.Background(), shopID, testNow)
	require.NoError(t, err)
	assert.Equal(t, 1, env.wallet(t, shopID).WeeklyBroadcastUsed)

	nextWeek := testNow.AddDate(0, 0, 7)
	first := env.snapshot(t, shopID, domain.ResourceBroadcast, nextWeek, uuid.Nil)
	afterFirst := *env.wallet(t, shopID)
	second := env.snapshot(t, shopID, domain.ResourceBroadcast, nextWeek, uuid.Nil)
	afterSecond := *env.wallet(t, shopID)

	assert.Equal(t, afterFirst, afterSecond)
	assert.Equal(t, "2026-03-09", afterSecond.WeeklyBroadcastWeekKey)
	assert.Equal(t, 0, afterSecond.WeeklyBroadcastUsed)
	assert.Equal(t, first.BaseRemaining, second.BaseRemaining)
	assert.Equal(t, 3, second.BaseRemaining)
}

func TestSnapshot_PlanChangeAppliesAtRollover(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	shopID := env.seedShop(t, "estandar")

	assert.Equal(t, 0, env.snapshot(t, shopID, domain.ResourceBroadcast, testNow, uuid.Nil).BaseLimit)

	require.NoError(t, env.st.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.UpdateShopPlan(ctx, shopID, "maxima", testNow)
	}))

	assert.Equal(t, 0, env.snapshot(t, shopID, domain.ResourceBroadcast, testNow, uuid.Nil).BaseLimit,
		"limit must not change within the current week")
	assert.Equal(t, 3, env.snapshot(t, shopID, domain.ResourceBroadcast, testNow.AddDate(0, 0, 7), uuid.Nil).BaseLimit)
}

func TestSnapshot_ReconcilesCorruptedUsageDownward(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	shopID := env.seedShop(t, "maxima")

	_, err := env.scheduleBroadcast(ctx, shopID, testNow)
	require.NoError(t, err)

	require.NoError(t, env.st.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		w, err := tx.GetWalletForUpdate(ctx, shopID)
		if err != nil {
			return err
		}
		w.WeeklyBroadcastUsed = 3
		return tx.UpdateWallet(ctx, w)
	}))

	snap := env.snapshot(t, shopID, domain.ResourceBroadcast, testNow, uuid.Nil)
	assert.Equal(t, 1, snap.Consumed)
	assert.Equal(t, 2, snap.BaseRemaining)
	assert.Equal(t, 1, env.wallet(t, shopID).WeeklyBroadcastUsed)
}

func TestSnapshot_ReconciledUsageIsCappedAtLimit(t *testing.T) {
	env := newTestEnv(t)
	shopID := env.seedShop(t, "alta")

	for i := 0; i < 3; i++ {
		env.insertRawBroadcast(t, shopID, testNow.Add(time.Duration(i)*time.Hour), domain.BroadcastUpcoming)
	}

	snap := env.snapshot(t, shopID, domain.ResourceBroadcast, testNow, uuid.Nil)
	assert.Equal(t, 3, snap.Consumed)
	assert.Equal(t, 0, snap.BaseRemaining)
	assert.Equal(t, 1, env.wallet(t, shopID).WeeklyBroadcastUsed)
}

func TestSnapshot_WeekBoundary(t *testing.T) {
	env := newTestEnv(t)
	shopID := env.seedShop(t, "maxima")

	sundayLastSecond := time.Date(2026, 3, 8, 23, 59, 59, 0, time.UTC)
	_, err := env.scheduleBroadcast(context.Background(), shopID, sundayLastSecond)
	require.NoError(t, err)

	assert.Equal(t, 1, env.snapshot(t, shopID, domain.ResourceBroadcast, testNow, uuid.Nil).Consumed)

	nextMonday := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 0, env.snapshot(t, shopID, domain.ResourceBroadcast, nextMonday, uuid.Nil).Consumed)
}

func TestSnapshot_ExcludeAndStatuses(t *testing.T) {
	env := newTestEnv(t)
	shopID := env.seedShop(t, "maxima")

	upcoming := env.insertRawBroadcast(t, shopID, testNow, domain.BroadcastUpcoming)
	env.insertRawBroadcast(t, shopID, testNow.Add(time.Hour), domain.BroadcastPendingReprogrammation)
	env.insertRawBroadcast(t, shopID, testNow.Add(2*time.Hour), domain.BroadcastCancelled)
	env.insertRawBroadcast(t, shopID, testNow.Add(3*time.Hour), domain.BroadcastFinished)
	// Another shop's broadcast never counts.
	env.insertRawBroadcast(t, uuid.New(), testNow, domain.BroadcastUpcoming)

	assert.Equal(t, 2, env.snapshot(t, shopID, domain.ResourceBroadcast, testNow, uuid.Nil).Consumed)
	assert.Equal(t, 1, env.snapshot(t, shopID, domain.ResourceBroadcast, testNow, upcoming).Consumed)
}

func TestSnapshot_ExcludedCountIsNotPersisted(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	shopID := env.seedShop(t, "maxima")

	first, err := env.scheduleBroadcast(ctx, shopID, testNow)
	require.NoError(t, err)
	_, err = env.scheduleBroadcast(ctx, shopID, testNow.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, env.shop(t, shopID).BroadcastQuota)

	excluded := uuid.MustParse(first.Transaction.RefID)
	snap := env.snapshot(t, shopID, domain.ResourceBroadcast, testNow, excluded)
	assert.Equal(t, 1, snap.Consumed)
	assert.Equal(t, 2, snap.BaseRemaining)

	w := env.wallet(t, shopID)
	assert.Equal(t, 2, w.WeeklyBroadcastUsed, "the stored usage keeps the excluded broadcast")
	assert.Equal(t, 1, env.shop(t, shopID).BroadcastQuota)

	env.snapshot(t, shopID, domain.ResourceBroadcast, testNow.AddDate(0, 0, 7), excluded)
	assert.Equal(t, "2026-03-02", env.wallet(t, shopID).WeeklyBroadcastWeekKey)
}

func TestSnapshot_RolloverAndReconcileReprojectLegacyTotal(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	shopID := env.seedShop(t, "maxima")

	_, err := env.scheduleBroadcast(ctx, shopID, testNow)
	require.NoError(t, err)
	assert.Equal(t, 2, env.shop(t, shopID).BroadcastQuota)

	require.NoError(t, env.st.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		w, err := tx.GetWalletForUpdate(ctx, shopID)
		if err != nil {
			return err
		}
		w.WeeklyBroadcastUsed = 3
		if err := tx.UpdateWallet(ctx, w); err != nil {
			return err
		}
		return tx.SetLegacyQuotaTotal(ctx, shopID, domain.ResourceBroadcast, 0)
	}))

	env.snapshot(t, shopID, domain.ResourceBroadcast, testNow, uuid.Nil)
	assert.Equal(t, 2, env.shop(t, shopID).BroadcastQuota, "reconciliation refreshes the legacy total")

	env.snapshot(t, shopID, domain.ResourceBroadcast, testNow.AddDate(0, 0, 7), uuid.Nil)
	assert.Equal(t, 3, env.shop(t, shopID).BroadcastQuota, "rollover refreshes the legacy total")
}

func TestReserve_BaseThenExtraThenExhausted(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	shopID := env.seedShop(t, "alta")

	env.credit(t, shopID, domain.ResourceBroadcast, 2)
	assert.Equal(t, 3, env.shop(t, shopID).BroadcastQuota)

	want := []struct {
		source domain.Source
		reason domain.Reason
		extra  int
		legacy int
	}{
		{domain.SourceBase, domain.ReasonPlanBase, 2, 2},
		{domain.SourceExtra, domain.ReasonPurchase, 1, 1},
		{domain.SourceExtra, domain.ReasonPurchase, 0, 0},
	}

	for i, w := range want {
		res, err := env.scheduleBroadcast(ctx, shopID, testNow.Add(time.Duration(i)*time.Hour))
		require.NoError(t, err, "reservation %d", i+1)
		assert.Equal(t, w.source, res.Source)
		assert.Equal(t, w.reason, res.Transaction.Reason)
		assert.Equal(t, domain.DirectionDebit, res.Transaction.Direction)
		assert.Equal(t, 1, res.Transaction.Amount)
		assert.Equal(t, w.extra, env.wallet(t, shopID).BroadcastExtraBalance)
		assert.Equal(t, w.legacy, env.shop(t, shopID).BroadcastQuota)
	}

	_, err := env.scheduleBroadcast(ctx, shopID, testNow.Add(4*time.Hour))
	require.Error(t, err)
	assert.Equal(t, domain.EQUOTA, domain.ErrorCode(err))

	w := env.wallet(t, shopID)
	assert.Equal(t, 1, w.WeeklyBroadcastUsed)
	assert.Equal(t, 0, w.BroadcastExtraBalance)

	var credits, debits int
	for _, qt := range env.ledger(t, shopID) {
		switch qt.Direction {
		case domain.DirectionCredit:
			credits++
		case domain.DirectionDebit:
			debits++
		}
	}
	assert.Equal(t, 1, credits)
	assert.Equal(t, 3, debits)
}

func TestReserve_ExhaustedRollsBackEverything(t *testing.T) {
	env := newTestEnv(t)
	shopID := env.seedShop(t, "estandar")

	_, err := env.scheduleBroadcast(context.Background(), shopID, testNow)
	require.Error(t, err)
	assert.Equal(t, domain.EQUOTA, domain.ErrorCode(err))

	assert.Nil(t, env.wallet(t, shopID), "lazily created wallet is part of the failed transaction")
	assert.Empty(t, env.ledger(t, shopID))
}

func TestReserve_RecordsRefAndActor(t *testing.T) {
	env := newTestEnv(t)
	shopID := env.seedShop(t, "pro")

	res, err := env.scheduleBroadcast(context.Background(), shopID, testNow)
	require.NoError(t, err)

	entries := env.ledger(t, shopID)
	require.Len(t, entries, 1)
	assert.Equal(t, res.Transaction.ID, entries[0].ID)
	assert.Equal(t, domain.RefBroadcast, entries[0].RefType)
	assert.NotEmpty(t, entries[0].RefID)
	assert.Equal(t, domain.ActorShop, entries[0].ActorType)
	assert.Equal(t, shopID.String(), entries[0].ActorID)
	assert.Equal(t, testNow, entries[0].CreatedAt)
}

func TestReserve_NoDoubleChargeUnderRace(t *testing.T) {
	tests := []struct {
		name      string
		plan      string
		extra     int
		attempts  int
		successes int
	}{
		{"base one, five racers", "alta", 0, 5, 1},
		{"base one plus two extra, eight racers", "alta", 2, 8, 3},
		{"nothing available", "estandar", 0, 4, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			shopID := env.seedShop(t, tt.plan)
			if tt.extra > 0 {
				env.credit(t, shopID, domain.ResourceBroadcast, tt.extra)
			}

			var (
				mu        sync.Mutex
				ok        int
				exhausted int
			)
			var g errgroup.Group
			for i := 0; i < tt.attempts; i++ {
				at := testNow.Add(time.Duration(i) * time.Minute)
				g.Go(func() error {
					_, err := env.scheduleBroadcast(context.Background(), shopID, at)
					mu.Lock()
					defer mu.Unlock()
					switch {
					case err == nil:
						ok++
					case domain.ErrorCode(err) == domain.EQUOTA:
						exhausted++
					default:
						return err
					}
					return nil
				})
			}
			require.NoError(t, g.Wait())

			assert.Equal(t, tt.successes, ok)
			assert.Equal(t, tt.attempts-tt.successes, exhausted)

			debits := 0
			for _, qt := range env.ledger(t, shopID) {
				if qt.Direction == domain.DirectionDebit {
					debits++
				}
			}
			assert.Equal(t, tt.successes, debits)

			snap := env.snapshot(t, shopID, domain.ResourceBroadcast, testNow, uuid.Nil)
			assert.Equal(t, 0, snap.Available())
		})
	}
}

func TestReserve_PostsRollDaily(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	shopID := env.seedShop(t, "estandar")

	res, err := env.createPost(ctx, shopID, testNow)
	require.NoError(t, err)
	assert.Equal(t, domain.SourceBase, res.Source)

	_, err = env.createPost(ctx, shopID, testNow.Add(time.Hour))
	assert.Equal(t, domain.EQUOTA, domain.ErrorCode(err))

	tomorrow := testNow.AddDate(0, 0, 1)
	res, err = env.createPost(ctx, shopID, tomorrow)
	require.NoError(t, err)
	assert.Equal(t, domain.SourceBase, res.Source)

	w := env.wallet(t, shopID)
	assert.Equal(t, "2026-03-05", w.DailyPostDateKey)
	assert.Equal(t, 1, w.DailyPostUsed)
	assert.Equal(t, 0, env.shop(t, shopID).PostQuota)
}

func TestCredit_InvalidAmount(t *testing.T) {
	env := newTestEnv(t)
	shopID := env.seedShop(t, "alta")

	for _, amount := range []int{0, -3} {
		err := env.st.InTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
			_, err := env.engine.Credit(ctx, tx, CreditRequest{
				ShopID:   shopID,
				Resource: domain.ResourceBroadcast,
				Amount:   amount,
				Actor:    domain.SystemActor,
				At:       testNow,
			})
			return err
		})
		require.Error(t, err)
		assert.Equal(t, domain.EAMOUNT, domain.ErrorCode(err))
	}

	assert.Nil(t, env.wallet(t, shopID))
	assert.Empty(t, env.ledger(t, shopID))
}

func TestCredit_PostExtraAndLegacyTotal(t *testing.T) {
	env := newTestEnv(t)
	shopID := env.seedShop(t, "estandar")

	env.credit(t, shopID, domain.ResourcePost, 5)

	w := env.wallet(t, shopID)
	assert.Equal(t, 5, w.PostExtraBalance)
	assert.Equal(t, 6, env.shop(t, shopID).PostQuota)

	entries := env.ledger(t, shopID)
	require.Len(t, entries, 1)
	assert.Equal(t, domain.DirectionCredit, entries[0].Direction)
	assert.Equal(t, 5, entries[0].Amount)
	assert.Equal(t, domain.ResourcePost, entries[0].Resource)
}

func TestMigrateLegacy(t *testing.T) {
	tests := []struct {
		name       string
		legacy     int
		wantExtra  int
		wantUsed   int
		wantTxs    int
		wantLegacy int
	}{
		{"legacy above base becomes extra", 4, 3, 0, 1, 4},
		{"legacy zero uses the whole base", 0, 0, 1, 0, 0},
		{"legacy equal to base", 1, 0, 0, 0, 1},
		{"negative legacy counts as zero", -2, 0, 1, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			shopID := env.seedShop(t, "alta")

			var res *MigrationResult
			require.NoError(t, env.st.InTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
				var err error
				res, err = env.engine.MigrateLegacy(ctx, tx, MigrateRequest{
					ShopID:          shopID,
					LegacyBroadcast: tt.legacy,
					LegacyPost:      3,
					At:              testNow,
				})
				return err
			}))

			assert.True(t, res.Created)
			assert.Len(t, res.Transactions, tt.wantTxs)

			w := env.wallet(t, shopID)
			assert.Equal(t, tt.wantExtra, w.BroadcastExtraBalance)
			assert.Equal(t, tt.wantUsed, w.WeeklyBroadcastUsed)
			assert.Equal(t, 0, w.PostExtraBalance)
			assert.Equal(t, 0, w.DailyPostUsed)
			assert.Equal(t, tt.wantLegacy, env.shop(t, shopID).BroadcastQuota)

			entries := env.ledger(t, shopID)
			require.Len(t, entries, tt.wantTxs)
			for _, qt := range entries {
				assert.Equal(t, domain.ReasonLegacyMigration, qt.Reason)
				assert.Equal(t, domain.DirectionCredit, qt.Direction)
				assert.Equal(t, domain.ActorSystem, qt.ActorType)
				assert.Equal(t, tt.wantExtra, qt.Amount)
			}
		})
	}
}

func TestMigrateLegacy_SkipsExistingWallet(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	shopID := env.seedShop(t, "alta")

	migrate := func() *MigrationResult {
		var res *MigrationResult
		require.NoError(t, env.st.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
			var err error
			res, err = env.engine.MigrateLegacy(ctx, tx, MigrateRequest{ShopID: shopID, LegacyBroadcast: 4, At: testNow})
			return err
		}))
		return res
	}

	assert.True(t, migrate().Created)
	second := migrate()
	assert.False(t, second.Created)
	assert.Empty(t, second.Transactions)
	assert.Len(t, env.ledger(t, shopID), 1)
}

func TestSplitLegacy(t *testing.T) {
	tests := []struct {
		legacy, base, used, extra int
	}{
		{4, 1, 0, 3},
		{0, 1, 1, 0},
		{2, 3, 1, 0},
		{0, 0, 0, 0},
		{5, 0, 0, 5},
		{-1, 3, 3, 0},
	}
	for _, tt := range tests {
		used, extra := SplitLegacy(tt.legacy, tt.base)
		assert.Equal(t, tt.used, used, "legacy=%d base=%d", tt.legacy, tt.base)
		assert.Equal(t, tt.extra, extra, "legacy=%d base=%d", tt.legacy, tt.base)
	}
}
