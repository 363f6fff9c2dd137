package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/analianare-star/avellaneda-backend/internal/agenda"
	"github.com/analianare-star/avellaneda-backend/internal/api"
	"github.com/analianare-star/avellaneda-backend/internal/auth"
	"github.com/analianare-star/avellaneda-backend/internal/broadcasts"
	"github.com/analianare-star/avellaneda-backend/internal/domain"
	mw "github.com/analianare-star/avellaneda-backend/internal/middleware"
	"github.com/analianare-star/avellaneda-backend/internal/period"
	"github.com/analianare-star/avellaneda-backend/internal/posts"
	"github.com/analianare-star/avellaneda-backend/internal/quota"
	"github.com/analianare-star/avellaneda-backend/internal/shops"
	"github.com/analianare-star/avellaneda-backend/internal/store/memory"
)

const testSecret = "router-test-secret-that-is-32-chars-long"

type testEnv struct {
	t       *testing.T
	handler http.Handler
	authSvc *auth.Service
}

func newTestEnv(t *testing.T, cfg api.RouterConfig) *testEnv {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	st := memory.New()
	keyer := period.NewKeyer(time.UTC)
	engine := quota.NewEngine(keyer)

	authSvc := auth.NewService(auth.NewJWTManager(testSecret, time.Hour), rdb)
	authHandler := auth.NewHandler(authSvc)
	shopHandler := shops.NewHandler(shops.NewService(st, engine, nil))
	quotaHandler := quota.NewHandler(quota.NewService(st, engine, nil))
	postHandler := posts.NewHandler(posts.NewService(st, engine, nil))
	agendaSvc := agenda.NewService(st, keyer, nil, agenda.Config{})
	agendaHandler := agenda.NewHandler(agendaSvc)
	broadcastHandler := broadcasts.NewHandler(broadcasts.NewService(st, engine, nil, broadcasts.Config{},
		broadcasts.WithSuspender(agendaSvc)))

	if cfg.Checks == nil {
		cfg.Checks = map[string]api.HealthCheck{}
	}
	if cfg.PurchaseRateLimiter == nil {
		cfg.PurchaseRateLimiter = mw.NewRateLimiter(rdb, "purchases", 2, 60).Middleware
	}

	h := api.NewRouter(cfg, api.HandlerSet{
		Me:                  authHandler.Me,
		Logout:              authHandler.Logout,
		CreateShop:          shopHandler.Create,
		GetShop:             shopHandler.Get,
		ChangeShopPlan:      shopHandler.ChangePlan,
		Purchase:            shopHandler.Purchase,
		QuotaSnapshot:       quotaHandler.Snapshot,
		QuotaTransactions:   quotaHandler.Transactions,
		GrantQuota:          quotaHandler.Grant,
		MigrateWallet:       quotaHandler.Migrate,
		ScheduleBroadcast:   broadcastHandler.Create,
		ListBroadcasts:      broadcastHandler.List,
		GetBroadcast:        broadcastHandler.Get,
		RescheduleBroadcast: broadcastHandler.Update,
		CancelBroadcast:     broadcastHandler.Cancel,
		StartBroadcast:      broadcastHandler.GoLive,
		FinishBroadcast:     broadcastHandler.Finish,
		ReportBroadcast:     broadcastHandler.Report,
		BanBroadcast:        broadcastHandler.Ban,
		CreatePost:          postHandler.Create,
		SuspendAgenda:       agendaHandler.Suspend,
		LiftAgenda:          agendaHandler.Lift,
		GetBatch:            agendaHandler.GetBatch,
		ResumeBatch:         agendaHandler.Resume,
		AuthMiddleware:      auth.Middleware(authSvc),
		AdminOnly:           auth.RequireAdmin,
	})

	return &testEnv{t: t, handler: h, authSvc: authSvc}
}

func (e *testEnv) token(actor domain.Actor) string {
	e.t.Helper()
	tok, err := e.authSvc.IssueToken(actor)
	require.NoError(e.t, err)
	return tok.AccessToken
}

func (e *testEnv) adminToken() string {
	return e.token(domain.Actor{Type: domain.ActorAdmin, ID: "ops-1"})
}

func (e *testEnv) shopToken(shopID uuid.UUID) string {
	return e.token(domain.Actor{Type: domain.ActorShop, ID: "owner-" + shopID.String()[:8], ShopID: shopID})
}

func (e *testEnv) do(method, path, token string, body any) *httptest.ResponseRecorder {
	e.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(e.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	require.NoError(t, json.Unmarshal(env.Data, out))
}

func (e *testEnv) createShop(plan string) uuid.UUID {
	e.t.Helper()
	rec := e.do(http.MethodPost, "/api/v1/admin/shops", e.adminToken(), map[string]any{
		"name": "Galeria " + plan,
		"plan": plan,
	})
	require.Equal(e.t, http.StatusCreated, rec.Code, rec.Body.String())
	var shop domain.Shop
	decodeData(e.t, rec, &shop)
	return shop.ID
}

func TestRouter_Health(t *testing.T) {
	env := newTestEnv(t, api.RouterConfig{Checks: map[string]api.HealthCheck{
		"database": nil,
		"redis":    func(context.Context) error { return nil },
	}})

	rec := env.do(http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(http.MethodGet, "/health/ready", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var health map[string]string
	decodeData(t, rec, &health)
	assert.Equal(t, "healthy", health["status"])
	assert.Equal(t, "not configured", health["database"])
	assert.Equal(t, "healthy", health["redis"])
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestRouter_ReadinessDegraded(t *testing.T) {
	env := newTestEnv(t, api.RouterConfig{Checks: map[string]api.HealthCheck{
		"nats": func(context.Context) error { return errors.New("disconnected") },
	}})

	rec := env.do(http.MethodGet, "/health/ready", "", nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var health map[string]string
	decodeData(t, rec, &health)
	assert.Equal(t, "degraded", health["status"])
	assert.Equal(t, "unhealthy", health["nats"])
}

func TestRouter_RequiresToken(t *testing.T) {
	env := newTestEnv(t, api.RouterConfig{})

	rec := env.do(http.MethodGet, "/api/v1/shops/"+uuid.NewString(), "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(http.MethodGet, "/api/v1/shops/"+uuid.NewString(), "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouter_AdminRoutesRejectShops(t *testing.T) {
	env := newTestEnv(t, api.RouterConfig{})
	shopID := env.createShop("alta")

	rec := env.do(http.MethodPost, "/api/v1/admin/shops", env.shopToken(shopID), map[string]any{
		"name": "Intruder", "plan": "maxima",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(http.MethodPost, "/api/v1/admin/shops/"+shopID.String()+"/agenda/suspend", env.shopToken(shopID), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRouter_ShopIsolation(t *testing.T) {
	env := newTestEnv(t, api.RouterConfig{})
	own := env.createShop("alta")
	other := env.createShop("alta")
	token := env.shopToken(own)

	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/api/v1/shops/"+own.String(), token, nil).Code)
	assert.Equal(t, http.StatusForbidden, env.do(http.MethodGet, "/api/v1/shops/"+other.String(), token, nil).Code)
	assert.Equal(t, http.StatusForbidden, env.do(http.MethodGet, "/api/v1/shops/"+other.String()+"/quota", token, nil).Code)

	rec := env.do(http.MethodPost, "/api/v1/shops/"+other.String()+"/posts", token, map[string]any{
		"url": "https://instagram.com/p/abc", "platform": "instagram",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRouter_ScheduleAndSuspend(t *testing.T) {
	env := newTestEnv(t, api.RouterConfig{})
	shopID := env.createShop("maxima")
	token := env.shopToken(shopID)
	at := time.Now().UTC().Add(48 * time.Hour).Truncate(time.Minute)

	rec := env.do(http.MethodPost, "/api/v1/shops/"+shopID.String()+"/broadcasts", token, map[string]any{
		"title":        "Liquidacion de invierno",
		"platform":     "instagram",
		"scheduled_at": at,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var b domain.Broadcast
	decodeData(t, rec, &b)
	assert.Equal(t, domain.BroadcastUpcoming, b.Status)

	rec = env.do(http.MethodGet, "/api/v1/shops/"+shopID.String()+"/quota?at="+at.Format(time.RFC3339), token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var view quota.WalletView
	decodeData(t, rec, &view)
	assert.Equal(t, 1, view.Broadcast.Consumed)
	assert.Equal(t, 2, view.Broadcast.BaseRemaining)

	rec = env.do(http.MethodPost, "/api/v1/admin/shops/"+shopID.String()+"/agenda/suspend", env.adminToken(),
		map[string]any{"reason": "payment overdue"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var summary agenda.Summary
	decodeData(t, rec, &summary)
	assert.Equal(t, 1, summary.Moved)
	assert.Equal(t, domain.BatchCompleted, summary.Status)

	rec = env.do(http.MethodGet, "/api/v1/broadcasts/"+b.ID.String(), token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var moved domain.Broadcast
	decodeData(t, rec, &moved)
	assert.True(t, moved.ScheduledAt.Equal(at.AddDate(0, 0, 7)), "got %s", moved.ScheduledAt)

	rec = env.do(http.MethodPost, "/api/v1/shops/"+shopID.String()+"/broadcasts", token, map[string]any{
		"title":        "Otra",
		"platform":     "instagram",
		"scheduled_at": at.Add(24 * time.Hour),
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = env.do(http.MethodGet, "/api/v1/admin/reschedule-batches/"+summary.BatchID.String(), env.adminToken(), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_PurchaseRateLimited(t *testing.T) {
	env := newTestEnv(t, api.RouterConfig{})
	shopID := env.createShop("estandar")
	token := env.shopToken(shopID)
	path := "/api/v1/shops/" + shopID.String() + "/purchases"
	body := map[string]any{"resource": "post", "quantity": 1}

	assert.Equal(t, http.StatusCreated, env.do(http.MethodPost, path, token, body).Code)
	assert.Equal(t, http.StatusCreated, env.do(http.MethodPost, path, token, body).Code)
	assert.Equal(t, http.StatusTooManyRequests, env.do(http.MethodPost, path, token, body).Code)

	// Other routes are not limited.
	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/api/v1/shops/"+shopID.String(), token, nil).Code)
}

func TestRouter_Logout(t *testing.T) {
	env := newTestEnv(t, api.RouterConfig{})
	token := env.adminToken()

	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/api/v1/auth/me", token, nil).Code)
	assert.Equal(t, http.StatusOK, env.do(http.MethodPost, "/api/v1/auth/logout", token, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, env.do(http.MethodGet, "/api/v1/auth/me", token, nil).Code)
}

func TestRouter_Moderation(t *testing.T) {
	env := newTestEnv(t, api.RouterConfig{})
	shopID := env.createShop("maxima")
	token := env.shopToken(shopID)
	at := time.Now().UTC().Add(48 * time.Hour).Truncate(time.Minute)

	rec := env.do(http.MethodPost, "/api/v1/shops/"+shopID.String()+"/broadcasts", token, map[string]any{
		"title":        "Liquidacion de invierno",
		"platform":     "instagram",
		"scheduled_at": at,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var b domain.Broadcast
	decodeData(t, rec, &b)

	viewer := env.token(domain.Actor{Type: domain.ActorAdmin, ID: "viewer-1"})
	rec = env.do(http.MethodPost, "/api/v1/broadcasts/"+b.ID.String()+"/reports", viewer, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, "a broadcast that has not started cannot be reported")

	banPath := "/api/v1/admin/broadcasts/" + b.ID.String() + "/ban"
	assert.Equal(t, http.StatusForbidden, env.do(http.MethodPost, banPath, token, nil).Code)

	rec = env.do(http.MethodPost, banPath, env.adminToken(), map[string]any{"reason": "fraudulent listing"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var banned domain.Broadcast
	decodeData(t, rec, &banned)
	assert.Equal(t, domain.BroadcastBanned, banned.Status)
	assert.Equal(t, "fraudulent listing", banned.ModerationReason)

	rec = env.do(http.MethodGet, "/api/v1/shops/"+shopID.String(), env.adminToken(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var shop domain.Shop
	decodeData(t, rec, &shop)
	assert.Equal(t, domain.ShopBanned, shop.Status)
}
