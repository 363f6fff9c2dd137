package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	mw "github.com/analianare-star/avellaneda-backend/internal/middleware"
)

// HandlerSet holds handler functions injected from main.go to avoid import cycles.
type HandlerSet struct {
	// Auth handlers
	Me     http.HandlerFunc
	Logout http.HandlerFunc

	// Shop handlers
	CreateShop     http.HandlerFunc
	GetShop        http.HandlerFunc
	ChangeShopPlan http.HandlerFunc
	Purchase       http.HandlerFunc

	// Quota handlers
	QuotaSnapshot     http.HandlerFunc
	QuotaTransactions http.HandlerFunc
	GrantQuota        http.HandlerFunc
	MigrateWallet     http.HandlerFunc

	// Broadcast handlers
	ScheduleBroadcast   http.HandlerFunc
	ListBroadcasts      http.HandlerFunc
	GetBroadcast        http.HandlerFunc
	RescheduleBroadcast http.HandlerFunc
	CancelBroadcast     http.HandlerFunc
	StartBroadcast      http.HandlerFunc
	FinishBroadcast     http.HandlerFunc
	ReportBroadcast     http.HandlerFunc
	BanBroadcast        http.HandlerFunc

	// Post handlers
	CreatePost http.HandlerFunc

	// Agenda handlers
	SuspendAgenda http.HandlerFunc
	LiftAgenda    http.HandlerFunc
	GetBatch      http.HandlerFunc
	ResumeBatch   http.HandlerFunc

	// Audit handlers, nil when audit persistence is not configured
	ListShopAuditLogs http.HandlerFunc

	// Auth middleware
	AuthMiddleware func(http.Handler) http.Handler
	AdminOnly      func(http.Handler) http.Handler
}

// HealthCheck reports whether a dependency can serve requests.
type HealthCheck func(ctx context.Context) error

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	CORSAllowedOrigins []string
	// PurchaseRateLimiter wraps the purchase route when set.
	PurchaseRateLimiter func(http.Handler) http.Handler
	// Checks are run by the readiness probe, keyed by component name.
	// A nil entry is reported as "not configured".
	Checks map[string]HealthCheck
}

func NewRouter(cfg RouterConfig, h HandlerSet) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.RequestID)
	r.Use(mw.SecurityHeaders)
	r.Use(mw.Logging)
	r.Use(mw.Recovery)
	r.Use(mw.Metrics)
	r.Use(mw.CORS(cfg.CORSAllowedOrigins))

	// Liveness probe, no dependency checks
	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		JSON(w, http.StatusOK, map[string]string{"status": "alive"})
	})

	readinessHandler := func(w http.ResponseWriter, r *http.Request) {
		health := map[string]string{"status": "healthy"}
		status := http.StatusOK

		for name, check := range cfg.Checks {
			switch {
			case check == nil:
				health[name] = "not configured"
			case check(r.Context()) != nil:
				health[name] = "unhealthy"
				health["status"] = "degraded"
				status = http.StatusServiceUnavailable
			default:
				health[name] = "healthy"
			}
		}

		JSON(w, status, health)
	}

	r.Get("/health/ready", readinessHandler)
	r.Get("/health", readinessHandler)

	// Prometheus metrics
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(h.AuthMiddleware)

		r.Get("/auth/me", h.Me)
		r.Post("/auth/logout", h.Logout)

		r.Route("/shops/{shopID}", func(r chi.Router) {
			r.Get("/", h.GetShop)
			r.Get("/quota", h.QuotaSnapshot)
			r.Get("/quota/transactions", h.QuotaTransactions)

			r.Group(func(r chi.Router) {
				if cfg.PurchaseRateLimiter != nil {
					r.Use(cfg.PurchaseRateLimiter)
				}
				r.Post("/purchases", h.Purchase)
			})

			r.Post("/broadcasts", h.ScheduleBroadcast)
			r.Get("/broadcasts", h.ListBroadcasts)
			r.Post("/posts", h.CreatePost)
		})

		r.Route("/broadcasts/{broadcastID}", func(r chi.Router) {
			r.Get("/", h.GetBroadcast)
			r.Patch("/", h.RescheduleBroadcast)
			r.Post("/cancel", h.CancelBroadcast)
			r.Post("/live", h.StartBroadcast)
			r.Post("/finish", h.FinishBroadcast)
			r.Post("/reports", h.ReportBroadcast)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(h.AdminOnly)

			r.Post("/shops", h.CreateShop)
			r.Route("/shops/{shopID}", func(r chi.Router) {
				r.Patch("/plan", h.ChangeShopPlan)
				r.Post("/quota/grants", h.GrantQuota)
				r.Post("/quota/migrate", h.MigrateWallet)
				r.Post("/agenda/suspend", h.SuspendAgenda)
				r.Post("/agenda/lift", h.LiftAgenda)
				if h.ListShopAuditLogs != nil {
					r.Get("/audit-logs", h.ListShopAuditLogs)
				}
			})
			r.Post("/broadcasts/{broadcastID}/ban", h.BanBroadcast)
			r.Get("/reschedule-batches/{batchID}", h.GetBatch)
			r.Post("/reschedule-batches/{batchID}/resume", h.ResumeBatch)
		})
	})

	return r
}
