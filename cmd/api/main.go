package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/analianare-star/avellaneda-backend/internal/agenda"
	"github.com/analianare-star/avellaneda-backend/internal/api"
	"github.com/analianare-star/avellaneda-backend/internal/audit"
	"github.com/analianare-star/avellaneda-backend/internal/auth"
	"github.com/analianare-star/avellaneda-backend/internal/broadcasts"
	"github.com/analianare-star/avellaneda-backend/internal/config"
	"github.com/analianare-star/avellaneda-backend/internal/database"
	mw "github.com/analianare-star/avellaneda-backend/internal/middleware"
	inats "github.com/analianare-star/avellaneda-backend/internal/nats"
	"github.com/analianare-star/avellaneda-backend/internal/period"
	"github.com/analianare-star/avellaneda-backend/internal/posts"
	"github.com/analianare-star/avellaneda-backend/internal/quota"
	iredis "github.com/analianare-star/avellaneda-backend/internal/redis"
	"github.com/analianare-star/avellaneda-backend/internal/server"
	"github.com/analianare-star/avellaneda-backend/internal/shops"
	"github.com/analianare-star/avellaneda-backend/internal/store"
	"github.com/analianare-star/avellaneda-backend/internal/store/memory"
	"github.com/analianare-star/avellaneda-backend/internal/store/postgres"
)

var errNATSDisconnected = errors.New("nats disconnected")

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}

	setupLogger(cfg.Log)

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("api stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	loc, err := cfg.Quota.LoadLocation()
	if err != nil {
		return err
	}
	keyer := period.NewKeyer(loc)
	logger := slog.Default()

	// Store
	var (
		st   store.Store
		pool *pgxpool.Pool
	)
	switch cfg.Store.Driver {
	case config.StoreDriverMemory:
		st = memory.New()
		slog.Warn("using in-memory store")
	default:
		pool, err = database.Connect(ctx, cfg.DB)
		if err != nil {
			return err
		}
		defer pool.Close()
		st = postgres.New(pool, cfg.Store.MaxTxRetries, logger)
	}

	// Redis
	redisClient, err := iredis.NewClient(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	// NATS (optional)
	var (
		natsClient *inats.Client
		publisher  inats.EventPublisher = inats.NoopPublisher{}
	)
	if cfg.NATS.URL != "" {
		natsClient, err = inats.NewClient(ctx, cfg.NATS)
		if err != nil {
			return err
		}
		defer natsClient.Close()
		publisher = inats.NewPublisher(natsClient.JetStream())
	}

	// Auth
	authSvc := auth.NewService(auth.NewJWTManager(cfg.JWT.Secret, cfg.JWT.Expiry), redisClient)
	authHandler := auth.NewHandler(authSvc)

	// Quota
	engine := quota.NewEngine(keyer, quota.WithLogger(logger))
	quotaHandler := quota.NewHandler(quota.NewService(st, engine, publisher))

	// Domain services
	shopHandler := shops.NewHandler(shops.NewService(st, engine, publisher, shops.WithLogger(logger)))
	postHandler := posts.NewHandler(posts.NewService(st, engine, publisher, posts.WithLogger(logger)))
	agendaSvc := agenda.NewService(st, keyer, publisher, agenda.Config{
		DefaultDays: cfg.Agenda.DefaultSuspensionDays,
		Duration:    cfg.Quota.BroadcastDuration,
	}, agenda.WithLogger(logger))
	agendaHandler := agenda.NewHandler(agendaSvc)
	broadcastHandler := broadcasts.NewHandler(broadcasts.NewService(st, engine, publisher, broadcasts.Config{
		WeeklyCap: cfg.Quota.WeeklyBroadcastCap,
		Duration:  cfg.Quota.BroadcastDuration,
	}, broadcasts.WithLogger(logger), broadcasts.WithSuspender(agendaSvc)))

	handlers := api.HandlerSet{
		Me:     authHandler.Me,
		Logout: authHandler.Logout,

		CreateShop:     shopHandler.Create,
		GetShop:        shopHandler.Get,
		ChangeShopPlan: shopHandler.ChangePlan,
		Purchase:       shopHandler.Purchase,

		QuotaSnapshot:     quotaHandler.Snapshot,
		QuotaTransactions: quotaHandler.Transactions,
		GrantQuota:        quotaHandler.Grant,
		MigrateWallet:     quotaHandler.Migrate,

		ScheduleBroadcast:   broadcastHandler.Create,
		ListBroadcasts:      broadcastHandler.List,
		GetBroadcast:        broadcastHandler.Get,
		RescheduleBroadcast: broadcastHandler.Update,
		CancelBroadcast:     broadcastHandler.Cancel,
		StartBroadcast:      broadcastHandler.GoLive,
		FinishBroadcast:     broadcastHandler.Finish,
		ReportBroadcast:     broadcastHandler.Report,
		BanBroadcast:        broadcastHandler.Ban,

		CreatePost: postHandler.Create,

		SuspendAgenda: agendaHandler.Suspend,
		LiftAgenda:    agendaHandler.Lift,
		GetBatch:      agendaHandler.GetBatch,
		ResumeBatch:   agendaHandler.Resume,

		AuthMiddleware: auth.Middleware(authSvc),
		AdminOnly:      auth.RequireAdmin,
	}

	g, ctx := errgroup.WithContext(ctx)

	// Audit trail: persisted from JetStream when both Postgres and NATS are available.
	if pool != nil {
		auditRepo := audit.NewRepository(pool)
		handlers.ListShopAuditLogs = audit.NewHandler(auditRepo).ListByShop
		if natsClient != nil {
			consumer := audit.NewConsumer(auditRepo, inats.NewConsumerManager(natsClient.JetStream()))
			g.Go(func() error { return consumer.Start(ctx) })
		}
	}

	checks := map[string]api.HealthCheck{
		"redis": func(ctx context.Context) error { return iredis.HealthCheck(ctx, redisClient) },
	}
	routerCfg := api.RouterConfig{
		CORSAllowedOrigins: cfg.CORS.AllowedOrigins,
		Checks:             checks,
	}
	if cfg.RateLimit.Enabled {
		limiter := mw.NewRateLimiter(redisClient, "purchases", cfg.RateLimit.Requests, cfg.RateLimit.WindowSec)
		routerCfg.PurchaseRateLimiter = limiter.Middleware
	}
	if pool != nil {
		routerCfg.Checks["database"] = func(ctx context.Context) error { return database.HealthCheck(ctx, pool) }
	} else {
		routerCfg.Checks["database"] = nil
	}
	if natsClient != nil {
		routerCfg.Checks["nats"] = func(context.Context) error {
			if !natsClient.Healthy() {
				return errNATSDisconnected
			}
			return nil
		}
	} else {
		routerCfg.Checks["nats"] = nil
	}

	srv := server.New(cfg.Server, api.NewRouter(routerCfg, handlers))
	g.Go(func() error { return srv.Run(ctx) })

	return g.Wait()
}

func setupLogger(cfg config.LogConfig) {
	var handler slog.Handler

	opts := &slog.HandlerOptions{}
	switch cfg.Level {
	case "debug":
		opts.Level = slog.LevelDebug
	case "info":
		opts.Level = slog.LevelInfo
	case "warn":
		opts.Level = slog.LevelWarn
	case "error":
		opts.Level = slog.LevelError
	default:
		opts.Level = slog.LevelInfo
	}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
