// Command backfill-wallets creates quota wallets for shops that still carry
// only legacy quota counters. It is safe to run more than once.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/analianare-star/avellaneda-backend/internal/config"
	"github.com/analianare-star/avellaneda-backend/internal/database"
	"github.com/analianare-star/avellaneda-backend/internal/period"
	"github.com/analianare-star/avellaneda-backend/internal/quota"
	"github.com/analianare-star/avellaneda-backend/internal/store/postgres"
)

func main() {
	batchSize := flag.Int("batch-size", 100, "shops migrated per listing round")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loc, err := cfg.Quota.LoadLocation()
	if err != nil {
		slog.Error("loading time zone", "error", err)
		os.Exit(1)
	}

	pool, err := database.Connect(ctx, cfg.DB)
	if err != nil {
		slog.Error("connecting to postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	st := postgres.New(pool, cfg.Store.MaxTxRetries, slog.Default())
	svc := quota.NewService(st, quota.NewEngine(period.NewKeyer(loc)), nil)

	report, err := svc.Backfill(ctx, *batchSize)
	if report != nil {
		slog.Info("backfill finished",
			"created", report.Created,
			"skipped", report.Skipped,
			"failed", report.Failed,
		)
	}
	if err != nil {
		slog.Error("backfill aborted", "error", err)
		os.Exit(1)
	}
	if report.Failed > 0 {
		os.Exit(2)
	}
}
