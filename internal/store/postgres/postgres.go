// Package postgres implements store.Store on PostgreSQL.
//
// Every unit of work runs in a SERIALIZABLE transaction. Wallet rows are read
// with SELECT ... FOR UPDATE so concurrent reservations for the same shop queue
// behind one another, and serialization failures are retried with exponential
// backoff before surfacing as ECONFLICT.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/analianare-star/avellaneda-backend/internal/domain"
	"github.com/analianare-star/avellaneda-backend/internal/metrics"
	"github.com/analianare-star/avellaneda-backend/internal/store"
)

const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
)

// Store is a PostgreSQL-backed store.Store.
type Store struct {
	pool       *pgxpool.Pool
	maxRetries int
	logger     *slog.Logger
}

// New creates a Store. maxRetries bounds how many times a transaction is
// re-run after a serialization failure.
func New(pool *pgxpool.Pool, maxRetries int, logger *slog.Logger) *Store {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, maxRetries: maxRetries, logger: logger}
}

// InTx implements store.Store.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	attempt := func() error {
		err := s.run(ctx, fn)
		if err == nil || retryable(err) {
			return err
		}
		return backoff.Permanent(err)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 10 * time.Millisecond
	b.MaxInterval = 250 * time.Millisecond

	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(s.maxRetries)), ctx)
	err := backoff.RetryNotify(attempt, policy, func(err error, wait time.Duration) {
		metrics.StoreTxRetriesTotal.Inc()
		s.logger.Debug("retrying serializable transaction", "error", err, "wait", wait)
	})
	if err != nil && retryable(err) {
		return domain.Conflict(err, "store.tx", "the operation conflicted with a concurrent update, please retry")
	}
	return err
}

func (s *Store) run(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	pgtx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		//nolint:errcheck // Rollback after Commit is a no-op
		_ = pgtx.Rollback(ctx)
	}()

	if err := fn(ctx, &tx{tx: pgtx}); err != nil {
		return err
	}
	if err := pgtx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func retryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == codeSerializationFailure || pgErr.Code == codeDeadlockDetected
	}
	return false
}

// tx implements store.Tx over one pgx transaction.
type tx struct {
	tx pgx.Tx
}

var _ store.Tx = (*tx)(nil)

// where joins conditions built by the filter helpers.
type where struct {
	conds []string
	args  []any
}

func (w *where) add(format string, arg any) {
	w.args = append(w.args, arg)
	w.conds = append(w.conds, fmt.Sprintf(format, len(w.args)))
}

func (w *where) String() string {
	if len(w.conds) == 0 {
		return "TRUE"
	}
	return strings.Join(w.conds, " AND ")
}

// next returns the placeholder index for an argument appended after the conditions.
func (w *where) next() int {
	return len(w.args) + 1
}
