package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kevin07696/royalty-service/pkg/resilience"
	"go.uber.org/zap"
)

const (
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"

	defaultTxAttempts = 5
)

// DBExecutor implements the DBPort interface for PostgreSQL.
//
// Write transactions run SERIALIZABLE and are retried from the start when
// PostgreSQL aborts them for a serialization conflict, so fn must not have
// effects outside the transaction. Read-only transactions run REPEATABLE READ
// so every query inside sees one snapshot.
type DBExecutor struct {
	pool     *pgxpool.Pool
	backoff  resilience.BackoffStrategy
	timeouts *resilience.TimeoutConfig
	logger   *zap.Logger
	attempts int
}

// NewDBExecutor creates a new PostgreSQL database executor
func NewDBExecutor(pool *pgxpool.Pool, logger *zap.Logger) *DBExecutor {
	return &DBExecutor{
		pool:     pool,
		backoff:  resilience.SerializationBackoff(),
		timeouts: resilience.DefaultTimeoutConfig(),
		logger:   logger.Named("db"),
		attempts: defaultTxAttempts,
	}
}

// GetDB returns the underlying database connection pool
func (db *DBExecutor) GetDB() *pgxpool.Pool {
	return db.pool
}

// WithTransaction executes fn in a serializable transaction. All attempts
// share one transaction deadline.
func (db *DBExecutor) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	ctx, cancel := db.timeouts.TransactionContext(ctx)
	defer cancel()

	attempt := 0
	return resilience.Retry(ctx, db.attempts, db.backoff, isRetryable, func() error {
		attempt++
		err := db.run(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable}, fn)
		if err != nil && isRetryable(err) {
			db.logger.Debug("transaction conflict, retrying",
				zap.Int("attempt", attempt),
				zap.Error(err))
		}
		return err
	})
}

// WithReadOnlyTransaction executes fn within a read-only snapshot
func (db *DBExecutor) WithReadOnlyTransaction(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	ctx, cancel := db.timeouts.TransactionContext(ctx)
	defer cancel()

	return db.run(ctx, pgx.TxOptions{
		IsoLevel:   pgx.RepeatableRead,
		AccessMode: pgx.ReadOnly,
	}, fn)
}

func (db *DBExecutor) run(ctx context.Context, opts pgx.TxOptions, fn func(ctx context.Context, tx pgx.Tx) error) error {
	tx, err := db.pool.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
	}()

	if err := fn(ctx, tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("rollback failed: %v (original error: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// isRetryable reports errors after which the whole transaction can be run again
func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == sqlStateSerializationFailure || pgErr.Code == sqlStateDeadlockDetected
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
