package persistence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"git.taler.net/nexus/internal/config"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Querier supports database operations for both pool and transactions
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// Ensure interfaces are satisfied (compile-time check)
var _ Querier = (*pgxpool.Pool)(nil)
var _ Querier = (pgx.Tx)(nil)

type PostgresDB struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewPostgresDB(ctx context.Context, logger *slog.Logger, cfg *config.PostgresConfig) (*PostgresDB, error) {
	err := RunMigrations(logger, cfg.URL, cfg.MigrationsPath)
	if err != nil {
		return nil, err
	}
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse PostgreSQL connection string: %w", err)
	}

	poolConfig.MaxConns = cfg.MaxConns
	poolConfig.MinConns = cfg.MinConns
	poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
	poolConfig.MaxConnIdleTime = cfg.ConnMaxIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create PostgreSQL connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	logger.Info("Connected to PostgreSQL")

	return &PostgresDB{
		pool:   pool,
		logger: logger,
	}, nil
}

func (db *PostgresDB) Pool() *pgxpool.Pool {
	return db.pool
}

func (db *PostgresDB) Close() {
	db.pool.Close()
	db.logger.Info("Closed PostgreSQL connection")
}

// WaitForNotification implements the database-native notify half of the
// long-polling design spec.md §9 calls for on GET /transactions: it
// LISTENs on channel from a connection dedicated to this call (never the
// shared pool, since LISTEN state is per-connection) and blocks until
// either a NOTIFY arrives or timeout elapses. The bool return
// distinguishes "poll window elapsed with nothing new" (false, nil error)
// from a connection-level failure. channel must already be a safe SQL
// identifier; LISTEN does not accept a parameterized channel name.
func (db *PostgresDB) WaitForNotification(ctx context.Context, channel string, timeout time.Duration) (string, bool, error) {
	conn, err := db.pool.Acquire(ctx)
	if err != nil {
		return "", false, fmt.Errorf("acquire connection for LISTEN %s: %w", channel, err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+channel); err != nil {
		return "", false, fmt.Errorf("LISTEN %s: %w", channel, err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	notification, err := conn.Conn().WaitForNotification(waitCtx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("wait for notification on %s: %w", channel, err)
	}
	return notification.Payload, true, nil
}

// ExecuteTx runs function in a transaction, rolling back on error or panic
func (db *PostgresDB) ExecuteTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback(ctx) // Attempt rollback on panic
			panic(r)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("tx err: %v, rb err: %v", err, rbErr)
		}
		return err
	}

	return tx.Commit(ctx)
}
