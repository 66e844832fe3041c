package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/sirupsen/logrus"
)

const (
	connMaxLifetime = 5 * time.Minute
	connMaxIdleTime = 1 * time.Minute
	pingTimeout     = 10 * time.Second
)

// PoolOptions sizes the connection pool and the startup connect loop.
type PoolOptions struct {
	MaxOpenConns    int
	ConnectAttempts int
	RetryDelay      time.Duration
}

// PoolForBatch sizes the pool so every job of a batch can record usage while the
// pipeline keeps a connection for its own reads.
func PoolForBatch(batchSize int) PoolOptions {
	conns := batchSize + 2
	if conns < 5 {
		conns = 5
	}
	return PoolOptions{MaxOpenConns: conns, ConnectAttempts: 5, RetryDelay: 2 * time.Second}
}

// NewPostgresConnection opens the database and pings it, retrying while the server comes up.
func NewPostgresConnection(ctx context.Context, dataSourceName string, opts PoolOptions, logger *logrus.Entry) (*sql.DB, error) {
	db, err := sql.Open("postgres", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(opts.MaxOpenConns)
	db.SetMaxIdleConns(opts.MaxOpenConns)
	db.SetConnMaxLifetime(connMaxLifetime)
	db.SetConnMaxIdleTime(connMaxIdleTime)

	attempts := opts.ConnectAttempts
	if attempts < 1 {
		attempts = 1
	}
	for attempt := 1; ; attempt++ {
		if err = ping(ctx, db); err == nil {
			return db, nil
		}
		if attempt >= attempts {
			break
		}
		logger.WithError(err).WithField("attempt", attempt).Warn("Database not reachable yet, retrying")
		select {
		case <-ctx.Done():
			db.Close()
			return nil, fmt.Errorf("failed to ping database: %w", ctx.Err())
		case <-time.After(opts.RetryDelay):
		}
	}

	db.Close() // Close the connection if ping fails
	return nil, fmt.Errorf("failed to ping database after %d attempts: %w", attempts, err)
}

func ping(ctx context.Context, db *sql.DB) error {
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return db.PingContext(pingCtx)
}
