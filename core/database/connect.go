package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/m3rciful/coursebot/core/logger"
)

const driverName = "postgres"

// ConnectTimeout bounds Connect, including the wait for postgres to accept
// connections.
const ConnectTimeout = 30 * time.Second

// retryEvery spaces pings while postgres is starting.
var retryEvery = 2 * time.Second

type pinger interface {
	PingContext(ctx context.Context) error
}

// Connect opens the pool and waits up to ConnectTimeout for postgres.
func Connect(cfg Config) (*sqlx.DB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), ConnectTimeout)
	defer cancel()
	return ConnectContext(ctx, cfg)
}

// ConnectContext opens the pool and pings it until postgres answers or ctx
// ends.
func ConnectContext(ctx context.Context, cfg Config) (*sqlx.DB, error) {
	db, err := sqlx.Open(driverName, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("database: open: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(max(cfg.MaxConnections/2, 1))
	db.SetConnMaxIdleTime(5 * time.Minute)

	start := time.Now()
	attempts, err := waitReady(ctx, db)
	attrs := []slog.Attr{
		slog.String("host", cfg.Host),
		slog.String("db", cfg.Name),
		slog.Int("attempts", attempts),
		slog.Duration("duration", logger.RoundMS(time.Since(start))),
	}
	if err != nil {
		_ = db.Close()
		logger.Error(ctx, logger.ComponentDB, "db.connect",
			append(attrs, slog.String("status", "fail"), slog.String("err", err.Error()))...,
		)
		return nil, fmt.Errorf("database: connect %s/%s: %w", cfg.Host, cfg.Name, err)
	}
	logger.Info(ctx, logger.ComponentDB, "db.connect",
		append(attrs, slog.String("status", "ok"), slog.Int("pool_open", cfg.MaxConnections))...,
	)
	return db, nil
}

// waitReady pings p until it succeeds or ctx ends and returns the number of
// attempts made.
func waitReady(ctx context.Context, p pinger) (int, error) {
	for attempt := 1; ; attempt++ {
		err := p.PingContext(ctx)
		if err == nil {
			return attempt, nil
		}
		t := time.NewTimer(retryEvery)
		select {
		case <-ctx.Done():
			t.Stop()
			return attempt, fmt.Errorf("%w (last ping: %v)", ctx.Err(), err)
		case <-t.C:
		}
	}
}
