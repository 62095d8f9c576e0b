package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/procuremind/procuremind/pkg/logger"
)

// Store owns the pgx pool behind a session factory. Async sessions use the
// pool natively; sync sessions and migrations share it through database/sql.
type Store struct {
	pool *pgxpool.Pool
	stop func()
}

// NewStore opens a pool for cfg and pings it. Pool gauges are published
// under the pool's host-port-database label until Close.
func NewStore(ctx context.Context, cfg *Config) (*Store, error) {
	poolCfg, err := cfg.poolConfig()
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: new pool: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, orDefault(cfg.PingTimeout, defaultPingTimeout))
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	label := poolLabel(poolCfg)
	stop, err := observePool(label, pool)
	if err != nil {
		logger.FromContext(ctx).Warn("Postgres pool metrics disabled", "error", err)
		stop = func() {}
	}
	logger.FromContext(ctx).Info("Postgres pool ready",
		"pool", label,
		"max_conns", poolCfg.MaxConns,
		"min_conns", poolCfg.MinConns,
	)
	return &Store{pool: pool, stop: stop}, nil
}

// Close stops publishing metrics and closes the pool.
func (s *Store) Close(ctx context.Context) error {
	s.stop()
	s.pool.Close()
	logger.FromContext(ctx).Debug("Postgres pool closed")
	return nil
}

// Pool exposes the pgx pool backing native async sessions.
func (s *Store) Pool() *pgxpool.Pool { return s.pool }

// OpenDB returns a database/sql handle sharing the store's pool. Closing the
// handle does not close the pool.
func (s *Store) OpenDB() *sql.DB { return stdlib.OpenDBFromPool(s.pool) }

// MaxConns reports the configured pool size.
func (s *Store) MaxConns() int32 { return s.pool.Config().MaxConns }
