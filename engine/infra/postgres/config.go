package postgres

import (
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	defaultMaxConns          = 20
	defaultHealthCheckPeriod = 30 * time.Second
	defaultConnectTimeout    = 5 * time.Second
	defaultPingTimeout       = 3 * time.Second
)

// Config describes one pgx pool. DSN is a postgres:// URL as produced by
// the store's URL parser; the remaining fields fall back to package
// defaults when zero.
type Config struct {
	DSN            string
	MaxConns       int
	IdleConns      int
	MaxLifetime    time.Duration
	MaxIdleTime    time.Duration
	ConnectTimeout time.Duration
	PingTimeout    time.Duration
}

// poolConfig parses the DSN and applies the pool bounds and timeouts.
func (c *Config) poolConfig() (*pgxpool.Config, error) {
	if c == nil || c.DSN == "" {
		return nil, errors.New("postgres: dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(c.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse config: %w", err)
	}
	poolCfg.MaxConns, poolCfg.MinConns = c.bounds()
	poolCfg.HealthCheckPeriod = defaultHealthCheckPeriod
	poolCfg.ConnConfig.ConnectTimeout = orDefault(c.ConnectTimeout, defaultConnectTimeout)
	if c.MaxLifetime > 0 {
		poolCfg.MaxConnLifetime = c.MaxLifetime
	}
	if c.MaxIdleTime > 0 {
		poolCfg.MaxConnIdleTime = c.MaxIdleTime
	}
	return poolCfg, nil
}

// bounds returns the pool's max and min connections. Idle connections are
// kept warm as the pool minimum and never exceed the maximum.
func (c *Config) bounds() (maxConns, minConns int32) {
	limit := defaultMaxConns
	if c.MaxConns > 0 {
		limit = min(c.MaxConns, 1<<31-1)
	}
	idle := min(max(c.IdleConns, 0), limit)
	return int32(limit), int32(idle)
}

func orDefault(d, def time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return def
}
