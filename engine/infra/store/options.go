package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/procuremind/procuremind/engine/infra/postgres"
	"github.com/procuremind/procuremind/engine/infra/sqlite"
	"github.com/procuremind/procuremind/pkg/config"
)

// PoolOptions tunes the connection pool of either backend.
type PoolOptions struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	ConnectTimeout  time.Duration
	PingTimeout     time.Duration
	BusyTimeout     time.Duration
}

// Options configures a session factory.
type Options struct {
	// Strategies resolve the connection URL in order. When empty the factory
	// uses the environment followed by its local fallback.
	Strategies []Strategy[string]
	Pool       PoolOptions
}

// PoolOptionsFromConfig maps the database configuration onto pool options.
func PoolOptionsFromConfig(cfg config.DatabaseConfig) PoolOptions {
	return PoolOptions{
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
		ConnectTimeout:  cfg.ConnectTimeout,
		PingTimeout:     cfg.PingTimeout,
		BusyTimeout:     cfg.BusyTimeout,
	}
}

// DefaultSyncStrategies is the synchronous factory's resolution chain.
func DefaultSyncStrategies() []Strategy[string] {
	return []Strategy[string]{EnvStrategy(), FallbackStrategy(config.DefaultFallbackURL)}
}

// DefaultAsyncStrategies is the asynchronous factory's resolution chain.
func DefaultAsyncStrategies() []Strategy[string] {
	return []Strategy[string]{EnvStrategy(), FallbackStrategy(config.DefaultAsyncFallbackURL)}
}

func (p PoolOptions) sqliteConfig(path string) *sqlite.Config {
	return &sqlite.Config{
		Path:            path,
		MaxOpenConns:    p.MaxOpenConns,
		MaxIdleConns:    p.MaxIdleConns,
		ConnMaxLifetime: p.ConnMaxLifetime,
		ConnMaxIdleTime: p.ConnMaxIdleTime,
		BusyTimeout:     p.BusyTimeout,
	}
}

func (p PoolOptions) postgresConfig(dsn string) *postgres.Config {
	return &postgres.Config{
		DSN:            dsn,
		MaxConns:       p.MaxOpenConns,
		IdleConns:      p.MaxIdleConns,
		MaxLifetime:    p.ConnMaxLifetime,
		MaxIdleTime:    p.ConnMaxIdleTime,
		ConnectTimeout: p.ConnectTimeout,
		PingTimeout:    p.PingTimeout,
	}
}

// openSQL opens a database/sql handle for target. For Postgres the handle
// shares a pgx pool, which is returned so the caller can close it.
func openSQL(ctx context.Context, target Target, pool PoolOptions) (*sql.DB, *postgres.Store, error) {
	switch target.Driver {
	case DriverSQLite:
		db, err := sqlite.Open(ctx, pool.sqliteConfig(target.DSN))
		if err != nil {
			return nil, nil, err
		}
		return db, nil, nil
	case DriverPostgres:
		pg, err := postgres.NewStore(ctx, pool.postgresConfig(target.DSN))
		if err != nil {
			return nil, nil, err
		}
		return pg.OpenDB(), pg, nil
	default:
		return nil, nil, fmt.Errorf("%w: driver %q", ErrUnsupportedURL, target.Driver)
	}
}

// OpenSQL opens a database/sql handle for target outside of any factory. For
// Postgres the handle is backed by a pgx pool. The returned close function
// releases both.
func OpenSQL(ctx context.Context, target Target, pool PoolOptions) (*sql.DB, func(context.Context) error, error) {
	db, pg, err := openSQL(ctx, target, pool)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func(ctx context.Context) error {
		err := db.Close()
		if pg != nil {
			err = errors.Join(err, pg.Close(ctx))
		}
		return err
	}
	return db, closeFn, nil
}
