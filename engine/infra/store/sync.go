package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/procuremind/procuremind/engine/infra/postgres"
	"github.com/procuremind/procuremind/engine/schema"
	"github.com/procuremind/procuremind/pkg/logger"
)

// SyncFactory hands out transactional sessions that run on the caller's
// goroutine over a database/sql pool.
type SyncFactory struct {
	db     *sql.DB
	pg     *postgres.Store
	target Target
}

// NewSyncFactory resolves the connection, opens the pool and verifies it.
// Without explicit strategies it uses DATABASE_URL, then sqlite:///./dev.db.
func NewSyncFactory(ctx context.Context, opts Options) (*SyncFactory, error) {
	strategies := opts.Strategies
	if len(strategies) == 0 {
		strategies = DefaultSyncStrategies()
	}
	target, err := ResolveConnection(ctx, strategies...)
	if err != nil {
		return nil, err
	}
	db, pg, err := openSQL(ctx, target, opts.Pool)
	if err != nil {
		return nil, fmt.Errorf("store: open %s database: %w", target.Driver, err)
	}
	return &SyncFactory{db: db, pg: pg, target: target}, nil
}

// Target reports the resolved connection.
func (f *SyncFactory) Target() Target { return f.target }

// DB exposes the database/sql handle.
func (f *SyncFactory) DB() *sql.DB { return f.db }

// WithSession runs fn inside a transaction on the caller's goroutine. The
// transaction commits when fn returns nil and rolls back otherwise; the
// connection goes back to the pool in every case.
func (f *SyncFactory) WithSession(ctx context.Context, fn SessionFunc) error {
	return runScoped(ctx, beginSQL(f.db, f.target.Dialect()), fn)
}

// InitSchema creates every table of r that does not exist yet.
func (f *SyncFactory) InitSchema(ctx context.Context, r *schema.Registry) error {
	return initSchema(ctx, f.WithSession, r)
}

// Close releases the pool.
func (f *SyncFactory) Close(ctx context.Context) error {
	err := f.db.Close()
	if f.pg != nil {
		err = errors.Join(err, f.pg.Close(ctx))
	}
	return err
}

func initSchema(
	ctx context.Context,
	withSession func(context.Context, SessionFunc) error,
	r *schema.Registry,
) error {
	if r == nil {
		return errors.New("store: schema registry is required")
	}
	err := withSession(ctx, func(ctx context.Context, s Session) error {
		return schema.CreateAll(ctx, s, r, s.Dialect())
	})
	if err != nil {
		return fmt.Errorf("store: initialize schema: %w", err)
	}
	logger.FromContext(ctx).Debug("Schema initialized", "tables", len(r.TableNames()))
	return nil
}
