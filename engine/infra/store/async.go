package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/procuremind/procuremind/engine/infra/postgres"
	"github.com/procuremind/procuremind/engine/schema"
	"golang.org/x/sync/semaphore"
)

// Pending is the future of a session scope started with AsyncFactory.Go.
type Pending struct {
	done     chan struct{}
	err      error
	panicked bool
	panicVal any
}

// Done is closed once the scope has committed or rolled back.
func (p *Pending) Done() <-chan struct{} { return p.done }

// Wait blocks until the scope has fully finished and returns its outcome.
// A panic raised inside the scope is re-raised on the waiting goroutine
// after the rollback.
func (p *Pending) Wait() error {
	<-p.done
	if p.panicked {
		panic(p.panicVal)
	}
	return p.err
}

func resolvedPending(err error) *Pending {
	p := &Pending{done: make(chan struct{}), err: err}
	close(p.done)
	return p
}

// AsyncFactory runs each session scope on its own goroutine. Concurrency is
// bounded by a weighted semaphore sized to the pool, so a scope waits for a
// slot instead of piling up on the pool.
type AsyncFactory struct {
	begin   func(context.Context) (transaction, error)
	sem     *semaphore.Weighted
	target  Target
	closers []func(context.Context) error
	mu      sync.RWMutex
	running sync.WaitGroup
	closed  bool
}

// NewAsyncFactory resolves the connection and opens a backend for it.
// Postgres URLs get a native pgx pool; SQLite URLs a database/sql pool.
// Without explicit strategies it uses DATABASE_URL, then
// sqlite:///./dev_async.db.
func NewAsyncFactory(ctx context.Context, opts Options) (*AsyncFactory, error) {
	strategies := opts.Strategies
	if len(strategies) == 0 {
		strategies = DefaultAsyncStrategies()
	}
	target, err := ResolveConnection(ctx, strategies...)
	if err != nil {
		return nil, err
	}
	switch target.Driver {
	case DriverPostgres:
		pg, err := postgres.NewStore(ctx, opts.Pool.postgresConfig(target.DSN))
		if err != nil {
			return nil, fmt.Errorf("store: open postgres database: %w", err)
		}
		f := newAsyncFactory(beginPgx(pg.Pool()), int64(pg.MaxConns()), target)
		f.closers = append(f.closers, pg.Close)
		return f, nil
	default:
		db, _, err := openSQL(ctx, target, opts.Pool)
		if err != nil {
			return nil, fmt.Errorf("store: open %s database: %w", target.Driver, err)
		}
		f := newAsyncFactory(beginSQL(db, target.Dialect()), 1, target)
		f.closers = append(f.closers, func(context.Context) error { return db.Close() })
		return f, nil
	}
}

// NewAsyncFactoryFromPool builds a Postgres factory over an existing pool.
// The caller keeps ownership of the pool. maxConcurrent bounds in-flight
// scopes; values below one mean one.
func NewAsyncFactoryFromPool(pool TxBeginner, maxConcurrent int64) *AsyncFactory {
	return newAsyncFactory(beginPgx(pool), maxConcurrent, Target{Driver: DriverPostgres, Source: "pool"})
}

func newAsyncFactory(begin func(context.Context) (transaction, error), size int64, target Target) *AsyncFactory {
	if size < 1 {
		size = 1
	}
	return &AsyncFactory{begin: begin, sem: semaphore.NewWeighted(size), target: target}
}

// Target reports the resolved connection.
func (f *AsyncFactory) Target() Target { return f.target }

// Go starts fn in its own transaction on a new goroutine and returns at
// once. The transaction commits when fn returns nil and rolls back on error,
// panic or cancellation of ctx.
func (f *AsyncFactory) Go(ctx context.Context, fn SessionFunc) *Pending {
	f.mu.RLock()
	if f.closed {
		f.mu.RUnlock()
		return resolvedPending(ErrFactoryClosed)
	}
	f.running.Add(1)
	f.mu.RUnlock()
	p := &Pending{done: make(chan struct{})}
	go func() {
		defer f.running.Done()
		defer close(p.done)
		defer func() {
			if r := recover(); r != nil {
				p.panicked = true
				p.panicVal = r
			}
		}()
		if err := f.sem.Acquire(ctx, 1); err != nil {
			p.err = err
			return
		}
		defer f.sem.Release(1)
		p.err = runScoped(ctx, f.begin, fn)
	}()
	return p
}

// WithSession runs fn like Go and waits for the outcome.
func (f *AsyncFactory) WithSession(ctx context.Context, fn SessionFunc) error {
	return f.Go(ctx, fn).Wait()
}

// InitSchema creates every table of r that does not exist yet.
func (f *AsyncFactory) InitSchema(ctx context.Context, r *schema.Registry) error {
	return initSchema(ctx, f.WithSession, r)
}

// Close stops accepting scopes, waits for running ones and releases the
// backend. If ctx ends first the backend is still released.
func (f *AsyncFactory) Close(ctx context.Context) error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	f.mu.Unlock()
	drained := make(chan struct{})
	go func() {
		f.running.Wait()
		close(drained)
	}()
	var err error
	select {
	case <-drained:
	case <-ctx.Done():
		err = fmt.Errorf("store: waiting for running sessions: %w", ctx.Err())
	}
	for _, closeFn := range f.closers {
		err = errors.Join(err, closeFn(ctx))
	}
	return err
}
