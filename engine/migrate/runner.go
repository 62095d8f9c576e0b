package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/pressly/goose/v3"
	"github.com/procuremind/procuremind/engine/infra/postgres"
	"github.com/procuremind/procuremind/engine/infra/store"
	"github.com/procuremind/procuremind/engine/schema"
	"github.com/procuremind/procuremind/pkg/config"
	"github.com/procuremind/procuremind/pkg/logger"

	// Register the pgx stdlib driver for synchronous runs.
	_ "github.com/jackc/pgx/v5/stdlib"
)

const lockName = "migrations"

// ErrOffline is returned by operations that need a live connection when the
// runner was created for offline rendering.
var ErrOffline = errors.New("migrate: operation requires an online runner")

// Options configures a Runner.
type Options struct {
	// Offline resolves the dialect only and never connects.
	Offline bool
	// Async connects through a pgx pool instead of a plain database/sql
	// handle. It has no effect on SQLite.
	Async bool
	// ConfigFile is the YAML file carrying migrate.url.
	ConfigFile string
	// ConfigURL is migrate.url from the application config. It is consulted
	// when ConfigFile has none.
	ConfigURL string
	// Lock serializes concurrent Postgres runners with an advisory lock.
	Lock        bool
	LockTimeout time.Duration
	Pool        store.PoolOptions

	// URLStrategies overrides the default resolution order.
	URLStrategies []store.Strategy[string]
	// MetadataStrategies overrides the default metadata chain.
	MetadataStrategies []store.Strategy[*schema.Registry]
	// Migrations overrides the built-in history.
	Migrations []Migration
}

// OptionsFromConfig maps the application configuration onto runner options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Async:       cfg.Database.Mode == "async",
		ConfigFile:  cfg.Migrate.ConfigFile,
		ConfigURL:   cfg.Migrate.URL.Value(),
		Lock:        cfg.Migrate.Lock,
		LockTimeout: cfg.Migrate.Timeout,
		Pool:        store.PoolOptionsFromConfig(cfg.Database),
	}
}

// Result describes one applied or reverted migration.
type Result struct {
	Version  int64
	Name     string
	Duration time.Duration
}

// Status describes the state of one migration in the database.
type Status struct {
	Version   int64
	Name      string
	Applied   bool
	AppliedAt time.Time
}

// Runner runs migrations against one resolved database.
type Runner struct {
	opts       Options
	target     store.Target
	metadata   *schema.Registry
	migrations []Migration
}

// New resolves the database URL and the target metadata. Failing to resolve
// a URL is fatal and yields ErrNoDatabaseURL.
func New(ctx context.Context, opts Options) (*Runner, error) {
	strategies := opts.URLStrategies
	if len(strategies) == 0 {
		strategies = URLStrategies(opts.Offline, opts.ConfigFile, opts.ConfigURL)
	}
	target, err := resolveTarget(ctx, strategies)
	if err != nil {
		return nil, err
	}
	metaStrategies := opts.MetadataStrategies
	if len(metaStrategies) == 0 {
		metaStrategies = MetadataStrategies()
	}
	migrations := opts.Migrations
	if len(migrations) == 0 {
		migrations = Migrations()
	}
	return &Runner{
		opts:       opts,
		target:     target,
		metadata:   ResolveMetadata(ctx, metaStrategies...),
		migrations: migrations,
	}, nil
}

// Target reports the resolved database.
func (r *Runner) Target() store.Target { return r.target }

// Metadata returns the target metadata, or nil when none resolved.
func (r *Runner) Metadata() *schema.Registry { return r.metadata }

func (r *Runner) name(version int64) string {
	for _, m := range r.migrations {
		if m.Version == version {
			return m.Name
		}
	}
	return ""
}

// Up applies every pending migration, each in its own transaction.
func (r *Runner) Up(ctx context.Context) ([]Result, error) {
	var results []Result
	err := r.withProvider(ctx, func(ctx context.Context, p *goose.Provider) error {
		applied, err := p.Up(ctx)
		for _, res := range applied {
			if res.Error != nil {
				continue
			}
			results = append(results, r.result(res))
		}
		if err != nil {
			return fmt.Errorf("migrate up: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	log := logger.FromContext(ctx)
	for _, res := range results {
		log.Info("Migration applied", "version", res.Version, "name", res.Name, "duration", res.Duration)
	}
	if len(results) == 0 {
		log.Info("Database is up to date")
	}
	return results, nil
}

// Down reverts the most recently applied migration. It returns nil when no
// migration is applied.
func (r *Runner) Down(ctx context.Context) (*Result, error) {
	var result *Result
	err := r.withProvider(ctx, func(ctx context.Context, p *goose.Provider) error {
		res, err := p.Down(ctx)
		if errors.Is(err, goose.ErrNoNextVersion) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("migrate down: %w", err)
		}
		if res != nil {
			out := r.result(res)
			result = &out
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if result != nil {
		logger.FromContext(ctx).Info("Migration reverted", "version", result.Version, "name", result.Name)
	}
	return result, nil
}

// Status reports every known migration and whether it is applied.
func (r *Runner) Status(ctx context.Context) ([]Status, error) {
	var out []Status
	err := r.withProvider(ctx, func(ctx context.Context, p *goose.Provider) error {
		statuses, err := p.Status(ctx)
		if err != nil {
			return fmt.Errorf("migrate status: %w", err)
		}
		out = make([]Status, 0, len(statuses))
		for _, s := range statuses {
			out = append(out, Status{
				Version:   s.Source.Version,
				Name:      r.name(s.Source.Version),
				Applied:   s.State == goose.StateApplied,
				AppliedAt: s.AppliedAt,
			})
		}
		return nil
	})
	return out, err
}

func (r *Runner) result(res *goose.MigrationResult) Result {
	return Result{Version: res.Source.Version, Name: r.name(res.Source.Version), Duration: res.Duration}
}

func (r *Runner) withProvider(ctx context.Context, fn func(context.Context, *goose.Provider) error) error {
	dialect, err := gooseDialect(r.target.Dialect())
	if err != nil {
		return err
	}
	migrations, err := gooseMigrations(r.migrations, r.target.Dialect())
	if err != nil {
		return err
	}
	return r.withDB(ctx, func(ctx context.Context, db *sql.DB) error {
		p, err := goose.NewProvider(
			dialect,
			db,
			nil,
			goose.WithGoMigrations(migrations...),
			goose.WithDisableGlobalRegistry(true),
		)
		if err != nil {
			return fmt.Errorf("migrate: create provider: %w", err)
		}
		return fn(ctx, p)
	})
}

// withDB connects to the target and runs fn, holding the advisory lock for
// Postgres runs that ask for it.
func (r *Runner) withDB(ctx context.Context, fn func(context.Context, *sql.DB) error) error {
	if r.opts.Offline {
		return ErrOffline
	}
	db, closeFn, err := r.connect(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeFn(context.WithoutCancel(ctx)); err != nil {
			logger.FromContext(ctx).Warn("Failed to close migration connection", "error", err)
		}
	}()
	if r.opts.Lock && r.target.Driver == store.DriverPostgres {
		return postgres.WithAdvisoryLock(ctx, db, lockName, r.opts.LockTimeout, func() error {
			return fn(ctx, db)
		})
	}
	return fn(ctx, db)
}

// connect opens a plain database/sql handle for synchronous Postgres runs and
// a pool-backed one otherwise.
func (r *Runner) connect(ctx context.Context) (*sql.DB, func(context.Context) error, error) {
	if r.target.Driver == store.DriverPostgres && !r.opts.Async {
		db, err := sql.Open("pgx", r.target.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("migrate: open database: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("migrate: ping database: %w", err)
		}
		return db, func(context.Context) error { return db.Close() }, nil
	}
	db, closeFn, err := store.OpenSQL(ctx, r.target, r.opts.Pool)
	if err != nil {
		return nil, nil, fmt.Errorf("migrate: open database: %w", err)
	}
	return db, closeFn, nil
}
