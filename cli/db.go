package cli

import (
	"context"
	"fmt"

	"github.com/procuremind/procuremind/engine/infra/store"
	"github.com/procuremind/procuremind/engine/procurement"
	"github.com/procuremind/procuremind/engine/schema"
	"github.com/procuremind/procuremind/pkg/config"
	"github.com/procuremind/procuremind/pkg/logger"
	"github.com/spf13/cobra"
)

const (
	msgTablesCreated = "Database tables created (or already exist)."
	msgDemoSeeded    = "Demo project and BOQ item added."
)

// sessionFactory is what the commands need from either factory.
type sessionFactory interface {
	WithSession(ctx context.Context, fn store.SessionFunc) error
	InitSchema(ctx context.Context, r *schema.Registry) error
	Close(ctx context.Context) error
}

// connectionStrategies orders URL sources as flag, environment, config file,
// then the local fallback.
func connectionStrategies(ctx context.Context, fallback string) []store.Strategy[string] {
	cfg := config.FromContext(ctx)
	url := string(cfg.Database.URL)
	source := configSource(ctx, "database.url")
	var strategies []store.Strategy[string]
	if source == config.SourceCLI {
		strategies = append(strategies, store.StaticStrategy("flag", url))
	}
	strategies = append(strategies, store.EnvStrategy())
	if source == config.SourceYAML {
		strategies = append(strategies, store.StaticStrategy("config-file", url))
	}
	return append(strategies, store.FallbackStrategy(fallback))
}

func openFactory(ctx context.Context, async bool) (sessionFactory, error) {
	cfg := config.FromContext(ctx)
	pool := store.PoolOptionsFromConfig(cfg.Database)
	if async {
		f, err := store.NewAsyncFactory(ctx, store.Options{
			Strategies: connectionStrategies(ctx, cfg.Database.AsyncFallbackURL),
			Pool:       pool,
		})
		if err != nil {
			return nil, err
		}
		return f, nil
	}
	f, err := store.NewSyncFactory(ctx, store.Options{
		Strategies: connectionStrategies(ctx, cfg.Database.FallbackURL),
		Pool:       pool,
	})
	if err != nil {
		return nil, err
	}
	return f, nil
}

func closeFactory(ctx context.Context, f sessionFactory) {
	if err := f.Close(context.WithoutCancel(ctx)); err != nil {
		logger.FromContext(ctx).Warn("Failed to close session factory", "error", err)
	}
}

// InitDBCmd creates every missing table.
func InitDBCmd() *cobra.Command {
	var async bool
	cmd := &cobra.Command{
		Use:   "init-db",
		Short: "Create database tables that do not exist yet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if !cmd.Flags().Changed("async") {
				async = config.FromContext(ctx).Database.Mode == "async"
			}
			f, err := openFactory(ctx, async)
			if err != nil {
				return err
			}
			defer closeFactory(ctx, f)
			if err := f.InitSchema(ctx, schema.Default()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), msgTablesCreated)
			return nil
		},
	}
	cmd.Flags().BoolVar(&async, "async", false, "Use the asynchronous session factory")
	return cmd
}

// DemoCmd creates the tables and seeds one demo project with a BOQ item.
func DemoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "demo",
		Short: "Create tables and insert a demo project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			f, err := openFactory(ctx, false)
			if err != nil {
				return err
			}
			defer closeFactory(ctx, f)
			if err := f.InitSchema(ctx, schema.Default()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), msgTablesCreated)
			err = f.WithSession(ctx, func(ctx context.Context, s store.Session) error {
				project, item, err := procurement.Seed(ctx, procurement.NewRepository(s))
				if err != nil {
					return err
				}
				logger.FromContext(ctx).Debug("Demo data inserted", "project_id", project.ID, "item_id", item.ID)
				return nil
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), msgDemoSeeded)
			return nil
		},
	}
}
