package cli

import (
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"text/tabwriter"
	"time"

	"github.com/procuremind/procuremind/engine/infra/store"
	"github.com/procuremind/procuremind/engine/migrate"
	"github.com/procuremind/procuremind/pkg/config"
	"github.com/spf13/cobra"
)

var errSchemaDrift = errors.New("database schema differs from the registry")

type migrateFlags struct {
	offline bool
	async   bool
}

// MigrateCmd groups the migration subcommands.
func MigrateCmd() *cobra.Command {
	flags := &migrateFlags{}
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply, revert, render and check schema migrations",
	}
	pf := cmd.PersistentFlags()
	pf.BoolVar(&flags.offline, "offline", false, "Render SQL instead of connecting to the database")
	pf.BoolVar(&flags.async, "async", false, "Connect through the asynchronous pgx pool")
	pf.String("migrate-config", config.DefaultMigrateConfig, "Path to the migration config file (migrate.url)")
	pf.Bool("lock", true, "Hold a Postgres advisory lock while migrating")

	cmd.AddCommand(
		migrateUpCmd(flags),
		migrateDownCmd(flags),
		migrateStatusCmd(flags),
		migrateSQLCmd(flags),
		migrateCheckCmd(flags),
	)
	return cmd
}

func newRunner(cmd *cobra.Command, flags *migrateFlags, offline bool) (*migrate.Runner, error) {
	ctx := cmd.Context()
	cfg := config.FromContext(ctx)
	opts := migrate.OptionsFromConfig(cfg)
	opts.Offline = offline
	if cmd.Flags().Changed("async") {
		opts.Async = flags.async
	}
	strategies := migrate.URLStrategies(offline, opts.ConfigFile, opts.ConfigURL)
	if configSource(ctx, "database.url") == config.SourceCLI {
		flagURL := store.StaticStrategy("flag", string(cfg.Database.URL))
		strategies = append([]store.Strategy[string]{flagURL}, strategies...)
	}
	opts.URLStrategies = strategies
	r, err := migrate.New(ctx, opts)
	if errors.Is(err, migrate.ErrNoDatabaseURL) {
		return nil, fmt.Errorf("%w: set %s, --database-url or migrate.url in %s",
			err, config.GetEnvVarForConfigPath("database.url"), opts.ConfigFile)
	}
	return r, err
}

func migrateUpCmd(flags *migrateFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := newRunner(cmd, flags, flags.offline)
			if err != nil {
				return err
			}
			if flags.offline {
				return r.RenderUp(cmd.OutOrStdout())
			}
			results, err := r.Up(cmd.Context())
			if err != nil {
				return err
			}
			for _, res := range results {
				fmt.Fprintf(cmd.OutOrStdout(), "Applied %05d_%s (%s)\n", res.Version, res.Name, res.Duration.Round(time.Millisecond))
			}
			return nil
		},
	}
}

func migrateDownCmd(flags *migrateFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "down",
		Short: "Revert the most recent migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := newRunner(cmd, flags, flags.offline)
			if err != nil {
				return err
			}
			if flags.offline {
				return r.RenderDown(cmd.OutOrStdout())
			}
			res, err := r.Down(cmd.Context())
			if err != nil {
				return err
			}
			if res == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "No migration to revert")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Reverted %05d_%s\n", res.Version, res.Name)
			return nil
		},
	}
}

func migrateStatusCmd(flags *migrateFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show which migrations are applied",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := newRunner(cmd, flags, false)
			if err != nil {
				return err
			}
			statuses, err := r.Status(cmd.Context())
			if err != nil {
				return err
			}
			return writeStatusTable(cmd.OutOrStdout(), statuses)
		},
	}
}

func writeStatusTable(out io.Writer, statuses []migrate.Status) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "VERSION\tNAME\tSTATE\tAPPLIED AT")
	for _, s := range statuses {
		state, appliedAt := "pending", "-"
		if s.Applied {
			state = "applied"
			appliedAt = s.AppliedAt.Format(time.RFC3339)
		}
		fmt.Fprintf(w, "%05d\t%s\t%s\t%s\n", s.Version, s.Name, state, appliedAt)
	}
	return w.Flush()
}

func migrateSQLCmd(flags *migrateFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "sql",
		Short: "Print the upgrade SQL without connecting",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := newRunner(cmd, flags, true)
			if err != nil {
				return err
			}
			return r.RenderUp(cmd.OutOrStdout())
		},
	}
}

func migrateCheckCmd(flags *migrateFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Compare the live schema with the registry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := newRunner(cmd, flags, false)
			if err != nil {
				return err
			}
			drift, err := r.Check(cmd.Context())
			if err != nil {
				return err
			}
			if drift.Empty() {
				fmt.Fprintln(cmd.OutOrStdout(), "No schema drift detected")
				return nil
			}
			printDrift(cmd.OutOrStdout(), drift)
			return errSchemaDrift
		},
	}
}

// printDrift lists missing tables and columns, then the statements that add
// them. Tables with missing columns are listed by name.
func printDrift(out io.Writer, drift *migrate.Drift) {
	for _, table := range drift.MissingTables {
		fmt.Fprintf(out, "Missing table: %s\n", table)
	}
	for _, table := range slices.Sorted(maps.Keys(drift.MissingColumns)) {
		for _, col := range drift.MissingColumns[table] {
			fmt.Fprintf(out, "Missing column: %s.%s\n", table, col)
		}
	}
	fmt.Fprintln(out)
	for _, stmt := range drift.Statements {
		fmt.Fprintf(out, "%s;\n", stmt)
	}
}
