package migrate

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/georgysavva/scany/v2/sqlscan"
	"github.com/procuremind/procuremind/engine/schema"
	"github.com/procuremind/procuremind/pkg/logger"
)

// Drift lists what the live database lacks compared to the target metadata,
// along with the statements that would add it.
type Drift struct {
	MissingTables  []string
	MissingColumns map[string][]string
	Statements     []string
}

// Empty reports whether the database matches the metadata.
func (d *Drift) Empty() bool {
	return len(d.MissingTables) == 0 && len(d.MissingColumns) == 0
}

// LiveSchema maps table names to their column names.
type LiveSchema map[string]map[string]struct{}

type liveColumn struct {
	Table  string `db:"table_name"`
	Column string `db:"column_name"`
}

const (
	sqliteColumnsQuery = `SELECT m.name AS table_name, p.name AS column_name
FROM sqlite_master m JOIN pragma_table_info(m.name) p
WHERE m.type = 'table'`
	postgresColumnsQuery = `SELECT table_name, column_name
FROM information_schema.columns
WHERE table_schema = current_schema()`
)

// Check compares the target metadata with the live database. Without
// metadata it reports no drift.
func (r *Runner) Check(ctx context.Context) (*Drift, error) {
	if r.metadata == nil {
		logger.FromContext(ctx).Info("No target metadata, skipping check")
		return &Drift{}, nil
	}
	var drift *Drift
	err := r.withDB(ctx, func(ctx context.Context, db *sql.DB) error {
		live, err := introspect(ctx, db, r.target.Dialect())
		if err != nil {
			return err
		}
		drift, err = Diff(r.metadata, r.target.Dialect(), live)
		return err
	})
	if err != nil {
		return nil, err
	}
	return drift, nil
}

func introspect(ctx context.Context, db *sql.DB, d schema.Dialect) (LiveSchema, error) {
	query := sqliteColumnsQuery
	if d == schema.DialectPostgres {
		query = postgresColumnsQuery
	}
	var rows []liveColumn
	if err := sqlscan.Select(ctx, db, &rows, query); err != nil {
		return nil, fmt.Errorf("migrate: introspect schema: %w", err)
	}
	live := make(LiveSchema)
	for _, row := range rows {
		cols, ok := live[row.Table]
		if !ok {
			cols = make(map[string]struct{})
			live[row.Table] = cols
		}
		cols[row.Column] = struct{}{}
	}
	return live, nil
}

// Diff compares r with live and renders the repair statements for d. Tables
// and columns present only in the database are ignored.
func Diff(r *schema.Registry, d schema.Dialect, live LiveSchema) (*Drift, error) {
	drift := &Drift{MissingColumns: map[string][]string{}}
	for _, t := range r.Tables() {
		cols, ok := live[t.Name]
		if !ok {
			stmts, err := r.TableStatements(d, t.Name)
			if err != nil {
				return nil, err
			}
			drift.MissingTables = append(drift.MissingTables, t.Name)
			drift.Statements = append(drift.Statements, stmts...)
			continue
		}
		for _, c := range t.Columns {
			if _, ok := cols[c.Name]; ok {
				continue
			}
			stmt, err := schema.AddColumnStatement(d, t.Name, c)
			if err != nil {
				return nil, err
			}
			drift.MissingColumns[t.Name] = append(drift.MissingColumns[t.Name], c.Name)
			drift.Statements = append(drift.Statements, stmt)
		}
	}
	if len(drift.MissingColumns) == 0 {
		drift.MissingColumns = nil
	}
	return drift, nil
}
