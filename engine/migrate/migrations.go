// Package migrate applies, reverts, renders and checks versioned schema
// migrations. Migrations are Go migrations executed by a goose Provider; their
// statements are rendered from the schema registry for the target dialect.
package migrate

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"
	"github.com/procuremind/procuremind/engine/schema"
)

// Migration is one versioned schema change rendered per dialect.
type Migration struct {
	Version int64
	Name    string
	Up      func(d schema.Dialect) ([]string, error)
	Down    func(d schema.Dialect) ([]string, error)
}

// ID is the zero-padded version and name, e.g. "00001_initial_schema".
func (m Migration) ID() string {
	return fmt.Sprintf("%05d_%s", m.Version, m.Name)
}

// Migrations returns the migration history in version order.
func Migrations() []Migration {
	initial := schema.Default()
	return []Migration{
		{
			Version: 1,
			Name:    "initial_schema",
			Up:      initial.CreateStatements,
			Down:    initial.DropStatements,
		},
	}
}

func gooseDialect(d schema.Dialect) (goose.Dialect, error) {
	switch d {
	case schema.DialectSQLite:
		return goose.DialectSQLite3, nil
	case schema.DialectPostgres:
		return goose.DialectPostgres, nil
	default:
		return "", fmt.Errorf("%w: %q", schema.ErrUnknownDialect, d)
	}
}

// gooseMigrations renders ms for d. Each migration runs in its own
// transaction.
func gooseMigrations(ms []Migration, d schema.Dialect) ([]*goose.Migration, error) {
	out := make([]*goose.Migration, 0, len(ms))
	for _, m := range ms {
		up, err := m.Up(d)
		if err != nil {
			return nil, fmt.Errorf("render %s up: %w", m.ID(), err)
		}
		down, err := m.Down(d)
		if err != nil {
			return nil, fmt.Errorf("render %s down: %w", m.ID(), err)
		}
		out = append(out, goose.NewGoMigration(
			m.Version,
			&goose.GoFunc{RunTx: execAll(up)},
			&goose.GoFunc{RunTx: execAll(down)},
		))
	}
	return out, nil
}

func execAll(stmts []string) func(context.Context, *sql.Tx) error {
	return func(ctx context.Context, tx *sql.Tx) error {
		for _, stmt := range stmts {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return err
			}
		}
		return nil
	}
}
