package migrate

import (
	"fmt"
	"io"
	"slices"

	"github.com/procuremind/procuremind/engine/schema"
)

// VersionTable is the bookkeeping table goose maintains.
const VersionTable = "goose_db_version"

func versionTableStatements(d schema.Dialect) []string {
	create := `CREATE TABLE IF NOT EXISTS ` + VersionTable + ` (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	version_id INTEGER NOT NULL,
	is_applied INTEGER NOT NULL,
	tstamp TIMESTAMP DEFAULT (datetime('now'))
)`
	if d == schema.DialectPostgres {
		create = `CREATE TABLE IF NOT EXISTS ` + VersionTable + ` (
	id integer PRIMARY KEY GENERATED BY DEFAULT AS IDENTITY,
	version_id bigint NOT NULL,
	is_applied boolean NOT NULL,
	tstamp timestamp NOT NULL DEFAULT now()
)`
	}
	return []string{
		create,
		fmt.Sprintf(
			"INSERT INTO %[1]s (version_id, is_applied) SELECT 0, true WHERE NOT EXISTS (SELECT 1 FROM %[1]s)",
			VersionTable,
		),
	}
}

// RenderUp writes the SQL that applying every migration would run, with all
// values inlined. It needs no connection.
func (r *Runner) RenderUp(w io.Writer) error {
	d := r.target.Dialect()
	if _, err := fmt.Fprintf(w, "-- Dialect: %s\n\n", d); err != nil {
		return err
	}
	if err := writeStatements(w, versionTableStatements(d)); err != nil {
		return err
	}
	for _, m := range r.migrations {
		stmts, err := m.Up(d)
		if err != nil {
			return fmt.Errorf("render %s up: %w", m.ID(), err)
		}
		stmts = append(stmts, fmt.Sprintf(
			"INSERT INTO %s (version_id, is_applied) VALUES (%d, true)",
			VersionTable,
			m.Version,
		))
		if err := writeMigration(w, "Running upgrade "+m.ID(), stmts); err != nil {
			return err
		}
	}
	return nil
}

// RenderDown writes the SQL that reverting every migration would run, newest
// first.
func (r *Runner) RenderDown(w io.Writer) error {
	d := r.target.Dialect()
	if _, err := fmt.Fprintf(w, "-- Dialect: %s\n\n", d); err != nil {
		return err
	}
	for _, m := range slices.Backward(r.migrations) {
		stmts, err := m.Down(d)
		if err != nil {
			return fmt.Errorf("render %s down: %w", m.ID(), err)
		}
		stmts = append(stmts, fmt.Sprintf("DELETE FROM %s WHERE version_id = %d", VersionTable, m.Version))
		if err := writeMigration(w, "Running downgrade "+m.ID(), stmts); err != nil {
			return err
		}
	}
	return nil
}

func writeMigration(w io.Writer, title string, stmts []string) error {
	if _, err := fmt.Fprintf(w, "-- %s\nBEGIN;\n\n", title); err != nil {
		return err
	}
	if err := writeStatements(w, stmts); err != nil {
		return err
	}
	_, err := io.WriteString(w, "COMMIT;\n\n")
	return err
}

func writeStatements(w io.Writer, stmts []string) error {
	for _, stmt := range stmts {
		if _, err := fmt.Fprintf(w, "%s;\n\n", stmt); err != nil {
			return err
		}
	}
	return nil
}
