package schema

import (
	"fmt"
	"slices"
	"strings"
)

// CreateStatements renders idempotent CREATE statements for every table and
// index, in dependency order.
func (r *Registry) CreateStatements(d Dialect) ([]string, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	stmts := make([]string, 0, len(r.tables)*2)
	for _, t := range r.tables {
		stmts = append(stmts, tableStatements(d, t)...)
	}
	return stmts, nil
}

// TableStatements renders the CREATE statements of a single registered table
// and its indexes.
func (r *Registry) TableStatements(d Dialect, name string) ([]string, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	t, ok := r.Table(name)
	if !ok {
		return nil, fmt.Errorf("schema: table %q is not registered", name)
	}
	return tableStatements(d, t), nil
}

func tableStatements(d Dialect, t Table) []string {
	stmts := []string{createTable(d, t)}
	for _, idx := range t.Indexes {
		stmts = append(stmts, createIndex(t, idx))
	}
	return stmts
}

// DropStatements renders DROP statements in reverse dependency order.
func (r *Registry) DropStatements(d Dialect) ([]string, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	stmts := make([]string, 0, len(r.tables))
	for _, t := range slices.Backward(r.tables) {
		stmts = append(stmts, "DROP TABLE IF EXISTS "+quoteIdent(t.Name))
	}
	return stmts, nil
}

// AddColumnStatement renders an ALTER TABLE adding column to table.
func AddColumnStatement(d Dialect, table string, column Column) (string, error) {
	if err := d.Validate(); err != nil {
		return "", err
	}
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", quoteIdent(table), columnDefinition(d, column)), nil
}

func createTable(d Dialect, t Table) string {
	defs := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		defs[i] = columnDefinition(d, c)
	}
	return fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)",
		quoteIdent(t.Name),
		strings.Join(defs, ",\n\t"),
	)
}

func createIndex(t Table, idx Index) string {
	cols := make([]string, len(idx.Columns))
	for i, c := range idx.Columns {
		cols[i] = quoteIdent(c)
	}
	kind := "INDEX"
	if idx.Unique {
		kind = "UNIQUE INDEX"
	}
	return fmt.Sprintf(
		"CREATE %s IF NOT EXISTS %s ON %s (%s)",
		kind,
		quoteIdent(idx.Name),
		quoteIdent(t.Name),
		strings.Join(cols, ", "),
	)
}

func columnDefinition(d Dialect, c Column) string {
	var b strings.Builder
	b.WriteString(quoteIdent(c.Name))
	b.WriteByte(' ')
	if c.PrimaryKey {
		if d == DialectPostgres {
			b.WriteString("INTEGER GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY")
		} else {
			b.WriteString("INTEGER PRIMARY KEY AUTOINCREMENT")
		}
		return b.String()
	}
	b.WriteString(SQLType(d, c))
	if !c.Nullable {
		b.WriteString(" NOT NULL")
	}
	switch {
	case c.DefaultNow:
		b.WriteString(" DEFAULT CURRENT_TIMESTAMP")
	case c.Default != "":
		b.WriteString(" DEFAULT " + c.Default)
	}
	if fk := c.References; fk != nil {
		fmt.Fprintf(&b, " REFERENCES %s (%s)", quoteIdent(fk.Table), quoteIdent(fk.Column))
		if fk.OnDelete != "" {
			b.WriteString(" ON DELETE " + fk.OnDelete)
		}
	}
	return b.String()
}

// SQLType returns the engine type name used for column c.
func SQLType(d Dialect, c Column) string {
	switch c.Type {
	case Integer:
		return "INTEGER"
	case String:
		return fmt.Sprintf("VARCHAR(%d)", c.Size)
	case Text:
		return "TEXT"
	case Float:
		if d == DialectPostgres {
			return "DOUBLE PRECISION"
		}
		return "REAL"
	case DateTime:
		if d == DialectPostgres {
			return "TIMESTAMP"
		}
		return "DATETIME"
	case JSON:
		if d == DialectPostgres {
			return "JSONB"
		}
		return "TEXT"
	default:
		return "TEXT"
	}
}
