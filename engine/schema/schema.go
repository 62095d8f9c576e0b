// Package schema holds the single declarative definition of every table the
// procurement data layer persists. Session factories and the migration runner
// both render their DDL from a Registry, so there is exactly one source of
// truth for table and column layout.
package schema

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Dialect identifies a SQL engine the registry can render DDL for.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// ErrUnknownDialect is returned when rendering for an unsupported engine.
var ErrUnknownDialect = errors.New("schema: unknown dialect")

// Validate reports whether d is a supported dialect.
func (d Dialect) Validate() error {
	switch d {
	case DialectSQLite, DialectPostgres:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownDialect, string(d))
	}
}

// ColumnType is the portable column type of the registry.
type ColumnType int

const (
	Integer ColumnType = iota + 1
	String
	Text
	Float
	DateTime
	JSON
)

func (t ColumnType) String() string {
	switch t {
	case Integer:
		return "integer"
	case String:
		return "string"
	case Text:
		return "text"
	case Float:
		return "float"
	case DateTime:
		return "datetime"
	case JSON:
		return "json"
	default:
		return fmt.Sprintf("ColumnType(%d)", int(t))
	}
}

// Referential actions for ForeignKey.OnDelete. The empty value leaves the
// engine default in place, which rejects deleting a referenced row.
const (
	Cascade  = "CASCADE"
	Restrict = "RESTRICT"
)

// ForeignKey points a column at the primary key of another table.
type ForeignKey struct {
	Table    string
	Column   string
	OnDelete string
}

// Column describes one table column.
type Column struct {
	Name       string
	Type       ColumnType
	Size       int // VARCHAR length, String only
	Nullable   bool
	PrimaryKey bool
	// Default is a SQL literal rendered verbatim, e.g. `'draft'`.
	Default string
	// DefaultNow makes the engine fill the column with the current timestamp.
	DefaultNow bool
	References *ForeignKey
}

// Index is a secondary index over one or more columns.
type Index struct {
	Name    string
	Columns []string
	Unique  bool
}

// Table is a named set of columns and indexes.
type Table struct {
	Name    string
	Columns []Column
	Indexes []Index
}

// Column returns the column with the given name.
func (t Table) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// ColumnNames lists the table's columns in declaration order.
func (t Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Executor runs a single statement. store.Session satisfies it.
type Executor interface {
	Exec(ctx context.Context, query string, args ...any) (int64, error)
}

// CreateAll creates every missing table and index of r. Existing objects are
// left untouched, so calling it repeatedly is safe.
func CreateAll(ctx context.Context, exec Executor, r *Registry, d Dialect) error {
	stmts, err := r.CreateStatements(d)
	if err != nil {
		return err
	}
	for _, stmt := range stmts {
		if _, err := exec.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("schema: create: %w", err)
		}
	}
	return nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
