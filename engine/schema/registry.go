package schema

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ErrInvalidRegistry wraps every registry validation failure.
var ErrInvalidRegistry = errors.New("schema: invalid registry")

// Registry is an ordered, validated set of tables. Tables appear in
// dependency order: a table only references tables registered before it.
type Registry struct {
	tables []Table
	index  map[string]int
}

// NewRegistry validates tables and builds a registry from them.
func NewRegistry(tables ...Table) (*Registry, error) {
	r := &Registry{index: make(map[string]int, len(tables))}
	indexNames := make(map[string]struct{})
	for _, t := range tables {
		if err := r.validateTable(t, indexNames); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidRegistry, err)
		}
		r.index[t.Name] = len(r.tables)
		r.tables = append(r.tables, t)
	}
	return r, nil
}

func (r *Registry) validateTable(t Table, indexNames map[string]struct{}) error {
	if strings.TrimSpace(t.Name) == "" {
		return errors.New("table name is required")
	}
	if _, dup := r.index[t.Name]; dup {
		return fmt.Errorf("duplicate table %q", t.Name)
	}
	if len(t.Columns) == 0 {
		return fmt.Errorf("table %q has no columns", t.Name)
	}
	seen := make(map[string]struct{}, len(t.Columns))
	primaryKeys := 0
	for _, c := range t.Columns {
		if err := r.validateColumn(t, c); err != nil {
			return err
		}
		if _, dup := seen[c.Name]; dup {
			return fmt.Errorf("table %q: duplicate column %q", t.Name, c.Name)
		}
		seen[c.Name] = struct{}{}
		if c.PrimaryKey {
			primaryKeys++
		}
	}
	if primaryKeys != 1 {
		return fmt.Errorf("table %q: expected exactly one primary key, found %d", t.Name, primaryKeys)
	}
	for _, idx := range t.Indexes {
		if idx.Name == "" || len(idx.Columns) == 0 {
			return fmt.Errorf("table %q: index needs a name and columns", t.Name)
		}
		if _, dup := indexNames[idx.Name]; dup {
			return fmt.Errorf("duplicate index %q", idx.Name)
		}
		for _, col := range idx.Columns {
			if _, ok := seen[col]; !ok {
				return fmt.Errorf("index %q: unknown column %q", idx.Name, col)
			}
		}
		indexNames[idx.Name] = struct{}{}
	}
	return nil
}

func (r *Registry) validateColumn(t Table, c Column) error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("table %q: column name is required", t.Name)
	}
	if c.Type < Integer || c.Type > JSON {
		return fmt.Errorf("column %s.%s: unknown type %s", t.Name, c.Name, c.Type)
	}
	if c.Type == String && c.Size <= 0 {
		return fmt.Errorf("column %s.%s: string columns need a size", t.Name, c.Name)
	}
	if c.PrimaryKey && (c.Type != Integer || c.Nullable) {
		return fmt.Errorf("column %s.%s: primary key must be a non-null integer", t.Name, c.Name)
	}
	if c.DefaultNow && c.Type != DateTime {
		return fmt.Errorf("column %s.%s: only datetime columns default to now", t.Name, c.Name)
	}
	if fk := c.References; fk != nil {
		pos, ok := r.index[fk.Table]
		if !ok {
			return fmt.Errorf("column %s.%s: references unregistered table %q", t.Name, c.Name, fk.Table)
		}
		target, ok := r.tables[pos].Column(fk.Column)
		if !ok || !target.PrimaryKey {
			return fmt.Errorf("column %s.%s: %s.%s is not a primary key", t.Name, c.Name, fk.Table, fk.Column)
		}
		switch fk.OnDelete {
		case "", Cascade, Restrict:
		default:
			return fmt.Errorf("column %s.%s: unsupported on-delete action %q", t.Name, c.Name, fk.OnDelete)
		}
	}
	return nil
}

// Tables returns the registered tables in dependency order.
func (r *Registry) Tables() []Table {
	return slices.Clone(r.tables)
}

// TableNames returns the registered table names in dependency order.
func (r *Registry) TableNames() []string {
	names := make([]string, len(r.tables))
	for i, t := range r.tables {
		names[i] = t.Name
	}
	return names
}

// Table looks up a table by name.
func (r *Registry) Table(name string) (Table, bool) {
	pos, ok := r.index[name]
	if !ok {
		return Table{}, false
	}
	return r.tables[pos], true
}
