package procurement

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/go-playground/validator/v10"
	"github.com/procuremind/procuremind/engine/infra/store"
	"github.com/procuremind/procuremind/engine/schema"
)

var (
	registry = schema.Default()
	validate = validator.New(validator.WithRequiredStructEnabled())
)

// Repository persists procurement entities through one session. It lives
// exactly as long as the session scope that created it.
type Repository struct {
	session store.Session
	qb      sq.StatementBuilderType
	now     func() time.Time
}

// NewRepository binds a repository to s.
func NewRepository(s store.Session) *Repository {
	return &Repository{
		session: s,
		qb:      store.Builder(s.Dialect()),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// columns returns the registered column list of table.
func columns(table string) []string {
	t, ok := registry.Table(table)
	if !ok {
		panic(fmt.Sprintf("procurement: table %q is not registered", table))
	}
	return t.ColumnNames()
}

func (r *Repository) selectFrom(table string) sq.SelectBuilder {
	return r.qb.Select(columns(table)...).From(table)
}

// utcPtr normalizes an optional timestamp. Every stored time is UTC:
// Postgres TIMESTAMP columns drop the zone and SQLite compares text.
func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func validateRecord(v any) error {
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return nil
}

// insert runs an INSERT ... RETURNING id built from values.
func (r *Repository) insert(ctx context.Context, table string, values map[string]any) (int64, error) {
	query, args, err := r.qb.Insert(table).SetMap(values).Suffix("RETURNING id").ToSql()
	if err != nil {
		return 0, fmt.Errorf("building insert query: %w", err)
	}
	var id int64
	if err := r.session.Get(ctx, &id, query, args...); err != nil {
		if store.IsForeignKeyViolation(err) {
			return 0, fmt.Errorf("inserting into %s: %w: %w", table, ErrInvalidReference, err)
		}
		return 0, fmt.Errorf("inserting into %s: %w", table, err)
	}
	return id, nil
}

// update applies values to the row with id and maps a missing row to notFound.
func (r *Repository) update(ctx context.Context, table string, id int64, values map[string]any, notFound error) error {
	query, args, err := r.qb.Update(table).SetMap(values).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("building update query: %w", err)
	}
	n, err := r.session.Exec(ctx, query, args...)
	if err != nil {
		if store.IsForeignKeyViolation(err) {
			return fmt.Errorf("updating %s: %w: %w", table, ErrInvalidReference, err)
		}
		return fmt.Errorf("updating %s: %w", table, err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func (r *Repository) deleteByID(ctx context.Context, table string, id int64, notFound error) error {
	query, args, err := r.qb.Delete(table).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("building delete query: %w", err)
	}
	n, err := r.session.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("deleting from %s: %w", table, err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func getOne[T any](ctx context.Context, r *Repository, q sq.SelectBuilder, notFound error) (*T, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select query: %w", err)
	}
	var out T
	if err := r.session.Get(ctx, &out, query, args...); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, notFound
		}
		return nil, fmt.Errorf("scanning %T: %w", out, err)
	}
	return &out, nil
}

func getByID[T any](ctx context.Context, r *Repository, table string, id int64, notFound error) (*T, error) {
	return getOne[T](ctx, r, r.selectFrom(table).Where(sq.Eq{"id": id}), notFound)
}

func list[T any](ctx context.Context, r *Repository, q sq.SelectBuilder) ([]*T, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select query: %w", err)
	}
	out := []*T{}
	if err := r.session.Select(ctx, &out, query, args...); err != nil {
		var zero T
		return nil, fmt.Errorf("scanning %T list: %w", zero, err)
	}
	return out, nil
}
