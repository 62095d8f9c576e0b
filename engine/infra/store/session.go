package store

import (
	"context"
	"database/sql"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/georgysavva/scany/v2/sqlscan"
	"github.com/jackc/pgx/v5"
	"github.com/procuremind/procuremind/engine/schema"
)

// Session is a unit of work bound to one transaction. It is only valid
// inside the scope that handed it out.
type Session interface {
	// Exec runs a statement and returns the number of affected rows.
	Exec(ctx context.Context, query string, args ...any) (int64, error)
	// Get scans a single row into dst. It returns ErrNotFound for no rows.
	Get(ctx context.Context, dst any, query string, args ...any) error
	// Select scans every row into the slice pointed to by dst.
	Select(ctx context.Context, dst any, query string, args ...any) error
	Dialect() schema.Dialect
}

// Builder returns a squirrel statement builder with the placeholder format
// of dialect d.
func Builder(d schema.Dialect) sq.StatementBuilderType {
	if d == schema.DialectPostgres {
		return sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	}
	return sq.StatementBuilder.PlaceholderFormat(sq.Question)
}

// transaction is a Session that can be finished.
type transaction interface {
	Session
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

type sqlTx struct {
	tx      *sql.Tx
	dialect schema.Dialect
}

func beginSQL(db *sql.DB, dialect schema.Dialect) func(context.Context) (transaction, error) {
	return func(ctx context.Context) (transaction, error) {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return nil, err
		}
		return &sqlTx{tx: tx, dialect: dialect}, nil
	}
}

func (s *sqlTx) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := s.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *sqlTx) Get(ctx context.Context, dst any, query string, args ...any) error {
	if err := sqlscan.Get(ctx, s.tx, dst, query, args...); err != nil {
		if sqlscan.NotFound(err) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

func (s *sqlTx) Select(ctx context.Context, dst any, query string, args ...any) error {
	return sqlscan.Select(ctx, s.tx, dst, query, args...)
}

func (s *sqlTx) Dialect() schema.Dialect { return s.dialect }

func (s *sqlTx) Commit(context.Context) error { return s.tx.Commit() }

func (s *sqlTx) Rollback(context.Context) error { return s.tx.Rollback() }

// TxBeginner is satisfied by pgxpool.Pool and pgxmock pools.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

type pgxTx struct {
	tx pgx.Tx
}

func beginPgx(pool TxBeginner) func(context.Context) (transaction, error) {
	return func(ctx context.Context) (transaction, error) {
		tx, err := pool.Begin(ctx)
		if err != nil {
			return nil, err
		}
		return &pgxTx{tx: tx}, nil
	}
}

func (s *pgxTx) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	tag, err := s.tx.Exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s *pgxTx) Get(ctx context.Context, dst any, query string, args ...any) error {
	if err := pgxscan.Get(ctx, s.tx, dst, query, args...); err != nil {
		if pgxscan.NotFound(err) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

func (s *pgxTx) Select(ctx context.Context, dst any, query string, args ...any) error {
	return pgxscan.Select(ctx, s.tx, dst, query, args...)
}

func (s *pgxTx) Dialect() schema.Dialect { return schema.DialectPostgres }

func (s *pgxTx) Commit(ctx context.Context) error { return s.tx.Commit(ctx) }

func (s *pgxTx) Rollback(ctx context.Context) error { return s.tx.Rollback(ctx) }
