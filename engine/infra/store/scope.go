package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/procuremind/procuremind/pkg/logger"
)

// SessionFunc is the body of a session scope.
type SessionFunc func(ctx context.Context, s Session) error

// runScoped executes fn inside one transaction. It commits when fn returns
// nil; otherwise it rolls back and returns fn's error unchanged. A panic
// rolls back and is re-raised. When ctx is done before the commit the work
// is rolled back and ctx's error returned. Rollbacks run on a context that
// ignores cancellation so they are never skipped.
func runScoped(ctx context.Context, begin func(context.Context) (transaction, error), fn SessionFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tx, err := begin(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("store: begin transaction: %w", err)
	}
	log := logger.FromContext(ctx)
	rollback := func() {
		if rbErr := tx.Rollback(context.WithoutCancel(ctx)); rbErr != nil && !isTxDone(rbErr) {
			log.Error("Failed to rollback transaction", "error", rbErr)
		}
	}
	committed := false
	defer func() {
		if p := recover(); p != nil {
			if !committed {
				rollback()
			}
			panic(p)
		}
	}()
	if err := fn(ctx, tx); err != nil {
		rollback()
		return err
	}
	if err := ctx.Err(); err != nil {
		rollback()
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		rollback()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("store: commit transaction: %w", err)
	}
	committed = true
	return nil
}

// isTxDone reports errors meaning the transaction already ended, e.g. when
// database/sql rolled it back on context cancellation.
func isTxDone(err error) bool {
	return errors.Is(err, sql.ErrTxDone) || errors.Is(err, pgx.ErrTxClosed)
}
