package store

import (
	"errors"

	"github.com/procuremind/procuremind/engine/infra/postgres"
	"github.com/procuremind/procuremind/engine/infra/sqlite"
)

var (
	// ErrNotFound is returned by Session.Get when the query yields no rows.
	ErrNotFound = errors.New("store: not found")
	// ErrFactoryClosed is returned for scopes requested after Close.
	ErrFactoryClosed = errors.New("store: session factory closed")
)

// IsForeignKeyViolation reports whether err is a referential integrity
// failure from either backend.
func IsForeignKeyViolation(err error) bool {
	return sqlite.IsForeignKeyViolation(err) || postgres.IsForeignKeyViolation(err)
}
