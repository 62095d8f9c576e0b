package store

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/procuremind/procuremind/engine/schema"
)

// Driver names the backend a Target connects to.
type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// ErrUnsupportedURL is returned for connection strings no driver understands.
var ErrUnsupportedURL = errors.New("store: unsupported database url")

const sqliteMemory = ":memory:"

// Target is a resolved connection string.
type Target struct {
	// Raw is the URL exactly as resolved.
	Raw string
	// Driver selects the backend.
	Driver Driver
	// DSN is the driver-level address: a file path or ":memory:" for SQLite,
	// a postgres:// URL for Postgres.
	DSN string
	// Source is the name of the strategy that produced the URL.
	Source string
}

// Dialect returns the schema dialect of the target's backend.
func (t Target) Dialect() schema.Dialect {
	if t.Driver == DriverPostgres {
		return schema.DialectPostgres
	}
	return schema.DialectSQLite
}

// Redacted returns the URL with any password masked.
func (t Target) Redacted() string {
	if t.Driver != DriverPostgres {
		return t.Raw
	}
	u, err := url.Parse(t.DSN)
	if err != nil {
		return string(t.Driver)
	}
	return u.Redacted()
}

// ParseURL interprets a database URL. Driver suffixes such as "+aiosqlite"
// or "+asyncpg" are accepted and ignored. SQLite URLs follow the
// three-slash convention: "sqlite:///./dev.db" is relative,
// "sqlite:////var/db/app.db" is absolute and "sqlite://" is in memory.
func ParseURL(raw string) (Target, error) {
	trimmed := strings.TrimSpace(raw)
	scheme, rest, ok := strings.Cut(trimmed, "://")
	if !ok || scheme == "" {
		return Target{}, fmt.Errorf("%w: %q", ErrUnsupportedURL, redactRaw(trimmed))
	}
	base, _, _ := strings.Cut(strings.ToLower(scheme), "+")
	switch base {
	case "sqlite":
		return Target{Raw: trimmed, Driver: DriverSQLite, DSN: sqlitePath(rest)}, nil
	case "postgres", "postgresql":
		dsn := "postgres://" + rest
		u, err := url.Parse(dsn)
		if err != nil {
			return Target{}, fmt.Errorf("%w: %w", ErrUnsupportedURL, err)
		}
		if u.Host == "" {
			return Target{}, fmt.Errorf("%w: postgres url needs a host", ErrUnsupportedURL)
		}
		return Target{Raw: trimmed, Driver: DriverPostgres, DSN: dsn}, nil
	default:
		return Target{}, fmt.Errorf("%w: scheme %q", ErrUnsupportedURL, scheme)
	}
}

func sqlitePath(rest string) string {
	rest, _, _ = strings.Cut(rest, "?")
	path := strings.TrimPrefix(rest, "/")
	if path == "" || path == sqliteMemory {
		return sqliteMemory
	}
	return path
}

func redactRaw(raw string) string {
	if u, err := url.Parse(raw); err == nil && u.User != nil {
		return u.Redacted()
	}
	return raw
}
