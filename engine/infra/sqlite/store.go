package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/procuremind/procuremind/pkg/logger"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const (
	// DriverName is the database/sql driver registered by modernc.org/sqlite.
	DriverName = "sqlite"

	memoryPath         = ":memory:"
	defaultBusyTimeout = 5 * time.Second
	defaultPingTimeout = 3 * time.Second
)

// IsMemory reports whether path names an in-memory database.
func IsMemory(path string) bool {
	return path == "" || path == memoryPath || strings.HasPrefix(path, "file::memory:")
}

// buildDSN renders a modernc DSN with the pragmas every connection needs.
// Pragmas travel in the DSN so that each pooled connection gets them.
func buildDSN(cfg *Config) (string, bool, error) {
	if cfg == nil {
		return "", false, errors.New("sqlite: config is required")
	}
	busy := cfg.BusyTimeout
	if busy <= 0 {
		busy = defaultBusyTimeout
	}
	params := url.Values{}
	params.Add("_pragma", "foreign_keys(1)")
	params.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", busy.Milliseconds()))
	// Times are written as "YYYY-MM-DD HH:MM:SS.fff+00:00" so they compare
	// with CURRENT_TIMESTAMP defaults and SQLite's date functions.
	params.Set("_time_format", "sqlite")
	if IsMemory(cfg.Path) {
		return "file::memory:?" + params.Encode(), true, nil
	}
	params.Add("_pragma", "journal_mode(WAL)")
	return "file:" + cfg.Path + "?" + params.Encode(), false, nil
}

// Open creates a pooled database handle for cfg and verifies it with a ping.
// The pool is capped at a single connection: an in-memory database only
// lives as long as its connection, and file databases allow one writer.
func Open(ctx context.Context, cfg *Config) (*sql.DB, error) {
	dsn, memory, err := buildDSN(cfg)
	if err != nil {
		return nil, err
	}
	if !memory {
		if dir := filepath.Dir(cfg.Path); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("sqlite: create database directory: %w", err)
			}
		}
	}
	db, err := sql.Open(DriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open database: %w", err)
	}
	configurePool(db, cfg, memory)
	pingCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: ping: %w", err)
	}
	logger.FromContext(ctx).With(
		"store_driver", "sqlite",
		"path", displayPath(cfg.Path),
		"in_memory", memory,
	).Info("Store initialized")
	return db, nil
}

func configurePool(db *sql.DB, cfg *Config, memory bool) {
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if memory {
		// Recycling the only connection would discard the database.
		db.SetConnMaxLifetime(0)
		db.SetConnMaxIdleTime(0)
		return
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if cfg.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}
}

func displayPath(path string) string {
	if IsMemory(path) {
		return memoryPath
	}
	return path
}

// IsForeignKeyViolation reports whether err is SQLite's extended
// SQLITE_CONSTRAINT_FOREIGNKEY result.
func IsForeignKeyViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY
	}
	return false
}
