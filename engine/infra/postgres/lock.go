package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/procuremind/procuremind/pkg/logger"
)

const (
	lockNamespace      = "procuremind"
	defaultLockTimeout = 45 * time.Second
)

// WithAdvisoryLock runs fn while holding a session-level advisory lock keyed
// by name. The lock lives on a dedicated connection and is released when fn
// returns, even if ctx was canceled meanwhile. A non-positive timeout uses a
// 45s acquisition bound.
func WithAdvisoryLock(ctx context.Context, db *sql.DB, name string, timeout time.Duration, fn func() error) error {
	if timeout <= 0 {
		timeout = defaultLockTimeout
	}
	conn, err := db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("postgres: acquire dedicated connection: %w", err)
	}
	defer conn.Close()
	log := logger.FromContext(ctx)
	lockCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if _, err := conn.ExecContext(
		lockCtx,
		"select pg_advisory_lock(hashtext($1), hashtext($2))",
		lockNamespace,
		name,
	); err != nil {
		return fmt.Errorf("postgres: acquire advisory lock %q: %w", name, err)
	}
	log.Debug("Advisory lock acquired", "lock", name)
	defer func() {
		if _, err := conn.ExecContext(
			context.WithoutCancel(ctx),
			"select pg_advisory_unlock(hashtext($1), hashtext($2))",
			lockNamespace,
			name,
		); err != nil {
			log.Warn("Failed to release advisory lock", "lock", name, "error", err)
		}
	}()
	return fn()
}
