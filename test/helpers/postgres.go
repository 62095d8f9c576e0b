// Package helpers provides shared fixtures for tests that need a real
// database engine.
package helpers

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const postgresImage = "postgres:15-alpine"

// startPostgres launches a disposable Postgres container and returns its
// connection URL. The container is terminated when the test finishes.
func startPostgres(ctx context.Context, t *testing.T) (string, error) {
	container, err := postgres.Run(ctx,
		postgresImage,
		postgres.WithDatabase("procuremind"),
		postgres.WithUsername("procuremind"),
		postgres.WithPassword("procuremind"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		if container != nil {
			_ = container.Terminate(context.WithoutCancel(ctx))
		}
		return "", fmt.Errorf("start postgres container: %w", err)
	}
	t.Cleanup(func() {
		terminateCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := container.Terminate(terminateCtx); err != nil {
			t.Logf("Warning: failed to terminate container: %s", err)
		}
	})
	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return "", fmt.Errorf("postgres connection string: %w", err)
	}
	return connStr, nil
}

// PostgresURL returns the URL of a fresh Postgres database, skipping the test
// when no container runtime is available.
func PostgresURL(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping Postgres integration test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)
	url, err := StartPostgresWithRetry(t.Context(), t)
	require.NoError(t, err)
	return url
}
