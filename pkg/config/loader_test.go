package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockSource struct {
	data       map[string]any
	sourceType SourceType
	err        error
}

func (m *mockSource) Load() (map[string]any, error) {
	return m.data, m.err
}

func (m *mockSource) Type() SourceType {
	return m.sourceType
}

func TestLoader_Load(t *testing.T) {
	t.Run("Should load default configuration when no sources provided", func(t *testing.T) {
		cfg, err := NewService().Load(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "sync", cfg.Database.Mode)
		assert.Equal(t, DefaultFallbackURL, cfg.Database.FallbackURL)
		assert.Equal(t, DefaultAsyncFallbackURL, cfg.Database.AsyncFallbackURL)
		assert.Equal(t, 5*time.Second, cfg.Database.BusyTimeout)
		assert.True(t, cfg.Migrate.Lock)
		assert.Empty(t, cfg.Database.URL.Value())
	})

	t.Run("Should apply sources in precedence order", func(t *testing.T) {
		yamlSource := &mockSource{
			data: map[string]any{
				"database": map[string]any{
					"url":            "sqlite:///./from-yaml.db",
					"max_open_conns": 7,
				},
			},
			sourceType: SourceYAML,
		}
		cliSource := NewCLIProvider(map[string]any{"database.url": "sqlite:///./from-cli.db"})
		svc := NewService()
		cfg, err := svc.Load(context.Background(), cliSource, yamlSource)
		require.NoError(t, err)
		assert.Equal(t, "sqlite:///./from-cli.db", cfg.Database.URL.Value())
		assert.Equal(t, 7, cfg.Database.MaxOpenConns)
		assert.Equal(t, SourceCLI, svc.GetSource("database.url"))
		assert.Equal(t, SourceYAML, svc.GetSource("database.max_open_conns"))
		assert.Equal(t, SourceDefault, svc.GetSource("database.mode"))
	})

	t.Run("Should let environment override files but not flags", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "postgresql://app:secret@db:5432/procure")
		t.Setenv("DB_BUSY_TIMEOUT", "9s")
		yamlSource := &mockSource{
			data:       map[string]any{"database": map[string]any{"url": "sqlite:///./from-yaml.db"}},
			sourceType: SourceYAML,
		}
		svc := NewService()
		cfg, err := svc.Load(context.Background(), yamlSource)
		require.NoError(t, err)
		assert.Equal(t, "postgresql://app:secret@db:5432/procure", cfg.Database.URL.Value())
		assert.Equal(t, 9*time.Second, cfg.Database.BusyTimeout)
		assert.Equal(t, SourceEnv, svc.GetSource("database.url"))

		cfg, err = svc.Load(
			context.Background(),
			yamlSource,
			NewCLIProvider(map[string]any{"database.url": "sqlite:///:memory:"}),
		)
		require.NoError(t, err)
		assert.Equal(t, "sqlite:///:memory:", cfg.Database.URL.Value())
	})

	t.Run("Should ignore unmapped environment variables", func(t *testing.T) {
		t.Setenv("DATABASE_MODE_UNRELATED", "whatever")
		cfg, err := NewService().Load(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "sync", cfg.Database.Mode)
	})

	t.Run("Should read the migration URL from a YAML file only", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "migrate.yaml")
		content := "migrate:\n  url: sqlite:///./migrate.db\n  lock: false\n"
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
		cfg, err := NewService().Load(context.Background(), NewYAMLProvider(path))
		require.NoError(t, err)
		assert.Equal(t, "sqlite:///./migrate.db", cfg.Migrate.URL.Value())
		assert.False(t, cfg.Migrate.Lock)
	})

	t.Run("Should reject an invalid mode", func(t *testing.T) {
		t.Setenv("DB_MODE", "threaded")
		_, err := NewService().Load(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "validation failed")
	})

	t.Run("Should reject an unsupported URL scheme", func(t *testing.T) {
		_, err := NewService().Load(
			context.Background(),
			NewCLIProvider(map[string]any{"database.url": "mysql://root@localhost/db"}),
		)
		require.Error(t, err)
	})

	t.Run("Should reject idle connections above the open limit", func(t *testing.T) {
		_, err := NewService().Load(
			context.Background(),
			NewCLIProvider(map[string]any{"database.max_open_conns": 2, "database.max_idle_conns": 5}),
		)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "max_idle_conns")
	})

	t.Run("Should surface source load errors", func(t *testing.T) {
		broken := &mockSource{err: assert.AnError, sourceType: SourceYAML}
		_, err := NewService().Load(context.Background(), broken)
		require.ErrorIs(t, err, assert.AnError)
	})
}

func TestYAMLProvider(t *testing.T) {
	t.Run("Should return no values for a missing file", func(t *testing.T) {
		data, err := NewYAMLProvider(filepath.Join(t.TempDir(), "absent.yaml")).Load()
		require.NoError(t, err)
		assert.Empty(t, data)
	})

	t.Run("Should drop nil values", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "cfg.yaml")
		require.NoError(t, os.WriteFile(path, []byte("database:\n  url:\n  mode: async\n"), 0o600))
		data, err := NewYAMLProvider(path).Load()
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"database": map[string]any{"mode": "async"}}, data)
	})

	t.Run("Should fail on malformed YAML", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "cfg.yaml")
		require.NoError(t, os.WriteFile(path, []byte("database: [unterminated"), 0o600))
		_, err := NewYAMLProvider(path).Load()
		require.Error(t, err)
	})
}

func TestFromContext(t *testing.T) {
	t.Run("Should return defaults without an attached config", func(t *testing.T) {
		assert.Equal(t, Default(), FromContext(context.Background()))
	})

	t.Run("Should return the attached config", func(t *testing.T) {
		cfg := Default()
		cfg.Database.Mode = "async"
		ctx := ContextWithConfig(context.Background(), cfg)
		assert.Same(t, cfg, FromContext(ctx))
	})
}
