package config

import (
	"context"
	"encoding/json"
	"time"
)

// Config is the complete configuration of the data layer and its entrypoints.
type Config struct {
	Database DatabaseConfig `koanf:"database" validate:"required"`
	Migrate  MigrateConfig  `koanf:"migrate"`
	Runtime  RuntimeConfig  `koanf:"runtime"  validate:"required"`
}

// DatabaseConfig configures connection resolution and pooling for both
// session factories.
type DatabaseConfig struct {
	URL              SensitiveString `koanf:"url"                env:"DATABASE_URL"          validate:"omitempty,db_url" sensitive:"true"`
	Mode             string          `koanf:"mode"               env:"DB_MODE"               validate:"oneof=sync async"`
	FallbackURL      string          `koanf:"fallback_url"       env:"DB_FALLBACK_URL"       validate:"required,db_url"`
	AsyncFallbackURL string          `koanf:"async_fallback_url" env:"DB_ASYNC_FALLBACK_URL" validate:"required,db_url"`
	MaxOpenConns     int             `koanf:"max_open_conns"     env:"DB_MAX_OPEN_CONNS"     validate:"min=0"`
	MaxIdleConns     int             `koanf:"max_idle_conns"     env:"DB_MAX_IDLE_CONNS"     validate:"min=0"`
	ConnMaxLifetime  time.Duration   `koanf:"conn_max_lifetime"  env:"DB_CONN_MAX_LIFETIME"`
	ConnMaxIdleTime  time.Duration   `koanf:"conn_max_idle_time" env:"DB_CONN_MAX_IDLE_TIME"`
	ConnectTimeout   time.Duration   `koanf:"connect_timeout"    env:"DB_CONNECT_TIMEOUT"`
	PingTimeout      time.Duration   `koanf:"ping_timeout"       env:"DB_PING_TIMEOUT"`
	BusyTimeout      time.Duration   `koanf:"busy_timeout"       env:"DB_BUSY_TIMEOUT"`
}

// MigrateConfig configures the migration runner. URL is read from YAML only,
// never from the environment; a dedicated ConfigFile takes precedence.
type MigrateConfig struct {
	URL        SensitiveString `koanf:"url"         validate:"omitempty,db_url" sensitive:"true"`
	ConfigFile string          `koanf:"config_file" env:"MIGRATE_CONFIG"`
	Lock       bool            `koanf:"lock"        env:"MIGRATE_LOCK"`
	Timeout    time.Duration   `koanf:"timeout"     env:"MIGRATE_TIMEOUT"`
}

// RuntimeConfig contains process-level behavior.
type RuntimeConfig struct {
	LogLevel string `koanf:"log_level" env:"LOG_LEVEL" validate:"oneof=debug info warn error disabled"`
	LogJSON  bool   `koanf:"log_json"  env:"LOG_JSON"`
}

// Service loads and validates configuration.
type Service interface {
	// Load applies defaults, then sources, then the environment. CLI sources
	// are applied last so explicit flags win over everything else.
	Load(ctx context.Context, sources ...Source) (*Config, error)
	// Validate checks struct tags and cross-field rules.
	Validate(config *Config) error
	// GetSource reports which source provided a configuration key.
	GetSource(key string) SourceType
}

// Source provides a raw configuration map.
type Source interface {
	Load() (map[string]any, error)
	Type() SourceType
}

// SourceType identifies the type of configuration source.
type SourceType string

const (
	SourceCLI     SourceType = "cli"
	SourceYAML    SourceType = "yaml"
	SourceEnv     SourceType = "env"
	SourceDefault SourceType = "default"
)

// Metadata contains metadata about configuration sources.
type Metadata struct {
	Sources  map[string]SourceType `json:"sources"`
	LoadedAt time.Time             `json:"loaded_at"`
}

const (
	DefaultFallbackURL      = "sqlite:///./dev.db"
	DefaultAsyncFallbackURL = "sqlite:///./dev_async.db"
	DefaultMigrateConfig    = "migrate.yaml"
)

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Mode:             "sync",
			FallbackURL:      DefaultFallbackURL,
			AsyncFallbackURL: DefaultAsyncFallbackURL,
			MaxOpenConns:     20,
			MaxIdleConns:     2,
			ConnMaxLifetime:  time.Hour,
			ConnMaxIdleTime:  30 * time.Minute,
			ConnectTimeout:   5 * time.Second,
			PingTimeout:      3 * time.Second,
			BusyTimeout:      5 * time.Second,
		},
		Migrate: MigrateConfig{
			ConfigFile: DefaultMigrateConfig,
			Lock:       true,
			Timeout:    2 * time.Minute,
		},
		Runtime: RuntimeConfig{
			LogLevel: "info",
		},
	}
}

// Load loads configuration using the default service.
func Load(ctx context.Context, sources ...Source) (*Config, error) {
	return NewService().Load(ctx, sources...)
}

// SensitiveString holds a secret that must never be printed.
type SensitiveString string

func (s SensitiveString) String() string {
	if s == "" {
		return ""
	}
	return "[REDACTED]"
}

// Value returns the raw secret.
func (s SensitiveString) Value() string {
	return string(s)
}

func (s SensitiveString) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}
