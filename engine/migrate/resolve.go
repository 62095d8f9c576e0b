package migrate

import (
	"context"
	"errors"
	"fmt"

	"github.com/procuremind/procuremind/engine/infra/store"
	"github.com/procuremind/procuremind/engine/schema"
	"github.com/procuremind/procuremind/pkg/config"
	"github.com/procuremind/procuremind/pkg/logger"
)

// ErrNoDatabaseURL is returned when neither the migration config file nor the
// environment names a database. Migrations never fall back to a local file.
var ErrNoDatabaseURL = errors.New("migrate: no database url configured")

// ConfigFileStrategy reads migrate.url from the YAML file at path.
func ConfigFileStrategy(path string) store.Strategy[string] {
	return store.Strategy[string]{
		Name: "migration-config",
		Resolve: func(context.Context) (string, error) {
			values, err := config.NewYAMLProvider(path).Load()
			if err != nil {
				return "", err
			}
			section, ok := values["migrate"].(map[string]any)
			if !ok {
				return "", store.ErrSkipStrategy
			}
			url, ok := section["url"].(string)
			if !ok || url == "" {
				return "", store.ErrSkipStrategy
			}
			return url, nil
		},
	}
}

// URLStrategies returns the resolution order for a run. The migration config
// is the dedicated file first, then migrate.url from the application config.
// Offline rendering prefers the migration config, online runs prefer the
// environment.
func URLStrategies(offline bool, configFile, configURL string) []store.Strategy[string] {
	migrationConfig := []store.Strategy[string]{
		ConfigFileStrategy(configFile),
		store.StaticStrategy("app-config", configURL),
	}
	if offline {
		return append(migrationConfig, store.EnvStrategy())
	}
	return append([]store.Strategy[string]{store.EnvStrategy()}, migrationConfig...)
}

func resolveTarget(ctx context.Context, strategies []store.Strategy[string]) (store.Target, error) {
	target, err := store.ResolveConnection(ctx, strategies...)
	if err != nil {
		if errors.Is(err, store.ErrUnresolved) {
			return store.Target{}, fmt.Errorf("%w: %w", ErrNoDatabaseURL, err)
		}
		return store.Target{}, err
	}
	return target, nil
}

// MetadataStrategies returns the target metadata chain: the registry used by
// the async factory, then the one used by the sync factory, then none.
func MetadataStrategies() []store.Strategy[*schema.Registry] {
	build := func(context.Context) (*schema.Registry, error) {
		return schema.NewRegistry(schema.ProcurementTables()...)
	}
	return []store.Strategy[*schema.Registry]{
		{Name: "async-registry", Resolve: build},
		{Name: "sync-registry", Resolve: build},
		NoMetadata(),
	}
}

// NoMetadata yields no target metadata, which turns Check into a no-op.
func NoMetadata() store.Strategy[*schema.Registry] {
	return store.Strategy[*schema.Registry]{
		Name:    "none",
		Resolve: func(context.Context) (*schema.Registry, error) { return nil, nil },
	}
}

// ResolveMetadata runs the metadata chain. It never fails: when every
// strategy fails the run proceeds without metadata.
func ResolveMetadata(ctx context.Context, strategies ...store.Strategy[*schema.Registry]) *schema.Registry {
	log := logger.FromContext(ctx)
	r, source, err := store.Resolve(ctx, strategies...)
	if err != nil {
		log.Warn("No target metadata available", "error", err)
		return nil
	}
	log.Debug("Target metadata resolved", "source", source, "empty", r == nil)
	return r
}
