package cli

import (
	"context"
	"fmt"

	"github.com/procuremind/procuremind/pkg/config"
	"github.com/procuremind/procuremind/pkg/logger"
	"github.com/procuremind/procuremind/pkg/version"
	"github.com/spf13/cobra"
)

const (
	defaultConfigFile = "procuremind.yaml"
	defaultEnvFile    = ".env"
)

type serviceCtxKey struct{}

// RootCmd builds the procuremind command tree.
func RootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "procuremind",
		Short:         "ProcureMind data layer tools",
		Version:       version.Get().String(),
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return SetupGlobalConfig(cmd)
		},
	}
	flags := root.PersistentFlags()
	flags.String("log-level", "info", "Log level (debug, info, warn, error, disabled)")
	flags.Bool("log-json", false, "Emit logs as JSON")
	flags.String("env-file", defaultEnvFile, "Path to environment file")
	flags.String("config", defaultConfigFile, "Path to configuration file")
	flags.String("database-url", "", "Database connection URL")

	root.AddCommand(
		InitDBCmd(),
		DemoCmd(),
		MigrateCmd(),
	)
	return root
}

// SetupGlobalConfig loads the env file, the configuration and the logger and
// attaches them to the command context.
func SetupGlobalConfig(cmd *cobra.Command) error {
	if _, err := loadEnvFile(cmd); err != nil {
		return err
	}
	configFile, err := cmd.Flags().GetString("config")
	if err != nil {
		return fmt.Errorf("failed to get config flag: %w", err)
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	service := config.NewService()
	sources := []config.Source{}
	if configFile != "" {
		sources = append(sources, config.NewYAMLProvider(configFile))
	}
	cliFlags := make(map[string]any)
	extractCLIFlags(cmd, cliFlags)
	if len(cliFlags) > 0 {
		sources = append(sources, config.NewCLIProvider(cliFlags))
	}
	cfg, err := service.Load(ctx, sources...)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	log := logger.NewLogger(&logger.Config{
		Level:      logger.ParseLevel(cfg.Runtime.LogLevel),
		Output:     cmd.ErrOrStderr(),
		JSON:       cfg.Runtime.LogJSON,
		TimeFormat: "15:04:05",
	})
	logFlagOverrides(log, cliFlags)
	ctx = logger.ContextWithLogger(ctx, log)
	ctx = config.ContextWithConfig(ctx, cfg)
	ctx = context.WithValue(ctx, serviceCtxKey{}, service)
	cmd.SetContext(ctx)
	return nil
}

// configSource reports which source set key, defaulting when the command
// ran without SetupGlobalConfig.
func configSource(ctx context.Context, key string) config.SourceType {
	if service, ok := ctx.Value(serviceCtxKey{}).(config.Service); ok {
		return service.GetSource(key)
	}
	return config.SourceDefault
}
