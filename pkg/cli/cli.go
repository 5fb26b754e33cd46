// Package cli builds the console's cobra command tree.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/lexintake/console/pkg/config"
	"github.com/lexintake/console/pkg/migrate"
	"github.com/lexintake/console/pkg/observability/logger"
	"github.com/lexintake/console/pkg/version"
)

// Options defines the service-specific callbacks behind the commands.
type Options struct {
	Name        string
	Description string
	ConfigPath  string
	EnvPrefix   string

	// Required: server startup logic.
	RunServer func(ctx context.Context, cfg *config.Config, log logger.Logger) error

	// Optional: migration logic. Status is printed when the subcommand returns one.
	RunMigrations func(ctx context.Context, cfg *config.Config, log logger.Logger, direction string, steps int) (*migrate.Status, error)

	// Optional: additional custom commands.
	CustomCommands []*cobra.Command
}

type rootFlags struct {
	configPath string
	logLevel   string
	logFormat  string
}

// NewCommand creates the CLI with serve (default), migrate, env, storage, config and
// version subcommands.
func NewCommand(opts Options) *cobra.Command {
	if opts.EnvPrefix == "" {
		opts.EnvPrefix = config.DefaultEnvPrefix
	}

	root := &cobra.Command{
		Use:           opts.Name,
		Short:         opts.Description,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := &rootFlags{}
	root.PersistentFlags().StringVarP(&flags.configPath, "config-file", "c", opts.ConfigPath, "config file path")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "log level override (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flags.logFormat, "log-format", "", "log format override (json, text)")

	// Utility commands log to stderr so their stdout stays scriptable.
	load := func(cmd *cobra.Command) (*config.Config, logger.Logger, error) {
		return LoadConfigAndLogger(flags.configPath, opts.EnvPrefix, cmd.Flags(), cmd.ErrOrStderr())
	}

	root.AddCommand(newVersionCommand(opts.Name))

	if opts.RunServer != nil {
		serveCmd := &cobra.Command{
			Use:   "serve",
			Short: "Start the public and management HTTP servers",
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, log, err := LoadConfigAndLogger(flags.configPath, opts.EnvPrefix, cmd.Flags(), nil)
				if err != nil {
					return err
				}
				return opts.RunServer(cmd.Context(), cfg, log)
			},
		}
		root.AddCommand(serveCmd)
		root.RunE = serveCmd.RunE
	}

	if opts.RunMigrations != nil {
		root.AddCommand(newMigrateCommand(opts, load))
	}

	root.AddCommand(newEnvCommand(load))
	root.AddCommand(newStorageCommand(load))
	root.AddCommand(newConfigCommand(flags, opts.EnvPrefix))

	for _, custom := range opts.CustomCommands {
		root.AddCommand(custom)
	}
	return root
}

func newVersionCommand(name string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			info := version.Current(name)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Service:    %s\n", info.Service)
			fmt.Fprintf(out, "Version:    %s\n", info.Version)
			fmt.Fprintf(out, "Commit:     %s\n", info.Commit)
			fmt.Fprintf(out, "Build Time: %s\n", info.BuildTime)
			fmt.Fprintf(out, "Go:         %s\n", info.GoVersion)
		},
	}
}

type loadFunc func(cmd *cobra.Command) (*config.Config, logger.Logger, error)

func newMigrateCommand(opts Options, load loadFunc) *cobra.Command {
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database migration commands",
	}

	run := func(direction string) func(cmd *cobra.Command, args []string) error {
		return func(cmd *cobra.Command, args []string) error {
			_, steps, err := migrate.ParseArgs(append([]string{direction}, args...))
			if err != nil {
				return err
			}
			cfg, log, err := load(cmd)
			if err != nil {
				return err
			}
			status, err := opts.RunMigrations(cmd.Context(), cfg, log, direction, steps)
			if err != nil {
				return err
			}
			if status != nil {
				printStatus(cmd.OutOrStdout(), status)
			}
			return nil
		}
	}

	migrateCmd.AddCommand(
		&cobra.Command{Use: "up", Short: "Apply pending migrations", Args: cobra.NoArgs, RunE: run("up")},
		&cobra.Command{Use: "down [steps]", Short: "Revert the last migrations (default 1)", Args: cobra.MaximumNArgs(1), RunE: run("down")},
		&cobra.Command{Use: "status", Short: "Show applied and pending migrations", Args: cobra.NoArgs, RunE: run("status")},
	)
	return migrateCmd
}

func printStatus(out io.Writer, status *migrate.Status) {
	for _, m := range status.Applied {
		fmt.Fprintf(out, "applied  %04d  %s  %s\n", m.Version, m.Name, m.AppliedAt.UTC().Format("2006-01-02T15:04:05Z"))
	}
	for _, m := range status.Pending {
		fmt.Fprintf(out, "pending  %04d  %s\n", m.Version, m.Name)
	}
	if len(status.Applied) == 0 && len(status.Pending) == 0 {
		fmt.Fprintln(out, "no migrations")
	}
}

// LoadConfigAndLogger loads configuration, applies log flag overrides and creates the
// zap logger writing to logOutput, or stdout when nil.
func LoadConfigAndLogger(cfgPath, envPrefix string, flags *pflag.FlagSet, logOutput io.Writer) (*config.Config, logger.Logger, error) {
	cfg, err := config.NewViperLoader(cfgPath, envPrefix).Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if err := applyFlagOverrides(cfg, flags); err != nil {
		return nil, nil, err
	}

	level, err := logger.ParseLogLevel(cfg.Observability.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	format, err := logger.ParseLogFormat(cfg.Observability.LogFormat)
	if err != nil {
		return nil, nil, err
	}
	log, err := logger.NewZapLogger(logger.Config{
		Level:  level,
		Format: format,
		Output: logOutput,
		Fields: map[string]string{
			"service":     cfg.Service.Name,
			"environment": cfg.Service.Environment,
		},
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create logger: %w", err)
	}

	if level == logger.DebugLevel {
		log.Debug("effective configuration", "config", cfg.Redacted())
	}
	return cfg, log, nil
}

func applyFlagOverrides(cfg *config.Config, flags *pflag.FlagSet) error {
	if flags == nil {
		return nil
	}
	if f := flags.Lookup("log-level"); f != nil && f.Changed {
		cfg.Observability.LogLevel = strings.TrimSpace(f.Value.String())
	}
	if f := flags.Lookup("log-format"); f != nil && f.Changed {
		cfg.Observability.LogFormat = strings.TrimSpace(f.Value.String())
	}
	return cfg.Validate()
}

// Execute runs the command and exits non-zero on error.
func Execute(cmd *cobra.Command) {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
