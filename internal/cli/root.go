// Package cli implements the devinfo command line.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/okian/devinfo/internal/adapters/iplookup"
	service "github.com/okian/devinfo/internal/app"
	"github.com/okian/devinfo/internal/config"
	"github.com/okian/devinfo/pkg/logger"
)

// app carries state shared by the subcommands once the root has loaded it.
type app struct {
	version    string
	configPath string
	verbose    bool
	cfg        *config.Config
	log        logger.Logger
}

// Execute runs the command line and exits non-zero on failure.
func Execute(version string) {
	// Commands that fail before config loads still log somewhere.
	_ = logger.Init()
	if err := NewRootCommand(version).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// NewRootCommand builds the devinfo command tree.
func NewRootCommand(version string) *cobra.Command {
	a := &app{version: version}

	root := &cobra.Command{
		Use:           "devinfo",
		Short:         "Collect and show device facts",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load(cmd.Context(), cmd.ErrOrStderr())
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "YAML config file (overrides "+config.EnvConfigPath+")")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "log at debug level regardless of log_level")

	root.AddCommand(
		newServeCommand(a),
		newShowCommand(a),
		newPrefsCommand(a),
		newCopyCommand(a),
	)
	return root
}

// load reads the configuration and sets up logging on logw.
func (a *app) load(ctx context.Context, logw io.Writer) error {
	path := a.configPath
	if path == "" {
		path = os.Getenv(config.EnvConfigPath)
	}
	cfg, err := config.LoadFrom(ctx, path)
	if err != nil {
		return err
	}
	if err := logger.InitWith(logw, cfg.LogFormat); err != nil {
		return fmt.Errorf("initialize logging: %w", err)
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		_ = logger.SetLevelString("info")
	}
	if a.verbose {
		logger.SetLevel(slog.LevelDebug)
	}
	a.cfg = cfg
	a.log = logger.Get()
	return nil
}

// newService builds a service from the loaded configuration.
func (a *app) newService(opts ...service.Option) *service.Service {
	base := []service.Option{
		service.WithLogger(a.log.Named("service")),
		service.WithPreferenceStore(a.cfg.PreferenceStore, a.cfg.PreferenceDB),
		service.WithAddressSource(a.cfg.AddressSource),
		service.WithCollectTimeout(a.cfg.CollectTimeout()),
		service.WithLookupOptions(
			iplookup.WithAddressURL(a.cfg.IPAddressURL),
			iplookup.WithLocationURL(a.cfg.IPLocationURL),
			iplookup.WithTimeout(a.cfg.LookupTimeout()),
			iplookup.WithUserAgent("devinfo/"+a.version),
		),
	}
	return service.New(append(base, opts...)...)
}
