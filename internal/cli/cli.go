// Package cli holds the cobra plumbing shared by the station binaries.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/relabs-tech/env_station/internal/config"
)

// DefaultConfigPath is read when --config is not given.
const DefaultConfigPath = "station_config.txt"

// RunFunc is the body of a binary once configuration is loaded.
type RunFunc func(ctx context.Context, cfg *config.Config) error

type options struct {
	configPath string
	debug      bool
}

// NewRoot builds a root command with --config and --debug. run is called
// with a context cancelled on SIGINT/SIGTERM.
func NewRoot(use, short string, run RunFunc) *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:           use,
		Short:         short,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			log.Infof("starting %s", use)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg)
		},
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", DefaultConfigPath, "KEY=VALUE configuration file")
	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "debug logging, overrides LOG_LEVEL")
	cmd.AddCommand(newConfigCmd(opts))
	return cmd
}

// newConfigCmd prints the effective configuration as YAML.
func newConfigCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			out, err := cfg.YAML()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}

func (o *options) load() (*config.Config, error) {
	if err := config.InitGlobal(o.configPath); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	cfg := config.Get()

	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	if o.debug {
		level = log.DebugLevel
	}
	log.SetLevel(level)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	return cfg, nil
}

// Execute runs cmd and exits non-zero on error.
func Execute(cmd *cobra.Command) {
	if err := cmd.Execute(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
