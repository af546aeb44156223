// envmon runs the environmental safety monitor and its desktop panel.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/itohio/envmon/pkg/config"
	"github.com/itohio/envmon/pkg/logging"
)

var version = "dev"

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configFile string
	logLevel   string
	logFormat  string
}

func main() {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:          "envmon",
		Short:        "Environmental safety monitor",
		Long:         "envmon samples gas, noise, light, climate, motion and GPS sensors,\nraises a latching alarm when gas or noise crosses its threshold and\nserves the readings to the local network.",
		Version:      version,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&flags.configFile, "config", "c", "config.yaml", "Configuration file path")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Log level override (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flags.logFormat, "log-format", "", "Log format override (json, console)")

	root.AddCommand(
		newServeCmd(flags),
		newPanelCmd(flags),
		newPortsCmd(),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := root.ExecuteContext(ctx)
	cancel()
	if err != nil {
		os.Exit(1)
	}
}

// load reads the configuration file and applies the logging overrides.
func (f *globalFlags) load() (*config.Config, error) {
	cfg, err := config.Load(f.configFile)
	if err != nil {
		return nil, err
	}
	if f.logLevel != "" {
		cfg.Log.Level = f.logLevel
	}
	if f.logFormat != "" {
		cfg.Log.Format = f.logFormat
	}
	return cfg, nil
}

func newLogger(cfg *config.Config, service string) (*zap.Logger, error) {
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format, service)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return logger, nil
}
