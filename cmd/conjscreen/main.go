package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/star/conjscreen/internal/config"
	"github.com/star/conjscreen/internal/logging"
	"github.com/star/conjscreen/internal/screening"
)

// Exit codes.
const (
	exitFailure = 1
	exitUsage   = 2
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(exitCode(err))
	}
}

// exitCode maps configuration and target errors to a usage exit status.
func exitCode(err error) int {
	if errors.Is(err, screening.ErrInvalidConfiguration) || errors.Is(err, screening.ErrTargetNotFound) {
		return exitUsage
	}
	return exitFailure
}

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	logLevel   string
	logFormat  string
}

func rootCmd() *cobra.Command {
	var gf globalFlags

	cmd := &cobra.Command{
		Use:           "conjscreen",
		Short:         "Screen a satellite catalog for close approaches to a target",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&gf.configPath, "config", "", "YAML run file")
	cmd.PersistentFlags().StringVar(&gf.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&gf.logFormat, "log-format", "", "Log format (json, text)")

	cmd.AddCommand(screenCmd(&gf))
	cmd.AddCommand(serveCmd(&gf))
	cmd.AddCommand(catalogCmd(&gf))
	return cmd
}

// setup loads configuration and builds the logger. Logs go to stderr so stdout stays
// clean for report output.
func setup(gf *globalFlags) (config.Config, *slog.Logger, error) {
	cfg, err := config.Load(gf.configPath)
	if err != nil {
		return cfg, nil, fmt.Errorf("%w: %v", screening.ErrInvalidConfiguration, err)
	}
	if gf.logLevel != "" {
		cfg.LogLevel = gf.logLevel
	}
	if gf.logFormat != "" {
		cfg.LogFormat = gf.logFormat
	}

	logger, err := logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return cfg, nil, fmt.Errorf("%w: %v", screening.ErrInvalidConfiguration, err)
	}
	slog.SetDefault(logger)
	return cfg, logger, nil
}
