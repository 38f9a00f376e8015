// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FamTrack Contributors

package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/famtrack/famtrack/internal/config"
	"github.com/famtrack/famtrack/internal/logging"
)

// Global flags available to all subcommands.
var configFile string

// serviceName labels every log record.
const serviceName = "famtrack"

// NewRootCmd creates the root command for the FamTrack CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "famtrack",
		Short: "FamTrack - shared income and expense tracking for families",
		Long: `FamTrack tracks household income and expenses for a family.
Members join a family with a six-digit code after verifying their email,
and sign in with JWT access and refresh tokens.`,
		SilenceUsage: true,
	}

	// Global flag for config file path
	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (default: XDG_CONFIG_HOME/famtrack/config.yaml)")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewRemindCmd())
	cmd.AddCommand(NewSweepCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// loadConfig reads the configuration for cmd, overlaying its flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	return config.Load(config.LoadOptions{
		Path:   configFile,
		Flags:  cmd.Flags(),
		Getenv: os.Getenv,
	})
}

// addLogFlags registers the logging flags shared by long-running and
// one-shot commands. Defaults mirror config.Default.
func addLogFlags(cmd *cobra.Command) {
	d := config.Default()
	cmd.Flags().String("log-format", d.Log.Format, "log format (json or text)")
	cmd.Flags().String("log-level", d.Log.Level, "log level (debug, info, warn, error)")
}

// setupLogging installs the default logger described by cfg.
func setupLogging(cfg *config.Config) error {
	if cfg.Log.Format != "json" && cfg.Log.Format != "text" {
		return config.Invalid("invalid log format %q: must be 'json' or 'text'", cfg.Log.Format)
	}
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	logging.SetDefault(logging.Options{
		Service: serviceName,
		Version: version,
		Format:  cfg.Log.Format,
		Level:   level,
	})
	return nil
}
