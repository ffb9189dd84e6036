package main

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/hiltonbrown/ledgerbot/internal/config"
)

func newRootCommand(cfg config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "ledgerbot",
		Short:         "Xero connection and synchronization service",
		Long:          "Ledgerbot keeps Xero OAuth connections alive and mirrors accounting data into Postgres.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	log := newLogger(cfg)

	cmd.AddCommand(newConnectCommand(cfg, log))
	cmd.AddCommand(newSyncCommand(cfg, log))
	cmd.AddCommand(newEnqueueCommand(cfg, log))
	cmd.AddCommand(newWorkerCommand(cfg, log))
	cmd.AddCommand(newMigrateCommand(cfg, log))

	return cmd
}

func newLogger(cfg config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.GetLogLevel())
	if err != nil {
		level = zerolog.InfoLevel
	}

	var out = zerolog.New(os.Stderr)
	if cfg.GetEnv() == "DEV" {
		out = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}

	return out.Level(level).With().Timestamp().Str("app", cfg.GetAppName()).Logger()
}
