package main

import (
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/hiltonbrown/ledgerbot/internal/config"
	"github.com/hiltonbrown/ledgerbot/postgres"
)

func newMigrateCommand(cfg config.Config, log zerolog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			db, err := postgres.Open(ctx, cfg.GetDatabaseDSN())
			if err != nil {
				return errors.WithMessage(err, "opening database")
			}
			defer db.Close()

			if err := postgres.Migrate(ctx, db); err != nil {
				return errors.WithMessage(err, "applying migrations")
			}

			log.Info().Msg("migrations applied")
			return nil
		},
	}
}
