package main

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/hiltonbrown/ledgerbot/internal/config"
	"github.com/hiltonbrown/ledgerbot/worker"
)

func newEnqueueCommand(cfg config.Config, log zerolog.Logger) *cobra.Command {
	var userID, tenantID string

	cmd := &cobra.Command{
		Use:   "enqueue",
		Short: "Queue a sync pass for a background worker",
		RunE: func(cmd *cobra.Command, _ []string) error {
			client := worker.NewClient(redisOpt(cfg), log)
			defer client.Close()

			return client.EnqueueSync(cmd.Context(), userID, tenantID)
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "user the connection belongs to (required)")
	cmd.Flags().StringVar(&tenantID, "tenant", "", "tenant to sync (empty means the user's single active connection)")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}
