package main

import (
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/hiltonbrown/ledgerbot/internal/config"
)

func newSyncCommand(cfg config.Config, log zerolog.Logger) *cobra.Command {
	var userID, tenantID string

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run one sync pass for a connection in-process",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			a, err := newApp(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.syncer.SyncTenant(ctx, userID, tenantID)
			if err != nil {
				return err
			}

			out, err := json.MarshalIndent(result, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))

			if result.Failed() {
				return fmt.Errorf("sync finished with %d entity failures", len(result.Errors))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "user the connection belongs to (required)")
	cmd.Flags().StringVar(&tenantID, "tenant", "", "tenant to sync (empty means the user's single active connection)")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}
