package main

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/oauth2"

	"github.com/hiltonbrown/ledgerbot/internal/config"
)

// newConnectCommand registers a connection from tokens obtained out of band
// (the interactive authorization flow lives in the web application; this is
// the operator path for seeding or repairing a connection).
func newConnectCommand(cfg config.Config, log zerolog.Logger) *cobra.Command {
	var userID, tenantID, tenantName, accessToken, refreshToken string

	cmd := &cobra.Command{
		Use:   "connect",
		Short: "Register a tenant connection from an existing token pair",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			a, err := newApp(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()

			tok := &oauth2.Token{AccessToken: accessToken, RefreshToken: refreshToken}
			conn, err := a.creds.Register(ctx, userID, tenantID, tenantName, tok, strings.Fields(cfg.GetXeroScopes()))
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "connection %s registered for tenant %s (expires %s)\n",
				conn.ID, conn.TenantID, conn.ExpiresAt.Format("2006-01-02 15:04:05 MST"))
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "user the connection belongs to (required)")
	cmd.Flags().StringVar(&tenantID, "tenant", "", "tenant id from the provider's connections endpoint (required)")
	cmd.Flags().StringVar(&tenantName, "tenant-name", "", "human-readable tenant name")
	cmd.Flags().StringVar(&accessToken, "access-token", "", "current access token (required)")
	cmd.Flags().StringVar(&refreshToken, "refresh-token", "", "current refresh token (required)")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("tenant")
	_ = cmd.MarkFlagRequired("access-token")
	_ = cmd.MarkFlagRequired("refresh-token")

	return cmd
}
