package main

import (
	"fmt"
	"time"

	"github.com/richgang/indice-killer/internal/wsgateway"
	"github.com/spf13/cobra"
)

func newTokenCmd(load loadFunc) *cobra.Command {
	var (
		role   string
		name   string
		expiry time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for the API and WebSocket",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if cfg.Auth.JWTSecret == "" {
				return fmt.Errorf("missing secret: set JWT_SECRET")
			}
			if expiry <= 0 {
				expiry = cfg.Auth.JWTExpiry
			}

			auth := wsgateway.NewAuthManager(cfg.Auth.JWTSecret, expiry)
			token, err := auth.IssueToken(role, name)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}

	cmd.Flags().StringVar(&role, "role", wsgateway.RoleClient, "token role (owner|client)")
	cmd.Flags().StringVar(&name, "name", "operator", "display name carried in the token")
	cmd.Flags().DurationVar(&expiry, "expiry", 0, "token lifetime (defaults to JWT_EXPIRY)")
	return cmd
}
