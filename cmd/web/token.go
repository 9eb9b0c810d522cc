package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"oitm.org/internal/auth"
	"oitm.org/internal/config"
)

// tokenCmd mints a credential signed with OITM_AUTH_SECRET, for local work
// against a gateway without a running backend login.
func tokenCmd() *cobra.Command {
	var (
		userID string
		ttl    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token <login-name>",
		Short: "Mint a development session token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.AuthSecret == "" {
				return errors.New(config.EnvAuthSecret + " is required")
			}
			issuer, err := auth.NewIssuer([]byte(cfg.AuthSecret))
			if err != nil {
				return err
			}
			tok, err := issuer.GenerateToken(auth.Identity{LoginName: args[0], UserID: userID}, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user-id", "", "user_id claim")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")

	return cmd
}
