package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"customfields/internal/auth"
	"customfields/internal/store"
)

func newTokenCmd(load configLoader) *cobra.Command {
	var (
		email string
		ttl   time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an access token for an existing user",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			db, err := store.New(cmd.Context(), cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()
			if err := db.Bootstrap(cmd.Context()); err != nil {
				return err
			}

			user, err := auth.FindUser(cmd.Context(), db, email)
			if err != nil {
				return fmt.Errorf("find user %s: %w", email, err)
			}
			token, err := auth.GenerateAccessToken(user, cfg.Auth.JWTSecret, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "admin@localhost", "user email")
	cmd.Flags().DurationVar(&ttl, "ttl", auth.AccessTokenTTL, "token lifetime")
	return cmd
}
