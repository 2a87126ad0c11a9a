package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"video-share-service/internal/auth"
)

// newTokenCommand mints a bearer token signed with the configured secret.
func newTokenCommand(load configLoader) *cobra.Command {
	var userID, username string
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an API token for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID == "" {
				return errors.New("--user-id is required")
			}
			cfg, err := load()
			if err != nil {
				return err
			}
			token, err := auth.NewJWTService(cfg.JWT.Secret, ttl).GenerateToken(userID, username)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user-id", "", "User id placed in the token")
	cmd.Flags().StringVar(&username, "username", "", "Username placed in the token")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")
	return cmd
}
