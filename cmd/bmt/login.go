package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/riotkit-org/backup-e2e/pkg/repository"
)

func loginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in to the backup repository and print the token",
		Long: `Log in to the forwarded backup repository and print the JWT, which
can be passed to 'kubectl create secret' or to the API as a Bearer token.

Example:
  export TOKEN=$(bmt login --username admin --password admin)`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			username, _ := cmd.Flags().GetString("username")
			password, _ := cmd.Flags().GetString("password")
			url, _ := cmd.Flags().GetString("url")
			if url == "" {
				url = cfg.ServerURL()
			}

			token, err := repository.NewClient(url).Login(cmd.Context(), username, password)
			if err != nil {
				failure(cmd, "login as %s failed", username)
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringP("username", "u", "admin", "Repository username")
	cmd.Flags().StringP("password", "p", "admin", "Repository password")
	cmd.Flags().String("url", "", "Repository URL, defaults to the forwarded address")

	return cmd
}
