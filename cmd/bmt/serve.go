package main

import (
	"crypto/rand"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/riotkit-org/backup-e2e/internal/handlers"
	"github.com/riotkit-org/backup-e2e/internal/server"
	"github.com/riotkit-org/backup-e2e/internal/services"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a local stand-in of the repository authentication API",
		Long: `Serve the login, whoami and health endpoints of the backup repository
with a single account. Useful to exercise clients without a cluster.

Example:
  bmt serve --addr 127.0.0.1:8070 --username admin --password admin`,
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, _ := cmd.Flags().GetString("addr")
			username, _ := cmd.Flags().GetString("username")
			password, _ := cmd.Flags().GetString("password")
			email, _ := cmd.Flags().GetString("email")
			ttl, _ := cmd.Flags().GetDuration("token-ttl")

			secret := make([]byte, 32)
			if _, err := rand.Read(secret); err != nil {
				return fmt.Errorf("generating secret: %w", err)
			}
			accounts := services.NewAccounts(secret, ttl)
			accounts.Add(services.Account{
				Username:    username,
				Email:       email,
				Password:    password,
				Permissions: []string{"systemAdmin"},
			})

			srv, err := server.NewServer(addr, func(router *gin.RouterGroup) {
				handlers.New(accounts).Register(router)
			})
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			success(cmd, "serving on %s", srv.URL())
			return srv.Start(ctx)
		},
	}

	cmd.Flags().String("addr", "127.0.0.1:8070", "Listen address")
	cmd.Flags().String("username", "admin", "Account username")
	cmd.Flags().String("password", "admin", "Account password")
	cmd.Flags().String("email", "admin@riotkit.org", "Account email")
	cmd.Flags().Duration("token-ttl", 24*time.Hour, "Token lifetime")

	return cmd
}
