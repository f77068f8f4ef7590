package infra

import (
	"context"
	"crypto/rand"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/riotkit-org/backup-e2e/internal/handlers"
	"github.com/riotkit-org/backup-e2e/internal/server"
	"github.com/riotkit-org/backup-e2e/internal/services"
)

// RepositoryServer is an in-process stand-in for the backup repository
// authentication API. It signs HS256 tokens with a random secret generated
// at startup.
type RepositoryServer struct {
	server   *server.Server
	accounts *services.Accounts
	cancel   context.CancelFunc
	done     chan error
}

func NewRepositoryServer(addr string) (*RepositoryServer, error) {
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("generating secret: %w", err)
	}
	accounts := services.NewAccounts(secret, 24*time.Hour)

	srv, err := server.NewServer(addr, func(router *gin.RouterGroup) {
		handlers.New(accounts).Register(router)
	})
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &RepositoryServer{
		server:   srv,
		accounts: accounts,
		cancel:   cancel,
		done:     make(chan error, 1),
	}
	go func() {
		r.done <- srv.Start(ctx)
	}()
	return r, nil
}

// AddUser registers an account able to log in.
func (r *RepositoryServer) AddUser(username, email, password string, permissions ...string) {
	r.accounts.Add(services.Account{
		Username:    username,
		Email:       email,
		Password:    password,
		Permissions: permissions,
	})
}

func (r *RepositoryServer) URL() string {
	return r.server.URL()
}

// Stop shuts the server down and waits for it.
func (r *RepositoryServer) Stop() error {
	r.cancel()
	return <-r.done
}
