package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	v1 "github.com/riotkit-org/backup-e2e/api/v1"
	"github.com/riotkit-org/backup-e2e/internal/manifests"
	"github.com/riotkit-org/backup-e2e/internal/shell"
	"github.com/riotkit-org/backup-e2e/pkg/repository"
)

type ServerOption func(*ServerSvc)

// WithPasswordEncoder overrides the binary used as "<bin> --encode-password".
func WithPasswordEncoder(bin string) ServerOption {
	return func(s *ServerSvc) {
		s.encoder = bin
	}
}

// ServerSvc drives the backup repository: accounts and collections are
// declared as custom resources, authentication goes through its HTTP API.
type ServerSvc struct {
	client    *repository.Client
	kube      Applier
	shell     *shell.Shell
	encoder   string
	namespace string
	log       *zap.SugaredLogger
}

func NewServerSvc(baseURL string, kube Applier, sh *shell.Shell, namespace string, opts ...ServerOption) *ServerSvc {
	zap.S().Info("Initializing ServerSvc...")
	s := &ServerSvc{
		client:    repository.NewClient(baseURL),
		kube:      kube,
		shell:     sh,
		encoder:   "br",
		namespace: namespace,
		log:       zap.S().Named("server_svc"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// WithToken returns a copy of the service whose API calls carry token.
func (s *ServerSvc) WithToken(token string) *ServerSvc {
	c := *s
	c.client = s.client.Authenticated(token)
	return &c
}

// Login returns an access token for username.
func (s *ServerSvc) Login(ctx context.Context, username, password string) (string, error) {
	return s.client.Login(ctx, username, password)
}

func (s *ServerSvc) WhoAmI(ctx context.Context) (v1.WhoAmIData, error) {
	return s.client.WhoAmI(ctx)
}

// CreateUser declares a system administrator account. The password is
// encoded by the repository's own CLI before being stored in a Secret.
func (s *ServerSvc) CreateUser(ctx context.Context, name, email, password string) error {
	out, err := s.shell.Output(ctx, s.encoder, "--encode-password", password)
	if err != nil {
		return fmt.Errorf("failed to encode password of %s: %w", name, err)
	}

	user := manifests.User{
		Name:            name,
		Email:           email,
		EncodedPassword: strings.TrimSpace(string(out)),
		About:           "Some user",
	}
	secret, err := manifests.UserSecret(user, s.namespace)
	if err != nil {
		return err
	}

	s.log.Infow("creating user", "name", name, "namespace", s.namespace)
	return apply(ctx, s.kube, s.namespace, manifests.BackupUser(user, s.namespace), secret)
}

// CreateCollection declares a collection together with the Secret guarding
// its health endpoint.
func (s *ServerSvc) CreateCollection(ctx context.Context, collection manifests.Collection) error {
	secret, err := manifests.CollectionHealthSecret(s.namespace)
	if err != nil {
		return err
	}

	s.log.Infow("creating collection", "name", collection.Name, "namespace", s.namespace)
	return apply(ctx, s.kube, s.namespace, secret, manifests.BackupCollection(collection, s.namespace))
}
