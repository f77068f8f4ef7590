package environment

import (
	"context"
	"fmt"
	"io"
	"net"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"github.com/riotkit-org/backup-e2e/internal/config"
	"github.com/riotkit-org/backup-e2e/internal/kube"
	"github.com/riotkit-org/backup-e2e/internal/shell"
)

// Checkouter prepares a source tree of a dependency at a given revision.
type Checkouter interface {
	Checkout(ctx context.Context, url, version string) (string, error)
}

type Deployer interface {
	Deploy(ctx context.Context, dir, namespace string) error
}

// Cluster is the part of kube.Kubectl needed to install the applications.
type Cluster interface {
	WithNamespace(ctx context.Context, scope *kube.NamespaceScope, ns string, persistent bool, fn func() error) error
	Apply(ctx context.Context, path, ns string) error
	PortForward(ctx context.Context, ns, label string, localPort, remotePort int) (*shell.Process, error)
	Logs(ctx context.Context, label, ns string) (string, error)
}

type Option func(*Provisioner)

// WithRetryWait sets the pause between two deploy attempts.
func WithRetryWait(d time.Duration) Option {
	return func(p *Provisioner) {
		p.retryWait = d
	}
}

// WithReadyTimeout bounds the wait for the forwarded server port.
func WithReadyTimeout(d time.Duration) Option {
	return func(p *Provisioner) {
		p.readyTimeout = d
	}
}

// Provisioner installs the backup repository and the backup maker controller
// into the cluster exactly once, however many specs ask for it, and keeps a
// port-forward to the repository open until Stop.
type Provisioner struct {
	cfg       *config.Configuration
	cluster   Cluster
	scope     *kube.NamespaceScope
	checkouts Checkouter
	deployer  Deployer

	retryWait    time.Duration
	readyTimeout time.Duration

	once    sync.Once
	err     error
	mu      sync.Mutex
	forward *shell.Process

	log *zap.SugaredLogger
}

func NewProvisioner(cfg *config.Configuration, cluster Cluster, scope *kube.NamespaceScope, checkouts Checkouter, deployer Deployer, opts ...Option) *Provisioner {
	p := &Provisioner{
		cfg:          cfg,
		cluster:      cluster,
		scope:        scope,
		checkouts:    checkouts,
		deployer:     deployer,
		retryWait:    10 * time.Second,
		readyTimeout: time.Minute,
		log:          zap.S().Named("environment"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Provision deploys both applications and forwards the repository port.
// Only the first call does the work, later calls return its result.
func (p *Provisioner) Provision(ctx context.Context) error {
	p.once.Do(func() {
		p.err = p.provision(ctx)
	})
	return p.err
}

func (p *Provisioner) provision(ctx context.Context) error {
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, p.deploy(ctx)
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(p.retryWait)),
		backoff.WithMaxTries(uint(p.cfg.DeployRetries)+1),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, d time.Duration) {
			p.log.Warnw("deploy failed, retrying", "error", err, "wait", d)
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to deploy the backup repository and controller: %w", err)
	}

	// the forward outlives the caller's context, it is closed by Stop
	forward, err := p.cluster.PortForward(context.WithoutCancel(ctx), p.cfg.Server.Namespace, p.cfg.Server.PodLabel,
		p.cfg.Server.LocalPort, p.cfg.Server.RemotePort)
	if err != nil {
		return fmt.Errorf("failed to forward the backup repository port: %w", err)
	}
	p.mu.Lock()
	p.forward = forward
	p.mu.Unlock()

	return p.waitForServer(ctx)
}

func (p *Provisioner) deploy(ctx context.Context) error {
	server, controller := p.cfg.Server, p.cfg.Controller

	serverDir, err := p.checkouts.Checkout(ctx, server.RepositoryURL, p.cfg.Release.ServerVersion)
	if err != nil {
		return err
	}

	return p.cluster.WithNamespace(ctx, p.scope, server.Namespace, true, func() error {
		p.log.Infow("deploying backup repository", "version", p.cfg.Release.ServerVersion, "namespace", server.Namespace)
		if err := p.deployer.Deploy(ctx, serverDir, server.Namespace); err != nil {
			return err
		}

		controllerDir, err := p.checkouts.Checkout(ctx, controller.RepositoryURL, p.cfg.Release.ControllerVersion)
		if err != nil {
			return err
		}

		return p.cluster.WithNamespace(ctx, p.scope, controller.Namespace, true, func() error {
			p.log.Infow("deploying backup maker controller", "version", p.cfg.Release.ControllerVersion, "namespace", controller.Namespace)
			if err := p.cluster.Apply(ctx, filepath.Join(controllerDir, controller.CRDPath), controller.Namespace); err != nil {
				return err
			}
			return p.deployer.Deploy(ctx, controllerDir, controller.Namespace)
		})
	})
}

func (p *Provisioner) waitForServer(ctx context.Context) error {
	addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(p.cfg.Server.LocalPort))
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		conn, err := (&net.Dialer{}).DialContext(ctx, "tcp", addr)
		if err != nil {
			return struct{}{}, err
		}
		return struct{}{}, conn.Close()
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(500*time.Millisecond)),
		backoff.WithMaxElapsedTime(p.readyTimeout),
	)
	if err != nil {
		return fmt.Errorf("backup repository is not reachable at %s: %w", addr, err)
	}
	p.log.Infow("backup repository reachable", "address", addr)
	return nil
}

// DumpLogs writes the logs of both applications to w. Failures are written
// instead of returned, the dump is a diagnostic aid only.
func (p *Provisioner) DumpLogs(ctx context.Context, w io.Writer) {
	targets := []struct{ label, ns string }{
		{p.cfg.Server.PodLabel, p.cfg.Server.Namespace},
		{p.cfg.Controller.PodLabel, p.cfg.Controller.Namespace},
	}
	for _, t := range targets {
		logs, err := p.cluster.Logs(ctx, t.label, t.ns)
		if err != nil {
			fmt.Fprintf(w, "cannot read logs of %s in %s: %v\n", t.label, t.ns, err)
			continue
		}
		fmt.Fprintf(w, "=== %s (%s) ===\n%s\n", t.label, t.ns, logs)
	}
}

// Stop closes the port-forward. The applications stay installed.
func (p *Provisioner) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.forward == nil {
		return nil
	}
	err := p.forward.Stop()
	p.forward = nil
	return err
}
