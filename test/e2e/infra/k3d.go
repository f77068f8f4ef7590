package infra

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"net"
	"os"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/riotkit-org/backup-e2e/internal/config"
	"github.com/riotkit-org/backup-e2e/internal/shell"
)

const defaultHostsFile = "/etc/hosts"

type K3dOption func(*K3dInfraManager)

// WithK3dBinaries overrides the docker, k3d and sudo executables.
func WithK3dBinaries(docker, k3d, sudo string) K3dOption {
	return func(m *K3dInfraManager) {
		m.docker, m.k3d, m.sudo = docker, k3d, sudo
	}
}

func WithHostsFile(path string) K3dOption {
	return func(m *K3dInfraManager) {
		m.hostsFile = path
	}
}

// K3dInfraManager runs the suite against a local k3d cluster with a
// registry created alongside it. An already running cluster is reused.
type K3dInfraManager struct {
	cluster    config.Cluster
	shell      *shell.Shell
	docker     string
	k3d        string
	sudo       string
	hostsFile  string
	kubeconfig string
	log        *zap.SugaredLogger
}

func NewK3dInfraManager(cluster config.Cluster, sh *shell.Shell, opts ...K3dOption) *K3dInfraManager {
	m := &K3dInfraManager{
		cluster:    cluster,
		shell:      sh,
		docker:     "docker",
		k3d:        "k3d",
		sudo:       "sudo",
		hostsFile:  defaultHostsFile,
		kubeconfig: cluster.Kubeconfig,
		log:        zap.S().Named("k3d"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *K3dInfraManager) StartCluster(ctx context.Context) error {
	running, err := m.isRunning(ctx)
	if err != nil {
		return err
	}

	if running {
		m.log.Infow("reusing running cluster", "name", m.cluster.Name)
	} else {
		registry, err := registryCreateArg(m.cluster.Registry)
		if err != nil {
			return err
		}
		m.log.Infow("creating cluster", "name", m.cluster.Name, "registry", registry)
		if _, err := m.shell.Exec(ctx, m.k3d, "cluster", "create", m.cluster.Name, "--registry-create", registry); err != nil {
			return fmt.Errorf("failed to create k3d cluster %s: %w", m.cluster.Name, err)
		}
	}

	out, err := m.shell.Output(ctx, m.k3d, "kubeconfig", "merge", m.cluster.Name)
	if err != nil {
		return fmt.Errorf("failed to merge kubeconfig of %s: %w", m.cluster.Name, err)
	}
	if m.kubeconfig == "" {
		m.kubeconfig = lastLine(out)
	}
	return nil
}

func (m *K3dInfraManager) StopCluster(ctx context.Context) error {
	if m.cluster.Keep {
		m.log.Infow("keeping cluster", "name", m.cluster.Name)
		return nil
	}
	_, err := m.shell.Exec(ctx, m.k3d, "cluster", "delete", m.cluster.Name)
	return err
}

// EnsureRegistryHost appends "127.0.0.1 <alias>" to the hosts file through
// sudo unless the alias is already listed.
func (m *K3dInfraManager) EnsureRegistryHost(ctx context.Context) error {
	content, err := os.ReadFile(m.hostsFile)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", m.hostsFile, err)
	}
	if hasHost(content, m.cluster.RegistryHost) {
		return nil
	}

	m.log.Infow("adding registry alias", "host", m.cluster.RegistryHost, "file", m.hostsFile)
	line := "127.0.0.1 " + m.cluster.RegistryHost
	_, err = m.shell.Exec(ctx, m.sudo, "/bin/bash", "-c", fmt.Sprintf("echo '%s' >> %s", line, m.hostsFile))
	return err
}

func (m *K3dInfraManager) Kubeconfig() string {
	return m.kubeconfig
}

func (m *K3dInfraManager) isRunning(ctx context.Context) (bool, error) {
	out, err := m.shell.Output(ctx, m.docker, "ps", "--format", "{{.Names}}")
	if err != nil {
		return false, fmt.Errorf("failed to list containers: %w", err)
	}
	return slices.Contains(strings.Fields(string(out)), "k3d-"+m.cluster.Name+"-server-0"), nil
}

// registryCreateArg turns "bmt-registry:5000" into "bmt-registry:0.0.0.0:5000".
func registryCreateArg(registry string) (string, error) {
	host, port, err := net.SplitHostPort(registry)
	if err != nil {
		return "", fmt.Errorf("invalid registry %q: %w", registry, err)
	}
	return host + ":0.0.0.0:" + port, nil
}

func hasHost(hosts []byte, host string) bool {
	scanner := bufio.NewScanner(bytes.NewReader(hosts))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 || strings.HasPrefix(fields[0], "#") {
			continue
		}
		if slices.Contains(fields[1:], host) {
			return true
		}
	}
	return false
}

func lastLine(out []byte) string {
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
