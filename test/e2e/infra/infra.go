package infra

import "context"

// InfraManager abstracts the cluster lifecycle for e2e tests.
// k3d-based: creates a local cluster with an image registry.
// External: no-op, the cluster and registry are managed outside the suite.
type InfraManager interface {
	StartCluster(ctx context.Context) error
	StopCluster(ctx context.Context) error
	// EnsureRegistryHost makes the registry alias resolvable from the host.
	EnsureRegistryHost(ctx context.Context) error
	// Kubeconfig is the path handed to kubectl and client-go. Empty means
	// the default loading rules.
	Kubeconfig() string
}
