package infra

import "context"

// ExternalInfraManager implements InfraManager for clusters managed outside
// the suite (CI provided cluster, existing k3d, kind, ...).
type ExternalInfraManager struct {
	kubeconfig string
}

func NewExternalInfraManager(kubeconfig string) *ExternalInfraManager {
	return &ExternalInfraManager{kubeconfig: kubeconfig}
}

func (e *ExternalInfraManager) StartCluster(context.Context) error       { return nil }
func (e *ExternalInfraManager) StopCluster(context.Context) error        { return nil }
func (e *ExternalInfraManager) EnsureRegistryHost(context.Context) error { return nil }
func (e *ExternalInfraManager) Kubeconfig() string                       { return e.kubeconfig }
