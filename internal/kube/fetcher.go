package kube

import (
	"context"
	"fmt"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	srvErrors "github.com/riotkit-org/backup-e2e/pkg/errors"
)

const RequestedBackupActionKind = "requestedbackupaction"

// RequestedBackupActionGVR identifies the backup-maker-controller action resource.
var RequestedBackupActionGVR = schema.GroupVersionResource{
	Group:    "riotkit.org",
	Version:  "v1alpha1",
	Resource: "requestedbackupactions",
}

// KubectlStatusFetcher reads action status through "kubectl get -o json".
type KubectlStatusFetcher struct {
	kubectl *Kubectl
}

func NewKubectlStatusFetcher(k *Kubectl) *KubectlStatusFetcher {
	return &KubectlStatusFetcher{kubectl: k}
}

func (f *KubectlStatusFetcher) FetchActionStatus(ctx context.Context, name, namespace string) ([]byte, error) {
	return f.kubectl.Get(ctx, RequestedBackupActionKind, name, namespace)
}

// DynamicStatusFetcher reads action status straight from the API server.
type DynamicStatusFetcher struct {
	client dynamic.Interface
}

func NewDynamicStatusFetcher(client dynamic.Interface) *DynamicStatusFetcher {
	return &DynamicStatusFetcher{client: client}
}

// NewDynamicStatusFetcherFromKubeconfig builds a client for kubeconfig (or the
// default loading rules when empty).
func NewDynamicStatusFetcherFromKubeconfig(kubeconfig string) (*DynamicStatusFetcher, error) {
	cfg, err := RestConfig(kubeconfig)
	if err != nil {
		return nil, err
	}
	client, err := dynamic.NewForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create dynamic client: %w", err)
	}
	return NewDynamicStatusFetcher(client), nil
}

func (f *DynamicStatusFetcher) FetchActionStatus(ctx context.Context, name, namespace string) ([]byte, error) {
	obj, err := f.client.Resource(RequestedBackupActionGVR).Namespace(namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		if apierrors.IsNotFound(err) {
			return nil, srvErrors.NewResourceNotFoundError(RequestedBackupActionKind, name, namespace)
		}
		return nil, err
	}
	return obj.MarshalJSON()
}

// RestConfig loads a client configuration from kubeconfig, falling back to
// the default loading rules ($KUBECONFIG, ~/.kube/config).
func RestConfig(kubeconfig string) (*rest.Config, error) {
	rules := clientcmd.NewDefaultClientConfigLoadingRules()
	if kubeconfig != "" {
		rules.ExplicitPath = kubeconfig
	}
	cfg, err := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(rules, &clientcmd.ConfigOverrides{}).ClientConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load kubeconfig: %w", err)
	}
	return cfg, nil
}
