package service

import (
	"context"

	"k8s.io/apimachinery/pkg/runtime"

	"github.com/riotkit-org/backup-e2e/internal/manifests"
)

// Applier submits rendered manifests to the cluster. *kube.Kubectl is the
// production implementation.
type Applier interface {
	ApplyYAML(ctx context.Context, doc []byte, ns string) error
}

func apply(ctx context.Context, kube Applier, ns string, objs ...runtime.Object) error {
	doc, err := manifests.Render(objs...)
	if err != nil {
		return err
	}
	return kube.ApplyYAML(ctx, doc, ns)
}
