package kube

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/riotkit-org/backup-e2e/internal/shell"
	srvErrors "github.com/riotkit-org/backup-e2e/pkg/errors"
)

// FieldManager is passed to every kubectl apply.
const FieldManager = "backup-e2e"

// Kubectl is a thin wrapper over the kubectl and kubens CLIs.
type Kubectl struct {
	shell  *shell.Shell
	bin    string
	kubens string
	log    *zap.SugaredLogger
}

type KubectlOption func(*Kubectl)

// WithBinaries overrides the kubectl and kubens executables.
func WithBinaries(kubectl, kubens string) KubectlOption {
	return func(k *Kubectl) {
		k.bin = kubectl
		k.kubens = kubens
	}
}

func NewKubectl(sh *shell.Shell, opts ...KubectlOption) *Kubectl {
	k := &Kubectl{
		shell:  sh,
		bin:    "kubectl",
		kubens: "kubens",
		log:    zap.S().Named("kubectl"),
	}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

// Run calls kubectl with raw arguments.
func (k *Kubectl) Run(ctx context.Context, args ...string) ([]byte, error) {
	return k.shell.Exec(ctx, k.bin, args...)
}

// output calls kubectl and returns STDOUT only, for output that is parsed.
func (k *Kubectl) output(ctx context.Context, args ...string) ([]byte, error) {
	return k.shell.Output(ctx, k.bin, args...)
}

// CreateNamespace creates ns, ignoring an already existing one.
func (k *Kubectl) CreateNamespace(ctx context.Context, ns string) error {
	out, err := k.Run(ctx, "create", "ns", ns)
	if err != nil {
		if strings.Contains(string(out), "AlreadyExists") {
			k.log.Debugw("namespace already exists", "namespace", ns)
			return nil
		}
		return fmt.Errorf("failed to create namespace %q: %w", ns, err)
	}
	return nil
}

// DeleteNamespace deletes ns and waits for its finalization.
func (k *Kubectl) DeleteNamespace(ctx context.Context, ns string) error {
	if _, err := k.Run(ctx, "delete", "ns", ns, "--wait=true"); err != nil {
		return fmt.Errorf("failed to delete namespace %q: %w", ns, err)
	}
	return nil
}

// UseNamespace switches the current kubeconfig context namespace.
func (k *Kubectl) UseNamespace(ctx context.Context, ns string) error {
	if _, err := k.shell.Exec(ctx, k.kubens, ns); err != nil {
		return fmt.Errorf("failed to switch to namespace %q: %w", ns, err)
	}
	return nil
}

// Apply applies every manifest under path (file or directory).
func (k *Kubectl) Apply(ctx context.Context, path, ns string) error {
	if _, err := k.Run(ctx, "apply", "-f", path, "-n", ns, "--field-manager", FieldManager); err != nil {
		return fmt.Errorf("failed to apply %s: %w", path, err)
	}
	return nil
}

// ApplyYAML applies an in-memory document through stdin.
func (k *Kubectl) ApplyYAML(ctx context.Context, doc []byte, ns string) error {
	_, err := k.shell.ExecWithInput(ctx, bytes.NewReader(doc), k.bin,
		"apply", "-f", "-", "-n", ns, "--field-manager", FieldManager)
	if err != nil {
		return fmt.Errorf("failed to apply manifest in namespace %q: %w", ns, err)
	}
	return nil
}

// Get returns the JSON representation of a single resource.
func (k *Kubectl) Get(ctx context.Context, kind, name, ns string) ([]byte, error) {
	out, err := k.output(ctx, "get", kind, name, "-n", ns, "-o", "json")
	if err != nil {
		if isNotFound(err) {
			return nil, srvErrors.NewResourceNotFoundError(kind, name, ns)
		}
		return nil, err
	}
	return out, nil
}

// HasPodWithLabel reports whether at least one pod matches label.
func (k *Kubectl) HasPodWithLabel(ctx context.Context, label, ns string) (bool, error) {
	pods, err := k.pods(ctx, label, ns)
	if err != nil {
		return false, err
	}
	return len(pods) > 0, nil
}

// Logs returns the logs of all pods matching label.
func (k *Kubectl) Logs(ctx context.Context, label, ns string) (string, error) {
	out, err := k.Run(ctx, "logs", "-l", label, "-n", ns, "--tail=-1", "--all-containers=true")
	return string(out), err
}

// Wait runs "kubectl wait" for a resource condition, e.g.
// "jsonpath={.status.healthy}=true".
func (k *Kubectl) Wait(ctx context.Context, kind, name, ns, condition string, timeoutSeconds int) error {
	_, err := k.Run(ctx, "wait", "--for="+condition, kind, name, "-n", ns,
		"--timeout="+strconv.Itoa(timeoutSeconds)+"s")
	return err
}

// PortForward forwards localPort to remotePort of the first pod matching label.
// The returned process must be stopped by the caller.
func (k *Kubectl) PortForward(ctx context.Context, ns, label string, localPort, remotePort int) (*shell.Process, error) {
	pods, err := k.pods(ctx, label, ns)
	if err != nil {
		return nil, err
	}
	if len(pods) == 0 {
		return nil, srvErrors.NewResourceNotFoundError("pod", label, ns)
	}

	return k.shell.Start(ctx, k.bin, "port-forward", "-n", ns, pods[0],
		fmt.Sprintf("%d:%d", localPort, remotePort))
}

// pods lists the names of pods matching label. kubectl reports an empty
// match on stderr ("No resources found ...") and exits 0.
func (k *Kubectl) pods(ctx context.Context, label, ns string) ([]string, error) {
	out, err := k.output(ctx, "get", "pods", "-n", ns, "-l", label, "-o", "name")
	if err != nil {
		return nil, err
	}
	return strings.Fields(string(out)), nil
}

func isNotFound(err error) bool {
	var cmdErr *srvErrors.CommandError
	if !errors.As(err, &cmdErr) {
		return false
	}
	return bytes.Contains(cmdErr.Output, []byte("NotFound")) || bytes.Contains(cmdErr.Output, []byte("not found"))
}

// WithNamespace creates ns, makes it current, runs fn and restores the
// previous namespace. Unless persistent, the namespace is deleted afterwards.
func (k *Kubectl) WithNamespace(ctx context.Context, scope *NamespaceScope, ns string, persistent bool, fn func() error) (err error) {
	prev := scope.Current()

	if err := k.CreateNamespace(ctx, ns); err != nil {
		return err
	}
	if err := k.UseNamespace(ctx, ns); err != nil {
		return err
	}
	scope.set(ns)

	defer func() {
		if persistent {
			return
		}
		scope.set(prev)
		if delErr := k.DeleteNamespace(context.WithoutCancel(ctx), ns); delErr != nil {
			err = errors.Join(err, delErr)
		}
	}()

	return fn()
}
