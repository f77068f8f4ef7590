package kube_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
	dynamicfake "k8s.io/client-go/dynamic/fake"

	"github.com/riotkit-org/backup-e2e/internal/kube"
	"github.com/riotkit-org/backup-e2e/internal/models"
	"github.com/riotkit-org/backup-e2e/internal/shell"
	srvErrors "github.com/riotkit-org/backup-e2e/pkg/errors"
)

func TestKube(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Kube Suite")
}

const fakeKubectl = `#!/bin/bash
echo "kubectl $*" >> "$FAKE_LOG"
case "$1 $2" in
  "create ns")
    if [ "$3" = "existing" ]; then
      echo 'Error from server (AlreadyExists): namespaces "existing" already exists'
      exit 1
    fi
    echo "namespace/$3 created" ;;
  "delete ns") echo "namespace \"$3\" deleted" ;;
  "apply -f")
    if [ "$3" = "-" ]; then cat > "$FAKE_STDIN"; fi
    echo "configured" ;;
  "get requestedbackupaction")
    if [ "$3" = "missing" ]; then
      echo 'Error from server (NotFound): requestedbackupactions.riotkit.org "missing" not found' >&2
      exit 1
    fi
    echo 'Warning: riotkit.org/v1alpha1 RequestedBackupAction is deprecated' >&2
    echo '{"status": {"healthy": true, "childrenResourcesHealth": [{"running": false}]}}' ;;
  "get pods")
    if [ "$6" = "app=none" ]; then
      echo "No resources found in $4 namespace." >&2
      exit 0
    fi
    echo "pod/server-0" ;;
  "port-forward -n") echo "Forwarding from 127.0.0.1:$5"; sleep 30 ;;
  *) echo "unexpected: $*"; exit 2 ;;
esac
`

const fakeKubens = `#!/bin/bash
echo "kubens $*" >> "$FAKE_LOG"
`

func writeExecutable(dir, name, content string) string {
	path := filepath.Join(dir, name)
	Expect(os.WriteFile(path, []byte(content), 0o755)).To(Succeed())
	return path
}

var _ = Describe("Kubectl", func() {
	var (
		ctx     context.Context
		dir     string
		logPath string
		stdin   string
		kubectl *kube.Kubectl
	)

	calls := func() []string {
		data, err := os.ReadFile(logPath)
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		Expect(err).NotTo(HaveOccurred())
		return strings.Split(strings.TrimSpace(string(data)), "\n")
	}

	BeforeEach(func() {
		ctx = context.Background()
		dir = GinkgoT().TempDir()
		logPath = filepath.Join(dir, "calls.log")
		stdin = filepath.Join(dir, "stdin.yaml")

		sh := shell.New(dir, "FAKE_LOG="+logPath, "FAKE_STDIN="+stdin)
		kubectl = kube.NewKubectl(sh, kube.WithBinaries(
			writeExecutable(dir, "kubectl", fakeKubectl),
			writeExecutable(dir, "kubens", fakeKubens),
		))
	})

	Context("CreateNamespace", func() {
		It("should ignore an already existing namespace", func() {
			Expect(kubectl.CreateNamespace(ctx, "existing")).To(Succeed())
			Expect(calls()).To(Equal([]string{"kubectl create ns existing"}))
		})
	})

	Context("ApplyYAML", func() {
		It("should stream the document through stdin", func() {
			doc := []byte("apiVersion: v1\nkind: Secret\n")

			Expect(kubectl.ApplyYAML(ctx, doc, "backups")).To(Succeed())

			written, err := os.ReadFile(stdin)
			Expect(err).NotTo(HaveOccurred())
			Expect(written).To(Equal(doc))
			Expect(calls()).To(ConsistOf("kubectl apply -f - -n backups --field-manager " + kube.FieldManager))
		})
	})

	Context("Get", func() {
		It("should map kubectl NotFound output to ResourceNotFoundError", func() {
			_, err := kubectl.Get(ctx, kube.RequestedBackupActionKind, "missing", "subject")
			Expect(srvErrors.IsResourceNotFoundError(err)).To(BeTrue())
		})
	})

	Context("HasPodWithLabel", func() {
		// Given kubectl reporting "No resources found" on stderr with exit code 0
		// When checking for a pod
		// Then the message is not mistaken for a pod
		It("should report false when no pod is listed", func() {
			present, err := kubectl.HasPodWithLabel(ctx, "app=none", "backups")
			Expect(err).NotTo(HaveOccurred())
			Expect(present).To(BeFalse())
		})

		It("should report true when a pod is listed", func() {
			present, err := kubectl.HasPodWithLabel(ctx, "app=backup-maker-controller", "backups")
			Expect(err).NotTo(HaveOccurred())
			Expect(present).To(BeTrue())
		})
	})

	Context("WithNamespace", func() {
		// Given a temporary namespace
		// When fn runs inside it
		// Then the namespace is current during fn, deleted and restored afterwards
		It("should scope a temporary namespace", func() {
			scope := kube.NewNamespaceScope()
			var inside string

			err := kubectl.WithNamespace(ctx, scope, "db", false, func() error {
				inside = scope.Current()
				return nil
			})

			Expect(err).NotTo(HaveOccurred())
			Expect(inside).To(Equal("db"))
			Expect(scope.Current()).To(Equal(kube.DefaultNamespace))
			Expect(calls()).To(Equal([]string{
				"kubectl create ns db",
				"kubens db",
				"kubectl delete ns db --wait=true",
			}))
		})

		It("should keep a persistent namespace", func() {
			scope := kube.NewNamespaceScope()

			Expect(kubectl.WithNamespace(ctx, scope, "backups", true, func() error { return nil })).To(Succeed())

			Expect(scope.Current()).To(Equal("backups"))
			Expect(calls()).NotTo(ContainElement(HavePrefix("kubectl delete")))
		})

		It("should delete the namespace even when fn fails", func() {
			scope := kube.NewNamespaceScope()
			boom := errors.New("boom")

			err := kubectl.WithNamespace(ctx, scope, "db", false, func() error { return boom })

			Expect(err).To(MatchError(boom))
			Expect(calls()).To(ContainElement("kubectl delete ns db --wait=true"))
		})
	})

	Context("PortForward", func() {
		It("should forward to the first matching pod", func() {
			p, err := kubectl.PortForward(ctx, "backups", "app.kubernetes.io/name=backup-repository-server", 8070, 8080)
			Expect(err).NotTo(HaveOccurred())
			defer p.Stop()

			Eventually(calls, 2*time.Second, 20*time.Millisecond).Should(
				ContainElement("kubectl port-forward -n backups pod/server-0 8070:8080"))
		})

		// Given kubectl reporting "No resources found" on stderr with exit code 0
		// When forwarding to a label without pods
		// Then no port-forward is started
		It("should fail when no pod matches", func() {
			_, err := kubectl.PortForward(ctx, "backups", "app=none", 8070, 8080)

			Expect(srvErrors.IsResourceNotFoundError(err)).To(BeTrue())
			Expect(calls()).NotTo(ContainElement(HavePrefix("kubectl port-forward")))
		})
	})

	Context("KubectlStatusFetcher", func() {
		// Given kubectl printing a deprecation warning on stderr
		// When fetching an action
		// Then the record holds the JSON only
		It("should return a parseable action record", func() {
			raw, err := kube.NewKubectlStatusFetcher(kubectl).FetchActionStatus(ctx, "backup-1", "subject")
			Expect(err).NotTo(HaveOccurred())
			Expect(string(raw)).To(HavePrefix("{"))

			status, err := models.ParseActionStatus(raw)
			Expect(err).NotTo(HaveOccurred())
			Expect(status.Converged()).To(BeTrue())
			Expect(calls()).To(ConsistOf("kubectl get requestedbackupaction backup-1 -n subject -o json"))
		})
	})
})

var _ = Describe("DynamicStatusFetcher", func() {
	newAction := func(name string, healthy bool, running ...bool) *unstructured.Unstructured {
		children := make([]any, 0, len(running))
		for _, r := range running {
			children = append(children, map[string]any{"running": r})
		}
		return &unstructured.Unstructured{Object: map[string]any{
			"apiVersion": "riotkit.org/v1alpha1",
			"kind":       "RequestedBackupAction",
			"metadata": map[string]any{
				"name":      name,
				"namespace": "subject",
			},
			"status": map[string]any{
				"healthy":                 healthy,
				"childrenResourcesHealth": children,
			},
		}}
	}

	newFetcher := func(objects ...runtime.Object) *kube.DynamicStatusFetcher {
		client := dynamicfake.NewSimpleDynamicClientWithCustomListKinds(runtime.NewScheme(),
			map[schema.GroupVersionResource]string{kube.RequestedBackupActionGVR: "RequestedBackupActionList"},
			objects...)
		return kube.NewDynamicStatusFetcher(client)
	}

	It("should serialize the action fetched from the API server", func() {
		fetcher := newFetcher(newAction("backup-1", true, false, true))

		raw, err := fetcher.FetchActionStatus(context.Background(), "backup-1", "subject")
		Expect(err).NotTo(HaveOccurred())

		status, err := models.ParseActionStatus(raw)
		Expect(err).NotTo(HaveOccurred())
		Expect(status.Healthy).To(BeTrue())
		Expect(status.ChildrenRunning).To(Equal([]bool{false, true}))
	})

	It("should report a missing action as ResourceNotFoundError", func() {
		fetcher := newFetcher()

		_, err := fetcher.FetchActionStatus(context.Background(), "backup-1", "subject")
		Expect(srvErrors.IsResourceNotFoundError(err)).To(BeTrue())
	})

	It("should only look in the requested namespace", func() {
		fetcher := newFetcher(newAction("backup-1", true))

		_, err := fetcher.FetchActionStatus(context.Background(), "backup-1", "other")
		Expect(srvErrors.IsResourceNotFoundError(err)).To(BeTrue())
	})
})
