package infra_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/riotkit-org/backup-e2e/internal/config"
	"github.com/riotkit-org/backup-e2e/internal/shell"
	"github.com/riotkit-org/backup-e2e/pkg/repository"
	"github.com/riotkit-org/backup-e2e/test/e2e/infra"
)

func TestInfra(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Infra Suite")
}

const (
	fakeDocker = `#!/bin/bash
echo "docker $*" >> "$FAKE_LOG"
echo "$FAKE_CONTAINERS"
`
	fakeK3d = `#!/bin/bash
echo "k3d $*" >> "$FAKE_LOG"
if [[ "$1" == "kubeconfig" ]]; then
  echo "INFO[0000] merging kubeconfig" >&2
  echo "/home/e2e/.config/k3d/kubeconfig-$3.yaml"
fi
`
	fakeSudo = `#!/bin/bash
echo "sudo $*" >> "$FAKE_LOG"
exec "$@"
`
)

var _ = Describe("K3dInfraManager", func() {
	var (
		ctx       context.Context
		tmp       string
		logFile   string
		hostsFile string
		cluster   config.Cluster
		bins      infra.K3dOption
	)

	calls := func() []string {
		content, err := os.ReadFile(logFile)
		Expect(err).NotTo(HaveOccurred())
		return strings.Split(strings.TrimSpace(string(content)), "\n")
	}

	newManager := func(containers string) *infra.K3dInfraManager {
		sh := shell.New("", "FAKE_LOG="+logFile, "FAKE_CONTAINERS="+containers)
		return infra.NewK3dInfraManager(cluster, sh, bins, infra.WithHostsFile(hostsFile))
	}

	BeforeEach(func() {
		ctx = context.Background()
		tmp = GinkgoT().TempDir()
		logFile = filepath.Join(tmp, "calls.log")
		hostsFile = filepath.Join(tmp, "hosts")
		Expect(os.WriteFile(hostsFile, []byte("127.0.0.1 localhost\n"), 0o600)).To(Succeed())

		write := func(name, content string) string {
			path := filepath.Join(tmp, name)
			Expect(os.WriteFile(path, []byte(content), 0o755)).To(Succeed())
			return path
		}
		bins = infra.WithK3dBinaries(write("docker", fakeDocker), write("k3d", fakeK3d), write("sudo", fakeSudo))

		cluster = config.Cluster{Name: "bmt", Registry: "bmt-registry:5000", RegistryHost: "bm-registry", Keep: true}
	})

	Context("StartCluster", func() {
		// Given no k3d cluster is running
		// When the cluster is started
		// Then it is created with a registry and its kubeconfig merged
		It("should create a missing cluster", func() {
			// Arrange
			m := newManager("postgres")

			// Act
			err := m.StartCluster(ctx)

			// Assert
			Expect(err).NotTo(HaveOccurred())
			Expect(calls()).To(Equal([]string{
				"docker ps --format {{.Names}}",
				"k3d cluster create bmt --registry-create bmt-registry:0.0.0.0:5000",
				"k3d kubeconfig merge bmt",
			}))
			Expect(m.Kubeconfig()).To(Equal("/home/e2e/.config/k3d/kubeconfig-bmt.yaml"))
		})

		It("should reuse a running cluster", func() {
			m := newManager("k3d-bmt-serverlb k3d-bmt-server-0")

			Expect(m.StartCluster(ctx)).To(Succeed())

			Expect(calls()).NotTo(ContainElement(HavePrefix("k3d cluster create")))
		})

		It("should keep an explicit kubeconfig", func() {
			cluster.Kubeconfig = "/tmp/kubeconfig"
			m := newManager("k3d-bmt-server-0")

			Expect(m.StartCluster(ctx)).To(Succeed())

			Expect(m.Kubeconfig()).To(Equal("/tmp/kubeconfig"))
		})

		It("should reject a registry without port", func() {
			cluster.Registry = "bmt-registry"
			Expect(newManager("").StartCluster(ctx)).To(MatchError(ContainSubstring("invalid registry")))
		})
	})

	Context("StopCluster", func() {
		It("should keep the cluster by default", func() {
			Expect(newManager("").StopCluster(ctx)).To(Succeed())
			Expect(logFile).NotTo(BeAnExistingFile())
		})

		It("should delete the cluster when asked to", func() {
			cluster.Keep = false
			Expect(newManager("").StopCluster(ctx)).To(Succeed())
			Expect(calls()).To(Equal([]string{"k3d cluster delete bmt"}))
		})
	})

	Context("EnsureRegistryHost", func() {
		It("should add the registry alias once", func() {
			m := newManager("")

			Expect(m.EnsureRegistryHost(ctx)).To(Succeed())
			Expect(m.EnsureRegistryHost(ctx)).To(Succeed())

			content, err := os.ReadFile(hostsFile)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(content)).To(Equal("127.0.0.1 localhost\n127.0.0.1 bm-registry\n"))
			Expect(calls()).To(HaveLen(1))
		})

		It("should ignore commented entries", func() {
			Expect(os.WriteFile(hostsFile, []byte("# 127.0.0.1 bm-registry\n"), 0o600)).To(Succeed())

			Expect(newManager("").EnsureRegistryHost(ctx)).To(Succeed())

			Expect(calls()).To(HaveLen(1))
		})
	})
})

var _ = Describe("ExternalInfraManager", func() {
	It("should do nothing but expose the kubeconfig", func() {
		ctx := context.Background()
		m := infra.NewExternalInfraManager("/etc/kubeconfig")

		Expect(m.StartCluster(ctx)).To(Succeed())
		Expect(m.EnsureRegistryHost(ctx)).To(Succeed())
		Expect(m.StopCluster(ctx)).To(Succeed())
		Expect(m.Kubeconfig()).To(Equal("/etc/kubeconfig"))
	})
})

var _ = Describe("RepositoryServer", func() {
	It("should serve logins for registered users", func() {
		ctx := context.Background()
		srv, err := infra.NewRepositoryServer("127.0.0.1:0")
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(srv.Stop)
		srv.AddUser("admin", "riotkit@riseup.net", "admin", "systemAdmin")

		client := repository.NewClient(srv.URL())
		Eventually(func() error { return client.Health(ctx) }).Should(Succeed())

		token, err := client.Login(ctx, "admin", "admin")
		Expect(err).NotTo(HaveOccurred())

		me, err := client.Authenticated(token).WhoAmI(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(me.Email).To(Equal("riotkit@riseup.net"))
	})
})
