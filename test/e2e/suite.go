package main

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/riotkit-org/backup-e2e/internal/environment"
	"github.com/riotkit-org/backup-e2e/internal/kube"
	"github.com/riotkit-org/backup-e2e/internal/repo"
	"github.com/riotkit-org/backup-e2e/internal/shell"
	"github.com/riotkit-org/backup-e2e/internal/skaffold"
	"github.com/riotkit-org/backup-e2e/internal/util"
	"github.com/riotkit-org/backup-e2e/test/e2e/service"
)

// Built in BeforeSuite, once the cluster and its kubeconfig exist.
var (
	sh          *shell.Shell
	kubectl     *kube.Kubectl
	scope       *kube.NamespaceScope
	checkouts   *repo.Checkouts
	deployer    *skaffold.Deployer
	provisioner *environment.Provisioner
	serverSvc   *service.ServerSvc
	clientSvc   *service.ClientSvc
)

func newShell(kubeconfig string) *shell.Shell {
	return shell.New("", util.KubeconfigEnv(kubeconfig)...)
}

var _ = BeforeSuite(func(ctx SpecContext) {
	Expect(infraManager.StartCluster(ctx)).To(Succeed())
	Expect(infraManager.EnsureRegistryHost(ctx)).To(Succeed())

	sh = newShell(infraManager.Kubeconfig())
	kubectl = kube.NewKubectl(sh)
	scope = kube.NewNamespaceScope()
	checkouts = repo.NewCheckouts(sh, cfg.BuildDir)
	deployer = skaffold.NewDeployer(sh, cfg.Cluster.Registry)
	provisioner = environment.NewProvisioner(cfg, kubectl, scope, checkouts, deployer)

	fetcher, err := kube.NewDynamicStatusFetcherFromKubeconfig(infraManager.Kubeconfig())
	Expect(err).NotTo(HaveOccurred())

	serverSvc = service.NewServerSvc(cfg.ServerURL(), kubectl, sh, cfg.Server.Namespace)
	clientSvc = service.NewClientSvc(kubectl, fetcher, cfg.SubjectNamespace, cfg.Poll)
})

var _ = AfterSuite(func(ctx SpecContext) {
	if provisioner != nil {
		Expect(provisioner.Stop()).To(Succeed())
	}
	Expect(infraManager.StopCluster(ctx)).To(Succeed())
})

// Application logs are the only way to understand a failed convergence.
var _ = ReportAfterEach(func(ctx SpecContext, report SpecReport) {
	if report.Failed() && provisioner != nil {
		provisioner.DumpLogs(ctx, GinkgoWriter)
	}
})
