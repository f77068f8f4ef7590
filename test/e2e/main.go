package main

import (
	"log"
	"os"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/riotkit-org/backup-e2e/internal/config"
	"github.com/riotkit-org/backup-e2e/internal/util"
	"github.com/riotkit-org/backup-e2e/test/e2e/infra"
)

var (
	cfg          *config.Configuration
	infraManager infra.InfraManager
	dataDir      string
)

func main() {
	defaults, err := config.NewConfiguration()
	if err != nil {
		log.Fatalf("failed to build default configuration: %v", err)
	}

	flags := pflag.NewFlagSet("e2e", pflag.ExitOnError)
	releaseFile := flags.String("release-file", "release.env", "dotenv file with SERVER_VERSION and CONTROLLER_VERSION")
	flags.StringVar(&dataDir, "data-dir", "test/data", "Directory holding test workloads")
	flags.String("cluster-mode", defaults.Cluster.Mode, "Cluster mode: 'k3d' (local cluster) or 'external' (externally managed)")
	flags.String("kubeconfig", "", "Kubeconfig path, defaults to the one merged by k3d or the kubectl default")
	flags.Bool("keep-cluster", defaults.Cluster.Keep, "Keep the k3d cluster after the run (useful for debugging)")
	flags.String("build-dir", defaults.BuildDir, "Checkout directory of the applications under test")
	flags.Int("deploy-retries", defaults.DeployRetries, "Deploy attempts after the first failure")
	flags.Int("poll-retries", defaults.Poll.Retries, "Status fetches after the first one when waiting for an action")
	flags.Duration("poll-wait", defaults.Poll.Wait, "Pause between two status fetches")
	_ = flags.Parse(os.Args[1:])

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	zap.ReplaceGlobals(logger)
	defer logger.Sync()

	v := config.NewViper()
	if err := v.BindPFlags(flags); err != nil {
		log.Fatalf("failed to bind flags: %v", err)
	}
	cfg, err = config.Load(v, *releaseFile)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("failed to validate configuration: %v", err)
	}

	// binaries shipped with the applications (e.g. "br") land in the build dir
	if err := util.PrependPath(cfg.BuildDir); err != nil {
		log.Fatalf("failed to extend PATH: %v", err)
	}

	switch cfg.Cluster.Mode {
	case config.ClusterModeK3d:
		infraManager = infra.NewK3dInfraManager(cfg.Cluster, newShell(""))
	case config.ClusterModeExternal:
		infraManager = infra.NewExternalInfraManager(cfg.Cluster.Kubeconfig)
	}

	RegisterFailHandler(Fail)
	if !RunSpecs(&testing.T{}, "E2E Suite") {
		os.Exit(1)
	}
}
