package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/riotkit-org/backup-e2e/internal/environment"
	"github.com/riotkit-org/backup-e2e/internal/kube"
	"github.com/riotkit-org/backup-e2e/internal/repo"
	"github.com/riotkit-org/backup-e2e/internal/shell"
	"github.com/riotkit-org/backup-e2e/internal/skaffold"
	"github.com/riotkit-org/backup-e2e/internal/util"
)

func deployCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Deploy the backup repository and the backup maker controller",
		Long: `Deploy the backup repository and the backup maker controller at the
revisions pinned in the release file, then forward the repository port.

Example:
  bmt deploy --forward`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			sh := shell.New("", util.KubeconfigEnv(cfg.Cluster.Kubeconfig)...)
			provisioner := environment.NewProvisioner(cfg,
				kube.NewKubectl(sh),
				kube.NewNamespaceScope(),
				repo.NewCheckouts(sh, cfg.BuildDir),
				skaffold.NewDeployer(sh, cfg.Cluster.Registry),
			)
			defer func() { _ = provisioner.Stop() }()

			if err := provisioner.Provision(cmd.Context()); err != nil {
				failure(cmd, "deploy failed")
				provisioner.DumpLogs(cmd.Context(), cmd.ErrOrStderr())
				return err
			}
			success(cmd, "server %s and controller %s deployed", cfg.Release.ServerVersion, cfg.Release.ControllerVersion)

			forward, err := cmd.Flags().GetBool("forward")
			if err != nil || !forward {
				return err
			}
			success(cmd, "backup repository available at %s, press Ctrl+C to stop", cfg.ServerURL())
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			<-ctx.Done()
			return nil
		},
	}

	defaults := mustDefaults()
	cmd.Flags().Bool("forward", false, "Keep forwarding the repository port until interrupted")
	cmd.Flags().Int("deploy-retries", defaults.DeployRetries, "Deploy attempts after the first failure")
	cmd.Flags().String("server-version", "", "Override SERVER_VERSION")
	cmd.Flags().String("controller-version", "", "Override CONTROLLER_VERSION")

	return cmd
}
