package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/riotkit-org/backup-e2e/internal/config"
	"github.com/riotkit-org/backup-e2e/internal/shell"
	"github.com/riotkit-org/backup-e2e/test/e2e/infra"
)

func clusterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cluster",
		Short: "Manage the test cluster",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Create the k3d cluster and registry, or reuse the running one",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := newInfraManager(cmd)
			if err != nil {
				return err
			}
			if err := m.StartCluster(cmd.Context()); err != nil {
				return err
			}
			if err := m.EnsureRegistryHost(cmd.Context()); err != nil {
				return err
			}
			success(cmd, "cluster ready")
			if kubeconfig := m.Kubeconfig(); kubeconfig != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "export KUBECONFIG=%s\n", kubeconfig)
			}
			return nil
		},
	})

	down := &cobra.Command{
		Use:   "down",
		Short: "Delete the k3d cluster",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			// the e2e suite keeps the cluster by default, an explicit down does not
			cfg.Cluster.Keep = false
			m, err := infraManager(cfg)
			if err != nil {
				return err
			}
			if err := m.StopCluster(cmd.Context()); err != nil {
				return err
			}
			success(cmd, "cluster removed")
			return nil
		},
	}
	cmd.AddCommand(down)

	return cmd
}

func newInfraManager(cmd *cobra.Command) (infra.InfraManager, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return infraManager(cfg)
}

func infraManager(cfg *config.Configuration) (infra.InfraManager, error) {
	switch cfg.Cluster.Mode {
	case config.ClusterModeK3d:
		return infra.NewK3dInfraManager(cfg.Cluster, shell.New("")), nil
	case config.ClusterModeExternal:
		return infra.NewExternalInfraManager(cfg.Cluster.Kubeconfig), nil
	default:
		return nil, fmt.Errorf("unknown cluster mode %q", cfg.Cluster.Mode)
	}
}

// mustDefaults returns the configuration defaults used as flag defaults.
func mustDefaults() *config.Configuration {
	cfg, err := config.NewConfiguration()
	if err != nil {
		panic(err)
	}
	return cfg
}

func success(cmd *cobra.Command, format string, args ...any) {
	color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "✔ "+format+"\n", args...)
}

func failure(cmd *cobra.Command, format string, args ...any) {
	color.New(color.FgRed).Fprintf(cmd.ErrOrStderr(), "✘ "+format+"\n", args...)
}
