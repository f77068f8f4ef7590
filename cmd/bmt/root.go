package main

import (
	"fmt"
	"os"

	"github.com/jzelinskie/cobrautil/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/riotkit-org/backup-e2e/internal/config"
	"github.com/riotkit-org/backup-e2e/internal/util"
)

func rootCmd() *cobra.Command {
	defaults := mustDefaults()

	cmd := &cobra.Command{
		Use:   "bmt",
		Short: "Backup maker end-to-end test harness",
		Long: `bmt prepares the environment the backup end-to-end suite runs in and
lets you poke at it by hand: the k3d cluster, the deployed backup repository
and controller, requested backup actions and repository logins.

Quick start:
  bmt cluster up                   # Create or reuse the k3d cluster
  bmt deploy --forward             # Deploy server + controller, forward :8070
  bmt login --username admin       # Get a repository token
  bmt wait app1-backup             # Wait for a RequestedBackupAction`,
		SilenceUsage: true,
		PersistentPreRunE: cobrautil.CommandStack(
			cobrautil.SyncViperPreRunE(config.EnvPrefix),
			setupLogging,
		),
	}

	flags := cmd.PersistentFlags()
	flags.String("release-file", "release.env", "dotenv file with SERVER_VERSION and CONTROLLER_VERSION")
	flags.String("log-level", defaults.LogLevel, "Log level (debug, info, warn, error)")
	flags.String("cluster-mode", defaults.Cluster.Mode, "Cluster mode: 'k3d' or 'external'")
	flags.String("cluster-name", defaults.Cluster.Name, "k3d cluster name")
	flags.String("registry", defaults.Cluster.Registry, "Image registry created with the cluster")
	flags.String("kubeconfig", "", "Kubeconfig path")
	flags.String("build-dir", defaults.BuildDir, "Checkout directory of the applications under test")

	cmd.AddCommand(clusterCmd())
	cmd.AddCommand(deployCmd())
	cmd.AddCommand(waitCmd())
	cmd.AddCommand(loginCmd())
	cmd.AddCommand(serveCmd())

	return cmd
}

// Execute runs the root command. It is called by main.main().
func Execute() {
	root := rootCmd()
	err := root.Execute()
	_ = zap.L().Sync()
	if err != nil {
		os.Exit(1)
	}
}

func setupLogging(cmd *cobra.Command, _ []string) error {
	levelName, err := cmd.Flags().GetString("log-level")
	if err != nil {
		return err
	}
	level, err := zap.ParseAtomicLevel(levelName)
	if err != nil {
		return err
	}

	zcfg := zap.NewDevelopmentConfig()
	zcfg.Level = level
	logger, err := zcfg.Build()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	zap.ReplaceGlobals(logger)
	return nil
}

// loadConfig merges defaults, the release file, BMT_* variables and flags.
func loadConfig(cmd *cobra.Command) (*config.Configuration, error) {
	v := config.NewViper()
	if err := bindFlags(v, cmd); err != nil {
		return nil, err
	}

	releaseFile, err := cmd.Flags().GetString("release-file")
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(v, releaseFile)
	if err != nil {
		return nil, err
	}
	if err := util.PrependPath(cfg.BuildDir); err != nil {
		return nil, err
	}
	return cfg, nil
}

func bindFlags(v *viper.Viper, cmd *cobra.Command) error {
	return v.BindPFlags(cmd.Flags())
}
