package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/riotkit-org/backup-e2e/internal/kube"
	"github.com/riotkit-org/backup-e2e/pkg/convergence"
)

func waitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wait <action>...",
		Short: "Wait for RequestedBackupActions to converge",
		Long: `Poll RequestedBackupActions until their convergence (healthy and no
child resource running) matches --expect, within the retry budget.

Exits with an error when an action does not reach the expected state.

Example:
  bmt wait app1-backup -n subject --poll-retries 30 --poll-wait 5s`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			expect, err := cmd.Flags().GetBool("expect")
			if err != nil {
				return err
			}
			strict, err := cmd.Flags().GetBool("require-children")
			if err != nil {
				return err
			}

			fetcher, err := kube.NewDynamicStatusFetcherFromKubeconfig(cfg.Cluster.Kubeconfig)
			if err != nil {
				return err
			}
			var opts []convergence.Option
			if strict {
				opts = append(opts, convergence.WithRequireChildren())
			}
			poller := convergence.NewPoller(fetcher, cfg.SubjectNamespace, opts...)

			results, err := poller.PollAll(cmd.Context(), args, expect, cfg.Poll.Retries, cfg.Poll.Wait)
			if err != nil {
				return err
			}

			var mismatched int
			for _, name := range args {
				if results[name] == expect {
					success(cmd, "%s converged=%t", name, results[name])
				} else {
					failure(cmd, "%s converged=%t, expected %t", name, results[name], expect)
					mismatched++
				}
			}
			if mismatched > 0 {
				return fmt.Errorf("%d of %d actions did not reach converged=%t", mismatched, len(args), expect)
			}
			return nil
		},
	}

	defaults := mustDefaults()
	cmd.Flags().Bool("expect", true, "Expected convergence")
	cmd.Flags().Bool("require-children", true, "Do not count actions without child resources as converged")
	cmd.Flags().StringP("subject-namespace", "n", defaults.SubjectNamespace, "Namespace of the actions")
	cmd.Flags().Int("poll-retries", defaults.Poll.Retries, "Status fetches after the first one")
	cmd.Flags().Duration("poll-wait", defaults.Poll.Wait, "Pause between two status fetches")

	return cmd
}
