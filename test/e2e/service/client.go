package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/riotkit-org/backup-e2e/internal/config"
	"github.com/riotkit-org/backup-e2e/internal/manifests"
	"github.com/riotkit-org/backup-e2e/internal/models"
	"github.com/riotkit-org/backup-e2e/pkg/convergence"
)

// ClientSvc drives the backup maker controller in the namespace holding the
// workloads to back up.
type ClientSvc struct {
	kube      Applier
	poller    *convergence.Poller
	poll      config.Poll
	namespace string
	log       *zap.SugaredLogger
}

// NewClientSvc polls actions in strict mode: an action whose child
// resources were not created yet never counts as converged.
func NewClientSvc(kube Applier, fetcher convergence.StatusFetcher, namespace string, poll config.Poll) *ClientSvc {
	return &ClientSvc{
		kube: kube,
		poller: convergence.NewPoller(fetcher, namespace,
			convergence.WithRequireChildren(),
		),
		poll:      poll,
		namespace: namespace,
		log:       zap.S().Named("client_svc"),
	}
}

// ScheduleBackup stores token in the backup-keys Secret and declares the
// ScheduledBackup using it.
func (c *ClientSvc) ScheduleBackup(ctx context.Context, token string, schedule manifests.Schedule) error {
	c.log.Infow("scheduling backup", "name", schedule.Name, "operation", schedule.Operation)
	return apply(ctx, c.kube, c.namespace,
		manifests.BackupKeysSecret(token, c.namespace),
		manifests.ScheduledBackup(schedule, c.namespace),
	)
}

// RequestBackupAction asks for a one-off backup or restore. An empty
// kindType means "Job".
func (c *ClientSvc) RequestBackupAction(ctx context.Context, name string, action models.ActionKind, scheduledBackup, kindType string) error {
	c.log.Infow("requesting action", "name", name, "action", action, "scheduledBackup", scheduledBackup)
	return apply(ctx, c.kube, c.namespace,
		manifests.RequestedBackupAction(name, action, scheduledBackup, kindType, c.namespace),
	)
}

// BackupHasCompleted waits for the action to converge within the configured
// poll budget.
func (c *ClientSvc) BackupHasCompleted(ctx context.Context, name string) (bool, error) {
	return c.poller.PollUntilConverged(ctx, name, c.poll.Retries, c.poll.Wait)
}

// WaitForActions waits for several actions at once, each with its own budget.
func (c *ClientSvc) WaitForActions(ctx context.Context, names ...string) (map[string]bool, error) {
	return c.poller.PollAll(ctx, names, true, c.poll.Retries, c.poll.Wait)
}
