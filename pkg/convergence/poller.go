package convergence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/riotkit-org/backup-e2e/internal/models"
	srvErrors "github.com/riotkit-org/backup-e2e/pkg/errors"
)

// StatusFetcher returns the serialized RequestedBackupAction named name.
type StatusFetcher interface {
	FetchActionStatus(ctx context.Context, name, namespace string) ([]byte, error)
}

// RetryFunc is called before every sleep between two attempts.
type RetryFunc func(attempt int, err error, wait time.Duration)

type Option func(*Poller)

// WithRequireChildren treats a status without any child resource as not
// converged.
func WithRequireChildren() Option {
	return func(p *Poller) {
		p.requireChildren = true
	}
}

// WithOnRetry registers a hook called before each wait.
func WithOnRetry(fn RetryFunc) Option {
	return func(p *Poller) {
		p.onRetry = fn
	}
}

type Poller struct {
	fetcher         StatusFetcher
	namespace       string
	requireChildren bool
	onRetry         RetryFunc
}

func NewPoller(fetcher StatusFetcher, namespace string, opts ...Option) *Poller {
	p := &Poller{
		fetcher:   fetcher,
		namespace: namespace,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// errMismatch is returned by an attempt whose status does not match the
// expectation yet.
var errMismatch = errors.New("convergence does not match expectation")

// Poll fetches the status of actionName until its convergence equals expected,
// performing at most maxRetries+1 fetches spaced by wait.
//
// Exhausting the budget is not an error: the last observed value is returned.
// Only a fetch failure on the final attempt (or ctx cancellation) is returned
// as an error.
func (p *Poller) Poll(ctx context.Context, actionName string, expected bool, maxRetries int, wait time.Duration) (bool, error) {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if wait < 0 {
		wait = 0
	}

	log := zap.S().Named("convergence").With("action", actionName, "namespace", p.namespace)

	attempt := 0
	operation := func() (bool, error) {
		attempt++

		status, err := p.fetch(ctx, actionName)
		if err != nil {
			return false, err
		}

		converged := p.converged(status)
		log.Debugw("observed action status", "attempt", attempt, "status", status.String())

		if converged != expected {
			return converged, errMismatch
		}
		return converged, nil
	}

	converged, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewConstantBackOff(wait)),
		backoff.WithMaxTries(uint(maxRetries)+1),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			if errors.Is(err, errMismatch) {
				log.Debugw("action not settled yet, retrying", "attempt", attempt, "wait", next)
			} else {
				log.Infow("transient status fetch failure, retrying", "attempt", attempt, "wait", next, "error", err)
			}
			if p.onRetry != nil {
				p.onRetry(attempt, err, next)
			}
		}),
	)

	switch {
	case err == nil:
		return converged, nil
	case errors.Is(err, errMismatch):
		log.Infow("retry budget exhausted", "attempts", attempt, "expected", expected, "converged", converged)
		return converged, nil
	default:
		return false, err
	}
}

// PollUntilConverged waits for actionName to finish healthy.
func (p *Poller) PollUntilConverged(ctx context.Context, actionName string, maxRetries int, wait time.Duration) (bool, error) {
	return p.Poll(ctx, actionName, true, maxRetries, wait)
}

// PollAll polls several actions concurrently. Each action runs its own
// independent loop; the first error cancels the others.
func (p *Poller) PollAll(ctx context.Context, actionNames []string, expected bool, maxRetries int, wait time.Duration) (map[string]bool, error) {
	results := make([]bool, len(actionNames))

	g, gctx := errgroup.WithContext(ctx)
	for i, name := range actionNames {
		g.Go(func() error {
			converged, err := p.Poll(gctx, name, expected, maxRetries, wait)
			if err != nil {
				return fmt.Errorf("failed to poll action %q: %w", name, err)
			}
			results[i] = converged
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[string]bool, len(actionNames))
	for i, name := range actionNames {
		out[name] = results[i]
	}
	return out, nil
}

func (p *Poller) fetch(ctx context.Context, actionName string) (models.ActionStatus, error) {
	raw, err := p.fetcher.FetchActionStatus(ctx, actionName, p.namespace)
	if err != nil {
		return models.ActionStatus{}, srvErrors.NewFetchError(actionName, err)
	}
	status, err := models.ParseActionStatus(raw)
	if err != nil {
		return models.ActionStatus{}, srvErrors.NewFetchError(actionName, err)
	}
	return status, nil
}

func (p *Poller) converged(status models.ActionStatus) bool {
	if p.requireChildren && !status.Started() {
		return false
	}
	return status.Converged()
}
