// Package convergence observes asynchronous backup and restore actions until
// their declarative status settles.
//
// A caller submits an action (by applying a RequestedBackupAction manifest),
// then asks the Poller whether the action reached the expected convergence
// state. The Poller owns no state besides its own loop: every attempt fetches
// the resource again through a StatusFetcher.
//
// # Poll Loop
//
//	Poll(ctx, name, expected, maxRetries, wait)
//	    │
//	    ▼
//	┌──────────────────────────────┐
//	│ attempt := 1 .. maxRetries+1 │◄─────────────────────┐
//	└──────────────┬───────────────┘                      │
//	               ▼                                      │
//	   FetchActionStatus(name, ns) ── error ──┐           │
//	               │                          │           │
//	               ▼                          │           │
//	   models.ParseActionStatus ──── error ───┤           │
//	               │                          │           │
//	               ▼                          ▼           │
//	   converged == expected ?        FetchError          │
//	         │           │                    │           │
//	        yes          no ──────────────────┴── sleep ──┘
//	         │                          (attempts left)
//	         ▼
//	   return converged, nil
//
// When the budget is exhausted:
//   - the last attempt was a mismatch: return the last converged value, nil.
//     The caller's own assertion turns it into a test failure.
//   - the last attempt was a fetch failure: return the FetchError.
//
// Converged is defined by models.ActionStatus.Converged:
//
//	converged = healthy AND NOT any(childrenRunning)
//
// # Empty Children
//
// Before the controller spawns a Job, the children list is empty and the
// formula yields healthy. By default this is accepted (a poll may then report
// success before the action started). WithRequireChildren makes an empty list
// count as not converged.
//
// # Usage Example
//
//	fetcher := kube.NewKubectlStatusFetcher(kubectl)
//	poller := convergence.NewPoller(fetcher, "subject", convergence.WithRequireChildren())
//
//	converged, err := poller.Poll(ctx, "backup-1", true, 10, 2*time.Second)
//	Expect(err).NotTo(HaveOccurred())
//	Expect(converged).To(BeTrue())
package convergence
