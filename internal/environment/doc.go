// Package environment installs the applications under test exactly once per
// run and exposes the backup repository on a local port.
//
// # One-time Deployment
//
//	Provision (1st call)                       Provision (Nth call)
//	────────────────────                       ────────────────────
//	  │                                          │
//	  ▼                                          ▼
//	┌─────────────────────────────┐            return first result
//	│ retry up to DeployRetries+1 │
//	│ ┌─────────────────────────┐ │
//	│ │ checkout server         │ │
//	│ │ ns backups (kept)       │ │
//	│ │   skaffold deploy       │ │
//	│ │   checkout controller   │ │
//	│ │   ns backup-maker-...   │ │
//	│ │     apply CRDs          │ │
//	│ │     skaffold deploy     │ │
//	│ └─────────────────────────┘ │
//	└─────────────┬───────────────┘
//	              ▼
//	  kubectl port-forward 8070:8080
//	              ▼
//	  wait until 127.0.0.1:8070 accepts connections
//
// The port-forward outlives the context given to Provision and is closed by
// Stop. A failed provisioning is remembered: later calls fail the same way
// without deploying again.
//
// # Collaborators
//
//	┌────────────┬──────────────────────────────┬───────────────────┐
//	│ Interface  │ Responsibility               │ Implementation    │
//	├────────────┼──────────────────────────────┼───────────────────┤
//	│ Checkouter │ Source tree at a revision    │ repo.Checkouts    │
//	│ Deployer   │ Build, push and deploy       │ skaffold.Deployer │
//	│ Cluster    │ Namespaces, CRDs, forwarding │ kube.Kubectl      │
//	└────────────┴──────────────────────────────┴───────────────────┘
package environment
