/*
Package main provides end-to-end tests of the backup repository (server) and
the backup maker controller (client) running together in Kubernetes.

# Package Structure

	test/e2e/
	├── main.go          Entry point: flags, config, InfraManager setup, Ginkgo runner
	├── suite.go         BeforeSuite/AfterSuite wiring, log dump on failure
	├── tests.go         Ginkgo specs (installing, postgres backup and restore)
	├── doc.go           This file
	├── infra/           Cluster management
	│   ├── infra.go       InfraManager interface
	│   ├── k3d.go         K3dInfraManager (local k3d cluster + registry)
	│   ├── external.go    ExternalInfraManager (no-op, externally managed)
	│   └── repository.go  RepositoryServer (in-process repository auth API)
	└── service/
	    ├── service.go   Applier interface
	    ├── server.go    ServerSvc: users, collections, login
	    └── client.go    ClientSvc: scheduled backups, actions, convergence

# InfraManager

	type InfraManager interface {
	    StartCluster(ctx) / StopCluster(ctx)
	    EnsureRegistryHost(ctx)
	    Kubeconfig()
	}

Two implementations:
  - K3dInfraManager: reuses the running "k3d-bmt-server-0" cluster or creates
    one with a registry at bmt-registry:5000, and aliases bm-registry to
    127.0.0.1 in /etc/hosts (via sudo).
  - ExternalInfraManager: no-op, the cluster is provided.

Selected via the --cluster-mode flag ("k3d" or "external").

# One-time Deployment

Specs needing both applications call provisioner.Provision in BeforeEach.
The first call deploys them (retried up to --deploy-retries times) and opens
the port-forward to the repository, later calls return the first result.

	┌──────────┐  Provision  ┌─────────────┐  once  ┌───────────────────────┐
	│  spec N  │────────────▶│ Provisioner │───────▶│ backups               │
	└──────────┘             └──────┬──────┘        │ backup-maker-operator │
	                                │               └───────────────────────┘
	                                ▼
	                     127.0.0.1:8070 ─▶ repository :8080

# Convergence

ClientSvc.BackupHasCompleted polls the RequestedBackupAction until it is
healthy and none of its child resources is running, within --poll-retries
and --poll-wait. Actions that have no child resources yet are not
considered complete.

# Running

	go run ./test/e2e --release-file release.env
	go run ./test/e2e --cluster-mode external --kubeconfig ~/.kube/config
	go run ./test/e2e --keep-cluster=false --poll-retries 30 --poll-wait 5s

Every flag can also be set as BMT_<FLAG> (e.g. BMT_POLL_RETRIES=30).
*/
package main
