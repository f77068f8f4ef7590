// Package config defines the configuration of the backup end-to-end harness.
//
// Configuration is organized into logical sections (Release, Cluster, Server,
// Controller, Poll). Defaults come from `default` struct tags applied by
// creasty/defaults; release versions come from a dotenv file (release.env);
// everything can be overridden through flags or BMT_* environment variables
// bound into a viper instance.
//
// # Configuration Structure
//
//	Configuration
//	├── Release          - Versions of the applications under test
//	├── Cluster          - k3d cluster and image registry
//	├── Server           - backup-repository deployment
//	├── Controller       - backup-maker-controller deployment
//	├── Poll             - Convergence polling budget
//	├── SubjectNamespace - Namespace holding backed up workloads
//	├── BuildDir         - Checkout directory for dependency repositories
//	└── DeployRetries    - Deploy attempts before giving up
//
// # Release (release.env)
//
//	┌────────────────────┬──────────────────────────────────────────────┐
//	│ Key                │ Description                                  │
//	├────────────────────┼──────────────────────────────────────────────┤
//	│ SERVER_VERSION     │ git revision of backup-repository (required) │
//	│ CONTROLLER_VERSION │ git revision of the controller (required)    │
//	└────────────────────┴──────────────────────────────────────────────┘
//
// # Cluster Configuration
//
//	┌──────────────┬─────────────────────┬──────────────────────────────────────┐
//	│ Field        │ Default             │ Description                          │
//	├──────────────┼─────────────────────┼──────────────────────────────────────┤
//	│ Mode         │ "k3d"               │ "k3d" or "external"                  │
//	│ Name         │ "bmt"               │ k3d cluster name                     │
//	│ Registry     │ "bmt-registry:5000" │ Registry created alongside k3d       │
//	│ RegistryHost │ "bm-registry"       │ /etc/hosts alias for the registry    │
//	│ Keep         │ true                │ Keep the cluster after the run       │
//	└──────────────┴─────────────────────┴──────────────────────────────────────┘
//
// # Poll Configuration
//
//	┌─────────┬─────────┬────────────────────────────────────────────┐
//	│ Field   │ Default │ Description                                │
//	├─────────┼─────────┼────────────────────────────────────────────┤
//	│ Retries │ 10      │ Attempts after the first status fetch      │
//	│ Wait    │ 2s      │ Sleep between two attempts                 │
//	└─────────┴─────────┴────────────────────────────────────────────┘
//
// # Usage Example
//
//	v := config.NewViper()
//	_ = v.BindPFlags(cmd.Flags())
//
//	cfg, err := config.Load(v, "release.env")
//	if err != nil {
//	    return err
//	}
//	if err := cfg.Validate(); err != nil {
//	    return err
//	}
package config
