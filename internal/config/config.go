package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/spf13/viper"

	srvErrors "github.com/riotkit-org/backup-e2e/pkg/errors"
)

const (
	ClusterModeK3d      = "k3d"
	ClusterModeExternal = "external"

	EnvPrefix = "BMT"
)

type Configuration struct {
	Release    Release
	Cluster    Cluster
	Server     Server
	Controller Controller
	Poll       Poll

	SubjectNamespace string `default:"subject"`
	BuildDir         string `default:".build"`
	DeployRetries    int    `default:"5"`
	LogLevel         string `default:"info"`
}

// Release pins the versions of the applications under test.
type Release struct {
	ServerVersion     string
	ControllerVersion string
}

type Cluster struct {
	Mode         string `default:"k3d"`
	Name         string `default:"bmt"`
	Registry     string `default:"bmt-registry:5000"`
	RegistryHost string `default:"bm-registry"`
	Kubeconfig   string
	Keep         bool `default:"true"`
}

// Server describes the backup-repository deployment.
type Server struct {
	RepositoryURL string `default:"https://github.com/riotkit-org/backup-repository"`
	Namespace     string `default:"backups"`
	PodLabel      string `default:"app.kubernetes.io/name=backup-repository-server"`
	LocalPort     int    `default:"8070"`
	RemotePort    int    `default:"8080"`
}

// Controller describes the backup-maker-controller deployment.
type Controller struct {
	RepositoryURL string `default:"https://github.com/riotkit-org/backup-maker-controller"`
	Namespace     string `default:"backup-maker-operator"`
	PodLabel      string `default:"app=backup-maker-operator"`
	CRDPath       string `default:"config/crd/bases"`
}

type Poll struct {
	Retries int           `default:"10"`
	Wait    time.Duration `default:"2s"`
}

// NewConfiguration returns a configuration filled with defaults.
func NewConfiguration() (*Configuration, error) {
	cfg := &Configuration{}
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("failed to set configuration defaults: %w", err)
	}
	return cfg, nil
}

// ServerURL is the locally forwarded address of the backup repository.
func (c *Configuration) ServerURL() string {
	return fmt.Sprintf("http://127.0.0.1:%d", c.Server.LocalPort)
}

func (c *Configuration) Validate() error {
	if c.Cluster.Mode != ClusterModeK3d && c.Cluster.Mode != ClusterModeExternal {
		return srvErrors.NewConfigurationError("cluster mode",
			fmt.Sprintf("%q must be %q or %q", c.Cluster.Mode, ClusterModeK3d, ClusterModeExternal))
	}
	if c.Release.ServerVersion == "" {
		return srvErrors.NewConfigurationError("SERVER_VERSION", "is required")
	}
	if c.Release.ControllerVersion == "" {
		return srvErrors.NewConfigurationError("CONTROLLER_VERSION", "is required")
	}
	if c.Poll.Retries < 0 {
		return srvErrors.NewConfigurationError("poll retries", "must not be negative")
	}
	if c.Poll.Wait < 0 {
		return srvErrors.NewConfigurationError("poll wait", "must not be negative")
	}
	if c.DeployRetries < 0 {
		return srvErrors.NewConfigurationError("deploy retries", "must not be negative")
	}
	return nil
}

// NewViper returns a viper instance reading BMT_* environment variables.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

// Load builds the configuration from defaults, the release file (dotenv
// format, e.g. release.env) and values bound into v (flags, environment).
// A missing release file is not an error when the versions come from v.
func Load(v *viper.Viper, releaseFile string) (*Configuration, error) {
	cfg, err := NewConfiguration()
	if err != nil {
		return nil, err
	}

	if releaseFile != "" {
		release := viper.New()
		release.SetConfigFile(releaseFile)
		release.SetConfigType("env")
		if err := release.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !isNotExist(err) {
				return nil, fmt.Errorf("failed to read release file %s: %w", releaseFile, err)
			}
		}
		cfg.Release.ServerVersion = release.GetString("SERVER_VERSION")
		cfg.Release.ControllerVersion = release.GetString("CONTROLLER_VERSION")
	}

	apply(v, cfg)
	return cfg, nil
}

func apply(v *viper.Viper, cfg *Configuration) {
	setString(v, "server-version", &cfg.Release.ServerVersion)
	setString(v, "controller-version", &cfg.Release.ControllerVersion)

	setString(v, "cluster-mode", &cfg.Cluster.Mode)
	setString(v, "cluster-name", &cfg.Cluster.Name)
	setString(v, "registry", &cfg.Cluster.Registry)
	setString(v, "registry-host", &cfg.Cluster.RegistryHost)
	setString(v, "kubeconfig", &cfg.Cluster.Kubeconfig)
	if v.IsSet("keep-cluster") {
		cfg.Cluster.Keep = v.GetBool("keep-cluster")
	}

	setString(v, "server-repository", &cfg.Server.RepositoryURL)
	setString(v, "server-namespace", &cfg.Server.Namespace)
	if v.IsSet("server-local-port") {
		cfg.Server.LocalPort = v.GetInt("server-local-port")
	}

	setString(v, "controller-repository", &cfg.Controller.RepositoryURL)
	setString(v, "controller-namespace", &cfg.Controller.Namespace)

	setString(v, "subject-namespace", &cfg.SubjectNamespace)
	setString(v, "build-dir", &cfg.BuildDir)
	setString(v, "log-level", &cfg.LogLevel)
	if v.IsSet("deploy-retries") {
		cfg.DeployRetries = v.GetInt("deploy-retries")
	}
	if v.IsSet("poll-retries") {
		cfg.Poll.Retries = v.GetInt("poll-retries")
	}
	if v.IsSet("poll-wait") {
		cfg.Poll.Wait = v.GetDuration("poll-wait")
	}
}

func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

func setString(v *viper.Viper, key string, dst *string) {
	if s := v.GetString(key); s != "" {
		*dst = s
	}
}
