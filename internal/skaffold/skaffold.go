package skaffold

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/riotkit-org/backup-e2e/internal/shell"
)

const (
	// Tag is the image tag used for everything built by the harness.
	Tag = "e2e"

	configFile = "skaffold.yaml"
)

// Deployer builds and deploys skaffold projects into the test cluster,
// pushing images to an insecure registry.
type Deployer struct {
	shell    *shell.Shell
	registry string
	bin      string
	log      *zap.SugaredLogger
}

type Option func(*Deployer)

// WithBinary overrides the skaffold executable.
func WithBinary(bin string) Option {
	return func(d *Deployer) {
		d.bin = bin
	}
}

func NewDeployer(sh *shell.Shell, registry string, opts ...Option) *Deployer {
	d := &Deployer{
		shell:    sh,
		registry: registry,
		bin:      "skaffold",
		log:      zap.S().Named("skaffold"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Deploy runs skaffold in dir. Images are built and pushed first when the
// project declares a build section. An empty namespace leaves the choice to
// skaffold and the current kube context.
func (d *Deployer) Deploy(ctx context.Context, dir, namespace string) error {
	content, err := os.ReadFile(filepath.Join(dir, configFile))
	if err != nil {
		return fmt.Errorf("%s not found in %s: %w", configFile, dir, err)
	}

	sh := d.shell.WithDir(dir)
	if bytes.Contains(content, []byte("build:")) {
		d.log.Infow("building images", "dir", dir, "registry", d.registry)
		if _, err := sh.Exec(ctx, d.bin, "build",
			"--tag", Tag,
			"--default-repo", d.registry,
			"--push",
			"--insecure-registry", d.registry,
		); err != nil {
			return fmt.Errorf("skaffold build failed in %s: %w", dir, err)
		}
	}

	args := []string{"deploy",
		"--tag", Tag,
		"--assume-yes=true",
		"--default-repo", d.registry,
	}
	if namespace != "" {
		args = append(args, "--namespace", namespace)
	}

	d.log.Infow("deploying", "dir", dir, "namespace", namespace)
	if _, err := sh.Exec(ctx, d.bin, args...); err != nil {
		return fmt.Errorf("skaffold deploy failed in %s: %w", dir, err)
	}
	return nil
}
