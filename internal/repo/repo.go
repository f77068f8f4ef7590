package repo

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/riotkit-org/backup-e2e/internal/shell"
)

// Checkouts keeps clones of dependency repositories under a build directory.
type Checkouts struct {
	buildDir string
	shell    *shell.Shell
	log      *zap.SugaredLogger
}

// NewCheckouts resolves a relative buildDir against the current directory.
func NewCheckouts(sh *shell.Shell, buildDir string) *Checkouts {
	if abs, err := filepath.Abs(buildDir); err == nil {
		buildDir = abs
	}
	return &Checkouts{
		buildDir: buildDir,
		shell:    sh,
		log:      zap.S().Named("repo"),
	}
}

// Name derives the checkout directory name from a repository URL.
func Name(url string) string {
	url = strings.TrimSuffix(strings.TrimRight(url, "/"), ".git")
	if i := strings.LastIndexAny(url, "/:"); i >= 0 {
		return url[i+1:]
	}
	return url
}

// Checkout clones url into the build directory when missing, discards local
// changes and moves the working tree to version. It returns the checkout
// directory.
func (c *Checkouts) Checkout(ctx context.Context, url, version string) (string, error) {
	if err := os.MkdirAll(c.buildDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create build directory: %w", err)
	}

	name := Name(url)
	dir := filepath.Join(c.buildDir, name)
	if _, err := os.Stat(filepath.Join(dir, ".git")); os.IsNotExist(err) {
		c.log.Infow("cloning repository", "url", url, "dir", dir)
		if _, err := c.shell.WithDir(c.buildDir).Exec(ctx, "git", "clone", url, name); err != nil {
			return "", fmt.Errorf("failed to clone %s: %w", url, err)
		}
	}

	git := c.shell.WithDir(dir)
	if _, err := git.Exec(ctx, "git", "fetch", "--tags", "origin"); err != nil {
		return "", fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	// a dirty tree blocks both checkout and pull
	if _, err := git.Exec(ctx, "git", "reset", "--hard", "HEAD"); err != nil {
		return "", err
	}
	if _, err := git.Exec(ctx, "git", "clean", "-fx"); err != nil {
		return "", err
	}
	if _, err := git.Exec(ctx, "git", "checkout", version); err != nil {
		return "", fmt.Errorf("failed to checkout %s at %s: %w", url, version, err)
	}
	// tags and commits leave a detached HEAD, there is nothing to pull then
	if _, err := git.Exec(ctx, "git", "symbolic-ref", "-q", "HEAD"); err == nil {
		if _, err := git.Exec(ctx, "git", "pull", "--ff-only"); err != nil {
			return "", fmt.Errorf("failed to pull %s: %w", url, err)
		}
	}

	c.log.Infow("repository ready", "url", url, "version", version, "dir", dir)
	return dir, nil
}
