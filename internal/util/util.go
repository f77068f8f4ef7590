package util

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// PrependPath puts dir first in the process PATH so binaries installed in it
// (e.g. the repository CLI "br") win over system ones. Relative dirs are
// made absolute. A dir already on PATH is moved to the front.
func PrependPath(dir string) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", dir, err)
	}

	entries := slices.DeleteFunc(filepath.SplitList(os.Getenv("PATH")), func(e string) bool {
		return e == abs || e == ""
	})
	return os.Setenv("PATH", strings.Join(append([]string{abs}, entries...), string(os.PathListSeparator)))
}

// KubeconfigEnv returns the environment entry pointing kubectl at path, or
// nothing when path is empty.
func KubeconfigEnv(path string) []string {
	if path == "" {
		return nil
	}
	return []string{"KUBECONFIG=" + path}
}
