// Package shell runs external commands (kubectl, git, skaffold, k3d).
package shell

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"

	"go.uber.org/zap"

	srvErrors "github.com/riotkit-org/backup-e2e/pkg/errors"
)

// Shell executes external commands (kubectl, k3d, skaffold, git, ...) in a
// fixed working directory, logging the command line and, on failure, its
// combined output.
type Shell struct {
	// Dir is the working directory. Empty means the current directory.
	Dir string
	// Env is appended to the process environment.
	Env []string

	log *zap.SugaredLogger
}

func New(dir string, env ...string) *Shell {
	return &Shell{
		Dir: dir,
		Env: env,
		log: zap.S().Named("shell"),
	}
}

// WithDir returns a copy of the shell bound to another working directory.
func (s *Shell) WithDir(dir string) *Shell {
	return &Shell{
		Dir: dir,
		Env: append([]string{}, s.Env...),
		log: s.log,
	}
}

// WithEnv returns a copy of the shell with additional environment variables.
func (s *Shell) WithEnv(env ...string) *Shell {
	return &Shell{
		Dir: s.Dir,
		Env: append(append([]string{}, s.Env...), env...),
		log: s.log,
	}
}

// Exec runs name with args and returns STDOUT and STDERR combined.
func (s *Shell) Exec(ctx context.Context, name string, args ...string) ([]byte, error) {
	return s.ExecWithInput(ctx, nil, name, args...)
}

// ExecWithInput is like Exec but feeds stdin to the command.
func (s *Shell) ExecWithInput(ctx context.Context, stdin io.Reader, name string, args ...string) ([]byte, error) {
	s.log.Debugf("%s %s", name, strings.Join(args, " "))

	cmd := s.Command(ctx, name, args...)
	if stdin != nil {
		cmd.Stdin = stdin
	}
	out, err := cmd.CombinedOutput()
	if err != nil {
		s.logFailure(ctx, name, args, out, err)
		return out, srvErrors.NewCommandError(name, args, out, err)
	}
	return out, nil
}

// Output runs name with args and returns STDOUT only, for commands whose
// output is parsed. STDERR is carried by the CommandError on failure.
func (s *Shell) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	s.log.Debugf("%s %s", name, strings.Join(args, " "))

	var stderr bytes.Buffer
	cmd := s.Command(ctx, name, args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		s.logFailure(ctx, name, args, stderr.Bytes(), err)
		return out, srvErrors.NewCommandError(name, args, stderr.Bytes(), err)
	}
	if stderr.Len() > 0 {
		s.log.Debugw("command wrote to stderr", "command", name, "stderr", strings.TrimSpace(stderr.String()))
	}
	return out, nil
}

func (s *Shell) logFailure(ctx context.Context, name string, args []string, out []byte, err error) {
	if isSignalExitError(err, syscall.SIGKILL) && ctx.Err() != nil {
		s.log.Debugf("command cancelled: %s %s", name, strings.Join(args, " "))
		return
	}
	s.log.Infow("command failed", "command", name, "args", args, "dir", s.Dir, "error", err)
	s.log.Info(string(out))
}

// Script runs a bash snippet. Used for pipelines like "docker ps | grep".
func (s *Shell) Script(ctx context.Context, script string) ([]byte, error) {
	return s.Exec(ctx, "/bin/bash", "-c", script)
}

// Command builds an *exec.Cmd with the shell's directory and environment.
func (s *Shell) Command(ctx context.Context, name string, args ...string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = s.Dir
	cmd.Env = append(os.Environ(), s.Env...)
	return cmd
}

// Process is a command left running in the background, e.g. a port-forward.
type Process struct {
	cmd    *exec.Cmd
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// Start launches a long running command. The command is killed when ctx is
// cancelled or Stop is called.
func (s *Shell) Start(ctx context.Context, name string, args ...string) (*Process, error) {
	s.log.Debugf("starting %s %s", name, strings.Join(args, " "))

	pctx, cancel := context.WithCancel(ctx)
	buf := &syncBuffer{}
	cmd := s.Command(pctx, name, args...)
	cmd.Stdout = buf
	cmd.Stderr = buf

	if err := cmd.Start(); err != nil {
		cancel()
		return nil, srvErrors.NewCommandError(name, args, nil, err)
	}

	p := &Process{cmd: cmd, cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(p.done)
		p.err = cmd.Wait()
		if p.err != nil && pctx.Err() == nil {
			s.log.Infow("background command exited", "command", name, "args", args, "error", p.err, "output", buf.String())
		}
	}()
	return p, nil
}

// Done is closed when the process exits.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// Stop kills the process and waits for it to exit.
func (p *Process) Stop() error {
	p.cancel()
	<-p.done
	if p.err != nil && isSignalExitError(p.err, syscall.SIGKILL) {
		return nil
	}
	return p.err
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// isSignalExitError returns true if the error is an ExitError caused by the
// specified signal.
func isSignalExitError(err error, sig syscall.Signal) bool {
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return false
	}
	if exitErr.ProcessState == nil {
		return false
	}
	status, ok := exitErr.ProcessState.Sys().(syscall.WaitStatus) // unix/posix
	if !ok {
		return false
	}
	if !status.Signaled() {
		return false
	}
	return status.Signal() == sig
}
