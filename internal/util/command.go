package util

import (
	"context"
	"os/exec"
)

// CommandRunner executes external commands.
type CommandRunner interface {
	// Run executes a command and returns combined stdout/stderr.
	Run(name string, args ...string) (output []byte, err error)

	// RunQuiet executes a command, returns output only on error.
	RunQuiet(name string, args ...string) (output string, err error)

	// Start launches a command without waiting for it and returns a
	// handle to the running process.
	Start(name string, args ...string) (Process, error)
}

// Process is a handle to a launched command. Wait blocks until the
// process exits and may only be called once.
type Process interface {
	Pid() int
	Wait() error
}

// ContextCommandRunner implements CommandRunner with context support.
// Started processes are not bound to the context: they belong to the
// user and must outlive whatever command launched them.
type ContextCommandRunner struct {
	ctx context.Context
}

// NewCommandRunner creates a new ContextCommandRunner with context.Background().
func NewCommandRunner() *ContextCommandRunner {
	return &ContextCommandRunner{ctx: context.Background()}
}

// WithContext returns a new ContextCommandRunner with the given context.
func (r *ContextCommandRunner) WithContext(ctx context.Context) *ContextCommandRunner {
	return &ContextCommandRunner{ctx: ctx}
}

func (r *ContextCommandRunner) Run(name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(r.ctx, name, args...) //nolint:fslint // CommandRunner is the abstraction layer
	return cmd.CombinedOutput()
}

func (r *ContextCommandRunner) RunQuiet(name string, args ...string) (string, error) {
	cmd := exec.CommandContext(r.ctx, name, args...) //nolint:fslint // CommandRunner is the abstraction layer
	output, err := cmd.CombinedOutput()
	if err != nil {
		return string(output), err
	}
	return "", nil
}

func (r *ContextCommandRunner) Start(name string, args ...string) (Process, error) {
	cmd := exec.Command(name, args...) //nolint:fslint // CommandRunner is the abstraction layer
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return &osProcess{cmd: cmd}, nil
}

type osProcess struct {
	cmd *exec.Cmd
}

func (p *osProcess) Pid() int { return p.cmd.Process.Pid }

func (p *osProcess) Wait() error { return p.cmd.Wait() }
