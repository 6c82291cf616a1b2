package util

import (
	"fmt"
	"strings"
	"testing"
)

// MockCommandRunner implements CommandRunner for testing.
// Records all command invocations and returns pre-configured results.
type MockCommandRunner struct {
	// commands maps "name arg1 arg2 ..." to MockResult.
	commands map[string]MockResult

	// processes maps "name arg1 arg2 ..." to a pre-built process
	// handle returned by Start.
	processes map[string]*MockProcess

	// defaultError is returned for unexpected commands.
	defaultError error

	// Calls records all command invocations in order.
	Calls []CommandCall
}

// MockResult holds the pre-configured output and error for a command.
type MockResult struct {
	Output []byte
	Err    error
}

// CommandCall records a single command invocation.
type CommandCall struct {
	Name string
	Args []string
	Key  string // "name arg1 arg2 ..."
}

// MockProcess is a controllable Process handle. Exit unblocks Wait
// with the given error.
type MockProcess struct {
	ProcessPid int
	done       chan error
}

// NewMockProcess creates a running mock process.
func NewMockProcess(pid int) *MockProcess {
	return &MockProcess{ProcessPid: pid, done: make(chan error, 1)}
}

func (p *MockProcess) Pid() int { return p.ProcessPid }

func (p *MockProcess) Wait() error { return <-p.done }

// Exit makes the process terminate with the given error.
func (p *MockProcess) Exit(err error) { p.done <- err }

// NewMockCommandRunner creates a mock that fails on unexpected commands.
func NewMockCommandRunner() *MockCommandRunner {
	return &MockCommandRunner{
		commands:     make(map[string]MockResult),
		processes:    make(map[string]*MockProcess),
		defaultError: fmt.Errorf("unexpected command"),
	}
}

// Expect registers a command and its expected result.
// cmd format: "name arg1 arg2 ..." (space-separated).
func (m *MockCommandRunner) Expect(cmd string, output []byte, err error) *MockCommandRunner {
	m.commands[cmd] = MockResult{Output: output, Err: err}
	return m
}

// ExpectSuccess is shorthand for Expect(cmd, output, nil).
func (m *MockCommandRunner) ExpectSuccess(cmd string, output []byte) *MockCommandRunner {
	return m.Expect(cmd, output, nil)
}

// ExpectFailure is shorthand for Expect(cmd, nil, err).
func (m *MockCommandRunner) ExpectFailure(cmd string, err error) *MockCommandRunner {
	return m.Expect(cmd, nil, err)
}

// ExpectStart registers a process handle returned when the command is
// started.
func (m *MockCommandRunner) ExpectStart(cmd string, proc *MockProcess) *MockCommandRunner {
	m.processes[cmd] = proc
	return m
}

// AllowUnexpected makes unexpected commands return empty output and nil error.
func (m *MockCommandRunner) AllowUnexpected() *MockCommandRunner {
	m.defaultError = nil
	return m
}

// Run implements CommandRunner.
func (m *MockCommandRunner) Run(name string, args ...string) ([]byte, error) {
	key := commandKey(name, args)

	m.Calls = append(m.Calls, CommandCall{
		Name: name,
		Args: args,
		Key:  key,
	})

	if result, ok := m.commands[key]; ok {
		return result.Output, result.Err
	}

	if m.defaultError != nil {
		return nil, fmt.Errorf("%w: %s", m.defaultError, key)
	}
	return nil, nil
}

// RunQuiet implements CommandRunner.
func (m *MockCommandRunner) RunQuiet(name string, args ...string) (string, error) {
	output, err := m.Run(name, args...)
	if err != nil {
		return string(output), err
	}
	return "", nil
}

// Start implements CommandRunner. Returns the registered MockProcess,
// or fails the same way Run does for unexpected commands.
func (m *MockCommandRunner) Start(name string, args ...string) (Process, error) {
	key := commandKey(name, args)

	m.Calls = append(m.Calls, CommandCall{
		Name: name,
		Args: args,
		Key:  key,
	})

	if proc, ok := m.processes[key]; ok {
		return proc, nil
	}

	if m.defaultError != nil {
		return nil, fmt.Errorf("%w: %s", m.defaultError, key)
	}
	return NewMockProcess(0), nil
}

// Called returns true if the command was called at least once.
func (m *MockCommandRunner) Called(cmd string) bool {
	for _, call := range m.Calls {
		if call.Key == cmd {
			return true
		}
	}
	return false
}

// CallCount returns how many times the command was called.
func (m *MockCommandRunner) CallCount(cmd string) int {
	count := 0
	for _, call := range m.Calls {
		if call.Key == cmd {
			count++
		}
	}
	return count
}

// AssertCalled fails the test if the command was not called.
func (m *MockCommandRunner) AssertCalled(t *testing.T, cmd string) {
	t.Helper()
	if !m.Called(cmd) {
		t.Errorf("expected command to be called: %s", cmd)
		t.Errorf("actual calls: %v", m.CallKeys())
	}
}

// AssertNotCalled fails the test if the command was called.
func (m *MockCommandRunner) AssertNotCalled(t *testing.T, cmd string) {
	t.Helper()
	if m.Called(cmd) {
		t.Errorf("expected command NOT to be called: %s", cmd)
	}
}

// CallKeys returns all called command keys for debugging.
func (m *MockCommandRunner) CallKeys() []string {
	keys := make([]string, len(m.Calls))
	for i, call := range m.Calls {
		keys[i] = call.Key
	}
	return keys
}

func commandKey(name string, args []string) string {
	if len(args) == 0 {
		return name
	}
	return name + " " + strings.Join(args, " ")
}
