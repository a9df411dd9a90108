package harness

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"sync"
	"time"
)

// DefaultOutputLimit caps the captured server output kept in memory.
const DefaultOutputLimit = 1 << 20

// outputWaitDelay bounds how long the reaper keeps copying output after the
// direct child exits. Wrappers such as pipenv or sh can leave a grandchild
// holding the pipes open.
const outputWaitDelay = time.Second

// ProcessState is the lifecycle position of a ServerProcess.
type ProcessState int

const (
	StateNotStarted ProcessState = iota
	StateRunning
	StateTerminated
)

func (s ProcessState) String() string {
	switch s {
	case StateNotStarted:
		return "not-started"
	case StateRunning:
		return "running"
	case StateTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("ProcessState(%d)", int(s))
	}
}

// ProcessConfig describes how to spawn the server.
type ProcessConfig struct {
	Command     Command
	Dir         string            // Working directory (empty = current)
	Env         map[string]string // Added on top of the parent environment
	OutputLimit int               // Bytes of merged output to retain (0 = DefaultOutputLimit)
}

// terminateProcess is swapped in tests to observe signal delivery.
var terminateProcess = terminate

// ServerProcess owns a spawned server. Its stdout and stderr are merged into
// one captured buffer. It moves NotStarted -> Running -> Terminated and never
// goes back.
type ServerProcess struct {
	config  ProcessConfig
	cmd     *exec.Cmd
	output  *outputBuffer
	mu      sync.Mutex
	state   ProcessState
	done    chan struct{}
	waitErr error
}

// NewServerProcess creates an unstarted process handle.
func NewServerProcess(config ProcessConfig) (*ServerProcess, error) {
	if err := config.Command.Validate(); err != nil {
		return nil, err
	}

	limit := config.OutputLimit
	if limit <= 0 {
		limit = DefaultOutputLimit
	}
	config.Command = config.Command.Clone()

	return &ServerProcess{
		config: config,
		output: &outputBuffer{limit: limit},
		done:   make(chan struct{}),
	}, nil
}

// Start spawns the command. It returns once the process exists; it does not
// wait for the server to listen.
func (p *ServerProcess) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != StateNotStarted {
		return fmt.Errorf("process already %s", p.state)
	}

	cmd := exec.Command(p.config.Command.Program(), p.config.Command.Args()...)
	cmd.Dir = p.config.Dir
	if len(p.config.Env) > 0 {
		cmd.Env = mergeEnv(os.Environ(), p.config.Env)
	}

	// Same writer for both streams: os/exec serialises writes to it.
	cmd.Stdout = p.output
	cmd.Stderr = p.output
	cmd.WaitDelay = outputWaitDelay

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start command %q: %w", p.config.Command.String(), err)
	}

	p.cmd = cmd
	p.state = StateRunning

	go p.reap()

	return nil
}

// reap collects the exit status so the child never lingers as a zombie.
func (p *ServerProcess) reap() {
	err := p.cmd.Wait()
	p.mu.Lock()
	p.waitErr = err
	p.mu.Unlock()
	close(p.done)
}

// Terminate sends a graceful termination request the first time it is called
// on a running process. Later calls, and calls on a process that never
// started, do nothing. It does not wait for the process to exit.
func (p *ServerProcess) Terminate() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != StateRunning {
		return nil
	}
	p.state = StateTerminated

	if err := terminateProcess(p.cmd.Process); err != nil {
		return fmt.Errorf("failed to terminate process %d: %w", p.cmd.Process.Pid, err)
	}
	return nil
}

// State returns the current lifecycle state.
func (p *ServerProcess) State() ProcessState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Pid returns the process ID, or 0 before Start.
func (p *ServerProcess) Pid() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cmd == nil || p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

// Command returns the command the process was created with.
func (p *ServerProcess) Command() Command {
	return p.config.Command.Clone()
}

// Output returns the merged stdout and stderr captured so far.
func (p *ServerProcess) Output() string {
	return p.output.String()
}

// Done is closed once the process has exited and been reaped.
func (p *ServerProcess) Done() <-chan struct{} {
	return p.done
}

// ExitErr returns the result of waiting on the process. It is only
// meaningful after Done is closed.
func (p *ServerProcess) ExitErr() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.waitErr
}

// Exited reports whether the process has already exited.
func (p *ServerProcess) Exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

func mergeEnv(base []string, extra map[string]string) []string {
	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	env := make([]string, 0, len(base)+len(keys))
	env = append(env, base...)
	for _, k := range keys {
		env = append(env, fmt.Sprintf("%s=%s", k, extra[k]))
	}
	return env
}

// outputBuffer keeps the last limit bytes written to it.
type outputBuffer struct {
	mu    sync.Mutex
	buf   bytes.Buffer
	limit int
}

func (b *outputBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := len(p)
	if len(p) > b.limit {
		p = p[len(p)-b.limit:]
	}
	if overflow := b.buf.Len() + len(p) - b.limit; overflow > 0 {
		b.buf.Next(overflow)
	}
	b.buf.Write(p)
	return n, nil
}

func (b *outputBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
