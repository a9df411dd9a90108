package harness

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	harnesserrors "github.com/dshills/svcprobe/pkg/errors"
)

// Options configures a Session. The zero value reproduces the fixed
// behaviour: command chosen by GITHUB_ACTIONS, 2 second blind warm-up,
// POST {} to the order endpoint, expect 200 and {"message": "Order received"}.
type Options struct {
	Command        Command           // Explicit command; empty = choose by CI flag
	CIEnvVar       string            // Variable consulted for the CI flag (default GITHUB_ACTIONS)
	LookupEnv      LookupFunc        // Environment reader (default os.LookupEnv)
	Dir            string            // Working directory for the server
	Env            map[string]string // Extra environment for the server
	Readiness      Readiness         // Default FixedDelay{DefaultWarmup}
	Request        Request           // Zero URL = DefaultRequest()
	RequestTimeout time.Duration     // Default DefaultRequestTimeout
	Contract       *Contract         // Nil = DefaultContract()
	RunID          string            // Attached to errors when set
	OutputLimit    int               // Captured output cap
}

// Session is one harness lifecycle around a single server process.
type Session struct {
	opts    Options
	command Command
	ci      bool
	proc    *ServerProcess
	client  *Client
}

// NewSession resolves the command and prepares, but does not start, a session.
func NewSession(opts Options) *Session {
	if opts.LookupEnv == nil {
		opts.LookupEnv = os.LookupEnv
	}
	if opts.CIEnvVar == "" {
		opts.CIEnvVar = CIEnvVar
	}
	if opts.Readiness == nil {
		opts.Readiness = FixedDelay{Duration: DefaultWarmup}
	}
	if opts.Request.URL == "" {
		opts.Request = DefaultRequest()
	}
	if opts.Request.Method == "" {
		opts.Request.Method = DefaultMethod
	}
	if opts.Contract == nil {
		c := DefaultContract()
		opts.Contract = &c
	}

	ci := IsCI(opts.LookupEnv, opts.CIEnvVar)
	command := opts.Command.Clone()
	if len(command) == 0 {
		command = SelectCommand(ci)
	}

	return &Session{
		opts:    opts,
		command: command,
		ci:      ci,
		client:  NewClient(opts.RequestTimeout),
	}
}

// Command returns the command this session runs.
func (s *Session) Command() Command {
	return s.command.Clone()
}

// CI reports whether the CI flag was set when the session was created.
func (s *Session) CI() bool {
	return s.ci
}

// Setup spawns the server and waits for readiness. Spawn failures are
// PhaseStartup errors; readiness failures are PhaseReadiness errors.
func (s *Session) Setup(ctx context.Context) error {
	if s.proc != nil {
		return fmt.Errorf("session already set up")
	}

	proc, err := NewServerProcess(ProcessConfig{
		Command:     s.command,
		Dir:         s.opts.Dir,
		Env:         s.opts.Env,
		OutputLimit: s.opts.OutputLimit,
	})
	if err != nil {
		return harnesserrors.NewPhaseError(harnesserrors.PhaseStartup, "preparing server", s.opts.RunID, err)
	}

	log.Printf("starting server: %s", s.command)
	if err := proc.Start(); err != nil {
		return harnesserrors.NewPhaseErrorWithAttrs(harnesserrors.PhaseStartup, "spawning server", s.opts.RunID, err,
			map[string]interface{}{"command": s.command.String()})
	}
	s.proc = proc
	log.Printf("server started with pid %d", proc.Pid())

	if err := s.opts.Readiness.Wait(ctx, proc, s.opts.Request.URL); err != nil {
		return harnesserrors.NewPhaseError(harnesserrors.PhaseReadiness, "waiting for server", s.opts.RunID, err)
	}
	return nil
}

// Probe sends the configured request once. It may be called repeatedly; each
// call is independent and nothing is retried.
func (s *Session) Probe(ctx context.Context) (*Response, error) {
	req := s.opts.Request
	log.Printf("sending %s %s", req.Method, req.URL)

	resp, err := s.client.Do(ctx, req)
	if err != nil {
		return nil, harnesserrors.NewPhaseErrorWithAttrs(harnesserrors.PhaseRequest, "sending request", s.opts.RunID, err,
			map[string]interface{}{"url": req.URL})
	}
	log.Printf("received %d in %v", resp.StatusCode, resp.Duration)
	return resp, nil
}

// Verify probes once and checks the response against the contract. The
// response is returned even when the contract check fails.
func (s *Session) Verify(ctx context.Context) (*Response, error) {
	resp, err := s.Probe(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.opts.Contract.Check(resp); err != nil {
		return resp, harnesserrors.NewPhaseError(harnesserrors.PhaseContract, "checking response", s.opts.RunID, err)
	}
	return resp, nil
}

// Teardown requests termination of the server. It is best effort: it does
// not wait for exit and never fails. Safe to call more than once.
func (s *Session) Teardown() {
	s.client.Close()
	if s.proc == nil {
		return
	}
	if err := s.proc.Terminate(); err != nil {
		log.Printf("ignoring teardown error: %v", err)
	}
}

// Process returns the server handle, or nil before Setup.
func (s *Session) Process() *ServerProcess {
	return s.proc
}

// Output returns the server's captured output.
func (s *Session) Output() string {
	if s.proc == nil {
		return ""
	}
	return s.proc.Output()
}

// Result summarises a complete Run.
type Result struct {
	RunID     string
	Command   Command
	CI        bool
	StartedAt time.Time
	Duration  time.Duration
	Response  *Response
	Output    string
	Err       error
}

// Passed reports whether the run succeeded.
func (r *Result) Passed() bool {
	return r.Err == nil
}

// Run performs Setup, Verify and Teardown. Teardown always runs once Setup
// has spawned a process, whatever the outcome. The returned error equals
// Result.Err.
func Run(ctx context.Context, opts Options) (*Result, error) {
	s := NewSession(opts)
	result := &Result{
		RunID:     opts.RunID,
		Command:   s.Command(),
		CI:        s.CI(),
		StartedAt: time.Now(),
	}

	func() {
		defer s.Teardown()
		if err := s.Setup(ctx); err != nil {
			result.Err = err
			return
		}
		result.Response, result.Err = s.Verify(ctx)
	}()

	result.Duration = time.Since(result.StartedAt)
	result.Output = s.Output()
	return result, result.Err
}
