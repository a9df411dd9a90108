package harness

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"time"
)

const (
	// DefaultWarmup is the blind delay between spawning the server and
	// sending the request.
	DefaultWarmup = 2 * time.Second
	// DefaultPollInterval is how often PollReadiness dials the server.
	DefaultPollInterval = 100 * time.Millisecond
	// DefaultPollTimeout bounds PollReadiness.
	DefaultPollTimeout = 10 * time.Second
)

// Readiness decides when a freshly spawned server may receive the request.
type Readiness interface {
	Wait(ctx context.Context, proc *ServerProcess, target string) error
}

// FixedDelay blocks for a fixed duration and performs no handshake. If the
// server is slower than the delay, the request fails with a connection error.
type FixedDelay struct {
	Duration time.Duration
}

// Wait sleeps for the configured duration.
func (d FixedDelay) Wait(ctx context.Context, proc *ServerProcess, target string) error {
	time.Sleep(d.Duration)
	return nil
}

// PollReadiness dials the target's host:port every Interval until a TCP
// connection succeeds, the process exits, or Timeout elapses.
type PollReadiness struct {
	Interval time.Duration
	Timeout  time.Duration
}

// Wait polls until the server accepts connections.
func (r PollReadiness) Wait(ctx context.Context, proc *ServerProcess, target string) error {
	addr, err := dialAddress(target)
	if err != nil {
		return err
	}

	interval := r.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultPollTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var done <-chan struct{}
	if proc != nil {
		done = proc.Done()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var dialer net.Dialer
	var lastErr error
	for {
		attemptCtx, cancelAttempt := context.WithTimeout(ctx, interval)
		conn, err := dialer.DialContext(attemptCtx, "tcp", addr)
		cancelAttempt()
		if err == nil {
			_ = conn.Close()
			return nil
		}
		lastErr = err

		select {
		case <-ctx.Done():
			return fmt.Errorf("server at %s not ready after %v: %w", addr, timeout, lastErr)
		case <-done:
			return fmt.Errorf("server process exited before accepting connections on %s: %v", addr, proc.ExitErr())
		case <-ticker.C:
		}
	}
}

// dialAddress extracts host:port from a URL, filling in the scheme's
// default port.
func dialAddress(target string) (string, error) {
	u, err := url.Parse(target)
	if err != nil {
		return "", fmt.Errorf("invalid target URL %q: %w", target, err)
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("target URL %q has no host", target)
	}

	port := u.Port()
	if port == "" {
		switch u.Scheme {
		case "https":
			port = "443"
		case "http":
			port = "80"
		default:
			return "", fmt.Errorf("target URL %q has no port", target)
		}
	}
	return net.JoinHostPort(u.Hostname(), port), nil
}
