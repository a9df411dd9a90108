//go:build windows

package harness

import "os"

// Windows has no SIGTERM; Kill is the only termination request available.
func terminate(p *os.Process) error {
	return p.Kill()
}
