// Package harnesstest wires harness sessions into go test.
//
// Session scope, one server for the whole package:
//
//	var session *harness.Session
//
//	func TestMain(m *testing.M) {
//	    os.Exit(harnesstest.Main(m, harness.Options{}, &session))
//	}
//
// Test scope, one server per test:
//
//	s := harnesstest.Start(t, harness.Options{})
//	harnesstest.Verify(t, s)
package harnesstest

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/dshills/svcprobe/pkg/harness"
)

// Start sets up a session and registers its teardown with t.Cleanup.
// Setup failures abort the test.
func Start(t testing.TB, opts harness.Options) *harness.Session {
	t.Helper()

	s := harness.NewSession(opts)
	t.Cleanup(s.Teardown)

	if err := s.Setup(context.Background()); err != nil {
		t.Fatalf("harness setup failed: %v\nserver output:\n%s", err, s.Output())
	}
	return s
}

// Verify sends the session's request and fails the test on any contract or
// transport error.
func Verify(t testing.TB, s *harness.Session) *harness.Response {
	t.Helper()

	resp, err := s.Verify(context.Background())
	if err != nil {
		t.Fatalf("%v\nserver output:\n%s", err, s.Output())
	}
	return resp
}

// Main runs the package's tests inside one session. The session is stored
// in *out before the tests run and torn down after, whatever they report.
// It returns the exit code for os.Exit.
func Main(m *testing.M, opts harness.Options, out **harness.Session) int {
	s := harness.NewSession(opts)
	if out != nil {
		*out = s
	}
	defer s.Teardown()

	if err := s.Setup(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "harness setup failed: %v\nserver output:\n%s\n", err, s.Output())
		return 1
	}

	return m.Run()
}
