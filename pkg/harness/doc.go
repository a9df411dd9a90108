// Package harness launches a server process, waits for it to come up, sends
// a single JSON request and checks the response against a contract.
//
// A session follows one linear lifecycle:
//
//	NotStarted -> Running -> Terminated
//
// Setup selects the command (GITHUB_ACTIONS set: "python tests/server.py",
// otherwise "pipenv run python tests/server.py"), spawns it with stdout and
// stderr merged into a captured buffer and blocks for a fixed warm-up. There
// is no readiness handshake unless PollReadiness is selected explicitly, so a
// slow server shows up as a connection error on the request, which is never
// retried.
//
// Verify posts {} to http://localhost:22346/orders/2393483 and expects
// status 200 with body {"message": "Order received"}. The status is checked
// first.
//
// Teardown sends one graceful termination request and does not wait for the
// process to exit.
//
// Basic usage:
//
//	result, err := harness.Run(ctx, harness.Options{})
//	if err != nil {
//	    fmt.Println(result.Output)
//	}
//
// For go test, see package harnesstest.
package harness
