package harness

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitDone(t *testing.T, proc *ServerProcess) {
	t.Helper()
	select {
	case <-proc.Done():
	case <-time.After(10 * time.Second):
		t.Fatal("process did not exit")
	}
}

func TestServerProcess_CapturesMergedOutput(t *testing.T) {
	proc, err := NewServerProcess(ProcessConfig{
		Command: helperCommand(),
		Env:     helperEnv("echo", "", ""),
	})
	require.NoError(t, err)
	assert.Equal(t, StateNotStarted, proc.State())

	require.NoError(t, proc.Start())
	assert.Equal(t, StateRunning, proc.State())
	assert.NotZero(t, proc.Pid())

	require.Eventually(t, func() bool {
		out := proc.Output()
		return strings.Contains(out, "hello from stdout") && strings.Contains(out, "hello from stderr")
	}, 10*time.Second, 20*time.Millisecond)

	require.NoError(t, proc.Terminate())
	assert.Equal(t, StateTerminated, proc.State())
	waitDone(t, proc)
	assert.True(t, proc.Exited())
}

func TestServerProcess_StartFailure(t *testing.T) {
	proc, err := NewServerProcess(ProcessConfig{
		Command: Command{"svcprobe-no-such-binary-for-tests"},
	})
	require.NoError(t, err)

	err = proc.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "svcprobe-no-such-binary-for-tests")
	assert.Equal(t, StateNotStarted, proc.State())
	assert.Zero(t, proc.Pid())
}

func TestServerProcess_StartTwice(t *testing.T) {
	proc, err := NewServerProcess(ProcessConfig{
		Command: helperCommand(),
		Env:     helperEnv("echo", "", ""),
	})
	require.NoError(t, err)
	require.NoError(t, proc.Start())
	t.Cleanup(func() { _ = proc.Terminate() })

	assert.Error(t, proc.Start())
}

func TestServerProcess_TerminateExactlyOnce(t *testing.T) {
	counter := countTerminations(t)

	proc, err := NewServerProcess(ProcessConfig{
		Command: helperCommand(),
		Env:     helperEnv("echo", "", ""),
	})
	require.NoError(t, err)
	require.NoError(t, proc.Start())

	for i := 0; i < 3; i++ {
		_ = proc.Terminate()
	}

	assert.Equal(t, 1, counter.Calls())
	waitDone(t, proc)
}

func TestServerProcess_TerminateBeforeStart(t *testing.T) {
	counter := countTerminations(t)

	proc, err := NewServerProcess(ProcessConfig{Command: Command{"true"}})
	require.NoError(t, err)

	assert.NoError(t, proc.Terminate())
	assert.Equal(t, 0, counter.Calls())
	assert.Equal(t, StateNotStarted, proc.State())
}

func TestServerProcess_TerminateAfterExit(t *testing.T) {
	counter := countTerminations(t)

	proc, err := NewServerProcess(ProcessConfig{
		Command: helperCommand(),
		Env:     helperEnv("exit", "", ""),
	})
	require.NoError(t, err)
	require.NoError(t, proc.Start())
	waitDone(t, proc)

	assert.Error(t, proc.ExitErr())
	assert.Contains(t, proc.Output(), "exiting early")

	// The request is still made once; its error is the caller's to ignore.
	_ = proc.Terminate()
	assert.Equal(t, 1, counter.Calls())
	assert.Equal(t, StateTerminated, proc.State())
}

func TestNewServerProcess_EmptyCommand(t *testing.T) {
	_, err := NewServerProcess(ProcessConfig{})
	assert.Error(t, err)
}

func TestNewServerProcess_CopiesCommand(t *testing.T) {
	cmd := Command{"python", "tests/server.py"}
	proc, err := NewServerProcess(ProcessConfig{Command: cmd})
	require.NoError(t, err)

	cmd[0] = "changed"
	assert.Equal(t, Command{"python", "tests/server.py"}, proc.Command())
}

func TestProcessState_String(t *testing.T) {
	assert.Equal(t, "not-started", StateNotStarted.String())
	assert.Equal(t, "running", StateRunning.String())
	assert.Equal(t, "terminated", StateTerminated.String())
	assert.Equal(t, "ProcessState(9)", ProcessState(9).String())
}

func TestOutputBuffer_KeepsTail(t *testing.T) {
	buf := &outputBuffer{limit: 8}

	n, err := buf.Write([]byte("abcdef"))
	require.NoError(t, err)
	assert.Equal(t, 6, n)

	n, err = buf.Write([]byte("ghij"))
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, "cdefghij", buf.String())

	n, err = buf.Write([]byte("0123456789"))
	require.NoError(t, err)
	assert.Equal(t, 10, n)
	assert.Equal(t, "23456789", buf.String())
}

func TestMergeEnv(t *testing.T) {
	env := mergeEnv([]string{"PATH=/bin"}, map[string]string{"B": "2", "A": "1"})
	assert.Equal(t, []string{"PATH=/bin", "A=1", "B=2"}, env)
}
