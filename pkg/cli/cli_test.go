package cli

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dshills/svcprobe/pkg/config"
	"github.com/dshills/svcprobe/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandCommand(t *testing.T) {
	tests := []struct {
		name string
		ci   string
		want string
	}{
		{"local", "", "pipenv run python tests/server.py\n"},
		{"github actions", "true", "python tests/server.py\n"},
		{"any non empty value", "0", "python tests/server.py\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setupCLI(t)
			t.Setenv("GITHUB_ACTIONS", tt.ci)

			out, err := executeCommand(t, "", "command")
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestConfigInitAndShow(t *testing.T) {
	dir := setupCLI(t)

	out, err := executeCommand(t, "", "config", "init")
	require.NoError(t, err)
	assert.Contains(t, out, filepath.Join(dir, config.FileName))

	_, err = executeCommand(t, "", "config", "init")
	assert.Error(t, err, "refuses to overwrite")

	_, err = executeCommand(t, "", "config", "init", "--force")
	assert.NoError(t, err)

	loaded, err := config.Load(filepath.Join(dir, config.FileName))
	require.NoError(t, err)
	assert.Equal(t, config.DefaultConfig(), loaded)

	out, err = executeCommand(t, "", "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "http://localhost:22346/orders/2393483")
	assert.Contains(t, out, "Order received")
}

func TestRunCommand_PassRecordsHistory(t *testing.T) {
	dir := setupCLI(t)
	cfgPath := writeHelperConfig(t, dir, "")

	out, err := executeCommand(t, "", "run", "--config", cfgPath)
	require.NoError(t, err, out)
	assert.Contains(t, out, "PASS")
	assert.Contains(t, out, "Order received")

	repo, err := storage.NewSQLiteRunRepository(dir)
	require.NoError(t, err)
	defer func() { _ = repo.Close() }()

	runs, err := repo.List(0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.True(t, runs[0].Passed())
	assert.Equal(t, 200, runs[0].StatusCode)

	out, err = executeCommand(t, "", "history", "list")
	require.NoError(t, err)
	assert.Contains(t, out, runs[0].ID.String())
	assert.Contains(t, out, "passed")

	out, err = executeCommand(t, "", "history", "show", runs[0].ID.String(), "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"status": "passed"`)
}

func TestRunCommand_FailureIsReportedAndRecorded(t *testing.T) {
	dir := setupCLI(t)
	cfgPath := writeHelperConfig(t, dir, "Order rejected")

	out, err := executeCommand(t, "", "run", "--config", cfgPath)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRunFailed))
	assert.Contains(t, out, "FAIL")
	assert.Contains(t, out, "[contract]")
	assert.Contains(t, out, "server output", "failures include captured output")

	repo, err := storage.NewSQLiteRunRepository(dir)
	require.NoError(t, err)
	defer func() { _ = repo.Close() }()

	runs, err := repo.List(0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, storage.RunFailed, runs[0].Status)
	assert.Equal(t, "contract", runs[0].Phase)
}

func TestRunCommand_NoRecord(t *testing.T) {
	dir := setupCLI(t)
	cfgPath := writeHelperConfig(t, dir, "")

	_, err := executeCommand(t, "", "run", "--config", cfgPath, "--no-record")
	require.NoError(t, err)

	out, err := executeCommand(t, "", "history", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No runs found.")
}

func TestRunCommand_StartupFailure(t *testing.T) {
	dir := setupCLI(t)

	cfg := config.DefaultConfig()
	cfg.Server.Command = []string{"svcprobe-no-such-binary-for-tests"}
	cfg.Readiness.Mode = config.ModePoll
	path := filepath.Join(dir, "broken.yaml")
	require.NoError(t, cfg.Save(path))

	out, err := executeCommand(t, "", "run", "--config", path)
	require.Error(t, err)
	assert.Contains(t, out, "[startup]")
}

func TestRunCommand_InvalidConfig(t *testing.T) {
	dir := setupCLI(t)
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("readiness:\n  mode: later\n"), 0644))

	_, err := executeCommand(t, "", "run", "--config", path)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrRunFailed))
}

func TestProbeCommand(t *testing.T) {
	setupCLI(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/orders/2393483" && r.Method == http.MethodPost {
			_, _ = w.Write([]byte(`{"message": "Order received"}`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message": "Not found"}`))
	}))
	defer srv.Close()

	out, err := executeCommand(t, "", "probe", "--url", srv.URL+"/orders/2393483")
	require.NoError(t, err)
	assert.Contains(t, out, "200")
	assert.Contains(t, out, "PASS")

	out, err = executeCommand(t, "", "probe", "--url", srv.URL+"/orders/missing/extra")
	require.Error(t, err)
	assert.Contains(t, out, "404")
	assert.Contains(t, out, "FAIL")
}

func TestProbeCommand_ConnectionRefused(t *testing.T) {
	setupCLI(t)

	_, err := executeCommand(t, "", "probe", "--url", "http://"+freeAddr(t)+"/orders/2393483")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "request failed")
}

func TestHistoryCommands(t *testing.T) {
	dir := setupCLI(t)

	repo, err := storage.NewSQLiteRunRepository(dir)
	require.NoError(t, err)
	old := &storage.RunRecord{
		ID:        "old-run",
		StartedAt: time.Now().Add(-72 * time.Hour),
		Command:   []string{"python", "tests/server.py"},
		Status:    storage.RunFailed,
		Phase:     "request",
		Error:     "connection refused",
	}
	recent := &storage.RunRecord{
		ID:         "recent-run",
		StartedAt:  time.Now(),
		Duration:   2100 * time.Millisecond,
		Command:    []string{"python", "tests/server.py"},
		Status:     storage.RunPassed,
		StatusCode: 200,
		Body:       `{"message": "Order received"}`,
	}
	require.NoError(t, repo.Save(old))
	require.NoError(t, repo.Save(recent))
	require.NoError(t, repo.Close())

	out, err := executeCommand(t, "", "history", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "old-run")
	assert.Contains(t, out, "recent-run")
	assert.Less(t, strings.Index(out, "recent-run"), strings.Index(out, "old-run"), "newest first")

	out, err = executeCommand(t, "", "history", "list", "--since", "24h")
	require.NoError(t, err)
	assert.NotContains(t, out, "old-run")
	assert.Contains(t, out, "recent-run")

	out, err = executeCommand(t, "", "history", "list", "--limit", "1")
	require.NoError(t, err)
	assert.NotContains(t, out, "old-run")

	_, err = executeCommand(t, "", "history", "list", "--since", "soon")
	assert.Error(t, err)

	out, err = executeCommand(t, "", "history", "show", "old-run")
	require.NoError(t, err)
	assert.Contains(t, out, "FAIL")
	assert.Contains(t, out, "connection refused")

	_, err = executeCommand(t, "", "history", "delete", "old-run")
	require.NoError(t, err)

	_, err = executeCommand(t, "", "history", "show", "old-run")
	assert.ErrorIs(t, err, storage.ErrRunNotFound)
}

func TestCredentialCommands(t *testing.T) {
	setupCLI(t)

	out, err := executeCommand(t, "", "credential", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No credentials stored.")

	_, err = executeCommand(t, "s3cret\n", "credential", "set", "orders-api-key", "--stdin")
	require.NoError(t, err)

	out, err = executeCommand(t, "", "credential", "get", "orders-api-key")
	require.NoError(t, err)
	assert.Equal(t, "orders-api-key: (set)\n", out)
	assert.NotContains(t, out, "s3cret")

	out, err = executeCommand(t, "", "credential", "get", "orders-api-key", "--reveal")
	require.NoError(t, err)
	assert.Equal(t, "s3cret\n", out)

	out, err = executeCommand(t, "", "credential", "list")
	require.NoError(t, err)
	assert.Equal(t, "orders-api-key\n", out)

	_, err = executeCommand(t, "", "credential", "delete", "orders-api-key")
	require.NoError(t, err)

	_, err = executeCommand(t, "", "credential", "get", "orders-api-key")
	assert.ErrorIs(t, err, storage.ErrCredentialNotFound)
}

func TestCredentialSet_RejectsBlankInput(t *testing.T) {
	tests := []struct {
		name  string
		stdin string
	}{
		{"empty", ""},
		{"newline only", "\r\n"},
		{"whitespace", " \t "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setupCLI(t)
			_, err := executeCommand(t, tt.stdin, "credential", "set", "token", "--stdin")
			assert.Error(t, err)
		})
	}
}

func TestRunCommand_InjectsCredentials(t *testing.T) {
	dir := setupCLI(t)
	cfgPath := writeHelperConfig(t, dir, "")

	cfg, err := config.Load(cfgPath)
	require.NoError(t, err)
	cfg.Server.EnvCredentials = map[string]string{"SVCPROBE_ORDERSERVER_MESSAGE": "order-message"}
	require.NoError(t, cfg.Save(cfgPath))

	_, err = executeCommand(t, "", "run", "--config", cfgPath, "--no-record")
	require.Error(t, err, "missing credential fails before starting")
	assert.False(t, errors.Is(err, ErrRunFailed))

	_, err = executeCommand(t, "Order received\n", "credential", "set", "order-message", "--stdin")
	require.NoError(t, err)

	out, err := executeCommand(t, "", "run", "--config", cfgPath, "--no-record")
	require.NoError(t, err, out)
}

func TestParseSinceFlag(t *testing.T) {
	now := time.Now()

	got, err := parseSinceFlag("7d")
	require.NoError(t, err)
	assert.WithinDuration(t, now.AddDate(0, 0, -7), got, time.Minute)

	got, err = parseSinceFlag("24h")
	require.NoError(t, err)
	assert.WithinDuration(t, now.Add(-24*time.Hour), got, time.Minute)

	got, err = parseSinceFlag("2026-01-05")
	require.NoError(t, err)
	assert.Equal(t, 2026, got.Year())
	assert.Equal(t, time.January, got.Month())

	_, err = parseSinceFlag("invalid")
	assert.Error(t, err)
}

func TestFormatDurationValue(t *testing.T) {
	assert.Equal(t, "-", formatDurationValue(0))
	assert.Equal(t, "250ms", formatDurationValue(250*time.Millisecond))
	assert.Equal(t, "2.1s", formatDurationValue(2100*time.Millisecond))
	assert.Equal(t, "1.5m", formatDurationValue(90*time.Second))
}
