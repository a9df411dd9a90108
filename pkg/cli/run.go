package cli

import (
	"errors"
	"fmt"
	"log"

	"github.com/dshills/svcprobe/pkg/config"
	"github.com/dshills/svcprobe/pkg/domain/types"
	"github.com/dshills/svcprobe/pkg/harness"
	"github.com/dshills/svcprobe/pkg/storage"
	"github.com/spf13/cobra"
)

// ErrRunFailed is returned by the run command when the check did not pass.
var ErrRunFailed = errors.New("run failed")

// NewRunCommand creates the run command
func NewRunCommand() *cobra.Command {
	var (
		configPath string
		poll       bool
		noRecord   bool
		showOutput bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the server, check the order endpoint and stop it",
		Long: `Run one full harness session: spawn the server, wait, send the request,
check the response, then send the server a termination signal.

The run is recorded in ~/.svcprobe/runs.db unless --no-record is given.

Examples:
  # Fixed 2 second warm-up, defaults for everything
  svcprobe run

  # Poll the port instead of waiting blindly
  svcprobe run --poll

  # Use a project config
  svcprobe run --config ./svcprobe.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, baseDir, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if poll {
				cfg.Readiness.Mode = config.ModePoll
			}

			opts, err := cfg.HarnessOptions(nil, baseDir, newCredentialStore())
			if err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			opts.RunID = types.NewRunID().String()

			result, runErr := harness.Run(cmd.Context(), opts)
			rec := storage.NewRunRecord(result)

			printReport(cmd.OutOrStdout(), rec, showOutput || runErr != nil)

			if !noRecord {
				if err := recordRun(rec); err != nil {
					log.Printf("failed to record run %s: %v", rec.ID, err)
					_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Warning: run not recorded: %v\n", err)
				}
			}

			if runErr != nil {
				return fmt.Errorf("%w: %s", ErrRunFailed, rec.ID)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Config file (default: <config-dir>/svcprobe.yaml)")
	cmd.Flags().BoolVar(&poll, "poll", false, "Poll the server port instead of the fixed warm-up delay")
	cmd.Flags().BoolVar(&noRecord, "no-record", false, "Do not store the run in history")
	cmd.Flags().BoolVar(&showOutput, "output", false, "Print captured server output even when the run passes")

	return cmd
}

func recordRun(rec *storage.RunRecord) error {
	repo, err := storage.NewSQLiteRunRepository(GetConfigDir())
	if err != nil {
		return err
	}
	defer func() { _ = repo.Close() }()

	return repo.Save(rec)
}
