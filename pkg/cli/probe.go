package cli

import (
	"fmt"
	"time"

	"github.com/dshills/svcprobe/pkg/harness"
	"github.com/spf13/cobra"
)

// NewProbeCommand creates the probe command
func NewProbeCommand() *cobra.Command {
	var (
		configPath string
		url        string
	)

	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Check the order endpoint of an already running server",
		Long: `Send the configured request to a server that is already running and check
the response contract. No process is started or stopped.

Examples:
  svcprobe probe
  svcprobe probe --url http://127.0.0.1:8080/orders/2393483`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, baseDir, err := loadConfig(configPath)
			if err != nil {
				return err
			}

			contract, err := cfg.Contract(baseDir)
			if err != nil {
				return err
			}

			req := harness.Request{
				Method:  cfg.Request.Method,
				URL:     cfg.Request.URL,
				Body:    []byte(cfg.Request.Body),
				Headers: cfg.Request.Headers,
			}
			if url != "" {
				req.URL = url
			}

			return probe(cmd, req, cfg.Request.Timeout, contract)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Config file (default: <config-dir>/svcprobe.yaml)")
	cmd.Flags().StringVar(&url, "url", "", "Override the request URL")

	return cmd
}

func probe(cmd *cobra.Command, req harness.Request, timeout time.Duration, contract *harness.Contract) error {
	client := harness.NewClient(timeout)
	defer client.Close()

	resp, err := client.Do(cmd.Context(), req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	checkErr := contract.Check(resp)
	printResponse(cmd.OutOrStdout(), resp, checkErr)
	if checkErr != nil {
		return fmt.Errorf("probe failed: %w", checkErr)
	}
	return nil
}
