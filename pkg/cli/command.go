package cli

import (
	"fmt"
	"os"

	"github.com/dshills/svcprobe/pkg/harness"
	"github.com/spf13/cobra"
)

// NewCommandCommand creates the command that prints the selected server command
func NewCommandCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "command",
		Short: "Print the server command for the current environment",
		Long: `Print the command svcprobe would start. Under GitHub Actions (GITHUB_ACTIONS
set to any non-empty value) this is "python tests/server.py", otherwise
"pipenv run python tests/server.py", unless the config overrides it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(configPath)
			if err != nil {
				return err
			}

			ci := harness.IsCI(os.LookupEnv, cfg.Server.CIEnv)
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), cfg.Command(ci))
			if GlobalConfig.Debug {
				_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "CI (%s): %t\n", cfg.Server.CIEnv, ci)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Config file (default: <config-dir>/svcprobe.yaml)")

	return cmd
}
