package cli

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/dshills/svcprobe/pkg/config"
	"github.com/spf13/cobra"
)

const (
	// Version is the current version of svcprobe
	Version = "1.0.0"
)

// Config holds the global configuration for the svcprobe CLI
type Config struct {
	ConfigDir string
	Debug     bool
}

// GlobalConfig is the shared configuration instance
var GlobalConfig = &Config{}

// NewRootCommand creates the root cobra command for svcprobe
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "svcprobe",
		Short: "svcprobe - start a server, probe its order endpoint, tear it down",
		Long: `svcprobe runs a black-box integration check against an HTTP service.

It starts the server as a child process ("python tests/server.py" under
GitHub Actions, "pipenv run python tests/server.py" elsewhere), waits for it
to warm up, POSTs {} to http://localhost:22346/orders/2393483, checks for
200 {"message": "Order received"} and then signals the server to stop.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := initConfig(); err != nil {
				return fmt.Errorf("failed to initialize configuration: %w", err)
			}

			if GlobalConfig.Debug {
				log.SetOutput(os.Stderr)
				log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
			} else {
				log.SetOutput(io.Discard)
			}

			return nil
		},
	}

	cmd.PersistentFlags().BoolVar(&GlobalConfig.Debug, "debug", false, "Enable debug logging")
	cmd.PersistentFlags().StringVar(&GlobalConfig.ConfigDir, "config-dir", "", "Configuration directory (default: ~/.svcprobe)")

	cmd.AddCommand(NewRunCommand())
	cmd.AddCommand(NewCommandCommand())
	cmd.AddCommand(NewProbeCommand())
	cmd.AddCommand(NewHistoryCommand())
	cmd.AddCommand(NewCredentialCommand())
	cmd.AddCommand(NewConfigCommand())

	return cmd
}

// initConfig resolves and creates the configuration directory
func initConfig() error {
	// Environment variable always takes priority
	if envDir := os.Getenv(config.DirEnvVar); envDir != "" {
		GlobalConfig.ConfigDir = envDir
	} else if GlobalConfig.ConfigDir == "" {
		dir, err := config.DefaultDir()
		if err != nil {
			return err
		}
		GlobalConfig.ConfigDir = dir
	}

	if err := os.MkdirAll(GlobalConfig.ConfigDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return nil
}

// GetConfigDir returns the configuration directory path.
// Priority order: 1) SVCPROBE_CONFIG_DIR, 2) --config-dir, 3) ~/.svcprobe
func GetConfigDir() string {
	if envDir := os.Getenv(config.DirEnvVar); envDir != "" {
		return envDir
	}
	if GlobalConfig.ConfigDir == "" {
		dir, err := config.DefaultDir()
		if err != nil {
			return ".svcprobe"
		}
		return dir
	}
	return GlobalConfig.ConfigDir
}

// GetConfigPath returns the default config file path
func GetConfigPath() string {
	return filepath.Join(GetConfigDir(), config.FileName)
}

// loadConfig loads the config file at path, or the default one when path
// is empty. It returns the directory relative paths resolve against.
func loadConfig(path string) (*config.Config, string, error) {
	if path == "" {
		path = GetConfigPath()
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load config: %w", err)
	}

	// Relative paths in a config file are anchored to its directory; with
	// no file at all they are anchored to the working directory.
	baseDir := filepath.Dir(path)
	if _, err := os.Stat(path); err != nil {
		if baseDir, err = os.Getwd(); err != nil {
			return nil, "", fmt.Errorf("failed to get working directory: %w", err)
		}
	}
	return cfg, baseDir, nil
}

// Execute runs the root command
func Execute() error {
	return NewRootCommand().Execute()
}
