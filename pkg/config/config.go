// Package config loads the svcprobe YAML configuration. Every field is
// optional: a missing file or an omitted key falls back to the fixed order
// endpoint check.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/dshills/svcprobe/pkg/harness"
	"github.com/dshills/svcprobe/pkg/validation"
	"gopkg.in/yaml.v3"
)

const (
	// FileName is the config file name inside the config directory.
	FileName = "svcprobe.yaml"

	// DirEnvVar overrides the config directory.
	DirEnvVar = "SVCPROBE_CONFIG_DIR"

	ModeDelay = "delay"
	ModePoll  = "poll"
)

// Config is the root of svcprobe.yaml.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Readiness ReadinessConfig `yaml:"readiness"`
	Request   RequestConfig   `yaml:"request"`
	Expect    ExpectConfig    `yaml:"expect"`
}

// ServerConfig describes the process under test.
type ServerConfig struct {
	Command        []string          `yaml:"command,omitempty"` // overrides the CI rule
	CICommand      []string          `yaml:"ci_command"`
	LocalCommand   []string          `yaml:"local_command"`
	CIEnv          string            `yaml:"ci_env"`
	Dir            string            `yaml:"dir,omitempty"`
	Env            map[string]string `yaml:"env,omitempty"`
	EnvFile        string            `yaml:"env_file,omitempty"`
	EnvCredentials map[string]string `yaml:"env_credentials,omitempty"` // variable -> keyring reference
	OutputLimit    int               `yaml:"output_limit,omitempty"`
}

// ReadinessConfig selects how the harness waits before probing.
type ReadinessConfig struct {
	Mode         string        `yaml:"mode"`
	Delay        time.Duration `yaml:"delay"`
	PollInterval time.Duration `yaml:"poll_interval"`
	Timeout      time.Duration `yaml:"timeout"`
}

// RequestConfig is the probe request.
type RequestConfig struct {
	Method  string            `yaml:"method"`
	URL     string            `yaml:"url"`
	Body    string            `yaml:"body"`
	Timeout time.Duration     `yaml:"timeout"`
	Headers map[string]string `yaml:"headers,omitempty"`
}

// ExpectConfig is the response contract.
type ExpectConfig struct {
	Status     int               `yaml:"status"`
	Body       map[string]string `yaml:"body"`
	SchemaFile string            `yaml:"schema_file,omitempty"`
	Fields     map[string]string `yaml:"fields,omitempty"`
	Assertions []string          `yaml:"assertions,omitempty"`
}

// DefaultConfig returns the configuration equal to the built-in behaviour.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			CICommand:    harness.CICommand.Clone(),
			LocalCommand: harness.LocalCommand.Clone(),
			CIEnv:        harness.CIEnvVar,
		},
		Readiness: ReadinessConfig{
			Mode:         ModeDelay,
			Delay:        harness.DefaultWarmup,
			PollInterval: harness.DefaultPollInterval,
			Timeout:      harness.DefaultPollTimeout,
		},
		Request: RequestConfig{
			Method:  harness.DefaultMethod,
			URL:     harness.DefaultURL,
			Body:    harness.DefaultBody,
			Timeout: harness.DefaultRequestTimeout,
		},
		Expect: ExpectConfig{
			Status: 200,
			Body:   map[string]string{"message": harness.DefaultMessage},
		},
	}
}

// DefaultDir returns $SVCPROBE_CONFIG_DIR, or ~/.svcprobe.
func DefaultDir() (string, error) {
	if dir := os.Getenv(DirEnvVar); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(home, ".svcprobe"), nil
}

// Load reads the config at path. A missing file yields DefaultConfig.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults, then validates the result.
func Parse(data []byte) (*Config, error) {
	if err := ValidateAgainstSchema(data); err != nil {
		return nil, err
	}

	// yaml.v3 merges into non-nil maps, so the default body is applied
	// only when the document leaves it out.
	cfg := DefaultConfig()
	cfg.Expect.Body = nil
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse yaml config: %w", err)
	}
	if cfg.Expect.Body == nil {
		cfg.Expect.Body = DefaultConfig().Expect.Body
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the config as YAML, creating parent directories.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate checks the semantic rules the schema cannot express.
func (c *Config) Validate() error {
	if len(c.Server.Command) == 0 {
		if len(c.Server.CICommand) == 0 {
			return fmt.Errorf("server.ci_command cannot be empty")
		}
		if len(c.Server.LocalCommand) == 0 {
			return fmt.Errorf("server.local_command cannot be empty")
		}
	}

	for name := range c.Server.Env {
		if !validation.IsValidEnvName(name) {
			return fmt.Errorf("server.env: invalid variable name %q", name)
		}
	}
	for name, ref := range c.Server.EnvCredentials {
		if !validation.IsValidEnvName(name) {
			return fmt.Errorf("server.env_credentials: invalid variable name %q", name)
		}
		if !validation.IsValidIdentifier(ref) {
			return fmt.Errorf("server.env_credentials: invalid credential reference %q", ref)
		}
	}

	switch c.Readiness.Mode {
	case ModeDelay:
		if c.Readiness.Delay < 0 {
			return fmt.Errorf("readiness.delay cannot be negative")
		}
	case ModePoll:
		if c.Readiness.PollInterval <= 0 {
			return fmt.Errorf("readiness.poll_interval must be positive")
		}
		if c.Readiness.Timeout <= 0 {
			return fmt.Errorf("readiness.timeout must be positive")
		}
	default:
		return fmt.Errorf("readiness.mode must be %q or %q, got %q", ModeDelay, ModePoll, c.Readiness.Mode)
	}

	u, err := url.Parse(c.Request.URL)
	if err != nil {
		return fmt.Errorf("request.url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("request.url must be http or https: %s", c.Request.URL)
	}
	if c.Request.Timeout < 0 {
		return fmt.Errorf("request.timeout cannot be negative")
	}

	if _, err := harness.CompileAssertions(c.Expect.Assertions); err != nil {
		return fmt.Errorf("expect.assertions: %w", err)
	}
	return nil
}
