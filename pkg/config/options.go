package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dshills/svcprobe/pkg/harness"
	"github.com/joho/godotenv"
)

// SecretSource resolves keyring references for env_credentials.
type SecretSource interface {
	Get(ref string) (string, error)
}

// Command returns the server command for the given CI flag.
func (c *Config) Command(ci bool) harness.Command {
	switch {
	case len(c.Server.Command) > 0:
		return harness.Command(c.Server.Command).Clone()
	case ci:
		return harness.Command(c.Server.CICommand).Clone()
	default:
		return harness.Command(c.Server.LocalCommand).Clone()
	}
}

// ServerEnv builds the extra environment for the server: env_file first,
// then env, then env_credentials. Relative env_file paths are resolved
// against baseDir. secrets may be nil when no credentials are referenced.
func (c *Config) ServerEnv(baseDir string, secrets SecretSource) (map[string]string, error) {
	env := make(map[string]string)

	if c.Server.EnvFile != "" {
		path := c.Server.EnvFile
		if !filepath.IsAbs(path) {
			path = filepath.Join(baseDir, path)
		}
		fileEnv, err := godotenv.Read(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read env file %s: %w", path, err)
		}
		for k, v := range fileEnv {
			env[k] = v
		}
	}

	for k, v := range c.Server.Env {
		env[k] = v
	}

	if len(c.Server.EnvCredentials) > 0 && secrets == nil {
		return nil, fmt.Errorf("server.env_credentials set but no credential store available")
	}
	for name, ref := range c.Server.EnvCredentials {
		value, err := secrets.Get(ref)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve credential for %s: %w", name, err)
		}
		env[name] = value
	}

	return env, nil
}

// ReadinessStrategy returns the configured readiness strategy.
func (c *Config) ReadinessStrategy() harness.Readiness {
	if c.Readiness.Mode == ModePoll {
		return harness.PollReadiness{Interval: c.Readiness.PollInterval, Timeout: c.Readiness.Timeout}
	}
	return harness.FixedDelay{Duration: c.Readiness.Delay}
}

// Contract returns the configured response contract, reading schema_file
// relative to baseDir.
func (c *Config) Contract(baseDir string) (*harness.Contract, error) {
	contract := &harness.Contract{
		Status:     c.Expect.Status,
		Body:       c.Expect.Body,
		Fields:     c.Expect.Fields,
		Assertions: c.Expect.Assertions,
	}

	if c.Expect.SchemaFile != "" {
		path := c.Expect.SchemaFile
		if !filepath.IsAbs(path) {
			path = filepath.Join(baseDir, path)
		}
		schema, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read schema file: %w", err)
		}
		contract.Schema = schema
	}

	return contract, nil
}

// HarnessOptions converts the config into session options. lookup reads the
// CI flag (nil means the process environment). baseDir anchors relative
// paths, normally the directory holding the config file.
func (c *Config) HarnessOptions(lookup harness.LookupFunc, baseDir string, secrets SecretSource) (harness.Options, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}

	env, err := c.ServerEnv(baseDir, secrets)
	if err != nil {
		return harness.Options{}, err
	}

	contract, err := c.Contract(baseDir)
	if err != nil {
		return harness.Options{}, err
	}

	ci := harness.IsCI(lookup, c.Server.CIEnv)

	dir := c.Server.Dir
	if dir != "" && !filepath.IsAbs(dir) {
		dir = filepath.Join(baseDir, dir)
	}

	return harness.Options{
		Command:   c.Command(ci),
		CIEnvVar:  c.Server.CIEnv,
		LookupEnv: lookup,
		Dir:       dir,
		Env:       env,
		Readiness: c.ReadinessStrategy(),
		Request: harness.Request{
			Method:  c.Request.Method,
			URL:     c.Request.URL,
			Body:    []byte(c.Request.Body),
			Headers: c.Request.Headers,
		},
		RequestTimeout: c.Request.Timeout,
		Contract:       contract,
		OutputLimit:    c.Server.OutputLimit,
	}, nil
}
