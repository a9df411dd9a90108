// Package orderserver provides a reference order endpoint for development
// and testing of the harness.
package orderserver

import (
	"fmt"
	"net"
	"os"
	"strings"
	"time"
)

// ServerConfig configures the reference server.
type ServerConfig struct {
	Addr         string        // Listen address
	Message      string        // Acknowledgement returned for every order
	StartupDelay time.Duration // Pause before binding, to simulate slow startup
}

// DefaultConfig returns the configuration matching the harness defaults.
//
// Defaults:
//   - Addr: localhost:22346
//   - Message: "Order received"
//   - StartupDelay: 0
func DefaultConfig() *ServerConfig {
	return &ServerConfig{
		Addr:    "localhost:22346",
		Message: "Order received",
	}
}

// LoadConfig loads configuration from environment variables.
//
// Environment variables:
//   - SVCPROBE_ORDERSERVER_ADDR: Override listen address
//   - SVCPROBE_ORDERSERVER_MESSAGE: Override acknowledgement message
//   - SVCPROBE_ORDERSERVER_STARTUP_DELAY: Go duration to wait before binding
func LoadConfig() *ServerConfig {
	config := DefaultConfig()

	if addr := os.Getenv("SVCPROBE_ORDERSERVER_ADDR"); addr != "" {
		config.Addr = addr
	}

	if msg, ok := os.LookupEnv("SVCPROBE_ORDERSERVER_MESSAGE"); ok {
		config.Message = msg
	}

	if delayStr := os.Getenv("SVCPROBE_ORDERSERVER_STARTUP_DELAY"); delayStr != "" {
		if delay, err := time.ParseDuration(strings.TrimSpace(delayStr)); err == nil && delay > 0 {
			config.StartupDelay = delay
		}
		// If parsing fails or value is negative, keep the default
	}

	return config
}

// Validate checks if the configuration is valid.
func (c *ServerConfig) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("listen address cannot be empty")
	}
	if _, _, err := net.SplitHostPort(c.Addr); err != nil {
		return fmt.Errorf("invalid listen address %q: %w", c.Addr, err)
	}
	if c.StartupDelay < 0 {
		return fmt.Errorf("startup delay must not be negative, got %v", c.StartupDelay)
	}
	return nil
}
