// Package config loads the agent's static configuration. The Config struct
// is built once at startup and passed by reference into constructors; there
// is no mutable package-level state.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config contains all configuration parameters for the agent, loaded from
// the environment with flag overrides in cmd/agent. Immutable after startup.
type Config struct {
	// RPC
	RPCEndpoint    string        `envconfig:"RPC_ENDPOINT" default:"https://api.devnet.solana.com"`
	WSEndpoint     string        `envconfig:"WS_ENDPOINT"`
	Commitment     string        `envconfig:"COMMITMENT" default:"confirmed"`
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"30s"`

	// Network identity. The host OS supplicant owns radio association; the
	// pair lives here so deployments keep a single config surface. The
	// credential is never logged.
	NetworkSSID     string `envconfig:"NETWORK_SSID"`
	NetworkPassword string `envconfig:"NETWORK_PASSWORD"`

	// Link retry budget
	LinkMaxAttempts    int           `envconfig:"LINK_MAX_ATTEMPTS" default:"5"`
	LinkAttemptTimeout time.Duration `envconfig:"LINK_ATTEMPT_TIMEOUT" default:"15s"`
	LinkBackoff        time.Duration `envconfig:"LINK_BACKOFF" default:"1s"`
	// LinkMaxBackoff of 0 selects fixed backoff.
	LinkMaxBackoff time.Duration `envconfig:"LINK_MAX_BACKOFF" default:"30s"`

	// Submission
	PollInterval time.Duration `envconfig:"POLL_INTERVAL" default:"2s"`
	Lamports     uint64        `envconfig:"LAMPORTS" default:"1000000000"`
	// Recipient is a base58 address; empty selects a fresh random recipient
	// each tick.
	Recipient string `envconfig:"RECIPIENT"`

	// Observability
	MetricsAddr string `envconfig:"METRICS_ADDR" default:":9090"`
}

// Load reads configuration from HEARTBEAT_-prefixed environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := envconfig.Process("heartbeat", cfg); err != nil {
		return nil, fmt.Errorf("process config: %w", err)
	}
	return cfg, nil
}

// Validate checks cross-field consistency.
func (c *Config) Validate() error {
	if c.RPCEndpoint == "" {
		return fmt.Errorf("rpc endpoint is required")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %s", c.PollInterval)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive, got %s", c.RequestTimeout)
	}
	if c.LinkMaxAttempts < 1 {
		return fmt.Errorf("link max attempts must be at least 1, got %d", c.LinkMaxAttempts)
	}
	if c.LinkBackoff < 0 || c.LinkMaxBackoff < 0 {
		return fmt.Errorf("link backoff must not be negative")
	}
	if c.Lamports == 0 {
		return fmt.Errorf("lamports must be positive")
	}
	switch c.Commitment {
	case "processed", "confirmed", "finalized":
	default:
		return fmt.Errorf("unknown commitment %q", c.Commitment)
	}
	return nil
}
