package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "https://api.devnet.solana.com", cfg.RPCEndpoint)
	require.Equal(t, "confirmed", cfg.Commitment)
	require.Equal(t, 30*time.Second, cfg.RequestTimeout)
	require.Equal(t, 5, cfg.LinkMaxAttempts)
	require.Equal(t, 2*time.Second, cfg.PollInterval)
	require.Equal(t, uint64(1_000_000_000), cfg.Lamports)
	require.Equal(t, ":9090", cfg.MetricsAddr)

	require.NoError(t, cfg.Validate())
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("HEARTBEAT_RPC_ENDPOINT", "https://api.testnet.solana.com")
	t.Setenv("HEARTBEAT_COMMITMENT", "finalized")
	t.Setenv("HEARTBEAT_POLL_INTERVAL", "500ms")
	t.Setenv("HEARTBEAT_LAMPORTS", "5000")
	t.Setenv("HEARTBEAT_RECIPIENT", "11111111111111111111111111111112")
	t.Setenv("HEARTBEAT_NETWORK_SSID", "lab")
	t.Setenv("HEARTBEAT_NETWORK_PASSWORD", "hunter2")

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "https://api.testnet.solana.com", cfg.RPCEndpoint)
	require.Equal(t, "finalized", cfg.Commitment)
	require.Equal(t, 500*time.Millisecond, cfg.PollInterval)
	require.Equal(t, uint64(5000), cfg.Lamports)
	require.Equal(t, "11111111111111111111111111111112", cfg.Recipient)
	require.Equal(t, "lab", cfg.NetworkSSID)
	require.Equal(t, "hunter2", cfg.NetworkPassword)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			RPCEndpoint:        "https://api.devnet.solana.com",
			Commitment:         "confirmed",
			RequestTimeout:     30 * time.Second,
			LinkMaxAttempts:    5,
			LinkAttemptTimeout: 15 * time.Second,
			LinkBackoff:        time.Second,
			LinkMaxBackoff:     30 * time.Second,
			PollInterval:       2 * time.Second,
			Lamports:           1_000_000_000,
		}
	}

	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"fixed backoff allowed", func(c *Config) { c.LinkMaxBackoff = 0 }, ""},
		{"missing endpoint", func(c *Config) { c.RPCEndpoint = "" }, "rpc endpoint"},
		{"zero poll interval", func(c *Config) { c.PollInterval = 0 }, "poll interval"},
		{"negative timeout", func(c *Config) { c.RequestTimeout = -time.Second }, "request timeout"},
		{"zero attempts", func(c *Config) { c.LinkMaxAttempts = 0 }, "link max attempts"},
		{"negative backoff", func(c *Config) { c.LinkBackoff = -time.Second }, "link backoff"},
		{"zero lamports", func(c *Config) { c.Lamports = 0 }, "lamports"},
		{"bad commitment", func(c *Config) { c.Commitment = "eventual" }, "commitment"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid()
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.wantErr == "" {
				require.NoError(t, err)
			} else {
				require.ErrorContains(t, err, tc.wantErr)
			}
		})
	}
}
