package link

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"sync"
	"time"
)

// Dialer is a Transport that treats TCP reachability of the RPC endpoint as
// the link-established signal. On Linux-class devices the OS supplicant owns
// radio association; what the agent needs to know is whether packets reach
// the endpoint.
type Dialer struct {
	addr          string
	probeTimeout  time.Duration
	probeInterval time.Duration

	mu        sync.Mutex
	up        bool
	lastProbe time.Time
}

// NewDialer creates a reachability transport for addr ("host:port"). Up
// re-probes at most once per probeInterval and otherwise reports the cached
// result.
func NewDialer(addr string, probeTimeout, probeInterval time.Duration) *Dialer {
	if probeTimeout <= 0 {
		probeTimeout = 5 * time.Second
	}
	if probeInterval <= 0 {
		probeInterval = 30 * time.Second
	}
	return &Dialer{addr: addr, probeTimeout: probeTimeout, probeInterval: probeInterval}
}

// ProbeAddr derives the "host:port" probe target from an RPC endpoint URL.
func ProbeAddr(endpoint string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("parse endpoint: %w", err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("endpoint %q has no host", endpoint)
	}
	if u.Port() != "" {
		return u.Host, nil
	}
	switch u.Scheme {
	case "http", "ws":
		return net.JoinHostPort(u.Hostname(), "80"), nil
	default:
		return net.JoinHostPort(u.Hostname(), "443"), nil
	}
}

// Connect probes the endpoint. Success is the link-established signal.
func (d *Dialer) Connect(ctx context.Context) error {
	if err := d.probe(ctx); err != nil {
		return fmt.Errorf("probe %s: %w", d.addr, err)
	}
	return nil
}

// Disconnect marks the link down. The probe itself is stateless; there is no
// connection to tear down.
func (d *Dialer) Disconnect() error {
	d.mu.Lock()
	d.up = false
	d.mu.Unlock()
	return nil
}

// Up reports link liveness, re-probing when the cached result is stale so a
// dead uplink is noticed before an RPC call times out against it.
func (d *Dialer) Up() bool {
	d.mu.Lock()
	fresh := d.up && time.Since(d.lastProbe) < d.probeInterval
	d.mu.Unlock()
	if fresh {
		return true
	}

	ctx, cancel := context.WithTimeout(context.Background(), d.probeTimeout)
	defer cancel()
	return d.probe(ctx) == nil
}

func (d *Dialer) probe(ctx context.Context) error {
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", d.addr)

	d.mu.Lock()
	d.up = err == nil
	d.lastProbe = time.Now()
	d.mu.Unlock()

	if err != nil {
		return err
	}
	conn.Close()
	return nil
}
