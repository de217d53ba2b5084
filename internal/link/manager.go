// Package link drives the network link through a connect/retry state
// machine. Exactly one Manager exists per process; it is the sole owner and
// mutator of the connection state.
package link

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/benbjohnson/clock"

	"solana-heartbeat/internal/observability"
)

// State is the connectivity state.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Transport is the underlying link: radio, modem, or a reachability probe on
// hosts where the OS owns the radio. Connect must return only once the link
// is actually established.
type Transport interface {
	Connect(ctx context.Context) error
	Disconnect() error
	// Up reports whether the established link is still alive.
	Up() bool
}

// ConnectivityError reports that the link never reached Connected within the
// retry budget. Fatal for the tick that observed it; the next tick retries.
type ConnectivityError struct {
	Attempts int
	Err      error
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("link not connected after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ConnectivityError) Unwrap() error { return e.Err }

// Default configuration values.
const (
	DefaultMaxAttempts    = 5
	DefaultAttemptTimeout = 15 * time.Second
	DefaultBackoff        = 1 * time.Second
	DefaultMaxBackoff     = 30 * time.Second
)

// Config configures retry behavior. MaxBackoff of zero means fixed backoff.
type Config struct {
	MaxAttempts    int
	AttemptTimeout time.Duration
	Backoff        time.Duration
	MaxBackoff     time.Duration
}

// DefaultConfig returns the default retry configuration.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:    DefaultMaxAttempts,
		AttemptTimeout: DefaultAttemptTimeout,
		Backoff:        DefaultBackoff,
		MaxBackoff:     DefaultMaxBackoff,
	}
}

// Manager owns the link state machine:
//
//	Disconnected → Connecting → Connected
//	Connecting   → Failed     → (backoff) → Connecting
//	Connected    → Disconnected on a detected link drop
//
// There is no terminal state.
type Manager struct {
	transport Transport
	config    Config
	clock     clock.Clock
	logger    *log.Logger
	onState   func(State)

	state State
}

// ManagerOption configures Manager.
type ManagerOption func(*Manager)

// WithClock sets the clock used for backoff waits.
func WithClock(c clock.Clock) ManagerOption {
	return func(m *Manager) {
		m.clock = c
	}
}

// WithStateHook registers a callback invoked on every state transition.
func WithStateHook(f func(State)) ManagerOption {
	return func(m *Manager) {
		m.onState = f
	}
}

// NewManager creates the process's link manager.
func NewManager(t Transport, config Config, logger *log.Logger, opts ...ManagerOption) *Manager {
	m := &Manager{
		transport: t,
		config:    config,
		clock:     clock.New(),
		logger:    logger,
		state:     StateDisconnected,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// State returns the current connectivity state.
func (m *Manager) State() State { return m.state }

func (m *Manager) setState(s State) {
	if m.state == s {
		return
	}
	m.state = s
	observability.SetLinkState(int(s))
	if m.onState != nil {
		m.onState(s)
	}
}

// EnsureConnected drives the state machine until Connected, blocking the
// caller for the duration of each attempt. Exhausting the retry budget
// returns a ConnectivityError and leaves the state Failed; a later call
// starts a fresh budget.
func (m *Manager) EnsureConnected(ctx context.Context) error {
	if m.state == StateConnected {
		if m.transport.Up() {
			return nil
		}
		m.logger.Printf("link: drop detected")
		m.setState(StateDisconnected)
		if err := m.transport.Disconnect(); err != nil {
			m.logger.Printf("link: disconnect after drop: %v", err)
		}
	}

	delay := m.config.Backoff
	var lastErr error

	for attempt := 1; attempt <= m.config.MaxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return &ConnectivityError{Attempts: attempt - 1, Err: ctx.Err()}
			case <-m.clock.After(delay):
			}
			if m.config.MaxBackoff > 0 {
				delay *= 2
				if delay > m.config.MaxBackoff {
					delay = m.config.MaxBackoff
				}
			}
		}

		m.setState(StateConnecting)

		attemptCtx, cancel := context.WithTimeout(ctx, m.config.AttemptTimeout)
		err := m.transport.Connect(attemptCtx)
		cancel()

		if err == nil {
			m.setState(StateConnected)
			observability.RecordLinkConnect()
			m.logger.Printf("link: connected (attempt %d)", attempt)
			return nil
		}

		lastErr = err
		m.setState(StateFailed)
		observability.RecordLinkAttemptFailed()
		m.logger.Printf("link: attempt %d/%d failed: %v", attempt, m.config.MaxAttempts, err)

		if ctx.Err() != nil {
			return &ConnectivityError{Attempts: attempt, Err: ctx.Err()}
		}
	}

	return &ConnectivityError{Attempts: m.config.MaxAttempts, Err: lastErr}
}
