// Package agent runs the submission loop: one tick ensures connectivity,
// fetches a recent blockhash, builds and signs a transfer, and submits it.
// Every failure is contained within its tick; the loop itself only stops
// when its context is canceled.
package agent

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/benbjohnson/clock"

	"solana-heartbeat/internal/keys"
	"solana-heartbeat/internal/link"
	"solana-heartbeat/internal/observability"
	"solana-heartbeat/internal/rpc"
	"solana-heartbeat/internal/wire"
)

// RPC is the remote node surface the loop consumes.
type RPC interface {
	GetLatestBlockhash(ctx context.Context) (rpc.Blockhash, error)
	SendTransaction(ctx context.Context, txBase64 string) (string, error)
}

// Connectivity is the link manager surface the loop consumes.
type Connectivity interface {
	EnsureConnected(ctx context.Context) error
}

// Confirmer receives signatures of accepted submissions for observation.
type Confirmer interface {
	Track(sig string)
}

// Options for creating an Agent.
type Options struct {
	Link    Connectivity
	RPC     RPC
	Keypair *keys.Keypair

	// Recipient of the transfer; nil selects a fresh random recipient each
	// tick.
	Recipient *wire.Pubkey
	Lamports  uint64

	Interval time.Duration

	// Clock defaults to the wall clock; tests inject a mock to drive ticks.
	Clock     clock.Clock
	Logger    *log.Logger
	Confirmer Confirmer // optional
}

// Agent is the top-level submission loop.
type Agent struct {
	link      Connectivity
	rpc       RPC
	keypair   *keys.Keypair
	recipient *wire.Pubkey
	lamports  uint64
	interval  time.Duration
	clock     clock.Clock
	logger    *log.Logger
	confirmer Confirmer
}

// New creates an Agent.
func New(opts Options) *Agent {
	c := opts.Clock
	if c == nil {
		c = clock.New()
	}
	return &Agent{
		link:      opts.Link,
		rpc:       opts.RPC,
		keypair:   opts.Keypair,
		recipient: opts.Recipient,
		lamports:  opts.Lamports,
		interval:  opts.Interval,
		clock:     c,
		logger:    opts.Logger,
		confirmer: opts.Confirmer,
	}
}

// Run executes ticks until ctx is canceled. The first tick runs immediately,
// then one per interval.
func (a *Agent) Run(ctx context.Context) error {
	ticker := a.clock.Ticker(a.interval)
	defer ticker.Stop()

	for {
		a.Tick(ctx)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Tick executes one submission cycle: connect → fetch blockhash → build →
// sign → submit. Steps run strictly in that order; a step's failure skips
// the rest of the tick and nothing else.
func (a *Agent) Tick(ctx context.Context) {
	if err := a.link.EnsureConnected(ctx); err != nil {
		a.logger.Printf("connectivity: %v", err)
		observability.RecordTick("connectivity_error")
		return
	}

	recent, err := a.rpc.GetLatestBlockhash(ctx)
	if err != nil {
		a.logger.Printf("fetch blockhash (%s): %v", errKind(err), err)
		observability.RecordTick("blockhash_error")
		return
	}
	a.logger.Printf("latest blockhash: %s (slot %d)", recent.Hash, recent.Slot)

	tx, err := a.buildAndSign(recent.Hash)
	if err != nil {
		// Purely local failure: a programming or configuration defect.
		a.logger.Printf("build transaction: %v", err)
		observability.RecordTick("build_error")
		return
	}

	sig, err := a.rpc.SendTransaction(ctx, tx.ToBase64())
	if err != nil {
		// A lost response may follow an accepted submission; resubmitting
		// here could double-spend, so the failure is only logged.
		a.logger.Printf("send transaction (%s): %v", errKind(err), err)
		observability.RecordTick("submit_error")
		observability.RecordSubmission("error")
		return
	}

	a.logger.Printf("transaction submitted: %s", sig)
	observability.RecordTick("ok")
	observability.RecordSubmission("submitted")
	observability.SetLastSubmission(float64(a.clock.Now().Unix()))
	if a.confirmer != nil {
		a.confirmer.Track(sig)
	}
}

// buildAndSign assembles and signs the transfer for one tick.
func (a *Agent) buildAndSign(recent wire.Hash) (*wire.Transaction, error) {
	recipient, err := a.pickRecipient()
	if err != nil {
		return nil, err
	}

	payer := a.keypair.PublicKey()
	transfer := wire.NewTransferInstruction(a.lamports, payer, recipient)
	msg := wire.NewMessage(payer, []wire.Instruction{transfer}, recent)

	sig := a.keypair.Sign(msg.Serialize())
	return &wire.Transaction{
		Signatures: []wire.Signature{sig},
		Message:    msg,
	}, nil
}

func (a *Agent) pickRecipient() (wire.Pubkey, error) {
	if a.recipient != nil {
		return *a.recipient, nil
	}
	return keys.RandomPubkey()
}

// errKind names the failure category for log lines.
func errKind(err error) string {
	var (
		transport *rpc.TransportError
		protocol  *rpc.ProtocolError
		serial    *rpc.SerializationError
		conn      *link.ConnectivityError
	)
	switch {
	case errors.As(err, &transport):
		return "transport"
	case errors.As(err, &protocol):
		return "protocol"
	case errors.As(err, &serial):
		return "serialization"
	case errors.As(err, &conn):
		return "connectivity"
	default:
		return "unknown"
	}
}
