package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"solana-heartbeat/internal/agent"
	"solana-heartbeat/internal/config"
	"solana-heartbeat/internal/keys"
	"solana-heartbeat/internal/link"
	"solana-heartbeat/internal/observability"
	"solana-heartbeat/internal/rpc"
	"solana-heartbeat/internal/wire"
)

func main() {
	logger := log.New(os.Stdout, "[agent] ", log.LstdFlags|log.Lshortfile)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Load config: %v", err)
	}

	// Flags override the environment.
	flag.StringVar(&cfg.RPCEndpoint, "rpc-endpoint", cfg.RPCEndpoint, "Solana RPC HTTP endpoint")
	flag.StringVar(&cfg.WSEndpoint, "ws-endpoint", cfg.WSEndpoint, "Solana WebSocket endpoint for confirmation watching (empty to disable)")
	flag.StringVar(&cfg.Commitment, "commitment", cfg.Commitment, "Commitment level: processed, confirmed, or finalized")
	flag.DurationVar(&cfg.PollInterval, "poll-interval", cfg.PollInterval, "Interval between submission ticks")
	flag.DurationVar(&cfg.RequestTimeout, "request-timeout", cfg.RequestTimeout, "Per-RPC-call timeout")
	flag.Uint64Var(&cfg.Lamports, "lamports", cfg.Lamports, "Lamports to transfer each tick")
	flag.StringVar(&cfg.Recipient, "recipient", cfg.Recipient, "Transfer recipient (base58, empty for a random recipient per tick)")
	flag.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "Prometheus metrics HTTP address (empty to disable)")
	flag.Parse()

	if err := cfg.Validate(); err != nil {
		logger.Fatalf("Invalid config: %v", err)
	}

	// Start metrics server if enabled
	if cfg.MetricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", observability.Handler())
			mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				w.Write([]byte("ok"))
			})
			logger.Printf("Starting metrics server on %s", cfg.MetricsAddr)
			if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil && err != http.ErrServerClosed {
				logger.Printf("Metrics server error: %v", err)
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())

	// Handle shutdown signals with graceful timeout
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan error, 1)

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
			// Normal shutdown completed
		}
	}()

	err = run(ctx, logger, cfg)

	done <- err
	cancel()

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatalf("Error: %v", err)
	}

	logger.Println("Shutdown complete")
}

func run(ctx context.Context, logger *log.Logger, cfg *config.Config) error {
	// The keypair lives only in memory for this process's lifetime.
	keypair, err := keys.Generate()
	if err != nil {
		return err
	}
	defer keypair.Zero()
	logger.Printf("Keypair generated, public key: %s", keypair.PublicKey())

	var recipient *wire.Pubkey
	if cfg.Recipient != "" {
		pk, err := wire.PubkeyFromBase58(cfg.Recipient)
		if err != nil {
			return err
		}
		recipient = &pk
	}

	rpcClient := rpc.NewClient(cfg.RPCEndpoint,
		rpc.WithTimeout(cfg.RequestTimeout),
		rpc.WithCommitment(cfg.Commitment),
	)

	probeAddr, err := link.ProbeAddr(cfg.RPCEndpoint)
	if err != nil {
		return err
	}
	if cfg.NetworkSSID != "" {
		logger.Printf("Network: %s (credential withheld)", cfg.NetworkSSID)
	}
	transport := link.NewDialer(probeAddr, cfg.LinkAttemptTimeout, cfg.PollInterval)
	linkManager := link.NewManager(transport, link.Config{
		MaxAttempts:    cfg.LinkMaxAttempts,
		AttemptTimeout: cfg.LinkAttemptTimeout,
		Backoff:        cfg.LinkBackoff,
		MaxBackoff:     cfg.LinkMaxBackoff,
	}, logger)

	// Best-effort startup diagnostics; the loop handles a down endpoint.
	if version, err := rpcClient.GetVersion(ctx); err == nil {
		logger.Printf("RPC node version: %s", version)
	}
	if slot, err := rpcClient.GetSlot(ctx); err == nil {
		logger.Printf("RPC node at slot %d", slot)
	}
	if balance, err := rpcClient.GetBalance(ctx, keypair.PublicKey()); err == nil {
		logger.Printf("Payer balance: %d lamports", balance)
	}

	var confirmer agent.Confirmer
	if cfg.WSEndpoint != "" {
		c := rpc.NewConfirmer(cfg.WSEndpoint, cfg.Commitment, rpcClient, logger, nil)
		defer c.Close()
		go func() {
			if err := c.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Printf("Confirmer stopped: %v", err)
			}
		}()
		confirmer = c
	}

	a := agent.New(agent.Options{
		Link:      linkManager,
		RPC:       rpcClient,
		Keypair:   keypair,
		Recipient: recipient,
		Lamports:  cfg.Lamports,
		Interval:  cfg.PollInterval,
		Logger:    logger,
		Confirmer: confirmer,
	})

	logger.Printf("Starting submission loop, interval %s", cfg.PollInterval)
	return a.Run(ctx)
}
