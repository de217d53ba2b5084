package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"solana-heartbeat/internal/observability"
)

// ConfirmerConfig configures WebSocket confirmation watching.
type ConfirmerConfig struct {
	// ReconnectDelay is initial delay before reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay is maximum delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// ReadTimeout is timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
}

// DefaultConfirmerConfig returns default confirmation watcher configuration.
func DefaultConfirmerConfig() ConfirmerConfig {
	return ConfirmerConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		ReadTimeout:       90 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
}

// Confirmer watches submitted transaction signatures over a WebSocket
// subscription and logs their confirmation outcome. It is purely an
// observer: it never resubmits, so a lost confirmation changes nothing about
// retry behavior.
type Confirmer struct {
	endpoint   string
	commitment string
	config     ConfirmerConfig
	rpc        *Client
	logger     *log.Logger

	conn      *websocket.Conn
	connMu    sync.Mutex
	closed    atomic.Bool
	requestID atomic.Uint64

	// pending maps request ID to the signature awaiting its subscription ID
	pending map[uint64]string
	// subs maps subscription ID to signature
	subs  map[int64]string
	muSig sync.Mutex

	track chan string
	done  chan struct{}
	wg    sync.WaitGroup
}

// NewConfirmer creates a confirmation watcher for the given WebSocket
// endpoint. The RPC client is used to resolve signatures whose notifications
// may have been missed across a reconnect.
func NewConfirmer(endpoint, commitment string, rpcClient *Client, logger *log.Logger, config *ConfirmerConfig) *Confirmer {
	cfg := DefaultConfirmerConfig()
	if config != nil {
		cfg = *config
	}
	return &Confirmer{
		endpoint:   endpoint,
		commitment: commitment,
		config:     cfg,
		rpc:        rpcClient,
		logger:     logger,
		pending:    make(map[uint64]string),
		subs:       make(map[int64]string),
		track:      make(chan string, 64),
		done:       make(chan struct{}),
	}
}

// Track enqueues a signature for confirmation watching. Never blocks; if the
// watcher is saturated the signature is dropped with a log line.
func (c *Confirmer) Track(sig string) {
	if c.closed.Load() {
		return
	}
	select {
	case c.track <- sig:
	default:
		c.logger.Printf("confirmer: queue full, dropping signature %s", sig)
	}
}

// Run connects and processes confirmations until ctx is canceled or Close is
// called.
func (c *Confirmer) Run(ctx context.Context) error {
	if err := c.connect(ctx); err != nil {
		return err
	}

	c.wg.Add(1)
	go c.readLoop()

	for {
		select {
		case <-ctx.Done():
			c.Close()
			return ctx.Err()
		case <-c.done:
			return nil
		case sig := <-c.track:
			if err := c.subscribe(sig); err != nil {
				c.logger.Printf("confirmer: subscribe %s: %v", sig, err)
			}
		}
	}
}

// Close tears down the connection and stops the watcher.
func (c *Confirmer) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	close(c.done)

	c.connMu.Lock()
	if c.conn != nil {
		c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.conn.Close()
	}
	c.connMu.Unlock()

	c.wg.Wait()
	return nil
}

// connect establishes the WebSocket connection.
func (c *Confirmer) connect(ctx context.Context) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, c.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}
	c.conn = conn
	return nil
}

// subscribe issues a signatureSubscribe for one signature. The node cancels
// the subscription itself once the notification fires.
func (c *Confirmer) subscribe(sig string) error {
	reqID := c.requestID.Add(1)
	req := wsRequest{
		JSONRPC: "2.0",
		ID:      reqID,
		Method:  "signatureSubscribe",
		Params: []interface{}{
			sig,
			map[string]string{"commitment": c.commitment},
		},
	}

	c.muSig.Lock()
	c.pending[reqID] = sig
	c.muSig.Unlock()

	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.conn == nil {
		return fmt.Errorf("not connected")
	}
	c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	return c.conn.WriteJSON(req)
}

// readLoop reads messages and reconnects with capped backoff on failure.
func (c *Confirmer) readLoop() {
	defer c.wg.Done()

	delay := c.config.ReconnectDelay

	for !c.closed.Load() {
		c.connMu.Lock()
		conn := c.conn
		c.connMu.Unlock()

		if conn == nil {
			if !c.reconnect(delay) {
				return
			}
			delay *= 2
			if delay > c.config.MaxReconnectDelay {
				delay = c.config.MaxReconnectDelay
			}
			continue
		}

		conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
		_, message, err := conn.ReadMessage()
		if err != nil {
			if c.closed.Load() {
				return
			}
			c.connMu.Lock()
			c.conn.Close()
			c.conn = nil
			c.connMu.Unlock()
			continue
		}

		delay = c.config.ReconnectDelay
		c.handleMessage(message)
	}
}

// reconnect waits, redials and resolves signatures that may have confirmed
// while the connection was down. Returns false when the watcher is closing.
func (c *Confirmer) reconnect(delay time.Duration) bool {
	select {
	case <-c.done:
		return false
	case <-time.After(delay):
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := c.connect(ctx); err != nil {
		c.logger.Printf("confirmer: reconnect: %v", err)
		return !c.closed.Load()
	}
	c.logger.Printf("confirmer: reconnected")

	c.resolveOutstanding(ctx)
	return true
}

// resolveOutstanding checks every watched signature over HTTP and
// resubscribes the still-unresolved ones on the fresh connection.
func (c *Confirmer) resolveOutstanding(ctx context.Context) {
	c.muSig.Lock()
	outstanding := make([]string, 0, len(c.subs)+len(c.pending))
	for _, sig := range c.subs {
		outstanding = append(outstanding, sig)
	}
	for _, sig := range c.pending {
		outstanding = append(outstanding, sig)
	}
	c.pending = make(map[uint64]string)
	c.subs = make(map[int64]string)
	c.muSig.Unlock()

	if len(outstanding) == 0 || c.rpc == nil {
		return
	}

	statuses, err := c.rpc.GetSignatureStatuses(ctx, outstanding)
	if err != nil {
		c.logger.Printf("confirmer: resolve outstanding: %v", err)
		statuses = nil
	}

	for i, sig := range outstanding {
		if statuses != nil && i < len(statuses) && statuses[i] != nil {
			c.report(sig, statuses[i].Slot, statuses[i].Err)
			continue
		}
		if err := c.subscribe(sig); err != nil {
			c.logger.Printf("confirmer: resubscribe %s: %v", sig, err)
		}
	}
}

// handleMessage processes one incoming WebSocket message.
func (c *Confirmer) handleMessage(message []byte) {
	var resp wsSubscribeResponse
	if err := json.Unmarshal(message, &resp); err == nil && resp.Result > 0 {
		c.muSig.Lock()
		if sig, ok := c.pending[resp.ID]; ok {
			delete(c.pending, resp.ID)
			c.subs[resp.Result] = sig
		}
		c.muSig.Unlock()
		return
	}

	var notif wsNotification
	if err := json.Unmarshal(message, &notif); err == nil && notif.Method == "signatureNotification" {
		if notif.Params == nil {
			return
		}
		c.muSig.Lock()
		sig, ok := c.subs[notif.Params.Subscription]
		delete(c.subs, notif.Params.Subscription)
		c.muSig.Unlock()
		if !ok {
			return
		}
		var slot uint64
		if notif.Params.Result.Context != nil {
			slot = notif.Params.Result.Context.Slot
		}
		c.report(sig, slot, notif.Params.Result.Value.Err)
		return
	}

	var errResp struct {
		ID    uint64     `json:"id"`
		Error *respError `json:"error"`
	}
	if err := json.Unmarshal(message, &errResp); err == nil && errResp.Error != nil {
		c.muSig.Lock()
		sig := c.pending[errResp.ID]
		delete(c.pending, errResp.ID)
		c.muSig.Unlock()
		c.logger.Printf("confirmer: subscribe rejected for %s: code=%d msg=%s",
			sig, errResp.Error.Code, errResp.Error.Message)
	}
}

// report logs and counts one resolved signature.
func (c *Confirmer) report(sig string, slot uint64, txErr interface{}) {
	if txErr != nil {
		c.logger.Printf("confirmer: transaction %s failed at slot %d: %v", sig, slot, txErr)
		observability.RecordSubmission("failed")
		return
	}
	c.logger.Printf("confirmer: transaction %s confirmed at slot %d", sig, slot)
	observability.RecordSubmission("confirmed")
}

// WebSocket message types

type wsRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

type wsSubscribeResponse struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Result  int64  `json:"result"` // subscription ID
}

type wsNotification struct {
	JSONRPC string                `json:"jsonrpc"`
	Method  string                `json:"method"`
	Params  *wsNotificationParams `json:"params"`
}

type wsNotificationParams struct {
	Subscription int64                `json:"subscription"`
	Result       wsNotificationResult `json:"result"`
}

type wsNotificationResult struct {
	Context *wsContext       `json:"context"`
	Value   wsSignatureValue `json:"value"`
}

type wsContext struct {
	Slot uint64 `json:"slot"`
}

type wsSignatureValue struct {
	Err interface{} `json:"err"`
}
