// Package rpc implements the JSON-RPC 2.0 HTTP client the agent uses to talk
// to a Solana node: a generic call primitive plus typed wrappers for the
// methods the submission loop needs. The client performs no retries; whether
// a failed call is safe to reissue depends on the method, so retry policy
// belongs to the caller.
package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"solana-heartbeat/internal/observability"
	"solana-heartbeat/internal/wire"
)

// Default configuration values.
const (
	DefaultTimeout    = 30 * time.Second
	DefaultCommitment = "confirmed"
)

// Client is a JSON-RPC 2.0 client over HTTPS.
type Client struct {
	endpoint   string
	commitment string
	client     *http.Client
	requestID  atomic.Uint64
}

// ClientOption configures Client.
type ClientOption func(*Client)

// WithTimeout sets the per-call HTTP timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.client.Timeout = d
	}
}

// WithCommitment sets the commitment level used by typed wrappers.
func WithCommitment(commitment string) ClientOption {
	return func(c *Client) {
		c.commitment = commitment
	}
}

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.client = client
	}
}

// NewClient creates a client for the given RPC endpoint.
func NewClient(endpoint string, opts ...ClientOption) *Client {
	c := &Client{
		endpoint:   endpoint,
		commitment: DefaultCommitment,
		client:     &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// rpcRequest is a JSON-RPC 2.0 request envelope.
type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

// rpcResponse is a JSON-RPC 2.0 response envelope.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *respError      `json:"error,omitempty"`
}

type respError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Call performs one JSON-RPC exchange and returns the raw result payload.
// Request ids increase monotonically for the process lifetime; a response
// carrying a different id is a protocol violation.
func (c *Client) Call(ctx context.Context, m Method) (json.RawMessage, error) {
	return c.call(ctx, m.name, m.params)
}

func (c *Client) call(ctx context.Context, method string, params []interface{}) (json.RawMessage, error) {
	reqID := c.requestID.Add(1)
	if params == nil {
		// Marshals as "params":[], never omitted.
		params = []interface{}{}
	}
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      reqID,
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return nil, &SerializationError{Err: fmt.Errorf("marshal request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &TransportError{Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	observability.RecordRPCLatency(method, time.Since(start).Seconds())
	if err != nil {
		observability.RecordRPCError(method, "transport")
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		observability.RecordRPCError(method, "transport")
		return nil, &TransportError{Err: fmt.Errorf("read response: %w", err)}
	}
	if resp.StatusCode != http.StatusOK {
		observability.RecordRPCError(method, "transport")
		return nil, &TransportError{
			Status: resp.StatusCode,
			Err:    fmt.Errorf("%s", bytes.TrimSpace(respBody)),
		}
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		observability.RecordRPCError(method, "serialization")
		return nil, &SerializationError{Err: fmt.Errorf("unmarshal response: %w", err)}
	}
	if rpcResp.Error != nil {
		observability.RecordRPCError(method, "protocol")
		return nil, &ProtocolError{Code: rpcResp.Error.Code, Message: rpcResp.Error.Message}
	}
	if rpcResp.ID != reqID {
		observability.RecordRPCError(method, "protocol")
		return nil, &ProtocolError{
			Message: fmt.Sprintf("response id %d does not match request id %d", rpcResp.ID, reqID),
		}
	}

	return rpcResp.Result, nil
}

// unmarshalResult decodes a raw result payload into the typed shape.
func unmarshalResult(raw json.RawMessage, v interface{}) error {
	if len(raw) == 0 {
		return &SerializationError{Err: fmt.Errorf("empty result")}
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return &SerializationError{Err: fmt.Errorf("unmarshal result: %w", err)}
	}
	return nil
}

// getLatestBlockhashResult is the raw RPC result for getLatestBlockhash.
type getLatestBlockhashResult struct {
	Context struct {
		Slot uint64 `json:"slot"`
	} `json:"context"`
	Value struct {
		Blockhash            string `json:"blockhash"`
		LastValidBlockHeight uint64 `json:"lastValidBlockHeight"`
	} `json:"value"`
}

// Blockhash is a recent blockhash with its freshness bounds.
type Blockhash struct {
	Hash                 wire.Hash
	Slot                 uint64
	LastValidBlockHeight uint64
}

// GetLatestBlockhash fetches the most recent blockhash. The hash is only
// valid for a bounded number of slots; staleness is enforced by the network
// at submission, not locally.
func (c *Client) GetLatestBlockhash(ctx context.Context) (Blockhash, error) {
	raw, err := c.Call(ctx, MethodGetLatestBlockhash(c.commitment))
	if err != nil {
		return Blockhash{}, err
	}

	var result getLatestBlockhashResult
	if err := unmarshalResult(raw, &result); err != nil {
		return Blockhash{}, err
	}
	hash, err := wire.HashFromBase58(result.Value.Blockhash)
	if err != nil {
		return Blockhash{}, &SerializationError{Err: err}
	}

	return Blockhash{
		Hash:                 hash,
		Slot:                 result.Context.Slot,
		LastValidBlockHeight: result.Value.LastValidBlockHeight,
	}, nil
}

// SendTransaction submits a base64-encoded signed transaction and returns
// the transaction signature. Signature verification, account validation and
// blockhash freshness are all checked by the remote network; nothing is
// duplicated here.
func (c *Client) SendTransaction(ctx context.Context, txBase64 string) (string, error) {
	raw, err := c.Call(ctx, MethodSendTransaction(txBase64, SendOptions{
		SkipPreflight:       false,
		PreflightCommitment: c.commitment,
		MaxRetries:          3,
	}))
	if err != nil {
		return "", err
	}

	var signature string
	if err := unmarshalResult(raw, &signature); err != nil {
		return "", err
	}
	return signature, nil
}

// getBalanceResult is the raw RPC result for getBalance.
type getBalanceResult struct {
	Value uint64 `json:"value"`
}

// GetBalance fetches an account's lamport balance.
func (c *Client) GetBalance(ctx context.Context, pubkey wire.Pubkey) (uint64, error) {
	raw, err := c.Call(ctx, MethodGetBalance(pubkey.String(), c.commitment))
	if err != nil {
		return 0, err
	}

	var result getBalanceResult
	if err := unmarshalResult(raw, &result); err != nil {
		return 0, err
	}
	return result.Value, nil
}

// getVersionResult is the raw RPC result for getVersion.
type getVersionResult struct {
	SolanaCore string `json:"solana-core"`
}

// GetVersion fetches the node software version.
func (c *Client) GetVersion(ctx context.Context) (string, error) {
	raw, err := c.Call(ctx, MethodGetVersion())
	if err != nil {
		return "", err
	}

	var result getVersionResult
	if err := unmarshalResult(raw, &result); err != nil {
		return "", err
	}
	return result.SolanaCore, nil
}

// GetSlot fetches the current slot.
func (c *Client) GetSlot(ctx context.Context) (uint64, error) {
	raw, err := c.Call(ctx, MethodGetSlot(c.commitment))
	if err != nil {
		return 0, err
	}

	var slot uint64
	if err := unmarshalResult(raw, &slot); err != nil {
		return 0, err
	}
	return slot, nil
}

// SignatureStatus is the processing status of a submitted transaction.
// A nil entry in the returned slice means the signature is unknown to the
// node.
type SignatureStatus struct {
	Slot               uint64      `json:"slot"`
	Confirmations      *uint64     `json:"confirmations"`
	ConfirmationStatus string      `json:"confirmationStatus"`
	Err                interface{} `json:"err"`
}

// getSignatureStatusesResult is the raw RPC result for getSignatureStatuses.
type getSignatureStatusesResult struct {
	Value []*SignatureStatus `json:"value"`
}

// GetSignatureStatuses fetches statuses for the given signatures.
func (c *Client) GetSignatureStatuses(ctx context.Context, signatures []string) ([]*SignatureStatus, error) {
	raw, err := c.Call(ctx, MethodGetSignatureStatuses(signatures))
	if err != nil {
		return nil, err
	}

	var result getSignatureStatusesResult
	if err := unmarshalResult(raw, &result); err != nil {
		return nil, err
	}
	return result.Value, nil
}
