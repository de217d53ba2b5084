package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"solana-heartbeat/internal/wire"
)

// rpcServer is an httptest server that captures request bodies and answers
// each call with the next scripted response.
type rpcServer struct {
	*httptest.Server
	bodies []string
}

func newRPCServer(t *testing.T, handler func(id uint64, method string) string) *rpcServer {
	t.Helper()
	s := &rpcServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("read request body: %v", err)
			return
		}
		s.bodies = append(s.bodies, string(body))

		var req rpcRequest
		if err := json.Unmarshal(body, &req); err != nil {
			t.Errorf("unmarshal request: %v", err)
			return
		}
		fmt.Fprint(w, handler(req.ID, req.Method))
	}))
	return s
}

func okResult(id uint64, result string) string {
	return fmt.Sprintf(`{"jsonrpc":"2.0","id":%d,"result":%s}`, id, result)
}

func TestCall_EnvelopeExact(t *testing.T) {
	srv := newRPCServer(t, func(id uint64, _ string) string {
		return okResult(id, `{"solana-core":"2.0.15"}`)
	})
	defer srv.Close()

	client := NewClient(srv.URL)
	if _, err := client.Call(context.Background(), MethodGetVersion()); err != nil {
		t.Fatalf("Call: %v", err)
	}

	// Field order is fixed and empty params serialize as [], never omitted.
	want := `{"jsonrpc":"2.0","id":1,"method":"getVersion","params":[]}`
	if got := srv.bodies[0]; got != want {
		t.Errorf("request body = %s, want %s", got, want)
	}
}

func TestCall_RequestIDsIncrease(t *testing.T) {
	srv := newRPCServer(t, func(id uint64, _ string) string {
		return okResult(id, `"ok"`)
	})
	defer srv.Close()

	client := NewClient(srv.URL)
	for i := 0; i < 3; i++ {
		if _, err := client.Call(context.Background(), MethodGetVersion()); err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
	}

	for i, body := range srv.bodies {
		var req rpcRequest
		if err := json.Unmarshal([]byte(body), &req); err != nil {
			t.Fatalf("unmarshal request %d: %v", i, err)
		}
		if want := uint64(i + 1); req.ID != want {
			t.Errorf("request %d id = %d, want %d", i, req.ID, want)
		}
	}
}

func TestCall_ResponseIDMismatch(t *testing.T) {
	srv := newRPCServer(t, func(id uint64, _ string) string {
		return okResult(id+41, `"ok"`)
	})
	defer srv.Close()

	client := NewClient(srv.URL)
	_, err := client.Call(context.Background(), MethodGetVersion())

	var protoErr *ProtocolError
	if !errors.As(err, &protoErr) {
		t.Fatalf("expected ProtocolError, got %v", err)
	}
	if !strings.Contains(protoErr.Message, "does not match") {
		t.Errorf("unexpected message: %s", protoErr.Message)
	}
}

func TestCall_RemoteError(t *testing.T) {
	srv := newRPCServer(t, func(id uint64, _ string) string {
		return fmt.Sprintf(`{"jsonrpc":"2.0","id":%d,"error":{"code":-32602,"message":"invalid params"}}`, id)
	})
	defer srv.Close()

	client := NewClient(srv.URL)
	_, err := client.Call(context.Background(), MethodGetSlot("confirmed"))

	var protoErr *ProtocolError
	if !errors.As(err, &protoErr) {
		t.Fatalf("expected ProtocolError, got %v", err)
	}
	if protoErr.Code != -32602 {
		t.Errorf("code = %d, want -32602", protoErr.Code)
	}
	if protoErr.Message != "invalid params" {
		t.Errorf("message = %q", protoErr.Message)
	}
}

func TestCall_MalformedResponse(t *testing.T) {
	srv := newRPCServer(t, func(uint64, string) string {
		return `{"jsonrpc":`
	})
	defer srv.Close()

	client := NewClient(srv.URL)
	_, err := client.Call(context.Background(), MethodGetVersion())

	var serErr *SerializationError
	if !errors.As(err, &serErr) {
		t.Fatalf("expected SerializationError, got %v", err)
	}
}

func TestCall_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "too many requests", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	_, err := client.Call(context.Background(), MethodGetVersion())

	var transportErr *TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("expected TransportError, got %v", err)
	}
	if transportErr.Status != http.StatusTooManyRequests {
		t.Errorf("status = %d, want %d", transportErr.Status, http.StatusTooManyRequests)
	}
}

func TestCall_ServerUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close()

	client := NewClient(srv.URL)
	_, err := client.Call(context.Background(), MethodGetVersion())

	var transportErr *TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("expected TransportError, got %v", err)
	}
}

func TestCall_ContextCancelled(t *testing.T) {
	srv := newRPCServer(t, func(id uint64, _ string) string {
		return okResult(id, `"ok"`)
	})
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewClient(srv.URL)
	_, err := client.Call(ctx, MethodGetVersion())

	var transportErr *TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("expected TransportError, got %v", err)
	}
}

func TestGetLatestBlockhash(t *testing.T) {
	var hash wire.Hash
	for i := range hash {
		hash[i] = byte(i + 1)
	}

	srv := newRPCServer(t, func(id uint64, method string) string {
		if method != "getLatestBlockhash" {
			t.Errorf("method = %s, want getLatestBlockhash", method)
		}
		result := fmt.Sprintf(
			`{"context":{"slot":12345},"value":{"blockhash":%q,"lastValidBlockHeight":12495}}`,
			hash.String(),
		)
		return okResult(id, result)
	})
	defer srv.Close()

	client := NewClient(srv.URL, WithCommitment("finalized"))
	bh, err := client.GetLatestBlockhash(context.Background())
	if err != nil {
		t.Fatalf("GetLatestBlockhash: %v", err)
	}

	if bh.Hash != hash {
		t.Errorf("hash = %s, want %s", bh.Hash, hash)
	}
	if bh.Slot != 12345 {
		t.Errorf("slot = %d, want 12345", bh.Slot)
	}
	if bh.LastValidBlockHeight != 12495 {
		t.Errorf("lastValidBlockHeight = %d, want 12495", bh.LastValidBlockHeight)
	}

	var req rpcRequest
	if err := json.Unmarshal([]byte(srv.bodies[0]), &req); err != nil {
		t.Fatalf("unmarshal request: %v", err)
	}
	cfg, ok := req.Params[0].(map[string]interface{})
	if !ok || cfg["commitment"] != "finalized" {
		t.Errorf("params = %v, want commitment config", req.Params)
	}
}

func TestGetLatestBlockhash_InvalidHash(t *testing.T) {
	srv := newRPCServer(t, func(id uint64, _ string) string {
		return okResult(id, `{"context":{"slot":1},"value":{"blockhash":"not base58!","lastValidBlockHeight":2}}`)
	})
	defer srv.Close()

	client := NewClient(srv.URL)
	_, err := client.GetLatestBlockhash(context.Background())

	var serErr *SerializationError
	if !errors.As(err, &serErr) {
		t.Fatalf("expected SerializationError, got %v", err)
	}
}

func TestSendTransaction(t *testing.T) {
	const wantSig = "5VERv8NMvzbJMEkV8xnrLkEaWRtSz9CosKDYjCJjBRnbJLgp8uirBgmQpjKhoR4tjF3ZpRzrFmBV6UjKdiSZkQUW"

	srv := newRPCServer(t, func(id uint64, method string) string {
		if method != "sendTransaction" {
			t.Errorf("method = %s, want sendTransaction", method)
		}
		return okResult(id, fmt.Sprintf("%q", wantSig))
	})
	defer srv.Close()

	client := NewClient(srv.URL)
	sig, err := client.SendTransaction(context.Background(), "dGVzdA==")
	if err != nil {
		t.Fatalf("SendTransaction: %v", err)
	}
	if sig != wantSig {
		t.Errorf("signature = %s, want %s", sig, wantSig)
	}

	var req rpcRequest
	if err := json.Unmarshal([]byte(srv.bodies[0]), &req); err != nil {
		t.Fatalf("unmarshal request: %v", err)
	}
	if len(req.Params) != 2 {
		t.Fatalf("params length = %d, want 2", len(req.Params))
	}
	if req.Params[0] != "dGVzdA==" {
		t.Errorf("params[0] = %v, want transaction base64", req.Params[0])
	}
	opts, ok := req.Params[1].(map[string]interface{})
	if !ok {
		t.Fatalf("params[1] = %T, want options object", req.Params[1])
	}
	if opts["encoding"] != "base64" {
		t.Errorf("encoding = %v, want base64", opts["encoding"])
	}
	if opts["skipPreflight"] != false {
		t.Errorf("skipPreflight = %v, want false", opts["skipPreflight"])
	}
	if opts["preflightCommitment"] != "confirmed" {
		t.Errorf("preflightCommitment = %v, want confirmed", opts["preflightCommitment"])
	}
	if opts["maxRetries"] != float64(3) {
		t.Errorf("maxRetries = %v, want 3", opts["maxRetries"])
	}
}

func TestGetBalance(t *testing.T) {
	srv := newRPCServer(t, func(id uint64, method string) string {
		if method != "getBalance" {
			t.Errorf("method = %s, want getBalance", method)
		}
		return okResult(id, `{"context":{"slot":100},"value":2039280}`)
	})
	defer srv.Close()

	client := NewClient(srv.URL)
	balance, err := client.GetBalance(context.Background(), wire.Pubkey{1})
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if balance != 2039280 {
		t.Errorf("balance = %d, want 2039280", balance)
	}
}

func TestGetSlot(t *testing.T) {
	srv := newRPCServer(t, func(id uint64, method string) string {
		if method != "getSlot" {
			t.Errorf("method = %s, want getSlot", method)
		}
		return okResult(id, `371262240`)
	})
	defer srv.Close()

	client := NewClient(srv.URL)
	slot, err := client.GetSlot(context.Background())
	if err != nil {
		t.Fatalf("GetSlot: %v", err)
	}
	if slot != 371262240 {
		t.Errorf("slot = %d, want 371262240", slot)
	}
}

func TestGetSignatureStatuses(t *testing.T) {
	srv := newRPCServer(t, func(id uint64, method string) string {
		if method != "getSignatureStatuses" {
			t.Errorf("method = %s, want getSignatureStatuses", method)
		}
		return okResult(id, `{"context":{"slot":100},"value":[{"slot":98,"confirmations":4,"confirmationStatus":"confirmed","err":null},null]}`)
	})
	defer srv.Close()

	client := NewClient(srv.URL)
	statuses, err := client.GetSignatureStatuses(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("GetSignatureStatuses: %v", err)
	}

	if len(statuses) != 2 {
		t.Fatalf("statuses length = %d, want 2", len(statuses))
	}
	if statuses[0] == nil || statuses[0].ConfirmationStatus != "confirmed" {
		t.Errorf("statuses[0] = %+v, want confirmed", statuses[0])
	}
	if statuses[1] != nil {
		t.Errorf("statuses[1] = %+v, want nil for unknown signature", statuses[1])
	}
}
